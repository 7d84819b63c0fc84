// Package telemetry records AI provider usage. Every provider call
// produces one CallRecord; records accumulate per logical operation and
// can be persisted to a project-local SQLite database for reporting.
package telemetry

import (
	"sync"
	"time"
)

// CallRecord captures one provider call, including retries folded into
// that call's attempt count.
type CallRecord struct {
	// Op labels the logical operation the call served, e.g. "expand.5".
	Op string
	// Provider is the backend that served the call.
	Provider string
	// Model is the model identifier sent to the provider.
	Model string
	// Role is the configured role the call ran under.
	Role string
	// Attempts is how many tries the call took, including the success.
	Attempts int
	// InputTokens and OutputTokens are provider-reported counts.
	InputTokens  int64
	OutputTokens int64
	// Latency is wall time across all attempts.
	Latency time.Duration
	// Outcome is "ok" or "error".
	Outcome string
	// Error holds the final error message when Outcome is "error".
	Error string
	// StartedAt is when the first attempt began.
	StartedAt time.Time
}

// Call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Usage aggregates token counts over a set of calls.
type Usage struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Add folds a record into the totals.
func (u *Usage) Add(rec CallRecord) {
	u.Calls++
	u.InputTokens += rec.InputTokens
	u.OutputTokens += rec.OutputTokens
	u.TotalTokens += rec.InputTokens + rec.OutputTokens
}

// Recorder receives call records as they complete.
type Recorder interface {
	Record(rec CallRecord)
}

// NopRecorder discards all records.
type NopRecorder struct{}

func (NopRecorder) Record(CallRecord) {}

// Tracker accumulates the calls made on behalf of one logical
// operation and forwards each to an optional sink.
type Tracker struct {
	mu    sync.Mutex
	op    string
	sink  Recorder
	calls []CallRecord
}

// NewTracker creates a tracker for the named operation. sink may be nil.
func NewTracker(op string, sink Recorder) *Tracker {
	return &Tracker{op: op, sink: sink}
}

// Op returns the operation label.
func (t *Tracker) Op() string { return t.op }

// Record stamps the record with the tracker's operation label, stores
// it, and forwards it to the sink.
func (t *Tracker) Record(rec CallRecord) {
	rec.Op = t.op

	t.mu.Lock()
	t.calls = append(t.calls, rec)
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		sink.Record(rec)
	}
}

// Calls returns a copy of the recorded calls in arrival order.
func (t *Tracker) Calls() []CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CallRecord{}, t.calls...)
}

// Usage returns the combined token usage across recorded calls.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total Usage
	for _, rec := range t.calls {
		total.Add(rec)
	}
	return total
}

// Cost returns the estimated spend across recorded calls, using the
// per-model price table. Calls on unknown models cost zero.
func (t *Tracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, rec := range t.calls {
		total += CostOf(rec.Model, rec.InputTokens, rec.OutputTokens)
	}
	return total
}

// Package engine applies task mutations atomically. Every operation
// runs load -> compute -> validate -> write-or-abort under the store's
// exclusive lock; a failed validation or provider call aborts the whole
// operation and the stored collection is never partially written.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/internal/complexity"
	"github.com/ShayCichocki/gantry/internal/graph"
	"github.com/ShayCichocki/gantry/internal/logging"
	"github.com/ShayCichocki/gantry/internal/store"
	"github.com/ShayCichocki/gantry/internal/telemetry"
	"github.com/ShayCichocki/gantry/pkg/models"
)

var (
	pkgLoggerMu sync.RWMutex
	pkgLogger   *logging.DebugLogger
)

// SetDebugLogger routes the engine's operation log to the given logger.
func SetDebugLogger(l *logging.DebugLogger) {
	pkgLoggerMu.Lock()
	pkgLogger = l
	pkgLoggerMu.Unlock()
}

func debugLog(format string, args ...any) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	l.Log(format, args...)
}

// Code classifies an operation failure for external callers.
type Code string

const (
	// CodeValidation marks rejected input or a graph invariant violation.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotFound marks a reference to a task, subtask, or edge that
	// does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeProvider marks an AI provider failure after retries and
	// fallback were exhausted.
	CodeProvider Code = "PROVIDER_ERROR"
	// CodeStoreIO marks a persistence failure: missing project file,
	// corrupt payload, lock or write trouble.
	CodeStoreIO Code = "STORE_IO_ERROR"
)

// Error is the typed failure carried inside a Result.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Result is the boundary envelope every operation returns. A no-change
// outcome from an AI update is a success with Updated=false, never an
// error.
type Result struct {
	// Success reports whether the operation committed (or legitimately
	// had nothing to do).
	Success bool `json:"success"`
	// Updated reports whether the stored collection changed.
	Updated bool `json:"updated"`
	// Data carries the operation's payload: the affected task, a
	// delete summary, or batch outcome rows.
	Data any `json:"data,omitempty"`
	// Message optionally explains a no-change outcome.
	Message string `json:"message,omitempty"`
	// Usage aggregates AI token usage across the operation, including
	// any fallback calls.
	Usage telemetry.Usage `json:"usage"`
	// Cost is the estimated AI spend for the operation in USD.
	Cost float64 `json:"cost"`
	// Err is set when Success is false.
	Err *Error `json:"error,omitempty"`
}

// Engine coordinates the store, the dependency graph, and the AI
// orchestrator. The orchestrator may be nil; AI-backed operations then
// fail with a provider error while manual operations keep working.
type Engine struct {
	store    store.TaskStore
	orch     *ai.Orchestrator
	analyzer *complexity.Analyzer
	recorder telemetry.Recorder
	workers  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder installs the telemetry sink operation trackers report to.
func WithRecorder(rec telemetry.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithWorkers bounds batch expansion concurrency.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New builds an engine over the given store and orchestrator.
func New(st store.TaskStore, orch *ai.Orchestrator, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		orch:    orch,
		workers: complexity.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	var runner complexity.Runner
	if orch != nil {
		runner = orch
	}
	e.analyzer = complexity.New(runner, e.workers)
	return e
}

// Analyzer exposes the engine's complexity analyzer for read-only
// analysis runs that share its worker budget and orchestrator.
func (e *Engine) Analyzer() *complexity.Analyzer {
	return e.analyzer
}

// op tracks one operation through its lifecycle and accumulates its AI
// telemetry.
type op struct {
	id      string
	name    string
	tracker *telemetry.Tracker
}

func (e *Engine) begin(name string) *op {
	o := &op{
		id:      uuid.New().String()[:8],
		name:    name,
		tracker: telemetry.NewTracker(name, e.recorder),
	}
	debugLog("op %s [%s] started", o.name, o.id)
	return o
}

// runner returns the orchestrator bound to this operation's tracker,
// or nil when no orchestrator is configured.
func (e *Engine) runner(o *op) *ai.Orchestrator {
	if e.orch == nil {
		return nil
	}
	return e.orch.BindRecorder(o.tracker)
}

func (o *op) state(s string) {
	debugLog("op %s [%s] %s", o.name, o.id, s)
}

// succeed finalizes a committed operation.
func (o *op) succeed(data any) *Result {
	o.state("COMMITTED")
	return &Result{
		Success: true,
		Updated: true,
		Data:    data,
		Usage:   o.tracker.Usage(),
		Cost:    o.tracker.Cost(),
	}
}

// noop finalizes a legitimate nothing-to-do outcome.
func (o *op) noop(data any) *Result {
	o.state("COMMITTED (no change)")
	return &Result{
		Success: true,
		Updated: false,
		Data:    data,
		Usage:   o.tracker.Usage(),
		Cost:    o.tracker.Cost(),
	}
}

// fail finalizes an aborted operation, classifying the error.
func (o *op) fail(err error) *Result {
	e := toError(err)
	o.state(fmt.Sprintf("ABORTED (%s): %s", e.Code, e.Message))
	return &Result{
		Success: false,
		Err:     e,
		Usage:   o.tracker.Usage(),
		Cost:    o.tracker.Cost(),
	}
}

// toError maps an arbitrary error onto the boundary taxonomy. Errors
// the engine raised itself are already typed; anything else that
// escapes the store layer is a persistence failure.
func toError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	var exhausted *ai.ExhaustedError
	if errors.As(err, &exhausted) {
		return errf(CodeProvider, "%v", exhausted)
	}
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		return errf(CodeStoreIO, "%v", notFound)
	}
	var corrupt *store.CorruptError
	if errors.As(err, &corrupt) {
		return errf(CodeStoreIO, "%v", corrupt)
	}
	return errf(CodeStoreIO, "%v", err)
}

// validateGraph re-checks every dependency invariant and reports the
// first violation found.
func validateGraph(c *models.Collection) error {
	violations := graph.New(c).Validate()
	if len(violations) == 0 {
		return nil
	}
	msg := violations[0].Message
	if len(violations) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(violations)-1)
	}
	return errf(CodeValidation, "%s", msg)
}

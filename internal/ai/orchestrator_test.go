package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/gantry/internal/telemetry"
)

// fakeProvider scripts responses per call number.
type fakeProvider struct {
	name string

	mu    sync.Mutex
	calls int
	fn    func(call int, req Request) (*Response, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureRecorder struct {
	mu   sync.Mutex
	recs []telemetry.CallRecord
}

func (c *captureRecorder) Record(rec telemetry.CallRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func (c *captureRecorder) records() []telemetry.CallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.CallRecord{}, c.recs...)
}

func testConfig() Config {
	return Config{
		Roles: map[Role]RoleConfig{
			RoleMain:     {Provider: ProviderAnthropic, Model: "main-model", MaxTokens: 1024},
			RoleResearch: {Provider: ProviderOpenAI, Model: "research-model", MaxTokens: 1024},
			RoleFallback: {Provider: ProviderOpenAI, Model: "fallback-model", MaxTokens: 512},
		},
		Retry: RetryConfig{
			MaxAttempts:         3,
			BaseBackoff:         time.Millisecond,
			FallbackMaxAttempts: 2,
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, main, fallback *fakeProvider, rec telemetry.Recorder) *Orchestrator {
	t.Helper()
	opts := []Option{
		WithProvider(ProviderAnthropic, main),
		WithProvider(ProviderOpenAI, fallback),
	}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	o, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func okResponse(text string) *Response {
	return &Response{Text: text, InputTokens: 10, OutputTokens: 5}
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return okResponse("hello"), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		t.Error("fallback should not be called")
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Kind != ShapeText || res.Text != "hello" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if res.Provider != ProviderAnthropic || res.Model != "main-model" {
		t.Errorf("result should name the serving provider, got %s/%s", res.Provider, res.Model)
	}
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		if call < 3 {
			return nil, retryable(fmt.Errorf("rate limited"))
		}
		return okResponse("finally"), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		t.Error("fallback should not be called")
		return nil, errors.New("unused")
	}}
	rec := &captureRecorder{}
	o := newTestOrchestrator(t, testConfig(), main, fb, rec)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}

	records := rec.records()
	if len(records) != 1 {
		t.Fatalf("expected 1 telemetry record for the attempt sequence, got %d", len(records))
	}
	if records[0].Attempts != 3 || records[0].Outcome != telemetry.OutcomeOK {
		t.Errorf("unexpected record %+v", records[0])
	}
}

func TestRunFallsBackAfterPrimaryExhausted(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return nil, retryable(fmt.Errorf("server melting"))
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return okResponse("rescued"), nil
	}}
	rec := &captureRecorder{}
	o := newTestOrchestrator(t, testConfig(), main, fb, rec)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Text != "rescued" {
		t.Errorf("expected fallback result, got %q", res.Text)
	}
	if res.Provider != ProviderOpenAI || res.Model != "fallback-model" {
		t.Errorf("result should name the fallback provider, got %s/%s", res.Provider, res.Model)
	}
	if res.Role != RoleFallback {
		t.Errorf("expected serving role fallback, got %s", res.Role)
	}
	// 3 primary attempts + 1 fallback attempt.
	if res.Attempts != 4 {
		t.Errorf("expected 4 total attempts, got %d", res.Attempts)
	}
	if main.callCount() != 3 {
		t.Errorf("expected primary tried 3 times, got %d", main.callCount())
	}

	records := rec.records()
	if len(records) != 2 {
		t.Fatalf("expected telemetry for both attempt sequences, got %d", len(records))
	}
	if records[0].Outcome != telemetry.OutcomeError || records[0].Role != "main" {
		t.Errorf("first record should be the failed primary: %+v", records[0])
	}
	if records[1].Outcome != telemetry.OutcomeOK || records[1].Role != "fallback" {
		t.Errorf("second record should be the fallback success: %+v", records[1])
	}
}

func TestRunFatalSkipsRemainingRetries(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return nil, fmt.Errorf("invalid api key")
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return okResponse("fallback answer"), nil
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if main.callCount() != 1 {
		t.Errorf("fatal error should stop the retry loop, primary tried %d times", main.callCount())
	}
	if res.Provider != ProviderOpenAI {
		t.Errorf("expected fallback to serve, got %s", res.Provider)
	}
}

func TestRunExhaustedReturnsTypedError(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return nil, retryable(fmt.Errorf("primary down"))
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return nil, retryable(fmt.Errorf("fallback down"))
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	_, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Role != RoleMain {
		t.Errorf("expected role main, got %s", exhausted.Role)
	}
	// 3 primary + 2 fallback.
	if exhausted.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", exhausted.Attempts)
	}
	if exhausted.LastErr == nil || exhausted.LastErr.Error() != "fallback down" {
		t.Errorf("expected last error from fallback, got %v", exhausted.LastErr)
	}
}

func TestRunFallbackRoleDoesNotRecurse(t *testing.T) {
	calls := 0
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		calls = call
		return nil, retryable(fmt.Errorf("still down"))
	}}
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		t.Error("main should not be called")
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	_, err := o.Run(context.Background(), RoleFallback, PromptSpec{Prompt: "hi"})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if calls != 3 {
		t.Errorf("direct fallback run should use the full budget, got %d calls", calls)
	}
}

func TestRunCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		cancel()
		return nil, retryable(fmt.Errorf("transient"))
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		t.Error("fallback must not run after cancellation")
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	_, err := o.Run(ctx, RoleMain, PromptSpec{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestRunUnknownRole(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return okResponse("x"), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return okResponse("x"), nil
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	if _, err := o.Run(context.Background(), Role("imaginary"), PromptSpec{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for unconfigured role")
	}
}

func TestRunStructuredExtractsJSON(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return okResponse("Here you go:\n```json\n{\"score\": 7}\n```\nDone."), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "score it", Shape: ShapeStructured})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Kind != ShapeStructured {
		t.Fatalf("expected structured result, got %s", res.Kind)
	}
	var payload struct {
		Score int `json:"score"`
	}
	if err := res.Structured(&payload); err != nil {
		t.Fatalf("Structured decode failed: %v", err)
	}
	if payload.Score != 7 {
		t.Errorf("expected score 7, got %d", payload.Score)
	}
}

func TestRunStructuredRetriesMalformedJSON(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		if call == 1 {
			return okResponse("Sorry, I cannot produce JSON right now."), nil
		}
		return okResponse(`{"ok": true}`), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	res, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "json please", Shape: ShapeStructured})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("expected a retry after malformed output, got %d attempts", res.Attempts)
	}
}

func TestRunSpecMaxTokensOverridesRole(t *testing.T) {
	var seen int64
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		seen = req.MaxTokens
		return okResponse("x"), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return nil, errors.New("unused")
	}}
	o := newTestOrchestrator(t, testConfig(), main, fb, nil)

	if _, err := o.Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi", MaxTokens: 99}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if seen != 99 {
		t.Errorf("expected max tokens override 99, got %d", seen)
	}
}

func TestBindRecorderIsolatesSink(t *testing.T) {
	main := &fakeProvider{name: "anthropic", fn: func(call int, req Request) (*Response, error) {
		return okResponse("x"), nil
	}}
	fb := &fakeProvider{name: "openai", fn: func(call int, req Request) (*Response, error) {
		return okResponse("x"), nil
	}}
	base := &captureRecorder{}
	o := newTestOrchestrator(t, testConfig(), main, fb, base)

	bound := &captureRecorder{}
	if _, err := o.BindRecorder(bound).Run(context.Background(), RoleMain, PromptSpec{Prompt: "hi"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(bound.records()) != 1 {
		t.Errorf("expected bound recorder to receive the record, got %d", len(bound.records()))
	}
	if len(base.records()) != 0 {
		t.Errorf("base recorder should not see bound calls, got %d", len(base.records()))
	}
}

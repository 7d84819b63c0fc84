package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShayCichocki/gantry/internal/logging"
	"github.com/ShayCichocki/gantry/internal/telemetry"
)

// pkgLogger is the package-level debug logger used by the retry loop.
var pkgLogger *logging.DebugLogger
var pkgLoggerMu sync.RWMutex

// SetDebugLogger sets the package-level logger.
func SetDebugLogger(l *logging.DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a message using the package-level logger.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// ExhaustedError reports that a call failed after every attempt the
// retry policy allowed, including the fallback pass.
type ExhaustedError struct {
	// Role is the role originally requested.
	Role Role
	// Provider and Model are the primary role's config.
	Provider string
	Model    string
	// Attempts counts every provider attempt made, fallback included.
	Attempts int
	// LastErr is the final underlying failure.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("ai call for role %s exhausted after %d attempt(s): %v", e.Role, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Orchestrator routes prompts to providers according to the configured
// role table. It is safe for concurrent use; rate limiters are shared
// across all calls in the process.
type Orchestrator struct {
	cfg       Config
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
	recorder  telemetry.Recorder
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithProvider injects a provider implementation, replacing the default
// client for that name. Tests use this to avoid real network calls.
func WithProvider(name string, p Provider) Option {
	return func(o *Orchestrator) {
		o.providers[name] = p
	}
}

// WithRecorder sets the default telemetry sink.
func WithRecorder(rec telemetry.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// New builds an orchestrator from config. Providers referenced by the
// role table are constructed unless injected via WithProvider.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ai config: %w", err)
	}

	o := &Orchestrator{
		cfg:       cfg.clone(),
		providers: make(map[string]Provider),
		limiters:  make(map[string]*rate.Limiter),
		recorder:  telemetry.NopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, rc := range o.cfg.Roles {
		if _, ok := o.providers[rc.Provider]; ok {
			continue
		}
		var (
			p   Provider
			err error
		)
		switch rc.Provider {
		case ProviderAnthropic:
			p, err = newAnthropicProvider(o.cfg)
		case ProviderOpenAI:
			p, err = newOpenAIProvider(o.cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("configure %s provider: %w", rc.Provider, err)
		}
		o.providers[rc.Provider] = p
	}

	for name, rl := range o.cfg.Rates {
		if rl.RPS <= 0 {
			continue
		}
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		o.limiters[name] = rate.NewLimiter(rate.Limit(rl.RPS), burst)
	}

	return o, nil
}

// BindRecorder returns a shallow copy whose calls record to rec instead
// of the default sink. Providers and limiters are shared, so rate
// limits stay global across bound copies.
func (o *Orchestrator) BindRecorder(rec telemetry.Recorder) *Orchestrator {
	clone := *o
	clone.recorder = rec
	return &clone
}

// Roles returns the configured role table.
func (o *Orchestrator) Roles() map[Role]RoleConfig {
	out := make(map[Role]RoleConfig, len(o.cfg.Roles))
	for role, rc := range o.cfg.Roles {
		out[role] = rc
	}
	return out
}

// Run executes the prompt under the given role. Transient failures are
// retried with exponential backoff; once the primary role's budget is
// spent, the fallback role gets one smaller pass. All attempts fold
// into a single result or a typed ExhaustedError.
func (o *Orchestrator) Run(ctx context.Context, role Role, spec PromptSpec) (*Result, error) {
	roleCfg, ok := o.cfg.Roles[role]
	if !ok {
		return nil, fmt.Errorf("role %q is not configured", role)
	}
	if spec.Shape == "" {
		spec.Shape = ShapeText
	}

	res, attempts, err := o.runRole(ctx, role, roleCfg, spec, o.cfg.Retry.MaxAttempts)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	fbCfg, hasFallback := o.cfg.Roles[RoleFallback]
	if role != RoleFallback && hasFallback {
		debugLog("role %s failed after %d attempt(s), trying fallback: %v", role, attempts, err)
		res, fbAttempts, fbErr := o.runRole(ctx, RoleFallback, fbCfg, spec, o.cfg.Retry.FallbackMaxAttempts)
		if fbErr == nil {
			res.Attempts = attempts + fbAttempts
			return res, nil
		}
		err = fbErr
		attempts += fbAttempts
	}

	return nil, &ExhaustedError{
		Role:     role,
		Provider: roleCfg.Provider,
		Model:    roleCfg.Model,
		Attempts: attempts,
		LastErr:  err,
	}
}

// runRole drives the attempt loop for one role and emits a single
// telemetry record covering the whole attempt sequence.
func (o *Orchestrator) runRole(ctx context.Context, role Role, rc RoleConfig, spec PromptSpec, maxAttempts int) (*Result, int, error) {
	provider := o.providers[rc.Provider]
	limiter := o.limiters[rc.Provider]

	req := Request{
		System:      spec.System,
		Prompt:      spec.Prompt,
		Model:       rc.Model,
		MaxTokens:   rc.MaxTokens,
		Temperature: rc.Temperature,
	}
	if spec.MaxTokens > 0 {
		req.MaxTokens = spec.MaxTokens
	}

	start := time.Now()
	rec := telemetry.CallRecord{
		Provider:  rc.Provider,
		Model:     rc.Model,
		Role:      string(role),
		StartedAt: start,
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := o.cfg.Retry.BaseBackoff << (attempt - 2)
			debugLog("retrying %s/%s in %v (attempt %d/%d)", rc.Provider, rc.Model, backoff, attempt, maxAttempts)
			if err := sleepBackoff(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		attempts = attempt
		resp, err := o.complete(ctx, provider, req)
		if err != nil {
			lastErr = err
			if classify(err) == attemptFatal {
				debugLog("%s/%s attempt %d failed permanently: %v", rc.Provider, rc.Model, attempt, err)
				break
			}
			debugLog("%s/%s attempt %d failed: %v", rc.Provider, rc.Model, attempt, err)
			continue
		}

		rec.InputTokens += resp.InputTokens
		rec.OutputTokens += resp.OutputTokens

		result, err := normalize(spec.Shape, resp)
		if err != nil {
			// The model answered but not in the requested shape; that
			// is as transient as a 5xx.
			lastErr = retryable(err)
			debugLog("%s/%s attempt %d returned unusable output: %v", rc.Provider, rc.Model, attempt, err)
			continue
		}

		rec.Attempts = attempt
		rec.Latency = time.Since(start)
		rec.Outcome = telemetry.OutcomeOK
		o.recorder.Record(rec)

		result.Provider = rc.Provider
		result.Model = rc.Model
		result.Role = role
		result.Attempts = attempt
		return result, attempt, nil
	}

	if attempts == 0 {
		attempts = 1
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no attempts made")
	}
	rec.Attempts = attempts
	rec.Latency = time.Since(start)
	rec.Outcome = telemetry.OutcomeError
	rec.Error = lastErr.Error()
	o.recorder.Record(rec)

	return nil, attempts, lastErr
}

// complete runs one provider attempt under the per-call timeout.
func (o *Orchestrator) complete(ctx context.Context, p Provider, req Request) (*Response, error) {
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}
	return p.Complete(ctx, req)
}

// normalize converts a raw provider response into the requested shape.
func normalize(shape Shape, resp *Response) (*Result, error) {
	if shape == ShapeStructured {
		payload, err := extractJSON(resp.Text)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ShapeStructured, Text: resp.Text, Payload: payload}, nil
	}
	return &Result{Kind: ShapeText, Text: resp.Text}, nil
}

// sleepBackoff waits for the backoff duration or the context, whichever
// ends first.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Request is the provider-neutral call shape.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Response is the provider-neutral reply.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider serves one completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// retryableError marks errors worth retrying: timeouts, rate limits,
// and server-side failures. Providers wrap at the classification site.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func retryable(err error) error {
	return &retryableError{err: err}
}

// isRetryable walks the error chain looking for a retryable marker or a
// transient transport condition.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// attemptOutcome classifies a single provider attempt.
type attemptOutcome int

const (
	attemptOK attemptOutcome = iota
	attemptRetryable
	attemptFatal
)

func classify(err error) attemptOutcome {
	switch {
	case err == nil:
		return attemptOK
	case errors.Is(err, context.Canceled):
		return attemptFatal
	case isRetryable(err):
		return attemptRetryable
	default:
		return attemptFatal
	}
}

// statusError carries an HTTP status through the error chain so retry
// classification and messages can use it.
type statusError struct {
	provider string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.provider, e.code, e.body)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

var (
	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("provider returned no content")
	// ErrTruncated is returned when the completion hit the token limit.
	ErrTruncated = errors.New("provider response truncated at token limit")
	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("provider circuit open")
)

// ProviderError is a failed call to the provider. Transient errors are
// worth retrying: rate limits, server errors and network failures.
type ProviderError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a ProviderError marked transient.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

// classify converts errors from the OpenAI client into ProviderErrors.
// Context errors are returned unchanged so callers can tell a deadline from
// a provider failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return &ProviderError{Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}
	// Half-open admits one trial request; the rest may succeed shortly.
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &ProviderError{Transient: true, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Transient: transientStatus(apiErr.HTTPStatusCode), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{StatusCode: reqErr.HTTPStatusCode, Transient: transientStatus(reqErr.HTTPStatusCode), Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &ProviderError{Transient: true, Err: err}
	}
	return &ProviderError{Err: err}
}

// countsAsFailure decides which outcomes move the breaker towards open.
// Only transient provider trouble does; bad requests and cancellations do
// not say anything about provider health.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return IsTransient(classify(err))
}

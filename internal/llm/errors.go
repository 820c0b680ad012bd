package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized  = errors.New("llm unauthorized")
	ErrRateLimited   = errors.New("llm rate limited")
	ErrUnavailable   = errors.New("llm unavailable")
	ErrEmptyResponse = errors.New("llm empty response")
	ErrNoProviders   = errors.New("no completion providers configured")
)

// ProviderError is a single backend failure.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it already is a *ProviderError.
func NewProviderError(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Model: model, Err: err}
}

// AllProvidersFailedError is returned when no provider produced a reply.
type AllProvidersFailedError struct {
	Attempts []error
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers failed: no provider attempted"
	}
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return "all providers failed: " + strings.Join(msgs, "; ")
}

func (e *AllProvidersFailedError) Unwrap() []error {
	return e.Attempts
}

// WithStatus attaches the sentinel matching an HTTP status code to err.
func WithStatus(code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.Join(ErrUnauthorized, err)
	case code == http.StatusTooManyRequests:
		return errors.Join(ErrRateLimited, err)
	case code >= 500:
		return errors.Join(ErrUnavailable, err)
	}
	return err
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks a failure worth retrying (network, 5xx, timeouts).
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// QuotaError marks a backend-side rate/quota rejection (429).
type QuotaError struct {
	Provider string
	Err      error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Provider, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// InvalidRequestError marks a fatal request error that must not be retried.
type InvalidRequestError struct {
	Provider string
	Err      error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: invalid request: %v", e.Provider, e.Err)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsQuota(err error) bool {
	var q *QuotaError
	return errors.As(err, &q)
}

func IsInvalidRequest(err error) bool {
	var i *InvalidRequestError
	return errors.As(err, &i)
}

// ClassifyHTTP normalizes an HTTP status from a backend into the taxonomy.
// Network-level failures should be wrapped as TransientError by the caller.
func ClassifyHTTP(provider string, status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return &QuotaError{Provider: provider, Err: err}
	case status >= 500:
		return &TransientError{Provider: provider, Err: err}
	default:
		return &InvalidRequestError{Provider: provider, Err: err}
	}
}

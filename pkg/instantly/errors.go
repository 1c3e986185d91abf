package instantly

import (
	"fmt"
	"net/http"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// AuthError is returned when the API rejects the credentials. It is never
// retried.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("instantly: auth failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable implements resilience.Retryable.
func (e *AuthError) Retryable() bool { return false }

// PermanentVendorError is returned for request validation failures such as
// an unknown enum value or an unsupported schedule timezone. Retrying the
// same input will fail again.
type PermanentVendorError struct {
	StatusCode int
	Body       string
}

func (e *PermanentVendorError) Error() string {
	return fmt.Sprintf("instantly: rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable implements resilience.Retryable.
func (e *PermanentVendorError) Retryable() bool { return false }

// TransientVendorError is returned for 5xx, throttling and network failures.
type TransientVendorError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientVendorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("instantly: transient: %v", e.Err)
	}
	return fmt.Sprintf("instantly: transient: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *TransientVendorError) Unwrap() error { return e.Err }

// Retryable implements resilience.Retryable.
func (e *TransientVendorError) Retryable() bool { return true }

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(status int, body []byte) error {
	b := string(body)
	if len(b) > 512 {
		b = b[:512]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status, Body: b}
	case resilience.IsTransientHTTPStatus(status) || status >= 500:
		return &TransientVendorError{StatusCode: status, Body: b}
	default:
		return &PermanentVendorError{StatusCode: status, Body: b}
	}
}

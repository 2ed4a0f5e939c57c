package errors

import "fmt"

// BackendError is the error half of a {data, error} pair returned by the
// managed backend. It is a result, not a failure of the call itself: a
// "no rows" or constraint violation answer arrives as a BackendError while
// the HTTP exchange succeeded.
type BackendError struct {
	Status  int    `json:"-"`                 // HTTP status of the response
	Code    string `json:"code"`              // Backend or Postgres error code (e.g. "PGRST116", "23505")
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional details
	Hint    string `json:"hint,omitempty"`    // Optional hint
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// Transient reports whether the backend signalled a temporary condition.
func (e *BackendError) Transient() bool {
	if e == nil {
		return false
	}
	return IsTransientBackendCode(e.Code) || IsTransientStatus(e.Status)
}

// NotFound reports whether the backend answered that no row matched.
func (e *BackendError) NotFound() bool {
	return e != nil && (e.Code == "PGRST116" || e.Status == 404)
}

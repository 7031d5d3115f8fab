package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTransport       = errors.New("transport error")
	ErrNotFound        = errors.New("not found")
)

// Error is a failed API call. It unwraps to one of the sentinel errors above.
type Error struct {
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Endpoint, e.Err, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Endpoint, e.Err, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in again"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	}
	return err.Error()
}

func sentinelFor(status int) error {
	switch status {
	case 401:
		return ErrUnauthenticated
	case 404:
		return ErrNotFound
	default:
		return ErrTransport
	}
}

// parseErrorBody pulls the backend's "message" out of an error body. The
// backend sends either a string or a list of validation messages.
func parseErrorBody(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil && single != "" {
		return single
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return payload.Error
}

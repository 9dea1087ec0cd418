package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnauthorized is matched (via errors.Is) by any *Error carrying a 401
// status. The client never refreshes tokens itself; callers observe this
// sentinel, refresh through Auth.Refresh, and retry.
var ErrUnauthorized = errors.New("api: unauthorized")

// Error is a non-2xx response from the API.
type Error struct {
	// Status is the HTTP status code.
	Status int

	// Message is the server-provided error message, when the body carried one.
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// newError builds an *Error from a non-2xx response, extracting the message
// from a JSON `{"error": "..."}` body when present.
func newError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = body.Message
		}
	}

	return apiErr
}

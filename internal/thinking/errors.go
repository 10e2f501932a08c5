package thinking

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinels matched by [ValidationError] through errors.Is.
var (
	ErrInvalidThought           = errors.New("invalid thought")
	ErrInvalidThoughtNumber     = errors.New("invalid thoughtNumber")
	ErrInvalidTotalThoughts     = errors.New("invalid totalThoughts")
	ErrInvalidNextThoughtNeeded = errors.New("invalid nextThoughtNeeded")
)

// ValidationError reports a tool input field that failed validation. Nothing is
// recorded when Record returns one.
type ValidationError struct {
	// Field is the input key that failed, e.g. "thoughtNumber".
	Field string

	// Reason describes the expectation, e.g. "must be a number".
	Reason string

	sentinel error
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns the per-field sentinel.
func (e *ValidationError) Unwrap() error { return e.sentinel }

func invalid(field, reason string) *ValidationError {
	var s error
	switch field {
	case fieldThought:
		s = ErrInvalidThought
	case fieldThoughtNumber:
		s = ErrInvalidThoughtNumber
	case fieldTotalThoughts:
		s = ErrInvalidTotalThoughts
	case fieldNextThoughtNeeded:
		s = ErrInvalidNextThoughtNeeded
	}
	return &ValidationError{Field: field, Reason: reason, sentinel: s}
}

// errorPayload is the JSON body returned to the model for a failed call.
type errorPayload struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// ErrorPayload renders err as {"error": "...", "status": "failed"}.
func ErrorPayload(err error) string {
	data, mErr := json.Marshal(errorPayload{Error: err.Error(), Status: "failed"})
	if mErr != nil {
		return `{"error":"unencodable error","status":"failed"}`
	}
	return string(data)
}

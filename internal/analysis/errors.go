package analysis

import (
	"errors"
	"fmt"
)

// ErrDisabled is returned by generators that have no credentials configured.
var ErrDisabled = errors.New("external generator disabled")

// ExternalServiceError means the external generator could not produce a
// usable answer. Callers fall back to local generation.
type ExternalServiceError struct {
	Op     string
	Status int
	Err    error
}

func (e *ExternalServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: external service returned %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: external service unavailable: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// RateLimitError is returned once HTTP 429 persisted through every retry.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts", e.Attempts)
}

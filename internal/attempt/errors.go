package attempt

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every *ErrMalformedEvent via errors.Is.
var ErrMalformed = errors.New("malformed attempt event")

// ErrMalformedEvent indicates a raw record could not be normalized.
type ErrMalformedEvent struct {
	Field string
	Err   error
}

func (e *ErrMalformedEvent) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed attempt event: %v", e.Err)
	}
	return fmt.Sprintf("malformed attempt event: %s: %v", e.Field, e.Err)
}

func (e *ErrMalformedEvent) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformed) true for any malformed-event error.
func (e *ErrMalformedEvent) Is(target error) bool { return target == ErrMalformed }

func malformed(field string, err error) *ErrMalformedEvent {
	return &ErrMalformedEvent{Field: field, Err: err}
}

package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("record index out of range")
	ErrEmptyLedger     = errors.New("ledger has no records")
)

// ErrEmptyPayload is returned by Append for a payload without fields.
var ErrEmptyPayload = NewValidationError("payload must contain at least one field")

// ErrInvalidUTF8 is returned for a field name or string value that is not valid UTF-8.
var ErrInvalidUTF8 = NewValidationError("field names and string values must be valid UTF-8")

// ValidationError reports input rejected before it reaches the chain.
type ValidationError struct {
	Message string
	Fields  []string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CorruptionError describes the first point where a chain fails validation.
type CorruptionError struct {
	Index    int
	Kind     CorruptionKind
	Expected string
	Actual   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("TAMPERING DETECTED: %s at record %d (expected %s, got %s)",
		e.Kind, e.Index, shorten(e.Expected), shorten(e.Actual))
}

func (e *CorruptionError) IsTampering() bool {
	return true
}

func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

func AsCorruptionError(err error) *CorruptionError {
	var ce *CorruptionError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func shorten(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

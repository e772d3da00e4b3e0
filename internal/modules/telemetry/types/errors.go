package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRejectedReading marks a payload that decoded fine but carries none of
	// temperature, TDS_Value or latitude.
	ErrRejectedReading = errors.New("reading has no temperature, TDS_Value or latitude")

	// ErrStoreUnavailable marks a lost or unreachable durable store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DecodeError is returned when a raw message is not a JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationFailure reports schema violations, keyed by wire field name.
type ValidationFailure struct {
	Fields map[string]string
}

func (e *ValidationFailure) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "reading validation failed: " + strings.Join(parts, "; ")
}

// ConnectionError is a failed send to one peer during a broadcast.
type ConnectionError struct {
	ConnID string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("send to connection %s: %v", e.ConnID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsValidationFailure reports whether err carries a *ValidationFailure.
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

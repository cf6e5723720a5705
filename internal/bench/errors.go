package bench

import (
	"fmt"
)

// MissingFieldError reports required text that an extractor could not find.
type MissingFieldError struct {
	Type  Type
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Type, e.Field)
}

// MalformedValueError reports a matched field whose value did not parse.
type MalformedValueError struct {
	Type  Type
	Field string
	Value string
	Err   error
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("%s: malformed value %q for %s: %v", e.Type, e.Value, e.Field, e.Err)
}

func (e *MalformedValueError) Unwrap() error {
	return e.Err
}

// InvalidMetricError is returned when a non-numeric value reaches the
// aggregate engine. Nothing is applied.
type InvalidMetricError struct {
	Metric string
	Value  any
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("metric %q: value %v (%T) is not a finite number", e.Metric, e.Value, e.Value)
}

// StorageError wraps a failed durable write or read.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

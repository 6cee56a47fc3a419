package model

import (
	"errors"
	"fmt"
)

// ShapeError reports an inference output whose layout does not match what a
// decoder expects: the wrong number of outputs, dimensions, batch size or
// element type.
type ShapeError struct {
	// Shape is the offending shape, if one was available.
	Shape []int
	// Reason describes which expectation was violated.
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Shape == nil {
		return "shape error: " + e.Reason
	}
	return fmt.Sprintf("shape error: %s (got shape %v)", e.Reason, e.Shape)
}

// NewShapeError builds a ShapeError with a formatted reason.
func NewShapeError(shape []int, format string, args ...any) *ShapeError {
	return &ShapeError{
		Shape:  append([]int(nil), shape...),
		Reason: fmt.Sprintf(format, args...),
	}
}

// IsShapeError reports whether err wraps a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// ConfigError reports a configuration value outside its valid range. It is
// raised when a component is constructed and values are never clamped to
// make it go away.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Reason)
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// CheckPositive returns a ConfigError unless v > 0.
func CheckPositive(field string, v int) error {
	if v <= 0 {
		return &ConfigError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

// CheckUnit returns a ConfigError unless v is in [0, 1].
func CheckUnit(field string, v float32) error {
	// Written as a negated range check so NaN is rejected too.
	if !(v >= 0 && v <= 1) {
		return &ConfigError{Field: field, Value: v, Reason: "must be within [0, 1]"}
	}
	return nil
}

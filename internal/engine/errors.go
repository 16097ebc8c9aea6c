package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes engine errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownComponent indicates an event or query named a component
	// that is not in the table.
	ErrCodeUnknownComponent RuntimeErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeDuplicateComponent indicates a load of a name already in use.
	ErrCodeDuplicateComponent RuntimeErrorCode = "DUPLICATE_COMPONENT"

	// ErrCodePropagationLimit indicates one Drain processed more events
	// than the configured limit.
	ErrCodePropagationLimit RuntimeErrorCode = "PROPAGATION_LIMIT"
)

// RuntimeError is an error detected by the host runtime rather than by a
// component.
type RuntimeError struct {
	Code      RuntimeErrorCode
	Message   string
	Component string
	Details   map[string]string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownComponent reports whether err is an unknown component error.
func IsUnknownComponent(err error) bool {
	return hasCode(err, ErrCodeUnknownComponent)
}

// IsDuplicateComponent reports whether err is a duplicate component error.
func IsDuplicateComponent(err error) bool {
	return hasCode(err, ErrCodeDuplicateComponent)
}

// IsPropagationLimit reports whether err is a propagation limit error.
func IsPropagationLimit(err error) bool {
	return hasCode(err, ErrCodePropagationLimit)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewUnknownComponentError creates a RuntimeError for a missing component.
func NewUnknownComponentError(name string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeUnknownComponent,
		Message:   "no such component",
		Component: name,
	}
}

// NewDuplicateComponentError creates a RuntimeError for a reused name.
func NewDuplicateComponentError(name string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeDuplicateComponent,
		Message:   "component already loaded",
		Component: name,
	}
}

// NewPropagationLimitError creates a RuntimeError for an exhausted budget.
func NewPropagationLimitError(processed, limit, pending int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePropagationLimit,
		Message: fmt.Sprintf("drain exceeded propagation limit (%d > %d)", processed, limit),
		Details: map[string]string{
			"processed": fmt.Sprintf("%d", processed),
			"limit":     fmt.Sprintf("%d", limit),
			"pending":   fmt.Sprintf("%d", pending),
		},
	}
}

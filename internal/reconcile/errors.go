package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a type identifier is not registered.
	// There is no fallback type.
	ErrUnknownType = errors.New("reconcile: unknown component type")

	// ErrDuplicateType is returned when a type identifier is registered twice.
	ErrDuplicateType = errors.New("reconcile: duplicate component type")

	// ErrInvalidKind is returned when a kind descriptor is incomplete.
	ErrInvalidKind = errors.New("reconcile: invalid kind")

	// ErrUnknownAttribute is returned in strict mode for attributes the
	// component's kind does not declare.
	ErrUnknownAttribute = errors.New("reconcile: unknown attribute")

	// ErrDisposed is returned by operations on a torn down component.
	ErrDisposed = errors.New("reconcile: component disposed")

	// ErrInFlight is returned by a reentrant Object() call while the first
	// build of the component is still running.
	ErrInFlight = errors.New("reconcile: component is resolving and has no object yet")
)

// BuildError reports a failed construction. The component keeps its last
// good object and stays dirty, so the next Object() call retries.
type BuildError struct {
	Component string
	Kind      TypeID
	Err       error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s (%s): %v", e.Component, e.Kind, e.Err)
}

// Unwrap returns the builder's error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// PatchError reports a failed in-place mutation. A patch error escalates the
// resolution to a rebuild, so callers only see it wrapped in the log.
type PatchError struct {
	Component string
	Attribute string
	Err       error
}

// Error implements the error interface.
func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %s.%s: %v", e.Component, e.Attribute, e.Err)
}

// Unwrap returns the patch function's error.
func (e *PatchError) Unwrap() error {
	return e.Err
}

// IsBuildError returns true if err wraps a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownType       = "E201" // type not registered
	ErrUnknownAttribute  = "E202" // attribute the kind does not declare (strict)
	ErrDanglingReference = "E203" // ref names no component in the scene
	ErrDuplicateName     = "E204" // component name used twice
	ErrRefOutsideSlot    = "E205" // ref on an attribute that is not a slot
	ErrEmptyName         = "E206" // component without a name
)

// ValidationError represents a scene validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled scene against the registered kinds.
// Returns all errors found (does not fail-fast), in declaration order.
//
// Unknown attributes are only reported when strict is set; the engine
// accepts them otherwise and treats a change to one as a rebuild.
func Validate(scene *ir.SceneDef, registry *reconcile.Registry, strict bool) []ValidationError {
	var errs []ValidationError
	if scene == nil {
		return errs
	}

	names := make(map[string]bool, len(scene.Components))
	for _, def := range scene.Components {
		names[def.Name] = true
	}

	seen := make(map[string]bool, len(scene.Components))
	for i, def := range scene.Components {
		field := fmt.Sprintf("component.%s", def.Name)

		if def.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("components[%d]", i),
				Message: "component name is required",
				Code:    ErrEmptyName,
			})
		}
		if seen[def.Name] && def.Name != "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate component name: %q", def.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[def.Name] = true

		kind, err := registry.Lookup(def.Type)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, reconcile.ErrUnknownType) {
				msg = fmt.Sprintf("unknown type %q", def.Type)
			}
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: msg,
				Code:    ErrUnknownType,
			})
		}

		for _, attr := range def.Attributes.SortedKeys() {
			name := reconcile.CanonicalName(attr)
			attrField := field + "." + attr

			if kind != nil && strict && !kind.Declares(name) {
				errs = append(errs, ValidationError{
					Field:   attrField,
					Message: fmt.Sprintf("%s does not declare attribute %q", kind.ID, attr),
					Code:    ErrUnknownAttribute,
				})
			}

			ref, isRef := def.Attributes[attr].(ir.Ref)
			if !isRef {
				continue
			}
			if !names[string(ref)] {
				errs = append(errs, ValidationError{
					Field:   attrField,
					Message: fmt.Sprintf("reference to unknown component %q", string(ref)),
					Code:    ErrDanglingReference,
				})
			}
			if kind != nil && !kind.IsSlot(name) {
				errs = append(errs, ValidationError{
					Field:   attrField,
					Message: fmt.Sprintf("%s attribute %q is not a slot; the reference is never resolved", kind.ID, attr),
					Code:    ErrRefOutsideSlot,
				})
			}
		}
	}
	return errs
}

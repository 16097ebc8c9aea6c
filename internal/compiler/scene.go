package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/patchwork/internal/ir"
)

// CompileScene parses a CUE value into a SceneDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the root of a scene file. Components live under the
// "component" field, keyed by name, in declaration order:
//
//	component: brick: {
//		type: "texture"
//		src:  "brick.png"
//	}
//	component: wall: {
//		type:      "standard-material"
//		roughness: 0.8
//		map:       {ref: "brick"}
//	}
//
// A scene without a component field compiles to an empty SceneDef.
func CompileScene(v cue.Value) (*ir.SceneDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	// Conflicts below the root are not reported by Err.
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	scene := &ir.SceneDef{Components: []ir.ComponentDef{}}
	compVal := v.LookupPath(cue.ParsePath("component"))
	if !compVal.Exists() {
		return scene, nil
	}

	iter, err := compVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		def, err := CompileComponent(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		scene.Components = append(scene.Components, *def)
	}
	return scene, nil
}

// CompileComponent parses one component struct. "type" is required and
// must be a string; every other field becomes an attribute.
func CompileComponent(name string, v cue.Value) (*ir.ComponentDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	field := "component." + name
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".type",
			Message: "type must be a string",
			Pos:     typeVal.Pos(),
		}
	}

	def := &ir.ComponentDef{
		Name:       name,
		Type:       typeName,
		Attributes: ir.Attributes{},
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Label()
		if label == "type" {
			continue
		}
		val, err := compileValue(field+"."+label, iter.Value())
		if err != nil {
			return nil, err
		}
		def.Attributes[label] = val
	}
	return def, nil
}

// compileValue converts a concrete CUE value into an attribute value.
// Integers stay Int and decimals become Float; a list of three numbers is
// a Vec3 and {ref: "name"} is a component reference.
func compileValue(field string, v cue.Value) (ir.Value, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "value must be concrete",
			Pos:     v.Pos(),
		}
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return ir.Float(f), nil
	case cue.ListKind:
		return compileVec(field, v)
	case cue.StructKind:
		return compileRef(field, v)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func compileVec(field string, v cue.Value) (ir.Value, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []float64
	for list.Next() {
		elem := list.Value()
		f, err := elem.Float64()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, len(out)),
				Message: "vector components must be numbers",
				Pos:     elem.Pos(),
			}
		}
		out = append(out, f)
	}
	if len(out) != 3 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("vectors must have exactly 3 components, got %d", len(out)),
			Pos:     v.Pos(),
		}
	}
	return ir.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func compileRef(field string, v cue.Value) (ir.Value, error) {
	fields, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	count := 0
	for fields.Next() {
		count++
	}
	refVal := v.LookupPath(cue.ParsePath("ref"))
	if !refVal.Exists() || count != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: "only {ref: <component>} structs are allowed",
			Pos:     v.Pos(),
		}
	}
	name, err := refVal.String()
	if err != nil || name == "" {
		return nil, &CompileError{
			Field:   field + ".ref",
			Message: "ref must be a non-empty component name",
			Pos:     refVal.Pos(),
		}
	}
	return ir.Ref(name), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error that carries a position.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

package catalog

import (
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
)

// Geometry and mesh type identifiers.
const (
	BoxGeometry reconcile.TypeID = "box-geometry"
	MeshKind    reconcile.TypeID = "mesh"
)

// Geometry stands in for vertex buffers. Buffers are sized at construction,
// so every geometry attribute rebuilds.
type Geometry struct {
	Width, Height, Depth float64
	Segments             int
	Vertices             int
	Disposed             bool
}

// Mesh binds a geometry and a material with a transform.
type Mesh struct {
	Geometry   *Geometry
	Material   *Material
	Position   ir.Vec3
	Rotation   ir.Vec3
	Scale      ir.Vec3
	Visible    bool
	CastShadow bool
	Version    int
	Disposed   bool
}

func geometryKinds() []reconcile.Kind {
	return []reconcile.Kind{
		{
			ID:       BoxGeometry,
			Defaults: []string{"width", "height", "depth", "segments"},
			Synonyms: []reconcile.SynonymGroup{
				{Canonical: "dimensions", Members: []string{"width", "height", "depth"}},
			},
			Build: buildBox,
			Dispose: func(obj reconcile.Object) {
				if g, ok := obj.(*Geometry); ok {
					g.Disposed = true
				}
			},
		},
		{
			ID:       MeshKind,
			Defaults: []string{"geometry", "material", "position", "rotation", "scale", "visible", "castshadow"},
			Synonyms: []reconcile.SynonymGroup{
				{Canonical: "position", Members: axisMembers("position")},
				{Canonical: "rotation", Members: axisMembers("rotation")},
				{Canonical: "scale", Members: axisMembers("scale")},
			},
			Patchable: map[string]reconcile.PatchFunc{
				"position":   patchMesh(func(m *Mesh, a ir.Attributes) { m.Position = axisVec(a, "position", ir.Vec3{}) }),
				"rotation":   patchMesh(func(m *Mesh, a ir.Attributes) { m.Rotation = axisVec(a, "rotation", ir.Vec3{}) }),
				"scale":      patchMesh(func(m *Mesh, a ir.Attributes) { m.Scale = axisVec(a, "scale", unitScale) }),
				"visible":    patchMesh(func(m *Mesh, a ir.Attributes) { m.Visible = boolAttr(a, "visible", true) }),
				"castshadow": patchMesh(func(m *Mesh, a ir.Attributes) { m.CastShadow = boolAttr(a, "castshadow", false) }),
			},
			Slots: []string{"geometry", "material"},
			Build: buildMesh,
			Dispose: func(obj reconcile.Object) {
				if m, ok := obj.(*Mesh); ok {
					m.Disposed = true
				}
			},
		},
	}
}

var unitScale = ir.Vec3{X: 1, Y: 1, Z: 1}

func buildBox(_ *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	g := &Geometry{
		Width:    floatAttr(attrs, "width", 1),
		Height:   floatAttr(attrs, "height", 1),
		Depth:    floatAttr(attrs, "depth", 1),
		Segments: intAttr(attrs, "segments", 1),
	}
	if g.Width <= 0 || g.Height <= 0 || g.Depth <= 0 {
		return nil, fmt.Errorf("box dimensions must be positive, got %vx%vx%v", g.Width, g.Height, g.Depth)
	}
	if g.Segments < 1 {
		return nil, fmt.Errorf("segments must be at least 1, got %d", g.Segments)
	}
	// Six faces of (segments+1)^2 vertices each.
	g.Vertices = 6 * (g.Segments + 1) * (g.Segments + 1)
	return g, nil
}

func buildMesh(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	m := &Mesh{
		Position:   axisVec(attrs, "position", ir.Vec3{}),
		Rotation:   axisVec(attrs, "rotation", ir.Vec3{}),
		Scale:      axisVec(attrs, "scale", unitScale),
		Visible:    boolAttr(attrs, "visible", true),
		CastShadow: boolAttr(attrs, "castshadow", false),
	}
	if obj, ok := ctx.Resolve(attrs.Get("geometry")); ok {
		g, ok := obj.(*Geometry)
		if !ok {
			return nil, fmt.Errorf("geometry %s is %T", ir.Format(attrs.Get("geometry")), obj)
		}
		m.Geometry = g
	}
	if obj, ok := ctx.Resolve(attrs.Get("material")); ok {
		mat, ok := obj.(*Material)
		if !ok {
			return nil, fmt.Errorf("material %s is %T", ir.Format(attrs.Get("material")), obj)
		}
		m.Material = mat
	}
	return m, nil
}

func patchMesh(apply func(m *Mesh, attrs ir.Attributes)) reconcile.PatchFunc {
	return func(_ *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
		m, ok := obj.(*Mesh)
		if !ok {
			return fmt.Errorf("expected *Mesh, got %T", obj)
		}
		apply(m, attrs)
		m.Version++
		return nil
	}
}

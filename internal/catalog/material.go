package catalog

import (
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
)

// Material type identifiers.
const (
	StandardMaterial reconcile.TypeID = "standard-material"
	PhongMaterial    reconcile.TypeID = "phong-material"
	BasicMaterial    reconcile.TypeID = "basic-material"
)

// Material stands in for a shaded surface description. Version increments
// on every in-place change, the way engines flag uniforms for re-upload.
type Material struct {
	Kind        reconcile.TypeID
	Color       string
	Emissive    string
	Specular    string
	Roughness   float64
	Metalness   float64
	Shininess   float64
	Opacity     float64
	Transparent bool
	Wireframe   bool
	Map         *Texture
	NormalMap   *Texture
	Version     int
	Disposed    bool
}

func materialKinds() []reconcile.Kind {
	return []reconcile.Kind{
		{
			ID:       StandardMaterial,
			Defaults: []string{"color", "emissive", "roughness", "metalness", "opacity", "transparent", "wireframe", "map", "normalmap"},
			Patchable: map[string]reconcile.PatchFunc{
				"color":     patchMaterial(func(m *Material, a ir.Attributes) { m.Color = stringAttr(a, "color", "#ffffff") }),
				"emissive":  patchMaterial(func(m *Material, a ir.Attributes) { m.Emissive = stringAttr(a, "emissive", "#000000") }),
				"roughness": patchMaterial(func(m *Material, a ir.Attributes) { m.Roughness = floatAttr(a, "roughness", 1) }),
				"metalness": patchMaterial(func(m *Material, a ir.Attributes) { m.Metalness = floatAttr(a, "metalness", 0) }),
				"opacity":   patchMaterial(func(m *Material, a ir.Attributes) { m.Opacity = floatAttr(a, "opacity", 1) }),
				"wireframe": patchMaterial(func(m *Material, a ir.Attributes) { m.Wireframe = boolAttr(a, "wireframe", false) }),
			},
			Slots:   []string{"map", "normalmap"},
			Build:   buildMaterial(StandardMaterial),
			Dispose: disposeMaterial,
		},
		{
			ID:       PhongMaterial,
			Defaults: []string{"color", "specular", "shininess", "opacity", "transparent", "wireframe", "map"},
			Patchable: map[string]reconcile.PatchFunc{
				"color":     patchMaterial(func(m *Material, a ir.Attributes) { m.Color = stringAttr(a, "color", "#ffffff") }),
				"specular":  patchMaterial(func(m *Material, a ir.Attributes) { m.Specular = stringAttr(a, "specular", "#111111") }),
				"shininess": patchMaterial(func(m *Material, a ir.Attributes) { m.Shininess = floatAttr(a, "shininess", 30) }),
				"opacity":   patchMaterial(func(m *Material, a ir.Attributes) { m.Opacity = floatAttr(a, "opacity", 1) }),
				"wireframe": patchMaterial(func(m *Material, a ir.Attributes) { m.Wireframe = boolAttr(a, "wireframe", false) }),
			},
			Slots:   []string{"map"},
			Build:   buildMaterial(PhongMaterial),
			Dispose: disposeMaterial,
		},
		{
			ID:       BasicMaterial,
			Defaults: []string{"color", "opacity", "transparent", "wireframe", "map"},
			Patchable: map[string]reconcile.PatchFunc{
				"color":     patchMaterial(func(m *Material, a ir.Attributes) { m.Color = stringAttr(a, "color", "#ffffff") }),
				"opacity":   patchMaterial(func(m *Material, a ir.Attributes) { m.Opacity = floatAttr(a, "opacity", 1) }),
				"wireframe": patchMaterial(func(m *Material, a ir.Attributes) { m.Wireframe = boolAttr(a, "wireframe", false) }),
			},
			Slots:   []string{"map"},
			Build:   buildMaterial(BasicMaterial),
			Dispose: disposeMaterial,
		},
	}
}

func buildMaterial(id reconcile.TypeID) reconcile.BuildFunc {
	return func(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
		m := &Material{
			Kind:        id,
			Color:       stringAttr(attrs, "color", "#ffffff"),
			Emissive:    stringAttr(attrs, "emissive", "#000000"),
			Specular:    stringAttr(attrs, "specular", "#111111"),
			Roughness:   floatAttr(attrs, "roughness", 1),
			Metalness:   floatAttr(attrs, "metalness", 0),
			Shininess:   floatAttr(attrs, "shininess", 30),
			Opacity:     floatAttr(attrs, "opacity", 1),
			Transparent: boolAttr(attrs, "transparent", false),
			Wireframe:   boolAttr(attrs, "wireframe", false),
		}
		if m.Opacity < 0 || m.Opacity > 1 {
			return nil, fmt.Errorf("opacity %v out of range [0,1]", m.Opacity)
		}

		var err error
		if m.Map, err = resolveTexture(ctx, attrs.Get("map")); err != nil {
			return nil, fmt.Errorf("map: %w", err)
		}
		if m.NormalMap, err = resolveTexture(ctx, attrs.Get("normalmap")); err != nil {
			return nil, fmt.Errorf("normalmap: %w", err)
		}
		return m, nil
	}
}

func patchMaterial(apply func(m *Material, attrs ir.Attributes)) reconcile.PatchFunc {
	return func(ctx *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
		m, ok := obj.(*Material)
		if !ok {
			return fmt.Errorf("expected *Material, got %T", obj)
		}
		apply(m, attrs)
		m.Version++
		return nil
	}
}

func disposeMaterial(obj reconcile.Object) {
	if m, ok := obj.(*Material); ok {
		m.Disposed = true
	}
}

// resolveTexture returns the texture a slot points at. A texture component
// is used as is; a loaded image URL is wrapped in an anonymous texture.
// Anything unresolved is nil.
func resolveTexture(ctx *reconcile.Context, v ir.Value) (*Texture, error) {
	obj, ok := ctx.Resolve(v)
	if !ok {
		return nil, nil
	}
	switch src := obj.(type) {
	case *Texture:
		return src, nil
	case *loader.Asset:
		if !src.IsImage() {
			return nil, fmt.Errorf("%s is not an image", src.URL)
		}
		return &Texture{Src: src.URL, Image: src, Wrap: WrapClamp, FlipY: true}, nil
	default:
		return nil, fmt.Errorf("%s is %T, not a texture", ir.Format(v), obj)
	}
}

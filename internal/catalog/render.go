package catalog

import (
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
)

// Render pipeline type identifiers.
const (
	ShaderKind       reconcile.TypeID = "shader"
	RenderTargetKind reconcile.TypeID = "render-target"
	RenderPassKind   reconcile.TypeID = "render-pass"
	SizeKind         reconcile.TypeID = "size"
)

// Shader stands in for a compiled program. Sources are compiled at
// construction; uniforms are patched.
type Shader struct {
	Vertex    string
	Fragment  string
	Defines   string
	Intensity float64
	Tint      string
	Compiled  bool
	Version   int
	Disposed  bool
}

// RenderTarget is an offscreen framebuffer.
type RenderTarget struct {
	Width, Height int
	Samples       int
	Version       int
	Disposed      bool
}

// RenderPass draws into a target.
type RenderPass struct {
	Target     *RenderTarget
	Shader     *Shader
	ClearColor string
	Enabled    bool
	Version    int
	Disposed   bool
}

// Size is a standalone width/height value, defaulting to the viewport.
type Size struct {
	Width, Height int
	PixelRatio    float64
	Version       int
}

var dimensionGroup = reconcile.SynonymGroup{Canonical: "dimensions", Members: []string{"width", "height"}}

func renderKinds() []reconcile.Kind {
	return []reconcile.Kind{
		{
			ID:       ShaderKind,
			Defaults: []string{"vertex", "fragment", "defines", "intensity", "tint"},
			Patchable: map[string]reconcile.PatchFunc{
				"intensity": patchShader(func(s *Shader, a ir.Attributes) { s.Intensity = floatAttr(a, "intensity", 1) }),
				"tint":      patchShader(func(s *Shader, a ir.Attributes) { s.Tint = stringAttr(a, "tint", "#ffffff") }),
			},
			Slots:   []string{"vertex", "fragment"},
			Build:   buildShader,
			Dispose: func(obj reconcile.Object) { obj.(*Shader).Disposed = true },
		},
		{
			ID:       RenderTargetKind,
			Defaults: []string{"width", "height", "samples"},
			Synonyms: []reconcile.SynonymGroup{dimensionGroup},
			Patchable: map[string]reconcile.PatchFunc{
				"dimensions": func(ctx *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
					rt := obj.(*RenderTarget)
					rt.Width, rt.Height = viewportSize(ctx, attrs)
					rt.Version++
					return nil
				},
			},
			Attributes: []string{"samples"},
			Build:      buildRenderTarget,
			Dispose:    func(obj reconcile.Object) { obj.(*RenderTarget).Disposed = true },
		},
		{
			ID:       RenderPassKind,
			Defaults: []string{"target", "shader", "clearcolor", "enabled"},
			Patchable: map[string]reconcile.PatchFunc{
				"clearcolor": patchPass(func(p *RenderPass, a ir.Attributes) { p.ClearColor = stringAttr(a, "clearcolor", "#000000") }),
				"enabled":    patchPass(func(p *RenderPass, a ir.Attributes) { p.Enabled = boolAttr(a, "enabled", true) }),
			},
			Slots:   []string{"target", "shader"},
			Build:   buildRenderPass,
			Dispose: func(obj reconcile.Object) { obj.(*RenderPass).Disposed = true },
		},
		{
			ID:       SizeKind,
			Defaults: []string{"width", "height", "pixelratio"},
			Synonyms: []reconcile.SynonymGroup{dimensionGroup},
			Patchable: map[string]reconcile.PatchFunc{
				"dimensions": func(ctx *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
					s := obj.(*Size)
					s.Width, s.Height = viewportSize(ctx, attrs)
					s.Version++
					return nil
				},
				"pixelratio": func(ctx *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
					s := obj.(*Size)
					s.PixelRatio = pixelRatio(ctx, attrs)
					s.Version++
					return nil
				},
			},
			Build: func(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
				w, h := viewportSize(ctx, attrs)
				return &Size{Width: w, Height: h, PixelRatio: pixelRatio(ctx, attrs)}, nil
			},
		},
	}
}

func buildShader(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	s := &Shader{
		Defines:   stringAttr(attrs, "defines", ""),
		Intensity: floatAttr(attrs, "intensity", 1),
		Tint:      stringAttr(attrs, "tint", "#ffffff"),
	}
	var err error
	if s.Vertex, err = shaderSource(ctx, attrs.Get("vertex")); err != nil {
		return nil, fmt.Errorf("vertex: %w", err)
	}
	if s.Fragment, err = shaderSource(ctx, attrs.Get("fragment")); err != nil {
		return nil, fmt.Errorf("fragment: %w", err)
	}
	s.Compiled = s.Vertex != "" && s.Fragment != ""
	return s, nil
}

// shaderSource reads program text from a loaded resource. Until the load
// completes the program stays uncompiled.
func shaderSource(ctx *reconcile.Context, v ir.Value) (string, error) {
	obj, ok := ctx.Resolve(v)
	if !ok {
		return "", nil
	}
	asset, ok := obj.(*loader.Asset)
	if !ok {
		return "", fmt.Errorf("%s is %T, not a source file", ir.Format(v), obj)
	}
	if asset.IsImage() {
		return "", fmt.Errorf("%s is an image", asset.URL)
	}
	return string(asset.Data), nil
}

func patchShader(apply func(s *Shader, attrs ir.Attributes)) reconcile.PatchFunc {
	return func(_ *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
		s, ok := obj.(*Shader)
		if !ok {
			return fmt.Errorf("expected *Shader, got %T", obj)
		}
		apply(s, attrs)
		s.Version++
		return nil
	}
}

func buildRenderTarget(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	w, h := viewportSize(ctx, attrs)
	samples := intAttr(attrs, "samples", 0)
	if samples < 0 || samples > 16 {
		return nil, fmt.Errorf("samples %d out of range [0,16]", samples)
	}
	return &RenderTarget{Width: w, Height: h, Samples: samples}, nil
}

func buildRenderPass(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	p := &RenderPass{
		ClearColor: stringAttr(attrs, "clearcolor", "#000000"),
		Enabled:    boolAttr(attrs, "enabled", true),
	}
	if obj, ok := ctx.Resolve(attrs.Get("target")); ok {
		rt, ok := obj.(*RenderTarget)
		if !ok {
			return nil, fmt.Errorf("target %s is %T", ir.Format(attrs.Get("target")), obj)
		}
		p.Target = rt
	}
	if obj, ok := ctx.Resolve(attrs.Get("shader")); ok {
		s, ok := obj.(*Shader)
		if !ok {
			return nil, fmt.Errorf("shader %s is %T", ir.Format(attrs.Get("shader")), obj)
		}
		p.Shader = s
	}
	return p, nil
}

func patchPass(apply func(p *RenderPass, attrs ir.Attributes)) reconcile.PatchFunc {
	return func(_ *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
		p, ok := obj.(*RenderPass)
		if !ok {
			return fmt.Errorf("expected *RenderPass, got %T", obj)
		}
		apply(p, attrs)
		p.Version++
		return nil
	}
}

// viewportSize reads width and height, falling back to the viewport scaled
// by the pixel ratio.
func viewportSize(ctx *reconcile.Context, attrs ir.Attributes) (int, int) {
	ratio := pixelRatio(ctx, attrs)
	var vw, vh int
	if ctx != nil {
		vw = int(float64(ctx.Viewport.Width) * ratio)
		vh = int(float64(ctx.Viewport.Height) * ratio)
	}
	return intAttr(attrs, "width", vw), intAttr(attrs, "height", vh)
}

func pixelRatio(ctx *reconcile.Context, attrs ir.Attributes) float64 {
	def := 1.0
	if ctx != nil && ctx.Viewport.PixelRatio > 0 {
		def = ctx.Viewport.PixelRatio
	}
	return floatAttr(attrs, "pixelratio", def)
}

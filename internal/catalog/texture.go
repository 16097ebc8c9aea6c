package catalog

import (
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
)

// TextureKind is the texture type identifier.
const TextureKind reconcile.TypeID = "texture"

// Wrap modes.
const (
	WrapClamp  = "clamp"
	WrapRepeat = "repeat"
	WrapMirror = "mirror"
)

// Texture stands in for a GPU texture. Image stays nil until the source
// finishes loading; until then the texture samples as a placeholder.
type Texture struct {
	Src        string
	Image      *loader.Asset
	FlipY      bool
	Wrap       string
	Anisotropy int
	Version    int
	Disposed   bool
}

// Loaded reports whether image data is attached.
func (t *Texture) Loaded() bool {
	return t.Image != nil
}

func textureKind() reconcile.Kind {
	return reconcile.Kind{
		ID:       TextureKind,
		Defaults: []string{"src", "flipy", "wrap", "anisotropy"},
		Patchable: map[string]reconcile.PatchFunc{
			"src":   patchTextureSource,
			"flipy": patchTexture(func(t *Texture, a ir.Attributes) error { t.FlipY = boolAttr(a, "flipy", true); return nil }),
			"wrap": patchTexture(func(t *Texture, a ir.Attributes) error {
				wrap, err := wrapMode(a)
				if err != nil {
					return err
				}
				t.Wrap = wrap
				return nil
			}),
		},
		Slots:   []string{"src"},
		Build:   buildTexture,
		Dispose: disposeTexture,
	}
}

func buildTexture(ctx *reconcile.Context, attrs ir.Attributes) (reconcile.Object, error) {
	wrap, err := wrapMode(attrs)
	if err != nil {
		return nil, err
	}
	image, err := resolveImage(ctx, attrs.Get("src"))
	if err != nil {
		return nil, err
	}
	return &Texture{
		Src:        stringAttr(attrs, "src", ""),
		Image:      image,
		FlipY:      boolAttr(attrs, "flipy", true),
		Wrap:       wrap,
		Anisotropy: intAttr(attrs, "anisotropy", 1),
	}, nil
}

// patchTextureSource re-reads the source. It runs both when src is reassigned
// and when the resource it names finishes loading. A rejected source leaves
// the texture as it was.
func patchTextureSource(ctx *reconcile.Context, obj reconcile.Object, value ir.Value, attrs ir.Attributes) error {
	t, ok := obj.(*Texture)
	if !ok {
		return fmt.Errorf("expected *Texture, got %T", obj)
	}
	image, err := resolveImage(ctx, value)
	if err != nil {
		return err
	}
	t.Src = stringAttr(attrs, "src", "")
	t.Image = image
	t.Version++
	return nil
}

// resolveImage returns the decoded image src names, or nil while it is still
// loading.
func resolveImage(ctx *reconcile.Context, src ir.Value) (*loader.Asset, error) {
	obj, ok := ctx.Resolve(src)
	if !ok {
		return nil, nil
	}
	asset, ok := obj.(*loader.Asset)
	if !ok {
		return nil, fmt.Errorf("src %s is %T, not a loaded asset", ir.Format(src), obj)
	}
	if !asset.IsImage() {
		return nil, fmt.Errorf("src %s is not an image", asset.URL)
	}
	return asset, nil
}

func patchTexture(apply func(t *Texture, attrs ir.Attributes) error) reconcile.PatchFunc {
	return func(ctx *reconcile.Context, obj reconcile.Object, _ ir.Value, attrs ir.Attributes) error {
		t, ok := obj.(*Texture)
		if !ok {
			return fmt.Errorf("expected *Texture, got %T", obj)
		}
		if err := apply(t, attrs); err != nil {
			return err
		}
		t.Version++
		return nil
	}
}

func wrapMode(attrs ir.Attributes) (string, error) {
	wrap := stringAttr(attrs, "wrap", WrapClamp)
	switch wrap {
	case WrapClamp, WrapRepeat, WrapMirror:
		return wrap, nil
	default:
		return "", fmt.Errorf("unknown wrap mode %q", wrap)
	}
}

func disposeTexture(obj reconcile.Object) {
	if t, ok := obj.(*Texture); ok {
		t.Disposed = true
	}
}

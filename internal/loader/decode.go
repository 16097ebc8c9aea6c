package loader

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Registered decoders. DecodeConfig only reads headers.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Asset is a loaded resource.
type Asset struct {
	URL  string
	Data []byte

	// Format, Width and Height are set for recognized image formats.
	Format string
	Width  int
	Height int
}

// IsImage reports whether the asset decoded as an image.
func (a *Asset) IsImage() bool {
	return a != nil && a.Format != ""
}

// Decoder turns fetched bytes into an Asset.
type Decoder func(url string, data []byte) (*Asset, error)

// DecodeAsset reads image headers when the data is a registered image
// format. Anything else is kept as raw data.
func DecodeAsset(url string, data []byte) (*Asset, error) {
	asset := &Asset{URL: url, Data: data}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case err == nil:
		asset.Format = format
		asset.Width = cfg.Width
		asset.Height = cfg.Height
	case errors.Is(err, image.ErrFormat):
	default:
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return asset, nil
}

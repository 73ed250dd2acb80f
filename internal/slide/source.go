// Package slide adapts a decoded image into a served tile pyramid: reading
// pixel regions, downsampling them to a pyramid level, and encoding tiles.
package slide

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Source supplies full-resolution pixel regions of one image. Implementations
// must be safe for concurrent reads.
type Source interface {
	// Bounds returns the full-resolution extent of the image.
	Bounds() image.Rectangle
	// ReadRegion returns the pixels inside r, which must lie within Bounds.
	ReadRegion(r image.Rectangle) (image.Image, error)
}

// ImageSource serves regions out of a decoded in-memory image.
type ImageSource struct {
	img image.Image
}

// NewImageSource wraps an already-decoded image.
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

// Open decodes the image at path into an ImageSource. JPEG, PNG, and GIF
// inputs are accepted.
func Open(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open slide image: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode slide image %s: %w", path, err)
	}
	return &ImageSource{img: img}, nil
}

// Bounds implements Source.
func (s *ImageSource) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// ReadRegion implements Source. The returned image always has its origin at
// (0,0) so callers can scale or encode it without offset bookkeeping.
func (s *ImageSource) ReadRegion(r image.Rectangle) (image.Image, error) {
	if !r.In(s.img.Bounds()) {
		return nil, fmt.Errorf("region %v outside image bounds %v", r, s.img.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), s.img, r.Min, draw.Src)
	return out, nil
}

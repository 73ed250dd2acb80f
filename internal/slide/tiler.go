package slide

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/tilepath/slidehost/internal/dzi"
)

// Tiler binds a pixel Source to its pyramid geometry and produces encoded
// tiles. Tiles are pure functions of their address, so a Tiler is stateless
// and safe for concurrent use.
type Tiler struct {
	src     Source
	pyramid *dzi.Pyramid
	quality int
}

// NewTiler builds the pyramid for the source and fixes the JPEG quality used
// for every tile.
func NewTiler(src Source, tileSize, quality int) (*Tiler, error) {
	b := src.Bounds()
	p, err := dzi.NewPyramid(b.Dx(), b.Dy(), tileSize)
	if err != nil {
		return nil, err
	}
	return &Tiler{src: src, pyramid: p, quality: quality}, nil
}

// Pyramid exposes the underlying geometry.
func (t *Tiler) Pyramid() *dzi.Pyramid { return t.pyramid }

// Tile renders and encodes one tile. The address is validated against the
// grid first; dzi.ErrOutOfRange propagates for invalid coordinates.
func (t *Tiler) Tile(level, col, row int, format Format) ([]byte, error) {
	bounds, err := t.pyramid.TileBounds(level, col, row)
	if err != nil {
		return nil, err
	}
	scale, err := t.pyramid.Scale(level)
	if err != nil {
		return nil, err
	}

	// Map level coordinates back onto the full-resolution image, clamped to
	// the source extent so clipped edge tiles stay in bounds.
	full := t.src.Bounds()
	srcRect := image.Rect(
		bounds.Min.X*scale,
		bounds.Min.Y*scale,
		min(bounds.Max.X*scale, full.Dx()),
		min(bounds.Max.Y*scale, full.Dy()),
	).Add(full.Min)

	region, err := t.src.ReadRegion(srcRect)
	if err != nil {
		return nil, fmt.Errorf("read region for tile %d/%d_%d: %w", level, col, row, err)
	}

	tile := region
	if scale != 1 {
		dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), region, region.Bounds(), xdraw.Src, nil)
		tile = dst
	}
	return Encode(tile, format, t.quality)
}

// Package dzi implements Deep Zoom tile-pyramid addressing: level geometry,
// tile grids, tile pixel bounds, and the XML manifest served to viewers.
package dzi

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
)

// ErrOutOfRange reports a tile address outside the pyramid grid.
var ErrOutOfRange = errors.New("tile address out of range")

// Pyramid describes the level geometry of one tiled image. Level 0 is the
// coarsest (1x1) level; LevelCount-1 is full resolution. All methods are pure
// and safe for concurrent use.
type Pyramid struct {
	width      int
	height     int
	tileSize   int
	levelCount int
}

// NewPyramid builds the geometry for a width x height image cut into
// tileSize tiles.
func NewPyramid(width, height, tileSize int) (*Pyramid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pyramid dimensions must be positive, got %dx%d", width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}
	longest := width
	if height > longest {
		longest = height
	}
	// Halvings from full resolution down to 1x1, inclusive of both ends.
	levels := bits.Len(uint(longest-1)) + 1
	return &Pyramid{
		width:      width,
		height:     height,
		tileSize:   tileSize,
		levelCount: levels,
	}, nil
}

// LevelCount returns the number of zoom levels.
func (p *Pyramid) LevelCount() int { return p.levelCount }

// Width returns the full-resolution pixel width.
func (p *Pyramid) Width() int { return p.width }

// Height returns the full-resolution pixel height.
func (p *Pyramid) Height() int { return p.height }

// TileSize returns the edge length of an unclipped tile.
func (p *Pyramid) TileSize() int { return p.tileSize }

// Scale returns the downsample factor between the given level and full
// resolution.
func (p *Pyramid) Scale(level int) (int, error) {
	if level < 0 || level >= p.levelCount {
		return 0, fmt.Errorf("level %d: %w", level, ErrOutOfRange)
	}
	return 1 << (p.levelCount - 1 - level), nil
}

// LevelSize returns the pixel dimensions of the image at the given level.
// Dimensions halve per level, rounding up, and never drop below one pixel.
func (p *Pyramid) LevelSize(level int) (w, h int, err error) {
	scale, err := p.Scale(level)
	if err != nil {
		return 0, 0, err
	}
	return ceilDiv(p.width, scale), ceilDiv(p.height, scale), nil
}

// Grid returns the tile grid dimensions at the given level.
func (p *Pyramid) Grid(level int) (cols, rows int, err error) {
	w, h, err := p.LevelSize(level)
	if err != nil {
		return 0, 0, err
	}
	return ceilDiv(w, p.tileSize), ceilDiv(h, p.tileSize), nil
}

// TileBounds returns the pixel bounds of a tile in level coordinates. Edge
// tiles are clipped to the remaining pixels, never padded. It fails with
// ErrOutOfRange when level, col, or row fall outside the grid.
func (p *Pyramid) TileBounds(level, col, row int) (image.Rectangle, error) {
	cols, rows, err := p.Grid(level)
	if err != nil {
		return image.Rectangle{}, err
	}
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return image.Rectangle{}, fmt.Errorf("tile (%d,%d) at level %d: %w", col, row, level, ErrOutOfRange)
	}
	w, h, _ := p.LevelSize(level)
	x0 := col * p.tileSize
	y0 := row * p.tileSize
	x1 := min(x0+p.tileSize, w)
	y1 := min(y0+p.tileSize, h)
	return image.Rect(x0, y0, x1, y1), nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

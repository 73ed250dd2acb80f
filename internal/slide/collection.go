package slide

import (
	"fmt"

	"github.com/tilepath/slidehost/internal/dzi"
)

// PrimarySlug is the reserved name of the main slide pyramid.
const PrimarySlug = "slide"

// ErrUnknownSlide reports a slug with no registered pyramid.
type ErrUnknownSlide struct {
	Slug string
}

func (e *ErrUnknownSlide) Error() string {
	return fmt.Sprintf("unknown slide %q", e.Slug)
}

// Collection holds the primary slide pyramid plus the pyramids of its named
// associated images (label, macro, thumbnail, ...). Each pyramid has its own
// grid; they share the tile size and quality setting. The collection is built
// once at startup and read-only afterwards.
type Collection struct {
	tilers map[string]*Tiler
	names  []string // associated display names, in registration order
}

// NewCollection registers the primary source under PrimarySlug.
func NewCollection(primary Source, tileSize, quality int) (*Collection, error) {
	t, err := NewTiler(primary, tileSize, quality)
	if err != nil {
		return nil, fmt.Errorf("build primary pyramid: %w", err)
	}
	return &Collection{tilers: map[string]*Tiler{PrimarySlug: t}}, nil
}

// AddAssociated registers an associated image under its slugified name.
func (c *Collection) AddAssociated(name string, src Source) error {
	slug := dzi.Slugify(name)
	if _, exists := c.tilers[slug]; exists {
		return fmt.Errorf("associated image slug %q already registered", slug)
	}
	primary := c.tilers[PrimarySlug]
	t, err := NewTiler(src, primary.Pyramid().TileSize(), primary.quality)
	if err != nil {
		return fmt.Errorf("build pyramid for associated image %q: %w", name, err)
	}
	c.tilers[slug] = t
	c.names = append(c.names, name)
	return nil
}

// Resolve returns the tiler for a slug, or *ErrUnknownSlide.
func (c *Collection) Resolve(slug string) (*Tiler, error) {
	t, ok := c.tilers[slug]
	if !ok {
		return nil, &ErrUnknownSlide{Slug: slug}
	}
	return t, nil
}

// Primary returns the main slide tiler.
func (c *Collection) Primary() *Tiler {
	return c.tilers[PrimarySlug]
}

// AssociatedNames lists associated image display names in registration order.
func (c *Collection) AssociatedNames() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

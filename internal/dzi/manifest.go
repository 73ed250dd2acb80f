package dzi

import (
	"encoding/xml"
	"fmt"
)

// deepZoomNS is the schema namespace expected by Deep Zoom viewers.
const deepZoomNS = "http://schemas.microsoft.com/deepzoom/2008"

type manifestImage struct {
	XMLName  xml.Name     `xml:"Image"`
	Xmlns    string       `xml:"xmlns,attr"`
	Format   string       `xml:"Format,attr"`
	Overlap  int          `xml:"Overlap,attr"`
	TileSize int          `xml:"TileSize,attr"`
	Size     manifestSize `xml:"Size"`
}

type manifestSize struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

// Manifest renders the DZI descriptor for the pyramid. Clients use it to
// compute tile addresses without guessing: it names the full-resolution size,
// the tile size, and the encoding format.
func (p *Pyramid) Manifest(format string) ([]byte, error) {
	doc := manifestImage{
		Xmlns:    deepZoomNS,
		Format:   format,
		Overlap:  0,
		TileSize: p.tileSize,
		Size:     manifestSize{Width: p.width, Height: p.height},
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal dzi manifest: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

package dzi

// Metadata carries the read-only pyramid properties computed once at image
// load. It is embedded by value into every run descriptor and shared by the
// tile handlers.
type Metadata struct {
	LevelCount             int
	Width                  int
	Height                 int
	TileSize               int
	ObjectiveMagnification float64
	MicronsPerPixel        float64
}

// Metadata snapshots the pyramid geometry together with the acquisition
// properties supplied by the image provider.
func (p *Pyramid) Metadata(objectiveMagnification, micronsPerPixel float64) Metadata {
	return Metadata{
		LevelCount:             p.levelCount,
		Width:                  p.width,
		Height:                 p.height,
		TileSize:               p.tileSize,
		ObjectiveMagnification: objectiveMagnification,
		MicronsPerPixel:        micronsPerPixel,
	}
}

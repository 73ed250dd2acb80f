package slide

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// Format is a supported tile encoding.
type Format string

// Tile encodings accepted by Deep Zoom clients.
const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat maps a URL extension onto a Format. Anything but jpeg/png is
// rejected; the caller treats that as an addressing error.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJPEG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported tile format %q", s)
	}
}

// ContentType returns the MIME type for the encoding.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Encode serializes img in the requested format. JPEG uses the fixed quality
// setting; PNG is lossless and ignores it.
func Encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg tile: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png tile: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported tile format %q", format)
	}
	return buf.Bytes(), nil
}

package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format encodes an image into one output representation.
type Format interface {
	// Name is the short identifier used in logs and history records.
	Name() string
	// Ext is the file extension without the leading dot.
	Ext() string
	Encode(w io.Writer, img image.Image) error
}

// Decode opens and decodes the image at path, applying EXIF orientation.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ResizeToWidth scales img to the given width, preserving aspect ratio.
// Narrower sources are upscaled.
func ResizeToWidth(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// WebP is a lossy WebP encoding at a fixed quality (0-100).
type WebP struct {
	Quality int
}

func (WebP) Name() string { return "webp" }

func (WebP) Ext() string { return "webp" }

func (f WebP) Encode(w io.Writer, img image.Image) error {
	if err := webp.Encode(w, img, &webp.Options{Quality: float32(f.Quality)}); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	return nil
}

// PNG is a lossless PNG encoding at a zlib-style compression level (0-9).
type PNG struct {
	Level int
}

func (PNG) Name() string { return "png" }

func (PNG) Ext() string { return "png" }

func (f PNG) Encode(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(PNGCompression(f.Level))); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGCompression maps a 0-9 level onto the presets image/png exposes.
func PNGCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// Formats returns the output encodings in the order they are written for
// each width: WebP first, PNG as the fallback.
func Formats(webpQuality, pngLevel int) []Format {
	return []Format{
		WebP{Quality: webpQuality},
		PNG{Level: pngLevel},
	}
}

// Package imagefmt detects image format and pixel dimensions without
// decoding pixel data, beyond JPEG bytes which pass through verbatim into
// DCTDecode streams per the toolkit's image non-goal.
package imagefmt

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatBMP
	FormatTIFF
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	case FormatBMP:
		return "BMP"
	case FormatTIFF:
		return "TIFF"
	default:
		return "Unknown"
	}
}

var ErrUnsupportedFormat = errors.New("imagefmt: unsupported image format")

// Dimensions holds the pixel size and detected format of an image payload.
type Dimensions struct {
	Format Format
	Width  int
	Height int
}

// Sniff inspects data's header bytes (via image.DecodeConfig, which reads
// only enough of the stream to report dimensions) and classifies it as
// JPEG, PNG, BMP, or TIFF. JPEG payloads are never fully decoded elsewhere
// in the toolkit; this is the one place their header is read.
func Sniff(data []byte) (Dimensions, error) {
	cfg, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return Dimensions{Format: formatFromName(formatName), Width: cfg.Width, Height: cfg.Height}, nil
	}

	if cfg, bmpErr := bmp.DecodeConfig(bytes.NewReader(data)); bmpErr == nil {
		return Dimensions{Format: FormatBMP, Width: cfg.Width, Height: cfg.Height}, nil
	}
	if cfg, tiffErr := tiff.DecodeConfig(bytes.NewReader(data)); tiffErr == nil {
		return Dimensions{Format: FormatTIFF, Width: cfg.Width, Height: cfg.Height}, nil
	}
	return Dimensions{}, ErrUnsupportedFormat
}

func formatFromName(name string) Format {
	switch name {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "bmp":
		return FormatBMP
	case "tiff":
		return FormatTIFF
	default:
		return FormatUnknown
	}
}

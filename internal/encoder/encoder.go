package encoder

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Format is an output image format.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// DefaultQuality is used for JPEG when no valid quality is supplied.
const DefaultQuality = 85

// ErrUnknownFormat is returned by ParseFormat for names other than jpeg/jpg/png.
var ErrUnknownFormat = errors.New("unknown image format")

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format.
	Format() Format

	// Encode converts the image to bytes at the given quality (1-100).
	// Formats without a quality axis ignore it.
	Encode(img image.Image, quality int) ([]byte, error)

	// Extension returns the file extension without dot.
	Extension() string
}

// EncodeError reports an image that could not be brought into the color
// space the target format requires, or that the encoder rejected.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ParseFormat normalizes a format name. Matching is case-insensitive and
// "jpg" is accepted as JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromFilename picks the output format from a file extension.
// Anything that is not .png becomes JPEG.
func FormatFromFilename(name string) Format {
	if f, err := ParseFormat(filepath.Ext(name)); err == nil {
		return f
	}
	return JPEG
}

// Encode serializes img in the given format. quality only applies to JPEG.
func Encode(img image.Image, format Format, quality int, optimize bool) ([]byte, error) {
	switch format {
	case JPEG:
		return (&JPEGEncoder{Optimize: optimize}).Encode(img, quality)
	case PNG:
		return (&PNGEncoder{Optimize: optimize}).Encode(img, quality)
	}
	return nil, &EncodeError{Format: format, Err: ErrUnknownFormat}
}

func checkImage(format Format, img image.Image) error {
	if img == nil {
		return &EncodeError{Format: format, Err: errors.New("nil image")}
	}
	if img.Bounds().Empty() {
		return &EncodeError{Format: format, Err: fmt.Errorf("empty bounds %v", img.Bounds())}
	}
	return nil
}

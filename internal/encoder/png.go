package encoder

import (
	"bytes"
	"image"
	"image/png"
)

// PNGEncoder encodes images to PNG using Go's standard library.
// Quality is ignored; Optimize selects the slowest, smallest zlib level.
type PNGEncoder struct {
	Optimize bool
}

func (e *PNGEncoder) Format() Format    { return PNG }
func (e *PNGEncoder) Extension() string { return "png" }

func (e *PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	if err := checkImage(PNG, img); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	level := png.DefaultCompression
	if e.Optimize {
		level = png.BestCompression
	}
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, &EncodeError{Format: PNG, Err: err}
	}
	return buf.Bytes(), nil
}

package encoder

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
)

// JPEGEncoder encodes images to JPEG.
//
// With Optimize set the image goes through jpegli with optimized Huffman
// coding and adaptive quantization; otherwise Go's image/jpeg is used.
// Both subsample chroma 4:2:0.
type JPEGEncoder struct {
	Optimize bool
}

func (e *JPEGEncoder) Format() Format    { return JPEG }
func (e *JPEGEncoder) Extension() string { return "jpg" }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkImage(JPEG, img); err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024)

	var err error
	if e.Optimize {
		err = jpegli.Encode(&buf, toOpaque(img), &jpegli.EncodingOptions{
			Quality:              quality,
			ChromaSubsampling:    image.YCbCrSubsampleRatio420,
			OptimizeCoding:       true,
			AdaptiveQuantization: true,
		})
	} else {
		err = jpeg.Encode(&buf, toOpaque(img), &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, &EncodeError{Format: JPEG, Err: err}
	}
	return buf.Bytes(), nil
}

// toOpaque returns an image JPEG can carry without losing color: grayscale
// and YCbCr pass through, opaque RGB passes through, anything with alpha or
// a palette is copied to NRGBA with alpha forced to 255. The straight
// (unpremultiplied) color is kept, so transparent areas keep their hue
// instead of turning black.
func toOpaque(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr:
		return img
	case *image.Paletted:
		return flatten(img)
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	return flatten(img)
}

func flatten(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

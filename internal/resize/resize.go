// Package resize scales images by a signed percentage of their size.
package resize

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Bounds of the percent change accepted by ValidatePercent.
const (
	MinPercent = -80
	MaxPercent = 200
)

var ErrPercentOutOfRange = errors.New("percent change out of range")

// ValidatePercent checks p against [MinPercent, MaxPercent].
func ValidatePercent(p int) error {
	if p < MinPercent || p > MaxPercent {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPercentOutOfRange, p, MinPercent, MaxPercent)
	}
	return nil
}

// Dimensions scales w and h by (100+p)/100, rounding half up and never
// going below 1. Both axes use the same factor.
func Dimensions(w, h, p int) (int, int) {
	return scale(w, p), scale(h, p)
}

func scale(x, p int) int {
	f := 100 + p
	if f <= 0 {
		return 1
	}
	n := (x*f + 50) / 100
	if n < 1 {
		n = 1
	}
	return n
}

// Resize returns a new image scaled by p percent using Lanczos resampling.
// p == 0 returns a copy with the same dimensions. img is never modified.
func Resize(img image.Image, p int) *image.NRGBA {
	b := img.Bounds()
	if p == 0 {
		return imaging.Clone(img)
	}
	w, h := Dimensions(b.Dx(), b.Dy(), p)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

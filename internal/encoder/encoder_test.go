package encoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: alpha,
			})
		}
	}
	return img
}

func noisy(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := gradient(w, h, 255)
	for i := 2; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"jpeg", JPEG, false},
		{"JPG", JPEG, false},
		{"Jpeg", JPEG, false},
		{".jpg", JPEG, false},
		{"PNG", PNG, false},
		{"gif", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := map[string]Format{
		"photo.jpg":         JPEG,
		"photo.JPEG":        JPEG,
		"logo.png":          PNG,
		"logo.PNG":          PNG,
		"scan.webp":         JPEG,
		"resized_image":     JPEG,
		"dir.png/image.jpg": JPEG,
	}
	for name, want := range tests {
		assert.Equal(t, want, FormatFromFilename(name), name)
	}
}

func TestJPEG_DropsAlpha(t *testing.T) {
	img := gradient(64, 48, 0)

	data, err := Encode(img, JPEG, 90, true)
	require.NoError(t, err)

	out, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), out.Bounds().Size())

	// Fully transparent pixels keep their straight color, not black.
	r, g, b, _ := out.At(63, 47).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Greater(t, g>>8, uint32(200))
	assert.Greater(t, b>>8, uint32(100))
}

func TestJPEG_GrayStaysGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	assert.Same(t, image.Image(img), toOpaque(img))

	for _, optimize := range []bool{false, true} {
		data, err := Encode(img, JPEG, 80, optimize)
		require.NoError(t, err)

		out, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		_, ok := out.(*image.Gray)
		assert.True(t, ok, "optimize=%v: expected grayscale decode, got %T", optimize, out)
	}
}

func TestJPEG_OptimizeChangesOutput(t *testing.T) {
	img := noisy(200, 150)

	plain, err := Encode(img, JPEG, 80, false)
	require.NoError(t, err)
	opt, err := Encode(img, JPEG, 80, true)
	require.NoError(t, err)

	assert.NotEqual(t, plain, opt)
	assert.LessOrEqual(t, len(opt), len(plain))

	out, err := jpeg.Decode(bytes.NewReader(opt))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 150), out.Bounds().Size())
}

func TestJPEG_OptimizedSizeRisesWithQuality(t *testing.T) {
	img := noisy(160, 120)

	prev := 0
	for _, q := range []int{10, 40, 70, 95} {
		data, err := Encode(img, JPEG, q, true)
		require.NoError(t, err)
		assert.Greater(t, len(data), prev, "quality %d", q)
		prev = len(data)
	}
}

func TestJPEG_PalettedIsFlattened(t *testing.T) {
	pal := color.Palette{color.NRGBA{255, 0, 0, 255}, color.NRGBA{0, 0, 255, 0}}
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)

	flat := toOpaque(img)
	nrgba, ok := flat.(*image.NRGBA)
	require.True(t, ok)
	assert.False(t, HasAlpha(nrgba))

	_, err := Encode(img, JPEG, 75, false)
	require.NoError(t, err)
}

func TestJPEG_InvalidQualityUsesDefault(t *testing.T) {
	img := gradient(32, 32, 255)

	def, err := Encode(img, JPEG, DefaultQuality, true)
	require.NoError(t, err)
	for _, q := range []int{0, -3, 101} {
		got, err := Encode(img, JPEG, q, true)
		require.NoError(t, err)
		assert.Equal(t, def, got, "quality %d", q)
	}
}

func TestEncode_EmptyImage(t *testing.T) {
	for _, f := range []Format{JPEG, PNG} {
		_, err := Encode(image.NewNRGBA(image.Rect(0, 0, 0, 10)), f, 80, true)
		var encErr *EncodeError
		require.True(t, errors.As(err, &encErr), "format %s: %v", f, err)
		assert.Equal(t, f, encErr.Format)

		_, err = Encode(nil, f, 80, true)
		assert.True(t, errors.As(err, &encErr))
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(gradient(4, 4, 255), Format("gif"), 80, true)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestPNG_RoundTripKeepsDimensions(t *testing.T) {
	img := gradient(123, 45, 200)

	data, err := Encode(img, PNG, 0, true)
	require.NoError(t, err)

	out, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(123, 45), out.Bounds().Size())
	assert.True(t, HasAlpha(out))
}

func TestPNG_IgnoresQuality(t *testing.T) {
	img := gradient(40, 40, 255)

	a, err := Encode(img, PNG, 5, true)
	require.NoError(t, err)
	b, err := Encode(img, PNG, 95, true)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPNG_OptimizeNotLarger(t *testing.T) {
	img := gradient(200, 120, 255)

	plain, err := Encode(img, PNG, 0, false)
	require.NoError(t, err)
	opt, err := Encode(img, PNG, 0, true)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(opt), len(plain))
}

func TestEncode_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Encode(gradient(50+i, 30, 255), JPEG, 50+i, true)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(true)
	assert.Equal(t, []Format{JPEG, PNG}, r.Available())
	assert.Equal(t, "jpg", r.Get(JPEG).Extension())
	assert.Equal(t, "png", r.Get(PNG).Extension())
	assert.Nil(t, r.Get(Format("webp")))
	assert.Equal(t, "encoders: jpeg, png", r.String())
}

package server

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUpload(t *testing.T, query string, payload []byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "upload.png")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/images"+query, body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func newTestRouter(t *testing.T, cfg Config) http.Handler {
	cfg.Logger = zaptest.NewLogger(t)
	return NewRouter(NewService(cfg))
}

// brokenWriter accepts headers but fails every body write, like a client
// that hung up.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := NewRouter(NewService(Config{Logger: zap.New(core)}))

	w := brokenWriter{httptest.NewRecorder()}
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = brokenWriter{httptest.NewRecorder()}
	router.ServeHTTP(w, newUpload(t, "?percent=-50", testPNG(t, 40, 40)))
	assert.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("write response failed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "connection reset", entries[1].ContextMap()["error"])
}

func TestHealth(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, wr.Code)
	assert.Equal(t, "ok", wr.Body.String())
}

func TestResize_JPEGDefault(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, newUpload(t, "?percent=-50", testPNG(t, 120, 80)))

	require.Equal(t, http.StatusOK, wr.Code, wr.Body.String())
	assert.Equal(t, "image/jpeg", wr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="resized_image.jpg"`, wr.Header().Get("Content-Disposition"))
	assert.Equal(t, "85", wr.Header().Get(HeaderQuality))
	assert.Equal(t, "60", wr.Header().Get(HeaderWidth))
	assert.Equal(t, "40", wr.Header().Get(HeaderHeight))
	assert.Len(t, wr.Header().Get(HeaderHash), 16)
	assert.Empty(t, wr.Header().Get(HeaderTargetMet))

	img, err := jpeg.Decode(wr.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(60, 40), img.Bounds().Size())
}

func TestResize_PNGByFilename(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr,
		newUpload(t, "?percent=100&target_kb=1&filename=big.png", testPNG(t, 20, 10)))

	require.Equal(t, http.StatusOK, wr.Code, wr.Body.String())
	assert.Equal(t, "image/png", wr.Header().Get("Content-Type"))
	assert.Empty(t, wr.Header().Get(HeaderQuality))

	img, err := png.Decode(wr.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 20), img.Bounds().Size())
}

func TestResize_TargetUnmet(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, newUpload(t, "?target_kb=0", testPNG(t, 64, 64)))
	require.Equal(t, http.StatusOK, wr.Code)
	assert.Empty(t, wr.Header().Get(HeaderTargetMet), "target 0 disables the search")

	wr = httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, newUpload(t, "?target_kb=1000", testPNG(t, 64, 64)))
	require.Equal(t, http.StatusOK, wr.Code)
	assert.Equal(t, "true", wr.Header().Get(HeaderTargetMet))
	assert.Equal(t, "95", wr.Header().Get(HeaderQuality))
}

func TestResize_Save(t *testing.T) {
	dir := t.TempDir()
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{OutDir: dir}).ServeHTTP(wr,
		newUpload(t, "?save=true&filename=../../escape.jpg", testPNG(t, 32, 32)))

	require.Equal(t, http.StatusOK, wr.Code)
	want := filepath.Join(dir, "escape.jpg")
	assert.Equal(t, want, wr.Header().Get(HeaderSaved))

	saved, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, wr.Body.Bytes(), saved)
}

func TestResize_SaveFailureIsNotFatal(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, newUpload(t, "?save=1", testPNG(t, 16, 16)))

	require.Equal(t, http.StatusOK, wr.Code)
	assert.NotEmpty(t, wr.Header().Get(HeaderSaveError))
	assert.NotZero(t, wr.Body.Len())
}

func TestResize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		payload []byte
		cfg     Config
		want    int
	}{
		{"bad percent", "?percent=abc", nil, Config{}, http.StatusBadRequest},
		{"bad target", "?target_kb=x", nil, Config{}, http.StatusBadRequest},
		{"bad save", "?save=maybe", nil, Config{}, http.StatusBadRequest},
		{"percent out of range", "?percent=500", nil, Config{}, http.StatusBadRequest},
		{"not an image", "", []byte("hello"), Config{}, http.StatusUnprocessableEntity},
		{"too large", "", bytes.Repeat([]byte{0xff}, 64<<10), Config{MaxUploadBytes: 1024}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.payload
			if payload == nil {
				payload = testPNG(t, 8, 8)
			}
			wr := httptest.NewRecorder()
			newTestRouter(t, tt.cfg).ServeHTTP(wr, newUpload(t, tt.query, payload))
			assert.Equal(t, tt.want, wr.Code, wr.Body.String())
		})
	}
}

func TestResize_MissingFile(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/images", nil)
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, r)
	assert.Equal(t, http.StatusBadRequest, wr.Code)
}

func TestResize_MethodNotAllowed(t *testing.T) {
	wr := httptest.NewRecorder()
	newTestRouter(t, Config{}).ServeHTTP(wr, httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, wr.Code)
}

// Package server exposes the resize pipeline over HTTP: upload an image,
// get the exported bytes back.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AnyUserName/imgfit/internal/encoder"
	"github.com/AnyUserName/imgfit/internal/pipeline"
	"github.com/AnyUserName/imgfit/internal/quality"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultFilename = "resized_image.jpg"

// Response headers describing the export.
const (
	HeaderQuality   = "X-Imgfit-Quality"
	HeaderSizeKB    = "X-Imgfit-Size-KB"
	HeaderTargetMet = "X-Imgfit-Target-Met"
	HeaderWidth     = "X-Imgfit-Width"
	HeaderHeight    = "X-Imgfit-Height"
	HeaderHash      = "X-Imgfit-Hash"
	HeaderSaved     = "X-Imgfit-Saved"
	HeaderSaveError = "X-Imgfit-Save-Error"
)

// Config holds server parameters.
type Config struct {
	// OutDir receives exports when a request sets save=true. Empty
	// disables saving.
	OutDir         string
	MaxUploadBytes int64
	Bounds         quality.Bounds
	DefaultQuality int
	Logger         *zap.Logger
}

// Service handles image requests.
type Service struct {
	cfg  Config
	pipe *pipeline.Pipeline
	log  *zap.Logger
}

// NewService returns a handler service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Service{
		cfg:  cfg,
		pipe: pipeline.New(pipeline.Config{Logger: cfg.Logger}),
		log:  cfg.Logger,
	}
}

// NewRouter wires the service routes.
func NewRouter(s *Service) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/images", s.Resize).Methods(http.MethodPost)
	return router
}

// Health reports liveness.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	s.response(w, []byte("ok"), http.StatusOK)
}

// Resize decodes the uploaded "file" field, resizes and encodes it, and
// answers with the exported bytes.
//
// Query parameters: percent, target_kb, filename (its extension selects
// the format), save.
func (s *Service) Resize(w http.ResponseWriter, r *http.Request) {
	req, save, err := parseParams(r)
	if err != nil {
		s.response(w, []byte(fmt.Sprintf("invalid params: %v", err)), http.StatusBadRequest)
		return
	}
	req.Bounds = s.cfg.Bounds
	req.DefaultQuality = s.cfg.DefaultQuality

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.response(w, []byte("upload too large"), http.StatusRequestEntityTooLarge)
			return
		}
		s.response(w, []byte(fmt.Sprintf("error reading upload: %v", err)), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.response(w, []byte(fmt.Sprintf("error reading upload: %v", err)), http.StatusBadRequest)
		return
	}

	res, err := s.pipe.Run(data, req)
	if err != nil {
		var de *pipeline.DecodeError
		switch {
		case errors.As(err, &de):
			s.response(w, []byte(err.Error()), http.StatusUnprocessableEntity)
		case pipeline.IsUserError(err):
			s.response(w, []byte(err.Error()), http.StatusBadRequest)
		default:
			s.log.Error("resize failed", zap.Error(err))
			s.response(w, []byte(err.Error()), http.StatusInternalServerError)
		}
		return
	}

	h := w.Header()
	if save {
		path, err := s.save(req.Filename, res.Data)
		if err != nil {
			s.log.Warn("save failed", zap.Error(err))
			h.Set(HeaderSaveError, err.Error())
		} else {
			h.Set(HeaderSaved, path)
		}
	}

	b := res.Preview.Bounds()
	h.Set("Content-Type", contentType(res.Format))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(req.Filename)))
	if res.Format == encoder.JPEG {
		h.Set(HeaderQuality, strconv.Itoa(res.Quality))
	}
	h.Set(HeaderSizeKB, strconv.FormatFloat(res.SizeKB(), 'f', 1, 64))
	if res.TargetKB > 0 {
		h.Set(HeaderTargetMet, strconv.FormatBool(res.TargetMet))
	}
	h.Set(HeaderWidth, strconv.Itoa(b.Dx()))
	h.Set(HeaderHeight, strconv.Itoa(b.Dy()))
	h.Set(HeaderHash, res.Hash)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		s.log.Debug("write response failed", zap.Error(err))
	}
}

func (s *Service) save(filename string, data []byte) (string, error) {
	if s.cfg.OutDir == "" {
		return "", errors.New("saving is disabled")
	}
	path := filepath.Join(s.cfg.OutDir, filepath.Base(filename))
	if err := pipeline.Save(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func parseParams(r *http.Request) (pipeline.Request, bool, error) {
	q := r.URL.Query()
	req := pipeline.Request{
		Filename: defaultFilename,
		Optimize: true,
	}

	var err error
	if v := q.Get("percent"); v != "" {
		if req.Percent, err = strconv.Atoi(v); err != nil {
			return req, false, fmt.Errorf("invalid percent %q", v)
		}
	}
	if v := q.Get("target_kb"); v != "" {
		if req.TargetKB, err = strconv.Atoi(v); err != nil {
			return req, false, fmt.Errorf("invalid target_kb %q", v)
		}
	}
	if v := strings.TrimSpace(q.Get("filename")); v != "" {
		req.Filename = v
	}

	save := false
	if v := q.Get("save"); v != "" {
		if save, err = strconv.ParseBool(v); err != nil {
			return req, false, fmt.Errorf("invalid save %q", v)
		}
	}
	return req, save, nil
}

func contentType(f encoder.Format) string {
	if f == encoder.PNG {
		return "image/png"
	}
	return "image/jpeg"
}

func (s *Service) response(w http.ResponseWriter, data []byte, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		s.log.Debug("write response failed", zap.Int("status", statusCode), zap.Error(err))
	}
}

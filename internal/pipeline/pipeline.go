package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/AnyUserName/imgfit/internal/encoder"
	"github.com/AnyUserName/imgfit/internal/hasher"
	"github.com/AnyUserName/imgfit/internal/quality"
	"github.com/AnyUserName/imgfit/internal/resize"
	"go.uber.org/zap"
)

// Config holds the parameters shared by every run.
type Config struct {
	Logger *zap.Logger
}

// Request describes one resize/export run.
type Request struct {
	Percent  int
	TargetKB int // <= 0 disables the quality search
	Filename string
	// Bounds for the quality search; zero value means quality.DefaultBounds.
	Bounds quality.Bounds
	// DefaultQuality is used for JPEG when no target is set; 0 means
	// encoder.DefaultQuality.
	DefaultQuality int
	Optimize       bool
}

// Result is everything the caller needs to preview and export an image.
type Result struct {
	Original image.Image
	Preview  *image.NRGBA
	Format   encoder.Format
	Data     []byte
	// Quality is the JPEG quality used; 0 for PNG.
	Quality   int
	TargetKB  int
	TargetMet bool
	Searched  bool
	Probes    []quality.Probe
	Hash      string
}

// SizeKB returns the exported size in kilobytes.
func (r *Result) SizeKB() float64 { return float64(len(r.Data)) / 1024 }

// Summary is a one-line human readable report of the export.
func (r *Result) Summary() string {
	var b strings.Builder
	w, h := r.Preview.Bounds().Dx(), r.Preview.Bounds().Dy()
	fmt.Fprintf(&b, "%dx%d %s, %.1f KB", w, h, r.Format, r.SizeKB())
	if r.Format == encoder.JPEG {
		fmt.Fprintf(&b, " at quality %d", r.Quality)
	}
	if r.TargetKB > 0 {
		if r.TargetMet {
			fmt.Fprintf(&b, " (target %d KB met)", r.TargetKB)
		} else {
			fmt.Fprintf(&b, " (target %d KB not reachable, smallest achievable)", r.TargetKB)
		}
	}
	return b.String()
}

// Pipeline runs resize, quality search and encode.
type Pipeline struct {
	log *zap.Logger
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{log: cfg.Logger}
}

// Run decodes data and processes it. A *DecodeError means the upload
// is not a readable JPEG or PNG.
func (p *Pipeline) Run(data []byte, req Request) (*Result, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Process(img, req)
}

// Process resizes img, then encodes it in the format chosen by
// req.Filename. JPEG output with a target size goes through the quality
// search; PNG output is a single optimized encode whatever the target.
func (p *Pipeline) Process(img image.Image, req Request) (*Result, error) {
	if err := resize.ValidatePercent(req.Percent); err != nil {
		return nil, err
	}
	bounds := req.Bounds
	if bounds == (quality.Bounds{}) {
		bounds = quality.DefaultBounds
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	format := encoder.FormatFromFilename(req.Filename)
	res := &Result{
		Original: img,
		Format:   format,
		TargetKB: req.TargetKB,
	}

	res.Preview = resize.Resize(img, req.Percent)
	p.log.Debug("resized",
		zap.Int("percent", req.Percent),
		zap.Stringer("from", img.Bounds().Size()),
		zap.Stringer("to", res.Preview.Bounds().Size()))

	// Grayscale sources export as single-channel images.
	var out image.Image = res.Preview
	if isGray(img) {
		out = toGray(res.Preview)
	}

	reg := encoder.NewRegistry(req.Optimize)
	p.log.Debug("encoding", zap.Stringer("registry", reg), zap.String("format", string(format)))
	enc := reg.Get(format)
	switch {
	case format == encoder.JPEG && req.TargetKB > 0:
		s := quality.NewSearcher(enc,
			quality.WithBounds(bounds),
			quality.WithLogger(p.log))
		sr, err := s.Search(out, req.TargetKB)
		if err != nil {
			return nil, fmt.Errorf("quality search: %w", err)
		}
		res.Data = sr.Data
		res.Quality = sr.Quality
		res.TargetMet = sr.Met
		res.Probes = sr.Probes
		res.Searched = true
		if !sr.Met {
			p.log.Warn("target size not reachable",
				zap.Int("target_kb", req.TargetKB),
				zap.Float64("achieved_kb", sr.SizeKB()),
				zap.Int("quality", sr.Quality))
		}

	default:
		q := 0
		if format == encoder.JPEG {
			q = req.DefaultQuality
			if q <= 0 || q > 100 {
				q = encoder.DefaultQuality
			}
		}
		data, err := enc.Encode(out, q)
		if err != nil {
			return nil, err
		}
		res.Data = data
		res.Quality = q
		res.TargetMet = req.TargetKB <= 0 || len(data) <= req.TargetKB*1024
	}

	res.Hash = hasher.ContentHash(res.Data, hasher.DigestLen)
	p.log.Info("exported",
		zap.String("format", string(format)),
		zap.Int("size", len(res.Data)),
		zap.Int("quality", res.Quality),
		zap.Bool("target_met", res.TargetMet))
	return res, nil
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// IsUserError reports whether err stems from bad input rather than from
// the process itself.
func IsUserError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) ||
		errors.Is(err, resize.ErrPercentOutOfRange) ||
		errors.Is(err, quality.ErrInvalidBounds)
}

// Package quality finds the highest JPEG quality whose encoding fits a
// size budget.
package quality

import (
	"errors"
	"fmt"
	"image"

	"github.com/AnyUserName/imgfit/internal/encoder"
	"go.uber.org/zap"
)

var (
	// ErrNoTarget is returned for a target of zero or less. Callers encode
	// at a fixed quality instead.
	ErrNoTarget = errors.New("no target size")

	// ErrInvalidBounds is returned when bounds fall outside 1..100 or
	// Low exceeds High.
	ErrInvalidBounds = errors.New("invalid quality bounds")
)

// Bounds is the inclusive quality interval searched.
type Bounds struct {
	Low  int
	High int
}

// DefaultBounds keeps away from the extremes of the 1-100 scale, where
// size changes a lot for little visible difference.
var DefaultBounds = Bounds{Low: 5, High: 95}

// Validate checks 1 <= Low <= High <= 100.
func (b Bounds) Validate() error {
	if b.Low < 1 || b.High > 100 || b.Low > b.High {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidBounds, b.Low, b.High)
	}
	return nil
}

// Probe is one encoding made during a search.
type Probe struct {
	Quality int
	Size    int // bytes
}

// Result is the outcome of a search.
type Result struct {
	Data     []byte
	Quality  int
	Size     int // bytes
	TargetKB int
	// Met is false when even the lowest quality tried exceeds the target;
	// Data then holds that smallest encoding.
	Met bool
	// Probes lists every encoding in the order it was made.
	Probes []Probe
}

// SizeKB returns the achieved size in kilobytes.
func (r *Result) SizeKB() float64 { return float64(r.Size) / 1024 }

// Searcher runs the quality search with a given encoder.
type Searcher struct {
	enc    encoder.Encoder
	bounds Bounds
	log    *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithBounds overrides DefaultBounds.
func WithBounds(b Bounds) Option {
	return func(s *Searcher) { s.bounds = b }
}

// WithLogger logs every probe at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.log = l }
}

// NewSearcher returns a Searcher over enc, usually an *encoder.JPEGEncoder.
func NewSearcher(enc encoder.Encoder, opts ...Option) *Searcher {
	s := &Searcher{
		enc:    enc,
		bounds: DefaultBounds,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search encodes img at the highest quality in bounds whose output is at
// most targetKB kilobytes.
//
// The top quality is tried first and returned as is when it fits. After
// that the whole interval is binary searched; a fitting midpoint raises
// the floor so that higher qualities get a chance, a failing one lowers
// the ceiling. If nothing fits, the encoding at the lowest quality tried
// is returned with Met set to false.
func (s *Searcher) Search(img image.Image, targetKB int) (*Result, error) {
	if targetKB <= 0 {
		return nil, ErrNoTarget
	}
	if err := s.bounds.Validate(); err != nil {
		return nil, err
	}

	limit := targetKB * 1024
	res := &Result{TargetKB: targetKB}
	seen := make(map[int][]byte)

	encode := func(q int) ([]byte, error) {
		if data, ok := seen[q]; ok {
			return data, nil
		}
		data, err := s.enc.Encode(img, q)
		if err != nil {
			return nil, fmt.Errorf("quality %d: %w", q, err)
		}
		seen[q] = data
		res.Probes = append(res.Probes, Probe{Quality: q, Size: len(data)})
		s.log.Debug("quality probe",
			zap.Int("quality", q),
			zap.Int("size", len(data)),
			zap.Int("limit", limit))
		return data, nil
	}

	top, err := encode(s.bounds.High)
	if err != nil {
		return nil, err
	}
	if len(top) <= limit {
		res.set(top, s.bounds.High, true)
		return res, nil
	}

	var (
		best      []byte
		bestQ     int
		smallest  = top
		smallestQ = s.bounds.High
	)
	low, high := s.bounds.Low, s.bounds.High
	for low <= high {
		mid := (low + high) / 2
		data, err := encode(mid)
		if err != nil {
			return nil, err
		}
		if mid < smallestQ {
			smallest, smallestQ = data, mid
		}
		if len(data) <= limit {
			best, bestQ = data, mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	if best != nil {
		res.set(best, bestQ, true)
	} else {
		res.set(smallest, smallestQ, false)
	}
	return res, nil
}

func (r *Result) set(data []byte, q int, met bool) {
	r.Data = data
	r.Quality = q
	r.Size = len(data)
	r.Met = met
}

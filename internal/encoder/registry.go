package encoder

import (
	"fmt"
	"strings"
)

// Registry holds one encoder per output format.
type Registry struct {
	encoders map[Format]Encoder
}

// NewRegistry creates a registry with the JPEG and PNG encoders.
func NewRegistry(optimize bool) *Registry {
	r := &Registry{
		encoders: make(map[Format]Encoder),
	}

	all := []Encoder{
		&JPEGEncoder{Optimize: optimize},
		&PNGEncoder{Optimize: optimize},
	}
	for _, enc := range all {
		r.encoders[enc.Format()] = enc
	}

	return r
}

// Get returns the encoder for the given format, or nil if there is none.
func (r *Registry) Get(format Format) Encoder {
	return r.encoders[format]
}

// Available returns all format names in priority order.
func (r *Registry) Available() []Format {
	var result []Format
	for _, f := range []Format{JPEG, PNG} {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	names := make([]string, len(avail))
	for i, f := range avail {
		names[i] = string(f)
	}
	return fmt.Sprintf("encoders: %s", strings.Join(names, ", "))
}

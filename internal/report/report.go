// Package report records an export so it can be checked later.
package report

import (
	"encoding/json"
	"os"
	"time"
)

// SupportedVersion is the current schema version.
const SupportedVersion = 1

// Report is the JSON record written next to an export.
type Report struct {
	Version       int        `json:"version"`
	GeneratedAt   string     `json:"generated_at"`
	Source        SourceInfo `json:"source"`
	Output        OutputInfo `json:"output"`
	PercentChange int        `json:"percent_change"`
	TargetKB      int        `json:"target_kb,omitempty"`
	TargetMet     bool       `json:"target_met"`
	Searched      bool       `json:"searched"` // quality search ran
}

// SourceInfo holds metadata about the input image.
type SourceInfo struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// OutputInfo describes the exported bytes.
type OutputInfo struct {
	Path    string `json:"path,omitempty"` // empty when the export was not saved
	Format  string `json:"format"`         // "jpeg" or "png"
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Size    int64  `json:"size"`              // bytes
	Quality int    `json:"quality,omitempty"` // JPEG only
	Hash    string `json:"hash"`              // 16 hex chars of xxhash64
}

// New creates an empty report stamped with the current time.
func New() *Report {
	return &Report{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// SizeKB returns the output size in kilobytes.
func (r *Report) SizeKB() float64 { return float64(r.Output.Size) / 1024 }

// WriteJSON serializes the report to a JSON file.
func WriteJSON(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a report. Unknown fields are ignored.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

package preset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset is a named set of resize/export parameters.
type Preset struct {
	Name           string `yaml:"-"`
	Percent        int    `yaml:"percent"`
	TargetKB       int    `yaml:"target_kb"`   // 0 = no size target
	QualityMin     int    `yaml:"quality_min"` // search floor
	QualityMax     int    `yaml:"quality_max"` // search ceiling
	DefaultQuality int    `yaml:"default_quality"`
}

// Set maps preset names to presets.
type Set map[string]Preset

// Built-in presets.
var builtin = Set{
	"default": {
		Name:           "default",
		QualityMin:     5,
		QualityMax:     95,
		DefaultQuality: 85,
	},
	"web": {
		Name:           "web",
		Percent:        -50,
		TargetKB:       200,
		QualityMin:     40,
		QualityMax:     90,
		DefaultQuality: 82,
	},
	"email": {
		Name:           "email",
		Percent:        -70,
		TargetKB:       100,
		QualityMin:     5,
		QualityMax:     85,
		DefaultQuality: 75,
	},
	"thumbnail": {
		Name:           "thumbnail",
		Percent:        -80,
		TargetKB:       20,
		QualityMin:     5,
		QualityMax:     80,
		DefaultQuality: 70,
	},
	"print": {
		Name:           "print",
		Percent:        100,
		QualityMin:     60,
		QualityMax:     100,
		DefaultQuality: 95,
	},
}

// Builtin returns a copy of the built-in presets.
func Builtin() Set {
	s := make(Set, len(builtin))
	for k, v := range builtin {
		s[k] = v
	}
	return s
}

// Get returns a preset by name. Falls back to default if unknown.
func (s Set) Get(name string) Preset {
	if p, ok := s[name]; ok {
		return p
	}
	p := s["default"]
	p.Name = name // preserve requested name
	return p
}

// Names returns the preset names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type file struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

// Load reads a YAML file of the form
//
//	presets:
//	  banner:
//	    percent: -25
//	    target_kb: 150
//
// and merges it over the built-ins. Fields left out of a preset that
// shadows a built-in keep the built-in value; new presets start from
// default.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return Parse(data)
}

// Parse is Load on in-memory YAML.
func Parse(data []byte) (Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	s := Builtin()
	for name, node := range f.Presets {
		p, ok := s[name]
		if !ok {
			p = s["default"]
		}
		// Decoding into a filled struct only overwrites the keys present.
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		p.Name = name
		s[name] = p
	}
	return s, nil
}

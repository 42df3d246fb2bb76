package survey

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema kinds. Positional schemas locate variables by column index (plus
// a fixed offset), named schemas by header substring patterns.
const (
	SchemaPositional = "positional"
	SchemaNamed      = "named"
)

// Scale identifiers carried by every variable; the recoder dispatches its
// cleaning policy on these.
const (
	ScaleRating  = "rating_1_5"
	ScaleBipolar = "bipolar_1_7"
	ScaleCount   = "count"
	ScaleNumeric = "numeric"
	ScaleCode    = "code"
	ScaleText    = "text"
)

// VariableSpec maps one canonical variable name to its source locator and
// value domain. Exactly one locator form is set, depending on the schema
// kind: a baseline column index, or a set of header substring patterns
// that must all match.
type VariableSpec struct {
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category"`
	Scale     string   `yaml:"scale"`
	ScaleInfo string   `yaml:"scale_info,omitempty"`
	Index     *int     `yaml:"index,omitempty"`
	Patterns  []string `yaml:"patterns,omitempty"`
}

// SegmentSpec describes how the audience segment label is derived.
type SegmentSpec struct {
	Variable string            `yaml:"variable"`
	Labels   map[string]string `yaml:"labels"`
}

// GenderSpec describes the gender code to label mapping.
type GenderSpec struct {
	Variable string            `yaml:"variable"`
	Labels   map[string]string `yaml:"labels"`
	Fallback string            `yaml:"fallback"`
}

// LocalitySpec classifies respondents as local or domestic visitors from
// their prefecture code.
type LocalitySpec struct {
	Variable   string `yaml:"variable"`
	LocalCodes []int  `yaml:"local_codes"`
	LocalLabel string `yaml:"local_label"`
	OtherLabel string `yaml:"other_label"`
}

// Schema is one versioned questionnaire layout. It is constructed from
// configuration and passed explicitly into the column mapper; nothing in
// the pipeline reads schema information from process-wide state, so
// several schema versions can coexist in one run.
type Schema struct {
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	WaveIndex   *int           `yaml:"wave_index,omitempty"`
	Offset      int            `yaml:"offset"`
	DefaultWave int            `yaml:"default_wave"`
	Months      map[int]string `yaml:"months"`
	Segment     *SegmentSpec   `yaml:"segment,omitempty"`
	Gender      *GenderSpec    `yaml:"gender,omitempty"`
	Locality    *LocalitySpec  `yaml:"locality,omitempty"`
	Variables   []VariableSpec `yaml:"variables"`
}

// UnknownMonth is the label produced for wave numbers outside the
// configured lookup. Out-of-range waves are data, not errors.
const UnknownMonth = "Unknown"

// LoadSchema reads and validates a schema definition from a YAML file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the structural invariants: a known kind, unique
// variable names, and exactly one locator per variable matching the
// schema kind.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Kind != SchemaPositional && s.Kind != SchemaNamed {
		return fmt.Errorf("unknown schema kind %q", s.Kind)
	}
	if len(s.Variables) == 0 {
		return fmt.Errorf("schema defines no variables")
	}
	seen := make(map[string]struct{}, len(s.Variables))
	for _, v := range s.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable with empty name")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate variable name %q", v.Name)
		}
		seen[v.Name] = struct{}{}

		switch s.Kind {
		case SchemaPositional:
			if v.Index == nil {
				return fmt.Errorf("variable %q has no column index", v.Name)
			}
			if *v.Index < 0 {
				return fmt.Errorf("variable %q has negative column index", v.Name)
			}
			if len(v.Patterns) > 0 {
				return fmt.Errorf("variable %q mixes index and patterns", v.Name)
			}
		case SchemaNamed:
			if len(v.Patterns) == 0 {
				return fmt.Errorf("variable %q has no header patterns", v.Name)
			}
			if v.Index != nil {
				return fmt.Errorf("variable %q mixes patterns and index", v.Name)
			}
		}
	}
	return nil
}

// MonthLabel resolves a wave number through the closed month lookup.
func (s *Schema) MonthLabel(wave int) string {
	if label, ok := s.Months[wave]; ok {
		return label
	}
	return UnknownMonth
}

// EffectiveIndex is the physical column position of a positional
// variable: the documented baseline index shifted by the schema offset
// (the offset accounts for inserted leading columns such as the wave
// number in multi-wave exports).
func (s *Schema) EffectiveIndex(v *VariableSpec) int {
	return *v.Index + s.Offset
}

// ResolveColumns binds every name-pattern variable to a header position.
// All patterns of a variable must appear (case-insensitively) in the
// header text; the first matching header wins. Variables with no match
// are reported so the mapper can treat their cells as missing.
func (s *Schema) ResolveColumns(header []string) (map[string]int, []string) {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	bound := make(map[string]int, len(s.Variables))
	var unmatched []string
	for i := range s.Variables {
		v := &s.Variables[i]
		if len(v.Patterns) == 0 {
			continue
		}
		idx := -1
		for col, h := range lowered {
			if headerMatches(h, v.Patterns) {
				idx = col
				break
			}
		}
		if idx < 0 {
			unmatched = append(unmatched, v.Name)
			continue
		}
		bound[v.Name] = idx
	}
	return bound, unmatched
}

func headerMatches(header string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.Contains(header, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

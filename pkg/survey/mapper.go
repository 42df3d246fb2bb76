package survey

import (
	"fmt"
	"strconv"
	"strings"
)

// MapResult is the output of one mapping pass: the respondent collection
// plus the diagnostics a caller needs to log the run faithfully.
type MapResult struct {
	Respondents []*Respondent
	// ShortRows counts data rows narrower than the widest locator. Their
	// out-of-range cells were mapped to missing, not dropped.
	ShortRows int
	// UnmatchedVariables lists name-pattern variables with no header
	// match; every respondent carries missing for these.
	UnmatchedVariables []string
	// UnlabeledSegments counts respondents whose segment code had no
	// label mapping and kept the raw code as its label.
	UnlabeledSegments int
}

// Mapper turns a raw rectangular table into respondents under one schema.
type Mapper struct {
	schema *Schema
}

// NewMapper validates the schema and returns a mapper bound to it.
func NewMapper(schema *Schema) (*Mapper, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is required")
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Mapper{schema: schema}, nil
}

// MapTable produces one Respondent per data row. The header row has
// already been split off by the loader; positional schemas ignore it,
// name-pattern schemas resolve their locators against it. Respondent
// identifiers are assigned in 1-based emission order and are stable
// across reruns of the same input.
func (m *Mapper) MapTable(header []string, rows [][]string) (*MapResult, error) {
	s := m.schema
	result := &MapResult{Respondents: make([]*Respondent, 0, len(rows))}

	var bound map[string]int
	if s.Kind == SchemaNamed {
		bound, result.UnmatchedVariables = s.ResolveColumns(header)
	}

	maxIndex := m.widestLocator(bound)

	for i, row := range rows {
		if len(row) <= maxIndex {
			result.ShortRows++
		}

		r := NewRespondent(i + 1)
		r.Wave = m.waveOf(row)
		r.Month = s.MonthLabel(r.Wave)

		for vi := range s.Variables {
			v := &s.Variables[vi]
			cell := m.cellFor(v, row, bound)
			r.Set(v.Name, parseCell(cell, v.Scale))
		}

		m.deriveSegment(r, result)
		m.deriveGender(r)
		m.deriveLocality(r)

		result.Respondents = append(result.Respondents, r)
	}
	return result, nil
}

// cellFor fetches the raw cell for a variable, empty string when the
// locator points past the end of the row (heterogeneous rows are data,
// not errors) or when a name-pattern variable found no header.
func (m *Mapper) cellFor(v *VariableSpec, row []string, bound map[string]int) string {
	idx := -1
	switch m.schema.Kind {
	case SchemaPositional:
		idx = m.schema.EffectiveIndex(v)
	case SchemaNamed:
		col, ok := bound[v.Name]
		if !ok {
			return ""
		}
		idx = col
	}
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// waveOf reads the wave number from its pinned position. The wave column
// is never shifted by the schema offset; the offset exists because of it.
func (m *Mapper) waveOf(row []string) int {
	s := m.schema
	if s.WaveIndex == nil {
		return s.DefaultWave
	}
	idx := *s.WaveIndex
	if idx < 0 || idx >= len(row) {
		return 0
	}
	w, err := strconv.Atoi(strings.TrimSpace(row[idx]))
	if err != nil {
		return 0
	}
	return w
}

func (m *Mapper) widestLocator(bound map[string]int) int {
	s := m.schema
	max := 0
	if s.Kind == SchemaPositional {
		for i := range s.Variables {
			if idx := s.EffectiveIndex(&s.Variables[i]); idx > max {
				max = idx
			}
		}
		if s.WaveIndex != nil && *s.WaveIndex > max {
			max = *s.WaveIndex
		}
		return max
	}
	for _, idx := range bound {
		if idx > max {
			max = idx
		}
	}
	return max
}

func (m *Mapper) deriveSegment(r *Respondent, result *MapResult) {
	spec := m.schema.Segment
	if spec == nil {
		return
	}
	raw := rawLabel(r, spec.Variable)
	if raw == "" {
		return
	}
	label, ok := spec.Labels[raw]
	if !ok {
		// Keep the raw code so the respondent still partitions; an
		// unmapped code is a labeling gap, not grounds for exclusion.
		label = raw
		result.UnlabeledSegments++
	}
	r.Segment = label
}

func (m *Mapper) deriveGender(r *Respondent) {
	spec := m.schema.Gender
	if spec == nil {
		return
	}
	raw := rawLabel(r, spec.Variable)
	if raw == "" {
		return
	}
	label, ok := spec.Labels[raw]
	if !ok {
		label = spec.Fallback
	}
	r.Set("gender_label", CategoricalValue(label))
}

func (m *Mapper) deriveLocality(r *Respondent) {
	spec := m.schema.Locality
	if spec == nil {
		return
	}
	raw := rawLabel(r, spec.Variable)
	if raw == "" {
		return
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	label := spec.OtherLabel
	for _, c := range spec.LocalCodes {
		if c == code {
			label = spec.LocalLabel
			break
		}
	}
	r.Set("locality", CategoricalValue(label))
}

// rawLabel renders a source variable back to the raw token used as a map
// key, whichever kind the parser stored it as.
func rawLabel(r *Respondent, name string) string {
	v := r.Get(name)
	switch v.Kind {
	case KindCategorical:
		return v.Str
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return ""
	}
}

// parseCell converts one raw cell under the variable's scale. Numeric
// scales parse leniently: an empty or unparseable cell is missing, never
// an error. Sentinel-code cleaning is the recoder's job, not the
// mapper's, so raw 0/99 codes survive this stage as numbers.
func parseCell(cell, scale string) Value {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return MissingValue()
	}
	switch scale {
	case ScaleCode, ScaleText:
		return CategoricalValue(cell)
	default:
		n, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return MissingValue()
		}
		return NumericValue(n)
	}
}

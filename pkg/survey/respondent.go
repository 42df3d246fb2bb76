package survey

import (
	"fmt"
	"sort"
)

// Respondent is one survey participant. Created by the column mapper,
// enriched in place by the recoder and composite builder, and read-only
// for every modeling stage. Filtering produces new slices; the shared
// collection itself is never mutated by downstream consumers.
type Respondent struct {
	ID      int              `json:"id"`
	Code    string           `json:"code"`
	Wave    int              `json:"wave"`
	Month   string           `json:"month"`
	Segment string           `json:"segment"`
	Values  map[string]Value `json:"values"`
}

// NewRespondent creates a respondent with the given 1-based identifier.
func NewRespondent(id int) *Respondent {
	return &Respondent{
		ID:     id,
		Code:   fmt.Sprintf("R%05d", id),
		Values: make(map[string]Value),
	}
}

// Set stores a value for a canonical variable name.
func (r *Respondent) Set(name string, v Value) {
	r.Values[name] = v
}

// Get returns the value for a canonical variable, missing if absent.
func (r *Respondent) Get(name string) Value {
	if v, ok := r.Values[name]; ok {
		return v
	}
	return MissingValue()
}

// Float returns the numeric observation for a variable if present.
func (r *Respondent) Float(name string) (float64, bool) {
	return r.Get(name).Float()
}

// Label returns the categorical observation for a variable if present.
func (r *Respondent) Label(name string) (string, bool) {
	return r.Get(name).Label()
}

// Has reports whether the variable holds a non-missing observation.
func (r *Respondent) Has(name string) bool {
	return !r.Get(name).IsMissing()
}

// MissingShare is the fraction of the given variables with no observation.
func (r *Respondent) MissingShare(names []string) float64 {
	if len(names) == 0 {
		return 0
	}
	missing := 0
	for _, n := range names {
		if !r.Has(n) {
			missing++
		}
	}
	return float64(missing) / float64(len(names))
}

// NumericColumn extracts every non-missing numeric observation for the
// variable, in respondent order.
func NumericColumn(resps []*Respondent, name string) []float64 {
	out := make([]float64, 0, len(resps))
	for _, r := range resps {
		if v, ok := r.Float(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// CompleteCases returns the respondents with a non-missing numeric value
// for every named variable. This is the fitting sample used by models.
func CompleteCases(resps []*Respondent, names []string) []*Respondent {
	out := make([]*Respondent, 0, len(resps))
	for _, r := range resps {
		complete := true
		for _, n := range names {
			if _, ok := r.Float(n); !ok {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, r)
		}
	}
	return out
}

// AnyValid returns the respondents with at least one non-missing value
// among the named variables.
func AnyValid(resps []*Respondent, names []string) []*Respondent {
	out := make([]*Respondent, 0, len(resps))
	for _, r := range resps {
		for _, n := range names {
			if r.Has(n) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Matrix builds a row-per-respondent numeric matrix over the named
// variables. Every respondent must be a complete case for the variables;
// a missing cell is an error because silently substituting a number would
// corrupt downstream fits.
func Matrix(resps []*Respondent, names []string) ([][]float64, error) {
	out := make([][]float64, len(resps))
	for i, r := range resps {
		row := make([]float64, len(names))
		for j, n := range names {
			v, ok := r.Float(n)
			if !ok {
				return nil, fmt.Errorf("respondent %d has no numeric value for %q", r.ID, n)
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// FilterSegment returns the respondents carrying the given segment label.
func FilterSegment(resps []*Respondent, segment string) []*Respondent {
	out := make([]*Respondent, 0, len(resps))
	for _, r := range resps {
		if r.Segment == segment {
			out = append(out, r)
		}
	}
	return out
}

// FilterWave returns the respondents belonging to the given wave.
func FilterWave(resps []*Respondent, wave int) []*Respondent {
	out := make([]*Respondent, 0, len(resps))
	for _, r := range resps {
		if r.Wave == wave {
			out = append(out, r)
		}
	}
	return out
}

// Segments lists the distinct segment labels in sorted order.
func Segments(resps []*Respondent) []string {
	seen := make(map[string]struct{})
	for _, r := range resps {
		if r.Segment != "" {
			seen[r.Segment] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Waves lists the distinct wave numbers in ascending order.
func Waves(resps []*Respondent) []int {
	seen := make(map[int]struct{})
	for _, r := range resps {
		seen[r.Wave] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

package survey

import "strconv"

// ValueKind identifies how a cell value should be interpreted downstream.
type ValueKind uint8

const (
	// KindMissing marks a value that must be excluded from every
	// aggregation and model fit.
	KindMissing ValueKind = iota
	// KindNumeric marks a usable numeric observation.
	KindNumeric
	// KindCategorical marks a label value (segment codes, free text).
	KindCategorical
)

// Value is one typed observation for a canonical variable. Raw sentinel
// codes (0 "not answered", 99 "don't know") are never stored as numeric
// values; they are converted to KindMissing before a Value is created.
type Value struct {
	Kind ValueKind `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Str  string    `json:"str,omitempty"`
}

// MissingValue returns the explicit missing marker.
func MissingValue() Value {
	return Value{Kind: KindMissing}
}

// NumericValue wraps a numeric observation.
func NumericValue(v float64) Value {
	return Value{Kind: KindNumeric, Num: v}
}

// CategoricalValue wraps a label observation. An empty label is missing.
func CategoricalValue(s string) Value {
	if s == "" {
		return MissingValue()
	}
	return Value{Kind: KindCategorical, Str: s}
}

// IsMissing reports whether the value carries no observation.
func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// Float returns the numeric observation and whether one is present.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumeric {
		return 0, false
	}
	return v.Num, true
}

// Label returns the categorical observation and whether one is present.
func (v Value) Label() (string, bool) {
	if v.Kind != KindCategorical {
		return "", false
	}
	return v.Str, true
}

// String renders the value for delimited output: numerics in minimal
// notation, categoricals verbatim, missing as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindCategorical:
		return v.Str
	default:
		return ""
	}
}

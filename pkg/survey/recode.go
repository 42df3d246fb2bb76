package survey

// Raw sentinel codes used by the questionnaire vendor. Neither is a valid
// observation on any rating scale.
const (
	CodeNotAnswered = 0
	CodeDontKnow    = 99
)

// CleanRating converts a raw 1-5 rating into an analysis value: the
// sentinel codes and anything outside the 1-5 domain become missing,
// in-range values pass through unchanged.
func CleanRating(v Value) Value {
	return cleanRange(v, 1, 5)
}

// CleanBipolar converts a raw 1-7 bipolar comparison value. The scale has
// no recode: 4 is neutral, below 4 favors the primary pole, above 4 the
// competitor pole. Sentinels and out-of-domain codes become missing.
func CleanBipolar(v Value) Value {
	return cleanRange(v, 1, 7)
}

// CleanCount passes through non-negative counts, mapping the don't-know
// sentinel to missing. Zero is a legitimate count, not a sentinel, so only
// 99 is cleaned here.
func CleanCount(v Value) Value {
	n, ok := v.Float()
	if !ok {
		return MissingValue()
	}
	if n == CodeDontKnow || n < 0 {
		return MissingValue()
	}
	return NumericValue(n)
}

func cleanRange(v Value, lo, hi float64) Value {
	n, ok := v.Float()
	if !ok {
		return MissingValue()
	}
	if n == CodeNotAnswered || n == CodeDontKnow {
		return MissingValue()
	}
	if n < lo || n > hi {
		return MissingValue()
	}
	return NumericValue(n)
}

// Harmonize17 maps a cleaned 1-5 rating onto the 1-7 scale used when
// heterogeneous source files are combined: new = (old-1)*1.5 + 1.
// Missing stays missing.
func Harmonize17(v Value) Value {
	n, ok := v.Float()
	if !ok {
		return MissingValue()
	}
	return NumericValue((n-1)*1.5 + 1)
}

// TopBox binarizes a cleaned 1-5 rating: 1 for the top box (5), 0 for
// 1-4, missing for anything else. It must only ever see cleaned input;
// applying it before sentinel cleaning would classify "don't know" as
// not-top-box.
func TopBox(v Value) Value {
	n, ok := v.Float()
	if !ok {
		return MissingValue()
	}
	switch {
	case n == 5:
		return NumericValue(1)
	case n >= 1 && n <= 4:
		return NumericValue(0)
	default:
		return MissingValue()
	}
}

// MeanOfAvailable averages the non-missing values among the named
// variables for one respondent, missing when none are present. Used for
// derived funnel metrics such as the intent score.
func MeanOfAvailable(r *Respondent, names []string) Value {
	sum := 0.0
	n := 0
	for _, name := range names {
		if v, ok := r.Float(name); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return MissingValue()
	}
	return NumericValue(sum / float64(n))
}

// Rescale linearly maps a value from one closed range onto another, e.g.
// a 1-7 advocacy composite onto 0-10 via Rescale(v, 1, 7, 0, 10).
// Missing stays missing; a degenerate source range yields missing.
func Rescale(v Value, fromLo, fromHi, toLo, toHi float64) Value {
	n, ok := v.Float()
	if !ok || fromHi == fromLo {
		return MissingValue()
	}
	scaled := toLo + (n-fromLo)*(toHi-toLo)/(fromHi-fromLo)
	return NumericValue(scaled)
}

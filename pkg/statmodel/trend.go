package statmodel

import "fmt"

// TrendResult summarizes how an outcome moves across survey waves: the
// per-wave slope from a simple regression of the outcome on wave number,
// its significance, and a direction label.
type TrendResult struct {
	Outcome   string  `json:"outcome"`
	Slope     float64 `json:"slope"`
	StdError  float64 `json:"std_error"`
	TValue    float64 `json:"t_value"`
	PValue    float64 `json:"p_value"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
	Waves     int     `json:"waves"`
	Direction string  `json:"direction"` // "improving", "declining", or "stable"
}

// WaveTrend regresses the outcome on wave number across pooled
// respondents and tests the slope. waves and values must be aligned.
func WaveTrend(outcome string, waves []int, values []float64) (*TrendResult, error) {
	if len(waves) != len(values) {
		return nil, fmt.Errorf("series length mismatch: %d waves, %d values", len(waves), len(values))
	}
	distinct := map[int]bool{}
	for _, w := range waves {
		distinct[w] = true
	}
	if len(distinct) < 2 {
		return nil, fmt.Errorf("%w: trend needs at least 2 waves, got %d", ErrDegenerate, len(distinct))
	}

	x := make([][]float64, len(waves))
	for i, w := range waves {
		x[i] = []float64{float64(w)}
	}
	model, err := FitOLS(outcome, values, []string{"wave"}, x)
	if err != nil {
		return nil, err
	}
	coef, ok := model.Coef("wave")
	if !ok {
		return nil, fmt.Errorf("wave coefficient missing for %s", outcome)
	}

	res := &TrendResult{
		Outcome:  outcome,
		Slope:    coef.Estimate,
		StdError: coef.StdError,
		TValue:   coef.TValue,
		PValue:   coef.PValue,
		RSquared: model.RSquared,
		N:        model.N,
		Waves:    len(distinct),
	}
	switch {
	case res.PValue >= 0.05:
		res.Direction = "stable"
	case res.Slope > 0:
		res.Direction = "improving"
	default:
		res.Direction = "declining"
	}
	return res, nil
}

// CenterWaves recodes wave numbers so their mean is zero, keeping pooled
// model intercepts interpretable at the midpoint of fieldwork.
func CenterWaves(waves []int) []float64 {
	out := make([]float64, len(waves))
	if len(waves) == 0 {
		return out
	}
	sum := 0.0
	for _, w := range waves {
		sum += float64(w)
	}
	mean := sum / float64(len(waves))
	for i, w := range waves {
		out[i] = float64(w) - mean
	}
	return out
}

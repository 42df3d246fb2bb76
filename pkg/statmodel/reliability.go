package statmodel

import "fmt"

// Reliability is the internal consistency of a composite over its
// contributing items.
type Reliability struct {
	Alpha float64 `json:"alpha"`
	Items int     `json:"items"`
	N     int     `json:"n"`
	Label string  `json:"label"`
}

// CronbachAlpha computes Cronbach's alpha over a complete-case item
// matrix. At least 2 items and 10 complete cases are required.
func CronbachAlpha(rows [][]float64) (*Reliability, error) {
	n := len(rows)
	if n < 10 {
		return nil, fmt.Errorf("%w: %d complete cases for reliability", ErrDegenerate, n)
	}
	k := len(rows[0])
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 items, got %d", k)
	}

	itemVar := 0.0
	for j := 0; j < k; j++ {
		col := make([]float64, n)
		for i, r := range rows {
			col[i] = r[j]
		}
		itemVar += SampleVariance(col)
	}

	totals := make([]float64, n)
	for i, r := range rows {
		s := 0.0
		for _, v := range r {
			s += v
		}
		totals[i] = s
	}
	totalVar := SampleVariance(totals)
	if totalVar == 0 {
		return nil, fmt.Errorf("%w: composite total has zero variance", ErrDegenerate)
	}

	alpha := (float64(k) / float64(k-1)) * (1 - itemVar/totalVar)
	return &Reliability{
		Alpha: alpha,
		Items: k,
		N:     n,
		Label: alphaLabel(alpha),
	}, nil
}

func alphaLabel(alpha float64) string {
	switch {
	case alpha >= 0.9:
		return "Excellent"
	case alpha >= 0.8:
		return "Good"
	case alpha >= 0.7:
		return "Acceptable"
	case alpha >= 0.6:
		return "Questionable"
	default:
		return "Poor"
	}
}

package statmodel

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// NestedFTest compares a reduced model against a full model fit on the
// same sample, testing whether the added coefficients are jointly zero:
//
//	F = ((SSR_reduced - SSR_full) / q) / (SSR_full / df_full)
//
// with q added predictors and df_full = n - p_full - 1.
type NestedFTest struct {
	FStat       float64 `json:"f_stat"`
	PValue      float64 `json:"p_value"`
	DFNumer     int     `json:"df_numer"`
	DFDenom     int     `json:"df_denom"`
	DeltaR2     float64 `json:"delta_r2"`
	Significant bool    `json:"significant"`
}

// CompareNested runs the F-test for full against reduced. Both models
// must have been fit on the same observations; a sample-size mismatch is
// an error because the comparison is meaningless otherwise.
func CompareNested(reduced, full *OLSModel) (*NestedFTest, error) {
	if reduced.N != full.N {
		return nil, fmt.Errorf("models fit on different samples: n=%d vs n=%d", reduced.N, full.N)
	}
	q := full.NumPredictors() - reduced.NumPredictors()
	if q <= 0 {
		return nil, fmt.Errorf("full model adds no predictors over reduced (%d vs %d)",
			full.NumPredictors(), reduced.NumPredictors())
	}
	if full.ResidualSS <= 0 || full.DFResidual <= 0 {
		return nil, fmt.Errorf("%w: full model has no residual variance", ErrDegenerate)
	}

	f := ((reduced.ResidualSS - full.ResidualSS) / float64(q)) / (full.ResidualSS / float64(full.DFResidual))
	dist := distuv.F{D1: float64(q), D2: float64(full.DFResidual)}
	p := dist.Survival(f)

	return &NestedFTest{
		FStat:       f,
		PValue:      p,
		DFNumer:     q,
		DFDenom:     full.DFResidual,
		DeltaR2:     full.RSquared - reduced.RSquared,
		Significant: p < 0.05,
	}, nil
}

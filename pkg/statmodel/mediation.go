package statmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// MediationResult is a Sobel test of one X -> M -> Y chain fitted on
// standardized variables. PathA is X->M, PathB is M->Y controlling X,
// PathC is the total X->Y effect and PathCPrime the direct effect with M
// in the model.
type MediationResult struct {
	Predictor string `json:"predictor"`
	Mediator  string `json:"mediator"`
	Outcome   string `json:"outcome"`
	N         int    `json:"n"`

	PathA       float64 `json:"path_a"`
	PathASE     float64 `json:"path_a_se"`
	PathB       float64 `json:"path_b"`
	PathBSE     float64 `json:"path_b_se"`
	PathC       float64 `json:"path_c"`
	PathCPrime  float64 `json:"path_c_prime"`
	Indirect    float64 `json:"indirect"`
	SobelSE     float64 `json:"sobel_se"`
	SobelZ      float64 `json:"sobel_z"`
	SobelP      float64 `json:"sobel_p"`
	Significant bool    `json:"significant"`

	// Mediated is Indirect/PathC; meaningful only when PathC is nonzero.
	Mediated    float64 `json:"proportion_mediated"`
	HasMediated bool    `json:"has_proportion"`
	Kind        string  `json:"kind"` // "full", "partial", or "none"
}

// SobelMediation tests whether m carries the effect of x on y. All three
// series must be the same length and are standardized before fitting, so
// the paths are comparable across chains.
func SobelMediation(predictor, mediator, outcome string, x, m, y []float64) (*MediationResult, error) {
	n := len(x)
	if len(m) != n || len(y) != n {
		return nil, fmt.Errorf("series length mismatch: x=%d m=%d y=%d", n, len(m), len(y))
	}
	if n < 10 {
		return nil, fmt.Errorf("%w: %d cases for mediation", ErrDegenerate, n)
	}

	zx, err := Standardize(x)
	if err != nil {
		return nil, fmt.Errorf("predictor %s: %w", predictor, err)
	}
	zm, err := Standardize(m)
	if err != nil {
		return nil, fmt.Errorf("mediator %s: %w", mediator, err)
	}
	zy, err := Standardize(y)
	if err != nil {
		return nil, fmt.Errorf("outcome %s: %w", outcome, err)
	}

	cols := func(series ...[]float64) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			row := make([]float64, len(series))
			for j, s := range series {
				row[j] = s[i]
			}
			out[i] = row
		}
		return out
	}

	// a: M ~ X
	mOnX, err := FitOLS(mediator, zm, []string{predictor}, cols(zx))
	if err != nil {
		return nil, err
	}
	// b, c': Y ~ X + M
	full, err := FitOLS(outcome, zy, []string{predictor, mediator}, cols(zx, zm))
	if err != nil {
		return nil, err
	}
	// c: Y ~ X
	total, err := FitOLS(outcome, zy, []string{predictor}, cols(zx))
	if err != nil {
		return nil, err
	}

	ca, okA := mOnX.Coef(predictor)
	cb, okB := full.Coef(mediator)
	cc, okC := total.Coef(predictor)
	cp, okP := full.Coef(predictor)
	if !okA || !okB || !okC || !okP {
		return nil, fmt.Errorf("mediation paths incomplete for %s -> %s -> %s", predictor, mediator, outcome)
	}

	a, seA := ca.Estimate, ca.StdError
	b, seB := cb.Estimate, cb.StdError
	indirect := a * b
	se := math.Sqrt(b*b*seA*seA + a*a*seB*seB)

	res := &MediationResult{
		Predictor:  predictor,
		Mediator:   mediator,
		Outcome:    outcome,
		N:          n,
		PathA:      a,
		PathASE:    seA,
		PathB:      b,
		PathBSE:    seB,
		PathC:      cc.Estimate,
		PathCPrime: cp.Estimate,
		Indirect:   indirect,
		SobelSE:    se,
	}
	if se > 0 {
		res.SobelZ = indirect / se
		norm := distuv.Normal{Mu: 0, Sigma: 1}
		res.SobelP = 2 * norm.Survival(math.Abs(res.SobelZ))
	} else {
		res.SobelP = 1
	}
	res.Significant = res.SobelP < 0.05

	if res.PathC != 0 {
		res.Mediated = indirect / res.PathC
		res.HasMediated = true
	}
	switch {
	case !res.Significant:
		res.Kind = "none"
	case cp.PValue >= 0.05:
		res.Kind = "full"
	case cb.PValue < 0.05:
		res.Kind = "partial"
	default:
		res.Kind = "none"
	}
	return res, nil
}

package statmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SuitabilityResult holds the factor-analysis suitability diagnostics:
// the Kaiser-Meyer-Olkin measure (overall and per variable) and
// Bartlett's test of sphericity. The formulas reproduce the historical
// manual implementations exactly; report numbers must match prior runs.
type SuitabilityResult struct {
	KMOOverall     float64   `json:"kmo_overall"`
	KMOPerVariable []float64 `json:"kmo_per_variable"`
	KMOLabel       string    `json:"kmo_label"`
	BartlettChi2   float64   `json:"bartlett_chi2"`
	BartlettDF     float64   `json:"bartlett_df"`
	BartlettP      float64   `json:"bartlett_p"`
	Suitable       bool      `json:"suitable"`
}

// FactorSuitability computes KMO and Bartlett's sphericity test over a
// row-per-observation data matrix. KMO uses partial correlations from
// the pseudo-inverse of the correlation matrix:
//
//	partial_ij = -inv_ij / sqrt(inv_ii * inv_jj)
//	KMO_j = sum_i r_ij^2 / (sum_i r_ij^2 + sum_i partial_ij^2)
//
// Bartlett: chi2 = -((n-1) - (2p+5)/6) * ln det(R), df = p(p-1)/2, with
// the determinant floored at 1e-10 for near-singular matrices.
func FactorSuitability(rows [][]float64) (*SuitabilityResult, error) {
	n := len(rows)
	if n < 3 {
		return nil, fmt.Errorf("need at least 3 observations, got %d", n)
	}
	p := len(rows[0])
	corr, err := CorrelationMatrix(rows)
	if err != nil {
		return nil, err
	}

	inv, err := pseudoInverse(corr)
	if err != nil {
		return nil, fmt.Errorf("failed to invert correlation matrix: %w", err)
	}

	partial := make([][]float64, p)
	for i := 0; i < p; i++ {
		partial[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			if i == j {
				continue
			}
			partial[i][j] = -inv[i][j] / math.Sqrt(inv[i][i]*inv[j][j])
		}
	}

	perVar := make([]float64, p)
	var rSqTotal, pSqTotal float64
	for j := 0; j < p; j++ {
		var rSq, pSq float64
		for i := 0; i < p; i++ {
			if i == j {
				continue
			}
			rSq += corr[j][i] * corr[j][i]
			pSq += partial[j][i] * partial[j][i]
		}
		if rSq+pSq > 0 {
			perVar[j] = rSq / (rSq + pSq)
		}
		rSqTotal += rSq
		pSqTotal += pSq
	}
	overall := 0.0
	if rSqTotal+pSqTotal > 0 {
		overall = rSqTotal / (rSqTotal + pSqTotal)
	}

	det := determinant(corr)
	if det <= 0 {
		det = 1e-10
	}
	chi2 := -(float64(n-1) - (2*float64(p)+5)/6) * math.Log(det)
	df := float64(p) * float64(p-1) / 2
	chiDist := distuv.ChiSquared{K: df}
	bartlettP := chiDist.Survival(chi2)

	return &SuitabilityResult{
		KMOOverall:     overall,
		KMOPerVariable: perVar,
		KMOLabel:       kmoLabel(overall),
		BartlettChi2:   chi2,
		BartlettDF:     df,
		BartlettP:      bartlettP,
		Suitable:       bartlettP < 0.05 && overall >= 0.5,
	}, nil
}

func kmoLabel(kmo float64) string {
	switch {
	case kmo >= 0.9:
		return "Excellent"
	case kmo >= 0.8:
		return "Good"
	case kmo >= 0.7:
		return "Acceptable"
	case kmo >= 0.6:
		return "Mediocre"
	case kmo >= 0.5:
		return "Poor"
	default:
		return "Unacceptable"
	}
}

// CorrelationMatrix computes the p x p Pearson correlation matrix of a
// row-per-observation data matrix.
func CorrelationMatrix(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	p := len(rows[0])
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, len(rows))
		for i := range rows {
			if len(rows[i]) != p {
				return nil, fmt.Errorf("ragged matrix at row %d", i)
			}
			col[i] = rows[i][j]
		}
		cols[j] = col
	}
	out := make([][]float64, p)
	for i := 0; i < p; i++ {
		out[i] = make([]float64, p)
		out[i][i] = 1
	}
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			r, err := PearsonCorrelation(cols[i], cols[j])
			if err != nil {
				return nil, fmt.Errorf("correlation of columns %d and %d: %w", i, j, err)
			}
			out[i][j] = r
			out[j][i] = r
		}
	}
	return out, nil
}

// pseudoInverse computes the Moore-Penrose pseudo-inverse via SVD,
// dropping singular values below a relative tolerance.
func pseudoInverse(m [][]float64) ([][]float64, error) {
	p := len(m)
	dense := mat.NewDense(p, p, nil)
	for i := range m {
		for j := range m[i] {
			dense.Set(i, j, m[i][j])
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(dense, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	tol := float64(p) * s[0] * 2.220446049250313e-16
	inv := make([][]float64, p)
	for i := range inv {
		inv[i] = make([]float64, p)
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			sum := 0.0
			for k := 0; k < len(s); k++ {
				if s[k] > tol {
					sum += v.At(i, k) * u.At(j, k) / s[k]
				}
			}
			inv[i][j] = sum
		}
	}
	return inv, nil
}

// determinant of a symmetric positive-definite-ish matrix from its
// eigenvalues; near-zero eigenvalues drive it toward zero, which the
// Bartlett floor then handles.
func determinant(m [][]float64) float64 {
	eigs, _, err := symmetricEigen(m)
	if err != nil {
		return 0
	}
	det := 1.0
	for _, e := range eigs {
		det *= e
	}
	return det
}

// symmetricEigen returns the eigenvalues (descending) and matching
// eigenvectors (columns) of a symmetric matrix.
func symmetricEigen(m [][]float64) ([]float64, [][]float64, error) {
	p := len(m)
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, m[i][j])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// gonum returns ascending order; reverse to descending.
	n := len(vals)
	outVals := make([]float64, n)
	outVecs := make([][]float64, p)
	for i := range outVecs {
		outVecs[i] = make([]float64, n)
	}
	for k := 0; k < n; k++ {
		src := n - 1 - k
		outVals[k] = vals[src]
		for i := 0; i < p; i++ {
			outVecs[i][k] = vecs.At(i, src)
		}
	}
	return outVals, outVecs, nil
}

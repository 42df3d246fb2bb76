package statmodel

import (
	"fmt"
	"math"
	"sort"
)

// FactorConfig controls maximum-likelihood factor extraction. The factor
// count comes from the Kaiser eigenvalue-greater-than-one criterion on
// the correlation matrix, floored and capped for interpretability.
type FactorConfig struct {
	MinFactors int
	MaxFactors int
	MaxIter    int
	Tol        float64
	RandomSeed int64
}

// DefaultFactorConfig matches the historical analysis: between 3 and 6
// factors.
func DefaultFactorConfig(seed int64) FactorConfig {
	return FactorConfig{
		MinFactors: 3,
		MaxFactors: 6,
		MaxIter:    500,
		Tol:        1e-6,
		RandomSeed: seed,
	}
}

// Factor is one extracted dimension of a solution: its varimax-rotated
// loadings over the battery items and the share of item variance it
// explains. TopItems indexes the items by descending absolute loading.
type Factor struct {
	Index             int       `json:"index"`
	Loadings          []float64 `json:"loadings"`
	VarianceExplained float64   `json:"variance_explained"`
	TopItems          []int     `json:"top_items"`
}

// FactorSolution is a fitted, rotated, sign-oriented factor model over a
// complete-case item matrix.
type FactorSolution struct {
	Items       []string    `json:"items"`
	KaiserCount int         `json:"kaiser_count"`
	NumFactors  int         `json:"num_factors"`
	Eigenvalues []float64   `json:"eigenvalues"`
	Factors     []Factor    `json:"factors"`
	Scores      [][]float64 `json:"scores"` // n x k, aligned with the input rows
	N           int         `json:"n"`
}

// KaiserCount is the number of correlation-matrix eigenvalues above one.
func KaiserCount(eigenvalues []float64) int {
	count := 0
	for _, e := range eigenvalues {
		if e > 1 {
			count++
		}
	}
	return count
}

// FitFactors standardizes each item over the fitting sample, extracts K
// maximum-likelihood factors, applies a varimax rotation, and orients
// every factor so its top-loading items average positive. rows must be a
// complete-case matrix (one row per respondent, one column per item).
// A singular correlation matrix or rotation non-convergence is fatal for
// this construct; callers omit it and proceed with the rest.
func FitFactors(items []string, rows [][]float64, cfg FactorConfig) (*FactorSolution, error) {
	if len(items) < 2 {
		return nil, fmt.Errorf("need at least 2 items, got %d", len(items))
	}
	if len(rows) <= len(items) {
		return nil, fmt.Errorf("%w: %d complete cases for %d items", ErrDegenerate, len(rows), len(items))
	}

	z, _, _, err := StandardizeColumns(rows)
	if err != nil {
		return nil, fmt.Errorf("standardization failed: %w", err)
	}
	corr, err := CorrelationMatrix(z)
	if err != nil {
		return nil, err
	}
	eigs, vecs, err := symmetricEigen(corr)
	if err != nil {
		return nil, fmt.Errorf("correlation matrix eigendecomposition: %w", err)
	}

	kaiser := KaiserCount(eigs)
	k := kaiser
	if k > cfg.MaxFactors {
		k = cfg.MaxFactors
	}
	if k < cfg.MinFactors {
		k = cfg.MinFactors
	}
	if k > len(items) {
		k = len(items)
	}

	loadings, psi, err := mlFactorEM(corr, eigs, vecs, k, cfg.MaxIter, cfg.Tol)
	if err != nil {
		return nil, err
	}
	scores := regressionScores(z, loadings, psi)

	rotated, rotation, err := Varimax(loadings, 100, 1e-6)
	if err != nil {
		return nil, err
	}
	scores = matMul(scores, rotation)

	ApplySignConvention(rotated, scores)

	p := len(items)
	factors := make([]Factor, k)
	for j := 0; j < k; j++ {
		col := make([]float64, p)
		varExp := 0.0
		for i := 0; i < p; i++ {
			col[i] = rotated[i][j]
			varExp += col[i] * col[i]
		}
		factors[j] = Factor{
			Index:             j + 1,
			Loadings:          col,
			VarianceExplained: varExp / float64(p),
			TopItems:          rankByAbs(col),
		}
	}

	return &FactorSolution{
		Items:       items,
		KaiserCount: kaiser,
		NumFactors:  k,
		Eigenvalues: eigs,
		Factors:     factors,
		Scores:      scores,
		N:           len(rows),
	}, nil
}

// ApplySignConvention orients each factor so the mean of its top-5
// signed loadings is non-negative, flipping both the loading column and
// the score column when it is not. Running it on its own output is a
// no-op.
func ApplySignConvention(loadings [][]float64, scores [][]float64) {
	if len(loadings) == 0 {
		return
	}
	p := len(loadings)
	k := len(loadings[0])
	for j := 0; j < k; j++ {
		col := make([]float64, p)
		for i := 0; i < p; i++ {
			col[i] = loadings[i][j]
		}
		top := rankByAbs(col)
		limit := 5
		if len(top) < limit {
			limit = len(top)
		}
		sum := 0.0
		for _, idx := range top[:limit] {
			sum += col[idx]
		}
		if sum/float64(limit) < 0 {
			for i := 0; i < p; i++ {
				loadings[i][j] = -loadings[i][j]
			}
			for i := range scores {
				scores[i][j] = -scores[i][j]
			}
		}
	}
}

func rankByAbs(col []float64) []int {
	idx := make([]int, len(col))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return math.Abs(col[idx[a]]) > math.Abs(col[idx[b]])
	})
	return idx
}

// mlFactorEM fits the factor model S ~ WW' + Psi by expectation
// maximization on the correlation matrix, initialized from the principal
// components.
func mlFactorEM(corr [][]float64, eigs []float64, vecs [][]float64, k, maxIter int, tol float64) ([][]float64, []float64, error) {
	p := len(corr)

	// PCA warm start: loading_ij = v_ij * sqrt(lambda_j).
	w := make([][]float64, p)
	for i := 0; i < p; i++ {
		w[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			e := eigs[j]
			if e < 0 {
				e = 0
			}
			w[i][j] = vecs[i][j] * math.Sqrt(e)
		}
	}
	psi := make([]float64, p)
	for i := 0; i < p; i++ {
		comm := 0.0
		for j := 0; j < k; j++ {
			comm += w[i][j] * w[i][j]
		}
		psi[i] = math.Max(corr[i][i]-comm, 1e-3)
	}

	for iter := 0; iter < maxIter; iter++ {
		// G = (I + W' Psi^-1 W)^-1
		m0 := identity(k)
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				s := 0.0
				for i := 0; i < p; i++ {
					s += w[i][a] * w[i][b] / psi[i]
				}
				m0[a][b] += s
			}
		}
		g, err := invertSmall(m0)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: factor EM hit a singular system: %v", ErrDegenerate, err)
		}

		// delta = Psi^-1 W G   (p x k)
		delta := make([][]float64, p)
		for i := 0; i < p; i++ {
			delta[i] = make([]float64, k)
			for a := 0; a < k; a++ {
				s := 0.0
				for b := 0; b < k; b++ {
					s += w[i][b] * g[b][a]
				}
				delta[i][a] = s / psi[i]
			}
		}

		// dS = delta' S   (k x p), M = G + dS delta   (k x k)
		dS := make([][]float64, k)
		for a := 0; a < k; a++ {
			dS[a] = make([]float64, p)
			for j := 0; j < p; j++ {
				s := 0.0
				for i := 0; i < p; i++ {
					s += delta[i][a] * corr[i][j]
				}
				dS[a][j] = s
			}
		}
		m := cloneMatrix(g)
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				s := 0.0
				for i := 0; i < p; i++ {
					s += dS[a][i] * delta[i][b]
				}
				m[a][b] += s
			}
		}
		mInv, err := invertSmall(m)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: factor EM hit a singular system: %v", ErrDegenerate, err)
		}

		// W_new = S delta M^-1
		wNew := make([][]float64, p)
		maxDelta := 0.0
		for i := 0; i < p; i++ {
			wNew[i] = make([]float64, k)
			for a := 0; a < k; a++ {
				s := 0.0
				for b := 0; b < k; b++ {
					// (S delta)_ib = dS[b][i] by symmetry of S
					s += dS[b][i] * mInv[b][a]
				}
				wNew[i][a] = s
				if d := math.Abs(s - w[i][a]); d > maxDelta {
					maxDelta = d
				}
			}
		}

		// Psi_new = diag(S - W_new dS)
		for i := 0; i < p; i++ {
			s := 0.0
			for a := 0; a < k; a++ {
				s += wNew[i][a] * dS[a][i]
			}
			psi[i] = math.Max(corr[i][i]-s, 1e-4)
		}
		w = wNew
		if maxDelta < tol {
			break
		}
	}
	return w, psi, nil
}

// regressionScores computes factor scores by the regression method:
// F = Z Psi^-1 W (I + W' Psi^-1 W)^-1.
func regressionScores(z [][]float64, w [][]float64, psi []float64) [][]float64 {
	n := len(z)
	p := len(w)
	k := len(w[0])

	m0 := identity(k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			s := 0.0
			for i := 0; i < p; i++ {
				s += w[i][a] * w[i][b] / psi[i]
			}
			m0[a][b] += s
		}
	}
	g, err := invertSmall(m0)
	if err != nil {
		// Psi is floored away from zero, so this system stays regular in
		// practice; fall back to zero scores rather than panic.
		zero := make([][]float64, n)
		for i := range zero {
			zero[i] = make([]float64, k)
		}
		return zero
	}

	// proj = Psi^-1 W G   (p x k)
	proj := make([][]float64, p)
	for i := 0; i < p; i++ {
		proj[i] = make([]float64, k)
		for a := 0; a < k; a++ {
			s := 0.0
			for b := 0; b < k; b++ {
				s += w[i][b] * g[b][a]
			}
			proj[i][a] = s / psi[i]
		}
	}
	return matMul(z, proj)
}

// invertSmall inverts a small dense matrix by Gauss-Jordan elimination
// with partial pivoting.
func invertSmall(m [][]float64) ([][]float64, error) {
	n := len(m)
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("matrix is singular at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		pv := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= f * aug[col][j]
			}
		}
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = aug[i][n:]
	}
	return out, nil
}

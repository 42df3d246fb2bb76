package statmodel

import (
	"fmt"
	"math"
	"math/rand"
)

// Penalty kinds for the regularized logistic fit.
const (
	PenaltyL1         = "l1"
	PenaltyL2         = "l2"
	PenaltyElasticNet = "elasticnet"
)

// LogisticConfig controls the penalized logistic fit. The regularization
// grid and fold count are external configuration so the same engine can
// be retargeted without code changes; RandomSeed makes the fold shuffle
// reproducible.
type LogisticConfig struct {
	Penalty    string
	L1Ratio    float64 // only for elasticnet
	CGrid      []float64
	Folds      int
	MaxIter    int
	Tol        float64
	RandomSeed int64
}

// DefaultLogisticConfig mirrors the historical analysis settings: L1
// penalty, 10 inverse-strength values log-spaced over 1e-4..1e4, 5-fold
// cross-validation.
func DefaultLogisticConfig(seed int64) LogisticConfig {
	grid := make([]float64, 10)
	for i := range grid {
		grid[i] = math.Pow(10, -4+float64(i)*8.0/9.0)
	}
	return LogisticConfig{
		Penalty:    PenaltyL1,
		L1Ratio:    0.5,
		CGrid:      grid,
		Folds:      5,
		MaxIter:    2000,
		Tol:        1e-6,
		RandomSeed: seed,
	}
}

// LogisticCoefficient is one fitted term. OddsRatio = exp(Estimate).
type LogisticCoefficient struct {
	Name      string  `json:"name"`
	Estimate  float64 `json:"estimate"`
	OddsRatio float64 `json:"odds_ratio"`
}

// LogisticModel is a fitted penalized logistic regression: the
// regularization strength selected by cross-validation, the refit
// coefficients, and both in-sample and cross-validated AUC.
type LogisticModel struct {
	Outcome      string                `json:"outcome"`
	Penalty      string                `json:"penalty"`
	SelectedC    float64               `json:"selected_c"`
	Intercept    float64               `json:"intercept"`
	Coefficients []LogisticCoefficient `json:"coefficients"`
	N            int                   `json:"n"`
	NPositive    int                   `json:"n_positive"`
	AUC          float64               `json:"auc"`
	CVAUCMean    float64               `json:"cv_auc_mean"`
	CVAUCStd     float64               `json:"cv_auc_std"`
}

// FitPenalizedLogistic fits binary_outcome ~ predictors with an L1, L2,
// or elastic-net penalty. The regularization strength is selected by
// k-fold cross-validated AUC over the configured grid, then the model is
// refit at that strength on the full sample. A single-class outcome is
// detected up front and returned as ErrDegenerate; it is never silently
// fit.
func FitPenalizedLogistic(outcome string, y []float64, names []string, x [][]float64, cfg LogisticConfig) (*LogisticModel, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, fmt.Errorf("outcome has %d rows, predictors have %d", n, len(x))
	}
	nPos := 0
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("outcome %q is not binary: value %v", outcome, v)
		}
		if v == 1 {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		return nil, fmt.Errorf("%w: outcome %q has a single class (%d positive of %d)", ErrDegenerate, outcome, nPos, n)
	}
	if len(cfg.CGrid) == 0 {
		return nil, fmt.Errorf("empty regularization grid")
	}
	if cfg.Folds < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", cfg.Folds)
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	folds := assignFolds(n, cfg.Folds, rng)

	// Select C by mean cross-validated AUC.
	bestC := cfg.CGrid[0]
	bestAUC := math.Inf(-1)
	var bestFoldAUCs []float64
	for _, c := range cfg.CGrid {
		aucs, err := crossValidateAUC(y, x, folds, cfg.Folds, c, cfg)
		if err != nil {
			continue // a fold with a single-class split; try the next strength
		}
		m := Mean(aucs)
		if m > bestAUC {
			bestAUC = m
			bestC = c
			bestFoldAUCs = aucs
		}
	}
	if bestFoldAUCs == nil {
		return nil, fmt.Errorf("%w: every cross-validation split left a single-class fold", ErrDegenerate)
	}

	// Refit at the selected strength on the full sample.
	w, b := fitLogisticProx(y, x, bestC, cfg)
	scores := make([]float64, n)
	for i := range x {
		scores[i] = logisticScore(x[i], w, b)
	}
	inSample, err := AUC(y, scores)
	if err != nil {
		return nil, err
	}

	coefs := make([]LogisticCoefficient, len(names))
	for j, name := range names {
		coefs[j] = LogisticCoefficient{Name: name, Estimate: w[j], OddsRatio: math.Exp(w[j])}
	}
	return &LogisticModel{
		Outcome:      outcome,
		Penalty:      cfg.Penalty,
		SelectedC:    bestC,
		Intercept:    b,
		Coefficients: coefs,
		N:            n,
		NPositive:    nPos,
		AUC:          inSample,
		CVAUCMean:    Mean(bestFoldAUCs),
		CVAUCStd:     SampleStdDev(bestFoldAUCs),
	}, nil
}

func assignFolds(n, k int, rng *rand.Rand) []int {
	folds := make([]int, n)
	for i := range folds {
		folds[i] = i % k
	}
	rng.Shuffle(n, func(i, j int) { folds[i], folds[j] = folds[j], folds[i] })
	return folds
}

func crossValidateAUC(y []float64, x [][]float64, folds []int, k int, c float64, cfg LogisticConfig) ([]float64, error) {
	aucs := make([]float64, 0, k)
	for f := 0; f < k; f++ {
		var trainY, testY []float64
		var trainX, testX [][]float64
		for i := range y {
			if folds[i] == f {
				testY = append(testY, y[i])
				testX = append(testX, x[i])
			} else {
				trainY = append(trainY, y[i])
				trainX = append(trainX, x[i])
			}
		}
		if singleClass(trainY) || singleClass(testY) {
			return nil, fmt.Errorf("fold %d has a single-class split", f)
		}
		w, b := fitLogisticProx(trainY, trainX, c, cfg)
		scores := make([]float64, len(testX))
		for i := range testX {
			scores[i] = logisticScore(testX[i], w, b)
		}
		a, err := AUC(testY, scores)
		if err != nil {
			return nil, err
		}
		aucs = append(aucs, a)
	}
	return aucs, nil
}

func singleClass(y []float64) bool {
	nPos := 0
	for _, v := range y {
		if v == 1 {
			nPos++
		}
	}
	return nPos == 0 || nPos == len(y)
}

func logisticScore(x, w []float64, b float64) float64 {
	z := b
	for j := range w {
		z += w[j] * x[j]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// fitLogisticProx minimizes the mean log-loss plus the elastic-net
// penalty alpha*(l1r*|w|_1 + (1-l1r)/2*|w|_2^2), alpha = 1/(C*n), via
// proximal gradient descent with a Lipschitz step. The intercept is
// unpenalized. L1 and L2 penalties are the l1r=1 and l1r=0 special
// cases.
func fitLogisticProx(y []float64, x [][]float64, c float64, cfg LogisticConfig) ([]float64, float64) {
	n := len(y)
	p := 0
	if n > 0 {
		p = len(x[0])
	}
	alpha := 1 / (c * float64(n))
	l1r := penaltyL1Ratio(cfg)

	// Lipschitz constant of the smooth part: logistic curvature is at
	// most 1/4, so L <= spectral_norm(X'X)/(4n) + alpha*(1-l1r).
	lip := spectralNormXtX(x)/(4*float64(n)) + alpha*(1-l1r)
	if lip <= 0 {
		lip = 1
	}
	step := 1 / lip

	w := make([]float64, p)
	b := 0.0
	grad := make([]float64, p)
	for iter := 0; iter < cfg.MaxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i := 0; i < n; i++ {
			e := logisticScore(x[i], w, b) - y[i]
			for j := 0; j < p; j++ {
				grad[j] += e * x[i][j]
			}
			gradB += e
		}
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			g := grad[j]/float64(n) + alpha*(1-l1r)*w[j]
			next := softThreshold(w[j]-step*g, step*alpha*l1r)
			if d := math.Abs(next - w[j]); d > maxDelta {
				maxDelta = d
			}
			w[j] = next
		}
		nextB := b - step*gradB/float64(n)
		if d := math.Abs(nextB - b); d > maxDelta {
			maxDelta = d
		}
		b = nextB
		if maxDelta < cfg.Tol {
			break
		}
	}
	return w, b
}

func penaltyL1Ratio(cfg LogisticConfig) float64 {
	switch cfg.Penalty {
	case PenaltyL1:
		return 1
	case PenaltyL2:
		return 0
	default:
		return cfg.L1Ratio
	}
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// spectralNormXtX estimates the largest eigenvalue of X'X by power
// iteration; predictor counts here are small so this converges in a
// handful of steps.
func spectralNormXtX(x [][]float64) float64 {
	if len(x) == 0 || len(x[0]) == 0 {
		return 0
	}
	p := len(x[0])
	v := make([]float64, p)
	for j := range v {
		v[j] = 1 / math.Sqrt(float64(p))
	}
	xv := make([]float64, len(x))
	next := make([]float64, p)
	lambda := 0.0
	for iter := 0; iter < 50; iter++ {
		for i := range x {
			s := 0.0
			for j := 0; j < p; j++ {
				s += x[i][j] * v[j]
			}
			xv[i] = s
		}
		for j := 0; j < p; j++ {
			s := 0.0
			for i := range x {
				s += x[i][j] * xv[i]
			}
			next[j] = s
		}
		norm := 0.0
		for j := 0; j < p; j++ {
			norm += next[j] * next[j]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return 0
		}
		for j := 0; j < p; j++ {
			v[j] = next[j] / norm
		}
		if math.Abs(norm-lambda) < 1e-9*math.Max(1, lambda) {
			lambda = norm
			break
		}
		lambda = norm
	}
	return lambda
}

package statmodel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDegenerate marks model inputs a fit cannot be computed from: a
// zero-variance outcome, a single-class binary outcome, or fewer
// observations than parameters. Callers skip the model and report the
// reason; they never substitute coefficients.
var ErrDegenerate = errors.New("degenerate model input")

// Coefficient is one fitted term of a linear model. Standardized is the
// coefficient rescaled by the fitting sample's standard deviations
// (raw * sd(x) / sd(y)); it is zero for the intercept.
type Coefficient struct {
	Name         string  `json:"name"`
	Estimate     float64 `json:"estimate"`
	StdError     float64 `json:"std_error"`
	TValue       float64 `json:"t_value"`
	PValue       float64 `json:"p_value"`
	Standardized float64 `json:"standardized"`
}

// OLSModel is a fitted ordinary-least-squares regression. Immutable once
// returned by FitOLS.
type OLSModel struct {
	Outcome      string        `json:"outcome"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	FStat        float64       `json:"f_stat"`
	FPValue      float64       `json:"f_p_value"`
	AIC          float64       `json:"aic"`
	BIC          float64       `json:"bic"`
	ResidualSS   float64       `json:"residual_ss"`
	DFResidual   int           `json:"df_residual"`
}

// Intercept returns the fitted constant term.
func (m *OLSModel) Intercept() float64 {
	return m.Coefficients[0].Estimate
}

// Coef returns the coefficient for a named predictor.
func (m *OLSModel) Coef(name string) (Coefficient, bool) {
	for _, c := range m.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// NumPredictors is the count of fitted terms excluding the intercept.
func (m *OLSModel) NumPredictors() int {
	return len(m.Coefficients) - 1
}

// FitOLS fits outcome ~ predictors with an intercept over a complete-case
// sample: y holds one observation per row of x, and x is row-major with
// one column per entry of names. Standard errors come from the classical
// covariance estimate, p-values from a two-sided t-test.
func FitOLS(outcome string, y []float64, names []string, x [][]float64) (*OLSModel, error) {
	n := len(y)
	p := len(names)
	if n == 0 || len(x) != n {
		return nil, fmt.Errorf("outcome has %d rows, predictors have %d", n, len(x))
	}
	if n <= p+1 {
		return nil, fmt.Errorf("%w: n=%d with %d predictors", ErrDegenerate, n, p)
	}
	ySD := SampleStdDev(y)
	if ySD == 0 || math.IsNaN(ySD) {
		return nil, fmt.Errorf("%w: outcome %q has zero variance (n=%d)", ErrDegenerate, outcome, n)
	}

	// Design matrix with a leading intercept column.
	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		if len(x[i]) != p {
			return nil, fmt.Errorf("row %d has %d predictors, want %d", i, len(x[i]), p)
		}
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x[i][j])
		}
	}
	yVec := mat.NewVecDense(n, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(design)
	beta := mat.NewVecDense(p+1, nil)
	if err := qr.SolveVecTo(beta, false, yVec); err != nil {
		return nil, fmt.Errorf("%w: design matrix is rank deficient: %v", ErrDegenerate, err)
	}

	// Residual and total sums of squares.
	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(design, beta)
	yMean := Mean(y)
	var ssr, sst float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
		d := y[i] - yMean
		sst += d * d
	}
	dfRes := n - p - 1
	sigma2 := ssr / float64(dfRes)

	// Coefficient covariance: sigma^2 (X'X)^-1.
	var xtx, xtxInv mat.Dense
	xtx.Mul(design.T(), design)
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: X'X is singular: %v", ErrDegenerate, err)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfRes)}
	coefs := make([]Coefficient, p+1)
	for j := 0; j <= p; j++ {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		t := est / se
		pv := 2 * tDist.Survival(math.Abs(t))
		name := "(Intercept)"
		std := 0.0
		if j > 0 {
			name = names[j-1]
			col := make([]float64, n)
			for i := 0; i < n; i++ {
				col[i] = x[i][j-1]
			}
			std = est * SampleStdDev(col) / ySD
		}
		coefs[j] = Coefficient{
			Name:         name,
			Estimate:     est,
			StdError:     se,
			TValue:       t,
			PValue:       pv,
			Standardized: std,
		}
	}

	r2 := 1 - ssr/sst
	adjR2 := 1 - (1-r2)*float64(n-1)/float64(dfRes)

	fStat := math.NaN()
	fP := math.NaN()
	if p > 0 && r2 < 1 {
		fStat = (r2 / float64(p)) / ((1 - r2) / float64(dfRes))
		fDist := distuv.F{D1: float64(p), D2: float64(dfRes)}
		fP = fDist.Survival(fStat)
	}

	// Gaussian log-likelihood based information criteria, counting the
	// intercept and slopes as free parameters.
	ll := -float64(n) / 2 * (math.Log(2*math.Pi) + math.Log(ssr/float64(n)) + 1)
	k := float64(p + 1)
	aic := -2*ll + 2*k
	bic := -2*ll + math.Log(float64(n))*k

	return &OLSModel{
		Outcome:      outcome,
		Coefficients: coefs,
		N:            n,
		RSquared:     r2,
		AdjRSquared:  adjR2,
		FStat:        fStat,
		FPValue:      fP,
		AIC:          aic,
		BIC:          bic,
		ResidualSS:   ssr,
		DFResidual:   dfRes,
	}, nil
}

package statmodel

import (
	"fmt"
	"math"
)

// Mean of a sample. NaN for an empty slice so a degenerate input is
// visible instead of silently zero.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev is the n-1 denominator standard deviation. Standardized
// coefficients divide by these, never by population constants.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// SampleVariance is the n-1 denominator variance.
func SampleVariance(xs []float64) float64 {
	sd := SampleStdDev(xs)
	return sd * sd
}

// Standardize maps a sample to zero mean, unit variance. A zero-variance
// column cannot be standardized; that is a degenerate input, not a value
// to fake.
func Standardize(xs []float64) ([]float64, error) {
	sd := SampleStdDev(xs)
	if math.IsNaN(sd) || sd == 0 {
		return nil, fmt.Errorf("cannot standardize sample with zero variance (n=%d)", len(xs))
	}
	m := Mean(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = (x - m) / sd
	}
	return out, nil
}

// StandardizeColumns standardizes every column of a row-major matrix in
// one pass, returning the new matrix plus the per-column means and
// standard deviations used.
func StandardizeColumns(rows [][]float64) ([][]float64, []float64, []float64, error) {
	if len(rows) == 0 {
		return nil, nil, nil, fmt.Errorf("empty matrix")
	}
	p := len(rows[0])
	means := make([]float64, p)
	sds := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = rows[i][j]
		}
		means[j] = Mean(col)
		sds[j] = SampleStdDev(col)
		if math.IsNaN(sds[j]) || sds[j] == 0 {
			return nil, nil, nil, fmt.Errorf("column %d has zero variance", j)
		}
	}
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			out[i][j] = (rows[i][j] - means[j]) / sds[j]
		}
	}
	return out, means, sds, nil
}

// PearsonCorrelation between two equal-length samples.
func PearsonCorrelation(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(xs), len(ys))
	}
	if len(xs) < 3 {
		return 0, fmt.Errorf("need at least 3 observations, got %d", len(xs))
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, fmt.Errorf("zero variance input")
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

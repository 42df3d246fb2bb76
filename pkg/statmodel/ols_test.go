package statmodel

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFitOLSRecoversCoefficients(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 400
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := rng.NormFloat64()
		x2 := rng.NormFloat64()
		x[i] = []float64{x1, x2}
		y[i] = 2 + 3*x1 - 1.5*x2 + 0.1*rng.NormFloat64()
	}

	model, err := FitOLS("outcome", y, []string{"x1", "x2"}, x)
	if err != nil {
		t.Fatalf("FitOLS: %v", err)
	}
	if model.N != n {
		t.Errorf("N = %d, want %d", model.N, n)
	}
	if got := model.Intercept(); math.Abs(got-2) > 0.05 {
		t.Errorf("intercept = %v, want ~2", got)
	}
	c1, ok := model.Coef("x1")
	if !ok || math.Abs(c1.Estimate-3) > 0.05 {
		t.Errorf("x1 estimate = %v, want ~3", c1.Estimate)
	}
	c2, ok := model.Coef("x2")
	if !ok || math.Abs(c2.Estimate+1.5) > 0.05 {
		t.Errorf("x2 estimate = %v, want ~-1.5", c2.Estimate)
	}
	if c1.PValue >= 1e-6 {
		t.Errorf("x1 p-value = %v, want near zero for a strong signal", c1.PValue)
	}
	if model.RSquared < 0.99 {
		t.Errorf("R^2 = %v, want > 0.99 with noise sd 0.1", model.RSquared)
	}
	if model.DFResidual != n-3 {
		t.Errorf("df residual = %d, want %d", model.DFResidual, n-3)
	}
	if model.BIC <= model.AIC {
		t.Errorf("BIC %v should exceed AIC %v at n=%d", model.BIC, model.AIC, n)
	}
}

func TestFitOLSStandardizedCoefficient(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 200
	x := make([][]float64, n)
	y := make([]float64, n)
	xs := make([]float64, n)
	for i := 0; i < n; i++ {
		v := 3 * rng.NormFloat64()
		xs[i] = v
		x[i] = []float64{v}
		y[i] = 1 + 0.5*v + rng.NormFloat64()
	}
	model, err := FitOLS("outcome", y, []string{"x"}, x)
	if err != nil {
		t.Fatalf("FitOLS: %v", err)
	}
	c, _ := model.Coef("x")
	want := c.Estimate * SampleStdDev(xs) / SampleStdDev(y)
	if math.Abs(c.Standardized-want) > 1e-12 {
		t.Errorf("standardized = %v, want %v", c.Standardized, want)
	}
	if math.Abs(c.Standardized) >= 1 {
		t.Errorf("standardized simple-regression coefficient %v must stay inside (-1, 1)", c.Standardized)
	}
}

func TestFitOLSDegenerateOutcome(t *testing.T) {
	y := []float64{3, 3, 3, 3, 3, 3}
	x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	_, err := FitOLS("flat", y, []string{"x"}, x)
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("constant outcome: err = %v, want ErrDegenerate", err)
	}

	_, err = FitOLS("tiny", []float64{1, 2}, []string{"x"}, [][]float64{{1}, {2}})
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("n <= p+1: err = %v, want ErrDegenerate", err)
	}
}

func TestCompareNestedDetectsAddedSignal(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	n := 300
	x1 := make([][]float64, n)
	x12 := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		b := rng.NormFloat64()
		x1[i] = []float64{a}
		x12[i] = []float64{a, b}
		y[i] = a + 5*b + 0.5*rng.NormFloat64()
	}

	reduced, err := FitOLS("y", y, []string{"x1"}, x1)
	if err != nil {
		t.Fatalf("reduced: %v", err)
	}
	full, err := FitOLS("y", y, []string{"x1", "x2"}, x12)
	if err != nil {
		t.Fatalf("full: %v", err)
	}

	ft, err := CompareNested(reduced, full)
	if err != nil {
		t.Fatalf("CompareNested: %v", err)
	}
	if ft.DFNumer != 1 {
		t.Errorf("df numerator = %d, want 1", ft.DFNumer)
	}
	if ft.DFDenom != n-3 {
		t.Errorf("df denominator = %d, want %d", ft.DFDenom, n-3)
	}
	if !ft.Significant || ft.PValue >= 1e-6 {
		t.Errorf("strong added predictor: p = %v, want near zero", ft.PValue)
	}
	if ft.DeltaR2 <= 0 {
		t.Errorf("delta R^2 = %v, want positive", ft.DeltaR2)
	}
}

func TestCompareNestedNoisePredictorNotSignificant(t *testing.T) {
	// A predictor unrelated to the outcome gives a uniform p-value, so
	// across replications the comparison should rarely reach 0.05.
	significant := 0
	reps := 20
	for rep := 0; rep < reps; rep++ {
		rng := rand.New(rand.NewSource(int64(100 + rep)))
		n := 200
		x1 := make([][]float64, n)
		x12 := make([][]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			a := rng.NormFloat64()
			noise := rng.NormFloat64()
			x1[i] = []float64{a}
			x12[i] = []float64{a, noise}
			y[i] = a + 0.5*rng.NormFloat64()
		}

		reduced, err := FitOLS("y", y, []string{"x1"}, x1)
		if err != nil {
			t.Fatalf("reduced: %v", err)
		}
		full, err := FitOLS("y", y, []string{"x1", "noise"}, x12)
		if err != nil {
			t.Fatalf("full: %v", err)
		}
		ft, err := CompareNested(reduced, full)
		if err != nil {
			t.Fatalf("CompareNested: %v", err)
		}
		if ft.Significant {
			significant++
		}
	}
	if significant > 5 {
		t.Errorf("noise predictor significant in %d/%d replications", significant, reps)
	}
}

func TestCompareNestedSampleMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	build := func(n int) *OLSModel {
		x := make([][]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			v := rng.NormFloat64()
			x[i] = []float64{v}
			y[i] = v + rng.NormFloat64()
		}
		m, err := FitOLS("y", y, []string{"x"}, x)
		if err != nil {
			t.Fatalf("FitOLS: %v", err)
		}
		return m
	}
	if _, err := CompareNested(build(50), build(60)); err == nil {
		t.Fatalf("models on different samples must not be compared")
	}
}

func TestWaveTrend(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	var waves []int
	var values []float64
	for w := 1; w <= 4; w++ {
		for i := 0; i < 100; i++ {
			waves = append(waves, w)
			values = append(values, 3+0.5*float64(w)+0.2*rng.NormFloat64())
		}
	}
	tr, err := WaveTrend("intent_score", waves, values)
	if err != nil {
		t.Fatalf("WaveTrend: %v", err)
	}
	if math.Abs(tr.Slope-0.5) > 0.05 {
		t.Errorf("slope = %v, want ~0.5", tr.Slope)
	}
	if tr.Direction != "improving" {
		t.Errorf("direction = %q, want improving", tr.Direction)
	}
	if tr.Waves != 4 {
		t.Errorf("waves = %d, want 4", tr.Waves)
	}
}

func TestWaveTrendSingleWave(t *testing.T) {
	_, err := WaveTrend("x", []int{2, 2, 2}, []float64{1, 2, 3})
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("single wave: err = %v, want ErrDegenerate", err)
	}
}

func TestCenterWaves(t *testing.T) {
	got := CenterWaves([]int{1, 2, 3, 4})
	want := []float64{-1.5, -0.5, 0.5, 1.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("CenterWaves = %v, want %v", got, want)
		}
	}
}

func TestSobelMediationDetectsIndirectPath(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	n := 300
	x := make([]float64, n)
	m := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		m[i] = 0.8*x[i] + 0.4*rng.NormFloat64()
		y[i] = 0.7*m[i] + 0.4*rng.NormFloat64()
	}

	res, err := SobelMediation("familiarity", "opinion", "intent", x, m, y)
	if err != nil {
		t.Fatalf("SobelMediation: %v", err)
	}
	if !res.Significant {
		t.Fatalf("strong indirect path: p = %v, want significant", res.SobelP)
	}
	if math.Abs(res.Indirect-res.PathA*res.PathB) > 1e-12 {
		t.Errorf("indirect = %v, want a*b = %v", res.Indirect, res.PathA*res.PathB)
	}
	wantSE := math.Sqrt(res.PathB*res.PathB*res.PathASE*res.PathASE +
		res.PathA*res.PathA*res.PathBSE*res.PathBSE)
	if math.Abs(res.SobelSE-wantSE) > 1e-12 {
		t.Errorf("sobel SE = %v, want %v", res.SobelSE, wantSE)
	}
	if res.Kind != "full" && res.Kind != "partial" {
		t.Errorf("kind = %q, want full or partial for a significant path", res.Kind)
	}
	if !res.HasMediated {
		t.Errorf("proportion mediated should be defined when the total effect is nonzero")
	}
}

func TestSobelMediationPartialRequiresBothPaths(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	n := 400

	// Direct and mediated effects both strong: partial mediation.
	x := make([]float64, n)
	m := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		m[i] = 0.8*x[i] + 0.4*rng.NormFloat64()
		y[i] = 0.5*x[i] + 0.5*m[i] + 0.4*rng.NormFloat64()
	}
	res, err := SobelMediation("familiarity", "opinion", "intent", x, m, y)
	if err != nil {
		t.Fatalf("SobelMediation: %v", err)
	}
	if res.Kind != "partial" {
		t.Errorf("kind = %q, want partial when direct and mediator paths both hold", res.Kind)
	}

	// Mediator unrelated to either side: no indirect path, so neither
	// mediation label applies.
	for i := 0; i < n; i++ {
		y[i] = 0.9*x[i] + 0.4*rng.NormFloat64()
		m[i] = rng.NormFloat64()
	}
	res, err = SobelMediation("familiarity", "opinion", "intent", x, m, y)
	if err != nil {
		t.Fatalf("SobelMediation: %v", err)
	}
	if res.Kind != "none" {
		t.Errorf("kind = %q, want none when the mediator carries no effect", res.Kind)
	}
}

func TestSobelMediationLengthMismatch(t *testing.T) {
	_, err := SobelMediation("x", "m", "y",
		make([]float64, 20), make([]float64, 19), make([]float64, 20))
	if err == nil {
		t.Fatalf("mismatched series must be rejected")
	}
}

func TestCronbachAlpha(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	n := 120
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		common := rng.NormFloat64()
		rows[i] = make([]float64, 4)
		for j := 0; j < 4; j++ {
			rows[i][j] = common + 0.5*rng.NormFloat64()
		}
	}
	rel, err := CronbachAlpha(rows)
	if err != nil {
		t.Fatalf("CronbachAlpha: %v", err)
	}
	if rel.Alpha < 0.7 {
		t.Errorf("alpha = %v, want > 0.7 for parallel items", rel.Alpha)
	}
	if rel.Items != 4 || rel.N != n {
		t.Errorf("items=%d n=%d, want 4 and %d", rel.Items, rel.N, n)
	}
}

func TestCronbachAlphaTooFewCases(t *testing.T) {
	rows := [][]float64{{1, 2}, {2, 3}, {3, 4}}
	if _, err := CronbachAlpha(rows); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("3 cases: err = %v, want ErrDegenerate", err)
	}
}

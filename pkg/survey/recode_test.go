package survey

import (
	"math"
	"testing"
)

func TestCleanRatingSentinels(t *testing.T) {
	// 0 and 99 are vendor sentinels, never observations.
	tests := []struct {
		name    string
		input   Value
		missing bool
		want    float64
	}{
		{"not answered", NumericValue(0), true, 0},
		{"dont know", NumericValue(99), true, 0},
		{"low anchor", NumericValue(1), false, 1},
		{"top box", NumericValue(5), false, 5},
		{"mid", NumericValue(3), false, 3},
		{"out of domain high", NumericValue(7), true, 0},
		{"negative", NumericValue(-2), true, 0},
		{"already missing", MissingValue(), true, 0},
		{"categorical", CategoricalValue("A"), true, 0},
	}

	for _, tt := range tests {
		got := CleanRating(tt.input)
		if got.IsMissing() != tt.missing {
			t.Errorf("%s: CleanRating missing=%v, want %v", tt.name, got.IsMissing(), tt.missing)
			continue
		}
		if !tt.missing {
			if n, _ := got.Float(); n != tt.want {
				t.Errorf("%s: CleanRating = %v, want %v", tt.name, n, tt.want)
			}
		}
	}
}

func TestCleanBipolarKeepsFullRange(t *testing.T) {
	for v := 1.0; v <= 7; v++ {
		got := CleanBipolar(NumericValue(v))
		if n, ok := got.Float(); !ok || n != v {
			t.Errorf("CleanBipolar(%v) = %v, want pass-through", v, got)
		}
	}
	for _, v := range []float64{0, 99, 8, -1} {
		if got := CleanBipolar(NumericValue(v)); !got.IsMissing() {
			t.Errorf("CleanBipolar(%v) = %v, want missing", v, got)
		}
	}
}

func TestCleanCountZeroIsData(t *testing.T) {
	if got := CleanCount(NumericValue(0)); got.IsMissing() {
		t.Fatalf("CleanCount(0) must keep zero visits as data")
	}
	if got := CleanCount(NumericValue(99)); !got.IsMissing() {
		t.Fatalf("CleanCount(99) = %v, want missing", got)
	}
}

func TestHarmonize17(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1, 1},
		{2, 2.5},
		{3, 4},
		{4, 5.5},
		{5, 7},
	}
	for _, tt := range tests {
		got := Harmonize17(NumericValue(tt.in))
		n, ok := got.Float()
		if !ok || math.Abs(n-tt.want) > 1e-12 {
			t.Errorf("Harmonize17(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !Harmonize17(MissingValue()).IsMissing() {
		t.Errorf("Harmonize17(missing) must stay missing")
	}
}

func TestTopBoxTotalOnCleanedDomain(t *testing.T) {
	if n, _ := TopBox(NumericValue(5)).Float(); n != 1 {
		t.Errorf("TopBox(5) = %v, want 1", n)
	}
	for v := 1.0; v <= 4; v++ {
		if n, _ := TopBox(NumericValue(v)).Float(); n != 0 {
			t.Errorf("TopBox(%v) = %v, want 0", v, n)
		}
	}
	if !TopBox(MissingValue()).IsMissing() {
		t.Errorf("TopBox(missing) must stay missing")
	}
	// Values outside the cleaned 1-5 domain are missing, not 0: the
	// recoder has not seen them, so there is nothing to binarize.
	for _, v := range []float64{0, 6, 99} {
		if got := TopBox(NumericValue(v)); !got.IsMissing() {
			t.Errorf("TopBox(%v) = %v, want missing", v, got)
		}
	}
}

func TestTopBoxAfterCleaning(t *testing.T) {
	// The composed pipeline order: clean first, then binarize. A raw
	// "don't know" must come out missing, never not-top-box.
	got := TopBox(CleanRating(NumericValue(99)))
	if !got.IsMissing() {
		t.Fatalf("TopBox(CleanRating(99)) = %v, want missing", got)
	}
}

func TestMeanOfAvailable(t *testing.T) {
	r := NewRespondent(1)
	r.Set("a", NumericValue(4))
	r.Set("b", MissingValue())
	r.Set("c", NumericValue(2))

	got := MeanOfAvailable(r, []string{"a", "b", "c"})
	n, ok := got.Float()
	if !ok || n != 3.0 {
		t.Fatalf("MeanOfAvailable = %v, want 3.0 (missing item excluded from denominator)", got)
	}

	empty := NewRespondent(2)
	if !MeanOfAvailable(empty, []string{"a", "b"}).IsMissing() {
		t.Fatalf("MeanOfAvailable with no observations must be missing, not zero")
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1, 0},
		{4, 5},
		{7, 10},
	}
	for _, tt := range tests {
		got := Rescale(NumericValue(tt.in), 1, 7, 0, 10)
		n, ok := got.Float()
		if !ok || math.Abs(n-tt.want) > 1e-12 {
			t.Errorf("Rescale(%v, 1..7 -> 0..10) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !Rescale(NumericValue(3), 2, 2, 0, 10).IsMissing() {
		t.Errorf("Rescale over a degenerate source range must be missing")
	}
}

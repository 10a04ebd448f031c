package ml

import (
	"math"
	"testing"
)

func TestStdDevDegenerateInputs(t *testing.T) {
	// A single observation has no sample deviation; the library's n-1
	// denominator would yield NaN, which poisons every downstream column.
	if s := StdDev([]float64{5}); s != 0 {
		t.Fatalf("single sample should have zero deviation, got %v", s)
	}
	if s := StdDev(nil); s != 0 {
		t.Fatalf("empty input should have zero deviation, got %v", s)
	}
	if v := Variance([]float64{5}); v != 0 {
		t.Fatalf("single sample should have zero variance, got %v", v)
	}
	if s := StdDev([]float64{2, 4}); math.IsNaN(s) || s == 0 {
		t.Fatalf("two samples have a real deviation, got %v", s)
	}
}

func TestZScoresConstantInput(t *testing.T) {
	scores := ZScores([]float64{5, 5, 5, 5})
	for _, s := range scores {
		if s != 0 {
			t.Fatalf("expected zero scores for constant input, got %v", scores)
		}
	}
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	if r := Pearson(x, y); math.Abs(r-1) > 1e-9 {
		t.Fatalf("expected r=1, got %v", r)
	}
	inv := []float64{10, 8, 6, 4, 2}
	if r := Pearson(x, inv); math.Abs(r+1) > 1e-9 {
		t.Fatalf("expected r=-1, got %v", r)
	}
}

func TestTrendLineRecoversSlope(t *testing.T) {
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = float64(i)
		y[i] = 3*float64(i) + 7
	}
	slope, intercept, r2, p := TrendLine(x, y)
	if math.Abs(slope-3) > 1e-9 || math.Abs(intercept-7) > 1e-9 {
		t.Fatalf("expected slope 3 intercept 7, got %v %v", slope, intercept)
	}
	if r2 < 0.999 {
		t.Fatalf("expected r2 near 1, got %v", r2)
	}
	if p > 0.001 {
		t.Fatalf("expected significant trend, got p=%v", p)
	}
}

func TestTrendLineFlatSeriesNotSignificant(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	slope, _, _, p := TrendLine(x, y)
	if slope != 0 {
		t.Fatalf("expected zero slope, got %v", slope)
	}
	if p < 0.05 {
		t.Fatalf("flat series should not be significant, got p=%v", p)
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if v := Percentile(xs, 50); math.Abs(v-5.5) > 1 {
		t.Fatalf("unexpected median percentile %v", v)
	}
	if v := Percentile(xs, 95); v < 9 {
		t.Fatalf("unexpected 95th percentile %v", v)
	}
}

package ml

import (
	"math"
	"testing"
)

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 30; i++ {
		a := float64(i)
		b := float64(i % 7)
		X = append(X, []float64{a, b})
		y = append(y, 2*a-3*b+1)
	}

	m := NewLinearRegression()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if math.Abs(m.Intercept-1) > 1e-6 {
		t.Fatalf("expected intercept 1, got %v", m.Intercept)
	}
	if math.Abs(m.Coef[0]-2) > 1e-6 || math.Abs(m.Coef[1]+3) > 1e-6 {
		t.Fatalf("expected coefficients [2,-3], got %v", m.Coef)
	}
	if got := m.Predict([]float64{10, 2}); math.Abs(got-15) > 1e-6 {
		t.Fatalf("expected 15, got %v", got)
	}
}

func TestLinearRegressionRejectsUnderdetermined(t *testing.T) {
	m := NewLinearRegression()
	err := m.Fit([][]float64{{1, 2, 3}}, []float64{1})
	if err == nil {
		t.Fatal("expected error for underdetermined system")
	}
}

package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearRegression is an ordinary least squares model solved by QR
// factorization.
type LinearRegression struct {
	Intercept float64
	Coef      []float64
}

// NewLinearRegression returns an unfitted model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves min ||y - Xb|| with an intercept column. Requires at least as
// many rows as coefficients.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 || len(y) != n {
		return fmt.Errorf("linear fit: need matching non-empty X and y")
	}
	p := len(X[0])
	if n < p+1 {
		return fmt.Errorf("linear fit: %d rows insufficient for %d coefficients", n, p+1)
	}

	a := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			a.Set(i, j+1, X[i][j])
		}
	}
	b := mat.NewDense(n, 1, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(a)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return fmt.Errorf("linear fit: %w", err)
	}

	m.Intercept = beta.At(0, 0)
	m.Coef = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Coef[j] = beta.At(j+1, 0)
	}
	return nil
}

// Predict returns the fitted value for one feature row.
func (m *LinearRegression) Predict(x []float64) float64 {
	out := m.Intercept
	for j, c := range m.Coef {
		if j < len(x) {
			out += c * x[j]
		}
	}
	return out
}

// PredictBatch applies Predict to every row.
func (m *LinearRegression) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.Predict(row)
	}
	return out
}

package ml

import (
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean returns the arithmetic mean, zero for empty input.
func Mean(xs []float64) float64 {
	m, err := mstats.Mean(xs)
	if err != nil {
		return 0
	}
	return m
}

// StdDev returns the sample standard deviation, zero when undefined. Fewer
// than two samples leave the n-1 denominator degenerate, so they map to zero
// rather than NaN.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	s, err := mstats.StandardDeviationSample(xs)
	if err != nil {
		return 0
	}
	return s
}

// Variance returns the sample variance, zero when undefined.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	v, err := mstats.SampleVariance(xs)
	if err != nil {
		return 0
	}
	return v
}

// Median returns the median, zero for empty input.
func Median(xs []float64) float64 {
	m, err := mstats.Median(xs)
	if err != nil {
		return 0
	}
	return m
}

// Percentile returns the p-th percentile (0-100), zero for empty input.
func Percentile(xs []float64, p float64) float64 {
	v, err := mstats.Percentile(xs, p)
	if err != nil {
		return 0
	}
	return v
}

// Quartiles returns Q1 and Q3.
func Quartiles(xs []float64) (float64, float64) {
	q, err := mstats.Quartile(xs)
	if err != nil {
		return 0, 0
	}
	return q.Q1, q.Q3
}

// ZScores standardises xs against its own mean and sample deviation. A zero
// deviation yields all-zero scores.
func ZScores(xs []float64) []float64 {
	mean := Mean(xs)
	std := StdDev(xs)
	out := make([]float64, len(xs))
	if std == 0 {
		return out
	}
	for i, v := range xs {
		out[i] = (v - mean) / std
	}
	return out
}

// Pearson returns the Pearson correlation of two equal-length samples.
// Undefined correlations (constant input) return zero.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// TrendLine fits y = alpha + beta*x by ordinary least squares and returns the
// slope, intercept, coefficient of determination and the two-sided p-value of
// the slope under a Student-t test.
func TrendLine(x, y []float64) (slope, intercept, r2, pValue float64) {
	n := len(x)
	if n < 3 || len(y) != n {
		return 0, 0, 0, 1
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 = stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}

	// Standard error of the slope for the t-test.
	meanX := stat.Mean(x, nil)
	var sse, sxx float64
	for i := range x {
		resid := y[i] - (alpha + beta*x[i])
		sse += resid * resid
		dx := x[i] - meanX
		sxx += dx * dx
	}
	if sxx == 0 {
		return beta, alpha, r2, 1
	}
	se := math.Sqrt(sse / float64(n-2) / sxx)
	if se == 0 {
		if beta == 0 {
			return beta, alpha, r2, 1
		}
		return beta, alpha, r2, 0
	}

	t := math.Abs(beta / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	pValue = 2 * (1 - dist.CDF(t))
	if pValue < 0 {
		pValue = 0
	}
	return beta, alpha, r2, pValue
}

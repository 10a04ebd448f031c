package ml

import "math"

// MSE returns the mean squared error between predictions and truth.
func MSE(pred, truth []float64) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return 0
	}
	var sum float64
	for i := range pred {
		d := pred[i] - truth[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

// RMSE returns the root mean squared error.
func RMSE(pred, truth []float64) float64 {
	return math.Sqrt(MSE(pred, truth))
}

// MAE returns the mean absolute error.
func MAE(pred, truth []float64) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return 0
	}
	var sum float64
	for i := range pred {
		sum += math.Abs(pred[i] - truth[i])
	}
	return sum / float64(len(pred))
}

// R2 returns the coefficient of determination. A constant truth vector
// yields zero.
func R2(pred, truth []float64) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return 0
	}
	mean := Mean(truth)
	var ssRes, ssTot float64
	for i := range truth {
		r := truth[i] - pred[i]
		d := truth[i] - mean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

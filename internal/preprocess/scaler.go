package preprocess

import (
	"fmt"

	"github.com/observastack/aiops-engine/internal/ml"
)

// Scaler normalises row-major feature matrices. Implementations are
// serializable so inference reuses the training fit.
type Scaler interface {
	Fit(X [][]float64)
	Transform(X [][]float64) [][]float64
	TransformRow(x []float64) []float64
}

// StandardScaler centres columns to zero mean, unit deviation. Constant
// columns keep a unit deviation so transforms stay finite.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

// Fit learns per-column mean and deviation.
func (s *StandardScaler) Fit(X [][]float64) {
	cols := columns(X)
	s.Mean = make([]float64, len(cols))
	s.Std = make([]float64, len(cols))
	for j, col := range cols {
		s.Mean[j] = ml.Mean(col)
		std := ml.StdDev(col)
		if std == 0 {
			std = 1
		}
		s.Std[j] = std
	}
}

// Transform standardises every row.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow standardises one row.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Mean) {
			out[j] = (v - s.Mean[j]) / s.Std[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// FitTransform fits then transforms in one step.
func (s *StandardScaler) FitTransform(X [][]float64) [][]float64 {
	s.Fit(X)
	return s.Transform(X)
}

// MinMaxScaler maps columns into [0,1]. Constant columns map to zero.
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

// NewMinMaxScaler returns an unfitted scaler.
func NewMinMaxScaler() *MinMaxScaler { return &MinMaxScaler{} }

// Fit learns per-column bounds.
func (s *MinMaxScaler) Fit(X [][]float64) {
	cols := columns(X)
	s.Min = make([]float64, len(cols))
	s.Max = make([]float64, len(cols))
	for j, col := range cols {
		if len(col) == 0 {
			continue
		}
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		s.Min[j] = lo
		s.Max[j] = hi
	}
}

// Transform rescales every row.
func (s *MinMaxScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow rescales one row.
func (s *MinMaxScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Min) && s.Max[j] > s.Min[j] {
			out[j] = (v - s.Min[j]) / (s.Max[j] - s.Min[j])
		}
	}
	return out
}

// RobustScaler centres on the median and scales by IQR, which tolerates
// heavy-tailed metrics. Zero IQR keeps a unit scale.
type RobustScaler struct {
	Median []float64
	IQR    []float64
}

// NewRobustScaler returns an unfitted scaler.
func NewRobustScaler() *RobustScaler { return &RobustScaler{} }

// Fit learns per-column median and interquartile range.
func (s *RobustScaler) Fit(X [][]float64) {
	cols := columns(X)
	s.Median = make([]float64, len(cols))
	s.IQR = make([]float64, len(cols))
	for j, col := range cols {
		s.Median[j] = ml.Median(col)
		q1, q3 := ml.Quartiles(col)
		iqr := q3 - q1
		if iqr == 0 {
			iqr = 1
		}
		s.IQR[j] = iqr
	}
}

// Transform rescales every row.
func (s *RobustScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow rescales one row.
func (s *RobustScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Median) {
			out[j] = (v - s.Median[j]) / s.IQR[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// NewScaler returns the scaler matching a configured method name.
func NewScaler(method string) (Scaler, error) {
	switch method {
	case "", "standard":
		return NewStandardScaler(), nil
	case "minmax":
		return NewMinMaxScaler(), nil
	case "robust":
		return NewRobustScaler(), nil
	default:
		return nil, fmt.Errorf("unknown scaling method %q", method)
	}
}

func columns(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	p := len(X[0])
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		cols[j] = col
	}
	return cols
}

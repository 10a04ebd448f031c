package models

import "time"

// ScalingAction enumerates recommendation directions.
type ScalingAction string

const (
	ScaleUp   ScalingAction = "scale_up"
	ScaleDown ScalingAction = "scale_down"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation is a single scaling decision derived from a forecast band.
// HourOffset locates the triggering forecast point within the horizon.
type Recommendation struct {
	ID         string
	Target     string
	Action     ScalingAction
	Priority   string
	HourOffset int
	Predicted  float64
	Threshold  float64
	Reason     string
}

// Forecast carries the ensemble prediction sequence for one target metric.
type Forecast struct {
	Target string
	Values []float64
}

// ModelScores holds regression quality metrics on held-out data.
type ModelScores struct {
	R2   float64
	RMSE float64
	MAE  float64
	MSE  float64
}

// ScalingResult is the output of one prediction pass.
type ScalingResult struct {
	HorizonHours    int
	Forecasts       []Forecast
	Recommendations []Recommendation
	Confidence      float64
	Message         string
	GeneratedAt     time.Time
}

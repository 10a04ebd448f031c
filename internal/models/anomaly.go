package models

import "time"

// Detection method labels attached to individual anomalies.
const (
	MethodIsolationForest = "isolation_forest"
	MethodDensity         = "density"
	MethodZScore          = "z_score"
	MethodIQR             = "iqr"
)

// Ensemble result method labels.
const (
	EnsembleMethod = "ensemble"
	NoneMethod     = "none"
	ErrorMethod    = "error"
)

// Anomaly is one flagged observation with its detection provenance.
type Anomaly struct {
	Index      int
	Timestamp  time.Time
	Column     string
	Method     string
	Value      float64
	Score      float64
	Confidence float64
}

// AnomalyResult is the fused output of one detection pass over a metric window.
type AnomalyResult struct {
	Metric        string
	Anomalies     []Anomaly
	Confidence    float64
	Method        string
	TotalDetected int
	FilteredCount int
	Message       string
	GeneratedAt   time.Time
}

package models

import "time"

// TrainReport summarises one training run of a component.
type TrainReport struct {
	Component   string
	Trained     []string
	Skipped     []string
	SampleCount int
	Duration    time.Duration
	Notes       []string
}

// AnomalyStatus reports the anomaly detector's trained state.
type AnomalyStatus struct {
	Trained   bool
	TrainedAt time.Time
	Metrics   []string
}

// ScalingStatus reports the predictive scaler's trained state.
type ScalingStatus struct {
	Trained      bool
	TrainedAt    time.Time
	SampleCount  int
	TargetScores map[string]map[string]ModelScores
}

// RootCauseStatus reports the analyzer's trained state.
type RootCauseStatus struct {
	Trained     bool
	TrainedAt   time.Time
	SampleCount int
	GraphNodes  int
	GraphEdges  int
	HistoryLen  int
}

// StatusReport aggregates per-component model state.
type StatusReport struct {
	Anomaly   AnomalyStatus
	Scaling   ScalingStatus
	RootCause RootCauseStatus
}

// TrainingStatus exposes the state of a background training job.
type TrainingStatus struct {
	Running       bool
	LastStarted   time.Time
	LastCompleted time.Time
	LastError     string
	Runs          int
}

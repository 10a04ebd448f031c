package models

import "time"

// Severity captures impact levels for ranked hypotheses.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityWeight maps severity to its ranking multiplier.
func SeverityWeight(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityLow:
		return 1
	default:
		return 2
	}
}

// Hypothesis type labels.
const (
	CauseStatisticalOutlier   = "statistical_outlier"
	CauseTrendAnomaly         = "trend_anomaly"
	CauseAIAnomaly            = "ai_anomaly"
	CausePatternInstability   = "pattern_instability"
	CauseDependencyBottleneck = "dependency_bottleneck"
)

// Hypothesis is one candidate root cause with its ranking inputs.
type Hypothesis struct {
	Type          string
	Description   string
	Metric        string
	Confidence    float64
	Severity      Severity
	WeightedScore float64
	Evidence      map[string]float64
}

// ColumnSummary holds level-one statistical findings for a metric column.
type ColumnSummary struct {
	Mean         float64
	Std          float64
	Min          float64
	Max          float64
	Median       float64
	IQR          float64
	OutlierCount int
	OutlierIndex []int
	TrendSlope   float64
	TrendR2      float64
	TrendPValue  float64
	HasTrend     bool
}

// ClusterFindings holds level-two pattern analysis output.
type ClusterFindings struct {
	Assignments     []int
	Silhouette      float64
	NoiseCount      int
	AnomalyCount    int
	AnomalyScores   []float64
	ClassifierFlags int
}

// NodeScore pairs a graph node with a centrality score.
type NodeScore struct {
	Node  string
	Score float64
}

// MetricPath is a dependency path between two metric nodes.
type MetricPath struct {
	From   string
	To     string
	Nodes  []string
	Weight float64
}

// GraphFindings holds level-three dependency analysis output.
type GraphFindings struct {
	Density       float64
	AvgClustering float64
	Degree        []NodeScore
	Betweenness   []NodeScore
	Communities   [][]string
	Paths         []MetricPath
}

// IncidentContext scopes a root-cause analysis to a reported incident.
type IncidentContext struct {
	IncidentID      string
	AffectedMetrics []string
	Description     string
}

// Analysis level names recorded in RCAResult.AnalysisPath.
const (
	LevelStatistical = "statistical_analysis"
	LevelPatterns    = "pattern_recognition"
	LevelDependency  = "dependency_analysis"
)

// RCAResult is the full output of one root-cause analysis. AnalysisPath
// records the levels that ran, in execution order.
type RCAResult struct {
	AnalysisID   string
	IncidentID   string
	AnalysisPath []string
	Statistical  map[string]ColumnSummary
	Patterns     ClusterFindings
	Graph        GraphFindings
	RootCauses   []Hypothesis
	Confidence   float64
	Message      string
	GeneratedAt  time.Time
}

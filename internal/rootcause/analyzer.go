package rootcause

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/ml"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/utils"
)

// MinTrainingRows is the smallest sample accepted for training.
const MinTrainingRows = 50

// Config controls the three analysis levels.
type Config struct {
	CorrelationThreshold float64 `yaml:"correlationThreshold"`
	MinClusterSize       int     `yaml:"minClusterSize"`
	MaxClusters          int     `yaml:"maxClusters"`
	Contamination        float64 `yaml:"contamination"`
	ConfidenceThreshold  float64 `yaml:"confidenceThreshold"`
	MaxRootCauses        int     `yaml:"maxRootCauses"`
	Depth                int     `yaml:"depth"`
	HistoryLimit         int     `yaml:"historyLimit"`
	SamplesPerHour       int     `yaml:"samplesPerHour"`
	Seed                 int64   `yaml:"seed"`
}

// DefaultConfig returns the standard analyzer settings.
func DefaultConfig() Config {
	return Config{
		CorrelationThreshold: 0.7,
		MinClusterSize:       3,
		MaxClusters:          10,
		Contamination:        0.1,
		ConfidenceThreshold:  0.6,
		MaxRootCauses:        5,
		Depth:                3,
		HistoryLimit:         256,
		SamplesPerHour:       1,
		Seed:                 42,
	}
}

// State is the serializable trained state.
type State struct {
	MetricCols   []string
	FeatureNames []string
	Encoders     map[string]*preprocess.LabelEncoder
	Scaler       *preprocess.StandardScaler
	Classifier   *ml.ForestRegressor
	Forest       *ml.IsolationForest
	KMeans       *ml.KMeans
	Graph        *DependencyGraph
	Rows         int
	TrainedAt    time.Time
}

// Analyzer runs the three-level root-cause analysis.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	state   *State
	history []models.RCAResult
}

// New constructs an analyzer.
func New(cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Train fits the dependency graph, the anomaly models and the clusterers.
func (a *Analyzer) Train(ctx context.Context, tbl *dataset.Table) (models.TrainReport, error) {
	start := time.Now()
	report := models.TrainReport{Component: "root_cause_analysis"}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if tbl.NumRows() < MinTrainingRows {
		return report, utils.NewAppError("rootcause.Train",
			fmt.Sprintf("%d rows, need %d", tbl.NumRows(), MinTrainingRows),
			utils.ErrInsufficientData)
	}

	clean := preprocess.ForwardFill(tbl)
	graph := BuildGraph(clean, a.cfg.CorrelationThreshold)

	encoders := map[string]*preprocess.LabelEncoder{}
	engineered := a.buildFeatures(clean, encoders, true)
	rows := engineered.NumRows()
	if rows < 2 {
		return report, utils.NewAppError("rootcause.Train", "no complete rows after feature engineering", utils.ErrInsufficientData)
	}

	scaler := preprocess.NewStandardScaler()
	X := engineered.Matrix()
	scaled := scaler.FitTransform(X)

	flags := anomalyFlags(X)

	classifier := ml.NewForestRegressor(50, 8, a.cfg.Seed)
	classifier.Fit(scaled, flags)

	forest := ml.NewIsolationForest(100, a.cfg.Contamination, a.cfg.Seed)
	forest.Fit(scaled)

	k := a.cfg.MaxClusters
	if byRows := rows / 10; byRows < k {
		k = byRows
	}
	if k < 2 {
		k = 2
	}
	kmeans := ml.NewKMeans(k, a.cfg.Seed)
	kmeans.Fit(scaled)

	a.mu.Lock()
	a.state = &State{
		MetricCols:   append([]string(nil), clean.Cols...),
		FeatureNames: append([]string(nil), engineered.Cols...),
		Encoders:     encoders,
		Scaler:       scaler,
		Classifier:   classifier,
		Forest:       forest,
		KMeans:       kmeans,
		Graph:        graph,
		Rows:         rows,
		TrainedAt:    time.Now().UTC(),
	}
	a.mu.Unlock()

	report.Trained = append(report.Trained, "dependency_graph", "isolation_forest", "kmeans", "classifier")
	report.SampleCount = rows
	report.Duration = time.Since(start)
	a.logger.Info("root cause training complete",
		slog.Int("rows", rows),
		slog.Int("graph_nodes", len(graph.Nodes)),
		slog.Int("graph_edges", len(graph.Edges)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// Analyze runs the configured analysis depth over an incident window. Every
// level is failure-isolated: a failing stage contributes nothing instead of
// aborting the analysis.
func (a *Analyzer) Analyze(ctx context.Context, tbl *dataset.Table, incident models.IncidentContext) (models.RCAResult, error) {
	result := models.RCAResult{
		AnalysisID:  uuid.NewString(),
		IncidentID:  incident.IncidentID,
		Statistical: map[string]models.ColumnSummary{},
		GeneratedAt: time.Now().UTC(),
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	a.mu.RLock()
	state := a.state
	a.mu.RUnlock()
	if state == nil {
		result.Message = "models not trained"
		return result, nil
	}

	clean := preprocess.ForwardFill(tbl)

	var hypotheses []models.Hypothesis

	// Level one: per-column statistics, outliers and trends.
	for _, col := range clean.Cols {
		vals, _ := clean.Column(col)
		summary := summarize(vals)
		result.Statistical[col] = summary
		hypotheses = append(hypotheses, statisticalHypotheses(col, summary)...)
	}
	result.AnalysisPath = append(result.AnalysisPath, models.LevelStatistical)

	// Level two: clustering and learned anomaly models.
	if a.cfg.Depth >= 2 {
		result.AnalysisPath = append(result.AnalysisPath, models.LevelPatterns)
		if findings, ok := a.analyzePatterns(state, clean); ok {
			result.Patterns = findings
			hypotheses = append(hypotheses, patternHypotheses(findings)...)
		}
	}

	// Level three: dependency graph topology.
	if a.cfg.Depth >= 3 && state.Graph != nil {
		result.AnalysisPath = append(result.AnalysisPath, models.LevelDependency)
		findings := a.analyzeGraph(state.Graph, incident.AffectedMetrics)
		result.Graph = findings
		hypotheses = append(hypotheses, graphHypotheses(findings)...)
	}

	ranked, overall := rank(hypotheses, a.cfg.MaxRootCauses)
	result.RootCauses = ranked
	result.Confidence = overall

	a.mu.Lock()
	a.history = append(a.history, result)
	if limit := a.cfg.HistoryLimit; limit > 0 && len(a.history) > limit {
		a.history = a.history[len(a.history)-limit:]
	}
	a.mu.Unlock()

	return result, nil
}

func (a *Analyzer) analyzePatterns(state *State, clean *dataset.Table) (models.ClusterFindings, bool) {
	var findings models.ClusterFindings

	engineered := a.buildFeatures(clean, state.Encoders, false)
	selected, err := engineered.Select(state.FeatureNames)
	if err != nil || selected.NumRows() == 0 {
		a.logger.Warn("pattern analysis skipped", slog.Any("error", err))
		return findings, false
	}
	scaled := state.Scaler.Transform(selected.Matrix())

	findings.Assignments = state.KMeans.Assign(scaled)
	findings.Silhouette = ml.Silhouette(scaled, findings.Assignments)

	for _, label := range ml.DBSCAN(scaled, 0.5, a.cfg.MinClusterSize) {
		if label == ml.NoiseLabel {
			findings.NoiseCount++
		}
	}

	findings.AnomalyScores = state.Forest.Scores(scaled)
	for _, row := range scaled {
		if state.Forest.Predict(row) {
			findings.AnomalyCount++
		}
		if state.Classifier.Predict(row) >= 0.5 {
			findings.ClassifierFlags++
		}
	}
	return findings, true
}

func (a *Analyzer) analyzeGraph(g *DependencyGraph, affected []string) models.GraphFindings {
	findings := models.GraphFindings{
		Density:       g.Density(),
		AvgClustering: g.AvgClustering(),
		Degree:        topN(g.DegreeCentrality(), 5),
		Betweenness:   topN(g.BetweennessCentrality(), 5),
		Communities:   g.Communities(),
	}

	for _, metric := range affected {
		findings.Paths = append(findings.Paths, g.ShortestPathsFrom(metric, g.Nodes)...)
	}
	return findings
}

// buildFeatures derives the analyzer's feature set: encoded labels, temporal
// flags, short lags and rolling aggregates. Rows left incomplete by lagging
// are dropped.
func (a *Analyzer) buildFeatures(clean *dataset.Table, encoders map[string]*preprocess.LabelEncoder, fit bool) *dataset.Table {
	out := clean.Clone()
	rows := out.NumRows()
	metricCols := append([]string(nil), clean.Cols...)

	for _, label := range []string{dataset.LabelService, dataset.LabelEnvironment} {
		vals, ok := out.Labels[label]
		if !ok {
			continue
		}
		enc := encoders[label]
		if enc == nil {
			if !fit {
				continue
			}
			enc = preprocess.NewLabelEncoder()
			enc.Fit(vals)
			encoders[label] = enc
		}
		_ = out.AddColumn(label+"_code", enc.Transform(vals))
	}

	if len(out.Times) > 0 {
		hour := make([]float64, rows)
		dow := make([]float64, rows)
		business := make([]float64, rows)
		for i, ts := range out.Times {
			hour[i] = float64(ts.Hour())
			dow[i] = float64((int(ts.Weekday()) + 6) % 7)
			if ts.Hour() >= 9 && ts.Hour() <= 17 {
				business[i] = 1
			}
		}
		_ = out.AddColumn("hour", hour)
		_ = out.AddColumn("day_of_week", dow)
		_ = out.AddColumn("is_business_hour", business)
	}

	sph := a.cfg.SamplesPerHour
	if sph <= 0 {
		sph = 1
	}
	for _, col := range metricCols {
		src, _ := out.Column(col)

		for _, step := range []int{1, 2, 3, 6, 12} {
			lag := make([]float64, rows)
			for i := 0; i < rows; i++ {
				if i < step {
					lag[i] = dataset.Missing()
				} else {
					lag[i] = src[i-step]
				}
			}
			_ = out.AddColumn(fmt.Sprintf("%s_lag_%d", col, step), lag)
		}

		for _, hours := range []int{1, 6} {
			window := hours * sph
			if window < 1 {
				window = 1
			}
			means := make([]float64, rows)
			stds := make([]float64, rows)
			for i := 0; i < rows; i++ {
				if i+1 < window {
					means[i] = dataset.Missing()
					stds[i] = dataset.Missing()
					continue
				}
				win := src[i+1-window : i+1]
				means[i] = ml.Mean(win)
				stds[i] = ml.StdDev(win)
			}
			_ = out.AddColumn(fmt.Sprintf("%s_rolling_mean_%dh", col, hours), means)
			_ = out.AddColumn(fmt.Sprintf("%s_rolling_std_%dh", col, hours), stds)
		}
	}

	return out.FilterRows(out.CompleteRows())
}

// History returns a copy of the bounded analysis history, oldest first.
func (a *Analyzer) History() []models.RCAResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.RCAResult(nil), a.history...)
}

// Status reports the trained state.
func (a *Analyzer) Status() models.RootCauseStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := models.RootCauseStatus{HistoryLen: len(a.history)}
	if a.state != nil {
		status.Trained = true
		status.TrainedAt = a.state.TrainedAt
		status.SampleCount = a.state.Rows
		if a.state.Graph != nil {
			status.GraphNodes = len(a.state.Graph.Nodes)
			status.GraphEdges = len(a.state.Graph.Edges)
		}
	}
	return status
}

// Snapshot exports the trained state for persistence.
func (a *Analyzer) Snapshot() *State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Restore replaces the trained state from a snapshot.
func (a *Analyzer) Restore(state *State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

func summarize(vals []float64) models.ColumnSummary {
	q1, q3 := ml.Quartiles(vals)
	summary := models.ColumnSummary{
		Mean:   ml.Mean(vals),
		Std:    ml.StdDev(vals),
		Median: ml.Median(vals),
		IQR:    q3 - q1,
	}
	if len(vals) > 0 {
		summary.Min = vals[0]
		summary.Max = vals[0]
		for _, v := range vals {
			if v < summary.Min {
				summary.Min = v
			}
			if v > summary.Max {
				summary.Max = v
			}
		}
	}

	for i, z := range ml.ZScores(vals) {
		if math.Abs(z) > 3 {
			summary.OutlierCount++
			summary.OutlierIndex = append(summary.OutlierIndex, i)
		}
	}

	if len(vals) > 10 {
		x := make([]float64, len(vals))
		for i := range x {
			x[i] = float64(i)
		}
		slope, _, r2, p := ml.TrendLine(x, vals)
		summary.TrendSlope = slope
		summary.TrendR2 = r2
		summary.TrendPValue = p
		summary.HasTrend = true
	}
	return summary
}

func statisticalHypotheses(col string, s models.ColumnSummary) []models.Hypothesis {
	var out []models.Hypothesis

	if s.OutlierCount > 0 {
		conf := math.Min(0.8, float64(s.OutlierCount)/10)
		out = append(out, models.Hypothesis{
			Type:        models.CauseStatisticalOutlier,
			Description: fmt.Sprintf("%s shows %d extreme observations", col, s.OutlierCount),
			Metric:      col,
			Confidence:  conf,
			Severity:    models.SeverityMedium,
			Evidence:    map[string]float64{"outliers": float64(s.OutlierCount)},
		})
	}

	if s.HasTrend && s.TrendPValue < 0.05 {
		conf := math.Min(0.7, math.Abs(s.TrendSlope))
		out = append(out, models.Hypothesis{
			Type:        models.CauseTrendAnomaly,
			Description: fmt.Sprintf("%s trends at %.3f per sample (r2 %.2f)", col, s.TrendSlope, s.TrendR2),
			Metric:      col,
			Confidence:  conf,
			Severity:    models.SeverityLow,
			Evidence:    map[string]float64{"slope": s.TrendSlope, "p_value": s.TrendPValue},
		})
	}
	return out
}

func patternHypotheses(f models.ClusterFindings) []models.Hypothesis {
	var out []models.Hypothesis

	if f.AnomalyCount > 0 {
		conf := math.Min(0.9, float64(f.AnomalyCount)/20)
		out = append(out, models.Hypothesis{
			Type:        models.CauseAIAnomaly,
			Description: fmt.Sprintf("isolation ensemble flagged %d observations", f.AnomalyCount),
			Confidence:  conf,
			Severity:    models.SeverityHigh,
			Evidence:    map[string]float64{"anomalies": float64(f.AnomalyCount), "classifier_flags": float64(f.ClassifierFlags)},
		})
	}

	if len(f.Assignments) > 0 && f.Silhouette < 0.3 {
		out = append(out, models.Hypothesis{
			Type:        models.CausePatternInstability,
			Description: fmt.Sprintf("cluster structure is unstable (silhouette %.2f)", f.Silhouette),
			Confidence:  0.6,
			Severity:    models.SeverityMedium,
			Evidence:    map[string]float64{"silhouette": f.Silhouette, "noise": float64(f.NoiseCount)},
		})
	}
	return out
}

func graphHypotheses(f models.GraphFindings) []models.Hypothesis {
	var out []models.Hypothesis
	for _, node := range f.Degree {
		if node.Score > 0.8 {
			out = append(out, models.Hypothesis{
				Type:        models.CauseDependencyBottleneck,
				Description: fmt.Sprintf("%s is a dependency bottleneck (centrality %.2f)", node.Node, node.Score),
				Metric:      node.Node,
				Confidence:  math.Min(0.8, node.Score),
				Severity:    models.SeverityHigh,
				Evidence:    map[string]float64{"centrality": node.Score},
			})
		}
	}
	return out
}

// Weighted scores within this distance count as tied so the severity
// tie-break is not defeated by float rounding in the multiply.
const rankEpsilon = 1e-9

// rank orders hypotheses by confidence weighted with severity and returns
// the top limit entries plus the mean confidence over every candidate.
func rank(hypotheses []models.Hypothesis, limit int) ([]models.Hypothesis, float64) {
	if len(hypotheses) == 0 {
		return nil, 0
	}

	for i := range hypotheses {
		hypotheses[i].WeightedScore = hypotheses[i].Confidence * models.SeverityWeight(hypotheses[i].Severity)
	}
	sort.SliceStable(hypotheses, func(i, j int) bool {
		if diff := hypotheses[i].WeightedScore - hypotheses[j].WeightedScore; diff > rankEpsilon || diff < -rankEpsilon {
			return hypotheses[i].WeightedScore > hypotheses[j].WeightedScore
		}
		wi := models.SeverityWeight(hypotheses[i].Severity)
		wj := models.SeverityWeight(hypotheses[j].Severity)
		if wi != wj {
			return wi > wj
		}
		return hypotheses[i].Type < hypotheses[j].Type
	})

	var total float64
	for _, h := range hypotheses {
		total += h.Confidence
	}
	overall := total / float64(len(hypotheses))

	if limit > 0 && len(hypotheses) > limit {
		hypotheses = hypotheses[:limit]
	}
	return hypotheses, overall
}

func anomalyFlags(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	flags := make([]float64, len(X))
	p := len(X[0])
	for j := 0; j < p; j++ {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		for i, z := range ml.ZScores(col) {
			if math.Abs(z) > 3 {
				flags[i] = 1
			}
		}
	}
	return flags
}

func topN(scores []models.NodeScore, n int) []models.NodeScore {
	if len(scores) > n {
		return scores[:n]
	}
	return scores
}

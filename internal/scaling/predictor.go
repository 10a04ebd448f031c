package scaling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/features"
	"github.com/observastack/aiops-engine/internal/ml"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/utils"
)

// Forecast horizon bounds in hours.
const (
	MinHorizonHours = 1
	MaxHorizonHours = 168
)

// Ensemble member names used in score reporting.
const (
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"
	ModelLinear           = "linear_regression"
)

// Thresholds are the scaling decision bands. Comparisons are strict.
type Thresholds struct {
	CPUHigh          float64 `yaml:"cpuHigh"`
	CPULow           float64 `yaml:"cpuLow"`
	MemoryHigh       float64 `yaml:"memoryHigh"`
	MemoryLow        float64 `yaml:"memoryLow"`
	ResponseTimeHigh float64 `yaml:"responseTimeHigh"`
	ResponseTimeLow  float64 `yaml:"responseTimeLow"`
	ThroughputLow    float64 `yaml:"throughputLow"`
}

// Config controls training and prediction.
type Config struct {
	MinTrainingSamples int        `yaml:"minTrainingSamples"`
	SamplesPerHour     int        `yaml:"samplesPerHour"`
	Thresholds         Thresholds `yaml:"thresholds"`
	Seed               int64      `yaml:"seed"`
}

// DefaultConfig returns the standard scaler settings.
func DefaultConfig() Config {
	return Config{
		MinTrainingSamples: 100,
		SamplesPerHour:     1,
		Thresholds: Thresholds{
			CPUHigh:          80,
			CPULow:           20,
			MemoryHigh:       85,
			MemoryLow:        25,
			ResponseTimeHigh: 1000,
			ResponseTimeLow:  100,
			ThroughputLow:    100,
		},
		Seed: 42,
	}
}

// Targets lists the metrics forecast by the scaler.
var Targets = []string{
	models.MetricCPUUsage,
	models.MetricMemoryUsage,
	models.MetricResponseTime,
	models.MetricThroughput,
}

// TargetModels is the fitted ensemble for one target metric.
type TargetModels struct {
	Forest      *ml.ForestRegressor
	Boosting    *ml.GradientBoosting
	Linear      *ml.LinearRegression
	Scores      map[string]models.ModelScores
	Importances map[string][]float64
	BestR2      float64
}

// State is the serializable trained state.
type State struct {
	FeatureNames []string
	Scaler       *preprocess.StandardScaler
	Targets      map[string]*TargetModels
	Rows         int
	TrainedAt    time.Time
}

// Predictor trains regression ensembles and turns forecasts into scaling
// recommendations.
type Predictor struct {
	cfg      Config
	logger   *slog.Logger
	engineer *features.Engineer

	mu    sync.RWMutex
	state *State
}

// New constructs a predictor.
func New(cfg Config, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{cfg: cfg, logger: logger, engineer: features.New(cfg.SamplesPerHour)}
}

// Train fits the per-target ensembles on a time-ordered 80/20 split.
func (p *Predictor) Train(ctx context.Context, tbl *dataset.Table) (models.TrainReport, error) {
	start := time.Now()
	report := models.TrainReport{Component: "predictive_scaling"}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	engineered, err := p.engineer.Transform(tbl)
	if err != nil {
		return report, err
	}
	rows := engineered.NumRows()
	if rows < p.cfg.MinTrainingSamples {
		return report, utils.NewAppError("scaling.Train",
			fmt.Sprintf("%d samples after feature engineering, need %d", rows, p.cfg.MinTrainingSamples),
			utils.ErrInsufficientData)
	}

	featureNames := featureColumns(engineered)
	featureTable, err := engineered.Select(featureNames)
	if err != nil {
		return report, err
	}
	X := featureTable.Matrix()

	// Time-ordered split keeps the evaluation window strictly after training.
	splitAt := rows * 4 / 5
	scaler := preprocess.NewStandardScaler()
	scaler.Fit(X[:splitAt])
	scaled := scaler.Transform(X)

	state := &State{
		FeatureNames: featureNames,
		Scaler:       scaler,
		Targets:      map[string]*TargetModels{},
		Rows:         rows,
		TrainedAt:    time.Now().UTC(),
	}

	for _, target := range Targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		y, ok := engineered.Column(target)
		if !ok {
			report.Skipped = append(report.Skipped, target)
			continue
		}

		tm := &TargetModels{
			Forest:      ml.NewForestRegressor(100, 10, p.cfg.Seed),
			Boosting:    ml.NewGradientBoosting(100, 6, 0.1, p.cfg.Seed),
			Linear:      ml.NewLinearRegression(),
			Scores:      map[string]models.ModelScores{},
			Importances: map[string][]float64{},
		}

		trainX, testX := scaled[:splitAt], scaled[splitAt:]
		trainY, testY := y[:splitAt], y[splitAt:]

		tm.Forest.Fit(trainX, trainY)
		tm.Boosting.Fit(trainX, trainY)
		if err := tm.Linear.Fit(trainX, trainY); err != nil {
			// Underdetermined systems drop the linear member; the tree
			// ensembles still cover the target.
			tm.Linear = nil
			p.logger.Warn("linear member dropped for target", slog.String("target", target), slog.Any("error", err))
		}

		tm.Scores[ModelRandomForest] = score(tm.Forest.PredictBatch(testX), testY)
		tm.Scores[ModelGradientBoosting] = score(tm.Boosting.PredictBatch(testX), testY)
		if tm.Linear != nil {
			tm.Scores[ModelLinear] = score(tm.Linear.PredictBatch(testX), testY)
		}
		tm.Importances[ModelRandomForest] = tm.Forest.Importances
		tm.Importances[ModelGradientBoosting] = tm.Boosting.Importances

		for _, s := range tm.Scores {
			if s.R2 > tm.BestR2 {
				tm.BestR2 = s.R2
			}
		}

		state.Targets[target] = tm
		report.Trained = append(report.Trained, target)
	}
	sort.Strings(report.Trained)

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()

	report.SampleCount = rows
	report.Duration = time.Since(start)
	p.logger.Info("scaling training complete",
		slog.Int("samples", rows),
		slog.Int("targets", len(report.Trained)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// Predict forecasts each target over the horizon and derives threshold-band
// recommendations. An untrained predictor returns an empty result.
func (p *Predictor) Predict(ctx context.Context, tbl *dataset.Table, horizonHours int) (models.ScalingResult, error) {
	result := models.ScalingResult{GeneratedAt: time.Now().UTC()}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if horizonHours < MinHorizonHours {
		horizonHours = MinHorizonHours
	}
	if horizonHours > MaxHorizonHours {
		horizonHours = MaxHorizonHours
	}
	result.HorizonHours = horizonHours

	p.mu.RLock()
	state := p.state
	p.mu.RUnlock()
	if state == nil {
		result.Message = "models not trained"
		return result, nil
	}

	engineered, err := p.engineer.Transform(tbl)
	if err != nil {
		return result, err
	}
	if engineered.NumRows() == 0 {
		result.Message = "window too short for feature engineering"
		return result, nil
	}

	featureTable, err := engineered.Select(state.FeatureNames)
	if err != nil {
		return result, utils.NewAppError("scaling.Predict", "window missing trained features", err)
	}
	scaled := state.Scaler.Transform(featureTable.Matrix())

	steps := horizonHours * p.cfg.SamplesPerHour
	if steps > len(scaled) {
		steps = len(scaled)
	}

	var bestR2Sum float64
	variances := make([]float64, 0, len(state.Targets))

	targets := make([]string, 0, len(state.Targets))
	for target := range state.Targets {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		tm := state.Targets[target]
		values := make([]float64, 0, steps)
		for i := 0; i < steps; i++ {
			preds := []float64{
				tm.Forest.Predict(scaled[i]),
				tm.Boosting.Predict(scaled[i]),
			}
			if tm.Linear != nil {
				preds = append(preds, tm.Linear.Predict(scaled[i]))
			}
			values = append(values, ml.Mean(preds))
		}
		result.Forecasts = append(result.Forecasts, models.Forecast{Target: target, Values: values})
		result.Recommendations = append(result.Recommendations, p.recommend(target, values)...)
		bestR2Sum += clamp01(tm.BestR2)
		variances = append(variances, ml.Variance(values))
	}

	if len(targets) > 0 {
		result.Confidence = (bestR2Sum/float64(len(targets)) + consistencyScore(variances)) / 2
	}
	return result, nil
}

// consistencyScore turns the mean variance of the forecast sequences into a
// [0,1] stability term. A jumpy forecast lowers overall confidence.
func consistencyScore(variances []float64) float64 {
	if len(variances) == 0 {
		return 0
	}
	var sum float64
	for _, v := range variances {
		sum += v
	}
	c := 1 - sum/float64(len(variances))/100
	if c < 0 {
		return 0
	}
	return c
}

// recommend applies the threshold bands to one forecast. Comparisons are
// strict so a value sitting exactly on a band never triggers.
func (p *Predictor) recommend(target string, forecast []float64) []models.Recommendation {
	if len(forecast) == 0 {
		return nil
	}
	hiIdx, loIdx := 0, 0
	for i, v := range forecast {
		if v > forecast[hiIdx] {
			hiIdx = i
		}
		if v < forecast[loIdx] {
			loIdx = i
		}
	}
	hi, lo := forecast[hiIdx], forecast[loIdx]
	th := p.cfg.Thresholds

	sph := p.cfg.SamplesPerHour
	if sph < 1 {
		sph = 1
	}
	var out []models.Recommendation
	add := func(action models.ScalingAction, priority string, idx int, predicted, threshold float64, reason string) {
		out = append(out, models.Recommendation{
			ID:         uuid.NewString(),
			Target:     target,
			Action:     action,
			Priority:   priority,
			HourOffset: idx / sph,
			Predicted:  predicted,
			Threshold:  threshold,
			Reason:     reason,
		})
	}

	switch target {
	case models.MetricCPUUsage:
		if hi > th.CPUHigh {
			add(models.ScaleUp, models.PriorityHigh, hiIdx, hi, th.CPUHigh, "forecast CPU above high band")
		}
		if lo < th.CPULow {
			add(models.ScaleDown, models.PriorityMedium, loIdx, lo, th.CPULow, "forecast CPU below low band")
		}
	case models.MetricMemoryUsage:
		if hi > th.MemoryHigh {
			add(models.ScaleUp, models.PriorityHigh, hiIdx, hi, th.MemoryHigh, "forecast memory above high band")
		}
		if lo < th.MemoryLow {
			add(models.ScaleDown, models.PriorityMedium, loIdx, lo, th.MemoryLow, "forecast memory below low band")
		}
	case models.MetricResponseTime:
		if hi > th.ResponseTimeHigh {
			add(models.ScaleUp, models.PriorityHigh, hiIdx, hi, th.ResponseTimeHigh, "forecast latency above high band")
		}
		if lo < th.ResponseTimeLow {
			add(models.ScaleDown, models.PriorityLow, loIdx, lo, th.ResponseTimeLow, "forecast latency below low band")
		}
	case models.MetricThroughput:
		if lo < th.ThroughputLow {
			add(models.ScaleUp, models.PriorityMedium, loIdx, lo, th.ThroughputLow, "forecast throughput below low band")
		}
	}
	return out
}

// Status reports the trained state.
func (p *Predictor) Status() models.ScalingStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state == nil {
		return models.ScalingStatus{}
	}
	status := models.ScalingStatus{
		Trained:      true,
		TrainedAt:    p.state.TrainedAt,
		SampleCount:  p.state.Rows,
		TargetScores: map[string]map[string]models.ModelScores{},
	}
	for target, tm := range p.state.Targets {
		scores := make(map[string]models.ModelScores, len(tm.Scores))
		for name, s := range tm.Scores {
			scores[name] = s
		}
		status.TargetScores[target] = scores
	}
	return status
}

// Snapshot exports the trained state for persistence.
func (p *Predictor) Snapshot() *State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Restore replaces the trained state from a snapshot.
func (p *Predictor) Restore(state *State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func featureColumns(t *dataset.Table) []string {
	targetSet := map[string]bool{}
	for _, target := range Targets {
		targetSet[target] = true
	}
	var out []string
	for _, col := range t.Cols {
		if !targetSet[col] {
			out = append(out, col)
		}
	}
	return out
}

func score(pred, truth []float64) models.ModelScores {
	return models.ModelScores{
		R2:   ml.R2(pred, truth),
		RMSE: ml.RMSE(pred, truth),
		MAE:  ml.MAE(pred, truth),
		MSE:  ml.MSE(pred, truth),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

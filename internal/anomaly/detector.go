package anomaly

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/ml"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/utils"
)

// MinTrainingRows is the smallest per-metric sample accepted for training.
const MinTrainingRows = 10

// Fixed ensemble confidences for methods without a graded score.
const (
	isolationConfidence = 0.80
	densityConfidence   = 0.70
	iqrConfidence       = 0.75
	maxZConfidence      = 0.90
)

// Config controls the detection ensemble.
type Config struct {
	Trees               int     `yaml:"trees"`
	Contamination       float64 `yaml:"contamination"`
	Eps                 float64 `yaml:"eps"`
	MinPoints           int     `yaml:"minPoints"`
	ZThreshold          float64 `yaml:"zThreshold"`
	IQRMultiplier       float64 `yaml:"iqrMultiplier"`
	WindowSize          int     `yaml:"windowSize"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	Seed                int64   `yaml:"seed"`
}

// DefaultConfig returns the standard ensemble settings.
func DefaultConfig() Config {
	return Config{
		Trees:               100,
		Contamination:       0.1,
		Eps:                 0.5,
		MinPoints:           5,
		ZThreshold:          3.0,
		IQRMultiplier:       1.5,
		WindowSize:          24,
		ConfidenceThreshold: 0.7,
		Seed:                42,
	}
}

// MetricModel is the per-metric trained state. Exported for gob persistence.
type MetricModel struct {
	Columns   []string
	Scaler    *preprocess.StandardScaler
	Forest    *ml.IsolationForest
	ZRef      map[string]float64
	Rows      int
	TrainedAt time.Time
}

// Snapshot is the serializable detector state.
type Snapshot struct {
	Models map[string]*MetricModel
}

// Detector runs the anomaly ensemble over metric windows.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	models map[string]*MetricModel
}

// New constructs a detector.
func New(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger, models: map[string]*MetricModel{}}
}

// Train fits one model per metric key. Keys with fewer than MinTrainingRows
// rows are skipped with a warning and stay untrained.
func (d *Detector) Train(ctx context.Context, data map[string]*dataset.Table) (models.TrainReport, error) {
	start := time.Now()
	report := models.TrainReport{Component: "anomaly_detection"}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tbl := data[key]
		if tbl == nil || tbl.NumRows() < MinTrainingRows {
			rows := 0
			if tbl != nil {
				rows = tbl.NumRows()
			}
			d.logger.Warn("insufficient data for metric, skipping",
				slog.String("metric", key), slog.Int("rows", rows), slog.Int("min", MinTrainingRows))
			report.Skipped = append(report.Skipped, key)
			continue
		}

		model, err := d.fit(tbl)
		if err != nil {
			d.logger.Warn("training failed for metric", slog.String("metric", key), slog.Any("error", err))
			report.Skipped = append(report.Skipped, key)
			continue
		}

		d.mu.Lock()
		d.models[key] = model
		d.mu.Unlock()

		report.Trained = append(report.Trained, key)
		report.SampleCount += model.Rows
	}

	report.Duration = time.Since(start)
	d.logger.Info("anomaly training complete",
		slog.Int("trained", len(report.Trained)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (d *Detector) fit(tbl *dataset.Table) (*MetricModel, error) {
	clean := preprocess.ForwardFill(tbl)
	clean = preprocess.CapOutliersIQR(clean, d.cfg.IQRMultiplier)

	scaler := preprocess.NewStandardScaler()
	scaled := scaler.FitTransform(clean.Matrix())

	forest := ml.NewIsolationForest(d.cfg.Trees, d.cfg.Contamination, d.cfg.Seed)
	forest.Fit(scaled)

	zref := make(map[string]float64, len(clean.Cols))
	for j, col := range clean.Cols {
		z := make([]float64, len(scaled))
		for i := range scaled {
			z[i] = math.Abs(scaled[i][j])
		}
		ref := ml.Percentile(z, 95)
		if ref < d.cfg.ZThreshold {
			ref = d.cfg.ZThreshold
		}
		zref[col] = ref
	}

	return &MetricModel{
		Columns:   append([]string(nil), clean.Cols...),
		Scaler:    scaler,
		Forest:    forest,
		ZRef:      zref,
		Rows:      clean.NumRows(),
		TrainedAt: time.Now().UTC(),
	}, nil
}

type candidate struct {
	index      int
	column     string
	method     string
	value      float64
	score      float64
	confidence float64
}

// Detect runs the ensemble over a metric window. An untrained metric returns
// an empty result rather than an error.
func (d *Detector) Detect(ctx context.Context, metric string, tbl *dataset.Table) (models.AnomalyResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnomalyResult{}, err
	}

	result := models.AnomalyResult{Metric: metric, GeneratedAt: time.Now().UTC()}

	d.mu.RLock()
	model := d.models[metric]
	d.mu.RUnlock()
	if model == nil {
		result.Method = models.NoneMethod
		result.Message = "models not trained"
		return result, nil
	}

	aligned, err := tbl.Select(model.Columns)
	if err != nil {
		result.Method = models.ErrorMethod
		return result, utils.NewAppError("anomaly.Detect", "window missing trained columns", err)
	}
	clean := preprocess.ForwardFill(aligned)
	matrix := clean.Matrix()
	scaled := model.Scaler.Transform(matrix)

	var candidates []candidate

	for i, row := range scaled {
		if model.Forest.Predict(row) {
			candidates = append(candidates, candidate{
				index:      i,
				method:     models.MethodIsolationForest,
				score:      model.Forest.Score(row),
				confidence: isolationConfidence,
			})
		}
	}

	for i, label := range ml.DBSCAN(scaled, d.cfg.Eps, d.cfg.MinPoints) {
		if label == ml.NoiseLabel {
			candidates = append(candidates, candidate{
				index:      i,
				method:     models.MethodDensity,
				confidence: densityConfidence,
			})
		}
	}

	for _, col := range clean.Cols {
		vals, _ := clean.Column(col)
		ref := model.ZRef[col]
		if ref <= 0 {
			ref = d.cfg.ZThreshold
		}
		for i, z := range ml.ZScores(vals) {
			if abs := math.Abs(z); abs > ref {
				conf := abs / ref
				if conf > maxZConfidence {
					conf = maxZConfidence
				}
				candidates = append(candidates, candidate{
					index:      i,
					column:     col,
					method:     models.MethodZScore,
					value:      vals[i],
					score:      abs,
					confidence: conf,
				})
			}
		}

		q1, q3 := ml.Quartiles(vals)
		upper := q3 + d.cfg.IQRMultiplier*(q3-q1)
		for i, v := range vals {
			if v > upper {
				candidates = append(candidates, candidate{
					index:      i,
					column:     col,
					method:     models.MethodIQR,
					value:      v,
					score:      v - upper,
					confidence: iqrConfidence,
				})
			}
		}
	}

	// The most confident method wins when several flag the same row;
	// insertion order breaks ties.
	byIndex := map[int]candidate{}
	var order []int
	for _, c := range candidates {
		prev, ok := byIndex[c.index]
		if !ok {
			byIndex[c.index] = c
			order = append(order, c.index)
			continue
		}
		if c.confidence > prev.confidence {
			byIndex[c.index] = c
		}
	}
	deduped := make([]candidate, 0, len(order))
	for _, idx := range order {
		deduped = append(deduped, byIndex[idx])
	}

	var confSum float64
	for _, c := range deduped {
		confSum += c.confidence
	}
	if len(deduped) > 0 {
		result.Confidence = confSum / float64(len(deduped))
	}

	for _, c := range deduped {
		if c.confidence < d.cfg.ConfidenceThreshold {
			continue
		}
		a := models.Anomaly{
			Index:      c.index,
			Column:     c.column,
			Method:     c.method,
			Value:      c.value,
			Score:      c.score,
			Confidence: c.confidence,
		}
		if c.index < len(clean.Times) {
			a.Timestamp = clean.Times[c.index]
		}
		result.Anomalies = append(result.Anomalies, a)
	}
	sort.SliceStable(result.Anomalies, func(i, j int) bool {
		return result.Anomalies[i].Index < result.Anomalies[j].Index
	})

	result.Method = models.EnsembleMethod
	result.TotalDetected = len(deduped)
	result.FilteredCount = len(deduped) - len(result.Anomalies)
	return result, nil
}

// Trained returns the sorted metric keys with fitted models.
func (d *Detector) Trained() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.models))
	for key := range d.models {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Status reports the trained state.
func (d *Detector) Status() models.AnomalyStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := models.AnomalyStatus{Trained: len(d.models) > 0}
	for key, m := range d.models {
		status.Metrics = append(status.Metrics, key)
		if m.TrainedAt.After(status.TrainedAt) {
			status.TrainedAt = m.TrainedAt
		}
	}
	sort.Strings(status.Metrics)
	return status
}

// Snapshot exports the trained state for persistence.
func (d *Detector) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := Snapshot{Models: make(map[string]*MetricModel, len(d.models))}
	for key, m := range d.models {
		out.Models[key] = m
	}
	return out
}

// Restore replaces the trained state from a snapshot.
func (d *Detector) Restore(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.models = make(map[string]*MetricModel, len(s.Models))
	for key, m := range s.Models {
		d.models[key] = m
	}
}

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/observastack/aiops-engine/internal/models"
)

// FileSource reads training series from JSON snapshots dropped into a
// directory by an external collector. Expected files: anomaly.json keyed by
// metric, scaling.json and rootcause.json as plain point arrays.
type FileSource struct {
	dir string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

type pointDTO struct {
	Timestamp   time.Time          `json:"timestamp"`
	Values      map[string]float64 `json:"values"`
	ServiceName string             `json:"service_name,omitempty"`
	Environment string             `json:"environment,omitempty"`
}

func toSeries(points []pointDTO) models.Series {
	s := make(models.Series, 0, len(points))
	for _, p := range points {
		s = append(s, models.MetricPoint{
			Timestamp:   p.Timestamp,
			Values:      p.Values,
			ServiceName: p.ServiceName,
			Environment: p.Environment,
		})
	}
	return s
}

// AnomalyTrainingData loads per-metric series from anomaly.json.
func (f *FileSource) AnomalyTrainingData(_ context.Context) (map[string]models.Series, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, "anomaly.json"))
	if err != nil {
		return nil, fmt.Errorf("read anomaly snapshot: %w", err)
	}
	var raw map[string][]pointDTO
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse anomaly snapshot: %w", err)
	}
	out := make(map[string]models.Series, len(raw))
	for metric, points := range raw {
		out[metric] = toSeries(points)
	}
	return out, nil
}

// ScalingTrainingData loads the resource series from scaling.json.
func (f *FileSource) ScalingTrainingData(_ context.Context) (models.Series, error) {
	return f.readSeries("scaling.json")
}

// RootCauseTrainingData loads the incident series from rootcause.json.
func (f *FileSource) RootCauseTrainingData(_ context.Context) (models.Series, error) {
	return f.readSeries("rootcause.json")
}

func (f *FileSource) readSeries(name string) (models.Series, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var points []pointDTO
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return toSeries(points), nil
}

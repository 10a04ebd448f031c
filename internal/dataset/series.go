package dataset

import (
	"github.com/observastack/aiops-engine/internal/models"
)

// Label column names populated from metric points.
const (
	LabelService     = "service_name"
	LabelEnvironment = "environment"
)

// FromSeries converts a metric series into a table. Points are ordered by
// timestamp and metrics absent from a point become missing values.
func FromSeries(s models.Series) *Table {
	sorted := append(models.Series(nil), s...)
	sorted.SortByTime()

	t := New()
	metrics := sorted.Metrics()

	for _, p := range sorted {
		t.Times = append(t.Times, p.Timestamp)
	}
	for _, name := range metrics {
		vals := make([]float64, len(sorted))
		for i, p := range sorted {
			if v, ok := p.Values[name]; ok {
				vals[i] = v
			} else {
				vals[i] = Missing()
			}
		}
		t.Cols = append(t.Cols, name)
		t.Data[name] = vals
	}

	services := make([]string, len(sorted))
	environments := make([]string, len(sorted))
	hasLabels := false
	for i, p := range sorted {
		services[i] = p.ServiceName
		environments[i] = p.Environment
		if p.ServiceName != "" || p.Environment != "" {
			hasLabels = true
		}
	}
	if hasLabels {
		t.Labels[LabelService] = services
		t.Labels[LabelEnvironment] = environments
	}
	return t
}

package preprocess

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/ml"
)

// Step records one applied preprocessing operation.
type Step struct {
	Name       string
	RowsBefore int
	RowsAfter  int
	ColsBefore int
	ColsAfter  int
	Note       string
}

// Report is the ordered summary of a preprocessing run.
type Report struct {
	Steps []Step
}

func (r *Report) add(name string, before, after *dataset.Table, note string) {
	r.Steps = append(r.Steps, Step{
		Name:       name,
		RowsBefore: before.NumRows(),
		RowsAfter:  after.NumRows(),
		ColsBefore: before.NumCols(),
		ColsAfter:  after.NumCols(),
		Note:       note,
	})
}

// Config selects the pipeline behaviour.
type Config struct {
	ImputeStrategy  string  `yaml:"imputeStrategy"`
	KNNNeighbors    int     `yaml:"knnNeighbors"`
	OutlierMethod   string  `yaml:"outlierMethod"`
	IQRMultiplier   float64 `yaml:"iqrMultiplier"`
	ZScoreThreshold float64 `yaml:"zScoreThreshold"`
	MaxColumnGaps   float64 `yaml:"maxColumnGaps"`
	MaxRowGaps      float64 `yaml:"maxRowGaps"`
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		ImputeStrategy:  "mean",
		KNNNeighbors:    5,
		OutlierMethod:   "iqr",
		IQRMultiplier:   1.5,
		ZScoreThreshold: 3.0,
		MaxColumnGaps:   0.8,
		MaxRowGaps:      0.5,
	}
}

// Pipeline applies the configured cleaning steps in a fixed order and records
// a report of what changed.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// NewPipeline constructs a pipeline.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run cleans the table: dedupe, drop sparse columns and rows, impute, then
// handle outliers. The input table is not modified.
func (p *Pipeline) Run(t *dataset.Table) (*dataset.Table, Report, error) {
	var report Report

	out := Deduplicate(t)
	report.add("deduplicate", t, out, "")

	prev := out
	out = DropSparse(prev, p.cfg.MaxColumnGaps, p.cfg.MaxRowGaps)
	report.add("drop_sparse", prev, out, "")

	prev = out
	imputed, err := Impute(prev, p.cfg.ImputeStrategy, p.cfg.KNNNeighbors)
	if err != nil {
		return nil, report, err
	}
	out = imputed
	report.add("impute", prev, out, p.cfg.ImputeStrategy)

	prev = out
	switch p.cfg.OutlierMethod {
	case "", "iqr":
		out = CapOutliersIQR(prev, p.cfg.IQRMultiplier)
		report.add("outliers", prev, out, "iqr_cap")
	case "zscore":
		out = ReplaceOutliersZScore(prev, p.cfg.ZScoreThreshold)
		report.add("outliers", prev, out, "zscore_median")
	case "none":
	default:
		return nil, report, fmt.Errorf("unknown outlier method %q", p.cfg.OutlierMethod)
	}

	p.logger.Debug("preprocessing complete",
		slog.Int("rows", out.NumRows()),
		slog.Int("cols", out.NumCols()),
		slog.Int("steps", len(report.Steps)))
	return out, report, nil
}

// Deduplicate removes rows identical across timestamps, values and labels.
func Deduplicate(t *dataset.Table) *dataset.Table {
	rows := t.NumRows()
	seen := map[string]bool{}
	keep := make([]bool, rows)

	var sb strings.Builder
	for i := 0; i < rows; i++ {
		sb.Reset()
		if len(t.Times) > 0 {
			fmt.Fprintf(&sb, "%d|", t.Times[i].UnixNano())
		}
		for _, col := range t.Cols {
			fmt.Fprintf(&sb, "%v|", t.Data[col][i])
		}
		for _, name := range sortedLabelNames(t) {
			fmt.Fprintf(&sb, "%s|", t.Labels[name][i])
		}
		key := sb.String()
		if !seen[key] {
			seen[key] = true
			keep[i] = true
		}
	}
	return t.FilterRows(keep)
}

// DropSparse removes columns missing more than colShare of values, then rows
// missing more than rowShare of the remaining columns.
func DropSparse(t *dataset.Table, colShare, rowShare float64) *dataset.Table {
	out := t.Clone()
	rows := out.NumRows()
	if rows == 0 {
		return out
	}

	for _, col := range append([]string(nil), out.Cols...) {
		missing := 0
		for _, v := range out.Data[col] {
			if dataset.IsMissing(v) {
				missing++
			}
		}
		if float64(missing)/float64(rows) > colShare {
			out.DropColumn(col)
		}
	}

	if out.NumCols() == 0 {
		return out
	}
	keep := make([]bool, rows)
	for i := 0; i < rows; i++ {
		missing := 0
		for _, col := range out.Cols {
			if dataset.IsMissing(out.Data[col][i]) {
				missing++
			}
		}
		keep[i] = float64(missing)/float64(out.NumCols()) <= rowShare
	}
	return out.FilterRows(keep)
}

// ForwardFill carries the last observation forward per column, then fills any
// leading gap backward from the first observation.
func ForwardFill(t *dataset.Table) *dataset.Table {
	out := t.Clone()
	for _, col := range out.Cols {
		vals := out.Data[col]
		last := dataset.Missing()
		for i, v := range vals {
			if dataset.IsMissing(v) {
				vals[i] = last
			} else {
				last = v
			}
		}
		next := dataset.Missing()
		for i := len(vals) - 1; i >= 0; i-- {
			if dataset.IsMissing(vals[i]) {
				vals[i] = next
			} else {
				next = vals[i]
			}
		}
	}
	return out
}

// Impute fills missing values with the configured strategy.
func Impute(t *dataset.Table, strategy string, knnNeighbors int) (*dataset.Table, error) {
	switch strategy {
	case "", "mean", "median", "most_frequent":
		return imputeColumnwise(t, strategy), nil
	case "knn":
		return imputeKNN(t, knnNeighbors), nil
	default:
		return nil, fmt.Errorf("unknown impute strategy %q", strategy)
	}
}

func imputeColumnwise(t *dataset.Table, strategy string) *dataset.Table {
	out := t.Clone()
	for _, col := range out.Cols {
		vals := out.Data[col]
		observed := make([]float64, 0, len(vals))
		for _, v := range vals {
			if !dataset.IsMissing(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			continue
		}

		var fill float64
		switch strategy {
		case "median":
			fill = ml.Median(observed)
		case "most_frequent":
			fill = mode(observed)
		default:
			fill = ml.Mean(observed)
		}
		for i, v := range vals {
			if dataset.IsMissing(v) {
				vals[i] = fill
			}
		}
	}
	return out
}

func imputeKNN(t *dataset.Table, k int) *dataset.Table {
	if k <= 0 {
		k = 5
	}
	out := t.Clone()
	rows := out.NumRows()
	complete := out.CompleteRows()

	var donors []int
	for i, ok := range complete {
		if ok {
			donors = append(donors, i)
		}
	}
	if len(donors) == 0 {
		return imputeColumnwise(out, "mean")
	}

	for i := 0; i < rows; i++ {
		if complete[i] {
			continue
		}
		type scored struct {
			idx  int
			dist float64
		}
		candidates := make([]scored, 0, len(donors))
		for _, d := range donors {
			var sum float64
			var dims int
			for _, col := range out.Cols {
				a := out.Data[col][i]
				if dataset.IsMissing(a) {
					continue
				}
				diff := a - out.Data[col][d]
				sum += diff * diff
				dims++
			}
			if dims == 0 {
				sum = math.Inf(1)
			}
			candidates = append(candidates, scored{idx: d, dist: math.Sqrt(sum)})
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })
		if len(candidates) > k {
			candidates = candidates[:k]
		}

		for _, col := range out.Cols {
			if !dataset.IsMissing(out.Data[col][i]) {
				continue
			}
			var sum float64
			for _, c := range candidates {
				sum += out.Data[col][c.idx]
			}
			out.Data[col][i] = sum / float64(len(candidates))
		}
	}
	return out
}

// CapOutliersIQR clamps values outside [Q1 - m*IQR, Q3 + m*IQR] to the bound.
func CapOutliersIQR(t *dataset.Table, multiplier float64) *dataset.Table {
	if multiplier <= 0 {
		multiplier = 1.5
	}
	out := t.Clone()
	for _, col := range out.Cols {
		vals := out.Data[col]
		q1, q3 := ml.Quartiles(observedOnly(vals))
		iqr := q3 - q1
		lo := q1 - multiplier*iqr
		hi := q3 + multiplier*iqr
		for i, v := range vals {
			if dataset.IsMissing(v) {
				continue
			}
			if v < lo {
				vals[i] = lo
			} else if v > hi {
				vals[i] = hi
			}
		}
	}
	return out
}

// ReplaceOutliersZScore replaces values with |z| above the threshold by the
// column median.
func ReplaceOutliersZScore(t *dataset.Table, threshold float64) *dataset.Table {
	if threshold <= 0 {
		threshold = 3
	}
	out := t.Clone()
	for _, col := range out.Cols {
		vals := out.Data[col]
		observed := observedOnly(vals)
		median := ml.Median(observed)
		mean := ml.Mean(observed)
		std := ml.StdDev(observed)
		if std == 0 {
			continue
		}
		for i, v := range vals {
			if dataset.IsMissing(v) {
				continue
			}
			if math.Abs((v-mean)/std) > threshold {
				vals[i] = median
			}
		}
	}
	return out
}

func observedOnly(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !dataset.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

func mode(vals []float64) float64 {
	counts := map[float64]int{}
	for _, v := range vals {
		counts[v]++
	}
	best := vals[0]
	bestCount := 0
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

func sortedLabelNames(t *dataset.Table) []string {
	names := make([]string, 0, len(t.Labels))
	for name := range t.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

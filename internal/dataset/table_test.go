package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/observastack/aiops-engine/internal/models"
)

func TestTableFilterRows(t *testing.T) {
	tbl := New()
	if err := tbl.AddColumn("cpu", []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := tbl.AddColumn("mem", []float64{10, 20, 30, 40}); err != nil {
		t.Fatalf("add column: %v", err)
	}

	out := tbl.FilterRows([]bool{true, false, true, false})
	if out.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.NumRows())
	}
	vals, _ := out.Column("mem")
	if vals[1] != 30 {
		t.Fatalf("expected 30, got %v", vals[1])
	}
}

func TestTableCompleteRows(t *testing.T) {
	tbl := New()
	_ = tbl.AddColumn("a", []float64{1, math.NaN(), 3})
	_ = tbl.AddColumn("b", []float64{1, 2, 3})

	keep := tbl.CompleteRows()
	if keep[0] != true || keep[1] != false || keep[2] != true {
		t.Fatalf("unexpected mask %v", keep)
	}
}

func TestTableColumnLengthMismatch(t *testing.T) {
	tbl := New()
	_ = tbl.AddColumn("a", []float64{1, 2, 3})
	if err := tbl.AddColumn("b", []float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestFromSeriesSortsAndFillsMissing(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	series := models.Series{
		{Timestamp: base.Add(time.Hour), Values: map[string]float64{"cpu_usage": 2}},
		{Timestamp: base, Values: map[string]float64{"cpu_usage": 1, "memory_usage": 50}, ServiceName: "api"},
	}

	tbl := FromSeries(series)
	if tbl.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.NumRows())
	}
	cpu, _ := tbl.Column("cpu_usage")
	if cpu[0] != 1 || cpu[1] != 2 {
		t.Fatalf("series not sorted by time: %v", cpu)
	}
	mem, _ := tbl.Column("memory_usage")
	if !IsMissing(mem[1]) {
		t.Fatalf("expected missing memory value, got %v", mem[1])
	}
	if tbl.Labels[LabelService][0] != "api" {
		t.Fatalf("expected service label, got %q", tbl.Labels[LabelService][0])
	}
}

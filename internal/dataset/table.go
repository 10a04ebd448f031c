package dataset

import (
	"fmt"
	"math"
	"time"
)

// Table is a columnar frame of float columns with optional timestamps and
// string label columns. Missing values are represented as NaN.
type Table struct {
	Cols   []string
	Data   map[string][]float64
	Times  []time.Time
	Labels map[string][]string
}

// New returns an empty table.
func New() *Table {
	return &Table{
		Data:   map[string][]float64{},
		Labels: map[string][]string{},
	}
}

// NumRows returns the row count of the table.
func (t *Table) NumRows() int {
	if len(t.Times) > 0 {
		return len(t.Times)
	}
	for _, col := range t.Cols {
		return len(t.Data[col])
	}
	return 0
}

// NumCols returns the number of float columns.
func (t *Table) NumCols() int { return len(t.Cols) }

// HasColumn reports whether a float column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Data[name]
	return ok
}

// Column returns the values of a float column.
func (t *Table) Column(name string) ([]float64, bool) {
	vals, ok := t.Data[name]
	return vals, ok
}

// AddColumn appends or replaces a float column. The length must match the
// current row count unless the table is empty.
func (t *Table) AddColumn(name string, vals []float64) error {
	if rows := t.NumRows(); rows > 0 && len(vals) != rows {
		return fmt.Errorf("column %s has %d values, table has %d rows", name, len(vals), rows)
	}
	if !t.HasColumn(name) {
		t.Cols = append(t.Cols, name)
	}
	t.Data[name] = vals
	return nil
}

// AddLabel appends or replaces a string label column.
func (t *Table) AddLabel(name string, vals []string) error {
	if rows := t.NumRows(); rows > 0 && len(vals) != rows {
		return fmt.Errorf("label %s has %d values, table has %d rows", name, len(vals), rows)
	}
	if t.Labels == nil {
		t.Labels = map[string][]string{}
	}
	t.Labels[name] = vals
	return nil
}

// DropColumn removes a float column if present.
func (t *Table) DropColumn(name string) {
	if !t.HasColumn(name) {
		return
	}
	delete(t.Data, name)
	for i, col := range t.Cols {
		if col == name {
			t.Cols = append(t.Cols[:i], t.Cols[i+1:]...)
			break
		}
	}
}

// Select returns a new table holding only the named float columns, in order.
func (t *Table) Select(names []string) (*Table, error) {
	out := New()
	out.Times = append([]time.Time(nil), t.Times...)
	for _, name := range names {
		vals, ok := t.Data[name]
		if !ok {
			return nil, fmt.Errorf("column %s not found", name)
		}
		if err := out.AddColumn(name, append([]float64(nil), vals...)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FilterRows returns a new table keeping only rows where keep[i] is true.
func (t *Table) FilterRows(keep []bool) *Table {
	out := New()
	if len(t.Times) > 0 {
		for i, ts := range t.Times {
			if keep[i] {
				out.Times = append(out.Times, ts)
			}
		}
	}
	for _, col := range t.Cols {
		src := t.Data[col]
		dst := make([]float64, 0, len(src))
		for i, v := range src {
			if keep[i] {
				dst = append(dst, v)
			}
		}
		out.Cols = append(out.Cols, col)
		out.Data[col] = dst
	}
	for name, src := range t.Labels {
		dst := make([]string, 0, len(src))
		for i, v := range src {
			if keep[i] {
				dst = append(dst, v)
			}
		}
		out.Labels[name] = dst
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	keep := make([]bool, t.NumRows())
	for i := range keep {
		keep[i] = true
	}
	return t.FilterRows(keep)
}

// Matrix exports the float columns as row-major [][]float64 in column order.
func (t *Table) Matrix() [][]float64 {
	rows := t.NumRows()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, len(t.Cols))
		for j, col := range t.Cols {
			row[j] = t.Data[col][i]
		}
		out[i] = row
	}
	return out
}

// Row returns one row in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.Cols))
	for j, col := range t.Cols {
		row[j] = t.Data[col][i]
	}
	return row
}

// CompleteRows returns a mask selecting rows without any NaN value.
func (t *Table) CompleteRows() []bool {
	keep := make([]bool, t.NumRows())
	for i := range keep {
		keep[i] = true
		for _, col := range t.Cols {
			if math.IsNaN(t.Data[col][i]) {
				keep[i] = false
				break
			}
		}
	}
	return keep
}

// IsMissing reports whether a value represents a missing observation.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Missing is the sentinel stored for absent observations.
func Missing() float64 { return math.NaN() }

// Package dataset holds the four source tables (clients, orders, items,
// products) and loads them from CSV or XLSX.
package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrMissingColumn is returned when a table lacks a column a computation needs.
	ErrMissingColumn = eris.New("missing column")
	// ErrColumnType is returned when a column holds values of an incompatible type.
	ErrColumnType = eris.New("incompatible column type")
)

// Table is a CSV-shaped table addressed by column name. Cells are kept as the
// raw strings read from the source; typing happens in the computations.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table and indexes its header. Header names are trimmed.
func NewTable(name string, columns []string, rows [][]string) *Table {
	t := &Table{
		Name:    name,
		Columns: make([]string, len(columns)),
		Rows:    rows,
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		col = strings.TrimSpace(col)
		t.Columns[i] = col
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns every cell of the named column in row order. Short rows
// yield empty cells.
func (t *Table) Column(name string) ([]string, error) {
	if t == nil {
		return nil, eris.Wrapf(ErrMissingColumn, "nil table: %s", name)
	}
	idx, ok := t.index[name]
	if !ok {
		return nil, eris.Wrapf(ErrMissingColumn, "%s.%s", t.Name, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// ColumnPair returns two aligned columns.
func (t *Table) ColumnPair(a, b string) ([]string, []string, error) {
	colA, err := t.Column(a)
	if err != nil {
		return nil, nil, err
	}
	colB, err := t.Column(b)
	if err != nil {
		return nil, nil, err
	}
	return colA, colB, nil
}

// Head returns a copy of the table limited to the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) || n < 0 {
		n = len(t.Rows)
	}
	rows := make([][]string, n)
	copy(rows, t.Rows[:n])
	return NewTable(t.Name, t.Columns, rows)
}

// ParseNumber parses a cell as a finite number. Surrounding spaces are
// ignored.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeKey canonicalises a join key so that "7", "7.0" and " 7 " match,
// the way numeric key columns compare once a spreadsheet export has turned
// integers into floats.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CompareKeys orders normalised keys numerically when both are numbers and
// lexically otherwise. Numbers sort before text.
func CompareKeys(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

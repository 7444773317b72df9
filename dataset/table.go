// Package dataset holds the tabular data an experiment runs on.
//
// A Table is a list of named columns of cells. Each cell is a number, a
// string or missing. Rows are addressed by position, so dropping rows
// renumbers the rest from zero.
package dataset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// Kind is the type of value a Cell holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindString
)

// Cell is a single table value.
type Cell struct {
	Kind Kind
	Num  float64
	Str  string
}

// Number returns a numeric cell. NaN becomes a missing cell.
func Number(v float64) Cell {
	if math.IsNaN(v) {
		return Missing()
	}
	return Cell{Kind: KindNumber, Num: v}
}

// String returns a string cell.
func String(s string) Cell { return Cell{Kind: KindString, Str: s} }

// Missing returns a missing cell.
func Missing() Cell { return Cell{} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == KindMissing }

// Float64 returns the numeric value. Missing cells give NaN and ok=true;
// strings are parsed and give ok=false when they are not numbers.
func (c Cell) Float64() (float64, bool) {
	switch c.Kind {
	case KindNumber:
		return c.Num, true
	case KindString:
		v, err := strconv.ParseFloat(c.Str, 64)
		return v, err == nil
	default:
		return math.NaN(), true
	}
}

// Value returns the cell as float64, string or nil.
func (c Cell) Value() interface{} {
	switch c.Kind {
	case KindNumber:
		return c.Num
	case KindString:
		return c.Str
	default:
		return nil
	}
}

func (c Cell) String() string {
	switch c.Kind {
	case KindNumber:
		return strconv.FormatFloat(c.Num, 'g', -1, 64)
	case KindString:
		return c.Str
	default:
		return ""
	}
}

// Table is a column-oriented table with unique column names.
type Table struct {
	names []string
	cols  map[string][]Cell
	nRows int
}

// NewTable builds a table from column names and row-major cells.
func NewTable(columns []string, rows [][]Cell) (*Table, error) {
	t := &Table{cols: make(map[string][]Cell, len(columns))}
	for _, name := range columns {
		if _, dup := t.cols[name]; dup {
			return nil, errors.NewValueError("dataset.NewTable", fmt.Sprintf("duplicate column '%s'", name))
		}
		t.names = append(t.names, name)
		t.cols[name] = make([]Cell, len(rows))
	}
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, errors.NewValueError("dataset.NewTable",
				fmt.Sprintf("row %d has %d values but the header has %d columns", i, len(row), len(columns)))
		}
		for j, c := range row {
			t.cols[columns[j]][i] = c
		}
	}
	t.nRows = len(rows)
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on error.
func MustTable(columns []string, rows [][]Cell) *Table {
	t, err := NewTable(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.names...) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nRows }

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the cells of a column. The slice is shared with the table.
func (t *Table) Column(name string) ([]Cell, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, errors.NewValueError("Table.Column", fmt.Sprintf("unknown column '%s'", name))
	}
	return col, nil
}

// At returns the cell at the given row and column. Unknown columns and rows
// out of range give a missing cell.
func (t *Table) At(row int, name string) Cell {
	col, ok := t.cols[name]
	if !ok || row < 0 || row >= t.nRows {
		return Missing()
	}
	return col[row]
}

// Set replaces a single cell.
func (t *Table) Set(row int, name string, c Cell) error {
	col, err := t.Column(name)
	if err != nil {
		return err
	}
	if row < 0 || row >= t.nRows {
		return errors.NewValueError("Table.Set", fmt.Sprintf("row %d out of range [0, %d)", row, t.nRows))
	}
	col[row] = c
	return nil
}

// SetColumn replaces a column or appends it when the name is new.
func (t *Table) SetColumn(name string, cells []Cell) error {
	if len(cells) != t.nRows {
		return errors.NewDimensionError("Table.SetColumn", t.nRows, len(cells), 0)
	}
	if _, ok := t.cols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.cols[name] = append([]Cell(nil), cells...)
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		names: append([]string(nil), t.names...),
		cols:  make(map[string][]Cell, len(t.cols)),
		nRows: t.nRows,
	}
	for name, col := range t.cols {
		c.cols[name] = append([]Cell(nil), col...)
	}
	return c
}

// DropRows removes the given row positions in place. Remaining rows keep
// their relative order and are renumbered from zero.
func (t *Table) DropRows(rows ...int) {
	if len(rows) == 0 {
		return
	}
	drop := make(map[int]bool, len(rows))
	for _, r := range rows {
		drop[r] = true
	}
	for name, col := range t.cols {
		kept := col[:0]
		for i, c := range col {
			if !drop[i] {
				kept = append(kept, c)
			}
		}
		t.cols[name] = kept
	}
	n := 0
	for i := 0; i < t.nRows; i++ {
		if !drop[i] {
			n++
		}
	}
	t.nRows = n
}

// DropColumn removes a column.
func (t *Table) DropColumn(name string) error {
	if _, ok := t.cols[name]; !ok {
		return errors.NewValueError("Table.DropColumn", fmt.Sprintf("unknown column '%s'", name))
	}
	delete(t.cols, name)
	for i, n := range t.names {
		if n == name {
			t.names = append(t.names[:i], t.names[i+1:]...)
			break
		}
	}
	return nil
}

// Select returns a new table holding copies of the named columns.
func (t *Table) Select(names ...string) (*Table, error) {
	s := &Table{cols: make(map[string][]Cell, len(names)), nRows: t.nRows}
	for _, name := range names {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if _, dup := s.cols[name]; dup {
			continue
		}
		s.names = append(s.names, name)
		s.cols[name] = append([]Cell(nil), col...)
	}
	return s, nil
}

// Float64s converts a column to float64. Missing cells become NaN; any
// string that does not parse as a number is a data-quality error.
func (t *Table) Float64s(name string) ([]float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, c := range col {
		v, ok := c.Float64()
		if !ok {
			return nil, errors.NewDataQualityError("float conversion", name,
				fmt.Sprintf("value '%s' at row %d is not numeric", c.Str, i))
		}
		out[i] = v
	}
	return out, nil
}

// IsNumeric reports whether every non-missing cell of the column is a number.
func (t *Table) IsNumeric(name string) bool {
	col, ok := t.cols[name]
	if !ok {
		return false
	}
	for _, c := range col {
		if c.Kind == KindString {
			return false
		}
	}
	return true
}

// HasMissing reports whether the column has at least one missing cell.
func (t *Table) HasMissing(name string) bool {
	col, ok := t.cols[name]
	if !ok {
		return false
	}
	for _, c := range col {
		if c.IsMissing() {
			return true
		}
	}
	return false
}

// Factorize replaces every value of the column with an integer code in
// order of first appearance and returns the distinct values. Missing cells
// stay missing.
func (t *Table) Factorize(name string) ([]string, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	codes := make(map[Cell]int)
	var uniques []string
	for i, c := range col {
		if c.IsMissing() {
			continue
		}
		code, seen := codes[c]
		if !seen {
			code = len(uniques)
			codes[c] = code
			uniques = append(uniques, c.String())
		}
		col[i] = Number(float64(code))
	}
	return uniques, nil
}

// Equal reports whether both tables have the same columns in the same order
// and identical cells.
func (t *Table) Equal(o *Table) bool {
	if o == nil || t.nRows != o.nRows || len(t.names) != len(o.names) {
		return false
	}
	for i, name := range t.names {
		if o.names[i] != name {
			return false
		}
		a, b := t.cols[name], o.cols[name]
		for r := range a {
			if a[r] != b[r] {
				return false
			}
		}
	}
	return true
}

package percent

import (
	"slices"

	"github.com/shopspring/decimal"
)

type cellKey struct {
	row    string
	column string
}

// Cell is one committed (row, column) percentage.
type Cell struct {
	Row    string
	Column string
	Value  decimal.Decimal
}

// Matrix is a keyed table of percentages with a draft buffer for values
// that are still being typed. Drafts never count toward totals.
type Matrix struct {
	rows    []string
	columns []string
	values  map[cellKey]decimal.Decimal
	drafts  map[cellKey]string
}

// NewMatrix creates an empty matrix with the given column order.
func NewMatrix(columns ...string) *Matrix {
	return &Matrix{
		columns: slices.Clone(columns),
		values:  make(map[cellKey]decimal.Decimal),
		drafts:  make(map[cellKey]string),
	}
}

// Columns returns the column order.
func (m *Matrix) Columns() []string { return slices.Clone(m.columns) }

// Rows returns the row order (insertion order).
func (m *Matrix) Rows() []string { return slices.Clone(m.rows) }

// HasColumn reports whether column is part of the matrix.
func (m *Matrix) HasColumn(column string) bool { return slices.Contains(m.columns, column) }

// HasRow reports whether row has been added.
func (m *Matrix) HasRow(row string) bool { return slices.Contains(m.rows, row) }

// AddRow appends row if it is not present yet.
func (m *Matrix) AddRow(row string) {
	if !m.HasRow(row) {
		m.rows = append(m.rows, row)
	}
}

// RemoveRow drops row together with its values and drafts.
func (m *Matrix) RemoveRow(row string) {
	idx := slices.Index(m.rows, row)
	if idx < 0 {
		return
	}
	m.rows = slices.Delete(m.rows, idx, idx+1)
	for _, c := range m.columns {
		delete(m.values, cellKey{row, c})
		delete(m.drafts, cellKey{row, c})
	}
}

// SetCell records raw as the draft for (row, column). Input that does not
// parse is rejected and leaves the matrix untouched.
func (m *Matrix) SetCell(row, column, raw string) Parsed {
	if !m.HasColumn(column) {
		return Parsed{Reason: "unknown column " + column}
	}
	p := Parse(raw)
	if !p.Valid {
		return p
	}
	m.AddRow(row)
	m.drafts[cellKey{row, column}] = raw
	return p
}

// Draft returns the pending text for a cell, if any.
func (m *Matrix) Draft(row, column string) (string, bool) {
	raw, ok := m.drafts[cellKey{row, column}]
	return raw, ok
}

// Discard drops the draft for a cell.
func (m *Matrix) Discard(row, column string) {
	delete(m.drafts, cellKey{row, column})
}

// Commit finalizes the draft for a cell and returns the stored value.
// Without a draft the current value is returned unchanged.
func (m *Matrix) Commit(row, column string) decimal.Decimal {
	k := cellKey{row, column}
	raw, ok := m.drafts[k]
	if !ok {
		return m.values[k]
	}
	delete(m.drafts, k)
	v := Finalize(raw)
	m.values[k] = v
	return v
}

// Set stores a normalized value directly, bypassing the draft buffer.
func (m *Matrix) Set(row, column string, v decimal.Decimal) decimal.Decimal {
	if !m.HasColumn(column) {
		return decimal.Zero
	}
	m.AddRow(row)
	k := cellKey{row, column}
	delete(m.drafts, k)
	n := Normalize(v)
	m.values[k] = n
	return n
}

// Value returns the committed value of a cell, 0 when unset.
func (m *Matrix) Value(row, column string) decimal.Decimal {
	return m.values[cellKey{row, column}]
}

// Has reports whether a committed value exists for the cell.
func (m *Matrix) Has(row, column string) bool {
	_, ok := m.values[cellKey{row, column}]
	return ok
}

// ColumnTotal sums a column to two decimals. With no rows given every row
// is summed.
func (m *Matrix) ColumnTotal(column string, rows ...string) decimal.Decimal {
	if len(rows) == 0 {
		rows = m.rows
	}
	vals := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, m.values[cellKey{r, column}])
	}
	return Sum(vals...)
}

// IsColumnValid reports whether the column totals exactly 100.
func (m *Matrix) IsColumnValid(column string, rows ...string) bool {
	return m.ColumnTotal(column, rows...).Equal(Hundred)
}

// RowTotal sums every column of a row to two decimals.
func (m *Matrix) RowTotal(row string) decimal.Decimal {
	vals := make([]decimal.Decimal, 0, len(m.columns))
	for _, c := range m.columns {
		vals = append(vals, m.values[cellKey{row, c}])
	}
	return Sum(vals...)
}

// Cells lists committed cells in row then column order.
func (m *Matrix) Cells() []Cell {
	var out []Cell
	for _, r := range m.rows {
		for _, c := range m.columns {
			if v, ok := m.values[cellKey{r, c}]; ok {
				out = append(out, Cell{Row: r, Column: c, Value: v})
			}
		}
	}
	return out
}

// Clone copies committed values. Drafts are editor state and are dropped.
func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.columns...)
	c.rows = slices.Clone(m.rows)
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

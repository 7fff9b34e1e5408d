package pipeline

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
)

// Cap returns the largest value row may take in column without pushing the
// combined draw on any of its units past 100, and without exceeding what
// the column has left. subsets maps every competing row to its units.
// A row with no units has no basis to allocate and gets 0.
func Cap(m *percent.Matrix, subsets map[string][]string, row, column string) decimal.Decimal {
	units := subsets[row]
	if len(units) == 0 {
		return decimal.Zero
	}
	current := m.Value(row, column)

	perUnit := percent.Hundred
	for _, u := range units {
		used := decimal.Zero
		for other, otherUnits := range subsets {
			if slices.Contains(otherUnits, u) {
				used = used.Add(m.Value(other, column))
			}
		}
		used = decimal.Max(decimal.Zero, used.Sub(current))
		remaining := decimal.Max(decimal.Zero, percent.Hundred.Sub(used))
		perUnit = decimal.Min(perUnit, remaining)
	}

	rows := slices.Sorted(maps.Keys(subsets))
	columnLeft := decimal.Max(decimal.Zero, percent.Hundred.Sub(m.ColumnTotal(column, rows...)).Add(current))

	return decimal.Max(decimal.Zero, decimal.Min(perUnit, columnLeft))
}

// Subsets returns the effective unit set of every activity in a pool.
func Subsets(s *model.State, poolID string) map[string][]string {
	out := make(map[string][]string)
	for _, id := range s.ActivitiesIn(poolID) {
		out[id] = s.EffectiveUnits(id)
	}
	return out
}

// CapFor computes the cap for an activity's expense column against the
// other activities of its pool. Unknown activities get 0.
func CapFor(s *model.State, activityID string, key model.ExpenseKey) decimal.Decimal {
	a, ok := s.Activities[activityID]
	if !ok {
		return decimal.Zero
	}
	return Cap(s.Cells, Subsets(s, a.PoolID), activityID, string(key))
}

// Clamp limits v to limit.
func Clamp(v, limit decimal.Decimal) decimal.Decimal {
	return decimal.Min(v, limit)
}

// Overlap is a unit whose summed draw in a column exceeds 100.
type Overlap struct {
	PoolID string
	UnitID string
	Column model.ExpenseKey
	Total  decimal.Decimal
	Rows   []string
}

// Overlaps lists every over-drawn (unit, column) pair, ordered by pool,
// unit and column.
func Overlaps(s *model.State) []Overlap {
	var out []Overlap
	for _, poolID := range s.PoolIDs() {
		subsets := Subsets(s, poolID)
		if len(subsets) == 0 {
			continue
		}
		for _, unit := range s.UnitsIn(model.StagePool, poolID) {
			for _, key := range model.Expenses() {
				var rows []string
				var vals []decimal.Decimal
				for _, row := range slices.Sorted(maps.Keys(subsets)) {
					if slices.Contains(subsets[row], unit) {
						rows = append(rows, row)
						vals = append(vals, s.Cells.Value(row, string(key)))
					}
				}
				if total := percent.Sum(vals...); total.GreaterThan(percent.Hundred) {
					out = append(out, Overlap{PoolID: poolID, UnitID: unit, Column: key, Total: total, Rows: rows})
				}
			}
		}
	}
	return out
}

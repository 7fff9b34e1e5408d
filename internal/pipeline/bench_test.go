package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/source"
)

// synthetic builds a scenario with pools pools of unitsPerPool units, each
// pool carrying two activities that split every column 50/50.
func synthetic(pools, unitsPerPool int) source.Scenario {
	sc := source.Scenario{
		Services: []source.ServiceRecord{{ID: "S1", Name: "Shared"}},
		Metrics: []source.MetricRecord{{
			ID:         "M1",
			Franchises: map[string]float64{"Franchise A": 70, "Franchise B": 30},
			LEAllocations: map[string]map[string]map[string]float64{
				"Franchise A": {"a": {"M1": 100}},
				"Franchise B": {"b": {"M1": 100}},
			},
		}},
	}
	for p := 0; p < pools; p++ {
		poolID := fmt.Sprintf("P%d", p)
		sc.Pools = append(sc.Pools, source.PoolRecord{ID: poolID, Name: poolID, Service: "S1", SourceLE: "UK"})
		var units []string
		for u := 0; u < unitsPerPool; u++ {
			id := fmt.Sprintf("U%d-%d", p, u)
			units = append(units, id)
			sc.Units = append(sc.Units, source.UnitRecord{ID: id, LegalEntity: "UK", Staff: 1000 + float64(u), NonStaff: 250, FTE: 1})
			sc.Assignments = append(sc.Assignments,
				source.AssignmentRecord{Unit: id, Group: "S1", Stage: "service"},
				source.AssignmentRecord{Unit: id, Group: poolID, Stage: "pool"},
			)
		}
		for a := 0; a < 2; a++ {
			actID := fmt.Sprintf("A%d-%d", p, a)
			sc.Activities = append(sc.Activities, source.ActivityRecord{ID: actID, Name: actID, Pool: poolID, Metric: "M1", Units: units})
			for _, col := range model.ExpenseColumns() {
				sc.Cells = append(sc.Cells, source.CellRecord{Row: actID, Column: col, Percent: 50})
			}
		}
	}
	return sc
}

func writeSynthetic(b *testing.B, dir string, sc source.Scenario) {
	b.Helper()
	f, err := os.Create(filepath.Join(dir, "synthetic.toml"))
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()
	if err := source.Encode(f, sc); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkLoad(b *testing.B) {
	dir := b.TempDir()
	writeSynthetic(b, dir, synthetic(50, 20))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Load(dir, source.Catalog{}, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	dir := b.TempDir()
	writeSynthetic(b, dir, synthetic(50, 20))
	result, err := Load(dir, source.Catalog{}, nil)
	if err != nil {
		b.Fatal(err)
	}
	calc := NewWaterfall(zerolog.Nop(), nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := calc.Compute(result.State)
		if len(res.Franchises) == 0 {
			b.Fatal("nothing attributed")
		}
	}
}

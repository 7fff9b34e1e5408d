package review

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newCalc() *pipeline.Waterfall { return pipeline.NewWaterfall(zerolog.Nop(), nil) }

// readyState passes every readiness check: one pool, two activities
// splitting every column 60/40, one complete metric. U9 has neither
// service nor pool.
func readyState() *model.State {
	s := model.NewState()
	s.Units["U1"] = model.CostUnit{ID: "U1", Name: "Platform", LegalEntity: "UK", Staff: d("100000"), NonStaff: d("1000"), FTE: d("1")}
	s.Units["U9"] = model.CostUnit{ID: "U9", Name: "Spare", LegalEntity: "UK", Staff: d("5000")}
	s.Services["S1"] = model.Service{ID: "S1", Name: "Ops", Tower: "Tech"}
	s.Pools["P1"] = model.CostPool{ID: "P1", Name: "Ops - UK", ServiceID: "S1", SourceLE: "UK"}
	s.ServiceOf["U1"] = "S1"
	s.PoolOf["U1"] = "P1"
	s.Activities["A1"] = model.Activity{ID: "A1", Name: "Run", PoolID: "P1", MetricID: "M1"}
	s.Activities["A2"] = model.Activity{ID: "A2", Name: "Change", PoolID: "P1", MetricID: "M1"}
	for _, col := range model.ExpenseColumns() {
		s.Cells.Set("A1", col, d("60"))
		s.Cells.Set("A2", col, d("40"))
	}
	s.Metrics["M1"] = model.Metric{
		ID:   "M1",
		Name: "Headcount",
		Franchises: map[model.Franchise]decimal.Decimal{
			"Franchise A": d("60"),
			"Franchise B": d("40"),
		},
		LegalEntities: map[model.Franchise]map[model.LEOption]decimal.Decimal{
			"Franchise A": {"a": d("100")},
			"Franchise B": {"a": d("50"), "b": d("50")},
		},
	}
	return s
}

func baseline(t *testing.T) model.Snapshot {
	t.Helper()
	return model.NewSnapshot(readyState(), "baseline", epoch)
}

func TestDiffAgainstItselfIsEmpty(t *testing.T) {
	snap := baseline(t)
	cs := Diff(snap, snap.State(), newCalc())

	assert.True(t, cs.IsEmpty())
	assert.Zero(t, cs.Len())
	assert.Empty(t, cs.Impacts)
	assert.Empty(t, cs.Moves)
	assert.Empty(t, cs.FranchiseDeltas)
	assert.Empty(t, cs.LegalEntityDeltas)
	assert.Equal(t, snap.ID, cs.BaselineID)
}

func TestDiffRoundTrip(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	after.Cells.Set("A2", "Staff", d("30"))

	cs := Diff(snap, after, newCalc())
	require.Len(t, cs.Cells.Modified, 1)
	assert.True(t, cs.Cells.Modified[0].Delta().Equal(d("-10")))

	// A2 loses 10000 of staff cost, split 60/40 and then by LE.
	assert.True(t, cs.FranchiseDeltas["Franchise A"].Equal(d("-6000")))
	assert.True(t, cs.FranchiseDeltas["Franchise B"].Equal(d("-4000")))
	assert.True(t, cs.LegalEntityDeltas["a"].Equal(d("-8000")))
	assert.True(t, cs.LegalEntityDeltas["b"].Equal(d("-2000")))

	for f, amount := range cs.After.Franchises {
		assert.True(t, cs.Before.Franchises[f].Add(cs.FranchiseDeltas[f]).Equal(amount), "franchise %s", f)
	}

	sums := make(map[model.Franchise]decimal.Decimal)
	for _, imp := range cs.Impacts {
		for _, f := range imp.Franchises {
			sums[f.Franchise] = sums[f.Franchise].Add(f.Delta)
		}
	}
	for f, delta := range cs.FranchiseDeltas {
		assert.True(t, sums[f].Equal(delta), "impacts for %s sum to %s, want %s", f, sums[f], delta)
	}

	require.Len(t, cs.Impacts, 1)
	assert.Equal(t, "A2", cs.Impacts[0].ActivityID)
	assert.True(t, cs.Impacts[0].Delta().Equal(d("-10000")))
}

func TestDiffClassifiesCells(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	after.Activities["A3"] = model.Activity{ID: "A3", Name: "New", PoolID: "P1", MetricID: "M1"}
	after.Cells.Set("A3", "Staff", d("10"))
	after.Cells.Set("A2", "Travel", decimal.Zero)
	after.Cells.Set("A1", "Staff", d("50"))

	cs := Diff(snap, after, newCalc())
	require.Len(t, cs.Cells.Added, 1)
	assert.Equal(t, "A3", cs.Cells.Added[0].ActivityID)
	require.Len(t, cs.Cells.Removed, 1)
	assert.Equal(t, model.ExpenseTravel, cs.Cells.Removed[0].Column)
	require.Len(t, cs.Cells.Modified, 1)
	assert.Equal(t, "A1", cs.Cells.Modified[0].ActivityID)

	require.Len(t, cs.Activities.Added, 1)
	assert.Equal(t, "A3", cs.Activities.Added[0].ActivityID)

	// A3 had nothing before, so its relative change is reported as 0.
	var a3 *ActivityImpact
	for i := range cs.Impacts {
		if cs.Impacts[i].ActivityID == "A3" {
			a3 = &cs.Impacts[i]
		}
	}
	require.NotNil(t, a3)
	for _, f := range a3.Franchises {
		assert.True(t, f.Before.IsZero())
		assert.True(t, f.Delta.IsPositive())
		assert.True(t, f.ChangePct.IsZero())
	}
}

func TestDiffGroupsMoves(t *testing.T) {
	base := readyState()
	base.Units["U2"] = model.CostUnit{ID: "U2", LegalEntity: "UK", Staff: d("300")}
	base.Units["U3"] = model.CostUnit{ID: "U3", LegalEntity: "UK", Staff: d("200"), NonStaff: d("50")}
	snap := model.NewSnapshot(base, "", epoch)

	after := snap.State()
	after.ServiceOf["U2"] = "S1"
	after.ServiceOf["U3"] = "S1"
	after.PoolOf["U2"] = "P1"
	delete(after.PoolOf, "U1")

	cs := Diff(snap, after, newCalc())
	assert.Len(t, cs.Assignments.Added, 3)
	assert.Len(t, cs.Assignments.Removed, 1)
	require.Len(t, cs.Moves, 3)

	// Service moves come first.
	svc := cs.Moves[0]
	assert.Equal(t, model.StageService, svc.Stage)
	assert.Equal(t, Unassigned, svc.From)
	assert.Equal(t, "Ops", svc.To)
	assert.Equal(t, []string{"U2", "U3"}, svc.Units)
	assert.True(t, svc.Total().Equal(d("550")))

	// Then pool moves, largest first.
	assert.Equal(t, "Ops - UK", cs.Moves[1].From)
	assert.Equal(t, Unassigned, cs.Moves[1].To)
	assert.Equal(t, []string{"U1"}, cs.Moves[1].Units)
	assert.Equal(t, Unassigned, cs.Moves[2].From)
	assert.Equal(t, "Ops - UK", cs.Moves[2].To)
}

func TestDiffMetricChange(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	m := after.Metrics["M1"].Clone()
	m.Franchises["Franchise A"] = d("70")
	m.Franchises["Franchise B"] = d("30")
	after.Metrics["M1"] = m

	cs := Diff(snap, after, newCalc())
	require.Len(t, cs.Metrics.Modified, 1)
	mc := cs.Metrics.Modified[0]
	assert.Equal(t, []FieldChange{
		{Path: "franchises/Franchise A", Before: "60.00", After: "70.00"},
		{Path: "franchises/Franchise B", Before: "40.00", After: "30.00"},
	}, mc.Fields)
	assert.NotEmpty(t, mc.Patch)

	// Both activities carry M1, so both are affected.
	require.Len(t, cs.Impacts, 2)
	assert.Equal(t, "A1", cs.Impacts[0].ActivityID)
	assert.Equal(t, "A2", cs.Impacts[1].ActivityID)
	assert.True(t, cs.Impacts[0].Delta().IsZero())

	pools := cs.ImpactsByPool(after)
	require.Len(t, pools, 1)
	assert.Equal(t, "Ops - UK", pools[0].Name)
	assert.True(t, pools[0].Franchises["Franchise A"].Equal(cs.FranchiseDeltas["Franchise A"]))
}

func TestDiffPoolsAndActivities(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	after.Pools["P2"] = model.CostPool{ID: "P2", Name: "Ops - US", ServiceID: "S1", SourceLE: "US"}
	p1 := after.Pools["P1"]
	p1.Name = "Ops (UK)"
	after.Pools["P1"] = p1
	a1 := after.Activities["A1"]
	a1.Name = "Run the bank"
	a1.Units = []string{"U1"}
	after.Activities["A1"] = a1

	cs := Diff(snap, after, newCalc())
	require.Len(t, cs.Pools.Added, 1)
	require.Len(t, cs.Pools.Modified, 1)
	assert.Equal(t, "Ops (UK)", cs.Pools.Modified[0].After.Name)
	require.Len(t, cs.Activities.Modified, 1)
	assert.Equal(t, []string{"name", "units"}, cs.Activities.Modified[0].Fields)
}

func TestSignificantFiltersSmallDeltas(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	after.Cells.Set("A2", "Staff", d("39.99"))

	cs := Diff(snap, after, newCalc())
	require.NotEmpty(t, cs.Impacts)
	assert.Empty(t, cs.Significant(d("100")))
	assert.Len(t, cs.Significant(d("1")), 1)
}

func TestChangeSetFingerprint(t *testing.T) {
	snap := baseline(t)

	one := snap.State()
	one.Cells.Set("A1", "Staff", d("55"))
	one.Cells.Set("A2", "Staff", d("45"))

	two := snap.State()
	two.Cells.Set("A2", "Staff", d("45"))
	two.Cells.Set("A1", "Staff", d("55"))

	other := snap.State()
	other.Cells.Set("A1", "Staff", d("56"))
	other.Cells.Set("A2", "Staff", d("44"))

	calc := newCalc()
	fp := Diff(snap, one, calc).Fingerprint()
	assert.Equal(t, fp, Diff(snap, two, calc).Fingerprint())
	assert.NotEqual(t, fp, Diff(snap, other, calc).Fingerprint())
	assert.Len(t, Diff(snap, one, calc).FingerprintHex(), 16)

	// The same edits against a different baseline are a different review.
	rebased := model.NewSnapshot(readyState(), "", epoch)
	assert.NotEqual(t, fp, Diff(rebased, one, calc).Fingerprint())
}

func TestDiffUnitAndServiceChanges(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	u1 := after.Units["U1"]
	u1.Staff = d("110000")
	after.Units["U1"] = u1
	s1 := after.Services["S1"]
	s1.Tower = "Operations"
	after.Services["S1"] = s1
	delete(after.Units, "U9")

	cs := Diff(snap, after, newCalc())
	require.False(t, cs.IsEmpty())
	assert.Equal(t, 3, cs.Len())
	require.Len(t, cs.Units.Modified, 1)
	assert.True(t, cs.Units.Modified[0].Delta().Equal(d("10000")))
	require.Len(t, cs.Units.Removed, 1)
	assert.Equal(t, "U9", cs.Units.Removed[0].UnitID)
	require.Len(t, cs.Services.Modified, 1)
	assert.Equal(t, "Operations", cs.Services.Modified[0].After.Tower)

	// U1 feeds both activities, so the extra staff cost reaches every franchise.
	assert.True(t, cs.FranchiseDeltas["Franchise A"].Equal(d("6000")))

	lines := cs.Lines()
	assert.Contains(t, lines, `~unit U1 "Platform"/UK/100000.00/1000.00/1.00 -> "Platform"/UK/110000.00/1000.00/1.00`)
	assert.Contains(t, lines, `~service S1 "Ops"/Tech -> "Ops"/Operations`)
	assert.Contains(t, lines, "=franchise Franchise A 6000.00")
	assert.Contains(t, lines, "=le a 8000.00")
}

func TestFingerprintCoversUnitCosts(t *testing.T) {
	snap := baseline(t)
	calc := newCalc()

	renamed := snap.State()
	p1 := renamed.Pools["P1"]
	p1.Name = "Operations - UK"
	renamed.Pools["P1"] = p1

	costlier := renamed.Clone()
	u1 := costlier.Units["U1"]
	u1.Staff = d("200000")
	costlier.Units["U1"] = u1

	assert.NotEqual(t, Diff(snap, renamed, calc).Fingerprint(), Diff(snap, costlier, calc).Fingerprint())

	// A cost change alone is a reviewable change.
	only := snap.State()
	only.Units["U1"] = u1
	cs := Diff(snap, only, calc)
	assert.False(t, cs.IsEmpty())
	assert.Equal(t, 1, cs.Units.Len())
}

func TestMetricPatches(t *testing.T) {
	snap := baseline(t)
	after := snap.State()
	m := after.Metrics["M1"].Clone()
	m.Franchises["Franchise A"] = d("70")
	m.Franchises["Franchise B"] = d("30")
	after.Metrics["M1"] = m
	after.Metrics["M2"] = model.Metric{ID: "M2", Name: "Revenue", Franchises: map[model.Franchise]decimal.Decimal{"Franchise A": d("100")}}

	cs := Diff(snap, after, newCalc())
	require.Len(t, cs.Metrics.Added, 1)
	assert.NotEmpty(t, cs.Metrics.Added[0].Patch)

	ops := cs.MetricPatches()
	require.NotEmpty(t, ops)
	assert.Equal(t, "M2", ops[0].MetricID)

	var m1 []PatchOp
	for _, op := range ops {
		if op.MetricID == "M1" {
			m1 = append(m1, op)
		}
	}
	assert.ElementsMatch(t, []PatchOp{
		{MetricID: "M1", Op: "replace", Path: "/franchises/Franchise A", Value: `"70"`},
		{MetricID: "M1", Op: "replace", Path: "/franchises/Franchise B", Value: `"30"`},
	}, m1)
}

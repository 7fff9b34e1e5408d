package review

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/wI2L/jsondiff"
)

// Group splits changes of one entity class into disjoint sets.
type Group[T any] struct {
	Added    []T
	Removed  []T
	Modified []T
}

// Len counts every change in the group.
func (g Group[T]) Len() int { return len(g.Added) + len(g.Removed) + len(g.Modified) }

// AssignmentChange is a unit entering, leaving or moving between groups.
// From and To are group IDs, empty when the unit is unassigned.
type AssignmentChange struct {
	Stage    model.Stage
	UnitID   string
	From     string
	To       string
	Staff    decimal.Decimal
	NonStaff decimal.Decimal
	FTE      decimal.Decimal
}

// Total is the moved cost.
func (c AssignmentChange) Total() decimal.Decimal { return c.Staff.Add(c.NonStaff) }

// CellChange is an edited allocation percentage.
type CellChange struct {
	ActivityID string
	Column     model.ExpenseKey
	Before     decimal.Decimal
	After      decimal.Decimal
}

// Delta is After minus Before.
func (c CellChange) Delta() decimal.Decimal { return c.After.Sub(c.Before) }

// FieldChange is one differing field, rendered as text.
type FieldChange struct {
	Path   string
	Before string
	After  string
}

// MetricChange describes an added, removed or edited metric. Patch holds
// the JSON patch turning the before view into the after view.
type MetricChange struct {
	MetricID string
	Name     string
	Fields   []FieldChange
	Patch    jsondiff.Patch
}

// PoolChange describes a created, deleted or renamed pool.
type PoolChange struct {
	PoolID string
	Before model.CostPool
	After  model.CostPool
}

// ActivityChange describes an added, removed or edited activity. Fields
// names what changed on a modified activity.
type ActivityChange struct {
	ActivityID string
	Before     model.Activity
	After      model.Activity
	Fields     []string
}

// UnitChange describes a cost unit whose record differs between the
// scenario behind the baseline and the current one.
type UnitChange struct {
	UnitID string
	Before model.CostUnit
	After  model.CostUnit
}

// Delta is the change in total cost.
func (c UnitChange) Delta() decimal.Decimal { return c.After.Total().Sub(c.Before.Total()) }

// ServiceChange describes an added, removed or renamed service.
type ServiceChange struct {
	ServiceID string
	Before    model.Service
	After     model.Service
}

// ChangeSet is the structured difference between a baseline snapshot and
// the current state, with the monetary impact of the edits.
type ChangeSet struct {
	BaselineID          string
	BaselineFingerprint uint64

	Units       Group[UnitChange]
	Services    Group[ServiceChange]
	Assignments Group[AssignmentChange]
	Cells       Group[CellChange]
	Metrics     Group[MetricChange]
	Pools       Group[PoolChange]
	Activities  Group[ActivityChange]

	Impacts           []ActivityImpact
	Moves             []Move
	FranchiseDeltas   map[model.Franchise]decimal.Decimal
	LegalEntityDeltas map[model.LEOption]decimal.Decimal

	// Before and After are the full waterfall results of both sides.
	Before pipeline.Result
	After  pipeline.Result
}

// IsEmpty reports whether nothing differs, including the computed totals.
func (cs ChangeSet) IsEmpty() bool {
	return cs.Len() == 0 && len(cs.FranchiseDeltas) == 0 && len(cs.LegalEntityDeltas) == 0
}

// Len counts every listed change.
func (cs ChangeSet) Len() int {
	return cs.Units.Len() + cs.Services.Len() + cs.Assignments.Len() + cs.Cells.Len() +
		cs.Metrics.Len() + cs.Pools.Len() + cs.Activities.Len()
}

// Diff compares the baseline snapshot with the current state. Neither input
// is modified.
func Diff(before model.Snapshot, after *model.State, calc *pipeline.Waterfall) ChangeSet {
	b := before.State()
	cs := ChangeSet{
		BaselineID:          before.ID,
		BaselineFingerprint: before.Fingerprint(),
		Before:              calc.Compute(b),
		After:               calc.Compute(after),
	}

	cs.Units = diffUnits(b, after)
	cs.Services = diffServices(b, after)
	cs.Assignments = diffAssignments(b, after)
	cs.Cells = diffCells(b, after)
	cs.Metrics = diffMetrics(b, after)
	cs.Pools = diffPools(b, after)
	cs.Activities = diffActivities(b, after)
	cs.Moves = groupMoves(b, after, cs.Assignments)
	cs.Impacts = impacts(b, after, cs)
	cs.FranchiseDeltas = deltas(cs.Before.Franchises, cs.After.Franchises)
	cs.LegalEntityDeltas = deltas(cs.Before.LegalEntities, cs.After.LegalEntities)
	return cs
}

func diffUnits(b, a *model.State) Group[UnitChange] {
	var g Group[UnitChange]
	for _, id := range slices.Sorted(maps.Keys(union(b.Units, a.Units))) {
		before, inBefore := b.Units[id]
		after, inAfter := a.Units[id]
		c := UnitChange{UnitID: id, Before: before, After: after}
		switch {
		case !inBefore:
			g.Added = append(g.Added, c)
		case !inAfter:
			g.Removed = append(g.Removed, c)
		case !sameUnit(before, after):
			g.Modified = append(g.Modified, c)
		}
	}
	return g
}

func sameUnit(x, y model.CostUnit) bool {
	return x.Name == y.Name && x.LegalEntity == y.LegalEntity &&
		x.Staff.Equal(y.Staff) && x.NonStaff.Equal(y.NonStaff) && x.FTE.Equal(y.FTE)
}

func diffServices(b, a *model.State) Group[ServiceChange] {
	var g Group[ServiceChange]
	for _, id := range slices.Sorted(maps.Keys(union(b.Services, a.Services))) {
		before, inBefore := b.Services[id]
		after, inAfter := a.Services[id]
		c := ServiceChange{ServiceID: id, Before: before, After: after}
		switch {
		case !inBefore:
			g.Added = append(g.Added, c)
		case !inAfter:
			g.Removed = append(g.Removed, c)
		case before != after:
			g.Modified = append(g.Modified, c)
		}
	}
	return g
}

func diffAssignments(b, a *model.State) Group[AssignmentChange] {
	var g Group[AssignmentChange]
	for _, stage := range []model.Stage{model.StageService, model.StagePool} {
		before, after := b.Assignments(stage), a.Assignments(stage)
		units := slices.Sorted(maps.Keys(union(before, after)))
		for _, unit := range units {
			from, to := before[unit], after[unit]
			if from == to {
				continue
			}
			u, ok := a.Units[unit]
			if !ok {
				u = b.Units[unit]
			}
			c := AssignmentChange{
				Stage: stage, UnitID: unit, From: from, To: to,
				Staff: u.Staff, NonStaff: u.NonStaff, FTE: u.FTE,
			}
			switch {
			case from == "":
				g.Added = append(g.Added, c)
			case to == "":
				g.Removed = append(g.Removed, c)
			default:
				g.Modified = append(g.Modified, c)
			}
		}
	}
	return g
}

func diffCells(b, a *model.State) Group[CellChange] {
	type key struct {
		row    string
		column string
	}
	keys := make(map[key]struct{})
	for _, c := range b.Cells.Cells() {
		keys[key{c.Row, c.Column}] = struct{}{}
	}
	for _, c := range a.Cells.Cells() {
		keys[key{c.Row, c.Column}] = struct{}{}
	}
	ordered := slices.Collect(maps.Keys(keys))
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].row != ordered[j].row {
			return ordered[i].row < ordered[j].row
		}
		return columnIndex(ordered[i].column) < columnIndex(ordered[j].column)
	})

	var g Group[CellChange]
	for _, k := range ordered {
		before, after := b.Cells.Value(k.row, k.column), a.Cells.Value(k.row, k.column)
		if before.Equal(after) {
			continue
		}
		c := CellChange{ActivityID: k.row, Column: model.ExpenseKey(k.column), Before: before, After: after}
		switch {
		case before.IsZero():
			g.Added = append(g.Added, c)
		case after.IsZero():
			g.Removed = append(g.Removed, c)
		default:
			g.Modified = append(g.Modified, c)
		}
	}
	return g
}

func columnIndex(column string) int {
	return slices.Index(model.ExpenseColumns(), column)
}

// metricView is the JSON shape metrics are patched in.
type metricView struct {
	Name          string                       `json:"name"`
	Service       string                       `json:"service"`
	SourceLE      string                       `json:"source_le"`
	Franchises    map[string]string            `json:"franchises"`
	LegalEntities map[string]map[string]string `json:"legal_entities"`
}

func viewOf(m model.Metric) metricView {
	v := metricView{
		Name:          m.Name,
		Service:       m.ServiceID,
		SourceLE:      m.SourceLE,
		Franchises:    make(map[string]string, len(m.Franchises)),
		LegalEntities: make(map[string]map[string]string, len(m.LegalEntities)),
	}
	for f, pct := range m.Franchises {
		v.Franchises[string(f)] = pct.String()
	}
	for f, inner := range m.LegalEntities {
		les := make(map[string]string, len(inner))
		for le, pct := range inner {
			les[string(le)] = pct.String()
		}
		v.LegalEntities[string(f)] = les
	}
	return v
}

func diffMetrics(b, a *model.State) Group[MetricChange] {
	var g Group[MetricChange]
	ids := slices.Sorted(maps.Keys(union(b.Metrics, a.Metrics)))
	for _, id := range ids {
		before, inBefore := b.Metrics[id]
		after, inAfter := a.Metrics[id]
		switch {
		case !inBefore:
			g.Added = append(g.Added, MetricChange{MetricID: id, Name: after.Name,
				Fields: metricFields(model.Metric{}, after), Patch: metricPatch(metricView{}, viewOf(after))})
		case !inAfter:
			g.Removed = append(g.Removed, MetricChange{MetricID: id, Name: before.Name,
				Fields: metricFields(before, model.Metric{}), Patch: metricPatch(viewOf(before), metricView{})})
		default:
			fields := metricFields(before, after)
			if len(fields) == 0 {
				continue
			}
			g.Modified = append(g.Modified, MetricChange{MetricID: id, Name: after.Name,
				Fields: fields, Patch: metricPatch(viewOf(before), viewOf(after))})
		}
	}
	return g
}

func metricPatch(before, after metricView) jsondiff.Patch {
	// Views hold only strings and maps, so Compare cannot fail.
	patch, _ := jsondiff.Compare(before, after)
	return patch
}

// PatchOp is one JSON patch operation of a metric change, with its value
// rendered as compact JSON.
type PatchOp struct {
	MetricID string `json:"metric_id"`
	Op       string `json:"op"`
	Path     string `json:"path"`
	Value    string `json:"value,omitempty"`
}

// MetricPatches lists the patch operations of every metric change: added,
// then modified, then removed.
func (cs ChangeSet) MetricPatches() []PatchOp {
	var out []PatchOp
	for _, list := range [][]MetricChange{cs.Metrics.Added, cs.Metrics.Modified, cs.Metrics.Removed} {
		for _, c := range list {
			for _, op := range c.Patch {
				p := PatchOp{MetricID: c.MetricID, Op: op.Type, Path: op.Path}
				if op.Value != nil {
					if raw, err := json.Marshal(op.Value); err == nil {
						p.Value = string(raw)
					}
				}
				out = append(out, p)
			}
		}
	}
	return out
}

func metricFields(b, a model.Metric) []FieldChange {
	var out []FieldChange
	text := func(path, before, after string) {
		if before != after {
			out = append(out, FieldChange{Path: path, Before: before, After: after})
		}
	}
	pct := func(d decimal.Decimal, ok bool) string {
		if !ok {
			return ""
		}
		return d.StringFixed(2)
	}

	text("name", b.Name, a.Name)
	text("service", b.ServiceID, a.ServiceID)
	text("source_le", b.SourceLE, a.SourceLE)

	for _, f := range slices.Sorted(maps.Keys(union(b.Franchises, a.Franchises))) {
		bv, bok := b.Franchises[f]
		av, aok := a.Franchises[f]
		if bok == aok && bv.Equal(av) {
			continue
		}
		text("franchises/"+string(f), pct(bv, bok), pct(av, aok))
	}
	for _, f := range slices.Sorted(maps.Keys(union(b.LegalEntities, a.LegalEntities))) {
		bi, ai := b.LegalEntities[f], a.LegalEntities[f]
		for _, le := range slices.Sorted(maps.Keys(union(bi, ai))) {
			bv, bok := bi[le]
			av, aok := ai[le]
			if bok == aok && bv.Equal(av) {
				continue
			}
			text("legal_entities/"+string(f)+"/"+string(le), pct(bv, bok), pct(av, aok))
		}
	}
	return out
}

func diffPools(b, a *model.State) Group[PoolChange] {
	var g Group[PoolChange]
	for _, id := range slices.Sorted(maps.Keys(union(b.Pools, a.Pools))) {
		before, inBefore := b.Pools[id]
		after, inAfter := a.Pools[id]
		c := PoolChange{PoolID: id, Before: before, After: after}
		switch {
		case !inBefore:
			g.Added = append(g.Added, c)
		case !inAfter:
			g.Removed = append(g.Removed, c)
		case before != after:
			g.Modified = append(g.Modified, c)
		}
	}
	return g
}

func diffActivities(b, a *model.State) Group[ActivityChange] {
	var g Group[ActivityChange]
	for _, id := range slices.Sorted(maps.Keys(union(b.Activities, a.Activities))) {
		before, inBefore := b.Activities[id]
		after, inAfter := a.Activities[id]
		c := ActivityChange{ActivityID: id, Before: before, After: after}
		switch {
		case !inBefore:
			g.Added = append(g.Added, c)
		case !inAfter:
			g.Removed = append(g.Removed, c)
		default:
			if before.Name != after.Name {
				c.Fields = append(c.Fields, "name")
			}
			if before.PoolID != after.PoolID {
				c.Fields = append(c.Fields, "pool")
			}
			if before.MetricID != after.MetricID {
				c.Fields = append(c.Fields, "metric")
			}
			if !slices.Equal(slices.Sorted(slices.Values(before.Units)), slices.Sorted(slices.Values(after.Units))) {
				c.Fields = append(c.Fields, "units")
			}
			if len(c.Fields) > 0 {
				g.Modified = append(g.Modified, c)
			}
		}
	}
	return g
}

func union[K comparable, V any](a, b map[K]V) map[K]struct{} {
	out := make(map[K]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func deltas[K comparable](before, after map[K]decimal.Decimal) map[K]decimal.Decimal {
	out := make(map[K]decimal.Decimal)
	for k := range union(before, after) {
		if d := after[k].Sub(before[k]); !d.IsZero() {
			out[k] = d
		}
	}
	return out
}

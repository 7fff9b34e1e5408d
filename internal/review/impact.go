package review

import (
	"maps"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
)

// Unassigned labels the missing side of a move.
const Unassigned = "Unassigned"

// FranchiseImpact is the change in one franchise's share of an activity.
type FranchiseImpact struct {
	Franchise model.Franchise
	Before    decimal.Decimal
	After     decimal.Decimal
	Delta     decimal.Decimal
	// ChangePct is Delta relative to Before in percent, 0 when Before is 0.
	ChangePct decimal.Decimal
}

// ActivityImpact lists the franchise impacts of one affected activity.
type ActivityImpact struct {
	ActivityID string
	Name       string
	PoolID     string
	Franchises []FranchiseImpact
}

// Delta sums the franchise deltas.
func (a ActivityImpact) Delta() decimal.Decimal {
	total := decimal.Zero
	for _, f := range a.Franchises {
		total = total.Add(f.Delta)
	}
	return total
}

// Move aggregates reassignments sharing a (from, to) pair at one stage.
type Move struct {
	Stage    model.Stage
	FromID   string
	ToID     string
	From     string
	To       string
	Units    []string
	Staff    decimal.Decimal
	NonStaff decimal.Decimal
	FTE      decimal.Decimal
}

// Total is the moved cost.
func (m Move) Total() decimal.Decimal { return m.Staff.Add(m.NonStaff) }

// PoolImpact groups activity impacts under their cost pool.
type PoolImpact struct {
	PoolID     string
	Name       string
	Activities []ActivityImpact
	Franchises map[model.Franchise]decimal.Decimal
}

func changePct(before, delta decimal.Decimal) decimal.Decimal {
	if before.IsZero() {
		return decimal.Zero
	}
	return delta.Div(before).Mul(percent.Hundred).Round(2)
}

// impacts computes per-activity franchise impacts. An activity is affected
// when it was edited, its metric was edited, or its franchise amounts moved
// for any other reason such as a change in its units.
func impacts(b, a *model.State, cs ChangeSet) []ActivityImpact {
	touched := make(map[string]bool)
	for _, g := range [][]CellChange{cs.Cells.Added, cs.Cells.Removed, cs.Cells.Modified} {
		for _, c := range g {
			touched[c.ActivityID] = true
		}
	}
	for _, g := range [][]ActivityChange{cs.Activities.Added, cs.Activities.Removed, cs.Activities.Modified} {
		for _, c := range g {
			touched[c.ActivityID] = true
		}
	}
	metrics := make(map[string]bool)
	for _, g := range [][]MetricChange{cs.Metrics.Added, cs.Metrics.Removed, cs.Metrics.Modified} {
		for _, c := range g {
			metrics[c.MetricID] = true
		}
	}

	var out []ActivityImpact
	for _, id := range slices.Sorted(maps.Keys(union(b.Activities, a.Activities))) {
		before := cs.Before.ActivityFranchises(id)
		after := cs.After.ActivityFranchises(id)

		var rows []FranchiseImpact
		moved := false
		for _, f := range slices.Sorted(maps.Keys(union(before, after))) {
			delta := after[f].Sub(before[f])
			if !delta.IsZero() {
				moved = true
			}
			rows = append(rows, FranchiseImpact{
				Franchise: f,
				Before:    before[f],
				After:     after[f],
				Delta:     delta,
				ChangePct: changePct(before[f], delta),
			})
		}

		linked := metrics[b.Activities[id].MetricID] || metrics[a.Activities[id].MetricID]
		if !moved && !touched[id] && !linked {
			continue
		}

		act, ok := a.Activities[id]
		if !ok {
			act = b.Activities[id]
		}
		out = append(out, ActivityImpact{ActivityID: id, Name: act.Name, PoolID: act.PoolID, Franchises: rows})
	}
	return out
}

func groupName(s *model.State, stage model.Stage, id string) string {
	if id == "" {
		return Unassigned
	}
	if stage == model.StagePool {
		if p, ok := s.Pools[id]; ok {
			return p.Name
		}
	} else if svc, ok := s.Services[id]; ok {
		return svc.Name
	}
	return id
}

func resolveName(b, a *model.State, stage model.Stage, id string) string {
	if name := groupName(a, stage, id); name != id {
		return name
	}
	return groupName(b, stage, id)
}

// groupMoves folds assignment changes into (stage, from, to) buckets,
// largest moved cost first.
func groupMoves(b, a *model.State, g Group[AssignmentChange]) []Move {
	type key struct {
		stage    model.Stage
		from, to string
	}
	buckets := make(map[key]*Move)
	for _, list := range [][]AssignmentChange{g.Added, g.Removed, g.Modified} {
		for _, c := range list {
			k := key{c.Stage, c.From, c.To}
			m, ok := buckets[k]
			if !ok {
				m = &Move{
					Stage:  c.Stage,
					FromID: c.From,
					ToID:   c.To,
					From:   resolveName(b, a, c.Stage, c.From),
					To:     resolveName(b, a, c.Stage, c.To),
				}
				buckets[k] = m
			}
			m.Units = append(m.Units, c.UnitID)
			m.Staff = m.Staff.Add(c.Staff)
			m.NonStaff = m.NonStaff.Add(c.NonStaff)
			m.FTE = m.FTE.Add(c.FTE)
		}
	}

	out := make([]Move, 0, len(buckets))
	for _, m := range buckets {
		sort.Strings(m.Units)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage == model.StageService
		}
		if c := out[i].Total().Cmp(out[j].Total()); c != 0 {
			return c > 0
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// ImpactsByPool groups impacts under their pool, ordered by pool name.
func (cs ChangeSet) ImpactsByPool(s *model.State) []PoolImpact {
	byPool := make(map[string]*PoolImpact)
	for _, imp := range cs.Impacts {
		p, ok := byPool[imp.PoolID]
		if !ok {
			name := imp.PoolID
			if pool, ok := s.Pools[imp.PoolID]; ok {
				name = pool.Name
			}
			p = &PoolImpact{PoolID: imp.PoolID, Name: name, Franchises: make(map[model.Franchise]decimal.Decimal)}
			byPool[imp.PoolID] = p
		}
		p.Activities = append(p.Activities, imp)
		for _, f := range imp.Franchises {
			p.Franchises[f.Franchise] = p.Franchises[f.Franchise].Add(f.Delta)
		}
	}
	out := make([]PoolImpact, 0, len(byPool))
	for _, p := range byPool {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PoolID < out[j].PoolID
	})
	return out
}

// Significant keeps franchise rows whose |delta| exceeds threshold and drops
// activities left with none.
func (cs ChangeSet) Significant(threshold decimal.Decimal) []ActivityImpact {
	var out []ActivityImpact
	for _, imp := range cs.Impacts {
		var rows []FranchiseImpact
		for _, f := range imp.Franchises {
			if f.Delta.Abs().GreaterThan(threshold) {
				rows = append(rows, f)
			}
		}
		if len(rows) == 0 {
			continue
		}
		imp.Franchises = rows
		out = append(out, imp)
	}
	return out
}

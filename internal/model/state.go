package model

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/theirongolddev/costfall/internal/percent"
)

// State is the full editable allocation state of a scenario.
type State struct {
	Units      map[string]CostUnit
	Services   map[string]Service
	Pools      map[string]CostPool
	Activities map[string]Activity
	Metrics    map[string]Metric

	// ServiceOf and PoolOf map unit ID to group ID.
	ServiceOf map[string]string
	PoolOf    map[string]string

	// Cells holds activity rows against expense columns.
	Cells *percent.Matrix
}

// NewState returns an empty state with the expense columns set up.
func NewState() *State {
	return &State{
		Units:      make(map[string]CostUnit),
		Services:   make(map[string]Service),
		Pools:      make(map[string]CostPool),
		Activities: make(map[string]Activity),
		Metrics:    make(map[string]Metric),
		ServiceOf:  make(map[string]string),
		PoolOf:     make(map[string]string),
		Cells:      percent.NewMatrix(ExpenseColumns()...),
	}
}

// Assignments returns the unit to group map for a stage.
func (s *State) Assignments(stage Stage) map[string]string {
	if stage == StagePool {
		return s.PoolOf
	}
	return s.ServiceOf
}

// UnitIDs returns every unit ID sorted.
func (s *State) UnitIDs() []string { return slices.Sorted(maps.Keys(s.Units)) }

// PoolIDs returns every pool ID sorted.
func (s *State) PoolIDs() []string { return slices.Sorted(maps.Keys(s.Pools)) }

// ServiceIDs returns every service ID sorted.
func (s *State) ServiceIDs() []string { return slices.Sorted(maps.Keys(s.Services)) }

// ActivityIDs returns every activity ID sorted.
func (s *State) ActivityIDs() []string { return slices.Sorted(maps.Keys(s.Activities)) }

// MetricIDs returns every metric ID sorted.
func (s *State) MetricIDs() []string { return slices.Sorted(maps.Keys(s.Metrics)) }

// UnitsIn returns the sorted unit IDs assigned to group at stage.
func (s *State) UnitsIn(stage Stage, group string) []string {
	var out []string
	for unit, g := range s.Assignments(stage) {
		if g == group {
			out = append(out, unit)
		}
	}
	sort.Strings(out)
	return out
}

// ActivitiesIn returns the sorted activity IDs of a pool.
func (s *State) ActivitiesIn(poolID string) []string {
	var out []string
	for id, a := range s.Activities {
		if a.PoolID == poolID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// EffectiveUnits resolves the units an activity draws on: its selection
// restricted to units still in its pool, or the whole pool when nothing is
// selected.
func (s *State) EffectiveUnits(activityID string) []string {
	a, ok := s.Activities[activityID]
	if !ok {
		return nil
	}
	pooled := s.UnitsIn(StagePool, a.PoolID)
	if len(a.Units) == 0 {
		return pooled
	}
	var out []string
	for _, u := range pooled {
		if slices.Contains(a.Units, u) {
			out = append(out, u)
		}
	}
	return out
}

// Clone deep-copies the state. Matrix drafts are not carried over.
func (s *State) Clone() *State {
	c := &State{
		Units:      maps.Clone(s.Units),
		Services:   maps.Clone(s.Services),
		Pools:      maps.Clone(s.Pools),
		Activities: make(map[string]Activity, len(s.Activities)),
		Metrics:    make(map[string]Metric, len(s.Metrics)),
		ServiceOf:  maps.Clone(s.ServiceOf),
		PoolOf:     maps.Clone(s.PoolOf),
		Cells:      s.Cells.Clone(),
	}
	for id, a := range s.Activities {
		c.Activities[id] = a.Clone()
	}
	for id, m := range s.Metrics {
		c.Metrics[id] = m.Clone()
	}
	return c
}

// Canonical renders the state as sorted lines. Equal states render equally
// regardless of map iteration or row insertion order.
func (s *State) Canonical() []string {
	var lines []string
	for id, u := range s.Units {
		lines = append(lines, fmt.Sprintf("unit|%s|%s|%s|%s|%s|%s", id, u.Name, u.LegalEntity, u.Staff, u.NonStaff, u.FTE))
	}
	for id, svc := range s.Services {
		lines = append(lines, fmt.Sprintf("service|%s|%s|%s", id, svc.Name, svc.Tower))
	}
	for id, p := range s.Pools {
		lines = append(lines, fmt.Sprintf("pool|%s|%s|%s|%s", id, p.Name, p.ServiceID, p.SourceLE))
	}
	for id, a := range s.Activities {
		units := slices.Sorted(slices.Values(a.Units))
		lines = append(lines, fmt.Sprintf("activity|%s|%s|%s|%s|%v", id, a.Name, a.PoolID, a.MetricID, units))
	}
	for id, m := range s.Metrics {
		lines = append(lines, fmt.Sprintf("metric|%s|%s|%s|%s", id, m.Name, m.ServiceID, m.SourceLE))
		for f, v := range m.Franchises {
			lines = append(lines, fmt.Sprintf("franchise|%s|%s|%s", id, f, v))
		}
		for f, inner := range m.LegalEntities {
			for le, v := range inner {
				lines = append(lines, fmt.Sprintf("le|%s|%s|%s|%s", id, f, le, v))
			}
		}
	}
	for unit, g := range s.ServiceOf {
		lines = append(lines, fmt.Sprintf("assign|service|%s|%s", unit, g))
	}
	for unit, g := range s.PoolOf {
		lines = append(lines, fmt.Sprintf("assign|pool|%s|%s", unit, g))
	}
	for _, c := range s.Cells.Cells() {
		if c.Value.IsZero() {
			continue
		}
		lines = append(lines, fmt.Sprintf("cell|%s|%s|%s", c.Row, c.Column, c.Value))
	}
	sort.Strings(lines)
	return lines
}

// Fingerprint hashes the canonical form.
func (s *State) Fingerprint() uint64 {
	h, err := hashstructure.Hash(s.Canonical(), hashstructure.FormatV2, nil)
	if err != nil {
		// a []string always hashes
		panic(err)
	}
	return h
}

package review

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Lines renders the change listing as stable text, one change per line.
// It is what a reviewer acknowledges and what Fingerprint hashes.
func (cs ChangeSet) Lines() []string {
	lines := []string{fmt.Sprintf("baseline %s %d", cs.BaselineID, cs.BaselineFingerprint)}

	add := func(kind string, list []string) {
		for _, l := range list {
			lines = append(lines, kind+" "+l)
		}
	}

	unit := func(c UnitChange) string {
		return fmt.Sprintf("%s %q/%s/%s/%s/%s -> %q/%s/%s/%s/%s", c.UnitID,
			c.Before.Name, c.Before.LegalEntity, c.Before.Staff.StringFixed(2), c.Before.NonStaff.StringFixed(2), c.Before.FTE.StringFixed(2),
			c.After.Name, c.After.LegalEntity, c.After.Staff.StringFixed(2), c.After.NonStaff.StringFixed(2), c.After.FTE.StringFixed(2))
	}
	add("+unit", mapList(cs.Units.Added, unit))
	add("-unit", mapList(cs.Units.Removed, unit))
	add("~unit", mapList(cs.Units.Modified, unit))

	service := func(c ServiceChange) string {
		return fmt.Sprintf("%s %q/%s -> %q/%s", c.ServiceID, c.Before.Name, c.Before.Tower, c.After.Name, c.After.Tower)
	}
	add("+service", mapList(cs.Services.Added, service))
	add("-service", mapList(cs.Services.Removed, service))
	add("~service", mapList(cs.Services.Modified, service))

	assignment := func(c AssignmentChange) string {
		return fmt.Sprintf("%s %s %q -> %q", c.Stage, c.UnitID, c.From, c.To)
	}
	add("+assignment", mapList(cs.Assignments.Added, assignment))
	add("-assignment", mapList(cs.Assignments.Removed, assignment))
	add("~assignment", mapList(cs.Assignments.Modified, assignment))

	cell := func(c CellChange) string {
		return fmt.Sprintf("%s/%s %s -> %s", c.ActivityID, c.Column, c.Before.StringFixed(2), c.After.StringFixed(2))
	}
	add("+cell", mapList(cs.Cells.Added, cell))
	add("-cell", mapList(cs.Cells.Removed, cell))
	add("~cell", mapList(cs.Cells.Modified, cell))

	metric := func(c MetricChange) string {
		parts := make([]string, 0, len(c.Fields))
		for _, f := range c.Fields {
			parts = append(parts, fmt.Sprintf("%s=%q->%q", f.Path, f.Before, f.After))
		}
		return c.MetricID + " " + strings.Join(parts, ",")
	}
	add("+metric", mapList(cs.Metrics.Added, metric))
	add("-metric", mapList(cs.Metrics.Removed, metric))
	add("~metric", mapList(cs.Metrics.Modified, metric))

	pool := func(c PoolChange) string {
		return fmt.Sprintf("%s %q/%s/%s -> %q/%s/%s", c.PoolID,
			c.Before.Name, c.Before.ServiceID, c.Before.SourceLE,
			c.After.Name, c.After.ServiceID, c.After.SourceLE)
	}
	add("+pool", mapList(cs.Pools.Added, pool))
	add("-pool", mapList(cs.Pools.Removed, pool))
	add("~pool", mapList(cs.Pools.Modified, pool))

	activity := func(c ActivityChange) string {
		return fmt.Sprintf("%s %q/%s/%s/%v -> %q/%s/%s/%v", c.ActivityID,
			c.Before.Name, c.Before.PoolID, c.Before.MetricID, c.Before.Units,
			c.After.Name, c.After.PoolID, c.After.MetricID, c.After.Units)
	}
	add("+activity", mapList(cs.Activities.Added, activity))
	add("-activity", mapList(cs.Activities.Removed, activity))
	add("~activity", mapList(cs.Activities.Modified, activity))

	// Totals close the listing, so an acknowledgment also covers the money.
	for _, k := range slices.Sorted(maps.Keys(cs.FranchiseDeltas)) {
		lines = append(lines, fmt.Sprintf("=franchise %s %s", k, cs.FranchiseDeltas[k].StringFixed(2)))
	}
	for _, k := range slices.Sorted(maps.Keys(cs.LegalEntityDeltas)) {
		lines = append(lines, fmt.Sprintf("=le %s %s", k, cs.LegalEntityDeltas[k].StringFixed(2)))
	}
	return lines
}

// Fingerprint identifies this exact change listing. An acknowledgment is
// only valid for the fingerprint it was given for.
func (cs ChangeSet) Fingerprint() uint64 {
	h, err := hashstructure.Hash(cs.Lines(), hashstructure.FormatV2, nil)
	if err != nil {
		// a []string always hashes
		panic(err)
	}
	return h
}

// FingerprintHex is the fingerprint as printed to reviewers.
func (cs ChangeSet) FingerprintHex() string {
	return fmt.Sprintf("%016x", cs.Fingerprint())
}

func mapList[T any](in []T, fn func(T) string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

package model

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// Franchise is a business-line dimension.
type Franchise string

// LEOption is a legal entity a franchise share can be attributed to.
type LEOption string

// Stage identifies which assignment map a unit is placed through.
type Stage string

const (
	StageService Stage = "service"
	StagePool    Stage = "pool"
)

// CostUnit is an organizational unit and its spend for the scenario.
type CostUnit struct {
	ID          string
	Name        string
	LegalEntity string
	Staff       decimal.Decimal
	NonStaff    decimal.Decimal
	FTE         decimal.Decimal
}

// Total is staff plus non-staff cost.
func (u CostUnit) Total() decimal.Decimal { return u.Staff.Add(u.NonStaff) }

// Service is the first grouping level.
type Service struct {
	ID    string
	Name  string
	Tower string
}

// CostPool groups units of one service and one legal entity. SourceLE is
// fixed when the pool is created.
type CostPool struct {
	ID        string
	Name      string
	ServiceID string
	SourceLE  string
}

// Activity draws percentages from its pool's units. An empty Units
// selection means every unit currently in the pool.
type Activity struct {
	ID       string
	Name     string
	PoolID   string
	MetricID string
	Units    []string
}

// Clone copies the unit selection.
func (a Activity) Clone() Activity {
	a.Units = slices.Clone(a.Units)
	return a
}

// Metric distributes an activity's cost over franchises and then, per
// franchise, over legal entities.
type Metric struct {
	ID            string
	Name          string
	ServiceID     string
	SourceLE      string
	Franchises    map[Franchise]decimal.Decimal
	LegalEntities map[Franchise]map[LEOption]decimal.Decimal
}

// FranchiseShare returns the franchise percentage, 0 when absent.
func (m Metric) FranchiseShare(f Franchise) decimal.Decimal { return m.Franchises[f] }

// LEShare returns the LE percentage within a franchise, 0 when absent.
func (m Metric) LEShare(f Franchise, le LEOption) decimal.Decimal {
	return m.LegalEntities[f][le]
}

// Clone deep-copies the distributions.
func (m Metric) Clone() Metric {
	m.Franchises = maps.Clone(m.Franchises)
	les := make(map[Franchise]map[LEOption]decimal.Decimal, len(m.LegalEntities))
	for f, inner := range m.LegalEntities {
		les[f] = maps.Clone(inner)
	}
	m.LegalEntities = les
	return m
}

// SortedFranchises lists franchise keys present in the metric.
func (m Metric) SortedFranchises() []Franchise {
	return slices.Sorted(maps.Keys(m.Franchises))
}

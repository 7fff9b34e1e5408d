// Package source reads scenario files and turns their records into a
// validated allocation state.
package source

// Scenario is the record set of one or more scenario files.
type Scenario struct {
	Units       []UnitRecord       `toml:"unit,omitempty"`
	Services    []ServiceRecord    `toml:"service,omitempty"`
	Pools       []PoolRecord       `toml:"pool,omitempty"`
	Activities  []ActivityRecord   `toml:"activity,omitempty"`
	Assignments []AssignmentRecord `toml:"assignment,omitempty"`
	Cells       []CellRecord       `toml:"cell,omitempty"`
	Metrics     []MetricRecord     `toml:"metric,omitempty"`
}

// Merge appends other's records.
func (s *Scenario) Merge(other Scenario) {
	s.Units = append(s.Units, other.Units...)
	s.Services = append(s.Services, other.Services...)
	s.Pools = append(s.Pools, other.Pools...)
	s.Activities = append(s.Activities, other.Activities...)
	s.Assignments = append(s.Assignments, other.Assignments...)
	s.Cells = append(s.Cells, other.Cells...)
	s.Metrics = append(s.Metrics, other.Metrics...)
}

// Records counts every record in the scenario.
func (s Scenario) Records() int {
	return len(s.Units) + len(s.Services) + len(s.Pools) + len(s.Activities) +
		len(s.Assignments) + len(s.Cells) + len(s.Metrics)
}

// UnitRecord is a cost unit as supplied by finance.
type UnitRecord struct {
	ID          string  `toml:"id" validate:"required"`
	Name        string  `toml:"name"`
	LegalEntity string  `toml:"legal_entity" validate:"required"`
	Staff       float64 `toml:"staff" validate:"gte=0"`
	NonStaff    float64 `toml:"non_staff" validate:"gte=0"`
	FTE         float64 `toml:"fte" validate:"gte=0"`
}

// ServiceRecord declares a service.
type ServiceRecord struct {
	ID    string `toml:"id" validate:"required"`
	Name  string `toml:"name" validate:"required"`
	Tower string `toml:"tower"`
}

// PoolRecord declares a cost pool.
type PoolRecord struct {
	ID       string `toml:"id" validate:"required"`
	Name     string `toml:"name" validate:"required"`
	Service  string `toml:"service"`
	SourceLE string `toml:"source_le" validate:"required"`
}

// ActivityRecord declares an activity inside a pool.
type ActivityRecord struct {
	ID     string   `toml:"id" validate:"required"`
	Name   string   `toml:"name" validate:"required"`
	Pool   string   `toml:"pool" validate:"required"`
	Metric string   `toml:"metric"`
	Units  []string `toml:"units" validate:"dive,required"`
}

// AssignmentRecord places a unit into a service or a pool.
type AssignmentRecord struct {
	Unit  string `toml:"unit" validate:"required"`
	Group string `toml:"group" validate:"required"`
	Stage string `toml:"stage" validate:"required,oneof=service pool"`
}

// CellRecord is one committed allocation percentage.
type CellRecord struct {
	Row     string  `toml:"row" validate:"required"`
	Column  string  `toml:"column" validate:"required"`
	Percent float64 `toml:"percent" validate:"gte=0,lte=100"`
}

// MetricRecord carries a franchise distribution and, per franchise and LE
// option, the allocation keyed by metric ID.
type MetricRecord struct {
	ID            string                                   `toml:"id" validate:"required"`
	Name          string                                   `toml:"name"`
	Service       string                                   `toml:"service"`
	SourceLE      string                                   `toml:"source_le"`
	Franchises    map[string]float64                       `toml:"franchises"`
	LEAllocations map[string]map[string]map[string]float64 `toml:"le_allocations"`
}

// DiscoveredFile is a scenario file found on disk.
type DiscoveredFile struct {
	Path string
	Name string // path relative to the scenario directory
}

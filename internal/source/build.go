package source

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
)

var validate = validator.New()

// Catalog enumerates the franchise and LE option keys metrics may use.
// An empty list accepts any key.
type Catalog struct {
	Franchises    []string
	LegalEntities []string
}

func (c Catalog) allowsFranchise(f string) bool {
	return len(c.Franchises) == 0 || slices.Contains(c.Franchises, f)
}

func (c Catalog) allowsLE(le string) bool {
	return len(c.LegalEntities) == 0 || slices.Contains(c.LegalEntities, le)
}

// ValidationError collects every problem found while building a state.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid scenario: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid scenario (%d problems):\n  %s", len(e.Problems), strings.Join(e.Problems, "\n  "))
}

type builder struct {
	cat      Catalog
	state    *model.State
	problems []string
}

func (b *builder) fail(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

func (b *builder) check(kind string, idx int, rec any) bool {
	err := validate.Struct(rec)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		b.fail("%s #%d: %v", kind, idx+1, err)
		return false
	}
	for _, fe := range verrs {
		if fe.Param() != "" {
			b.fail("%s #%d: %s failed %s=%s", kind, idx+1, fe.Field(), fe.Tag(), fe.Param())
		} else {
			b.fail("%s #%d: %s failed %s", kind, idx+1, fe.Field(), fe.Tag())
		}
	}
	return false
}

// Build validates sc and assembles a state. Every problem is reported at
// once through a *ValidationError.
func Build(sc Scenario, cat Catalog) (*model.State, error) {
	b := &builder{cat: cat, state: model.NewState()}
	s := b.state

	for i, r := range sc.Units {
		if !b.check("unit", i, r) {
			continue
		}
		if _, dup := s.Units[r.ID]; dup {
			b.fail("unit %s declared twice", r.ID)
			continue
		}
		s.Units[r.ID] = model.CostUnit{
			ID:          r.ID,
			Name:        r.Name,
			LegalEntity: r.LegalEntity,
			Staff:       decimal.NewFromFloat(r.Staff),
			NonStaff:    decimal.NewFromFloat(r.NonStaff),
			FTE:         decimal.NewFromFloat(r.FTE),
		}
	}

	for i, r := range sc.Services {
		if !b.check("service", i, r) {
			continue
		}
		if _, dup := s.Services[r.ID]; dup {
			b.fail("service %s declared twice", r.ID)
			continue
		}
		s.Services[r.ID] = model.Service{ID: r.ID, Name: r.Name, Tower: r.Tower}
	}

	for i, r := range sc.Pools {
		if !b.check("pool", i, r) {
			continue
		}
		if _, dup := s.Pools[r.ID]; dup {
			b.fail("pool %s declared twice", r.ID)
			continue
		}
		if r.Service != "" {
			if _, ok := s.Services[r.Service]; !ok {
				b.fail("pool %s: unknown service %s", r.ID, r.Service)
			}
		}
		s.Pools[r.ID] = model.CostPool{ID: r.ID, Name: r.Name, ServiceID: r.Service, SourceLE: r.SourceLE}
	}

	for i, r := range sc.Metrics {
		if !b.check("metric", i, r) {
			continue
		}
		if _, dup := s.Metrics[r.ID]; dup {
			b.fail("metric %s declared twice", r.ID)
			continue
		}
		s.Metrics[r.ID] = b.metric(r)
	}

	for i, r := range sc.Activities {
		if !b.check("activity", i, r) {
			continue
		}
		if _, dup := s.Activities[r.ID]; dup {
			b.fail("activity %s declared twice", r.ID)
			continue
		}
		if _, ok := s.Pools[r.Pool]; !ok {
			b.fail("activity %s: unknown pool %s", r.ID, r.Pool)
			continue
		}
		for _, u := range r.Units {
			if _, ok := s.Units[u]; !ok {
				b.fail("activity %s: unknown unit %s", r.ID, u)
			}
		}
		// A dangling metric is kept; the waterfall excludes it and says so.
		s.Activities[r.ID] = model.Activity{
			ID:       r.ID,
			Name:     r.Name,
			PoolID:   r.Pool,
			MetricID: r.Metric,
			Units:    slices.Clone(r.Units),
		}
		s.Cells.AddRow(r.ID)
	}

	for i, r := range sc.Assignments {
		if !b.check("assignment", i, r) {
			continue
		}
		b.assign(r)
	}

	for i, r := range sc.Cells {
		if !b.check("cell", i, r) {
			continue
		}
		key, ok := model.ParseExpense(r.Column)
		if !ok {
			b.fail("cell %s/%s: unknown expense column", r.Row, r.Column)
			continue
		}
		if _, ok := s.Activities[r.Row]; !ok {
			b.fail("cell %s/%s: unknown activity", r.Row, r.Column)
			continue
		}
		s.Cells.Set(r.Row, string(key), decimal.NewFromFloat(r.Percent))
	}

	if len(b.problems) > 0 {
		return nil, &ValidationError{Problems: b.problems}
	}
	return s, nil
}

func (b *builder) metric(r MetricRecord) model.Metric {
	m := model.Metric{
		ID:            r.ID,
		Name:          r.Name,
		ServiceID:     r.Service,
		SourceLE:      r.SourceLE,
		Franchises:    make(map[model.Franchise]decimal.Decimal, len(r.Franchises)),
		LegalEntities: make(map[model.Franchise]map[model.LEOption]decimal.Decimal, len(r.LEAllocations)),
	}
	for f, pct := range r.Franchises {
		if !b.cat.allowsFranchise(f) {
			b.fail("metric %s: unknown franchise %q", r.ID, f)
			continue
		}
		if pct < 0 || pct > 100 {
			b.fail("metric %s: franchise %s percentage %v out of range", r.ID, f, pct)
			continue
		}
		m.Franchises[model.Franchise(f)] = decimal.NewFromFloat(pct)
	}
	for f, options := range r.LEAllocations {
		if !b.cat.allowsFranchise(f) {
			b.fail("metric %s: unknown franchise %q in le_allocations", r.ID, f)
			continue
		}
		inner := make(map[model.LEOption]decimal.Decimal, len(options))
		for le, byMetric := range options {
			if !b.cat.allowsLE(le) {
				b.fail("metric %s: unknown LE option %q", r.ID, le)
				continue
			}
			pct, ok := byMetric[r.ID]
			if !ok {
				continue
			}
			if pct < 0 || pct > 100 {
				b.fail("metric %s: LE %s/%s percentage %v out of range", r.ID, f, le, pct)
				continue
			}
			inner[model.LEOption(le)] = decimal.NewFromFloat(pct)
		}
		m.LegalEntities[model.Franchise(f)] = inner
	}
	return m
}

func (b *builder) assign(r AssignmentRecord) {
	s := b.state
	u, ok := s.Units[r.Unit]
	if !ok {
		b.fail("assignment %s → %s: unknown unit", r.Unit, r.Group)
		return
	}
	switch model.Stage(r.Stage) {
	case model.StageService:
		if _, ok := s.Services[r.Group]; !ok {
			b.fail("assignment %s → %s: unknown service", r.Unit, r.Group)
			return
		}
		if prev, dup := s.ServiceOf[r.Unit]; dup && prev != r.Group {
			b.fail("unit %s assigned to services %s and %s", r.Unit, prev, r.Group)
			return
		}
		s.ServiceOf[r.Unit] = r.Group
	case model.StagePool:
		p, ok := s.Pools[r.Group]
		if !ok {
			b.fail("assignment %s → %s: unknown pool", r.Unit, r.Group)
			return
		}
		if p.SourceLE != u.LegalEntity {
			b.fail("assignment %s → %s: unit LE %s differs from pool LE %s", r.Unit, r.Group, u.LegalEntity, p.SourceLE)
			return
		}
		if prev, dup := s.PoolOf[r.Unit]; dup && prev != r.Group {
			b.fail("unit %s assigned to pools %s and %s", r.Unit, prev, r.Group)
			return
		}
		s.PoolOf[r.Unit] = r.Group
	}
}

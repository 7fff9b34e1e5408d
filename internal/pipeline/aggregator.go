// Package pipeline loads scenarios and runs the allocation waterfall:
// units → services → pools → activities → franchises → legal entities.
package pipeline

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
)

// Totals is the cost attributed to a grouping entity by direct membership.
type Totals struct {
	Units    int
	Staff    decimal.Decimal
	NonStaff decimal.Decimal
	FTE      decimal.Decimal
}

// Total is staff plus non-staff.
func (t Totals) Total() decimal.Decimal { return t.Staff.Add(t.NonStaff) }

func (t *Totals) add(u model.CostUnit) {
	t.Units++
	t.Staff = t.Staff.Add(u.Staff)
	t.NonStaff = t.NonStaff.Add(u.NonStaff)
	t.FTE = t.FTE.Add(u.FTE)
}

// ActivityTotal is the monetary value an activity draws from its units.
type ActivityTotal struct {
	PoolID    string
	ByExpense map[model.ExpenseKey]decimal.Decimal
	Total     decimal.Decimal
}

// Exclusion records an activity left out of franchise attribution.
type Exclusion struct {
	ActivityID string
	Reason     string
}

// Result holds every waterfall level. Treat it as read-only: memoized
// results are shared between callers.
type Result struct {
	Services      map[string]Totals
	Towers        map[string]Totals
	Pools         map[string]Totals
	Activities    map[string]ActivityTotal
	Franchises    map[model.Franchise]decimal.Decimal
	LegalEntities map[model.LEOption]decimal.Decimal

	// FranchiseFlows and LEFlows break each total down by activity ID.
	FranchiseFlows map[model.Franchise]map[string]decimal.Decimal
	LEFlows        map[model.LEOption]map[string]decimal.Decimal

	Excluded []Exclusion
}

// ActivityFranchises returns what one activity contributes to each franchise.
func (r Result) ActivityFranchises(activityID string) map[model.Franchise]decimal.Decimal {
	out := make(map[model.Franchise]decimal.Decimal)
	for f, flows := range r.FranchiseFlows {
		if v, ok := flows[activityID]; ok {
			out[f] = v
		}
	}
	return out
}

// Waterfall computes allocation results. It holds no state besides its
// configuration, so one instance can serve any number of states.
type Waterfall struct {
	log     zerolog.Logger
	weights Weights
}

// NewWaterfall creates a calculator. Nil weights use DefaultNonStaffWeights.
func NewWaterfall(log zerolog.Logger, weights Weights) *Waterfall {
	if len(weights) == 0 {
		weights = DefaultNonStaffWeights
	}
	return &Waterfall{
		log:     log.With().Str("component", "waterfall").Logger(),
		weights: weights,
	}
}

// Weights returns the non-staff split in use.
func (w *Waterfall) Weights() Weights { return w.weights }

// Compute runs every stage over s. Missing references never fail the run:
// a missing unit counts as zero and an activity with no usable metric is
// skipped for franchise and LE attribution.
func (w *Waterfall) Compute(s *model.State) Result {
	res := Result{
		Services:       make(map[string]Totals),
		Towers:         make(map[string]Totals),
		Pools:          make(map[string]Totals),
		Activities:     make(map[string]ActivityTotal),
		Franchises:     make(map[model.Franchise]decimal.Decimal),
		LegalEntities:  make(map[model.LEOption]decimal.Decimal),
		FranchiseFlows: make(map[model.Franchise]map[string]decimal.Decimal),
		LEFlows:        make(map[model.LEOption]map[string]decimal.Decimal),
	}

	w.groupTotals(s, &res)

	splits := newSplitCache(w.weights)
	for _, id := range s.ActivityIDs() {
		res.Activities[id] = w.activityTotal(s, id, splits)
	}

	for _, id := range s.ActivityIDs() {
		w.attribute(s, id, res.Activities[id].Total, &res)
	}

	sort.Slice(res.Excluded, func(i, j int) bool {
		return res.Excluded[i].ActivityID < res.Excluded[j].ActivityID
	})
	return res
}

func (w *Waterfall) groupTotals(s *model.State, res *Result) {
	services := make(map[string]*Totals)
	towers := make(map[string]*Totals)
	pools := make(map[string]*Totals)

	for unitID, svcID := range s.ServiceOf {
		if svcID == "" {
			continue
		}
		u, ok := s.Units[unitID]
		if !ok {
			continue
		}
		accumulate(services, svcID, u)
		if svc, ok := s.Services[svcID]; ok && svc.Tower != "" {
			accumulate(towers, svc.Tower, u)
		}
	}
	for unitID, poolID := range s.PoolOf {
		if poolID == "" {
			continue
		}
		if u, ok := s.Units[unitID]; ok {
			accumulate(pools, poolID, u)
		}
	}

	for k, t := range services {
		res.Services[k] = *t
	}
	for k, t := range towers {
		res.Towers[k] = *t
	}
	for k, t := range pools {
		res.Pools[k] = *t
	}
}

func accumulate(into map[string]*Totals, key string, u model.CostUnit) {
	t, ok := into[key]
	if !ok {
		t = &Totals{}
		into[key] = t
	}
	t.add(u)
}

func (w *Waterfall) activityTotal(s *model.State, id string, splits *splitCache) ActivityTotal {
	a := s.Activities[id]
	at := ActivityTotal{
		PoolID:    a.PoolID,
		ByExpense: make(map[model.ExpenseKey]decimal.Decimal),
		Total:     decimal.Zero,
	}
	if _, ok := s.Pools[a.PoolID]; !ok {
		w.log.Warn().Str("activity", id).Str("pool", a.PoolID).Msg("activity references unknown pool")
	}

	units := s.EffectiveUnits(id)
	for _, key := range model.Expenses() {
		base := decimal.Zero
		for _, unitID := range units {
			u, ok := s.Units[unitID]
			if !ok {
				continue
			}
			base = base.Add(splits.base(u, key))
		}
		pct := w.clampPercent(id, string(key), s.Cells.Value(id, string(key)))
		amount := percent.Of(base, pct)
		at.ByExpense[key] = amount
		at.Total = at.Total.Add(amount)
	}
	return at
}

func (w *Waterfall) attribute(s *model.State, id string, total decimal.Decimal, res *Result) {
	a := s.Activities[id]
	if a.MetricID == "" {
		res.Excluded = append(res.Excluded, Exclusion{ActivityID: id, Reason: "no metric linked"})
		return
	}
	m, ok := s.Metrics[a.MetricID]
	if !ok {
		w.log.Warn().Str("activity", id).Str("metric", a.MetricID).Msg("activity references unknown metric")
		res.Excluded = append(res.Excluded, Exclusion{ActivityID: id, Reason: "metric " + a.MetricID + " not found"})
		return
	}

	for f, share := range m.Franchises {
		amount := percent.Of(total, w.clampPercent(id, string(f), share))
		res.Franchises[f] = res.Franchises[f].Add(amount)
		addFlow(res.FranchiseFlows, f, id, amount)

		for le, leShare := range m.LegalEntities[f] {
			leAmount := percent.Of(amount, w.clampPercent(id, string(le), leShare))
			res.LegalEntities[le] = res.LegalEntities[le].Add(leAmount)
			addFlow(res.LEFlows, le, id, leAmount)
		}
	}
}

func addFlow[K comparable](flows map[K]map[string]decimal.Decimal, key K, activityID string, amount decimal.Decimal) {
	inner, ok := flows[key]
	if !ok {
		inner = make(map[string]decimal.Decimal)
		flows[key] = inner
	}
	inner[activityID] = inner[activityID].Add(amount)
}

func (w *Waterfall) clampPercent(row, column string, v decimal.Decimal) decimal.Decimal {
	c := percent.Clamp(v)
	if !c.Equal(v) {
		w.log.Debug().Str("row", row).Str("column", column).Str("value", v.String()).Msg("clamped out-of-range percentage")
	}
	return c
}

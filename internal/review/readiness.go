package review

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
	"github.com/theirongolddev/costfall/internal/pipeline"
)

// Severity ranks readiness issues. Errors block commit.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one readiness finding.
type Issue struct {
	Severity Severity
	Code     string
	Subject  string
	Message  string
}

// Readiness inspects a state for problems that make it unfit to commit or
// that silently reduce what reaches franchises.
func Readiness(s *model.State) []Issue {
	var issues []Issue
	report := func(sev Severity, code, subject, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	for _, poolID := range s.PoolIDs() {
		pool := s.Pools[poolID]
		if len(s.UnitsIn(model.StagePool, poolID)) == 0 {
			report(SeverityError, "empty-pool", poolID, "pool %q has no units", pool.Name)
		}
		rows := s.ActivitiesIn(poolID)
		if len(rows) == 0 {
			continue
		}
		for _, col := range model.ExpenseColumns() {
			if total := s.Cells.ColumnTotal(col, rows...); !total.Equal(percent.Hundred) {
				report(SeverityError, "column-total", poolID, "pool %q %s column totals %s%%, must be exactly 100%%",
					pool.Name, col, total.StringFixed(2))
			}
		}
	}

	for _, unitID := range s.UnitIDs() {
		if s.ServiceOf[unitID] != "" && s.PoolOf[unitID] == "" {
			report(SeverityError, "unpooled-unit", unitID, "unit %s has a service but no pool", unitID)
		}
	}

	for _, id := range s.MetricIDs() {
		m := s.Metrics[id]
		shares := make([]decimal.Decimal, 0, len(m.Franchises))
		for _, v := range m.Franchises {
			shares = append(shares, v)
		}
		if total := percent.Sum(shares...); !total.Equal(percent.Hundred) {
			report(SeverityError, "metric-franchise-total", id, "metric %s franchises total %s%%, must be 100%%", id, total.StringFixed(2))
		}
		for _, f := range m.SortedFranchises() {
			if !m.Franchises[f].IsPositive() {
				continue
			}
			var les []decimal.Decimal
			for _, v := range m.LegalEntities[f] {
				les = append(les, v)
			}
			if total := percent.Sum(les...); !total.Equal(percent.Hundred) {
				report(SeverityError, "metric-le-total", id, "metric %s %s LE allocation totals %s%%, must be 100%%", id, f, total.StringFixed(2))
			}
		}
	}

	for _, id := range s.ActivityIDs() {
		a := s.Activities[id]
		if _, ok := s.Pools[a.PoolID]; !ok {
			report(SeverityWarn, "dangling-pool", id, "activity %q references missing pool %s", a.Name, a.PoolID)
		}
		switch {
		case a.MetricID == "":
			report(SeverityError, "unlinked-activity", id, "activity %q has no metric and reaches no franchise", a.Name)
		case !hasMetric(s, a.MetricID):
			report(SeverityWarn, "dangling-metric", id, "activity %q references missing metric %s", a.Name, a.MetricID)
		}
	}

	for _, o := range pipeline.Overlaps(s) {
		report(SeverityWarn, "unit-overdrawn", o.UnitID, "unit %s %s is drawn %s%% by %v", o.UnitID, o.Column, o.Total.StringFixed(2), o.Rows)
	}

	return issues
}

func hasMetric(s *model.State, id string) bool {
	_, ok := s.Metrics[id]
	return ok
}

// Blocking returns the issues that prevent a commit.
func Blocking(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

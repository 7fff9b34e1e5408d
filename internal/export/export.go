// Package export writes waterfall results and pending changes to an xlsx
// workbook.
package export

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/xuri/excelize/v2"
)

// Sheet names in workbook order.
const (
	SheetServices      = "Services"
	SheetPools         = "Pools"
	SheetActivities    = "Activities"
	SheetFranchises    = "Franchises"
	SheetLegalEntities = "LegalEntities"
	SheetChanges       = "Changes"
	SheetMetricChanges = "MetricChanges"
)

// Input is what gets exported. Changes is optional.
type Input struct {
	State   *model.State
	Result  pipeline.Result
	Changes *review.ChangeSet
}

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// Write renders in as a workbook to w.
func Write(w io.Writer, in Input) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "header style")
	}

	sheets := []sheet{
		servicesSheet(in),
		poolsSheet(in),
		activitiesSheet(in),
		franchisesSheet(in),
		legalEntitiesSheet(in),
	}
	if in.Changes != nil {
		sheets = append(sheets, changesSheet(in), metricChangesSheet(in))
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return errors.Wrapf(err, "sheet %s", sh.name)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return errors.Wrapf(err, "sheet %s", sh.name)
		}
		if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
			return errors.Wrapf(err, "sheet %s header", sh.name)
		}
		last, _ := excelize.CoordinatesToCellName(len(sh.header), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, bold); err != nil {
			return errors.Wrapf(err, "sheet %s header style", sh.name)
		}
		for r, row := range sh.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return errors.Wrapf(err, "sheet %s row %d", sh.name, r+2)
			}
		}
		if err := f.SetPanes(sh.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return errors.Wrapf(err, "sheet %s panes", sh.name)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

// num keeps cells numeric; two decimals is all a currency column needs.
func num(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func servicesSheet(in Input) sheet {
	sh := sheet{name: SheetServices, header: []any{"Service", "Name", "Tower", "Units", "FTE", "Staff", "Non-staff", "Total"}}
	for _, t := range pipeline.SortedTotals(in.Result.Services) {
		svc := in.State.Services[t.ID]
		sh.rows = append(sh.rows, []any{t.ID, svc.Name, svc.Tower, t.Units, num(t.FTE), num(t.Staff), num(t.NonStaff), num(t.Total())})
	}
	return sh
}

func poolsSheet(in Input) sheet {
	sh := sheet{name: SheetPools, header: []any{"Pool", "Name", "Service", "Source LE", "Units", "FTE", "Staff", "Non-staff", "Total"}}
	for _, t := range pipeline.SortedTotals(in.Result.Pools) {
		p := in.State.Pools[t.ID]
		sh.rows = append(sh.rows, []any{t.ID, p.Name, p.ServiceID, p.SourceLE, t.Units, num(t.FTE), num(t.Staff), num(t.NonStaff), num(t.Total())})
	}
	return sh
}

func activitiesSheet(in Input) sheet {
	header := []any{"Activity", "Name", "Pool", "Metric"}
	for _, k := range model.Expenses() {
		header = append(header, string(k))
	}
	header = append(header, "Total", "Excluded")
	sh := sheet{name: SheetActivities, header: header}

	excluded := make(map[string]string, len(in.Result.Excluded))
	for _, e := range in.Result.Excluded {
		excluded[e.ActivityID] = e.Reason
	}
	for _, id := range in.State.ActivityIDs() {
		a := in.State.Activities[id]
		t := in.Result.Activities[id]
		row := []any{id, a.Name, a.PoolID, a.MetricID}
		for _, k := range model.Expenses() {
			row = append(row, num(t.ByExpense[k]))
		}
		row = append(row, num(t.Total), excluded[id])
		sh.rows = append(sh.rows, row)
	}
	return sh
}

func franchisesSheet(in Input) sheet {
	sh := sheet{name: SheetFranchises, header: []any{"Franchise", "Amount"}}
	for _, a := range pipeline.SortedAmounts(in.Result.Franchises) {
		sh.rows = append(sh.rows, []any{string(a.Key), num(a.Amount)})
	}
	return sh
}

func legalEntitiesSheet(in Input) sheet {
	sh := sheet{name: SheetLegalEntities, header: []any{"Legal entity", "Amount"}}
	for _, a := range pipeline.SortedAmounts(in.Result.LegalEntities) {
		sh.rows = append(sh.rows, []any{string(a.Key), num(a.Amount)})
	}
	return sh
}

// changesSheet lists one row per activity and franchise impact.
func changesSheet(in Input) sheet {
	sh := sheet{name: SheetChanges, header: []any{"Pool", "Activity", "Name", "Franchise", "Before", "After", "Delta", "Change %"}}
	for _, pool := range in.Changes.ImpactsByPool(in.State) {
		for _, imp := range pool.Activities {
			for _, f := range imp.Franchises {
				sh.rows = append(sh.rows, []any{
					pool.Name, imp.ActivityID, imp.Name, string(f.Franchise),
					num(f.Before), num(f.After), num(f.Delta), num(f.ChangePct),
				})
			}
		}
	}
	return sh
}

// metricChangesSheet lists the JSON patch operations of every metric edit.
func metricChangesSheet(in Input) sheet {
	sh := sheet{name: SheetMetricChanges, header: []any{"Metric", "Name", "Op", "Path", "Value"}}
	for _, op := range in.Changes.MetricPatches() {
		name := ""
		if m, ok := in.State.Metrics[op.MetricID]; ok {
			name = m.Name
		}
		sh.rows = append(sh.rows, []any{op.MetricID, name, op.Op, op.Path, op.Value})
	}
	return sh
}

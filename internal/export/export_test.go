package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func state() *model.State {
	s := model.NewState()
	s.Units["U1"] = model.CostUnit{ID: "U1", LegalEntity: "UK", Staff: d("1000"), NonStaff: d("100")}
	s.Services["S1"] = model.Service{ID: "S1", Name: "Ops", Tower: "Tech"}
	s.Pools["P1"] = model.CostPool{ID: "P1", Name: "Ops - UK", ServiceID: "S1", SourceLE: "UK"}
	s.ServiceOf["U1"] = "S1"
	s.PoolOf["U1"] = "P1"
	s.Activities["A1"] = model.Activity{ID: "A1", Name: "Run", PoolID: "P1", MetricID: "M1"}
	s.Activities["A2"] = model.Activity{ID: "A2", Name: "Orphan", PoolID: "P1"}
	s.Cells.Set("A1", "Staff", d("100"))
	s.Metrics["M1"] = model.Metric{
		ID:            "M1",
		Franchises:    map[model.Franchise]decimal.Decimal{"Franchise A": d("100")},
		LegalEntities: map[model.Franchise]map[model.LEOption]decimal.Decimal{"Franchise A": {"a": d("100")}},
	}
	return s
}

func open(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteWorkbook(t *testing.T) {
	s := state()
	res := pipeline.NewWaterfall(zerolog.Nop(), nil).Compute(s)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Input{State: s, Result: res}))

	f := open(t, &buf)
	assert.Equal(t, []string{SheetServices, SheetPools, SheetActivities, SheetFranchises, SheetLegalEntities}, f.GetSheetList())

	rows, err := f.GetRows(SheetServices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"S1", "Ops", "Tech", "1", "0", "1000", "100", "1100"}, rows[1])

	rows, err = f.GetRows(SheetActivities)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A1", rows[1][0])
	assert.Equal(t, "1000", rows[1][4])
	assert.Equal(t, "A2", rows[2][0])
	assert.Equal(t, "no metric linked", rows[2][len(rows[2])-1])

	rows, err = f.GetRows(SheetFranchises)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Franchise", "Amount"}, {"Franchise A", "1000"}}, rows)
}

func TestWriteIncludesChanges(t *testing.T) {
	calc := pipeline.NewWaterfall(zerolog.Nop(), nil)
	base := model.NewSnapshot(state(), "", time.Now())
	after := base.State()
	after.Cells.Set("A1", "Staff", d("50"))
	cs := review.Diff(base, after, calc)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Input{State: after, Result: cs.After, Changes: &cs}))

	f := open(t, &buf)
	rows, err := f.GetRows(SheetChanges)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Ops - UK", "A1", "Run", "Franchise A", "1000", "500", "-500", "-50"}, rows[1])
}

func TestWriteIncludesMetricPatches(t *testing.T) {
	calc := pipeline.NewWaterfall(zerolog.Nop(), nil)
	base := model.NewSnapshot(state(), "", time.Now())
	after := base.State()
	m := after.Metrics["M1"].Clone()
	m.Name = "Headcount"
	after.Metrics["M1"] = m
	cs := review.Diff(base, after, calc)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Input{State: after, Result: cs.After, Changes: &cs}))

	f := open(t, &buf)
	assert.Contains(t, f.GetSheetList(), SheetMetricChanges)
	rows, err := f.GetRows(SheetMetricChanges)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"M1", "Headcount", "replace", "/name", `"Headcount"`}, rows[1])
}

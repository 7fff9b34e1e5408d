package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
)

func codes(issues []Issue) map[string]Severity {
	out := make(map[string]Severity)
	for _, i := range issues {
		out[i.Code] = i.Severity
	}
	return out
}

func TestReadinessCleanState(t *testing.T) {
	assert.Empty(t, Readiness(readyState()))
}

func TestReadinessFindings(t *testing.T) {
	s := readyState()
	s.Pools["P2"] = model.CostPool{ID: "P2", Name: "Empty", SourceLE: "UK"}
	s.ServiceOf["U9"] = "S1"
	s.Cells.Set("A1", "Staff", d("70"))
	m := s.Metrics["M1"].Clone()
	m.Franchises["Franchise A"] = d("50")
	m.LegalEntities["Franchise B"]["b"] = d("40")
	s.Metrics["M1"] = m
	s.Activities["A3"] = model.Activity{ID: "A3", Name: "Loose", PoolID: "P9"}
	s.Activities["A4"] = model.Activity{ID: "A4", Name: "Lost", PoolID: "P1", MetricID: "M9"}

	issues := Readiness(s)
	got := codes(issues)
	assert.Equal(t, map[string]Severity{
		"empty-pool":             SeverityError,
		"column-total":           SeverityError,
		"unpooled-unit":          SeverityError,
		"metric-franchise-total": SeverityError,
		"metric-le-total":        SeverityError,
		"dangling-pool":          SeverityWarn,
		"unlinked-activity":      SeverityError,
		"dangling-metric":        SeverityWarn,
		"unit-overdrawn":         SeverityWarn,
	}, got)

	blocking := Blocking(issues)
	require.NotEmpty(t, blocking)
	for _, i := range blocking {
		assert.Equal(t, SeverityError, i.Severity)
	}
}

func TestUnlinkedActivityBlocksCommit(t *testing.T) {
	ws := newWorkspace(t, Options{})
	_, err := ws.AddActivity("P1", "Audit", "")
	require.NoError(t, err)

	blocking := Blocking(ws.Readiness())
	require.Len(t, blocking, 1)
	assert.Equal(t, "unlinked-activity", blocking[0].Code)

	require.NoError(t, ws.Acknowledge(ws.Review()))
	_, err = ws.PrepareCommit("")
	require.ErrorIs(t, err, ErrNotReady)
}

func TestSuggestPools(t *testing.T) {
	s := readyState()
	s.Units["U2"] = model.CostUnit{ID: "U2", LegalEntity: "UK"}
	s.Units["U3"] = model.CostUnit{ID: "U3", LegalEntity: "US"}
	s.Units["U4"] = model.CostUnit{ID: "U4", LegalEntity: "US"}
	s.ServiceOf["U2"] = "S1"
	s.ServiceOf["U3"] = "S1"
	s.ServiceOf["U4"] = "S1"

	t.Run("by service and LE", func(t *testing.T) {
		got := SuggestPools(s, ByServiceAndLE)
		require.Len(t, got, 2)

		assert.Equal(t, "Ops - UK", got[0].Pool.Name)
		assert.True(t, got[0].Existing)
		assert.Equal(t, "P1", got[0].Pool.ID)
		assert.Equal(t, []string{"U2"}, got[0].Units)

		assert.Equal(t, "Ops - US", got[1].Pool.Name)
		assert.False(t, got[1].Existing)
		assert.Equal(t, "pool-ops-us", got[1].Pool.ID)
		assert.Equal(t, "S1", got[1].Pool.ServiceID)
		assert.Equal(t, "US", got[1].Pool.SourceLE)
		assert.Equal(t, []string{"U3", "U4"}, got[1].Units)
	})

	t.Run("by LE", func(t *testing.T) {
		got := SuggestPools(s, ByLE)
		require.Len(t, got, 2)
		assert.Equal(t, "UK Pool", got[0].Pool.Name)
		assert.Equal(t, []string{"U2", "U9"}, got[0].Units)
		assert.Equal(t, "US Pool", got[1].Pool.Name)
		assert.Empty(t, got[1].Pool.ServiceID)
	})
}

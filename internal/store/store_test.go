package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleState() *model.State {
	s := model.NewState()
	s.Units["U1"] = model.CostUnit{ID: "U1", Name: "Platform", LegalEntity: "UK", Staff: d("100000.55"), NonStaff: d("1000"), FTE: d("1.5")}
	s.Services["S1"] = model.Service{ID: "S1", Name: "Ops", Tower: "Tech"}
	s.Pools["P1"] = model.CostPool{ID: "P1", Name: "Ops - UK", ServiceID: "S1", SourceLE: "UK"}
	s.ServiceOf["U1"] = "S1"
	s.PoolOf["U1"] = "P1"
	s.Activities["A1"] = model.Activity{ID: "A1", Name: "Run", PoolID: "P1", MetricID: "M1", Units: []string{"U1"}}
	s.Activities["A2"] = model.Activity{ID: "A2", Name: "Idle", PoolID: "P1"}
	s.Cells.Set("A1", "Staff", d("33.33"))
	s.Cells.AddRow("A2")
	s.Metrics["M1"] = model.Metric{
		ID:         "M1",
		Franchises: map[model.Franchise]decimal.Decimal{"Franchise A": d("100")},
		LegalEntities: map[model.Franchise]map[model.LEOption]decimal.Decimal{
			"Franchise A": {"a": d("100")},
		},
	}
	return s
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCodecRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	snap := model.NewSnapshot(sampleState(), "q1", at)

	data, err := Encode(snap)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "q1", got.Label)
	assert.True(t, at.Equal(got.TakenAt))
	assert.Equal(t, snap.Fingerprint(), got.Fingerprint())

	st := got.State()
	assert.True(t, st.Units["U1"].Staff.Equal(d("100000.55")))
	assert.Equal(t, []string{"U1"}, st.Activities["A1"].Units)
	assert.True(t, st.Cells.HasRow("A2"))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not msgpack"))
	require.Error(t, err)
}

func TestStoreSaveLatestGetList(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first := model.NewSnapshot(sampleState(), "first", time.Now())
	changed := sampleState()
	changed.Cells.Set("A1", "Staff", d("50"))
	second := model.NewSnapshot(changed, "second", time.Now())

	require.NoError(t, s.SaveSnapshot(ctx, first))
	require.NoError(t, s.SaveSnapshot(ctx, second))
	require.Error(t, s.SaveSnapshot(ctx, first), "IDs are unique")
	require.Error(t, s.SaveSnapshot(ctx, model.Snapshot{}))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, second.Fingerprint(), latest.Fingerprint())

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Label)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.Fingerprint(), list[1].Fingerprint)
	assert.Equal(t, 1, list[1].Units)
	assert.Equal(t, 2, list[1].Activities)
	assert.Positive(t, list[1].Size)

	raw, err := s.Payload(ctx, first.ID)
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, decoded.ID)
}

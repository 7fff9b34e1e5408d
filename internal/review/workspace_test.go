package review

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
)

type memCommitter struct {
	saved []model.Snapshot
	err   error
}

func (m *memCommitter) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, snap)
	return nil
}

func newWorkspace(t *testing.T, opts Options) *Workspace {
	t.Helper()
	return NewWorkspace(zerolog.Nop(), newCalc(), baseline(t), nil, opts)
}

// acknowledged returns a workspace with one reviewed, acknowledged edit.
func acknowledged(t *testing.T) *Workspace {
	t.Helper()
	ws := newWorkspace(t, Options{})
	require.NoError(t, ws.RenamePool("P1", "Operations - UK"))
	require.NoError(t, ws.Acknowledge(ws.Review()))
	require.True(t, ws.Acknowledged())
	return ws
}

func TestEveryMutationClearsAcknowledgment(t *testing.T) {
	mutations := map[string]func(ws *Workspace) error{
		"set cell": func(ws *Workspace) error {
			_, err := ws.SetCell("A1", model.ExpenseStaff, d("55"))
			return err
		},
		"commit cell": func(ws *Workspace) error {
			ws.EditCell("A1", model.ExpenseTravel, "12.5")
			_, err := ws.CommitCell("A1", model.ExpenseTravel)
			return err
		},
		"assign service": func(ws *Workspace) error { return ws.AssignService("U9", "S1") },
		"unassign pool":  func(ws *Workspace) error { return ws.AssignPool("U1", "") },
		"create pool": func(ws *Workspace) error {
			_, err := ws.CreatePool("Spare", "", "UK")
			return err
		},
		"rename pool": func(ws *Workspace) error { return ws.RenamePool("P1", "Ops") },
		"delete pool": func(ws *Workspace) error { return ws.DeletePool("P1") },
		"auto pools": func(ws *Workspace) error {
			_, err := ws.AutoCreatePools(ByLE)
			return err
		},
		"add activity": func(ws *Workspace) error {
			_, err := ws.AddActivity("P1", "Audit", "M1")
			return err
		},
		"rename activity": func(ws *Workspace) error { return ws.RenameActivity("A1", "Run it") },
		"remove activity": func(ws *Workspace) error { return ws.RemoveActivity("A2") },
		"unlink metric":   func(ws *Workspace) error { return ws.LinkMetric("A1", "") },
		"select units":    func(ws *Workspace) error { return ws.SelectUnits("A1", []string{"U1"}) },
		"franchise percent": func(ws *Workspace) error {
			_, err := ws.SetFranchisePercent("M1", "Franchise A", "61")
			return err
		},
		"le percent": func(ws *Workspace) error {
			_, err := ws.SetLEPercent("M1", "Franchise B", "b", "49")
			return err
		},
		"add metric":    func(ws *Workspace) error { return ws.AddMetric(model.Metric{ID: "M2"}) },
		"remove metric": func(ws *Workspace) error { return ws.RemoveMetric("M1") },
		"reset":         func(ws *Workspace) error { ws.Reset(); return nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			ws := acknowledged(t)
			require.NoError(t, mutate(ws))
			assert.False(t, ws.Acknowledged())
		})
	}
}

func TestDraftsDoNotClearAcknowledgment(t *testing.T) {
	ws := acknowledged(t)

	p := ws.EditCell("A1", model.ExpenseStaff, "5")
	assert.True(t, p.Valid)
	assert.True(t, ws.Acknowledged())

	p = ws.EditCell("A1", model.ExpenseStaff, "1.234")
	assert.False(t, p.Valid)
	assert.True(t, ws.Acknowledged())

	ws.DiscardCell("A1", model.ExpenseStaff)
	assert.True(t, ws.Acknowledged())
	assert.True(t, ws.State().Cells.Value("A1", "Staff").Equal(d("60")))
}

func TestRejectedMutationKeepsState(t *testing.T) {
	ws := acknowledged(t)

	_, err := ws.CreatePool("Ops - US", "S1", "US")
	require.NoError(t, err)
	require.NoError(t, ws.Acknowledge(ws.Review()))

	pools := ws.State().Pools
	var us string
	for id, p := range pools {
		if p.SourceLE == "US" {
			us = id
		}
	}
	require.NotEmpty(t, us)

	err = ws.AssignPool("U1", us)
	require.ErrorIs(t, err, ErrCrossLegalEntity)
	assert.Equal(t, "P1", ws.State().PoolOf["U1"])
	assert.True(t, ws.Acknowledged())

	require.ErrorIs(t, ws.AssignPool("nope", "P1"), ErrUnknownEntity)
	require.ErrorIs(t, ws.SelectUnits("A1", []string{"U9"}), ErrUnknownEntity)
	require.ErrorIs(t, ws.AddMetric(model.Metric{ID: "M1"}), ErrExists)
	assert.True(t, ws.Acknowledged())
}

func TestAssignServiceDropsForeignPool(t *testing.T) {
	st := readyState()
	st.Services["S2"] = model.Service{ID: "S2", Name: "Risk"}
	ws := NewWorkspace(zerolog.Nop(), newCalc(), model.NewSnapshot(st, "", epoch), nil, Options{})

	require.NoError(t, ws.AssignService("U1", "S2"))
	_, pooled := ws.State().PoolOf["U1"]
	assert.False(t, pooled)

	require.ErrorIs(t, ws.AssignPool("U1", "P1"), ErrServiceMismatch)
}

func TestCapPolicy(t *testing.T) {
	t.Run("advisory", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		assert.True(t, ws.Cap("A1", model.ExpenseStaff).Equal(d("60")))

		ws.EditCell("A1", model.ExpenseStaff, "70")
		v, err := ws.CommitCell("A1", model.ExpenseStaff)
		require.NoError(t, err)
		assert.True(t, v.Equal(d("70")))
		assert.True(t, ws.OverCap("A1", model.ExpenseStaff))

		clamped, changed := ws.ClampCell("A1", model.ExpenseStaff)
		assert.True(t, changed)
		assert.True(t, clamped.Equal(d("60")))
		assert.False(t, ws.OverCap("A1", model.ExpenseStaff))

		_, changed = ws.ClampCell("A1", model.ExpenseStaff)
		assert.False(t, changed)
	})

	t.Run("enforced", func(t *testing.T) {
		ws := newWorkspace(t, Options{EnforceCap: true})

		ws.EditCell("A1", model.ExpenseStaff, "70")
		v, err := ws.CommitCell("A1", model.ExpenseStaff)
		require.ErrorIs(t, err, ErrOverCap)
		assert.True(t, v.Equal(d("60")))
		_, pending := ws.Draft("A1", model.ExpenseStaff)
		assert.False(t, pending)

		_, err = ws.SetCell("A1", model.ExpenseStaff, d("60.01"))
		require.ErrorIs(t, err, ErrOverCap)

		_, err = ws.SetCell("A1", model.ExpenseStaff, d("55"))
		require.NoError(t, err)
		assert.Equal(t, 1, ws.Review().Cells.Len())
	})
}

func TestCommitGate(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to commit", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		_, err := ws.Commit(ctx, &memCommitter{}, "")
		require.ErrorIs(t, err, ErrNothingToCommit)
		require.ErrorIs(t, ws.Acknowledge(ws.Review()), ErrNothingToReview)
	})

	t.Run("not acknowledged", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		require.NoError(t, ws.RenameActivity("A1", "Run it"))
		_, err := ws.Commit(ctx, &memCommitter{}, "")
		require.ErrorIs(t, err, ErrNotAcknowledged)
	})

	t.Run("stale review", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		require.NoError(t, ws.RenameActivity("A1", "Run it"))
		reviewed := ws.Review()
		require.NoError(t, ws.RenameActivity("A1", "Run it again"))
		require.ErrorIs(t, ws.Acknowledge(reviewed), ErrStaleChangeSet)
		assert.False(t, ws.Acknowledged())
	})

	t.Run("not ready", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		_, err := ws.SetCell("A2", model.ExpenseStaff, d("30"))
		require.NoError(t, err)
		require.NoError(t, ws.Acknowledge(ws.Review()))

		c := &memCommitter{}
		_, err = ws.Commit(ctx, c, "")
		require.ErrorIs(t, err, ErrNotReady)
		assert.Empty(t, c.saved)
		assert.True(t, ws.Acknowledged())
	})

	t.Run("store failure", func(t *testing.T) {
		ws := newWorkspace(t, Options{})
		require.NoError(t, ws.RenamePool("P1", "Ops"))
		require.NoError(t, ws.Acknowledge(ws.Review()))

		oldBaseline := ws.Baseline().ID
		_, err := ws.Commit(ctx, &memCommitter{err: errors.New("disk full")}, "")
		require.Error(t, err)
		assert.Equal(t, oldBaseline, ws.Baseline().ID)
	})

	t.Run("committed", func(t *testing.T) {
		ws := newWorkspace(t, Options{Now: func() time.Time { return epoch }})
		_, err := ws.SetCell("A1", model.ExpenseStaff, d("50"))
		require.NoError(t, err)
		_, err = ws.SetCell("A2", model.ExpenseStaff, d("50"))
		require.NoError(t, err)
		cs := ws.Review()
		require.NoError(t, ws.Acknowledge(cs))

		c := &memCommitter{}
		snap, err := ws.Commit(ctx, c, "rebalance")
		require.NoError(t, err)
		require.Len(t, c.saved, 1)
		assert.Equal(t, snap.ID, c.saved[0].ID)
		assert.Equal(t, "rebalance", snap.Label)
		assert.Equal(t, epoch, snap.TakenAt)
		assert.Equal(t, ws.State().Fingerprint(), snap.Fingerprint())
		assert.Equal(t, snap.ID, ws.Baseline().ID)
		assert.False(t, ws.Acknowledged())
		assert.True(t, ws.Review().IsEmpty())
	})
}

func TestDeletePoolLeavesActivities(t *testing.T) {
	ws := newWorkspace(t, Options{})
	require.NoError(t, ws.DeletePool("P1"))

	st := ws.State()
	assert.Empty(t, st.PoolOf)
	assert.Len(t, st.Activities, 2)

	var codes []string
	for _, i := range ws.Readiness() {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, "dangling-pool")
	assert.Contains(t, codes, "unpooled-unit")
}

func TestAutoCreatePools(t *testing.T) {
	ws := newWorkspace(t, Options{})
	pools, err := ws.AutoCreatePools(ByLE)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "UK Pool", pools[0].Name)
	assert.Equal(t, pools[0].ID, ws.State().PoolOf["U9"])

	// Nothing left to pool.
	pools, err = ws.AutoCreatePools(ByLE)
	require.NoError(t, err)
	assert.Empty(t, pools)
}

func TestMetricEditsParse(t *testing.T) {
	ws := newWorkspace(t, Options{})
	p, err := ws.SetFranchisePercent("M1", "Franchise A", "abc")
	require.NoError(t, err)
	assert.False(t, p.Valid)
	assert.True(t, ws.Review().IsEmpty())

	p, err = ws.SetFranchisePercent("M1", "Franchise C", "0.5")
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.True(t, ws.State().Metrics["M1"].FranchiseShare("Franchise C").Equal(d("0.5")))

	_, err = ws.SetLEPercent("M404", "Franchise A", "a", "1")
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestAcknowledgmentCoversScenarioCosts(t *testing.T) {
	base := baseline(t)

	renamed := base.State()
	p1 := renamed.Pools["P1"]
	p1.Name = "Operations - UK"
	renamed.Pools["P1"] = p1

	first := NewWorkspace(zerolog.Nop(), newCalc(), base, renamed, Options{})
	reviewed := first.Review()
	require.NoError(t, first.Acknowledge(reviewed))

	// The scenario is reloaded with a higher staff cost under the same baseline.
	reloaded := renamed.Clone()
	u1 := reloaded.Units["U1"]
	u1.Staff = d("150000")
	reloaded.Units["U1"] = u1

	second := NewWorkspace(zerolog.Nop(), newCalc(), base, reloaded, Options{})
	require.ErrorIs(t, second.AcknowledgeFingerprint(reviewed.Fingerprint()), ErrStaleChangeSet)
	assert.False(t, second.Acknowledged())
	_, err := second.Commit(context.Background(), &memCommitter{}, "")
	require.ErrorIs(t, err, ErrNotAcknowledged)
}

func TestPrepareCommitThenAdopt(t *testing.T) {
	ws := acknowledged(t)
	before := ws.Baseline().ID

	snap, err := ws.PrepareCommit("later")
	require.NoError(t, err)
	assert.Equal(t, before, ws.Baseline().ID)
	assert.True(t, ws.Acknowledged())
	assert.Equal(t, "Operations - UK", snap.State().Pools["P1"].Name)

	// The snapshot is frozen; edits after preparing stay pending.
	require.NoError(t, ws.RenameActivity("A1", "Run it"))
	assert.Equal(t, "Run", snap.State().Activities["A1"].Name)

	ws.Adopt(snap)
	assert.Equal(t, snap.ID, ws.Baseline().ID)
	assert.False(t, ws.Acknowledged())
	cs := ws.Review()
	assert.Equal(t, 1, cs.Len())
	require.Len(t, cs.Activities.Modified, 1)
	assert.Equal(t, []string{"name"}, cs.Activities.Modified[0].Fields)
}

func TestPrepareCommitRunsGate(t *testing.T) {
	ws := newWorkspace(t, Options{})
	_, err := ws.PrepareCommit("")
	require.ErrorIs(t, err, ErrNothingToCommit)

	require.NoError(t, ws.RenameActivity("A1", "Run it"))
	_, err = ws.PrepareCommit("")
	require.ErrorIs(t, err, ErrNotAcknowledged)
}

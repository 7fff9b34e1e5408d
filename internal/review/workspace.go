package review

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/percent"
	"github.com/theirongolddev/costfall/internal/pipeline"
)

// Committer persists a snapshot that becomes the new baseline.
type Committer interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
}

// Options tune workspace policy.
type Options struct {
	// EnforceCap rejects cell values above the overlap cap instead of
	// only flagging them.
	EnforceCap bool
	// Now stamps committed snapshots; defaults to time.Now.
	Now func() time.Time
}

// Workspace is the current, editable state together with its baseline and
// the review acknowledgment. Every mutation goes through a method that
// drops the acknowledgment, so an edit made after review can never be
// committed unreviewed.
type Workspace struct {
	log      zerolog.Logger
	calc     *pipeline.Waterfall
	memo     *pipeline.Memo
	opts     Options
	baseline model.Snapshot
	state    *model.State
	ack      *uint64
}

// NewWorkspace starts editing from current, or from the baseline when
// current is nil.
func NewWorkspace(log zerolog.Logger, calc *pipeline.Waterfall, baseline model.Snapshot, current *model.State, opts Options) *Workspace {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if current == nil {
		current = baseline.State()
	} else {
		current = current.Clone()
	}
	return &Workspace{
		log:      log.With().Str("component", "workspace").Logger(),
		calc:     calc,
		memo:     pipeline.NewMemo(calc),
		opts:     opts,
		baseline: baseline,
		state:    current,
	}
}

// touch must follow every successful mutation.
func (w *Workspace) touch() {
	if w.ack != nil {
		w.log.Debug().Msg("edit invalidated review acknowledgment")
	}
	w.ack = nil
	w.memo.Invalidate()
}

// State returns a copy of the current state.
func (w *Workspace) State() *model.State { return w.state.Clone() }

// Baseline returns the snapshot edits are diffed against.
func (w *Workspace) Baseline() model.Snapshot { return w.baseline }

// Totals returns the waterfall over the current state.
func (w *Workspace) Totals() pipeline.Result { return w.memo.Compute(w.state) }

// Cap returns the overlap cap for an activity's column.
func (w *Workspace) Cap(activityID string, key model.ExpenseKey) decimal.Decimal {
	return pipeline.CapFor(w.state, activityID, key)
}

// OverCap reports whether a committed cell sits above its cap.
func (w *Workspace) OverCap(activityID string, key model.ExpenseKey) bool {
	return w.state.Cells.Value(activityID, string(key)).GreaterThan(w.Cap(activityID, key))
}

// Acknowledged reports whether the current changes have been acknowledged.
func (w *Workspace) Acknowledged() bool { return w.ack != nil }

// Readiness checks the current state.
func (w *Workspace) Readiness() []Issue { return Readiness(w.state) }

// --- assignments

// AssignService moves a unit into a service; an empty serviceID unassigns
// it. A pool of another service the unit was in is dropped.
func (w *Workspace) AssignService(unitID, serviceID string) error {
	if _, ok := w.state.Units[unitID]; !ok {
		return errors.Wrapf(ErrUnknownEntity, "unit %s", unitID)
	}
	if serviceID != "" {
		if _, ok := w.state.Services[serviceID]; !ok {
			return errors.Wrapf(ErrUnknownEntity, "service %s", serviceID)
		}
	}
	if serviceID == "" {
		delete(w.state.ServiceOf, unitID)
	} else {
		w.state.ServiceOf[unitID] = serviceID
	}
	if poolID := w.state.PoolOf[unitID]; poolID != "" {
		if p := w.state.Pools[poolID]; p.ServiceID != "" && p.ServiceID != serviceID {
			delete(w.state.PoolOf, unitID)
			w.log.Info().Str("unit", unitID).Str("pool", poolID).Msg("unit left pool of its former service")
		}
	}
	w.touch()
	return nil
}

// AssignPool moves a unit into a pool; an empty poolID unassigns it. The
// pool's source LE must match the unit's LE.
func (w *Workspace) AssignPool(unitID, poolID string) error {
	u, ok := w.state.Units[unitID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "unit %s", unitID)
	}
	if poolID == "" {
		delete(w.state.PoolOf, unitID)
		w.touch()
		return nil
	}
	p, ok := w.state.Pools[poolID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "pool %s", poolID)
	}
	if p.SourceLE != u.LegalEntity {
		return errors.Wrapf(ErrCrossLegalEntity, "unit %s (%s) into pool %s (%s)", unitID, u.LegalEntity, p.Name, p.SourceLE)
	}
	if svc := w.state.ServiceOf[unitID]; svc != "" && p.ServiceID != "" && svc != p.ServiceID {
		return errors.Wrapf(ErrServiceMismatch, "unit %s is in service %s, pool %s in %s", unitID, svc, p.Name, p.ServiceID)
	}
	w.state.PoolOf[unitID] = poolID
	w.touch()
	return nil
}

// --- pools

// CreatePool adds an empty pool. Its source LE cannot change afterwards.
func (w *Workspace) CreatePool(name, serviceID, sourceLE string) (model.CostPool, error) {
	name = strings.TrimSpace(name)
	if name == "" || sourceLE == "" {
		return model.CostPool{}, errors.New("pool name and source LE are required")
	}
	if serviceID != "" {
		if _, ok := w.state.Services[serviceID]; !ok {
			return model.CostPool{}, errors.Wrapf(ErrUnknownEntity, "service %s", serviceID)
		}
	}
	p := model.CostPool{ID: uuid.NewString(), Name: name, ServiceID: serviceID, SourceLE: sourceLE}
	w.state.Pools[p.ID] = p
	w.touch()
	return p, nil
}

// RenamePool changes a pool's display name.
func (w *Workspace) RenamePool(poolID, name string) error {
	p, ok := w.state.Pools[poolID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "pool %s", poolID)
	}
	p.Name = strings.TrimSpace(name)
	w.state.Pools[poolID] = p
	w.touch()
	return nil
}

// DeletePool removes a pool and unassigns its units. Its activities stay
// behind with no units to draw on.
func (w *Workspace) DeletePool(poolID string) error {
	if _, ok := w.state.Pools[poolID]; !ok {
		return errors.Wrapf(ErrUnknownEntity, "pool %s", poolID)
	}
	delete(w.state.Pools, poolID)
	for _, u := range w.state.UnitsIn(model.StagePool, poolID) {
		delete(w.state.PoolOf, u)
	}
	w.touch()
	return nil
}

// AutoCreatePools applies SuggestPools and returns the pools touched.
func (w *Workspace) AutoCreatePools(mode PoolMode) ([]model.CostPool, error) {
	suggestions := SuggestPools(w.state, mode)
	if len(suggestions) == 0 {
		return nil, nil
	}
	var out []model.CostPool
	for _, sg := range suggestions {
		p := sg.Pool
		if !sg.Existing {
			if _, taken := w.state.Pools[p.ID]; taken {
				p.ID = p.ID + "-" + uuid.NewString()[:8]
			}
			w.state.Pools[p.ID] = p
		}
		for _, u := range sg.Units {
			w.state.PoolOf[u] = p.ID
		}
		out = append(out, p)
	}
	w.touch()
	return out, nil
}

// --- activities

// AddActivity creates an activity in a pool, drawing on all its units.
func (w *Workspace) AddActivity(poolID, name, metricID string) (model.Activity, error) {
	if _, ok := w.state.Pools[poolID]; !ok {
		return model.Activity{}, errors.Wrapf(ErrUnknownEntity, "pool %s", poolID)
	}
	if metricID != "" {
		if _, ok := w.state.Metrics[metricID]; !ok {
			return model.Activity{}, errors.Wrapf(ErrUnknownEntity, "metric %s", metricID)
		}
	}
	a := model.Activity{ID: uuid.NewString(), Name: strings.TrimSpace(name), PoolID: poolID, MetricID: metricID}
	w.state.Activities[a.ID] = a
	w.state.Cells.AddRow(a.ID)
	w.touch()
	return a, nil
}

// RenameActivity changes an activity's display name.
func (w *Workspace) RenameActivity(activityID, name string) error {
	a, ok := w.state.Activities[activityID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "activity %s", activityID)
	}
	a.Name = strings.TrimSpace(name)
	w.state.Activities[activityID] = a
	w.touch()
	return nil
}

// RemoveActivity deletes an activity and its cells.
func (w *Workspace) RemoveActivity(activityID string) error {
	if _, ok := w.state.Activities[activityID]; !ok {
		return errors.Wrapf(ErrUnknownEntity, "activity %s", activityID)
	}
	delete(w.state.Activities, activityID)
	w.state.Cells.RemoveRow(activityID)
	w.touch()
	return nil
}

// LinkMetric sets or, with an empty metricID, clears an activity's metric.
func (w *Workspace) LinkMetric(activityID, metricID string) error {
	a, ok := w.state.Activities[activityID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "activity %s", activityID)
	}
	if metricID != "" {
		if _, ok := w.state.Metrics[metricID]; !ok {
			return errors.Wrapf(ErrUnknownEntity, "metric %s", metricID)
		}
	}
	a.MetricID = metricID
	w.state.Activities[activityID] = a
	w.touch()
	return nil
}

// SelectUnits restricts an activity to some of its pool's units. An empty
// selection means the whole pool.
func (w *Workspace) SelectUnits(activityID string, units []string) error {
	a, ok := w.state.Activities[activityID]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "activity %s", activityID)
	}
	pooled := w.state.UnitsIn(model.StagePool, a.PoolID)
	for _, u := range units {
		if !slices.Contains(pooled, u) {
			return errors.Wrapf(ErrUnknownEntity, "unit %s is not in pool %s", u, a.PoolID)
		}
	}
	a.Units = slices.Clone(units)
	w.state.Activities[activityID] = a
	w.touch()
	return nil
}

// --- cells

// EditCell stages raw as the draft of a cell. Invalid input is rejected
// without touching the state; drafts are not part of the state until
// CommitCell.
func (w *Workspace) EditCell(activityID string, key model.ExpenseKey, raw string) percent.Parsed {
	if _, ok := w.state.Activities[activityID]; !ok {
		return percent.Parsed{Reason: "unknown activity " + activityID}
	}
	return w.state.Cells.SetCell(activityID, string(key), raw)
}

// Draft returns the staged text of a cell.
func (w *Workspace) Draft(activityID string, key model.ExpenseKey) (string, bool) {
	return w.state.Cells.Draft(activityID, string(key))
}

// DiscardCell drops a staged draft.
func (w *Workspace) DiscardCell(activityID string, key model.ExpenseKey) {
	w.state.Cells.Discard(activityID, string(key))
}

// CommitCell finalizes a staged draft. With EnforceCap a value above the
// overlap cap is rejected and the draft dropped.
func (w *Workspace) CommitCell(activityID string, key model.ExpenseKey) (decimal.Decimal, error) {
	raw, ok := w.state.Cells.Draft(activityID, string(key))
	if !ok {
		return w.state.Cells.Value(activityID, string(key)), nil
	}
	if err := w.checkCap(activityID, key, percent.Finalize(raw)); err != nil {
		w.state.Cells.Discard(activityID, string(key))
		return w.state.Cells.Value(activityID, string(key)), err
	}
	v := w.state.Cells.Commit(activityID, string(key))
	w.touch()
	return v, nil
}

// SetCell stores a value directly under the same cap policy as CommitCell.
func (w *Workspace) SetCell(activityID string, key model.ExpenseKey, v decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := w.state.Activities[activityID]; !ok {
		return decimal.Zero, errors.Wrapf(ErrUnknownEntity, "activity %s", activityID)
	}
	n := percent.Normalize(v)
	if err := w.checkCap(activityID, key, n); err != nil {
		return w.state.Cells.Value(activityID, string(key)), err
	}
	w.state.Cells.Set(activityID, string(key), n)
	w.touch()
	return n, nil
}

// ClampCell lowers a cell to its overlap cap if it sits above it.
func (w *Workspace) ClampCell(activityID string, key model.ExpenseKey) (decimal.Decimal, bool) {
	current := w.state.Cells.Value(activityID, string(key))
	limit := w.Cap(activityID, key)
	if !current.GreaterThan(limit) {
		return current, false
	}
	w.state.Cells.Set(activityID, string(key), limit)
	w.touch()
	return limit, true
}

func (w *Workspace) checkCap(activityID string, key model.ExpenseKey, v decimal.Decimal) error {
	limit := w.Cap(activityID, key)
	if !v.GreaterThan(limit) {
		return nil
	}
	if w.opts.EnforceCap {
		return errors.Wrapf(ErrOverCap, "%s/%s: %s > %s", activityID, key, v.StringFixed(2), limit.StringFixed(2))
	}
	w.log.Warn().Str("activity", activityID).Str("column", string(key)).
		Str("value", v.StringFixed(2)).Str("cap", limit.StringFixed(2)).
		Msg("cell exceeds overlap cap")
	return nil
}

// --- metrics

// AddMetric registers a metric.
func (w *Workspace) AddMetric(m model.Metric) error {
	if m.ID == "" {
		return errors.New("metric ID is required")
	}
	if _, ok := w.state.Metrics[m.ID]; ok {
		return errors.Wrapf(ErrExists, "metric %s", m.ID)
	}
	w.state.Metrics[m.ID] = m.Clone()
	w.touch()
	return nil
}

// RemoveMetric deletes a metric. Activities still linked to it stop
// reaching franchises.
func (w *Workspace) RemoveMetric(metricID string) error {
	if _, ok := w.state.Metrics[metricID]; !ok {
		return errors.Wrapf(ErrUnknownEntity, "metric %s", metricID)
	}
	delete(w.state.Metrics, metricID)
	w.touch()
	return nil
}

// SetFranchisePercent parses raw and stores it as a franchise share.
// Unparsable input is returned as an invalid Parsed and changes nothing.
func (w *Workspace) SetFranchisePercent(metricID string, f model.Franchise, raw string) (percent.Parsed, error) {
	m, ok := w.state.Metrics[metricID]
	if !ok {
		return percent.Parsed{}, errors.Wrapf(ErrUnknownEntity, "metric %s", metricID)
	}
	p := percent.Parse(raw)
	if !p.Valid {
		return p, nil
	}
	m = m.Clone()
	if m.Franchises == nil {
		m.Franchises = make(map[model.Franchise]decimal.Decimal)
	}
	m.Franchises[f] = p.Value
	w.state.Metrics[metricID] = m
	w.touch()
	return p, nil
}

// SetLEPercent parses raw and stores it as an LE share within a franchise.
func (w *Workspace) SetLEPercent(metricID string, f model.Franchise, le model.LEOption, raw string) (percent.Parsed, error) {
	m, ok := w.state.Metrics[metricID]
	if !ok {
		return percent.Parsed{}, errors.Wrapf(ErrUnknownEntity, "metric %s", metricID)
	}
	p := percent.Parse(raw)
	if !p.Valid {
		return p, nil
	}
	m = m.Clone()
	if m.LegalEntities[f] == nil {
		m.LegalEntities[f] = make(map[model.LEOption]decimal.Decimal)
	}
	m.LegalEntities[f][le] = p.Value
	w.state.Metrics[metricID] = m
	w.touch()
	return p, nil
}

// --- review gate

// Review diffs the current state against the baseline.
func (w *Workspace) Review() ChangeSet {
	return Diff(w.baseline, w.state, w.calc)
}

// Acknowledge records that a human reviewed cs. cs must still describe the
// current changes.
func (w *Workspace) Acknowledge(cs ChangeSet) error {
	return w.AcknowledgeFingerprint(cs.Fingerprint())
}

// AcknowledgeFingerprint acknowledges the change set with fingerprint fp.
func (w *Workspace) AcknowledgeFingerprint(fp uint64) error {
	current := w.Review()
	if current.IsEmpty() {
		return ErrNothingToReview
	}
	if current.Fingerprint() != fp {
		return errors.Wrapf(ErrStaleChangeSet, "acknowledged %016x, current %s", fp, current.FingerprintHex())
	}
	w.ack = &fp
	w.log.Info().Str("fingerprint", current.FingerprintHex()).Int("changes", current.Len()).Msg("changes acknowledged")
	return nil
}

// Commit persists the current state as the new baseline. It requires a
// non-empty change set, an acknowledgment of exactly that change set and
// no blocking readiness issues. On failure nothing changes.
func (w *Workspace) Commit(ctx context.Context, c Committer, label string) (model.Snapshot, error) {
	snap, err := w.PrepareCommit(label)
	if err != nil {
		return model.Snapshot{}, err
	}
	if c != nil {
		if err := c.SaveSnapshot(ctx, snap); err != nil {
			return model.Snapshot{}, errors.Wrap(err, "save snapshot")
		}
	}
	w.Adopt(snap)
	return snap, nil
}

// PrepareCommit runs the commit gate and freezes the current state into a
// snapshot without touching the workspace. Callers that save off the
// calling goroutine persist the snapshot and then Adopt it.
func (w *Workspace) PrepareCommit(label string) (model.Snapshot, error) {
	cs := w.Review()
	if cs.IsEmpty() {
		return model.Snapshot{}, ErrNothingToCommit
	}
	if w.ack == nil {
		return model.Snapshot{}, ErrNotAcknowledged
	}
	if *w.ack != cs.Fingerprint() {
		return model.Snapshot{}, ErrStaleChangeSet
	}
	if blocking := Blocking(Readiness(w.state)); len(blocking) > 0 {
		return model.Snapshot{}, errors.Wrapf(ErrNotReady, "%d blocking issue(s), first: %s", len(blocking), blocking[0].Message)
	}
	return model.NewSnapshot(w.state, label, w.opts.Now()), nil
}

// Adopt makes a saved snapshot the baseline and drops the acknowledgment.
func (w *Workspace) Adopt(snap model.Snapshot) {
	w.baseline = snap
	w.ack = nil
	w.log.Info().Str("snapshot", snap.ID).Msg("changes committed")
}

// Reset discards every uncommitted edit.
func (w *Workspace) Reset() {
	w.state = w.baseline.State()
	w.touch()
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable capture of a State, used as the review baseline.
type Snapshot struct {
	ID          string
	Label       string
	TakenAt     time.Time
	fingerprint uint64
	state       *State
}

// NewSnapshot captures a deep copy of s under a fresh ID.
func NewSnapshot(s *State, label string, at time.Time) Snapshot {
	return RestoreSnapshot(uuid.NewString(), label, at, s)
}

// RestoreSnapshot rebuilds a snapshot read back from storage.
func RestoreSnapshot(id, label string, at time.Time, s *State) Snapshot {
	c := s.Clone()
	return Snapshot{
		ID:          id,
		Label:       label,
		TakenAt:     at.UTC(),
		fingerprint: c.Fingerprint(),
		state:       c,
	}
}

// IsZero reports whether the snapshot was never taken.
func (s Snapshot) IsZero() bool { return s.state == nil }

// State returns a copy of the captured state. A zero snapshot yields an
// empty state.
func (s Snapshot) State() *State {
	if s.state == nil {
		return NewState()
	}
	return s.state.Clone()
}

// Fingerprint is the captured state's fingerprint.
func (s Snapshot) Fingerprint() uint64 { return s.fingerprint }

// Package review diffs the working allocation state against its committed
// baseline and gates commits behind an explicit acknowledgment.
package review

import "github.com/go-faster/errors"

// Invariant violations. The operation that returns one has no effect.
var (
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrExists           = errors.New("entity already exists")
	ErrCrossLegalEntity = errors.New("unit and pool belong to different legal entities")
	ErrServiceMismatch  = errors.New("pool belongs to a different service than the unit")
	ErrOverCap          = errors.New("value exceeds overlap cap")
	ErrNothingToReview  = errors.New("change set is empty")
	ErrNothingToCommit  = errors.New("no changes to commit")
	ErrNotAcknowledged  = errors.New("changes have not been acknowledged")
	ErrStaleChangeSet   = errors.New("acknowledged change set no longer matches the current changes")
	ErrNotReady         = errors.New("state has blocking issues")
)

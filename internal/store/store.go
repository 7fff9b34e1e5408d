// Package store keeps committed snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/theirongolddev/costfall/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Store is a SQLite-backed snapshot history.
type Store struct {
	db *sql.DB
}

// Entry describes a stored snapshot without decoding it.
type Entry struct {
	ID          string
	Label       string
	TakenAt     time.Time
	Fingerprint uint64
	Units       int
	Activities  int
	Size        int
}

// Open opens or creates the store database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create store dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open store db")
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	return &Store{db: db}, nil
}

// Close closes the store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot appends a snapshot to the history.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.IsZero() {
		return errors.New("save snapshot: empty snapshot")
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	st := snap.State()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO snapshots
		(id, label, taken_at, fingerprint, units, activities, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Label, snap.TakenAt.UTC().Format(time.RFC3339Nano),
		fingerprintText(snap.Fingerprint()), len(st.Units), len(st.Activities), data,
	)
	if err != nil {
		return errors.Wrapf(err, "insert snapshot %s", snap.ID)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Latest returns the most recently saved snapshot.
func (s *Store) Latest(ctx context.Context) (model.Snapshot, error) {
	return s.decodeRow(s.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots ORDER BY seq DESC LIMIT 1"), "latest")
}

// Get returns the snapshot with the given ID.
func (s *Store) Get(ctx context.Context, id string) (model.Snapshot, error) {
	return s.decodeRow(s.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE id = ?", id), id)
}

// Payload returns the encoded snapshot as stored.
func (s *Store) Payload(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "snapshot %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", id)
	}
	return data, nil
}

func (s *Store) decodeRow(row *sql.Row, what string) (model.Snapshot, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Snapshot{}, errors.Wrapf(ErrNotFound, "snapshot %s", what)
		}
		return model.Snapshot{}, errors.Wrapf(err, "read snapshot %s", what)
	}
	return Decode(data)
}

// List returns every snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, taken_at, fingerprint, units, activities, length(payload)
		FROM snapshots ORDER BY seq DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var takenAt, fp string
		if err := rows.Scan(&e.ID, &e.Label, &takenAt, &fp, &e.Units, &e.Activities, &e.Size); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		if e.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, errors.Wrapf(err, "snapshot %s taken_at", e.ID)
		}
		if e.Fingerprint, err = strconv.ParseUint(fp, 16, 64); err != nil {
			return nil, errors.Wrapf(err, "snapshot %s fingerprint", e.ID)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// fingerprints are stored as hex; sqlite integers are signed.
func fingerprintText(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// Package archive copies committed snapshots to long-term storage, either a
// local directory or an S3-compatible bucket. Archived objects are never
// overwritten.
package archive

import (
	"context"
	"path"
	"time"

	"github.com/go-faster/errors"
	"github.com/theirongolddev/costfall/internal/model"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

var (
	// ErrExists is returned by Put when the key is already archived.
	ErrExists = errors.New("archive: object already exists")
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("archive: object not found")
)

// Info describes an archived object.
type Info struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is a create-only object store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (Info, error)
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Config selects and configures a driver.
type Config struct {
	Driver string
	Dir    string
	S3     S3Config
}

// Open builds the configured store. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverFilesystem:
		return NewFS(cfg.Dir)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, errors.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// KeyFor places a snapshot under its commit month.
func KeyFor(snap model.Snapshot) string {
	return path.Join("snapshots", snap.TakenAt.UTC().Format("2006/01"), snap.ID+".msgpack")
}

// internal/workers/data-access/load-work-orders/queries/registry.go
package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrUnknownMode      = errors.New("unknown lookup mode")
)

type Mode string

const (
	ModeLatest Mode = "latest"
	ModeByID   Mode = "by_id"
)

// Params select a snapshot. An empty SnapshotID means the latest one,
// optionally restricted to Source.
type Params struct {
	SnapshotID string
	Source     string
}

func (p Params) Mode() Mode {
	if p.SnapshotID != "" {
		return ModeByID
	}
	return ModeLatest
}

// QueryFunc returns the snapshot row and the execution time in ms.
type QueryFunc func(ctx context.Context, db *sql.DB, table string, params Params) (*Snapshot, int64, error)

var Registry = map[Mode]QueryFunc{
	ModeLatest: Latest,
	ModeByID:   ByID,
}

func Execute(ctx context.Context, db *sql.DB, table string, params Params) (*Snapshot, int64, error) {
	fn, exists := Registry[params.Mode()]
	if !exists {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownMode, params.Mode())
	}
	return fn(ctx, db, table, params)
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// internal/workers/data-access/load-work-orders/queries/snapshots.go
package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Snapshot is one stored scrape of the work order list.
type Snapshot struct {
	ID         string
	Source     string
	CapturedAt time.Time
	Payload    json.RawMessage
}

const snapshotColumns = "id, source, captured_at, payload"

func Latest(ctx context.Context, db *sql.DB, table string, params Params) (*Snapshot, int64, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE ($1 = '' OR source = $1) ORDER BY captured_at DESC LIMIT 1`,
		snapshotColumns, pq.QuoteIdentifier(table),
	)
	return scanOne(ctx, db, query, params.Source)
}

func ByID(ctx context.Context, db *sql.DB, table string, params Params) (*Snapshot, int64, error) {
	if params.SnapshotID == "" {
		return nil, 0, fmt.Errorf("snapshot id is required")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, snapshotColumns, pq.QuoteIdentifier(table))
	return scanOne(ctx, db, query, params.SnapshotID)
}

func scanOne(ctx context.Context, db *sql.DB, query string, arg interface{}) (*Snapshot, int64, error) {
	start := time.Now()

	var (
		s       Snapshot
		payload []byte
	)
	err := db.QueryRowContext(ctx, query, arg).Scan(&s.ID, &s.Source, &s.CapturedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, elapsedMs(start), ErrSnapshotNotFound
	}
	if err != nil {
		return nil, elapsedMs(start), err
	}
	s.Payload = json.RawMessage(payload)
	return &s, elapsedMs(start), nil
}

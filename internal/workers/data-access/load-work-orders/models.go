// internal/workers/data-access/load-work-orders/models.go
package loadworkorders

import (
	"encoding/json"
	"time"
)

type Input struct {
	SnapshotID string `json:"snapshotId,omitempty"`
	Source     string `json:"source,omitempty"`
}

type Output struct {
	// Orders is the stored payload, passed through unchanged.
	Orders     json.RawMessage `json:"orders"`
	SnapshotID string          `json:"snapshotId"`
	Source     string          `json:"source"`
	CapturedAt time.Time       `json:"capturedAt"`
	OrderCount int             `json:"orderCount"`
	FromCache  bool            `json:"fromCache"`
}

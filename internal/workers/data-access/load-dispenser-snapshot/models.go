// internal/workers/data-access/load-dispenser-snapshot/models.go
package loaddispensersnapshot

import (
	"encoding/json"

	"fieldops-workers/internal/models"
)

// Input names the orders either directly or through a work order snapshot.
type Input struct {
	OrderIDs []models.FlexString `json:"orderIds,omitempty"`
	Orders   json.RawMessage     `json:"orders,omitempty"`
}

type Output struct {
	Dispensers      models.DispenserSnapshot `json:"dispensers"`
	RequestedOrders int                      `json:"requestedOrders"`
	MatchedOrders   int                      `json:"matchedOrders"`
	Took            int64                    `json:"took"` // milliseconds
}

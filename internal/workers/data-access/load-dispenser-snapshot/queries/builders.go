// internal/workers/data-access/load-dispenser-snapshot/queries/builders.go
package queries

import (
	"encoding/json"
	"errors"
	"fmt"

	"fieldops-workers/internal/models"
)

var ErrNoOrderIDs = errors.New("at least one order id is required")

const (
	FieldOrderID   = "orderId"
	FieldScrapedAt = "scrapedAt"
)

// DispenserQuery finds the most recent scrape for each order id. Documents
// look like {"orderId": "...", "scrapedAt": "...", "dispensers": [...]}.
func DispenserQuery(orderIDs []string) (map[string]interface{}, error) {
	if len(orderIDs) == 0 {
		return nil, ErrNoOrderIDs
	}
	return map[string]interface{}{
		"size": len(orderIDs),
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"terms": map[string]interface{}{FieldOrderID: orderIDs},
					},
				},
			},
		},
		"collapse": map[string]interface{}{"field": FieldOrderID},
		"sort": []interface{}{
			map[string]interface{}{FieldScrapedAt: map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
		"_source": []string{FieldOrderID, FieldScrapedAt, "dispensers"},
	}, nil
}

// Chunk splits ids into batches of at most size. size <= 0 means one batch.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) <= size {
		return [][]string{ids}
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

type scrapeDoc struct {
	OrderID    models.FlexString  `json:"orderId"`
	Dispensers []models.Dispenser `json:"dispensers"`
}

// DecodeHit reads one search hit into its order id and dispensers.
func DecodeHit(source json.RawMessage) (string, []models.Dispenser, error) {
	var doc scrapeDoc
	if err := json.Unmarshal(source, &doc); err != nil {
		return "", nil, fmt.Errorf("decode dispenser scrape: %w", err)
	}
	if doc.OrderID == "" {
		return "", nil, fmt.Errorf("dispenser scrape without %s", FieldOrderID)
	}
	return string(doc.OrderID), doc.Dispensers, nil
}

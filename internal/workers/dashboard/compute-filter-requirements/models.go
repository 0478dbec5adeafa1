// internal/workers/dashboard/compute-filter-requirements/models.go
package computefilterrequirements

import (
	"encoding/json"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/warnings"
)

type Input struct {
	Orders     json.RawMessage `json:"orders"`
	Dispensers json.RawMessage `json:"dispensers,omitempty"`
}

type Output struct {
	FilterNeeds    []filters.FilterNeed     `json:"filterNeeds"`
	Warnings       []warnings.FilterWarning `json:"warnings"`
	WarningSummary warnings.Summary         `json:"warningSummary"`
	FilterTotals   filters.Totals           `json:"filterTotals"`
	TotalBoxes     int                      `json:"totalBoxes"`
	FallbackOrders int                      `json:"fallbackOrders"`
}

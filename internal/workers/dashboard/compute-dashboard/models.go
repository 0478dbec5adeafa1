// internal/workers/dashboard/compute-dashboard/models.go
package computedashboard

import (
	"encoding/json"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/models"
)

type Input struct {
	Orders     json.RawMessage `json:"orders"`
	Dispensers json.RawMessage `json:"dispensers,omitempty"`
	// WeekStart and WeekEnd accept day names or 0-6; empty uses the configured week.
	WeekStart models.FlexString `json:"weekStart,omitempty"`
	WeekEnd   models.FlexString `json:"weekEnd,omitempty"`
	// Anchor is any date inside the current week; empty means today.
	Anchor   string `json:"anchor,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type Output struct {
	Dashboard          *engine.Dashboard `json:"dashboard"`
	DashboardSource    string            `json:"dashboardSource"`
	DashboardSignature string            `json:"dashboardSignature"`
}

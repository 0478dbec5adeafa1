package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/models"
)

type signatureInput struct {
	Orders     []models.WorkOrder       `json:"orders"`
	Dispensers models.DispenserSnapshot `json:"dispensers"`
	WeekStart  int                      `json:"weekStart"`
	WeekEnd    int                      `json:"weekEnd"`
	Day        string                   `json:"day"`
	Location   string                   `json:"location"`
}

// Signature identifies a request by content. The anchor only matters to the
// day, so every request made during one day for the same snapshot shares a
// signature. A zero anchor must be resolved by the caller first.
func Signature(req engine.Request) (string, error) {
	loc := req.Location
	if loc == nil {
		loc = req.Anchor.Location()
	}
	in := signatureInput{
		Orders:     req.Orders,
		Dispensers: req.Dispensers,
		WeekStart:  int(req.WeekStart),
		WeekEnd:    int(req.WeekEnd),
		Day:        req.Anchor.In(loc).Format(time.DateOnly),
		Location:   loc.String(),
	}
	// encoding/json sorts map keys, so equal content hashes equally.
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Package warnings turns per-order filter results into the severity-ranked
// warning list shown next to the filter requirements. Every order that could
// not be evaluated yields a warning, so an empty list always means nothing is
// needed.
package warnings

import (
	"fmt"
	"sort"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/models"
)

type Severity string

const (
	Low    Severity = "low"
	Medium Severity = "medium"
	High   Severity = "high"
)

const MissingDispenserMessage = "Missing dispenser data, cannot determine filter requirements"

// SeverityFrom maps the calculator's numeric severity onto the three levels.
func SeverityFrom(n float64) Severity {
	switch {
	case n > 7:
		return High
	case n > 3:
		return Medium
	default:
		return Low
	}
}

func (s Severity) rank() int {
	switch s {
	case High:
		return 0
	case Medium:
		return 1
	default:
		return 2
	}
}

type FilterWarning struct {
	Message              string             `json:"message"`
	Severity             Severity           `json:"severity"`
	OrderID              string             `json:"orderId"`
	StoreName            string             `json:"storeName"`
	PartNumber           string             `json:"partNumber,omitempty"`
	FilterType           filters.FilterType `json:"filterType,omitempty"`
	MissingDispenserData bool               `json:"missingDispenserData,omitempty"`
}

type Summary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Generate builds the warning list, sorted high to medium to low with ties in
// input order. A nil snapshot is treated as empty.
func Generate(results []filters.OrderResult, snapshot models.DispenserSnapshot) []FilterWarning {
	out := make([]FilterWarning, 0, len(results))
	for _, r := range results {
		order := r.Order
		store := order.DisplayName()

		if len(order.Dispensers) == 0 && len(r.Result.Warnings) == 0 && !snapshot.Has(order.ID) {
			out = append(out, FilterWarning{
				Message:              MissingDispenserMessage,
				Severity:             Medium,
				OrderID:              order.ID,
				StoreName:            store,
				MissingDispenserData: true,
			})
			continue
		}

		for _, w := range r.Result.Warnings {
			fw := FilterWarning{
				Message:    w.Message,
				Severity:   SeverityFrom(w.Severity),
				OrderID:    order.ID,
				StoreName:  store,
				PartNumber: w.PartNumber,
			}
			if w.PartNumber != "" {
				fw.FilterType = filters.ClassifyPart(w.PartNumber, r.Fuel.HasDEF)
			}
			if fw.Message == "" {
				fw.Message = requiredMessage(w.PartNumber)
			}
			out = append(out, fw)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.rank() < out[j].Severity.rank()
	})
	return out
}

func requiredMessage(partNumber string) string {
	if partNumber == "" {
		return "Filters required"
	}
	return fmt.Sprintf("%s filters required", partNumber)
}

func Summarize(ws []FilterWarning) Summary {
	var s Summary
	for _, w := range ws {
		switch w.Severity {
		case High:
			s.High++
		case Medium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

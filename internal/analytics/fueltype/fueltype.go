// Package fueltype looks for evidence of special fuel handling on a work order.
//
// Detection is a substring heuristic over free text. It is expected to miss
// orders whose phrasing is not in the keyword lists, and "def" will also match
// inside unrelated words ("default", "defective"). Tune the lists rather than the
// aggregation code when accuracy needs to change.
package fueltype

import (
	"strings"

	"fieldops-workers/internal/models"
)

var (
	DEFKeywords = []string{"def", "diesel exhaust fluid", "diesel emission fluid"}

	HighFlowKeywords = []string{"high flow", "high-flow", "highflow"}
)

type FuelTypes struct {
	HasDEF            bool `json:"hasDEF"`
	HasDieselHighFlow bool `json:"hasDieselHighFlow"`
}

// Detect scans instructions, then each dispenser's html, then each dispenser's
// field values. A flag, once set, is never cleared.
func Detect(order models.WorkOrder) FuelTypes {
	var ft FuelTypes
	ft.scan(order.Instructions)
	for _, d := range order.Dispensers {
		ft.scan(d.HTML)
	}
	for _, d := range order.Dispensers {
		for _, v := range d.Fields {
			ft.scan(v)
		}
	}
	return ft
}

func (ft *FuelTypes) scan(text string) {
	if text == "" || (ft.HasDEF && ft.HasDieselHighFlow) {
		return
	}
	lower := strings.ToLower(text)
	if !ft.HasDEF && containsAny(lower, DEFKeywords) {
		ft.HasDEF = true
	}
	if !ft.HasDieselHighFlow && containsAny(lower, HighFlowKeywords) {
		ft.HasDieselHighFlow = true
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

package filters

import "strings"

type FilterType string

const (
	PremierPlus    FilterType = "premierplus"
	PhaseCoalescer FilterType = "phasecoalescer"
	DEF            FilterType = "def"
	Particulate    FilterType = "particulate"
)

// Diesel reports whether the type is counted against the calculator's diesel
// total rather than its gas total.
func (t FilterType) Diesel() bool {
	return t == PhaseCoalescer || t == DEF
}

// UnitsPerBox is fixed by the packaging format for every filter type.
const UnitsPerBox = 6

// ClassifyPart maps a part number to its filter type. A "DEF" part only counts as
// a DEF filter on orders where DEF handling was detected.
func ClassifyPart(partNumber string, hasDEF bool) FilterType {
	pn := strings.ToUpper(partNumber)
	switch {
	case strings.Contains(pn, "PCP"):
		return PremierPlus
	case strings.Contains(pn, "PCN"):
		return PhaseCoalescer
	case strings.Contains(pn, "DEF") && hasDEF:
		return DEF
	default:
		return Particulate
	}
}

// FilterNeed is the purchase requirement for one part number across all orders.
type FilterNeed struct {
	PartNumber  string     `json:"partNumber"`
	FilterType  FilterType `json:"filterType"`
	Quantity    int        `json:"quantity"`
	Stores      []string   `json:"stores"`
	BoxesNeeded int        `json:"boxesNeeded"`
}

// Boxes rounds the quantity up to whole boxes.
func (n FilterNeed) Boxes() int {
	return (n.Quantity + UnitsPerBox - 1) / UnitsPerBox
}

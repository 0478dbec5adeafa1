// internal/models/dispenser.go
package models

import "encoding/json"

// Dispenser is equipment metadata attached to a work order. It has no identity of
// its own and is only read as evidence for fuel and meter detection.
type Dispenser struct {
	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	HTML   string `json:"html,omitempty"`
	Fields Fields `json:"fields,omitempty"`
}

// Fields holds free-text key/value attributes scraped from the dispenser page.
type Fields map[string]string

func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return err
		}
		out[k] = s
	}
	*f = out
	return nil
}

// DispenserSnapshot is the output of the separate dispenser scrape job, keyed by
// work order id.
type DispenserSnapshot map[string][]Dispenser

// Has reports whether the dispenser scrape confirmed equipment for the order.
func (s DispenserSnapshot) Has(orderID string) bool {
	if s == nil {
		return false
	}
	return len(s[orderID]) > 0
}

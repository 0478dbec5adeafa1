// internal/models/workorder.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WorkOrder is one job scraped from the field-service portal. Every field except
// ID is optional; the scraper fills whatever the portal exposed at scrape time.
type WorkOrder struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customerName"`
	StoreNumber   FlexString  `json:"storeNumber,omitempty"`
	ScheduledDate string      `json:"scheduledDate,omitempty"`
	Visits        *Visits     `json:"visits,omitempty"`
	CreatedDate   string      `json:"createdDate,omitempty"`
	Instructions  string      `json:"instructions,omitempty"`
	Dispensers    []Dispenser `json:"dispensers,omitempty"`
	Services      []Service   `json:"services,omitempty"`
}

type Visits struct {
	NextVisit *Visit `json:"nextVisit,omitempty"`
}

type Visit struct {
	Date string `json:"date,omitempty"`
}

type Service struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// NextVisitDate returns visits.nextVisit.date or "".
func (w WorkOrder) NextVisitDate() string {
	if w.Visits == nil || w.Visits.NextVisit == nil {
		return ""
	}
	return w.Visits.NextVisit.Date
}

// DisplayName is the store label used on the dashboard and in filter aggregates.
func (w WorkOrder) DisplayName() string {
	name := strings.TrimSpace(w.CustomerName)
	store := strings.TrimSpace(string(w.StoreNumber))
	if name == "" {
		if store != "" {
			return "#" + store
		}
		return w.ID
	}
	if store == "" || strings.Contains(name, store) {
		return name
	}
	return fmt.Sprintf("%s #%s", name, store)
}

// FlexString accepts JSON strings, numbers and booleans. The portal is not
// consistent about quoting store numbers and dispenser attributes.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	*f = FlexString(s)
	return nil
}

func scalarString(data []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		// nested values are kept as their JSON text
		return string(data), nil
	}
}

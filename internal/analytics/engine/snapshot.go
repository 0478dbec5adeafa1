package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"fieldops-workers/internal/common/validation"
	"fieldops-workers/internal/models"
)

// ErrSnapshotInvalid is the only error that stops a dashboard run.
var ErrSnapshotInvalid = errors.New("work order snapshot is invalid")

const workOrderSnapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {"type": "object"}
}`

const dispenserSnapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {"type": "object"}
  }
}`

var (
	orderSchema     = validation.MustCompile(workOrderSnapshotSchema)
	dispenserSchema = validation.MustCompile(dispenserSnapshotSchema)
)

// SnapshotError carries the schema violations behind ErrSnapshotInvalid.
type SnapshotError struct {
	Violations []string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSnapshotInvalid, e.Violations)
}

func (e *SnapshotError) Unwrap() error { return ErrSnapshotInvalid }

// ParseSnapshot decodes a scraped work order snapshot. The document must be an
// array of objects; inside each object, fields of an unexpected type are
// dropped rather than rejected.
func ParseSnapshot(raw []byte) ([]models.WorkOrder, error) {
	if res := orderSchema.ValidateJSON(raw); !res.Valid {
		return nil, &SnapshotError{Violations: res.GetErrorMessages()}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &SnapshotError{Violations: []string{err.Error()}}
	}

	orders := make([]models.WorkOrder, 0, len(items))
	for _, item := range items {
		orders = append(orders, decodeOrder(item))
	}
	return orders, nil
}

// ParseDispenserSnapshot decodes the dispenser scrape, an object mapping order
// ids to dispenser arrays. An empty input is an empty snapshot.
func ParseDispenserSnapshot(raw []byte) (models.DispenserSnapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.DispenserSnapshot{}, nil
	}
	if res := dispenserSchema.ValidateJSON(raw); !res.Valid {
		return nil, &SnapshotError{Violations: res.GetErrorMessages()}
	}

	var byOrder map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &byOrder); err != nil {
		return nil, &SnapshotError{Violations: []string{err.Error()}}
	}
	snap := make(models.DispenserSnapshot, len(byOrder))
	for id, items := range byOrder {
		ds := make([]models.Dispenser, 0, len(items))
		for _, item := range items {
			ds = append(ds, decodeDispenser(item))
		}
		snap[id] = ds
	}
	return snap, nil
}

func decodeOrder(raw json.RawMessage) models.WorkOrder {
	var o models.WorkOrder
	if err := json.Unmarshal(raw, &o); err == nil {
		return o
	}

	// Field by field, keeping whatever decodes.
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(raw, &fields)
	o = models.WorkOrder{}

	var id models.FlexString
	if json.Unmarshal(fields["id"], &id) == nil {
		o.ID = string(id)
	}
	var name models.FlexString
	if json.Unmarshal(fields["customerName"], &name) == nil {
		o.CustomerName = string(name)
	}
	_ = json.Unmarshal(fields["storeNumber"], &o.StoreNumber)
	o.ScheduledDate = lenientString(fields["scheduledDate"])
	o.CreatedDate = lenientString(fields["createdDate"])
	o.Instructions = lenientString(fields["instructions"])

	var visits models.Visits
	if json.Unmarshal(fields["visits"], &visits) == nil && visits.NextVisit != nil {
		o.Visits = &visits
	}
	if items, ok := fields["dispensers"]; ok {
		var list []json.RawMessage
		if json.Unmarshal(items, &list) == nil {
			for _, d := range list {
				o.Dispensers = append(o.Dispensers, decodeDispenser(d))
			}
		}
	}
	var services []models.Service
	if json.Unmarshal(fields["services"], &services) == nil {
		o.Services = services
	}
	return o
}

func decodeDispenser(raw json.RawMessage) models.Dispenser {
	var d models.Dispenser
	if err := json.Unmarshal(raw, &d); err == nil {
		return d
	}
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(raw, &fields)
	d = models.Dispenser{
		Make:  lenientString(fields["make"]),
		Model: lenientString(fields["model"]),
		HTML:  lenientString(fields["html"]),
	}
	_ = json.Unmarshal(fields["fields"], &d.Fields)
	return d
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s models.FlexString
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return string(s)
}

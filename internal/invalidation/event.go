// Package invalidation describes permit dataset change events and publishes
// them to Kafka.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpRefresh = "refresh"
	OpUpsert  = "upsert"
	OpDelete  = "delete"
)

// DatasetPermits names the mobile food facility permit dataset.
const DatasetPermits = "mobile_food_facility_permit"

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	Count   int       `json:"count,omitempty"`
}

func NewEvent(op, source string, count int) Event {
	return Event{
		Version: 1,
		Op:      op,
		Dataset: DatasetPermits,
		TS:      time.Now().UTC(),
		Source:  source,
		Count:   count,
	}
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpRefresh, OpUpsert, OpDelete:
	default:
		return fmt.Errorf("op must be refresh|upsert|delete")
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return fmt.Errorf("dataset is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	return nil
}

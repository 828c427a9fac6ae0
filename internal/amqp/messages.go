package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a committed record mutation.
type EventType string

const (
	EventRecordCreated EventType = "record.created"
	EventRecordUpdated EventType = "record.updated"
	EventRecordDeleted EventType = "record.deleted"
)

// LedgerEvent is published after a record mutation commits. It carries only
// identifiers; consumers read current state from the database.
type LedgerEvent struct {
	Type       EventType `json:"type"`
	RecordID   int64     `json:"record_id"`
	AccountIDs []int64   `json:"account_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerEvent builds an event for recordID touching the given accounts.
// Duplicate account ids are collapsed.
func NewLedgerEvent(t EventType, recordID int64, accountIDs ...int64) *LedgerEvent {
	seen := make(map[int64]bool, len(accountIDs))
	ids := make([]int64, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return &LedgerEvent{
		Type:       t,
		RecordID:   recordID,
		AccountIDs: ids,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *LedgerEvent) Validate() error {
	switch e.Type {
	case EventRecordCreated, EventRecordUpdated, EventRecordDeleted:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.RecordID <= 0 {
		return fmt.Errorf("invalid record id %d", e.RecordID)
	}
	if len(e.AccountIDs) == 0 {
		return fmt.Errorf("event for record %d names no account", e.RecordID)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

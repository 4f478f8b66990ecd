package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to a record.
type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventInvoicePaid     EventType = "expense.paid_invoice"
	EventInvoiceCreated  EventType = "invoice.created"
	EventIncomeCreated   EventType = "income.created"
	EventExchangeRateSet EventType = "rate.set"
)

// RecordEvent is a lightweight notification that a record was written to the
// backend. Consumers fetch details from the backend if they need them.
type RecordEvent struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id,omitempty"`
	Username  string    `json:"username"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordEvent creates an event stamped with the current time.
func NewRecordEvent(typ EventType, id, username, day string) *RecordEvent {
	return &RecordEvent{
		Type:      typ,
		ID:        id,
		Username:  username,
		Day:       day,
		Timestamp: time.Now().UTC(),
	}
}

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventInvoicePaid, EventInvoiceCreated, EventIncomeCreated, EventExchangeRateSet:
		return true
	}
	return false
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON decodes and validates an event.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}

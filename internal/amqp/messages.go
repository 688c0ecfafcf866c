package amqp

import (
	"encoding/json"
	"time"
)

// EventMessage is the envelope of a domain event sent to the broker. The routing key is
// the event type, so consumers bind to e.g. "budget.#" or "receipt.reconciled".
type EventMessage struct {
	Type       string          `json:"type"`
	TenantId   int             `json:"tenantId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

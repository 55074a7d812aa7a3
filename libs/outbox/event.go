// Package outbox implements the transactional outbox: events are written in
// the same transaction as the state change and relayed to Kafka later.
package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event is the envelope written to the outbox table. The Kafka topic name
// equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	BusinessID    string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload and assigns a fresh event id.
func NewEvent(eventType, aggregateType, aggregateID, businessID string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		BusinessID:    businessID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

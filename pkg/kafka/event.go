package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix namespaces every topic the service writes to.
const TopicPrefix = "lifedash"

// Event is the JSON envelope written as the Kafka message value.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in a version 1 envelope stamped with a new id and the
// current UTC time.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
	}, nil
}

// WithCorrelationID sets the correlation id and returns e.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// Validate reports the first missing envelope field. The aggregate id is the
// partition key, so an event without one would lose its ordering.
func (e *Event) Validate() error {
	switch {
	case e.EventID == "":
		return errors.New("event id is empty")
	case e.EventType == "":
		return errors.New("event type is empty")
	case e.AggregateID == "":
		return errors.New("aggregate id is empty")
	case e.Source == "":
		return errors.New("source is empty")
	}
	return nil
}

// Marshal encodes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}

// DecodeEvent parses a message value written by Producer.Publish.
func DecodeEvent(value []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// Topic joins the prefix, domain and action: Topic("auth", "user_registered")
// is "lifedash.auth.user_registered".
func Topic(domain, action string) string {
	return strings.Join([]string{TopicPrefix, domain, action}, ".")
}

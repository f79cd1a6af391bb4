package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/vehiclecard/internal/event/topic"
)

// Event is an immutable, typed event.
type Event[T any] struct {
	// Type is the event topic.
	Type topic.Topic

	// Payload carries the event-specific data.
	Payload T

	// Metadata holds identity and provenance.
	Metadata Metadata
}

// Metadata is attached to every event.
type Metadata struct {
	// ID uniquely identifies this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source names the publishing component.
	Source string

	// CorrelationID links related events, e.g. a toast to the action that
	// produced it.
	CorrelationID string
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic implements TopicProvider.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata implements MetadataProvider.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// WithCorrelation returns a copy of the event with a correlation ID.
func (e Event[T]) WithCorrelation(correlationID string) Event[T] {
	e.Metadata.CorrelationID = correlationID
	return e
}

// TopicProvider is implemented by anything publishable on the bus.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// MetadataProvider is implemented by events carrying metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

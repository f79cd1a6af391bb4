package event

import (
	"sync/atomic"

	"github.com/dshills/vehiclecard/internal/event/topic"
)

// Subscription is a registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed pattern.
	Topic() topic.Topic

	// IsActive reports whether the subscription still receives events.
	IsActive() bool
}

type subscription struct {
	id        string
	pattern   topic.Topic
	handler   Handler
	once      bool
	cancelled atomic.Bool
}

func (s *subscription) ID() string         { return s.id }
func (s *subscription) Topic() topic.Topic { return s.pattern }
func (s *subscription) IsActive() bool     { return !s.cancelled.Load() }

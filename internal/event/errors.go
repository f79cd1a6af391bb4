package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event bus.
var (
	// ErrBusClosed is returned when publishing or subscribing on a closed bus.
	ErrBusClosed = errors.New("event: bus is closed")

	// ErrInvalidTopic is returned for empty or malformed topics.
	ErrInvalidTopic = errors.New("event: invalid topic")

	// ErrInvalidEvent is returned when a published value carries no topic.
	ErrInvalidEvent = errors.New("event: invalid event")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("event: handler cannot be nil")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
	ErrSubscriptionNotFound = errors.New("event: subscription not found")

	// ErrHandlerPanic matches any *PanicError.
	ErrHandlerPanic = errors.New("event: handler panicked")
)

// HandlerError wraps an error returned by a subscriber.
type HandlerError struct {
	SubscriptionID string
	Topic          string
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("event: handler %s on %s: %v", e.SubscriptionID, e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError reports a recovered subscriber panic.
type PanicError struct {
	SubscriptionID string
	Topic          string
	Value          any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("event: handler %s on %s panicked: %v", e.SubscriptionID, e.Topic, e.Value)
}

// Is lets errors.Is match ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

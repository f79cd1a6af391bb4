package event

import "context"

// Handler processes a published event. The event is type-erased; use
// Typed or a type switch to recover the payload.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Typed returns a handler that only receives events whose payload is T.
// Events with other payloads are ignored.
func Typed[T any](fn func(ctx context.Context, event Event[T]) error) HandlerFunc {
	return func(ctx context.Context, e any) error {
		typed, ok := e.(Event[T])
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}
}

// PanicHandler observes recovered handler panics.
type PanicHandler func(event any, recovered any)

package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/vehiclecard/internal/event/topic"
)

// Bus delivers events synchronously to every matching subscription.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
	config busConfig

	published atomic.Uint64
	delivered atomic.Uint64
	failures  atomic.Uint64
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Subscriptions   int
	EventsPublished uint64
	EventsDelivered uint64
	HandlerFailures uint64
}

// NewBus creates an open bus.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Bus{config: config}
}

// Subscribe registers h for every event whose topic matches pattern.
func (b *Bus) Subscribe(pattern topic.Topic, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: h,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// SubscribeFunc registers a function handler.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn, opts...)
}

// Unsubscribe removes a subscription. It is safe to call from inside a
// handler.
func (b *Bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.ID() {
			s.cancelled.Store(true)
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Publish delivers e to every matching subscription in registration order.
// Handler errors and recovered panics are joined into the returned error;
// delivery to remaining subscribers always continues.
func (b *Bus) Publish(ctx context.Context, e TopicProvider) error {
	if e == nil {
		return ErrInvalidEvent
	}
	t := e.EventTopic()
	if !t.IsValid() || t.IsWildcard() {
		return ErrInvalidTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if t.Matches(s.pattern) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)

	var errs []error
	for _, s := range targets {
		if !s.IsActive() {
			continue
		}
		if s.once {
			if !s.cancelled.CompareAndSwap(false, true) {
				continue
			}
			_ = b.Unsubscribe(s)
		}
		if err := b.deliver(ctx, s, t, e); err != nil {
			b.failures.Add(1)
			b.config.logger.Warn("event handler failed",
				"topic", t.String(),
				"subscription", s.id,
				"error", err)
			errs = append(errs, err)
			continue
		}
		b.delivered.Add(1)
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, s *subscription, t topic.Topic, e any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if b.config.panicHandler != nil {
				b.config.panicHandler(e, r)
			}
			err = &PanicError{SubscriptionID: s.id, Topic: t.String(), Value: r}
		}
	}()

	if herr := s.handler.Handle(ctx, e); herr != nil {
		return &HandlerError{SubscriptionID: s.id, Topic: t.String(), Err: herr}
	}
	return nil
}

// Close drops every subscription and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.cancelled.Store(true)
	}
	b.subs = nil
	b.closed = true
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Subscriptions:   n,
		EventsPublished: b.published.Load(),
		EventsDelivered: b.delivered.Load(),
		HandlerFailures: b.failures.Load(),
	}
}

package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/vehiclecard/internal/cache"
	"github.com/dshills/vehiclecard/internal/clock"
)

// ErrNoBackend is returned when a service has no backend to talk to.
var ErrNoBackend = errors.New("template: no backend")

// Backend evaluates templates. Raw results are whatever the backend
// rendered: strings, booleans, numbers or nil.
type Backend interface {
	// RenderTemplate evaluates template once.
	RenderTemplate(ctx context.Context, template string) (any, error)

	// SubscribeTemplate starts a push subscription that calls onPush with
	// every new result until the returned handle is released.
	SubscribeTemplate(ctx context.Context, template string, onPush func(raw any)) (Handle, error)
}

// Metrics observes a Service.
type Metrics interface {
	cache.Metrics
	Push()
	ParseFallback()
	EvaluationFailed()
	SubscriptionsChanged(delta int)
}

type noopMetrics struct {
	cache.NoopMetrics
}

func (noopMetrics) Push()                    {}
func (noopMetrics) ParseFallback()           {}
func (noopMetrics) EvaluationFailed()        {}
func (noopMetrics) SubscriptionsChanged(int) {}

// DefaultSettleTimeout bounds how long teardown waits for a pending handle.
const DefaultSettleTimeout = 2 * time.Second

// Option configures a Service.
type Option func(*settings)

// FailureFunc is told about a subscription the backend rejected after
// Subscribe already returned.
type FailureFunc func(key Key, template string, err error)

type settings struct {
	name          string
	ttl           time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	metrics       Metrics
	settleTimeout time.Duration
	onFailure     FailureFunc
}

// WithName names the service in logs.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithTTL sets the cache freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSettleTimeout bounds how long UnsubscribeAll waits on each pending
// handle.
func WithSettleTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.settleTimeout = d
		}
	}
}

// WithFailureHandler registers fn for subscriptions rejected after
// acknowledgement was pending.
func WithFailureHandler(fn FailureFunc) Option {
	return func(s *settings) { s.onFailure = fn }
}

type subscription struct {
	template string
	handle   Handle
	gen      uint64
}

// Service keeps typed template values synchronized with a backend.
type Service[T comparable] struct {
	name          string
	parse         Parser[T]
	def           T
	clock         clock.Clock
	logger        *slog.Logger
	metrics       Metrics
	settleTimeout time.Duration
	onFailure     FailureFunc

	// subMu serializes subscription replacement so that at most one live
	// handle exists per key.
	subMu sync.Mutex

	mu         sync.Mutex
	backend    Backend
	backendGen uint64
	gen        uint64
	subs       map[Key]*subscription
	results    map[Key]T

	cache  *cache.TTL[Key, T]
	flight singleflight.Group
}

// New creates a service that parses results with parse and substitutes def
// for anything unusable.
func New[T comparable](backend Backend, parse Parser[T], def T, opts ...Option) *Service[T] {
	st := settings{
		name:          "template",
		ttl:           cache.DefaultTTL,
		clock:         clock.Real(),
		logger:        slog.New(slog.DiscardHandler),
		metrics:       noopMetrics{},
		settleTimeout: DefaultSettleTimeout,
	}
	for _, opt := range opts {
		opt(&st)
	}

	return &Service[T]{
		name:          st.name,
		parse:         parse,
		def:           def,
		clock:         st.clock,
		logger:        st.logger.With("service", st.name),
		metrics:       st.metrics,
		settleTimeout: st.settleTimeout,
		onFailure:     st.onFailure,
		backend:       backend,
		subs:          make(map[Key]*subscription),
		results:       make(map[Key]T),
		cache:         cache.New[Key, T](st.ttl, cache.WithClock(st.clock), cache.WithMetrics(st.metrics)),
	}
}

// Name returns the service name.
func (s *Service[T]) Name() string {
	return s.name
}

// Default returns the value substituted for failures.
func (s *Service[T]) Default() T {
	return s.def
}

// EvaluateOnce renders template once and returns the parsed result. Results
// are cached for the service TTL; concurrent calls for the same template
// share one backend request. Any failure yields the default value.
func (s *Service[T]) EvaluateOnce(ctx context.Context, template string) T {
	key := EvalKey(template)
	if ent, ok := s.cache.Get(key); ok {
		return ent.Value
	}

	v, err, _ := s.flight.Do(template, func() (any, error) {
		s.mu.Lock()
		backend, gen := s.backend, s.backendGen
		s.mu.Unlock()

		if backend == nil {
			return nil, ErrNoBackend
		}
		raw, err := backend.RenderTemplate(ctx, template)
		if err != nil {
			return nil, err
		}

		value, rawText := s.parseValue(key, raw)

		s.mu.Lock()
		current := s.backendGen == gen
		s.mu.Unlock()
		if current {
			s.cache.Set(key, value, rawText)
		}
		return value, nil
	})
	if err != nil {
		s.metrics.EvaluationFailed()
		s.logger.Error("template evaluation failed", "template", template, "error", err)
		return s.def
	}
	return v.(T)
}

// Subscribe establishes a push subscription for template under key. A
// previous subscription for key is settled first; errors from that step are
// ignored. onChange is called whenever a push changes the stored result.
//
// A setup failure is logged and returned, and leaves key unsubscribed.
func (s *Service[T]) Subscribe(ctx context.Context, template string, key Key, onChange func()) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	prev := s.subs[key]
	delete(s.subs, key)
	s.gen++
	gen := s.gen
	backend := s.backend
	s.mu.Unlock()

	if prev != nil {
		sctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
		if err := settle(sctx, prev.handle); err != nil {
			s.logger.Debug("releasing previous subscription failed", "key", key.String(), "error", err)
		}
		cancel()
		if prev.handle != nil {
			s.metrics.SubscriptionsChanged(-1)
		}
	}

	if backend == nil {
		s.logger.Error("template subscription failed", "key", key.String(), "error", ErrNoBackend)
		return fmt.Errorf("subscribe %s: %w", key, ErrNoBackend)
	}

	// Register before calling the backend; a push may arrive before
	// SubscribeTemplate returns.
	s.mu.Lock()
	s.subs[key] = &subscription{template: template, gen: gen}
	s.mu.Unlock()

	handle, err := backend.SubscribeTemplate(ctx, template, func(raw any) {
		s.handlePush(key, gen, raw, onChange)
	})
	if err != nil {
		s.mu.Lock()
		if sub, ok := s.subs[key]; ok && sub.gen == gen {
			delete(s.subs, key)
		}
		s.mu.Unlock()
		s.metrics.EvaluationFailed()
		s.logger.Error("template subscription failed", "key", key.String(), "template", template, "error", err)
		return fmt.Errorf("subscribe %s: %w", key, err)
	}

	s.mu.Lock()
	sub, ok := s.subs[key]
	if ok && sub.gen == gen {
		sub.handle = handle
	}
	s.mu.Unlock()
	if !ok || sub.gen != gen {
		// Torn down while subscribing.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settleTimeout)
		_ = settle(sctx, handle)
		cancel()
		return nil
	}
	s.metrics.SubscriptionsChanged(1)

	if p, ok := handle.(*PendingHandle); ok {
		go s.watchPending(key, gen, template, p)
	}
	return nil
}

// watchPending drops the subscription for key when the backend rejects it
// after Subscribe returned.
func (s *Service[T]) watchPending(key Key, gen uint64, template string, p *PendingHandle) {
	<-p.Done()
	_, err := p.Resolve(context.Background())
	if err == nil {
		return
	}

	s.mu.Lock()
	sub, ok := s.subs[key]
	current := ok && sub.gen == gen
	if current {
		delete(s.subs, key)
	}
	s.mu.Unlock()
	if !current {
		return
	}

	s.metrics.EvaluationFailed()
	s.metrics.SubscriptionsChanged(-1)
	s.logger.Error("template subscription failed", "key", key.String(), "template", template, "error", err)

	if s.onFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("failure callback panicked", "key", key.String(), "panic", r)
		}
	}()
	s.onFailure(key, template, err)
}

func (s *Service[T]) handlePush(key Key, gen uint64, raw any, onChange func()) {
	value, rawText := s.parseValue(key, raw)

	s.mu.Lock()
	sub, ok := s.subs[key]
	if !ok || sub.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("dropping push from replaced subscription", "key", key.String())
		return
	}
	prev, had := s.results[key]
	s.results[key] = value
	s.mu.Unlock()

	s.cache.Set(key, value, rawText)
	s.metrics.Push()

	if (!had || prev != value) && onChange != nil {
		s.notify(key, onChange)
	}
}

func (s *Service[T]) notify(key Key, onChange func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("change callback panicked", "key", key.String(), "panic", r)
		}
	}()
	onChange()
}

// Result returns the value for key: the cached value while fresh, otherwise
// the last pushed value.
func (s *Service[T]) Result(key Key) (T, bool) {
	if ent, ok := s.cache.Get(key); ok {
		return ent.Value, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.results[key]
	return v, ok
}

// HasSubscription reports whether key has a live or in-progress subscription.
func (s *Service[T]) HasSubscription(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[key]
	return ok
}

// Subscriptions returns the number of subscribed keys.
func (s *Service[T]) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// UnsubscribeAll releases every subscription and clears all state. It never
// panics; release failures are ignored.
func (s *Service[T]) UnsubscribeAll() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("unsubscribe panicked", "panic", r)
		}
	}()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[Key]*subscription)
	s.results = make(map[Key]T)
	s.mu.Unlock()
	s.cache.Clear()

	for key, sub := range subs {
		if sub.handle == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
		if err := settle(ctx, sub.handle); err != nil {
			s.logger.Debug("release failed during teardown", "key", key.String(), "error", err)
		}
		cancel()
		s.metrics.SubscriptionsChanged(-1)
	}
}

// UpdateBackend replaces the backend used for evaluations and drops cached
// one-shot results. Push results are kept.
func (s *Service[T]) UpdateBackend(backend Backend) {
	s.mu.Lock()
	s.backend = backend
	s.backendGen++
	s.mu.Unlock()

	s.cache.DeleteFunc(func(k Key) bool { return k.Kind == KeyEval })
}

func (s *Service[T]) parseValue(key Key, raw any) (T, string) {
	rawText := rawString(raw)
	v, err := s.parse(key, raw)
	if err != nil {
		s.metrics.ParseFallback()
		s.logger.Warn("unusable template result, using default",
			"key", key.String(), "raw", rawText, "error", err)
		return s.def, rawText
	}
	return v, rawText
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/vehiclecard/internal/clock"
	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
)

// DefaultToastDuration is how long error toasts stay visible.
const DefaultToastDuration = 5 * time.Second

const source = "action"

// ServiceCaller calls Home Assistant services. data is a JSON object.
type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data []byte) error
}

// StateReader reports the last known state of an entity.
type StateReader interface {
	State(entityID string) (string, bool)
}

// Publisher publishes frontend notifications.
type Publisher interface {
	Publish(ctx context.Context, e event.TopicProvider) error
}

// Metrics receives execution counters.
type Metrics interface {
	ActionExecuted(action string, ok bool)
}

type noopMetrics struct{}

func (noopMetrics) ActionExecuted(string, bool) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCaller sets the service caller.
func WithCaller(c ServiceCaller) Option {
	return func(d *Dispatcher) { d.caller = c }
}

// WithStates sets the entity state source used by trigger actions.
func WithStates(s StateReader) Option {
	return func(d *Dispatcher) { d.states = s }
}

// WithPublisher sets where frontend notifications go.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithClock sets the clock used for statistics.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// Dispatcher executes resolved actions.
type Dispatcher struct {
	mu     sync.RWMutex
	caller ServiceCaller

	states        StateReader
	publisher     Publisher
	history       *History
	clock         clock.Clock
	logger        *slog.Logger
	metrics       Metrics
	stats         *Stats
	toastDuration time.Duration
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		history:       NewHistory(0),
		clock:         clock.Real(),
		logger:        slog.New(slog.DiscardHandler),
		metrics:       noopMetrics{},
		stats:         NewStats(),
		toastDuration: DefaultToastDuration,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetCaller replaces the service caller, e.g. after a reconnect.
func (d *Dispatcher) SetCaller(c ServiceCaller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caller = c
}

// History returns the navigation history.
func (d *Dispatcher) History() *History {
	return d.history
}

// Stats returns execution statistics.
func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Run resolves cfg against defaultEntity and executes the result.
func (d *Dispatcher) Run(ctx context.Context, cfg Config, defaultEntity string) error {
	desc, err := Resolve(cfg, defaultEntity)
	if err != nil {
		name := normalizeName(cfg.Action)
		if name == "" {
			name = "unknown"
		}
		d.record(name, d.clock.Now(), err)
		d.fail(ctx, uuid.NewString(), name, defaultEntity, err)
		return err
	}
	return d.Execute(ctx, desc)
}

// Execute carries out desc. Failures are logged, shown as an error toast and
// returned. Every event published for one execution, the error toast
// included, carries the same correlation ID.
func (d *Dispatcher) Execute(ctx context.Context, desc Descriptor) error {
	if desc == nil {
		desc = None{}
	}
	run := uuid.NewString()
	start := d.clock.Now()
	err := d.execute(ctx, run, desc)
	d.record(desc.Name(), start, err)
	if err != nil {
		d.fail(ctx, run, desc.Name(), entityOf(desc), err)
		return err
	}
	d.logger.Debug("action executed", "action", desc.Name(), "entity", entityOf(desc), "run", run)
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, run string, desc Descriptor) error {
	switch a := desc.(type) {
	case None:
		return nil

	case Toggle:
		return d.call(ctx, "homeassistant", "toggle", entityData(a.EntityID))

	case MoreInfo:
		return d.publish(ctx, event.NewEvent(events.TopicMoreInfo, events.MoreInfo{EntityID: a.EntityID}, source).WithCorrelation(run))

	case Navigate:
		d.history.Push(a.Path)
		return d.publish(ctx, event.NewEvent(events.TopicNavigate, events.Navigate{Path: a.Path}, source).WithCorrelation(run))

	case OpenURL:
		return d.publish(ctx, event.NewEvent(events.TopicOpenURL, events.OpenURL{URL: a.URL, NewTab: a.NewTab}, source).WithCorrelation(run))

	case LocationMap:
		return d.publish(ctx, event.NewEvent(events.TopicLocationMap, events.LocationMap{EntityID: a.EntityID}, source).WithCorrelation(run))

	case CallService:
		return d.call(ctx, a.Domain, a.Service, a.Data)

	case PerformAction:
		data := a.Data
		if a.EntityID != "" {
			var err error
			if data, err = withEntity(dataOrEmpty(data), a.EntityID); err != nil {
				return invalid(NamePerformAction, "bad service data", err)
			}
		}
		return d.call(ctx, a.Domain, a.Service, data)

	case Trigger:
		domain, service := d.triggerService(a.EntityID)
		return d.call(ctx, domain, service, entityData(a.EntityID))
	}

	return invalid(desc.Name(), "unsupported descriptor", ErrUnknownAction)
}

// triggerService picks the service that activates entityID.
func (d *Dispatcher) triggerService(entityID string) (domain, service string) {
	domain, _, _ = strings.Cut(entityID, ".")
	switch domain {
	case "automation":
		return "automation", "trigger"
	case "script":
		return "script", "turn_on"
	case "button", "input_button":
		return domain, "press"
	case "lock":
		if d.states != nil {
			if state, ok := d.states.State(entityID); ok && state == "locked" {
				return "lock", "unlock"
			}
		}
		return "lock", "lock"
	default:
		return "homeassistant", "toggle"
	}
}

func (d *Dispatcher) call(ctx context.Context, domain, service string, data []byte) error {
	d.mu.RLock()
	caller := d.caller
	d.mu.RUnlock()
	if caller == nil {
		return ErrNoCaller
	}
	if err := caller.CallService(ctx, domain, service, dataOrEmpty(data)); err != nil {
		return fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, e event.TopicProvider) error {
	if d.publisher == nil {
		return nil
	}
	return d.publisher.Publish(ctx, e)
}

func (d *Dispatcher) record(name string, start time.Time, err error) {
	d.stats.Record(name, start, d.clock.Now().Sub(start), err)
	d.metrics.ActionExecuted(name, err == nil)
}

func (d *Dispatcher) fail(ctx context.Context, run, name, entity string, err error) {
	d.logger.Error("action failed", "action", name, "entity", entity, "run", run, "error", err)

	toast := events.Toast{
		ID:       uuid.NewString(),
		Message:  toastMessage(name, err),
		Type:     events.ToastError,
		Duration: d.toastDuration,
	}
	if perr := d.publish(ctx, event.NewEvent(events.TopicToast, toast, source).WithCorrelation(run)); perr != nil {
		d.logger.Warn("toast not delivered", "error", perr)
	}
}

func toastMessage(name string, err error) string {
	var cerr *ConfigError
	switch {
	case errors.As(err, &cerr):
		return fmt.Sprintf("Invalid %s action: %s", cerr.Action, cerr.Reason)
	case errors.Is(err, ErrNoCaller):
		return "Not connected to Home Assistant"
	default:
		return fmt.Sprintf("Action %s failed: %v", name, err)
	}
}

func entityOf(desc Descriptor) string {
	switch a := desc.(type) {
	case Toggle:
		return a.EntityID
	case MoreInfo:
		return a.EntityID
	case LocationMap:
		return a.EntityID
	case Trigger:
		return a.EntityID
	case PerformAction:
		return a.EntityID
	}
	return ""
}

func entityData(entityID string) []byte {
	data, _ := withEntity([]byte("{}"), entityID)
	return data
}

func dataOrEmpty(data []byte) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}

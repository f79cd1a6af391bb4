package card

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dshills/vehiclecard/internal/action"
	"github.com/dshills/vehiclecard/internal/clock"
	"github.com/dshills/vehiclecard/internal/config"
	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/gesture"
	"github.com/dshills/vehiclecard/internal/metrics"
	"github.com/dshills/vehiclecard/internal/template"
)

// Errors returned by Card operations.
var (
	// ErrAttached is returned by Attach when the card is already attached.
	ErrAttached = errors.New("card: already attached")

	// ErrNoConfig is returned when a nil configuration is passed.
	ErrNoConfig = errors.New("card: no configuration")
)

// source tags events the card publishes.
const source = "card"

// Deps are the collaborators a Card is wired to. Missing
// collaborators are defaulted: a card without a Backend renders defaults and a card without a Caller
// reports service actions as failed.
type Deps struct {
	Backend template.Backend
	Caller  action.ServiceCaller
	States  action.StateReader
	Bus     *event.Bus
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Card is the host of one vehicle status card.
type Card struct {
	mu   sync.Mutex
	cfg  *config.Config
	deps Deps

	logger     *slog.Logger
	dispatcher *action.Dispatcher

	active *template.Service[bool]
	color  *template.Service[string]
	icon   *template.Service[string]

	// Per-attachment state, rebuilt by Attach.
	attached bool
	ctx      context.Context
	cancel   context.CancelFunc
	gestures *gesture.Disambiguator
	targets  map[gesture.Key]*target
	bindings *bindings
	subs     *subscriptionManager
	inflight sync.WaitGroup
	notice   *notice

	renders chan struct{}
}

// New creates a detached card for cfg.
func New(cfg *config.Config, deps Deps) (*Card, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Card{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.With("component", "card"),
		renders: make(chan struct{}, 1),
	}

	dispatchOpts := []action.Option{
		action.WithPublisher(deps.Bus),
		action.WithClock(deps.Clock),
		action.WithLogger(deps.Logger),
	}
	if deps.Caller != nil {
		dispatchOpts = append(dispatchOpts, action.WithCaller(deps.Caller))
	}
	if deps.States != nil {
		dispatchOpts = append(dispatchOpts, action.WithStates(deps.States))
	}
	if deps.Metrics != nil {
		dispatchOpts = append(dispatchOpts, action.WithMetrics(deps.Metrics))
	}
	c.dispatcher = action.New(dispatchOpts...)

	c.active = template.NewActiveService(deps.Backend, c.serviceOptions("active", func(ctx context.Context, tpl string) {
		c.active.EvaluateOnce(ctx, tpl)
	})...)
	c.color = template.NewColorService(deps.Backend, c.serviceOptions("color", func(ctx context.Context, tpl string) {
		c.color.EvaluateOnce(ctx, tpl)
	})...)
	c.icon = template.NewIconService(deps.Backend, c.serviceOptions("icon", func(ctx context.Context, tpl string) {
		c.icon.EvaluateOnce(ctx, tpl)
	})...)
	return c, nil
}

func (c *Card) serviceOptions(name string, evaluate func(context.Context, string)) []template.Option {
	opts := []template.Option{
		template.WithTTL(c.cfg.Templates.TTL.Std()),
		template.WithClock(c.deps.Clock),
		template.WithLogger(c.deps.Logger),
		template.WithFailureHandler(func(key template.Key, tpl string, _ error) {
			c.fallback(name+" "+key.String(), tpl, evaluate)
		}),
	}
	if c.deps.Metrics != nil {
		opts = append(opts, template.WithMetrics(c.deps.Metrics.Template(name)))
	}
	return opts
}

// Config returns the configuration in use.
func (c *Card) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Dispatcher returns the action dispatcher, which outlives attachments so
// navigation history and statistics survive a reload.
func (c *Card) Dispatcher() *action.Dispatcher {
	return c.dispatcher
}

// Bus returns the event bus the card publishes on.
func (c *Card) Bus() *event.Bus {
	return c.deps.Bus
}

// Attached reports whether the card is attached.
func (c *Card) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Attach binds every interactive target, subscribes every configured
// template and registers the bus handlers. Template failures are logged
// and leave the affected values at their defaults; only bus errors fail
// the attachment.
func (c *Card) Attach(ctx context.Context) error {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return ErrAttached
	}
	cfg := c.cfg

	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.gestures = gesture.New(c.gestureOptions(cfg)...)
	c.targets = buildTargets(cfg)
	for key, t := range c.targets {
		c.gestures.Bind(key, t.bindings())
	}
	for _, g := range cfg.Card.IconGroups {
		if g.Confirmation {
			c.gestures.SetConfirmation(g.Name, true)
		}
	}
	c.subs = newSubscriptionManager(c)
	if err := c.subs.setupSubscriptions(); err != nil {
		c.subs.cleanup()
		c.gestures.Close()
		c.cancel()
		c.mu.Unlock()
		return err
	}
	c.bindings = collectBindings(cfg)
	c.attached = true
	b, actx := c.bindings, c.ctx
	c.mu.Unlock()

	sctx, stop := joinCancel(actx, ctx)
	c.subscribeTemplates(sctx, b)
	stop()
	c.logger.Info("card attached", "name", cfg.Card.Name, "targets", len(c.targets), "templates", b.len())
	c.requestRender("attach")
	return nil
}

func (c *Card) gestureOptions(cfg *config.Config) []gesture.Option {
	opts := []gesture.Option{
		gesture.WithClock(c.deps.Clock),
		gesture.WithTiming(cfg.Gesture.Timing()),
		gesture.WithTouchCapable(cfg.Gesture.TouchCapable),
		gesture.WithLogger(c.deps.Logger),
		gesture.WithFire(c.fire),
		gesture.WithPrompt(c.prompt),
	}
	if c.deps.Metrics != nil {
		opts = append(opts, gesture.WithMetrics(c.deps.Metrics))
	}
	return opts
}

// Detach stops every gesture timer, releases every template subscription
// and removes the bus handlers. It waits for running actions, whose
// context it cancels, and is a no-op on a detached card.
func (c *Card) Detach() {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return
	}
	c.attached = false
	gestures, subs, cancel := c.gestures, c.subs, c.cancel
	c.targets = nil
	c.bindings = nil
	c.mu.Unlock()

	gestures.Close()
	cancel()
	c.active.UnsubscribeAll()
	c.color.UnsubscribeAll()
	c.icon.UnsubscribeAll()
	subs.cleanup()
	c.inflight.Wait()
	c.logger.Info("card detached")
}

// Reload detaches, adopts cfg and attaches again if the card was attached.
func (c *Card) Reload(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return ErrNoConfig
	}
	wasAttached := c.Attached()
	c.Detach()

	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	if wasAttached {
		if err := c.Attach(ctx); err != nil {
			return err
		}
	}
	_ = c.deps.Bus.Publish(ctx, event.NewEvent(events.TopicReloaded, events.Render{Reason: "reload"}, source))
	return nil
}

// SetBackend points the card at a new backend, for example after a
// reconnect. An attached card resubscribes its templates on b.
func (c *Card) SetBackend(ctx context.Context, b template.Backend) {
	c.mu.Lock()
	c.deps.Backend = b
	c.mu.Unlock()

	c.active.UpdateBackend(b)
	c.color.UpdateBackend(b)
	c.icon.UpdateBackend(b)
	if caller, ok := b.(action.ServiceCaller); ok {
		c.dispatcher.SetCaller(caller)
	}

	c.mu.Lock()
	bs, actx := c.bindings, c.ctx
	attached := c.attached
	c.mu.Unlock()
	if attached && bs != nil {
		sctx, stop := joinCancel(actx, ctx)
		c.subscribeTemplates(sctx, bs)
		stop()
	}
}

// joinCancel returns a child of parent that is also cancelled with other.
func joinCancel(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fallback evaluates tpl once after its subscription was rejected, so the
// key shows a value until the cache entry expires.
func (c *Card) fallback(reason, tpl string, evaluate func(context.Context, string)) {
	c.mu.Lock()
	ctx, attached := c.ctx, c.attached
	c.mu.Unlock()
	if !attached {
		return
	}
	evaluate(ctx, tpl)
	c.requestRender(reason)
}

// HandleInput feeds a gesture event to the card.
func (c *Card) HandleInput(ev gesture.Event) {
	c.mu.Lock()
	g := c.gestures
	attached := c.attached
	c.mu.Unlock()
	if attached {
		g.Handle(ev)
	}
}

// DocumentClick reports a click anywhere on the surface. clicked is the
// target under the pointer, or the zero Key for empty space.
func (c *Card) DocumentClick(clicked gesture.Key) {
	c.mu.Lock()
	g := c.gestures
	attached := c.attached
	c.mu.Unlock()
	if attached {
		g.DocumentClick(clicked)
		c.requestRender("document click")
	}
}

// Invalidate asks for a redraw, for example after an entity state changed.
func (c *Card) Invalidate(reason string) {
	c.requestRender(reason)
}

// Renders delivers a value whenever the card should be redrawn. Requests
// that arrive while one is pending are coalesced.
func (c *Card) Renders() <-chan struct{} {
	return c.renders
}

func (c *Card) requestRender(reason string) {
	_ = c.deps.Bus.Publish(context.Background(), event.NewEvent(events.TopicRender, events.Render{Reason: reason}, source))
}

func (c *Card) signalRender() {
	select {
	case c.renders <- struct{}{}:
	default:
	}
}

// fire runs the action bound to kind on target.
func (c *Card) fire(key gesture.Key, kind gesture.Kind) {
	c.mu.Lock()
	t, ok := c.targets[key]
	ctx := c.ctx
	if ok && c.attached {
		c.inflight.Add(1)
	}
	attached := c.attached
	c.mu.Unlock()
	if !ok || !attached {
		return
	}

	cfg := t.action(kind)
	go func() {
		defer c.inflight.Done()
		_ = c.dispatcher.Run(ctx, cfg, t.entity)
		c.requestRender("action")
	}()
}

// prompt announces an armed confirmation.
func (c *Card) prompt(arm gesture.Key) {
	c.mu.Lock()
	t := c.targets[arm.Target()]
	expires := c.cfg.Gesture.ConfirmExpiry.Std()
	c.mu.Unlock()

	msg := "Tap again to confirm"
	if t != nil && t.name != "" {
		msg = "Tap " + t.name + " again to confirm"
	}
	_ = c.deps.Bus.Publish(context.Background(), event.NewEvent(events.TopicConfirmPrompt, events.ConfirmPrompt{
		Group:    arm.Group,
		EntityID: arm.Entity,
		Message:  msg,
		Expires:  expires,
	}, source))
}

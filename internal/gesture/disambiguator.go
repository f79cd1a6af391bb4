package gesture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/vehiclecard/internal/clock"
)

// Metrics receives gesture counters.
type Metrics interface {
	GestureFired(kind string)
	ConfirmationArmed()
}

type noopMetrics struct{}

func (noopMetrics) GestureFired(string) {}
func (noopMetrics) ConfirmationArmed()  {}

// Option configures a Disambiguator.
type Option func(*Disambiguator)

// WithClock sets the clock used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(d *Disambiguator) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithTiming overrides the gesture thresholds. Zero fields keep their
// defaults.
func WithTiming(t Timing) Option {
	return func(d *Disambiguator) {
		d.timing = t.withDefaults()
	}
}

// WithTouchCapable declares that the runtime delivers touch events, which
// enables pointer deduplication.
func WithTouchCapable(capable bool) Option {
	return func(d *Disambiguator) {
		d.touchCapable = capable
	}
}

// WithFire sets the callback invoked for every resolved gesture.
func WithFire(fn func(target Key, kind Kind)) Option {
	return func(d *Disambiguator) {
		d.fire = fn
	}
}

// WithPrompt sets the callback invoked when a target is armed for
// confirmation.
func WithPrompt(fn func(arm Key)) Option {
	return func(d *Disambiguator) {
		d.prompt = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Disambiguator) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(d *Disambiguator) {
		if m != nil {
			d.metrics = m
		}
	}
}

// Disambiguator resolves raw input events into gestures for a set of bound
// targets. It is safe for concurrent use; callbacks are invoked without
// internal locks held.
type Disambiguator struct {
	mu sync.Mutex

	clock        clock.Clock
	timing       Timing
	touchCapable bool
	fire         func(Key, Kind)
	prompt       func(Key)
	logger       *slog.Logger
	metrics      Metrics

	targets map[Key]*targetState
	confirm map[string]bool
	arms    map[Key]*arm
	seq     uint64
	closed  bool
}

// New creates a Disambiguator.
func New(opts ...Option) *Disambiguator {
	d := &Disambiguator{
		clock:   clock.Real(),
		timing:  DefaultTiming(),
		logger:  slog.New(slog.DiscardHandler),
		metrics: noopMetrics{},
		targets: make(map[Key]*targetState),
		confirm: make(map[string]bool),
		arms:    make(map[Key]*arm),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Timing returns the thresholds in use.
func (d *Disambiguator) Timing() Timing {
	return d.timing
}

// Bind registers target with the given gestures, replacing any previous
// binding and its in-flight state. Binding no gestures unbinds the target.
func (d *Disambiguator) Bind(target Key, b Bindings) {
	target = target.Target()
	if !b.Any() {
		d.Unbind(target)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if st, ok := d.targets[target]; ok {
		st.reset()
	}
	d.targets[target] = newTargetState(b)
}

// Unbind removes target, stopping its timers and dropping any arm.
func (d *Disambiguator) Unbind(target Key) {
	target = target.Target()

	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.targets[target]; ok {
		st.reset()
		delete(d.targets, target)
	}
	d.disarmLocked(target.With(KindSingle))
}

// SetConfirmation enables or disables confirmation for every target in
// group. Disabling drops the group's arms.
func (d *Disambiguator) SetConfirmation(group string, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.confirm[group] = true
		return
	}
	delete(d.confirm, group)
	for key, a := range d.arms {
		if key.Group == group {
			a.stop()
			delete(d.arms, key)
		}
	}
}

// Handle feeds one input event. Events for unbound targets are ignored.
func (d *Disambiguator) Handle(ev Event) {
	at := ev.Time
	if at.IsZero() {
		at = d.clock.Now()
	}

	var out effects
	d.mu.Lock()
	d.handleLocked(ev, at, &out)
	d.mu.Unlock()
	d.run(out)
}

func (d *Disambiguator) handleLocked(ev Event, at time.Time, out *effects) {
	if d.closed {
		return
	}
	target := ev.Target.Target()
	st, ok := d.targets[target]
	if !ok {
		d.logger.Debug("event for unbound target", "target", target.String(), "phase", ev.Phase.String())
		return
	}

	switch ev.Phase {
	case PhaseDown:
		d.pressLocked(target, st, ev, at)
	case PhaseUp:
		d.releaseLocked(target, st, ev, at, out)
	case PhaseLeave, PhaseCancel:
		st.stopHold()
		st.pressed = false
		st.holdFired = false
		st.pointerSuppressed = false
	}
}

// suppressPointer reports whether a pointer event duplicates touch input.
func (d *Disambiguator) suppressPointer(st *targetState, ev Event, at time.Time) bool {
	if !d.touchCapable || ev.Channel != ChannelPointer {
		return false
	}
	return ev.PointerType == "touch" || st.touchedWithin(at, d.timing.TouchDedup)
}

func (d *Disambiguator) pressLocked(target Key, st *targetState, ev Event, at time.Time) {
	if d.suppressPointer(st, ev, at) {
		st.pointerSuppressed = true
		d.logger.Debug("pointer press suppressed", "target", target.String())
		return
	}

	st.stopHold()
	st.pressed = true
	st.holdFired = false
	if !st.bindings.Hold {
		return
	}

	d.seq++
	seq := d.seq
	st.holdSeq = seq
	st.hold = d.clock.AfterFunc(d.timing.Hold, func() { d.holdElapsed(target, seq) })
}

func (d *Disambiguator) releaseLocked(target Key, st *targetState, ev Event, at time.Time, out *effects) {
	st.stopHold()

	if ev.Channel == ChannelPointer && (st.pointerSuppressed || d.suppressPointer(st, ev, at)) {
		st.pointerSuppressed = false
		return
	}
	if ev.Channel == ChannelTouch {
		st.lastTouchEnd = at
	}
	if !st.pressed {
		return
	}
	st.pressed = false
	if st.holdFired {
		st.holdFired = false
		return
	}

	d.tapLocked(target, st, out)
}

func (d *Disambiguator) tapLocked(target Key, st *targetState, out *effects) {
	b := st.bindings
	switch {
	case b.Double && st.windowOpen():
		st.stopWindow()
		out.fire(target.With(KindDouble))
	case b.Double:
		d.seq++
		seq := d.seq
		st.windowSeq = seq
		st.pendingSingle = b.Single
		st.window = d.clock.AfterFunc(d.timing.DoubleTap, func() { d.windowElapsed(target, seq) })
	case b.Single:
		d.singleLocked(target, out)
	}
}

func (d *Disambiguator) singleLocked(target Key, out *effects) {
	if d.confirm[target.Group] {
		d.confirmSingleLocked(target, out)
		return
	}
	out.fire(target.With(KindSingle))
}

func (d *Disambiguator) holdElapsed(target Key, seq uint64) {
	var out effects
	d.mu.Lock()
	st, ok := d.targets[target]
	if !d.closed && ok && st.holdSeq == seq && st.pressed {
		st.hold = nil
		st.holdSeq = 0
		st.holdFired = true
		st.stopWindow()
		out.fire(target.With(KindHold))
	}
	d.mu.Unlock()
	d.run(out)
}

func (d *Disambiguator) windowElapsed(target Key, seq uint64) {
	var out effects
	d.mu.Lock()
	st, ok := d.targets[target]
	if !d.closed && ok && st.windowSeq == seq {
		pending := st.pendingSingle
		st.window = nil
		st.windowSeq = 0
		st.pendingSingle = false
		if pending {
			d.singleLocked(target, &out)
		}
	}
	d.mu.Unlock()
	d.run(out)
}

// Close stops every timer and drops all targets and arms. Later events are
// ignored.
func (d *Disambiguator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, st := range d.targets {
		st.reset()
		delete(d.targets, key)
	}
	for key, a := range d.arms {
		a.stop()
		delete(d.arms, key)
	}
}

// effects collects callbacks to run once the lock is released.
type effects struct {
	fired   []Key
	prompts []Key
}

func (e *effects) fire(key Key) {
	e.fired = append(e.fired, key)
}

func (d *Disambiguator) run(out effects) {
	for _, key := range out.prompts {
		if d.prompt != nil {
			d.call("prompt", key, func() { d.prompt(key) })
		}
	}
	for _, key := range out.fired {
		d.metrics.GestureFired(key.Kind.String())
		d.logger.Debug("gesture fired", "target", key.Target().String(), "kind", key.Kind.String())
		if d.fire != nil {
			d.call("fire", key, func() { d.fire(key.Target(), key.Kind) })
		}
	}
}

func (d *Disambiguator) call(what string, key Key, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("gesture callback panicked", "callback", what, "key", key.String(), "panic", r)
		}
	}()
	fn()
}

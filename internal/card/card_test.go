package card

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/vehiclecard/internal/action"
	"github.com/dshills/vehiclecard/internal/clock"
	"github.com/dshills/vehiclecard/internal/config"
	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/gesture"
	"github.com/dshills/vehiclecard/internal/template"
)

type fakeSub struct {
	template string
	onPush   func(raw any)
	released bool
}

type fakeBackend struct {
	mu           sync.Mutex
	subs         []*fakeSub
	results      map[string]any
	subscribeErr error
	// rejectErr makes subscriptions return a pending handle that is then
	// rejected, the way a server refuses a template after the request went out.
	rejectErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{results: make(map[string]any)}
}

func (b *fakeBackend) RenderTemplate(_ context.Context, tmpl string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results[tmpl], nil
}

func (b *fakeBackend) SubscribeTemplate(_ context.Context, tmpl string, onPush func(raw any)) (template.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	if b.rejectErr != nil {
		p := template.NewPendingHandle()
		go p.Complete(nil, b.rejectErr)
		return p, nil
	}
	sub := &fakeSub{template: tmpl, onPush: onPush}
	b.subs = append(b.subs, sub)
	return template.HandleFunc(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub.released = true
		return nil
	}), nil
}

// push delivers raw to the live subscription for tmpl.
func (b *fakeBackend) push(t *testing.T, tmpl string, raw any) {
	t.Helper()
	b.mu.Lock()
	var target *fakeSub
	for _, s := range b.subs {
		if s.template == tmpl && !s.released {
			target = s
		}
	}
	b.mu.Unlock()
	require.NotNil(t, target, "no live subscription for %q", tmpl)
	target.onPush(raw)
}

func (b *fakeBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs {
		if !s.released {
			n++
		}
	}
	return n
}

type serviceCall struct {
	domain, service, data string
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []serviceCall
}

func (c *fakeCaller) CallService(_ context.Context, domain, service string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, serviceCall{domain, service, string(data)})
	return nil
}

func (c *fakeCaller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeCaller) last() serviceCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

type fakeStates struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *fakeStates) State(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[id]
	return v, ok
}

const (
	doorsVisible = "{{ is_state('binary_sensor.parked', 'on') }}"
	doorsColor   = "{{ 'red' if is_state('lock.doors', 'unlocked') else 'green' }}"
	doorsIcon    = "{{ 'mdi:lock-open' if is_state('lock.doors', 'unlocked') else 'mdi:lock' }}"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Hass = config.HassConfig{URL: "http://ha", Token: "t"}
	cfg.Card = config.CardConfig{
		Name:   "Model 3",
		Entity: "sensor.car",
		Images: []config.ImageConfig{{
			Image:      "car.png",
			Entity:     "device_tracker.car",
			HoldAction: action.Config{Action: "location-map"},
		}},
		InfoRows:     []config.InfoRowConfig{{Name: "Range", Entity: "sensor.range"}},
		ProgressBars: []config.ProgressBarConfig{{Name: "Battery", Entity: "sensor.battery", Max: 100, Unit: "%"}},
		IconGroups: []config.IconGroupConfig{
			{
				Name: "status",
				Items: []config.IconConfig{{
					Entity:             "lock.doors",
					Name:               "Doors",
					Icon:               "mdi:lock",
					VisibilityTemplate: doorsVisible,
					ColorTemplate:      doorsColor,
					IconTemplate:       doorsIcon,
					ShowState:          true,
					TapAction:          action.Config{Action: "toggle"},
				}},
			},
			{
				Name:         "controls",
				Confirmation: true,
				Items: []config.IconConfig{
					{Entity: "switch.charger", Name: "Charger", TapAction: action.Config{Action: "toggle"}},
					{Entity: "sensor.odometer"},
				},
			},
		},
	}
	return cfg
}

type harness struct {
	card    *Card
	clock   *clock.Fake
	backend *fakeBackend
	caller  *fakeCaller
	states  *fakeStates
	bus     *event.Bus
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		backend: newFakeBackend(),
		caller:  &fakeCaller{},
		states: &fakeStates{m: map[string]string{
			"lock.doors":     "locked",
			"sensor.range":   "312",
			"sensor.battery": "80",
			"switch.charger": "off",
		}},
		bus: event.NewBus(),
	}
	c, err := New(cfg, Deps{
		Backend: h.backend,
		Caller:  h.caller,
		States:  h.states,
		Bus:     h.bus,
		Clock:   h.clock,
	})
	require.NoError(t, err)
	h.card = c
	return h
}

func (h *harness) tap(key gesture.Key) {
	h.card.HandleInput(gesture.Event{Target: key, Channel: gesture.ChannelPointer, Phase: gesture.PhaseDown, PointerType: "mouse"})
	h.card.HandleInput(gesture.Event{Target: key, Channel: gesture.ChannelPointer, Phase: gesture.PhaseUp, PointerType: "mouse"})
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, Deps{})
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestAttachSubscribesEveryTemplate(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	// visibility, color, icon and state text for the doors icon, plus the
	// info row and progress bar state markers
	assert.Equal(t, 6, h.backend.live())
	assert.True(t, h.card.active.HasSubscription(template.StateTextKey("status", "lock.doors")))
	assert.True(t, h.card.active.HasSubscription(template.InfoEntityKey(InfoRowsGroup, "sensor.range")))
	assert.True(t, h.card.color.HasSubscription(template.TemplateKey("status", "lock.doors")))
	assert.True(t, h.card.icon.HasSubscription(template.TemplateKey("status", "lock.doors")))

	assert.ErrorIs(t, h.card.Attach(context.Background()), ErrAttached)
}

func TestViewReflectsPushes(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	v := h.card.View()
	require.Len(t, v.Groups, 2)
	assert.Empty(t, v.Groups[0].Icons, "hidden until the visibility template reports on")

	h.backend.push(t, doorsVisible, true)
	h.backend.push(t, doorsColor, "#ff0000")
	h.backend.push(t, doorsIcon, "mdi:lock-open")

	v = h.card.View()
	assert.Equal(t, "Model 3", v.Name)
	require.Len(t, v.Groups[0].Icons, 1)
	doors := v.Groups[0].Icons[0]
	assert.Equal(t, "mdi:lock-open", doors.Icon)
	assert.Equal(t, "#ff0000", doors.Color)
	assert.Equal(t, "locked", doors.State)
	assert.False(t, doors.Active)

	require.Len(t, v.Groups[1].Icons, 2)
	assert.Equal(t, template.DefaultIcon, v.Groups[1].Icons[1].Icon)
	assert.Empty(t, v.Groups[1].Icons[0].State, "state text only when configured")

	require.Len(t, v.InfoRows, 1)
	assert.Equal(t, "312", v.InfoRows[0].Value)

	require.Len(t, v.ProgressBars, 1)
	assert.True(t, v.ProgressBars[0].Known)
	assert.InDelta(t, 0.8, v.ProgressBars[0].Fraction, 1e-9)

	require.Len(t, v.Images, 1)
	assert.True(t, v.Images[0].Interactive)

	h.backend.push(t, doorsColor, "notacolor")
	assert.Equal(t, template.DefaultColor, h.card.View().Groups[0].Icons[0].Color)
}

func TestPushRequestsRender(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	drain(h.card)
	h.backend.push(t, doorsVisible, "on")
	select {
	case <-h.card.Renders():
	default:
		t.Fatal("expected a render request")
	}
}

func drain(c *Card) {
	for {
		select {
		case <-c.Renders():
		default:
			return
		}
	}
}

func TestRendersCoalesce(t *testing.T) {
	h := newHarness(t, testConfig())
	drain(h.card)
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	h.card.Invalidate("one")
	h.card.Invalidate("two")
	h.card.Invalidate("three")

	assert.Len(t, h.card.Renders(), 1)
}

func TestTapRunsToggle(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	h.tap(IconKey("status", "lock.doors"))

	require.Eventually(t, func() bool { return h.caller.count() == 1 }, time.Second, 5*time.Millisecond)
	call := h.caller.last()
	assert.Equal(t, "homeassistant", call.domain)
	assert.Equal(t, "toggle", call.service)
	assert.Equal(t, "lock.doors", gjson.Get(call.data, "entity_id").String())
}

func TestIconWithoutTapOpensMoreInfo(t *testing.T) {
	h := newHarness(t, testConfig())
	moreInfo := make(chan string, 1)
	_, err := h.bus.SubscribeFunc(events.TopicMoreInfo, event.Typed(func(_ context.Context, e event.Event[events.MoreInfo]) error {
		moreInfo <- e.Payload.EntityID
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	// second tap confirms; the group requires confirmation
	key := IconKey("controls", "sensor.odometer")
	h.tap(key)
	h.tap(key)

	select {
	case id := <-moreInfo:
		assert.Equal(t, "sensor.odometer", id)
	case <-time.After(time.Second):
		t.Fatal("more-info not published")
	}
}

func TestHoldOnImageShowsLocationMap(t *testing.T) {
	h := newHarness(t, testConfig())
	maps := make(chan string, 1)
	_, err := h.bus.SubscribeFunc(events.TopicLocationMap, event.Typed(func(_ context.Context, e event.Event[events.LocationMap]) error {
		maps <- e.Payload.EntityID
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	h.card.HandleInput(gesture.Event{Target: ImageKey(0), Channel: gesture.ChannelTouch, Phase: gesture.PhaseDown})
	h.clock.Advance(600 * time.Millisecond)

	select {
	case id := <-maps:
		assert.Equal(t, "device_tracker.car", id)
	case <-time.After(time.Second):
		t.Fatal("location map not published")
	}
}

func TestConfirmationGroupArmsFirst(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	key := IconKey("controls", "switch.charger")
	h.tap(key)

	v := h.card.View()
	require.NotNil(t, v.Notice)
	assert.Equal(t, "Tap Charger again to confirm", v.Notice.Message)
	assert.True(t, v.Groups[1].Icons[0].Armed)
	assert.Zero(t, h.caller.count())

	h.tap(key)
	require.Eventually(t, func() bool { return h.caller.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, h.card.View().Groups[1].Icons[0].Armed)

	h.clock.Advance(6 * time.Second)
	assert.Nil(t, h.card.View().Notice, "prompt expires with the arm")
}

func TestDocumentClickElsewhereDisarms(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	key := IconKey("controls", "switch.charger")
	h.tap(key)
	h.clock.Advance(100 * time.Millisecond)
	h.card.DocumentClick(gesture.Key{})

	assert.False(t, h.card.View().Groups[1].Icons[0].Armed)
	h.tap(key)
	assert.Zero(t, h.caller.count(), "tap after disarm arms again")
}

func TestInvalidActionShowsErrorNotice(t *testing.T) {
	cfg := testConfig()
	cfg.Card.IconGroups[0].Items[0].TapAction = action.Config{Action: "call-service", ServiceData: "{broken"}
	h := newHarness(t, cfg)
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	h.tap(IconKey("status", "lock.doors"))

	require.Eventually(t, func() bool {
		n := h.card.View().Notice
		return n != nil && n.Type == events.ToastError
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.caller.count())
}

func TestDetachReleasesEverything(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))

	h.card.HandleInput(gesture.Event{Target: ImageKey(0), Channel: gesture.ChannelTouch, Phase: gesture.PhaseDown})
	require.Positive(t, h.clock.Pending())
	busSubs := h.bus.Stats().Subscriptions

	h.card.Detach()

	assert.Zero(t, h.backend.live())
	assert.Zero(t, h.clock.Pending())
	assert.Equal(t, busSubs-3, h.bus.Stats().Subscriptions)
	assert.False(t, h.card.Attached())

	h.tap(IconKey("status", "lock.doors"))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, h.caller.count())

	assert.NotPanics(t, h.card.Detach)
}

func TestReloadSwapsConfiguration(t *testing.T) {
	h := newHarness(t, testConfig())
	reloaded := make(chan struct{}, 1)
	_, err := h.bus.SubscribeFunc(events.TopicReloaded, func(context.Context, any) error {
		reloaded <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	next := testConfig()
	next.Card.Name = "Model Y"
	next.Card.IconGroups = next.Card.IconGroups[1:]
	require.NoError(t, h.card.Reload(context.Background(), next))

	assert.True(t, h.card.Attached())
	assert.Equal(t, "Model Y", h.card.View().Name)
	assert.Equal(t, 2, h.backend.live(), "only the info row and progress bar markers remain")
	assert.Len(t, reloaded, 1)
	assert.Error(t, h.card.Reload(context.Background(), nil))
}

func TestSubscribeFailureFallsBackToOneShot(t *testing.T) {
	h := newHarness(t, testConfig())
	h.backend.subscribeErr = errors.New("socket closed")
	h.backend.results[doorsVisible] = "on"
	h.backend.results[doorsIcon] = "mdi:lock-open"
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	v := h.card.View()
	require.Len(t, v.Groups[0].Icons, 1)
	assert.Equal(t, "mdi:lock-open", v.Groups[0].Icons[0].Icon)

	h.clock.Advance(2 * time.Second)
	assert.Empty(t, h.card.View().Groups[0].Icons, "one-shot value expires with the cache")
}

func TestRejectedSubscriptionFallsBackToOneShot(t *testing.T) {
	h := newHarness(t, testConfig())
	h.backend.rejectErr = errors.New("template_error")
	h.backend.results[doorsVisible] = "on"
	h.backend.results[doorsIcon] = "mdi:lock-open"
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	key := template.TemplateKey("status", "lock.doors")
	require.Eventually(t, func() bool {
		return !h.card.icon.HasSubscription(key) && !h.card.active.HasSubscription(key)
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		icons := h.card.View().Groups[0].Icons
		return len(icons) == 1 && icons[0].Icon == "mdi:lock-open"
	}, time.Second, 5*time.Millisecond)
}

func TestSetBackendResubscribes(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.card.Attach(context.Background()))
	defer h.card.Detach()

	next := newFakeBackend()
	h.card.SetBackend(context.Background(), next)

	assert.Zero(t, h.backend.live())
	assert.Equal(t, 6, next.live())
}

func TestViewWithoutStates(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg, Deps{})
	require.NoError(t, err)

	v := c.View()
	require.Len(t, v.ProgressBars, 1)
	assert.False(t, v.ProgressBars[0].Known)
	assert.Empty(t, v.InfoRows[0].Value)
	assert.False(t, v.Images[0].Interactive, "nothing is bound while detached")
}

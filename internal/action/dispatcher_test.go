package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
)

type serviceCall struct {
	domain  string
	service string
	data    string
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []serviceCall
	err   error
}

func (c *fakeCaller) CallService(_ context.Context, domain, service string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, serviceCall{domain, service, string(data)})
	return c.err
}

func (c *fakeCaller) last(t *testing.T) serviceCall {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.calls)
	return c.calls[len(c.calls)-1]
}

type fakeStates map[string]string

func (s fakeStates) State(id string) (string, bool) {
	v, ok := s[id]
	return v, ok
}

type collected struct {
	mu     sync.Mutex
	events []any
}

func collect(t *testing.T, bus *event.Bus) *collected {
	t.Helper()
	c := &collected{}
	_, err := bus.SubscribeFunc("ui.**", func(_ context.Context, e any) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
		return nil
	})
	require.NoError(t, err)
	return c
}

func (c *collected) toasts() []events.Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Toast
	for _, e := range c.events {
		if ev, ok := e.(event.Event[events.Toast]); ok {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func newDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *fakeCaller, *collected) {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(bus.Close)
	caller := &fakeCaller{}
	d := New(append([]Option{WithCaller(caller), WithPublisher(bus)}, opts...)...)
	return d, caller, collect(t, bus)
}

func TestExecuteToggle(t *testing.T) {
	d, caller, _ := newDispatcher(t)

	require.NoError(t, d.Execute(context.Background(), Toggle{EntityID: "switch.charger"}))

	call := caller.last(t)
	assert.Equal(t, "homeassistant", call.domain)
	assert.Equal(t, "toggle", call.service)
	assert.Equal(t, "switch.charger", gjson.Get(call.data, "entity_id").String())
}

func TestExecuteFrontendEffects(t *testing.T) {
	d, caller, got := newDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, MoreInfo{EntityID: "sensor.range"}))
	require.NoError(t, d.Execute(ctx, Navigate{Path: "/lovelace/car"}))
	require.NoError(t, d.Execute(ctx, OpenURL{URL: "https://example.com", NewTab: true}))
	require.NoError(t, d.Execute(ctx, LocationMap{EntityID: "device_tracker.car"}))

	require.Len(t, got.events, 4)
	assert.Equal(t, events.MoreInfo{EntityID: "sensor.range"}, got.events[0].(event.Event[events.MoreInfo]).Payload)
	assert.Equal(t, "/lovelace/car", got.events[1].(event.Event[events.Navigate]).Payload.Path)
	assert.True(t, got.events[2].(event.Event[events.OpenURL]).Payload.NewTab)
	assert.Equal(t, "device_tracker.car", got.events[3].(event.Event[events.LocationMap]).Payload.EntityID)
	assert.Empty(t, caller.calls)

	cur, ok := d.History().Current()
	require.True(t, ok)
	assert.Equal(t, "/lovelace/car", cur)
}

func TestExecuteTriggerByDomain(t *testing.T) {
	states := fakeStates{"lock.doors": "locked", "lock.trunk": "unlocked"}
	d, caller, _ := newDispatcher(t, WithStates(states))

	tests := []struct {
		entity  string
		domain  string
		service string
	}{
		{"automation.precondition", "automation", "trigger"},
		{"script.warm_up", "script", "turn_on"},
		{"button.horn", "button", "press"},
		{"input_button.flash", "input_button", "press"},
		{"lock.doors", "lock", "unlock"},
		{"lock.trunk", "lock", "lock"},
		{"lock.unknown", "lock", "lock"},
		{"switch.sentry", "homeassistant", "toggle"},
	}
	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			require.NoError(t, d.Execute(context.Background(), Trigger{EntityID: tt.entity}))
			call := caller.last(t)
			assert.Equal(t, tt.domain, call.domain)
			assert.Equal(t, tt.service, call.service)
			assert.Equal(t, tt.entity, gjson.Get(call.data, "entity_id").String())
		})
	}
}

func TestExecutePerformActionMergesEntity(t *testing.T) {
	d, caller, _ := newDispatcher(t)

	err := d.Execute(context.Background(), PerformAction{
		Domain: "climate", Service: "set_temperature",
		Data: []byte(`{"temperature":20}`), EntityID: "climate.cabin",
	})
	require.NoError(t, err)

	call := caller.last(t)
	assert.Equal(t, "climate.cabin", gjson.Get(call.data, "entity_id").String())
	assert.Equal(t, int64(20), gjson.Get(call.data, "temperature").Int())
}

func TestRunInvalidConfigShowsToast(t *testing.T) {
	d, caller, got := newDispatcher(t)

	err := d.Run(context.Background(), Config{Action: "perform-action", PerformAction: "broken"}, "switch.x")
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Empty(t, caller.calls)

	toasts := got.toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, events.ToastError, toasts[0].Type)
	assert.Contains(t, toasts[0].Message, "perform-action")
	assert.NotEmpty(t, toasts[0].ID)
	assert.Equal(t, DefaultToastDuration, toasts[0].Duration)

	stats := d.Stats().Action(NamePerformAction)
	require.NotNil(t, stats)
	assert.Equal(t, uint64(1), stats.ErrorCount)
}

func TestExecuteServiceFailure(t *testing.T) {
	d, caller, got := newDispatcher(t)
	caller.err = errors.New("entity not found")

	err := d.Execute(context.Background(), Toggle{EntityID: "switch.gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homeassistant.toggle")
	assert.Len(t, got.toasts(), 1)
	assert.Equal(t, uint64(1), d.Stats().TotalErrors())
}

func TestExecutionEventsAreCorrelated(t *testing.T) {
	d, caller, got := newDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, MoreInfo{EntityID: "sensor.range"}))
	require.NoError(t, d.Execute(ctx, MoreInfo{EntityID: "sensor.range"}))
	caller.err = errors.New("entity not found")
	require.Error(t, d.Execute(ctx, Toggle{EntityID: "switch.gone"}))

	require.Len(t, got.events, 3)
	var ids []string
	for _, e := range got.events {
		mp, ok := e.(event.MetadataProvider)
		require.True(t, ok)
		md := mp.EventMetadata()
		assert.NotEmpty(t, md.CorrelationID)
		assert.NotEqual(t, md.ID, md.CorrelationID)
		ids = append(ids, md.CorrelationID)
	}
	assert.NotEqual(t, ids[0], ids[1], "each execution gets its own correlation")
	assert.NotEqual(t, ids[1], ids[2])
}

func TestExecuteWithoutCaller(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	got := collect(t, bus)
	d := New(WithPublisher(bus))

	err := d.Execute(context.Background(), Toggle{EntityID: "switch.x"})
	assert.ErrorIs(t, err, ErrNoCaller)
	require.Len(t, got.toasts(), 1)
	assert.Equal(t, "Not connected to Home Assistant", got.toasts()[0].Message)

	caller := &fakeCaller{}
	d.SetCaller(caller)
	require.NoError(t, d.Execute(context.Background(), Toggle{EntityID: "switch.x"}))
	assert.Len(t, caller.calls, 1)
}

func TestExecuteNoneDoesNothing(t *testing.T) {
	d, caller, got := newDispatcher(t)

	require.NoError(t, d.Execute(context.Background(), None{}))
	require.NoError(t, d.Execute(context.Background(), nil))
	assert.Empty(t, caller.calls)
	assert.Empty(t, got.events)
	assert.Equal(t, uint64(2), d.Stats().TotalExecutions())
}

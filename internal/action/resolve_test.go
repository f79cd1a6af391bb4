package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestResolveEntityActions(t *testing.T) {
	tests := []struct {
		cfg  Config
		want Descriptor
	}{
		{Config{Action: "toggle"}, Toggle{EntityID: "switch.charger"}},
		{Config{Action: "more-info"}, MoreInfo{EntityID: "switch.charger"}},
		{Config{Action: "more_info", Entity: "sensor.range"}, MoreInfo{EntityID: "sensor.range"}},
		{Config{Action: "location-map"}, LocationMap{EntityID: "switch.charger"}},
		{Config{Action: "Trigger"}, Trigger{EntityID: "switch.charger"}},
		{Config{Action: "none"}, None{}},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Action, func(t *testing.T) {
			got, err := Resolve(tt.cfg, "switch.charger")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEntityActionWithoutEntity(t *testing.T) {
	_, err := Resolve(Config{Action: "toggle"}, "")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.ErrorIs(t, err, ErrMissingEntity)
}

func TestResolveInfersAction(t *testing.T) {
	got, err := Resolve(Config{}, "lock.doors")
	require.NoError(t, err)
	assert.Equal(t, MoreInfo{EntityID: "lock.doors"}, got)

	got, err = Resolve(Config{}, "")
	require.NoError(t, err)
	assert.Equal(t, None{}, got)

	got, err = Resolve(Config{NavigationPath: "/lovelace/car"}, "")
	require.NoError(t, err)
	assert.Equal(t, Navigate{Path: "/lovelace/car"}, got)

	got, err = Resolve(Config{URLPath: "https://example.com", NewTab: true}, "")
	require.NoError(t, err)
	assert.Equal(t, OpenURL{URL: "https://example.com", NewTab: true}, got)
}

func TestResolveNavigateRequiresPath(t *testing.T) {
	_, err := Resolve(Config{Action: "navigate"}, "")
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = Resolve(Config{Action: "url"}, "")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestResolveCallService(t *testing.T) {
	got, err := Resolve(Config{
		Action:      "call-service",
		Service:     "climate.set_temperature",
		ServiceData: `{"temperature": 21}`,
		Entity:      "climate.cabin",
	}, "")
	require.NoError(t, err)

	cs, ok := got.(CallService)
	require.True(t, ok)
	assert.Equal(t, "climate", cs.Domain)
	assert.Equal(t, "set_temperature", cs.Service)
	assert.Equal(t, int64(21), gjson.GetBytes(cs.Data, "temperature").Int())
	assert.Equal(t, "climate.cabin", gjson.GetBytes(cs.Data, "entity_id").String())
}

func TestResolveCallServiceStructuredData(t *testing.T) {
	got, err := Resolve(Config{
		Service: "notify.mobile",
		Data:    map[string]any{"message": "charged"},
	}, "sensor.battery")
	require.NoError(t, err)

	cs := got.(CallService)
	assert.Equal(t, "charged", gjson.GetBytes(cs.Data, "message").String())
	assert.False(t, gjson.GetBytes(cs.Data, "entity_id").Exists(), "default entity is not injected into call-service")
}

func TestResolveCallServiceInvalid(t *testing.T) {
	cases := []Config{
		{Action: "call-service"},
		{Action: "call-service", Service: "nodot"},
		{Action: "call-service", Service: "a.b.c"},
		{Action: "call-service", Service: "light.turn_on", ServiceData: `{"brightness": `},
		{Action: "call-service", Service: "light.turn_on", ServiceData: `[1, 2]`},
	}
	for _, cfg := range cases {
		_, err := Resolve(cfg, "light.kitchen")
		assert.ErrorIs(t, err, ErrInvalidAction, "%+v", cfg)
	}
}

func TestResolvePerformActionString(t *testing.T) {
	got, err := Resolve(Config{Action: "perform-action", PerformAction: "lock.unlock"}, "lock.doors")
	require.NoError(t, err)

	pa := got.(PerformAction)
	assert.Equal(t, "lock", pa.Domain)
	assert.Equal(t, "unlock", pa.Service)
	assert.Equal(t, "lock.doors", gjson.GetBytes(pa.Data, "entity_id").String())
}

func TestResolvePerformActionObject(t *testing.T) {
	got, err := Resolve(Config{PerformAction: map[string]any{
		"service": "climate.set_hvac_mode",
		"data":    map[string]any{"hvac_mode": "heat", "entity_id": "climate.rear"},
	}}, "climate.cabin")
	require.NoError(t, err)

	pa := got.(PerformAction)
	assert.Equal(t, "set_hvac_mode", pa.Service)
	assert.Equal(t, "heat", gjson.GetBytes(pa.Data, "hvac_mode").String())
	assert.Equal(t, "climate.rear", gjson.GetBytes(pa.Data, "entity_id").String(), "explicit entity_id wins")
}

func TestResolvePerformActionActionKey(t *testing.T) {
	got, err := Resolve(Config{PerformAction: map[string]any{"action": "script.precondition"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "precondition", got.(PerformAction).Service)
}

func TestResolvePerformActionMalformed(t *testing.T) {
	cases := []Config{
		{PerformAction: map[string]any{"data": map[string]any{}}},
		{PerformAction: map[string]any{"service": "a.b", "data": "nope"}},
		{PerformAction: 42},
		{Action: "perform-action", PerformAction: "a.b", ServiceData: "{bad json"},
	}
	for _, cfg := range cases {
		_, err := Resolve(cfg, "switch.x")
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr), "%+v", cfg)
		assert.Equal(t, NamePerformAction, cerr.Action)
	}
}

func TestResolveUnknownAction(t *testing.T) {
	_, err := Resolve(Config{Action: "fire-missiles"}, "switch.x")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

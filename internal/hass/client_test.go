package hass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/vehiclecard/internal/template"
)

const testToken = "secret-token"

// fakeHA speaks enough of the websocket API for the client tests.
type fakeHA struct {
	t         *testing.T
	templates map[string]any
	states    []map[string]any

	mu           sync.Mutex
	conn         *websocket.Conn
	writeMu      sync.Mutex
	received     []gjson.Result
	unsubscribed []int64
	eventSubs    []int64
	renderSubs   map[string]int64
}

func newFakeHA(t *testing.T) (*fakeHA, string) {
	t.Helper()
	f := &fakeHA{
		t:          t,
		templates:  make(map[string]any),
		renderSubs: make(map[string]int64),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.serve(conn)
	}))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeHA) send(v any) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = f.conn.WriteJSON(v)
}

func (f *fakeHA) serve(conn *websocket.Conn) {
	defer conn.Close()
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.send(map[string]any{"type": "auth_required", "ha_version": "2024.6.0"})
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if gjson.GetBytes(msg, "access_token").String() != testToken {
		f.send(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return
	}
	f.send(map[string]any{"type": "auth_ok", "ha_version": "2024.6.0"})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.handle(gjson.ParseBytes(msg))
	}
}

func (f *fakeHA) handle(cmd gjson.Result) {
	id := cmd.Get("id").Int()
	f.mu.Lock()
	f.received = append(f.received, cmd)
	f.mu.Unlock()

	ok := map[string]any{"id": id, "type": "result", "success": true, "result": nil}
	switch cmd.Get("type").String() {
	case "ping":
		f.send(map[string]any{"id": id, "type": "pong"})

	case "render_template":
		tpl := cmd.Get("template").String()
		f.mu.Lock()
		f.renderSubs[tpl] = id
		f.mu.Unlock()
		f.send(ok)
		if strings.Contains(tpl, "broken") {
			f.send(map[string]any{"id": id, "type": "event", "event": map[string]any{"error": "UndefinedError: 'broken'", "level": "ERROR"}})
			return
		}
		f.send(map[string]any{"id": id, "type": "event", "event": map[string]any{"result": f.templates[tpl]}})

	case "unsubscribe_events":
		f.mu.Lock()
		f.unsubscribed = append(f.unsubscribed, cmd.Get("subscription").Int())
		f.mu.Unlock()
		f.send(ok)

	case "subscribe_events":
		f.mu.Lock()
		f.eventSubs = append(f.eventSubs, id)
		f.mu.Unlock()
		f.send(ok)

	case "call_service":
		if cmd.Get("domain").String() == "missing" {
			f.send(map[string]any{"id": id, "type": "result", "success": false,
				"error": map[string]any{"code": "not_found", "message": "Service not found."}})
			return
		}
		f.send(ok)

	case "get_states":
		f.mu.Lock()
		states := f.states
		f.mu.Unlock()
		f.send(map[string]any{"id": id, "type": "result", "success": true, "result": states})

	default:
		f.send(map[string]any{"id": id, "type": "result", "success": false,
			"error": map[string]any{"code": "unknown_command", "message": "Unknown command."}})
	}
}

func (f *fakeHA) push(id int64, event map[string]any) {
	f.send(map[string]any{"id": id, "type": "event", "event": event})
}

func (f *fakeHA) last(typ string) gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.received) - 1; i >= 0; i-- {
		if f.received[i].Get("type").String() == typ {
			return f.received[i]
		}
	}
	return gjson.Result{}
}

func (f *fakeHA) unsubscribedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.unsubscribed...)
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, testToken)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDialAuthenticates(t *testing.T) {
	_, url := newFakeHA(t)
	c := dial(t, url)

	assert.Equal(t, "2024.6.0", c.Version())
	assert.NoError(t, c.Ping(testContext(t)))
}

func TestDialRejectsBadToken(t *testing.T) {
	_, url := newFakeHA(t)

	_, err := Dial(testContext(t), url, "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://ha.local:8123", "ws://ha.local:8123/api/websocket"},
		{"https://ha.example.com/", "wss://ha.example.com/api/websocket"},
		{"ws://ha.local:8123/api/websocket", "ws://ha.local:8123/api/websocket"},
		{"https://proxy.example.com/ha/", "wss://proxy.example.com/ha/api/websocket"},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := websocketURL("ftp://ha.local")
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	ha, url := newFakeHA(t)
	ha.templates["{{ states('sensor.range') | int > 50 }}"] = true
	ha.templates["{{ states('sensor.range') }}"] = 312.5
	c := dial(t, url)
	ctx := testContext(t)

	v, err := c.RenderTemplate(ctx, "{{ states('sensor.range') | int > 50 }}")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = c.RenderTemplate(ctx, "{{ states('sensor.range') }}")
	require.NoError(t, err)
	assert.Equal(t, 312.5, v)

	assert.Eventually(t, func() bool { return len(ha.unsubscribedIDs()) == 2 }, time.Second, 10*time.Millisecond,
		"one-shot renders unsubscribe")
}

func TestRenderTemplateError(t *testing.T) {
	_, url := newFakeHA(t)
	c := dial(t, url)

	_, err := c.RenderTemplate(testContext(t), "{{ broken }}")
	assert.ErrorIs(t, err, ErrTemplateError)
}

func TestSubscribeTemplatePushesAndReleases(t *testing.T) {
	ha, url := newFakeHA(t)
	tpl := "{{ states('lock.doors') }}"
	ha.templates[tpl] = "locked"
	c := dial(t, url)

	pushes := make(chan any, 4)
	h, err := c.SubscribeTemplate(testContext(t), tpl, func(raw any) { pushes <- raw })
	require.NoError(t, err)

	assert.Equal(t, "locked", <-pushes)

	ha.mu.Lock()
	id := ha.renderSubs[tpl]
	ha.mu.Unlock()
	ha.push(id, map[string]any{"result": "unlocked"})
	assert.Equal(t, "unlocked", <-pushes)

	release, err := h.Resolve(testContext(t))
	require.NoError(t, err)
	require.NoError(t, release())
	assert.Contains(t, ha.unsubscribedIDs(), id)

	ha.push(id, map[string]any{"result": "jammed"})
	select {
	case v := <-pushes:
		t.Fatalf("push after release: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeTemplateWorksWithService(t *testing.T) {
	ha, url := newFakeHA(t)
	ha.templates["{{ is_state('binary_sensor.charging', 'on') }}"] = "on"
	c := dial(t, url)

	svc := template.NewActiveService(c)
	key := template.TemplateKey("rows", "charging")
	changed := make(chan struct{}, 1)
	require.NoError(t, svc.Subscribe(testContext(t), "{{ is_state('binary_sensor.charging', 'on') }}", key, func() {
		changed <- struct{}{}
	}))
	<-changed

	v, ok := svc.Result(key)
	require.True(t, ok)
	assert.True(t, v)

	svc.UnsubscribeAll()
	assert.Eventually(t, func() bool { return len(ha.unsubscribedIDs()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestCallService(t *testing.T) {
	ha, url := newFakeHA(t)
	c := dial(t, url)
	ctx := testContext(t)

	require.NoError(t, c.CallService(ctx, "lock", "unlock", []byte(`{"entity_id":"lock.doors"}`)))
	cmd := ha.last("call_service")
	assert.Equal(t, "lock", cmd.Get("domain").String())
	assert.Equal(t, "unlock", cmd.Get("service").String())
	assert.Equal(t, "lock.doors", cmd.Get("service_data.entity_id").String())

	err := c.CallService(ctx, "missing", "service", nil)
	var rerr *ResultError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "not_found", rerr.Code)
}

func TestCommandsFailAfterClose(t *testing.T) {
	_, url := newFakeHA(t)
	c := dial(t, url)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(testContext(t)), ErrClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestStateStoreSync(t *testing.T) {
	ha, url := newFakeHA(t)
	ha.states = []map[string]any{
		{"entity_id": "lock.doors", "state": "locked", "attributes": map[string]any{"friendly_name": "Doors"},
			"last_changed": "2024-06-01T10:00:00.000000+00:00"},
		{"entity_id": "sensor.range", "state": "312"},
	}
	c := dial(t, url)

	changes := make(chan State, 4)
	store := NewStateStore(func(s State) { changes <- s })
	id, err := store.Sync(testContext(t), c)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "lock.doors", (<-changes).EntityID)
	assert.Equal(t, "sensor.range", (<-changes).EntityID)

	st, ok := store.Get("lock.doors")
	require.True(t, ok)
	assert.Equal(t, "Doors", st.Attributes["friendly_name"])
	assert.False(t, st.LastChanged.IsZero())

	newState, _ := json.Marshal(map[string]any{"entity_id": "lock.doors", "state": "unlocked"})
	ha.push(id, map[string]any{
		"event_type": "state_changed",
		"data":       map[string]any{"entity_id": "lock.doors", "new_state": json.RawMessage(newState)},
	})
	assert.Equal(t, "unlocked", (<-changes).State)
	s, _ := store.State("lock.doors")
	assert.Equal(t, "unlocked", s)

	ha.push(id, map[string]any{
		"event_type": "state_changed",
		"data":       map[string]any{"entity_id": "sensor.range", "new_state": nil},
	})
	assert.Eventually(t, func() bool {
		_, ok := store.State("sensor.range")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestStateStoreResyncReplacesStaleStates(t *testing.T) {
	ha, url := newFakeHA(t)
	ha.states = []map[string]any{
		{"entity_id": "lock.doors", "state": "unlocked", "last_changed": "2024-06-01T10:00:00+00:00"},
		{"entity_id": "sensor.range", "state": "312", "last_changed": "2024-06-01T10:00:00+00:00"},
		{"entity_id": "sensor.trip", "state": "12", "last_changed": "2024-06-01T10:00:00+00:00"},
	}
	c := dial(t, url)

	changes := make(chan State, 8)
	store := NewStateStore(func(s State) { changes <- s })
	_, err := store.Sync(testContext(t), c)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	for range 3 {
		<-changes
	}

	// The door was locked and the trip sensor removed while offline.
	ha.mu.Lock()
	ha.states = []map[string]any{
		{"entity_id": "lock.doors", "state": "locked", "last_changed": "2024-06-01T11:00:00+00:00"},
		{"entity_id": "sensor.range", "state": "312", "last_changed": "2024-06-01T10:00:00+00:00"},
	}
	ha.mu.Unlock()
	require.NoError(t, c.Close())

	_, err = store.Sync(testContext(t), dial(t, url))
	require.NoError(t, err)

	s, _ := store.State("lock.doors")
	assert.Equal(t, "locked", s)
	_, ok := store.State("sensor.trip")
	assert.False(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, "lock.doors", (<-changes).EntityID)
}

func TestStateStoreSyncKeepsNewerEvent(t *testing.T) {
	ha, url := newFakeHA(t)
	ha.states = []map[string]any{
		{"entity_id": "lock.doors", "state": "unlocked", "last_changed": "2024-06-01T10:00:00+00:00"},
	}
	c := dial(t, url)

	store := NewStateStore(nil)
	store.Set(State{
		EntityID:    "lock.doors",
		State:       "locked",
		LastChanged: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	_, err := store.Sync(testContext(t), c)
	require.NoError(t, err)

	s, _ := store.State("lock.doors")
	assert.Equal(t, "locked", s)
}

package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// EventFunc receives the "event" object of a subscription event frame.
type EventFunc func(event gjson.Result)

type response struct {
	success bool
	result  gjson.Result
	err     *ResultError
}

// Client is a Home Assistant websocket connection.
type Client struct {
	dialer *websocket.Dialer
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan response
	events  map[int64]EventFunc

	version   string
	closed    atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial connects to the websocket API at rawURL and authenticates with
// token. rawURL may be the instance base URL (http, https, ws or wss); the
// /api/websocket path is added when missing.
func Dial(ctx context.Context, rawURL, token string, opts ...Option) (*Client, error) {
	c := &Client{
		dialer:  websocket.DefaultDialer,
		logger:  slog.New(slog.DiscardHandler),
		pending: make(map[int64]chan response),
		events:  make(map[int64]EventFunc),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint, err := websocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	c.conn = conn

	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}

	c.logger.Info("connected to home assistant", "url", endpoint, "version", c.version)
	go c.readLoop()
	return c, nil
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("hass: bad url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("hass: unsupported url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/api/websocket") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/api/websocket"
	}
	return u.String(), nil
}

// authenticate runs the auth_required / auth / auth_ok handshake.
func (c *Client) authenticate(ctx context.Context, token string) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	msg, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if t := gjson.GetBytes(msg, "type").String(); t != "auth_required" {
		return fmt.Errorf("%w: expected auth_required, got %q", ErrUnexpectedMessage, t)
	}

	if err := c.write(map[string]any{"type": "auth", "access_token": token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	msg, err = c.readFrame()
	if err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch t := gjson.GetBytes(msg, "type").String(); t {
	case "auth_ok":
		c.version = gjson.GetBytes(msg, "ha_version").String()
		return nil
	case "auth_invalid":
		return fmt.Errorf("%w: %s", ErrAuthFailed, gjson.GetBytes(msg, "message").String())
	default:
		return fmt.Errorf("%w: expected auth_ok, got %q", ErrUnexpectedMessage, t)
	}
}

// Version returns the server version reported during authentication.
func (c *Client) Version() string {
	return c.version
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection. Waiting commands fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) readFrame() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		msg, err := c.readFrame()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) shutdown(err error) {
	if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.logger.Warn("home assistant connection lost", "error", err)
	}
	c.closed.Store(true)

	c.mu.Lock()
	c.err = err
	pending := c.pending
	c.pending = make(map[int64]chan response)
	c.events = make(map[int64]EventFunc)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// dispatch routes a frame to its waiting caller or subscription.
func (c *Client) dispatch(msg []byte) {
	frame := gjson.ParseBytes(msg)
	if frame.IsArray() {
		frame.ForEach(func(_, f gjson.Result) bool {
			c.route(f)
			return true
		})
		return
	}
	c.route(frame)
}

func (c *Client) route(frame gjson.Result) {
	id := frame.Get("id").Int()

	switch frame.Get("type").String() {
	case "result", "pong":
		resp := response{success: true}
		if frame.Get("type").String() == "result" {
			resp.success = frame.Get("success").Bool()
			resp.result = frame.Get("result")
			if !resp.success {
				resp.err = &ResultError{
					Code:    frame.Get("error.code").String(),
					Message: frame.Get("error.message").String(),
				}
			}
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}

	case "event":
		c.mu.Lock()
		fn := c.events[id]
		c.mu.Unlock()
		if fn != nil {
			fn(frame.Get("event"))
		}

	default:
		c.logger.Debug("ignoring frame", "type", frame.Get("type").String(), "id", id)
	}
}

// send assigns an id to cmd, writes it and returns the channel its result
// arrives on. onEvent, when set, is registered before the write.
func (c *Client) send(cmd map[string]any, onEvent EventFunc) (int64, <-chan response, error) {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return 0, nil, ErrClosed
	}
	c.pending[id] = ch
	if onEvent != nil {
		c.events[id] = onEvent
	}
	c.mu.Unlock()

	cmd["id"] = id
	if err := c.write(cmd); err != nil {
		c.forget(id)
		return 0, nil, fmt.Errorf("send %v: %w", cmd["type"], err)
	}
	return id, ch, nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	delete(c.events, id)
	c.mu.Unlock()
}

// await waits for the result of command id.
func (c *Client) await(ctx context.Context, id int64, ch <-chan response) (gjson.Result, error) {
	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return gjson.Result{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return gjson.Result{}, ErrClosed
		}
		if resp.err != nil {
			return gjson.Result{}, resp.err
		}
		return resp.result, nil
	}
}

// Command sends cmd and waits for its result.
func (c *Client) Command(ctx context.Context, cmd map[string]any) (gjson.Result, error) {
	id, ch, err := c.send(cmd, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return c.await(ctx, id, ch)
}

// Subscribe sends a subscription command and routes its events to onEvent.
// It returns the subscription id once the server acknowledged it.
func (c *Client) Subscribe(ctx context.Context, cmd map[string]any, onEvent EventFunc) (int64, error) {
	id, ch, err := c.send(cmd, onEvent)
	if err != nil {
		return 0, err
	}
	if _, err := c.await(ctx, id, ch); err != nil {
		c.forget(id)
		return 0, err
	}
	return id, nil
}

// Unsubscribe ends subscription id.
func (c *Client) Unsubscribe(ctx context.Context, id int64) error {
	c.mu.Lock()
	delete(c.events, id)
	c.mu.Unlock()

	_, err := c.Command(ctx, map[string]any{
		"type":         "unsubscribe_events",
		"subscription": id,
	})
	return err
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Command(ctx, map[string]any{"type": "ping"})
	return err
}

// CallService calls domain.service with a JSON object of service data.
func (c *Client) CallService(ctx context.Context, domain, service string, data []byte) error {
	cmd := map[string]any{
		"type":    "call_service",
		"domain":  domain,
		"service": service,
	}
	if len(data) > 0 {
		cmd["service_data"] = json.RawMessage(data)
	}
	_, err := c.Command(ctx, cmd)
	return err
}

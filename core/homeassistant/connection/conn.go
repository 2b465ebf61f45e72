package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type EventType string

const (
	// EventReady fires after a dropped socket was replaced and subscriptions
	// were restored.
	EventReady EventType = "ready"
	// EventDisconnected fires when the socket drops unexpectedly. It does not
	// fire after [Conn.Close].
	EventDisconnected EventType = "disconnected"
	// EventReconnectError fires when the instance rejects the credentials
	// during a reconnect. The reconnect loop stops.
	EventReconnectError EventType = "reconnect-error"
)

const defaultHandshakeTimeout = 10 * time.Second

type connOptions struct {
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
}

type DialOption func(*connOptions)

func WithDialer(dialer *websocket.Dialer) DialOption {
	return func(o *connOptions) {
		if dialer != nil {
			o.dialer = dialer
		}
	}
}

// WithHandshakeTimeout bounds the authentication exchange.
func WithHandshakeTimeout(timeout time.Duration) DialOption {
	return func(o *connOptions) {
		if timeout > 0 {
			o.handshakeTimeout = timeout
		}
	}
}

type response struct {
	msg inbound
	err error
}

type listener struct {
	id int
	fn func(*Conn)
}

// Conn is an authenticated connection to the Home Assistant websocket API.
// The handle survives socket drops: [Conn.Reconnect] swaps the socket and
// restores subscriptions underneath it.
type Conn struct {
	auth    *Auth
	options connOptions

	writeMu sync.Mutex

	mu             sync.Mutex
	ws             *websocket.Conn
	haVersion      string
	nextID         int64
	pending        map[int64]chan response
	subscriptions  map[int64]*Subscription
	listeners      map[EventType][]listener
	nextListenerID int
	reconnecting   bool
	closed         bool
	closedCh       chan struct{}
}

// Dial opens a websocket to the instance described by auth and completes
// the authentication handshake. It returns [ErrInvalidAuth] when the token
// is rejected.
func Dial(ctx context.Context, auth *Auth, opts ...DialOption) (*Conn, error) {
	ctx, span := tracer.Start(ctx, "dial home assistant")
	defer span.End()

	options := connOptions{
		dialer:           websocket.DefaultDialer,
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	ws, version, err := openSocket(ctx, auth, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("homeassistant.version", version))

	c := &Conn{
		auth:          auth,
		options:       options,
		ws:            ws,
		haVersion:     version,
		pending:       map[int64]chan response{},
		subscriptions: map[int64]*Subscription{},
		listeners:     map[EventType][]listener{},
		closedCh:      make(chan struct{}),
	}
	go c.readLoop(ws)

	logger.Info("connected to home assistant", "url", auth.BaseURL(), "version", version)
	return c, nil
}

func openSocket(ctx context.Context, auth *Auth, options connOptions) (*websocket.Conn, string, error) {
	wsURL, err := auth.WebsocketURL()
	if err != nil {
		return nil, "", err
	}

	ws, _, err := options.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open websocket: %w", err)
	}

	version, err := handshake(ctx, ws, auth, options.handshakeTimeout)
	if err != nil {
		_ = ws.Close()
		return nil, "", err
	}
	return ws, version, nil
}

func handshake(ctx context.Context, ws *websocket.Conn, auth *Auth, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = ws.SetReadDeadline(deadline)
	_ = ws.SetWriteDeadline(deadline)
	defer func() {
		_ = ws.SetReadDeadline(time.Time{})
		_ = ws.SetWriteDeadline(time.Time{})
	}()

	var msg inbound
	if err := ws.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("failed to read auth request: %w", err)
	}
	if msg.Type != msgTypeAuthRequired {
		return "", fmt.Errorf("failed to authenticate: unexpected message %q", msg.Type)
	}

	if err := ws.WriteJSON(authMessage{Type: msgTypeAuth, AccessToken: auth.AccessToken()}); err != nil {
		return "", fmt.Errorf("failed to send auth message: %w", err)
	}

	msg = inbound{}
	if err := ws.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	switch msg.Type {
	case msgTypeAuthOK:
		return msg.HAVersion, nil
	case msgTypeAuthInvalid:
		return "", fmt.Errorf("%w: %s", ErrInvalidAuth, msg.Message)
	default:
		return "", fmt.Errorf("failed to authenticate: unexpected message %q", msg.Type)
	}
}

// HAVersion returns the version reported by the instance on the latest
// handshake.
func (c *Conn) HAVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haVersion
}

func (c *Conn) Auth() *Auth { return c.auth }

// Connected reports whether a socket is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// AddEventListener registers fn for a connection lifecycle event. Listeners
// run on transport goroutines and should not block. The returned function
// removes the listener.
func (c *Conn) AddEventListener(event EventType, fn func(*Conn)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextListenerID++
	id := c.nextListenerID
	c.listeners[event] = append(c.listeners[event], listener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners[event] = slices.DeleteFunc(c.listeners[event], func(l listener) bool { return l.id == id })
	}
}

func (c *Conn) fire(event EventType) {
	c.mu.Lock()
	registered := slices.Clone(c.listeners[event])
	c.mu.Unlock()

	for _, l := range registered {
		l.fn(c)
	}
}

// SendRequest sends a command and decodes its result into out. out may be
// nil. A failed result is returned as *[Error].
func (c *Conn) SendRequest(ctx context.Context, msg any, out any) error {
	ctx, span := tracer.Start(ctx, "send request")
	defer span.End()

	result, err := c.send(ctx, msg, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}

	if out == nil || len(result) == 0 || string(result) == "null" {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Ping checks the socket with a ping/pong round trip.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.send(ctx, struct {
		Type string `json:"type"`
	}{Type: "ping"}, nil)
	return err
}

func (c *Conn) send(ctx context.Context, msg any, sub *Subscription) (json.RawMessage, error) {
	fields, commandType, err := encodeCommand(msg)
	if err != nil {
		return nil, err
	}
	return c.sendFields(ctx, fields, commandType, sub)
}

func (c *Conn) sendFields(ctx context.Context, fields map[string]json.RawMessage, commandType string, sub *Subscription) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.ws == nil {
		c.mu.Unlock()
		return nil, ErrConnectionLost
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	if sub != nil {
		sub.id = id
		c.subscriptions[id] = sub
	}
	ws := c.ws
	c.mu.Unlock()

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("command.type", commandType),
		attribute.Int64("command.id", id))
	requestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("command.type", commandType)))

	if err := c.write(ws, withID(fields, id)); err != nil {
		c.forget(id, sub)
		return nil, fmt.Errorf("failed to send %s: %w", commandType, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			c.forget(id, sub)
			return nil, resp.err
		}
		if resp.msg.Success != nil && !*resp.msg.Success {
			c.forget(id, sub)
			if resp.msg.Error != nil {
				return nil, resp.msg.Error
			}
			return nil, &Error{Code: "unknown_error", Message: commandType + " failed"}
		}
		return resp.msg.Result, nil
	case <-ctx.Done():
		c.forget(id, sub)
		return nil, ctx.Err()
	}
}

func (c *Conn) forget(id int64, sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	if sub != nil && c.subscriptions[id] == sub {
		delete(c.subscriptions, id)
	}
}

func (c *Conn) write(ws *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(v)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.lost(ws, err)
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("ignored malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case msgTypeResult, msgTypePong:
			c.resolve(msg)
		case msgTypeEvent:
			c.dispatch(msg)
		default:
			logger.Debug("ignored message", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (c *Conn) resolve(msg inbound) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		logger.Debug("ignored result without pending request", "id", msg.ID)
		return
	}
	ch <- response{msg: msg}
}

func (c *Conn) dispatch(msg inbound) {
	c.mu.Lock()
	sub, ok := c.subscriptions[msg.ID]
	c.mu.Unlock()

	if !ok {
		logger.Debug("ignored event without subscription", "id", msg.ID)
		return
	}
	sub.deliver(msg.Event)
}

// lost handles a read failure. Sockets that were already replaced or closed
// are ignored.
func (c *Conn) lost(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	pending := c.takePending()
	transient := c.takeTransient()
	c.mu.Unlock()

	failAll(pending, ErrConnectionLost)
	endAll(transient, ErrConnectionLost)
	logger.Warn("lost connection to home assistant", "error", err)
	c.fire(EventDisconnected)
}

// takePending must be called with c.mu held.
func (c *Conn) takePending() map[int64]chan response {
	pending := c.pending
	c.pending = map[int64]chan response{}
	return pending
}

// takeTransient removes the subscriptions that are not restored after a
// reconnect. It must be called with c.mu held.
func (c *Conn) takeTransient() []*Subscription {
	var transient []*Subscription
	for id, sub := range c.subscriptions {
		if !sub.resubscribe {
			transient = append(transient, sub)
			delete(c.subscriptions, id)
		}
	}
	return transient
}

func endAll(subs []*Subscription, err error) {
	for _, sub := range subs {
		sub.end(err)
	}
}

func failAll(pending map[int64]chan response, err error) {
	for _, ch := range pending {
		ch <- response{err: err}
	}
}

// Close closes the socket and ends every subscription. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closedCh)
	ws := c.ws
	c.ws = nil
	pending := c.takePending()
	subs := c.subscriptions
	c.subscriptions = map[int64]*Subscription{}
	c.mu.Unlock()

	failAll(pending, ErrClosed)
	for sub := range maps.Values(subs) {
		sub.end(ErrClosed)
	}

	if ws == nil {
		return nil
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err := ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	logger.Info("closed connection to home assistant", "url", c.auth.BaseURL())
	return nil
}

package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
	"github.com/timmo001/home-assistant-assist-desktop/core/settings"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client owns at most one connection to a Home Assistant instance and the
// callbacks that observe it.
type Client struct {
	settings    settings.HomeAssistant
	onConnected func(conn *connection.Conn, user connection.User)
	onConfig    func(config connection.Config)
	dialOptions []connection.DialOption
	httpClient  *http.Client

	mu         sync.Mutex
	state      State
	conn       *connection.Conn
	user       *connection.User
	config     *connection.Config
	dispatcher *dispatcher
}

func NewClient(homeAssistant settings.HomeAssistant, opts ...ClientOption) *Client {
	c := &Client{
		settings:    homeAssistant,
		onConnected: func(*connection.Conn, connection.User) {},
		onConfig:    func(connection.Config) {},
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("created home assistant client", "host", homeAssistant.Host, "port", homeAssistant.Port, "ssl", homeAssistant.SSL)
	return c
}

// Connect opens the connection. It is a no-op while connecting or
// connected. Missing host or token are reported before any network
// attempt.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect")
	defer span.End()

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(c.settings.Host) == "" {
		c.mu.Unlock()
		return ErrMissingHost
	}
	if strings.TrimSpace(c.settings.AccessToken) == "" {
		c.mu.Unlock()
		return ErrMissingCredential
	}
	c.state = StateConnecting
	c.mu.Unlock()

	auth := connection.NewLongLivedTokenAuth(c.settings.BaseURL(), c.settings.AccessToken)
	span.SetAttributes(attribute.String("homeassistant.url", auth.BaseURL()))
	logger.Info("connecting to home assistant", "url", auth.BaseURL())

	conn, err := connection.Dial(ctx, auth, c.dialOptions...)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return fmt.Errorf("failed to connect to home assistant: %w", err)
	}

	d := newDispatcher()

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect was called while dialing.
		c.mu.Unlock()
		d.stop()
		_ = conn.Close()
		return fmt.Errorf("failed to connect to home assistant: %w", ErrNotConnected)
	}
	c.conn = conn
	c.dispatcher = d
	c.state = StateConnected
	c.mu.Unlock()

	conn.AddEventListener(connection.EventReady, func(*connection.Conn) {
		logger.Info("home assistant connection ready")
	})
	conn.AddEventListener(connection.EventDisconnected, func(conn *connection.Conn) {
		logger.Info("disconnected from home assistant, reconnecting")
		conn.Reconnect()
	})
	conn.AddEventListener(connection.EventReconnectError, func(*connection.Conn) {
		logger.Error("home assistant rejected the access token while reconnecting")
	})

	if _, err := connection.SubscribeConfig(ctx, conn, func(config connection.Config) {
		c.storeConfig(conn, config)
	}); err != nil {
		span.RecordError(err)
		logger.Warn("failed to subscribe to config", "error", err)
	}

	user, err := connection.CurrentUser(ctx, conn)
	if err != nil {
		span.RecordError(err)
		logger.Warn("failed to resolve current user", "error", err)
		return nil
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return fmt.Errorf("failed to connect to home assistant: %w", ErrNotConnected)
	}
	c.user = &user
	c.mu.Unlock()

	logger.Info("connected to home assistant", "user", user.Name, "version", conn.HAVersion())
	d.enqueue(func() { c.onConnected(conn, user) })
	return nil
}

// storeConfig records a snapshot fetched over conn and queues the config
// callback. Snapshots from a connection the client no longer holds are
// dropped.
func (c *Client) storeConfig(conn *connection.Conn, config connection.Config) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		logger.Debug("dropped config snapshot from a closed connection")
		return
	}
	c.config = &config
	d := c.dispatcher
	c.mu.Unlock()

	d.enqueue(func() { c.onConfig(config) })
}

// Disconnect closes the connection. It is a no-op when disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	conn, d := c.conn, c.dispatcher
	c.conn = nil
	c.dispatcher = nil
	c.user = nil
	c.config = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if d != nil {
		d.stop()
	}
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to disconnect from home assistant: %w", err)
	}
	logger.Info("disconnected from home assistant")
	return nil
}

// Connected reports whether a connection handle is held. It stays true while
// the transport reconnects.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connection returns the live handle, nil when disconnected.
func (c *Client) Connection() *connection.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// User returns the user resolved on connect.
func (c *Client) User() (connection.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return connection.User{}, false
	}
	return *c.user, true
}

// Config returns the latest config snapshot.
func (c *Client) Config() (connection.Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return connection.Config{}, false
	}
	return *c.config, true
}

func (c *Client) activeConn() (*connection.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// SendRequest sends a command over the active connection.
func (c *Client) SendRequest(ctx context.Context, msg any, out any) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	return conn.SendRequest(ctx, msg, out)
}

// Subscribe sends a subscribing command over the active connection.
func (c *Client) Subscribe(ctx context.Context, msg any, callback func(json.RawMessage), opts ...connection.SubscribeOption) (*connection.Subscription, error) {
	conn, err := c.activeConn()
	if err != nil {
		return nil, err
	}
	return conn.Subscribe(ctx, msg, callback, opts...)
}

package connection

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const resubscribeTimeout = 10 * time.Second

// reconnectDelay grows by a second per failed attempt, capped at five.
func reconnectDelay(attempt int) time.Duration {
	return time.Duration(min(attempt, 5)) * time.Second
}

// Reconnect replaces the socket under the same handle. It returns at once;
// the attempt loop runs until a socket is authenticated, the credentials are
// rejected, or the connection is closed. Calls while a loop is running are
// no-ops.
func (c *Conn) Reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	ws := c.ws
	c.ws = nil
	pending := c.takePending()
	transient := c.takeTransient()
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	failAll(pending, ErrConnectionLost)
	endAll(transient, ErrConnectionLost)

	go c.reconnectLoop()
}

func (c *Conn) reconnectLoop() {
	ctx, span := tracer.Start(context.Background(), "reconnect home assistant")
	defer span.End()

	for attempt := 0; ; attempt++ {
		select {
		case <-time.After(reconnectDelay(attempt)):
		case <-c.closedCh:
			return
		}

		ws, version, err := openSocket(ctx, c.auth, c.options)
		if errors.Is(err, ErrInvalidAuth) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "credentials rejected")
			logger.Error("home assistant rejected credentials while reconnecting", "error", err)

			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			c.fire(EventReconnectError)
			return
		}
		if err != nil {
			logger.Warn("failed to reconnect to home assistant", "attempt", attempt+1, "error", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = ws.Close()
			return
		}
		c.ws = ws
		c.haVersion = version
		c.reconnecting = false
		subs := c.subscriptions
		c.subscriptions = map[int64]*Subscription{}
		c.mu.Unlock()

		go c.readLoop(ws)

		span.SetAttributes(attribute.Int("reconnect.attempts", attempt+1))
		reconnectCounter.Add(ctx, 1)
		logger.Info("reconnected to home assistant", "version", version, "attempts", attempt+1)

		c.resubscribe(ctx, subs)
		c.fire(EventReady)
		return
	}
}

func (c *Conn) resubscribe(ctx context.Context, subs map[int64]*Subscription) {
	for _, id := range slices.Sorted(maps.Keys(subs)) {
		sub := subs[id]
		select {
		case <-sub.done:
			continue
		default:
		}
		if !sub.resubscribe {
			sub.end(ErrConnectionLost)
			continue
		}

		requestCtx, cancel := context.WithTimeout(ctx, resubscribeTimeout)
		_, err := c.sendFields(requestCtx, sub.fields, sub.commandType, sub)
		cancel()
		if err != nil {
			logger.Warn("failed to restore subscription", "command", sub.commandType, "error", err)
			sub.end(err)
		}
	}
}

package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription is a command whose result is followed by pushed events.
type Subscription struct {
	conn        *Conn
	fields      map[string]json.RawMessage
	commandType string
	callback    func(json.RawMessage)
	resubscribe bool

	// id is guarded by conn.mu and changes when the subscription is restored
	// on a new socket.
	id int64

	done    chan struct{}
	endOnce sync.Once
	err     error
}

type SubscribeOption func(*Subscription)

// WithoutResubscribe ends the subscription when the socket drops instead of
// restoring it after reconnect.
func WithoutResubscribe() SubscribeOption {
	return func(s *Subscription) { s.resubscribe = false }
}

// Subscribe sends msg and delivers every event pushed for it to callback,
// in arrival order, on the connection's read goroutine. The callback must
// not block on requests to the same connection.
func (c *Conn) Subscribe(ctx context.Context, msg any, callback func(json.RawMessage), opts ...SubscribeOption) (*Subscription, error) {
	ctx, span := tracer.Start(ctx, "subscribe")
	defer span.End()

	fields, commandType, err := encodeCommand(msg)
	if err != nil {
		return nil, err
	}
	if callback == nil {
		callback = func(json.RawMessage) {}
	}

	sub := &Subscription{
		conn:        c,
		fields:      fields,
		commandType: commandType,
		callback:    callback,
		resubscribe: true,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sub)
	}

	if _, err := c.sendFields(ctx, fields, commandType, sub); err != nil {
		sub.end(err)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to subscribe with %s: %w", commandType, err)
	}
	return sub, nil
}

// ID returns the id of the command that currently carries the subscription.
func (s *Subscription) ID() int64 {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.id
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription ended, nil while it is active or after
// [Subscription.Unsubscribe].
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Unsubscribe stops event delivery and asks the instance to drop the
// subscription.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	c := s.conn

	c.mu.Lock()
	id := s.id
	registered := c.subscriptions[id] == s
	if registered {
		delete(c.subscriptions, id)
	}
	c.mu.Unlock()

	s.end(nil)
	if !registered {
		return nil
	}

	if err := c.SendRequest(ctx, struct {
		Type         string `json:"type"`
		Subscription int64  `json:"subscription"`
	}{Type: "unsubscribe_events", Subscription: id}, nil); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

func (s *Subscription) deliver(event json.RawMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	s.callback(event)
}

func (s *Subscription) end(err error) {
	s.endOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

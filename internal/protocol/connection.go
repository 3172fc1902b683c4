// Package protocol adapts github.com/gonzalop/mq's callback-based v5 client
// into the explicit, blocking-with-deadline state machine spec.md §4.2
// describes, grounded on the teacher's internal/mqtt/client.go
// tick-clamped-wait idiom.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/mq"

	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/internal/timeutil"
)

const (
	minTick = 50 * time.Millisecond
	maxTick = 500 * time.Millisecond
)

// Message is a received application frame, decoupled from mq.Message so the
// rest of the library never imports the wire library directly.
type Message struct {
	Topic      string
	Payload    []byte
	QoS        byte
	Retained   bool
	Duplicate  bool
	Properties map[string]string
}

// DisconnectInfo describes why a Connection closed (spec.md §4.2, §4.9).
type DisconnectInfo struct {
	Code uint8
	At   time.Time
	Err  error
}

// Connection wraps one *mq.Client and exposes the operation set spec.md
// §4.2 names, enforcing the lifecycle's legal transitions and giving every
// blocking call a context-bound deadline.
type Connection struct {
	client *mq.Client
	cfg    config.ClientConfig
	logger ports.Logger

	state atomic.Int32

	incoming chan Message

	mu           sync.Mutex
	onDisconnect func(DisconnectInfo)
	closed       atomic.Bool
}

// Dial performs the New->Connecting->Connected transition by establishing
// the TCP connection and MQTT handshake (spec.md §4.2). Auto-reconnect is
// left to the pool's own supervision (spec.md §4.3), so it is disabled here.
func Dial(ctx context.Context, cfg config.ClientConfig, logger ports.Logger) (*Connection, error) {
	c := &Connection{
		cfg:      cfg,
		logger:   logger.WithFields(ports.Field{Key: "component", Value: "protocol"}),
		incoming: make(chan Message, 256),
	}
	c.state.Store(int32(StateNew))
	if err := c.transition(StateConnecting); err != nil {
		return nil, err
	}

	server := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	opts := []mq.Option{
		mq.WithClientID(cfg.ClientID),
		mq.WithKeepAlive(time.Duration(cfg.KeepAlive) * time.Second),
		mq.WithCleanSession(cfg.CleanSession),
		mq.WithProtocolVersion(protocolVersion(cfg.ProtocolLevel)),
		mq.WithAutoReconnect(false),
		mq.WithOnConnectionLost(func(_ *mq.Client, err error) {
			c.handleDisconnect(mq.ReasonCodeUnspecifiedError, err)
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, mq.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Will != nil {
		opts = append(opts, mq.WithWill(cfg.Will.Topic, []byte(cfg.Will.Payload), cfg.Will.QoS, cfg.Will.Retain))
	}

	client, err := mq.DialContext(ctx, server, opts...)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return nil, &ProtocolError{Op: "connect", Err: err}
	}
	c.client = client
	if err := c.transition(StateConnected); err != nil {
		return nil, err
	}
	return c, nil
}

func protocolVersion(level int) uint8 {
	if level == 3 {
		return mq.ProtocolV311
	}
	return mq.ProtocolV50
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) transition(to State) error {
	from := State(c.state.Load())
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	c.state.Store(int32(to))
	return nil
}

// OnDisconnect registers the callback invoked once, the first time this
// connection closes for any reason.
func (c *Connection) OnDisconnect(fn func(DisconnectInfo)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *Connection) handleDisconnect(code uint8, err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.state.Store(int32(StateClosed))
	c.mu.Lock()
	cb := c.onDisconnect
	c.mu.Unlock()
	if cb != nil {
		cb(DisconnectInfo{Code: code, At: time.Now(), Err: err})
	}
}

// Publish sends one application message, bounded by ctx (spec.md §4.2).
func (c *Connection) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	if err := c.transition(StatePublishing); err != nil {
		return err
	}
	defer c.transition(StateConnected)

	if c.client == nil {
		return nil
	}
	token := c.client.Publish(topic, payload, mq.WithQoS(mq.QoS(qos)), mq.WithRetain(retain))
	return c.wait(ctx, token, c.waitBudget(), "publish")
}

// Subscribe registers filter with the broker and arranges for matching
// messages to surface through Receive (spec.md §4.2, §4.6).
func (c *Connection) Subscribe(ctx context.Context, filter string, qos byte, noLocal, retainAsPublished bool, retainHandling byte) error {
	if err := c.transition(StateSubscribed); err != nil {
		return err
	}
	defer c.transition(StateConnected)

	handler := func(_ *mq.Client, m mq.Message) {
		msg := Message{
			Topic:     m.Topic,
			Payload:   m.Payload,
			QoS:       byte(m.QoS),
			Retained:  m.Retained,
			Duplicate: m.Duplicate,
		}
		if m.Properties != nil {
			msg.Properties = m.Properties.UserProperties
		}
		select {
		case c.incoming <- msg:
		default:
			c.logger.Warn("receive buffer full, dropping message", ports.Field{Key: "topic", Value: m.Topic})
		}
	}

	if c.client == nil {
		return nil
	}
	token := c.client.Subscribe(filter, mq.QoS(qos), handler,
		mq.WithNoLocal(noLocal),
		mq.WithRetainAsPublished(retainAsPublished),
		mq.WithRetainHandling(retainHandling),
	)
	return c.wait(ctx, token, c.waitBudget(), "subscribe")
}

// Unsubscribe removes one or more filters (spec.md §4.2).
func (c *Connection) Unsubscribe(ctx context.Context, filters ...string) error {
	if c.client == nil {
		return nil
	}
	token := c.client.Unsubscribe(filters...)
	return c.wait(ctx, token, c.waitBudget(), "unsubscribe")
}

// Receive blocks for the next incoming message, bounded by ctx.
func (c *Connection) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-c.incoming:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Disconnect sends a DISCONNECT with the given MQTT v5 reason code and
// closes the underlying connection (spec.md §4.2).
func (c *Connection) Disconnect(ctx context.Context, code uint8) error {
	if err := c.transition(StateDisconnecting); err != nil {
		return err
	}
	var err error
	if c.client != nil {
		err = c.client.Disconnect(ctx, mq.WithReason(mq.ReasonCode(code)))
	}
	c.handleDisconnect(code, err)
	if err != nil {
		return &ProtocolError{Op: "disconnect", Reason: code, Err: err}
	}
	return nil
}

// Healthy reports whether the wrapped client still believes it is
// connected; the pool's health sweep (spec.md §4.3) uses this to decide
// whether to destroy a lease-free connection.
func (c *Connection) Healthy() bool {
	if c.State() == StateClosed {
		return false
	}
	return c.client == nil || c.client.IsConnected()
}

// NewStub builds a Connection with no underlying wire client, for tests
// that exercise pool/registry/client logic without a live broker.
func NewStub(cfg config.ClientConfig, logger ports.Logger) *Connection {
	c := &Connection{
		cfg:      cfg,
		logger:   logger,
		incoming: make(chan Message, 256),
	}
	c.state.Store(int32(StateConnected))
	return c
}

func (c *Connection) waitBudget() time.Duration {
	budget := time.Duration(c.cfg.KeepAlive) * time.Second
	if budget <= 0 {
		budget = 10 * time.Second
	}
	return budget
}

// wait polls token until it completes, ctx is cancelled, or budget elapses,
// using a tick clamped to [minTick, maxTick] so cancellation is observed
// promptly without busy-spinning.
func (c *Connection) wait(ctx context.Context, token mq.Token, budget time.Duration, op string) error {
	now := time.Now()
	deadline := timeutil.Deadline(ctx, now, budget)
	tick := timeutil.ClampTick(budget, minTick, maxTick)

	for {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				return &ProtocolError{Op: op, Err: err}
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tick):
		}
		if time.Now().After(deadline) {
			return &TimeoutError{Op: op, Budget: budget.String()}
		}
	}
}

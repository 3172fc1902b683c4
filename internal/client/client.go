// Package client implements the Client Facade of spec.md §4.4: the public
// publish/subscribe/unsubscribe/receive surface that borrows from the
// Pool, delegates to the Protocol Connection, records Subscription
// Registry entries, and fires lifecycle events. New code — no teacher file
// models a facade over a connection pool this way, since the teacher wires
// its pool directly into its processor pipeline instead of exposing one.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/pool"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/internal/protocol"
	"github.com/ibs-source/mqttpool/internal/registry"
	"github.com/ibs-source/mqttpool/internal/topic"
)

// Validation points recorded against ValidationMetrics (spec.md §4.9).
const (
	validationPublishTopic = metrics.ValidationPoint("publish_topic")
)

// Client is the Client Facade. One Client wraps one named Pool.
type Client struct {
	poolName string
	pool     *pool.Pool
	registry *registry.Registry
	bus      events.Bus
	logger   ports.Logger
	metrics  *metrics.Registry

	mu         sync.Mutex
	subscribed map[string]bool
}

// New builds a Client Facade over an already-warmed Pool. mreg collects the
// ValidationMetrics/ErrorMetrics counters of spec.md §4.9; a nil mreg is
// replaced with a private, unshared Registry.
func New(poolName string, p *pool.Pool, reg *registry.Registry, bus events.Bus, logger ports.Logger, mreg *metrics.Registry) *Client {
	if mreg == nil {
		mreg = metrics.NewRegistry()
	}
	return &Client{
		poolName:   poolName,
		pool:       p,
		registry:   reg,
		bus:        bus,
		logger:     logger.WithFields(ports.Field{Key: "component", Value: "client"}, ports.Field{Key: "pool", Value: poolName}),
		metrics:    mreg,
		subscribed: make(map[string]bool),
	}
}

// Publish validates and sends one message (spec.md §4.4). contextID may be
// empty for an unaffiliated borrow.
func (c *Client) Publish(ctx context.Context, contextID, topicName string, payload []byte, qos byte, retain bool) error {
	if err := config.ValidatePublishTopic(topicName); err != nil {
		c.metrics.Validation.RecordFailure(validationPublishTopic, err.Error())
		return &ValidationError{Field: "topic", Reason: err.Error()}
	}
	c.metrics.Validation.RecordSuccess(validationPublishTopic)

	lease, err := c.pool.Borrow(ctx, contextID)
	if err != nil {
		return err
	}
	defer lease.Release()

	pubErr := lease.Conn.Publish(ctx, topicName, payload, qos, retain)
	if pubErr != nil {
		c.metrics.Error.Record(metrics.CategoryPublish, topicName, pubErr.Error(), time.Now())
	}
	c.fire(events.OnPublishEvent{Topic: topicName, Message: payload, QoS: qos, Result: pubErr, PoolName: c.poolName})
	return pubErr
}

// Subscribe registers one topic filter, borrows a connection bound to
// contextID, and records a Subscription Record (spec.md §4.4, §4.6).
func (c *Client) Subscribe(ctx context.Context, contextID, clientID string, tc config.TopicConfig) error {
	filters := topic.ToSubscribeMap(tc)

	lease, err := c.pool.Borrow(ctx, contextID)
	if err != nil {
		return err
	}
	defer lease.Release()

	var firstErr error
	subscribedTopics := make([]string, 0, len(filters))
	for filter, qos := range filters {
		if c.registry.Has(c.poolName, filter, clientID) {
			continue
		}
		err := lease.Conn.Subscribe(ctx, filter, qos, tc.NoLocal, tc.RetainAsPublished, tc.RetainHandling)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.registry.Add(registry.Record{Pool: c.poolName, Topic: filter, ClientID: clientID, QoS: qos})
		subscribedTopics = append(subscribedTopics, filter)
	}

	c.mu.Lock()
	if contextID != "" {
		c.subscribed[contextID] = true
	}
	c.mu.Unlock()

	if firstErr != nil {
		c.metrics.Error.Record(metrics.CategorySubscribe, clientID, firstErr.Error(), time.Now())
	}
	c.fire(events.OnSubscribeEvent{Topics: subscribedTopics, ClientID: clientID, PoolName: c.poolName, Result: firstErr})
	return firstErr
}

// Unsubscribe mirrors Subscribe (spec.md §4.4).
func (c *Client) Unsubscribe(ctx context.Context, contextID, clientID string, filters ...string) error {
	lease, err := c.pool.Borrow(ctx, contextID)
	if err != nil {
		return err
	}
	defer lease.Release()

	err = lease.Conn.Unsubscribe(ctx, filters...)
	if err != nil {
		c.metrics.Error.Record(metrics.CategorySubscribe, clientID, err.Error(), time.Now())
	}
	for _, f := range filters {
		c.registry.Remove(c.poolName, f, clientID)
	}
	return err
}

// Receive returns the next incoming frame for a subscriber-bound context
// id (spec.md §4.4). contextID must have previously been bound by
// Subscribe, otherwise NotSubscribedError is returned.
func (c *Client) Receive(ctx context.Context, contextID string) (protocol.Message, error) {
	c.mu.Lock()
	bound := contextID != "" && c.subscribed[contextID]
	c.mu.Unlock()
	if !bound {
		return protocol.Message{}, &NotSubscribedError{ContextID: contextID}
	}

	lease, err := c.pool.Borrow(ctx, contextID)
	if err != nil {
		return protocol.Message{}, err
	}
	defer lease.Release()

	msg, err := lease.Conn.Receive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.metrics.Error.Record(metrics.CategoryProtocol, contextID, err.Error(), time.Now())
		}
		return protocol.Message{}, err
	}
	c.fire(events.OnReceiveEvent{
		Type:       "message",
		Topic:      msg.Topic,
		Message:    msg.Payload,
		QoS:        msg.QoS,
		Dup:        msg.Duplicate,
		Retain:     msg.Retained,
		Properties: msg.Properties,
		PoolName:   c.poolName,
	})
	return msg, nil
}

func (c *Client) fire(e events.Event) {
	if c.bus == nil {
		return
	}
	c.bus.Dispatch(e)
}

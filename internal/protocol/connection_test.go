package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/logger"
)

func newTestConnection() *Connection {
	testLog, _ := logger.NewLogrusLogger("error", "text")
	c := &Connection{
		cfg:      config.ClientConfig{KeepAlive: 1},
		logger:   testLog,
		incoming: make(chan Message, 4),
	}
	c.state.Store(int32(StateConnected))
	return c
}

func TestConnection_TransitionRejectsIllegalEdge(t *testing.T) {
	c := newTestConnection()
	c.state.Store(int32(StateClosed))
	if err := c.transition(StateConnecting); err == nil {
		t.Fatalf("expected error transitioning out of Closed")
	}
}

func TestConnection_ReceiveHonorsContextCancellation(t *testing.T) {
	c := newTestConnection()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Receive(ctx)
	if err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestConnection_ReceiveDeliversQueuedMessage(t *testing.T) {
	c := newTestConnection()
	c.incoming <- Message{Topic: "a/b", Payload: []byte("hi")}

	msg, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Topic != "a/b" || string(msg.Payload) != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestConnection_HandleDisconnectFiresOnce(t *testing.T) {
	c := newTestConnection()
	var calls int
	c.OnDisconnect(func(DisconnectInfo) { calls++ })

	c.handleDisconnect(0x8E, nil)
	c.handleDisconnect(0x8E, nil)

	if calls != 1 {
		t.Fatalf("expected exactly one callback invocation, got %d", calls)
	}
	if c.State() != StateClosed {
		t.Fatalf("expected Closed state after disconnect")
	}
}

func TestProtocolVersion(t *testing.T) {
	if protocolVersion(3) == protocolVersion(5) {
		t.Fatalf("v3.1.1 and v5.0 must map to distinct wire versions")
	}
}

func TestConnection_WaitBudgetFallsBackWhenKeepAliveZero(t *testing.T) {
	c := newTestConnection()
	c.cfg.KeepAlive = 0
	if got := c.waitBudget(); got != 10*time.Second {
		t.Fatalf("expected 10s fallback, got %s", got)
	}
}

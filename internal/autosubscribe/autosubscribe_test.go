package autosubscribe

import (
	"context"
	"testing"
	"time"

	"github.com/ibs-source/mqttpool/internal/client"
	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/logger"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/pool"
	"github.com/ibs-source/mqttpool/internal/protocol"
	"github.com/ibs-source/mqttpool/internal/registry"
)

func testLogger() *logger.LogrusLogger {
	l, _ := logger.NewLogrusLogger("error", "text")
	return l
}

// TestSubscriber_Run is scenario S2 from spec.md §8: a TopicConfig with
// auto_subscribe, enable_multisub, multisub_num:3, topic "jobs/work", base
// client id "w" produces three registry records w-0, w-1, w-2.
func TestSubscriber_Run(t *testing.T) {
	cfg := config.ClientConfig{Host: "localhost", Port: 1883, ClientID: "w", KeepAlive: 30}
	poolCfg := config.PoolConfig{MinConnections: 1, MaxConnections: 4, ConnectTimeoutS: 5, WaitTimeoutS: 1, HeartbeatS: 30, MaxIdleTimeS: 300}
	dialer := func(ctx context.Context) (*protocol.Connection, error) {
		return protocol.NewStub(cfg, testLogger()), nil
	}
	p, err := pool.New(context.Background(), "default", cfg, poolCfg, testLogger(), metrics.NewRegistry(), dialer)
	if err != nil {
		t.Fatalf("unexpected pool error: %v", err)
	}
	reg := registry.New()
	c := client.New("default", p, reg, events.NewReference(), testLogger(), metrics.NewRegistry())

	group := NewGroup(context.Background())
	defer group.Stop()

	sub := &Subscriber{
		PoolName:     "default",
		BaseClientID: "w",
		Client:       c,
		Registry:     reg,
		Group:        group,
		Logger:       testLogger(),
	}

	broker := &config.Broker{
		Topics: []config.TopicConfig{
			{Topic: "jobs/work", QoS: 1, AutoSubscribe: true, EnableMultisub: true, MultisubNum: 3},
		},
	}
	sub.Run(context.Background(), broker)

	for _, id := range []string{"w-0", "w-1", "w-2"} {
		if !reg.Has("default", "jobs/work", id) {
			t.Fatalf("expected registry to contain subscriber %s", id)
		}
	}
	if got := len(reg.List("default")); got != 3 {
		t.Fatalf("expected exactly 3 records, got %d", got)
	}
}

// TestSubscriber_ReentrySafety checks that re-running Run does not
// duplicate subscriptions already present in the registry (spec.md §4.7).
func TestSubscriber_ReentrySafety(t *testing.T) {
	cfg := config.ClientConfig{Host: "localhost", Port: 1883, ClientID: "w", KeepAlive: 30}
	poolCfg := config.PoolConfig{MinConnections: 1, MaxConnections: 4, ConnectTimeoutS: 5, WaitTimeoutS: 1, HeartbeatS: 30, MaxIdleTimeS: 300}
	dialer := func(ctx context.Context) (*protocol.Connection, error) {
		return protocol.NewStub(cfg, testLogger()), nil
	}
	p, _ := pool.New(context.Background(), "default", cfg, poolCfg, testLogger(), metrics.NewRegistry(), dialer)
	reg := registry.New()
	c := client.New("default", p, reg, events.NewReference(), testLogger(), metrics.NewRegistry())

	group := NewGroup(context.Background())
	defer group.Stop()

	sub := &Subscriber{PoolName: "default", BaseClientID: "w", Client: c, Registry: reg, Group: group, Logger: testLogger()}
	broker := &config.Broker{Topics: []config.TopicConfig{{Topic: "a/b", QoS: 0, AutoSubscribe: true}}}

	sub.Run(context.Background(), broker)
	time.Sleep(5 * time.Millisecond)
	before := len(reg.List("default"))

	sub.Run(context.Background(), broker)
	time.Sleep(5 * time.Millisecond)
	after := len(reg.List("default"))

	if before != 1 || after != 1 {
		t.Fatalf("expected re-entry to leave registry at 1 record, got before=%d after=%d", before, after)
	}
}

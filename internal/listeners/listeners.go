// Package listeners implements the library-provided event listeners of
// spec.md §4.5: PublishListener, SubscribeListener, OnReceiveListener,
// DebugTapListener, OnDisconnectListener, AfterWorkerStartListener. Every
// listener is wrapped in a recover-and-record trap, grounded on the
// teacher's internal/processor pipeline-step error trapping (each step
// recovers, logs, continues) generalized from "pipeline step" to "event
// listener" (spec.md §4.5: "exceptions ... must not propagate out").
package listeners

import (
	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/ports"
)

// Trap wraps h so a panic during processing is recovered, logged, and
// recorded in validation metrics instead of propagating to the Bus.
func Trap(name string, logger ports.Logger, vm *metrics.ValidationMetrics, h events.Handler) events.Handler {
	return func(e events.Event) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("listener panic recovered",
					ports.Field{Key: "listener", Value: name},
					ports.Field{Key: "panic", Value: r})
				if vm != nil {
					vm.RecordFailure(metrics.ValidationPoint(name), "panic recovered")
				}
			}
		}()
		h(e)
	}
}

// OnDisconnectListener updates connection metrics and the error taxonomy
// bucket matching the disconnect reason code (spec.md §4.5, §4.9).
func OnDisconnectListener(reg *metrics.Registry, logger ports.Logger) events.Handler {
	return func(e events.Event) {
		evt, ok := e.(events.OnDisconnectEvent)
		if !ok {
			return
		}
		reg.Connection.Disconnections.Add(1)
		if category, isErr := metrics.ClassifyDisconnect(evt.Code); isErr {
			reg.Error.Record(category, "mqtt_connection", evt.Type, evt.At)
		}
		logger.Info("connection disconnected",
			ports.Field{Key: "pool", Value: evt.PoolName},
			ports.Field{Key: "code", Value: evt.Code})
	}
}

// OnReceiveListener routes a received frame to the handler registered
// under the frame's topic name, falling back to a log line (spec.md §4.5).
// The handlers map is keyed by topic; TopicConfig.HandlerClass is not
// consulted.
func OnReceiveListener(handlers map[string]func(events.OnReceiveEvent), logger ports.Logger) events.Handler {
	return func(e events.Event) {
		evt, ok := e.(events.OnReceiveEvent)
		if !ok {
			return
		}
		if h, found := handlers[evt.Topic]; found {
			h(evt)
			return
		}
		logger.Debug("received message with no registered handler",
			ports.Field{Key: "topic", Value: evt.Topic},
			ports.Field{Key: "bytes", Value: len(evt.Message)})
	}
}

// DebugTapForwarder is satisfied by the Debug Tap server's event sink
// (spec.md §4.10); kept as an interface here so listeners does not import
// debugtap and create a cycle.
type DebugTapForwarder interface {
	Forward(e events.Event)
}

// DebugTapListener forwards every Publish/Receive/Subscribe/Disconnect
// event to the Debug Tap when enabled (spec.md §4.5).
func DebugTapListener(tap DebugTapForwarder) events.Handler {
	return func(e events.Event) {
		if tap == nil {
			return
		}
		tap.Forward(e)
	}
}

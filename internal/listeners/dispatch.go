package listeners

import (
	"context"

	"github.com/ibs-source/mqttpool/internal/autosubscribe"
	"github.com/ibs-source/mqttpool/internal/client"
	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/ports"
)

// PublishListener consumes PublishEvent and delegates to the Client Facade
// (spec.md §4.5).
func PublishListener(ctx context.Context, c *client.Client, logger ports.Logger) events.Handler {
	return func(e events.Event) {
		evt, ok := e.(events.PublishEvent)
		if !ok {
			return
		}
		if err := c.Publish(ctx, "", evt.Topic, evt.Message, evt.QoS, evt.Retain); err != nil {
			logger.Warn("publish listener failed",
				ports.Field{Key: "topic", Value: evt.Topic},
				ports.Field{Key: "error", Value: err})
		}
	}
}

// SubscribeListener consumes SubscribeEvent; for each TopicConfig it
// expands it per §4.8 and subscribes via the Client Facade, which itself
// spawns the Subscription Registry bookkeeping (spec.md §4.5).
func SubscribeListener(ctx context.Context, c *client.Client, logger ports.Logger) events.Handler {
	return func(e events.Event) {
		evt, ok := e.(events.SubscribeEvent)
		if !ok {
			return
		}
		for _, stc := range evt.TopicConfigs {
			tc := config.TopicConfig{
				Topic:             stc.Topic,
				QoS:               stc.QoS,
				NoLocal:           stc.NoLocal,
				RetainAsPublished: stc.RetainAsPublished,
				RetainHandling:    stc.RetainHandling,
				EnableShareTopic:  stc.EnableShareTopic,
				ShareTopicGroups:  stc.ShareTopicGroups,
				EnableQueueTopic:  stc.EnableQueueTopic,
				EnableMultisub:    stc.EnableMultisub,
				MultisubNum:       stc.MultisubNum,
				AutoSubscribe:     stc.AutoSubscribe,
				HandlerClass:      stc.HandlerClass,
			}
			if err := c.Subscribe(ctx, evt.ClientID, evt.ClientID, tc); err != nil {
				logger.Warn("subscribe listener failed",
					ports.Field{Key: "topic", Value: tc.Topic},
					ports.Field{Key: "error", Value: err})
			}
		}
	}
}

// AfterWorkerStartListener runs the Auto-Subscriber's one-shot warm-up
// walk (spec.md §4.5, §4.7).
func AfterWorkerStartListener(ctx context.Context, sub *autosubscribe.Subscriber, broker *config.Broker) func() {
	return func() {
		sub.Run(ctx, broker)
	}
}

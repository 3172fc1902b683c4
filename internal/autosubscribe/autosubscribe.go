package autosubscribe

import (
	"context"
	"fmt"

	"github.com/ibs-source/mqttpool/internal/client"
	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/internal/registry"
	"github.com/ibs-source/mqttpool/internal/topic"
)

// Subscriber drives spec.md §4.7's warm-up walk: for every TopicConfig
// with auto_subscribe set, it determines the subscriber count, picks
// deterministic client ids, checks re-entry safety against the
// Subscription Registry, and starts one receive loop per subscriber.
type Subscriber struct {
	PoolName      string
	BaseClientID  string
	Client        *client.Client
	Registry      *registry.Registry
	Group         *Group
	Logger        ports.Logger
}

// Run performs the one-shot warm-up walk over broker.Topics.
func (s *Subscriber) Run(ctx context.Context, broker *config.Broker) {
	for _, tc := range broker.Topics {
		if !tc.AutoSubscribe {
			continue
		}
		s.subscribeTopic(ctx, tc)
	}
}

func (s *Subscriber) subscribeTopic(ctx context.Context, tc config.TopicConfig) {
	n := 1
	if tc.EnableMultisub {
		n = tc.MultisubNum
	}
	filters := topic.ToSubscribeMap(tc)

	for i := 0; i < n; i++ {
		clientID := fmt.Sprintf("%s-%d", s.BaseClientID, i)
		if s.alreadyRegistered(filters, clientID) {
			continue
		}

		contextID := fmt.Sprintf("autosub:%s:%d", tc.Topic, i)
		if err := s.Client.Subscribe(ctx, contextID, clientID, tc); err != nil {
			s.Logger.Warn("auto-subscribe failed",
				ports.Field{Key: "topic", Value: tc.Topic},
				ports.Field{Key: "client_id", Value: clientID},
				ports.Field{Key: "error", Value: err})
			continue
		}

		s.Group.Start(Loop{Name: clientID, Run: s.receiveLoop(contextID)})
	}
}

func (s *Subscriber) alreadyRegistered(filters map[string]byte, clientID string) bool {
	for filter := range filters {
		if !s.Registry.Has(s.PoolName, filter, clientID) {
			return false
		}
	}
	return true
}

func (s *Subscriber) receiveLoop(contextID string) func(context.Context) {
	return func(ctx context.Context) {
		for {
			_, err := s.Client.Receive(ctx, contextID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.Logger.Warn("subscriber receive failed",
					ports.Field{Key: "context_id", Value: contextID},
					ports.Field{Key: "error", Value: err})
				continue
			}
		}
	}
}

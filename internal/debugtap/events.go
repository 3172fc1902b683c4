package debugtap

import (
	"fmt"

	"github.com/ibs-source/mqttpool/internal/events"
)

// toDebugMessage maps a lifecycle Event to the wire shape of spec.md §6.
// OnPublishEvent and OnReceiveEvent both render as "publish" frames,
// distinguished by metadata.direction ("out"/"in"), since the filter
// engine's `direction` field (spec.md §4.11.1) must be able to discriminate
// them and the Debug Message's type enum (spec.md §3) has no separate
// "receive" variant.
func toDebugMessage(e events.Event) (Message, bool) {
	switch evt := e.(type) {
	case events.OnPublishEvent:
		topic := evt.Topic
		if topic == "" {
			// OnPublishEvent carries no alias property, so N is unavailable here.
			topic = "(alias:N)"
		}
		payload := map[string]any{
			"topic":   evt.Topic,
			"message": string(evt.Message),
			"qos":     evt.QoS,
			"pool":    evt.PoolName,
		}
		meta := map[string]any{"direction": "out", "qos": evt.QoS}
		if evt.Result != nil {
			meta["error"] = evt.Result.Error()
		}
		return newMessage("publish", "mqtt:"+topic, payload, meta), true

	case events.OnReceiveEvent:
		topic := evt.Topic
		if topic == "" {
			// OnReceiveEvent carries no alias property, so N is unavailable here.
			topic = "(alias:N)"
		}
		payload := map[string]any{
			"topic":   evt.Topic,
			"message": string(evt.Message),
			"qos":     evt.QoS,
			"retain":  evt.Retain,
			"dup":     evt.Dup,
			"pool":    evt.PoolName,
		}
		meta := map[string]any{"direction": "in", "qos": evt.QoS}
		return newMessage("publish", "mqtt:"+topic, payload, meta), true

	case events.OnSubscribeEvent:
		payload := map[string]any{
			"topics":    evt.Topics,
			"client_id": evt.ClientID,
			"pool":      evt.PoolName,
		}
		meta := map[string]any{}
		if evt.Result != nil {
			meta["error"] = evt.Result.Error()
		}
		return newMessage("subscribe", "mqtt:subscribe", payload, meta), true

	case events.OnDisconnectEvent:
		payload := map[string]any{
			"disconnect_type": evt.Type,
			"code":            evt.Code,
			"pool":            evt.PoolName,
		}
		return newMessage("disconnect", "mqtt:disconnect", payload, map[string]any{}), true

	case events.PublishEvent:
		return newMessage("system", "system", fmt.Sprintf("publish requested: %s", evt.Topic), nil), true

	case events.SubscribeEvent:
		return newMessage("system", "system", fmt.Sprintf("subscribe requested: client=%s", evt.ClientID), nil), true

	default:
		return Message{}, false
	}
}

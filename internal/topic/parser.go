// Package topic builds MQTT v5 subscription filter strings — plain, shared
// ($share/<group>/<topic>), and queue ($queue/<topic>) — from a TopicConfig
// (spec.md §4.8). It is a pure string builder; validation is config's job.
package topic

import "github.com/ibs-source/mqttpool/internal/config"

const separator = "/"

// Plain returns the filter unchanged, paired with its QoS.
func Plain(t string, qos byte) (filter string, qosOut byte) {
	return t, qos
}

// Shared builds a $share/<group>/<topic> filter. An empty group defaults to
// "default", per spec.md §4.8.
func Shared(t, group string) string {
	if group == "" {
		group = "default"
	}
	return "$share" + separator + group + separator + t
}

// Queue builds a $queue/<topic> filter.
func Queue(t string) string {
	return "$queue" + separator + t
}

// ToSubscribeMap expands a TopicConfig into the {filter -> qos} map a
// SUBSCRIBE packet needs (spec.md §4.8, S1/S2 scenarios). If
// EnableShareTopic is set it emits one entry per group in ShareTopicGroups;
// else if EnableQueueTopic it emits the queue form; else the plain form.
func ToSubscribeMap(t config.TopicConfig) map[string]byte {
	out := make(map[string]byte)
	switch t.Style() {
	case config.StyleShared:
		for _, g := range t.ShareTopicGroups {
			out[Shared(t.Topic, g)] = t.QoS
		}
	case config.StyleQueue:
		out[Queue(t.Topic)] = t.QoS
	default:
		f, q := Plain(t.Topic, t.QoS)
		out[f] = q
	}
	return out
}

// Package events defines the event record shapes and the in-process Bus
// contract of spec.md §4.5 and §9. Per spec.md §4.5, the library does not
// ship its own bus — it defines these shapes and a reference Bus
// implementation the host application may substitute with whatever
// in-process event dispatcher it already has.
package events

import (
	"time"

	"github.com/ibs-source/mqttpool/internal/config"
)

// Tag identifies an event's static type, used by the Bus's
// "event_tag → handler[]" registry (spec.md §9's dispatch-without-dynamic-
// -dispatch design note) instead of a runtime class-name lookup.
type Tag int

const (
	TagPublish Tag = iota
	TagSubscribe
	TagOnReceive
	TagOnPublish
	TagOnSubscribe
	TagOnDisconnect
)

func (t Tag) String() string {
	switch t {
	case TagPublish:
		return "publish"
	case TagSubscribe:
		return "subscribe"
	case TagOnReceive:
		return "on_receive"
	case TagOnPublish:
		return "on_publish"
	case TagOnSubscribe:
		return "on_subscribe"
	case TagOnDisconnect:
		return "on_disconnect"
	default:
		return "unknown"
	}
}

// Event is any of the tagged variants below; Tag() lets the Bus route
// without reflection.
type Event interface {
	Tag() Tag
}

// PublishEvent requests a publish (spec.md §3).
type PublishEvent struct {
	Topic      string
	Message    []byte
	QoS        byte
	Properties map[string]string
	Dup        bool
	Retain     bool
	PoolName   string // optional; PublishListener does not read it, so every registered PublishListener handles the event
}

func (PublishEvent) Tag() Tag { return TagPublish }

// SubscribeEvent requests one or more subscriptions (spec.md §3).
type SubscribeEvent struct {
	TopicConfigs []SubscribeTopicConfig
	PoolName     string
	ClientID     string
}

func (SubscribeEvent) Tag() Tag { return TagSubscribe }

// SubscribeTopicConfig is the subset of config.TopicConfig a SubscribeEvent
// needs, kept local to events to avoid importing internal/config from the
// event-shape package every listener depends on.
type SubscribeTopicConfig struct {
	Topic             string
	QoS               byte
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    byte
	EnableShareTopic  bool
	ShareTopicGroups  []string
	EnableQueueTopic  bool
	EnableMultisub    bool
	MultisubNum       int
	AutoSubscribe     bool
	HandlerClass      string
}

// OnReceiveEvent fires when a subscriber loop receives an incoming frame
// (spec.md §3).
type OnReceiveEvent struct {
	Type       string
	Topic      string
	Message    []byte
	QoS        byte
	Dup        bool
	Retain     bool
	MessageID  uint16
	Properties map[string]string
	PoolName   string
}

func (OnReceiveEvent) Tag() Tag { return TagOnReceive }

// OnPublishEvent fires after a publish completes (spec.md §3).
type OnPublishEvent struct {
	Topic    string
	Message  []byte
	QoS      byte
	Result   error
	PoolName string
}

func (OnPublishEvent) Tag() Tag { return TagOnPublish }

// OnSubscribeEvent fires after a subscribe completes (spec.md §3).
type OnSubscribeEvent struct {
	Topics   []string
	ClientID string
	PoolName string
	Result   error
}

func (OnSubscribeEvent) Tag() Tag { return TagOnSubscribe }

// OnDisconnectEvent describes a Connection's transition to Closed
// (spec.md §3, §4.2). protocol.Connection reports a disconnect only through
// its OnDisconnect callback; no code in this module publishes an
// OnDisconnectEvent on the Bus.
type OnDisconnectEvent struct {
	Type         string
	Code         uint8
	PoolName     string
	ClientConfig config.ClientConfig
	QoS          *byte
	At           time.Time
}

func (OnDisconnectEvent) Tag() Tag { return TagOnDisconnect }

// Package config loads and validates broker, pool, and topic configuration
// (spec.md §3, §4.1, §6). Types here are immutable once returned by Load: the
// loader validates before handing a Document back to the caller.
package config

// Will describes an MQTT Last Will and Testament message (spec.md §3).
type Will struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     byte   `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// ClientConfig is immutable after validation and is shared by every pooled
// Connection that dials the same broker identity (spec.md §3).
type ClientConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	ClientID      string `yaml:"client_id"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	KeepAlive     int    `yaml:"keep_alive"`
	ProtocolLevel int    `yaml:"protocol_level"`
	CleanSession  bool   `yaml:"clean_session"`
	Will          *Will  `yaml:"will,omitempty"`
}

// PoolConfig bounds one Connection Pool (spec.md §3, §4.3).
type PoolConfig struct {
	MinConnections  int `yaml:"min_connections"`
	MaxConnections  int `yaml:"max_connections"`
	ConnectTimeoutS int `yaml:"connect_timeout_s"`
	WaitTimeoutS    int `yaml:"wait_timeout_s"`
	// HeartbeatS is the PINGREQ probe interval in seconds; 0 means "none".
	HeartbeatS   int `yaml:"heartbeat_s"`
	MaxIdleTimeS int `yaml:"max_idle_time_s"`
}

// SubscriptionStyle enumerates the three mutually-exclusive subscription
// shapes a TopicConfig may expand to (spec.md §3 invariant).
type SubscriptionStyle int

const (
	StylePlain SubscriptionStyle = iota
	StyleShared
	StyleQueue
)

func (s SubscriptionStyle) String() string {
	switch s {
	case StyleShared:
		return "shared"
	case StyleQueue:
		return "queue"
	default:
		return "plain"
	}
}

// TopicConfig describes one logical topic subscription (spec.md §3).
type TopicConfig struct {
	Topic             string   `yaml:"topic"`
	QoS               byte     `yaml:"qos"`
	NoLocal           bool     `yaml:"no_local"`
	RetainAsPublished bool     `yaml:"retain_as_published"`
	RetainHandling    byte     `yaml:"retain_handling"`
	EnableShareTopic  bool     `yaml:"enable_share_topic"`
	ShareTopicGroups  []string `yaml:"share_topic_groups,omitempty"`
	EnableQueueTopic  bool     `yaml:"enable_queue_topic"`
	EnableMultisub    bool     `yaml:"enable_multisub"`
	MultisubNum       int      `yaml:"multisub_num"`
	AutoSubscribe     bool     `yaml:"auto_subscribe"`
	HandlerClass      string   `yaml:"handler_class,omitempty"`
}

// Style returns which of the three subscription shapes this TopicConfig
// expands to. Callers should validate first; Style does not itself enforce
// mutual exclusivity.
func (t TopicConfig) Style() SubscriptionStyle {
	switch {
	case t.EnableShareTopic:
		return StyleShared
	case t.EnableQueueTopic:
		return StyleQueue
	default:
		return StylePlain
	}
}

// DebugConfig configures the Debug Tap Server (spec.md §4.10, §6).
type DebugConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket_path"`
}

// Broker is one named broker identity: its connection config, pool sizing,
// topic table, and debug tap settings (spec.md §6's "default" document key).
type Broker struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	ClientID      string        `yaml:"client_id"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	KeepAlive     int           `yaml:"keep_alive"`
	ProtocolLevel int           `yaml:"protocol_level"`
	CleanSession  bool          `yaml:"clean_session"`
	Will          *Will         `yaml:"will,omitempty"`
	Pool          PoolConfig    `yaml:"pool"`
	Topics        []TopicConfig `yaml:"topics"`
	Debug         DebugConfig   `yaml:"debug"`
}

// ClientConfig projects the broker's connection fields into the standalone
// ClientConfig shared by every pooled Connection (spec.md §3).
func (b *Broker) ClientConfig() ClientConfig {
	return ClientConfig{
		Host:          b.Host,
		Port:          b.Port,
		ClientID:      b.ClientID,
		Username:      b.Username,
		Password:      b.Password,
		KeepAlive:     b.KeepAlive,
		ProtocolLevel: b.ProtocolLevel,
		CleanSession:  b.CleanSession,
		Will:          b.Will,
	}
}

// Document is the top-level configuration document (spec.md §6): a map of
// pool name to Broker, almost always just {"default": {...}}.
type Document map[string]*Broker

// Default returns the "default" broker entry, the shape almost every
// deployment uses.
func (d Document) Default() (*Broker, bool) {
	b, ok := d["default"]
	return b, ok
}

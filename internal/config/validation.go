package config

import "strings"

// ValidateConnection validates a ClientConfig per spec.md §4.1's exhaustive
// rule table ("validate_connection"), returning the first violation found.
func ValidateConnection(c ClientConfig) error {
	if c.Host == "" {
		return fieldErr("host", "host required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fieldErr("port", "port out of range")
	}
	if err := validateClientID(c.ClientID, c.ProtocolLevel); err != nil {
		return err
	}
	if c.KeepAlive < 0 || c.KeepAlive > 65535 {
		return fieldErr("keep_alive", "keep_alive out of range")
	}
	if c.ProtocolLevel != 3 && c.ProtocolLevel != 4 && c.ProtocolLevel != 5 {
		return fieldErr("protocol_level", "protocol_level invalid")
	}
	if c.Will != nil {
		if err := validateQoS(c.Will.QoS); err != nil {
			return err
		}
		if err := validateTopicFilter(c.Will.Topic); err != nil {
			return err
		}
	}
	return nil
}

func validateClientID(id string, protocolLevel int) error {
	if id == "" {
		return fieldErr("client_id", "client_id invalid")
	}
	maxLen := 65535
	if protocolLevel == 3 {
		maxLen = 23
	}
	if len(id) > maxLen {
		return fieldErr("client_id", "client_id invalid")
	}
	for _, r := range id {
		if !isClientIDRune(r) {
			return fieldErr("client_id", "client_id invalid")
		}
	}
	return nil
}

func isClientIDRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}

func validateQoS(qos byte) error {
	if qos > 2 {
		return fieldErr("qos", "qos invalid")
	}
	return nil
}

// ValidatePool validates a PoolConfig per spec.md §4.1.
func ValidatePool(p PoolConfig) error {
	if p.MinConnections < 0 || p.MaxConnections < 0 {
		return fieldErr("pool", "pool sizes invalid")
	}
	if p.MinConnections > p.MaxConnections {
		return fieldErr("pool", "pool sizes invalid")
	}
	return nil
}

// ValidateTopic validates a TopicConfig per spec.md §3 and §4.1: the topic
// filter itself, its QoS, and the mutual-exclusivity invariant between the
// three subscription styles (spec.md §9's Open Question, resolved in
// SPEC_FULL.md §4 by rejecting the ambiguous combination).
func ValidateTopic(t TopicConfig) error {
	if err := validateTopicFilter(t.Topic); err != nil {
		return err
	}
	if err := validateQoS(t.QoS); err != nil {
		return err
	}
	if t.RetainHandling > 2 {
		return fieldErr("retain_handling", "retain_handling invalid")
	}
	if t.EnableShareTopic && t.EnableQueueTopic {
		return fieldErr("topic", "exactly one subscription style may be active")
	}
	if t.EnableShareTopic && len(t.ShareTopicGroups) == 0 {
		return fieldErr("share_topic_groups", "at least one share group required")
	}
	if t.EnableMultisub && t.MultisubNum < 1 {
		return fieldErr("multisub_num", "multisub_num must be >= 1 when enable_multisub is set")
	}
	return nil
}

// ValidatePublishTopic enforces the publish-side topic name rules: no
// wildcards are permitted (spec.md §4.1, §4.4), unlike a subscribe filter.
func ValidatePublishTopic(name string) error {
	if name == "" {
		return fieldErr("topic", "topic must not be empty")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fieldErr("topic", "topic invalid")
		}
		if r == '+' || r == '#' {
			return fieldErr("topic", "publish topic must not contain wildcards")
		}
	}
	return nil
}

// validateTopicFilter enforces MQTT wildcard rules (spec.md §4.1):
// '+' only as a whole level, '#' only as the final level, no control
// characters.
func validateTopicFilter(filter string) error {
	if filter == "" {
		return fieldErr("topic", "topic filter invalid")
	}
	for _, r := range filter {
		if r < 0x20 || r == 0x7f {
			return fieldErr("topic", "topic filter invalid")
		}
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "+":
			continue
		case level == "#":
			if i != len(levels)-1 {
				return fieldErr("topic", "topic filter invalid")
			}
		case strings.ContainsRune(level, '+') || strings.ContainsRune(level, '#'):
			return fieldErr("topic", "topic filter invalid")
		}
	}
	return nil
}

// SanitizeTopicName strips ASCII control characters and trims leading and
// trailing '/' (spec.md §4.1). It is idempotent:
// SanitizeTopicName(SanitizeTopicName(s)) == SanitizeTopicName(s).
func SanitizeTopicName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "/")
}

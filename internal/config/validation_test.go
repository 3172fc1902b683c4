package config

import "testing"

func TestValidateConnection_Defaults(t *testing.T) {
	b := DefaultBroker()
	if err := ValidateConnection(b.ClientConfig()); err != nil {
		t.Fatalf("defaults should validate, got error: %v", err)
	}
}

func TestValidateConnection_Rules(t *testing.T) {
	base := func() ClientConfig { return DefaultBroker().ClientConfig() }

	cases := []struct {
		name  string
		mutate func(*ClientConfig)
	}{
		{"empty host", func(c *ClientConfig) { c.Host = "" }},
		{"port zero", func(c *ClientConfig) { c.Port = 0 }},
		{"port too big", func(c *ClientConfig) { c.Port = 65536 }},
		{"empty client id", func(c *ClientConfig) { c.ClientID = "" }},
		{"client id too long for v3", func(c *ClientConfig) {
			c.ProtocolLevel = 3
			c.ClientID = "012345678901234567890123"
		}},
		{"client id bad chars", func(c *ClientConfig) { c.ClientID = "bad id!" }},
		{"keep_alive negative", func(c *ClientConfig) { c.KeepAlive = -1 }},
		{"keep_alive too big", func(c *ClientConfig) { c.KeepAlive = 65536 }},
		{"protocol_level invalid", func(c *ClientConfig) { c.ProtocolLevel = 2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			if err := ValidateConnection(c); err == nil {
				t.Fatalf("expected error for case %q", tc.name)
			}
		})
	}
}

func TestValidatePool(t *testing.T) {
	if err := ValidatePool(PoolConfig{MinConnections: 5, MaxConnections: 3}); err == nil {
		t.Fatal("expected error when min > max")
	}
	if err := ValidatePool(PoolConfig{MinConnections: -1, MaxConnections: 3}); err == nil {
		t.Fatal("expected error for negative min")
	}
	if err := ValidatePool(PoolConfig{MinConnections: 1, MaxConnections: 3}); err != nil {
		t.Fatalf("expected valid pool config, got %v", err)
	}
}

func TestValidateTopic_Filters(t *testing.T) {
	ok := []string{"sensors/+/t/#", "sensors/+/temperature/#", "a/b/c"}
	for _, f := range ok {
		t.Run("accept_"+f, func(t *testing.T) {
			if err := validateTopicFilter(f); err != nil {
				t.Fatalf("expected %q to be valid, got %v", f, err)
			}
		})
	}

	bad := []string{"sensors/temp+/data", "a/#/b", "\x01/c", ""}
	for _, f := range bad {
		t.Run("reject_"+f, func(t *testing.T) {
			if err := validateTopicFilter(f); err == nil {
				t.Fatalf("expected %q to be rejected", f)
			}
		})
	}
}

func TestValidateTopic_MutualExclusivity(t *testing.T) {
	tc := TopicConfig{
		Topic:            "sensors/temp",
		QoS:              1,
		EnableShareTopic: true,
		EnableQueueTopic: true,
		ShareTopicGroups: []string{"a"},
	}
	if err := ValidateTopic(tc); err == nil {
		t.Fatal("expected error when both share and queue styles are enabled")
	}
}

func TestValidateTopic_MultisubRequiresCount(t *testing.T) {
	tc := TopicConfig{Topic: "jobs/work", QoS: 1, EnableMultisub: true, MultisubNum: 0}
	if err := ValidateTopic(tc); err == nil {
		t.Fatal("expected error for multisub_num 0 with enable_multisub")
	}
}

func TestSanitizeTopicName_Idempotent(t *testing.T) {
	in := "/sensors/\x01temp/"
	once := SanitizeTopicName(in)
	twice := SanitizeTopicName(once)
	if once != twice {
		t.Fatalf("sanitize not idempotent: %q != %q", once, twice)
	}
	if once != "sensors/temp" {
		t.Fatalf("unexpected sanitized value: %q", once)
	}
}

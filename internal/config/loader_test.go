package config

import (
	"os"
	"testing"
)

const sampleDoc = `
default:
  host: broker.local
  port: 1883
  client_id: sub-1
  protocol_level: 5
  clean_session: true
  pool:
    min_connections: 1
    max_connections: 2
    connect_timeout_s: 5
    wait_timeout_s: 1
    heartbeat_s: 30
    max_idle_time_s: 120
  topics:
    - topic: sensors/temp
      qos: 1
      enable_share_topic: true
      share_topic_groups: ["a", "b"]
  debug:
    enabled: false
    socket_path: /tmp/test.sock
`

func TestLoad_ParsesAndValidates(t *testing.T) {
	doc, err := Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, ok := doc.Default()
	if !ok {
		t.Fatal("expected default broker entry")
	}
	if b.Host != "broker.local" || b.Port != 1883 {
		t.Fatalf("unexpected broker fields: %+v", b)
	}
	if len(b.Topics) != 1 || b.Topics[0].Style() != StyleShared {
		t.Fatalf("unexpected topic parsing: %+v", b.Topics)
	}
}

func TestLoad_RejectsInvalidDocument(t *testing.T) {
	bad := `
default:
  host: ""
  port: 1883
  client_id: sub-1
  protocol_level: 5
  pool:
    min_connections: 1
    max_connections: 2
`
	if _, err := Load([]byte(bad)); err == nil {
		t.Fatal("expected validation error for empty host")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MQTT_HOST", "override.local")
	t.Setenv("MQTT_PORT", "9999")
	doc, err := Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := doc.Default()
	if b.Host != "override.local" || b.Port != 9999 {
		t.Fatalf("expected env overrides to apply, got %+v", b)
	}
}

func TestLoadFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(sampleDoc); err != nil {
		t.Fatal(err)
	}
	f.Close()

	doc, err := LoadFile(f.Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Default(); !ok {
		t.Fatal("expected default broker entry")
	}
}

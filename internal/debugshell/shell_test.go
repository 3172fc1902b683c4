package debugshell

import (
	"testing"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func msgFor(topicName string, qos float64) debugtap.Message {
	return debugtap.Message{
		Type:      "publish",
		Timestamp: "2026-01-01T00:00:00Z",
		Payload: map[string]any{
			"topic":   topicName,
			"message": "v",
			"qos":     qos,
		},
		Metadata: map[string]any{"qos": qos},
	}
}

// TestShell_FilterOverDebugStream is spec.md §8's S3 scenario: a filter of
// `where topic like 'sensors/+/temperature' and qos >= 1` over a 3-message
// stream displays only the second message, while every message still lands
// in history.
func TestShell_FilterOverDebugStream(t *testing.T) {
	s := NewShell(16)
	if err := s.SetFilter("where topic like 'sensors/+/temperature' and qos >= 1"); err != nil {
		t.Fatalf("set filter: %v", err)
	}

	stream := []debugtap.Message{
		msgFor("sensors/a/humidity", 1),
		msgFor("sensors/a/temperature", 1),
		msgFor("sensors/a/temperature", 0),
	}

	displayed := 0
	for _, m := range stream {
		if _, show := s.Ingest(m); show {
			displayed++
		}
	}

	if displayed != 1 {
		t.Fatalf("expected exactly 1 displayed message, got %d", displayed)
	}
	if s.History.Len() != 3 {
		t.Fatalf("expected all 3 messages in history regardless of filter, got %d", s.History.Len())
	}
}

func TestShell_SetFilterKeepsPriorOnParseError(t *testing.T) {
	s := NewShell(16)
	if err := s.SetFilter("qos >= 1"); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := s.SetFilter("qos >>> 1"); err == nil {
		t.Fatalf("expected parse error")
	}
	if s.CurrentFilter() == "" {
		t.Fatalf("prior filter should remain active after a parse error")
	}
}

func TestShell_ClearFilterMatchesEverything(t *testing.T) {
	s := NewShell(16)
	if err := s.SetFilter("qos >= 1"); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := s.SetFilter(""); err != nil {
		t.Fatalf("clear filter: %v", err)
	}
	if _, show := s.Ingest(msgFor("sensors/a/temperature", 0)); !show {
		t.Fatalf("expected message to display once filter cleared")
	}
}

func TestShell_RenderMessageFormats(t *testing.T) {
	s := NewShell(16)
	m := msgFor("sensors/a/temperature", 1)
	for _, f := range []Format{FormatCompact, FormatTable, FormatVertical, FormatJSON, FormatHex} {
		out, err := s.RenderMessage(m, f, JSONOptions{})
		if err != nil {
			t.Fatalf("render format %d: %v", f, err)
		}
		if out == "" {
			t.Fatalf("render format %d produced empty output", f)
		}
	}
}

func TestShell_StatsReflectsHistory(t *testing.T) {
	s := NewShell(16)
	s.Ingest(msgFor("sensors/a/temperature", 1))
	s.Ingest(msgFor("sensors/a/temperature", 1))
	stats := s.Stats()
	if stats.ByTopic["sensors/a/temperature"] != 2 {
		t.Fatalf("expected 2 entries for topic, got %d", stats.ByTopic["sensors/a/temperature"])
	}
}

package debugshell

import (
	"strings"
	"testing"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func sampleMessage() debugtap.Message {
	return debugtap.Message{
		Type:      "publish",
		Source:    "mqtt:sensors/a",
		Timestamp: "2026-01-01T00:00:00Z",
		Payload: map[string]any{
			"topic":   "sensors/a",
			"message": "23.5",
			"qos":     float64(1),
		},
		Metadata: map[string]any{"direction": "in", "qos": float64(1)},
	}
}

func TestCompact_TruncatesLongPayload(t *testing.T) {
	m := sampleMessage()
	m.Payload = map[string]any{"topic": "x", "message": strings.Repeat("a", 200)}
	out := Compact(m, 10)
	if !strings.HasSuffix(out, ellipsis) {
		t.Fatalf("expected truncated compact line, got %q", out)
	}
}

func TestCompact_ToleratesNonUTF8(t *testing.T) {
	m := sampleMessage()
	m.Payload = map[string]any{"topic": "x", "message": string([]byte{0xff, 0xfe, 0x00})}
	out := Compact(m, 0)
	if out == "" {
		t.Fatalf("compact should not fail on invalid UTF-8")
	}
}

func TestTable_HasHeaderAndRow(t *testing.T) {
	out := Table([]Entry{{ID: 1, Message: sampleMessage()}})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "TOPIC") {
		t.Fatalf("expected header row, got %q", lines[0])
	}
}

func TestVertical_OneFieldPerLine(t *testing.T) {
	out := Vertical(sampleMessage())
	if !strings.Contains(out, "topic:") || !strings.Contains(out, "payload:") {
		t.Fatalf("expected field labels, got %q", out)
	}
}

func TestJSON_DepthLimitTruncatesNesting(t *testing.T) {
	m := sampleMessage()
	m.Payload = map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	out, err := JSON(m, JSONOptions{DepthLimit: 1})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(out, ellipsis) {
		t.Fatalf("expected ellipsis truncation, got %q", out)
	}
}

func TestJSON_SchemaModeHidesValues(t *testing.T) {
	m := sampleMessage()
	out, err := JSON(m, JSONOptions{SchemaMode: true})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if strings.Contains(out, "23.5") {
		t.Fatalf("schema mode should not render values, got %q", out)
	}
	if !strings.Contains(out, "\"string\"") {
		t.Fatalf("expected type names in schema output, got %q", out)
	}
}

func TestHex_RendersBinaryPayload(t *testing.T) {
	m := sampleMessage()
	m.Payload = map[string]any{"message": string([]byte{0x00, 0x01, 0x02})}
	out := Hex(m)
	if !strings.Contains(out, "00 01 02") {
		t.Fatalf("expected hex bytes in dump, got %q", out)
	}
}

package debugshell

import (
	"bytes"
	"strings"
	"testing"
)

func TestExport_JSONRoundTrips(t *testing.T) {
	entries := []Entry{{ID: 1, Message: sampleMessage()}}
	var buf bytes.Buffer
	if err := Export(&buf, entries, ExportJSON); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "\"id\": 1") {
		t.Fatalf("expected pretty-printed id field, got %q", buf.String())
	}
}

func TestExport_CSVQuotesEmbeddedQuotes(t *testing.T) {
	m := sampleMessage()
	m.Payload = map[string]any{"topic": "x", "message": `say "hi"`}
	var buf bytes.Buffer
	if err := Export(&buf, []Entry{{ID: 1, Message: m}}, ExportCSV); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `""hi""`) {
		t.Fatalf("expected doubled embedded quotes, got %q", out)
	}
}

func TestExport_CSVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil, ExportCSV); err != nil {
		t.Fatalf("export: %v", err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	for _, col := range []string{"timestamp", "type", "source", "topic", "qos", "direction", "payload"} {
		if !strings.Contains(header, col) {
			t.Fatalf("header missing column %q: %q", col, header)
		}
	}
}

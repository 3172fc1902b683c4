package debugshell

import (
	"encoding/csv"
	"io"

	"github.com/ibs-source/mqttpool/pkg/jsonx"
)

// ExportFormat selects export.go's output encoding (spec.md §4.11.8).
type ExportFormat int

const (
	ExportJSON ExportFormat = iota
	ExportCSV
)

// Export writes entries (already limited by the caller per `--limit`) to w
// in the requested format.
func Export(w io.Writer, entries []Entry, format ExportFormat) error {
	switch format {
	case ExportCSV:
		return exportCSV(w, entries)
	default:
		return exportJSON(w, entries)
	}
}

type jsonRecord struct {
	ID        uint64         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Payload   any            `json:"payload"`
	Metadata  map[string]any `json:"metadata"`
}

// exportJSON renders entries as a pretty-printed JSON array, UTF-8
// preserved (spec.md §4.11.8: "JSON (pretty, UTF-8 preserved)").
func exportJSON(w io.Writer, entries []Entry) error {
	records := make([]jsonRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, jsonRecord{
			ID:        e.ID,
			Type:      e.Message.Type,
			Source:    e.Message.Source,
			Timestamp: e.Message.Timestamp,
			Payload:   e.Message.Payload,
			Metadata:  e.Message.Metadata,
		})
	}
	pretty, err := jsonx.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(pretty)
	return err
}

// exportCSV renders entries as CSV with columns timestamp, type, source,
// topic, qos, direction, payload — quoted values with `"` doubled (spec.md
// §4.11.8). encoding/csv already doubles embedded quotes per RFC 4180.
func exportCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "type", "source", "topic", "qos", "direction", "payload"}); err != nil {
		return err
	}
	for _, e := range entries {
		m := e.Message
		topicName, _ := messageTopic(m)
		row := []string{
			m.Timestamp,
			m.Type,
			m.Source,
			topicName,
			qosOf(m),
			directionOf(m),
			payloadSummary(m),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Formatters implement spec.md §4.11.5's five output formats. Every
// formatter must tolerate non-UTF-8 payload bytes, so none of them go
// through encoding/json on a raw []byte field without first passing it
// through a safe string conversion.
package debugshell

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ibs-source/mqttpool/internal/debugtap"
	"github.com/ibs-source/mqttpool/pkg/jsonx"
)

const ellipsis = "…"

// Compact renders one line: timestamp, direction, topic, short payload
// (spec.md §4.11.5). maxPayload truncates the payload field with an
// ellipsis; 0 means unlimited.
func Compact(m debugtap.Message, maxPayload int) string {
	dir := directionOf(m)
	t, _ := messageTopic(m)
	payload := payloadSummary(m)
	if maxPayload > 0 && len(payload) > maxPayload {
		payload = payload[:maxPayload] + ellipsis
	}

	var sb strings.Builder
	sb.WriteString(m.Timestamp)
	sb.WriteByte(' ')
	sb.WriteString(dir)
	sb.WriteByte(' ')
	sb.WriteString(t)
	sb.WriteString(" — ")
	sb.WriteString(payload)
	return sb.String()
}

// Table renders a columnar multi-message view (spec.md §4.11.5).
func Table(entries []Entry) string {
	headers := []string{"ID", "TIME", "DIR", "TOPIC", "QOS", "PAYLOAD"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		t, _ := messageTopic(e.Message)
		rows = append(rows, []string{
			strconv.FormatUint(e.ID, 10),
			e.Message.Timestamp,
			directionOf(e.Message),
			t,
			qosOf(e.Message),
			payloadSummary(e.Message),
		})
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			sb.WriteString(padRight(cell, widths[i]))
			if i < len(cells)-1 {
				sb.WriteString("  ")
			}
		}
		sb.WriteByte('\n')
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Vertical renders one field per line (spec.md §4.11.5).
func Vertical(m debugtap.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "type:      %s\n", m.Type)
	fmt.Fprintf(&sb, "source:    %s\n", m.Source)
	fmt.Fprintf(&sb, "timestamp: %s\n", m.Timestamp)
	if t, ok := messageTopic(m); ok {
		fmt.Fprintf(&sb, "topic:     %s\n", t)
	}
	fmt.Fprintf(&sb, "direction: %s\n", directionOf(m))
	if q := qosOf(m); q != "" {
		fmt.Fprintf(&sb, "qos:       %s\n", q)
	}
	fmt.Fprintf(&sb, "payload:   %s\n", payloadSummary(m))
	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "metadata.%s: %v\n", k, m.Metadata[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// JSONOptions controls JSON-format rendering (spec.md §4.11.5).
type JSONOptions struct {
	// DepthLimit truncates nesting beyond this many levels with an
	// ellipsis placeholder; 0 means unlimited.
	DepthLimit int
	// SchemaMode renders only structure (field names and value types),
	// not values.
	SchemaMode bool
}

// JSON renders m per JSONOptions.
func JSON(m debugtap.Message, opts JSONOptions) (string, error) {
	value := depthLimit(m.Payload, opts.DepthLimit, 0)
	if opts.SchemaMode {
		value = schemaOf(value)
	}
	out := map[string]any{
		"id":        nil,
		"type":      m.Type,
		"source":    m.Source,
		"timestamp": m.Timestamp,
		"metadata":  m.Metadata,
		"payload":   value,
	}
	delete(out, "id")
	b, err := jsonx.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func depthLimit(v any, limit, depth int) any {
	if limit <= 0 {
		return v
	}
	if depth >= limit {
		switch v.(type) {
		case map[string]any, []any:
			return ellipsis
		default:
			return v
		}
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = depthLimit(vv, limit, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = depthLimit(vv, limit, depth+1)
		}
		return out
	default:
		return v
	}
}

func schemaOf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = schemaOf(vv)
		}
		return out
	case []any:
		if len(t) == 0 {
			return []any{}
		}
		return []any{schemaOf(t[0])}
	case string:
		return "string"
	case bool:
		return "bool"
	case float64:
		return "number"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// Hex renders a hex dump of m's payload bytes (spec.md §4.11.5), for
// binary payloads that are not valid UTF-8 text.
func Hex(m debugtap.Message) string {
	raw := payloadBytes(m)
	if len(raw) == 0 {
		return ""
	}
	return strings.TrimRight(hex.Dump(raw), "\n")
}

func payloadBytes(m debugtap.Message) []byte {
	asMap, ok := m.Payload.(map[string]any)
	if !ok {
		return []byte(fmt.Sprint(m.Payload))
	}
	if msg, ok := asMap["message"].(string); ok {
		return []byte(msg)
	}
	return nil
}

func payloadSummary(m debugtap.Message) string {
	asMap, ok := m.Payload.(map[string]any)
	if !ok {
		return safeUTF8(fmt.Sprint(m.Payload))
	}
	if msg, ok := asMap["message"]; ok {
		return safeUTF8(fmt.Sprint(msg))
	}
	b, err := jsonx.Marshal(asMap)
	if err != nil {
		return ""
	}
	return safeUTF8(string(b))
}

// safeUTF8 replaces invalid UTF-8 sequences so every formatter tolerates
// non-UTF-8 payload bytes (spec.md §4.11.5) without panicking or producing
// unprintable garbage in a terminal.
func safeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

func directionOf(m debugtap.Message) string {
	if d, ok := m.Metadata["direction"]; ok {
		return fmt.Sprint(d)
	}
	switch m.Type {
	case "publish", "subscribe":
		return "out"
	default:
		return "-"
	}
}

func qosOf(m debugtap.Message) string {
	if q, ok := m.Metadata["qos"]; ok {
		return fmt.Sprint(q)
	}
	return ""
}

package debugtap

import (
	"time"

	"github.com/ibs-source/mqttpool/pkg/jsonfast"
	"github.com/ibs-source/mqttpool/pkg/jsonx"
)

// Message is the Debug Message record of spec.md §3 and §6: every frame the
// tap writes to an attached shell carries this shape.
type Message struct {
	Type      string         `json:"type"`
	Payload   any            `json:"payload"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

func newMessage(typ, source string, payload any, metadata map[string]any) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		Type:      typ,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  metadata,
	}
}

// encode renders m as one newline-delimited JSON record using jsonfast for
// the envelope's five top-level fields, falling back to jsonx only
// for the genuinely variable payload/metadata values. Every Broadcast call
// goes through this, so the allocation saved by skipping reflection over
// the whole Message struct is the same low-allocation-fixed-schema
// trade-off the teacher built jsonfast for.
func (m Message) encode() ([]byte, error) {
	payloadJSON, err := jsonx.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := jsonx.Marshal(m.Metadata)
	if err != nil {
		return nil, err
	}

	b := jsonfast.New(128 + len(payloadJSON) + len(metadataJSON))
	b.AddStringField("type", m.Type)
	b.AddRawJSONField("payload", payloadJSON)
	b.AddStringField("source", m.Source)
	b.AddStringField("timestamp", m.Timestamp)
	b.AddRawJSONField("metadata", metadataJSON)
	b.EndObject()
	out := make([]byte, len(b.Bytes()))
	copy(out, b.Bytes())
	return out, nil
}

// inboundFrame is one newline-delimited JSON record a shell client sends
// (spec.md §6 "Client -> server").
type inboundFrame struct {
	Type    string         `json:"type"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args"`
}

// CommandResult is the host callback's return shape (spec.md §4.10): turned
// into a response Debug Message by the server.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CommandHandler executes one mqtt_* command delegated verbatim by the tap
// (spec.md §6's recognized-command table).
type CommandHandler func(command string, args map[string]any) CommandResult

package debugshell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

// TapClient is the wire-level half of the companion interactive client of
// spec.md §4.10/§6: it dials the tap's Unix domain socket, decodes
// newline-delimited Debug Messages, and encodes command frames back.
// Grounded on spec.md §6's bidirectional NDJSON wire format; no teacher
// file models a client for a local stream socket, so this follows the
// same small-single-purpose-file idiom as the rest of internal/debugshell.
type TapClient struct {
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex
}

// DialTap connects to the tap's socket path.
func DialTap(ctx context.Context, path string) (*TapClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("debugshell: dial tap %s: %w", path, err)
	}
	return &TapClient{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *TapClient) Close() error { return c.conn.Close() }

// ReadMessage blocks until the next Debug Message arrives (spec.md §5's
// "Debug Shell input read" suspension point).
func (c *TapClient) ReadMessage() (debugtap.Message, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return debugtap.Message{}, err
	}
	var m debugtap.Message
	if err := json.Unmarshal(line, &m); err != nil {
		return debugtap.Message{}, fmt.Errorf("debugshell: malformed tap frame: %w", err)
	}
	return m, nil
}

// Ping sends a ping frame (spec.md §6's client -> server "ping").
func (c *TapClient) Ping() error { return c.writeFrame(map[string]any{"type": "ping"}) }

// Subscribe/Unsubscribe send the informational toggle frames of spec.md
// §6; the server keeps streaming regardless.
func (c *TapClient) Subscribe() error   { return c.writeFrame(map[string]any{"type": "subscribe"}) }
func (c *TapClient) Unsubscribe() error { return c.writeFrame(map[string]any{"type": "unsubscribe"}) }

// Command sends a command frame with the given name and args (spec.md
// §6); args travel under the frame's "args" key. A "context_id" entry in
// args is what the daemon's command handler threads through to
// internal/client's context-affinity borrow (spec.md §9's "make the
// context id explicit" design note) — recognized commands prefixed `mqtt_`
// delegate verbatim to that callback.
func (c *TapClient) Command(name string, args map[string]any) error {
	frame := map[string]any{"type": "command", "command": name}
	if len(args) > 0 {
		frame["args"] = args
	}
	return c.writeFrame(frame)
}

func (c *TapClient) writeFrame(v map[string]any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(b)
	return err
}

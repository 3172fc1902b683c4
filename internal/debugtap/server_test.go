package debugtap

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/logger"
	"github.com/ibs-source/mqttpool/internal/metrics"
)

func testLogger() *logger.LogrusLogger {
	l, _ := logger.NewLogrusLogger("error", "text")
	return l
}

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tap.sock")
}

func dialAndReadLine(t *testing.T, path string, tick func()) (net.Conn, *bufio.Reader, string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var conn net.Conn
	var err error
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", path)
		if err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	r := bufio.NewReader(conn)
	line := readLineWithTicks(t, r, tick)
	return conn, r, line
}

func readLineWithTicks(t *testing.T, r *bufio.Reader, tick func()) string {
	t.Helper()
	ch := make(chan string, 1)
	go func() {
		line, _ := r.ReadString('\n')
		ch <- line
	}()
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line := <-ch:
			return line
		case <-ticker.C:
			tick()
		case <-deadline:
			t.Fatalf("timed out waiting for a line")
		}
	}
}

// TestServer_GreetsNewClient covers the accept path of Tick.
func TestServer_GreetsNewClient(t *testing.T) {
	path := socketPath(t)
	s := NewServer(path, testLogger(), metrics.NewRegistry(), nil)
	if !s.Enabled() {
		t.Fatalf("expected tap to bind successfully")
	}
	defer func() { _ = s.Shutdown() }()

	conn, _, line := dialAndReadLine(t, path, s.Tick)
	defer conn.Close()

	var m Message
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid greeting JSON: %v", err)
	}
	if m.Type != "system" {
		t.Fatalf("expected a system greeting, got %q", m.Type)
	}
}

// TestServer_CommandRoundTrip implements spec.md §8 scenario S6: a
// mqtt_publish command round-trips through the host callback and the
// command counter increments exactly once.
func TestServer_CommandRoundTrip(t *testing.T) {
	path := socketPath(t)
	handlerCalls := 0
	handler := func(command string, args map[string]any) CommandResult {
		handlerCalls++
		if command != "mqtt_publish" {
			t.Fatalf("unexpected command %q", command)
		}
		return CommandResult{Success: true}
	}
	s := NewServer(path, testLogger(), metrics.NewRegistry(), handler)
	defer func() { _ = s.Shutdown() }()

	conn, r, _ := dialAndReadLine(t, path, s.Tick) // drain greeting
	defer conn.Close()

	req := []byte(`{"type":"command","command":"mqtt_publish","args":{"topic":"t","message":"m","qos":0}}` + "\n")
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	line := readLineWithTicks(t, r, s.Tick)
	var m Message
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if m.Type != "response" {
		t.Fatalf("expected a response frame, got %q", m.Type)
	}
	if m.Metadata["command"] != "mqtt_publish" || m.Metadata["success"] != true {
		t.Fatalf("unexpected response metadata: %+v", m.Metadata)
	}
	if handlerCalls != 1 {
		t.Fatalf("expected host callback invoked once, got %d", handlerCalls)
	}
	if got := s.CommandCount("mqtt_publish"); got != 1 {
		t.Fatalf("expected command counter 1, got %d", got)
	}
}

func TestServer_PingPong(t *testing.T) {
	path := socketPath(t)
	s := NewServer(path, testLogger(), metrics.NewRegistry(), nil)
	defer func() { _ = s.Shutdown() }()

	conn, r, _ := dialAndReadLine(t, path, s.Tick)
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"type":"ping"}` + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := readLineWithTicks(t, r, s.Tick)
	var m Message
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid pong JSON: %v", err)
	}
	if m.Type != "pong" {
		t.Fatalf("expected pong, got %q", m.Type)
	}
}

func TestServer_ForwardBroadcastsOnPublishEvent(t *testing.T) {
	path := socketPath(t)
	s := NewServer(path, testLogger(), metrics.NewRegistry(), nil)
	defer func() { _ = s.Shutdown() }()

	conn, r, _ := dialAndReadLine(t, path, s.Tick) // drain greeting
	defer conn.Close()

	s.Forward(events.OnPublishEvent{Topic: "jobs/work", Message: []byte("x"), QoS: 1, PoolName: "default"})

	line := readLineWithTicks(t, r, s.Tick)
	var m Message
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid publish JSON: %v", err)
	}
	if m.Type != "publish" || m.Metadata["direction"] != "out" {
		t.Fatalf("unexpected forwarded message: %+v", m)
	}
}

func TestServer_DisabledWhenPathEmpty(t *testing.T) {
	s := NewServer("", testLogger(), metrics.NewRegistry(), nil)
	if s.Enabled() {
		t.Fatalf("expected tap to be disabled with an empty socket path")
	}
	s.Tick()                               // must be a no-op, never panic
	s.Forward(events.OnPublishEvent{})      // must be a no-op
	if err := s.Shutdown(); err != nil {
		t.Fatalf("expected no-op shutdown to succeed, got %v", err)
	}
}

func TestServer_ShutdownRemovesSocketFile(t *testing.T) {
	path := socketPath(t)
	s := NewServer(path, testLogger(), metrics.NewRegistry(), nil)
	if !s.Enabled() {
		t.Fatalf("expected tap to bind")
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected socket file removed, stat err=%v", err)
	}
}

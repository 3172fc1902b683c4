// Package debugtap implements the Debug Tap Server of spec.md §4.10: a
// Unix domain stream-socket endpoint that mirrors MQTT lifecycle events to
// attached shells and accepts a small command protocol back. The server is
// ticked from the host's main loop — one non-blocking accept and one
// non-blocking read per attached client per Tick, per spec.md §9's
// "Debug tap in a cooperative loop" design note — and never blocks inside
// Tick. No teacher file models a socket server; the cooperative tick shape
// is grounded on the teacher's internal/processor worker_pool.go start/stop
// bookkeeping, generalized from goroutine lifecycle to per-call-budget I/O.
package debugtap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/pkg/ringbuffer"
)

const (
	readBudgetBytes  = 4096
	outboundCapacity = 256 // must be a power of 2 (pkg/ringbuffer.New requirement)
	pollDeadline     = time.Millisecond
)

// Server is the Debug Tap. A zero-value Server with enabled=false is a
// no-op: every Tick call returns immediately and Forward drops events
// (spec.md §4.10: "Must not be enabled unless a configuration flag is
// set").
type Server struct {
	path    string
	logger  ports.Logger
	reg     *metrics.Registry
	handler CommandHandler

	ln      *net.UnixListener
	enabled bool
	closed  atomic.Bool

	mu         sync.Mutex
	clients    map[uint64]*clientConn
	nextID     atomic.Uint64
	commandMu  sync.Mutex
	commandCnt map[string]uint64
}

type clientConn struct {
	id       uint64
	conn     *net.UnixConn
	readBuf  bytes.Buffer
	outbound *ringbuffer.RingBuffer[[]byte]
}

// NewServer binds the tap's socket. A bind failure disables the tap but
// never returns an error the host must treat as fatal (spec.md §4.10).
func NewServer(path string, logger ports.Logger, reg *metrics.Registry, handler CommandHandler) *Server {
	s := &Server{
		path:       path,
		logger:     logger,
		reg:        reg,
		handler:    handler,
		clients:    make(map[uint64]*clientConn),
		commandCnt: make(map[string]uint64),
	}
	if path == "" {
		return s
	}

	_ = os.Remove(path) // stale socket file from a prior crashed run (spec.md §6)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		logger.Error("debug tap address resolve failed", ports.Field{Key: "path", Value: path}, ports.Field{Key: "error", Value: err})
		return s
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		logger.Error("debug tap bind failed", ports.Field{Key: "path", Value: path}, ports.Field{Key: "error", Value: err})
		return s
	}

	s.ln = ln
	s.enabled = true
	return s
}

// Enabled reports whether the tap successfully bound its socket.
func (s *Server) Enabled() bool { return s.enabled }

// Tick performs one bounded unit of work: a single non-blocking accept,
// one non-blocking read per client, and a drain of each client's outbound
// queue. It must never block (spec.md §9).
func (s *Server) Tick() {
	if !s.enabled || s.closed.Load() {
		return
	}
	s.acceptOnce()

	s.mu.Lock()
	clients := make([]*clientConn, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if !s.readOnce(c) {
			s.drop(c.id)
			continue
		}
		if !s.flushOnce(c) {
			s.drop(c.id)
		}
	}
}

func (s *Server) acceptOnce() {
	if err := s.ln.SetDeadline(time.Now().Add(pollDeadline)); err != nil {
		return
	}
	conn, err := s.ln.AcceptUnix()
	if err != nil {
		return // timeout (no pending connection) or transient accept error
	}

	id := s.nextID.Add(1)
	c := &clientConn{id: id, conn: conn, outbound: ringbuffer.New[[]byte](outboundCapacity)}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	greeting := newMessage("system", "system", "debug tap connected", nil)
	s.enqueue(c, greeting)
	s.logger.Debug("debug tap client connected", ports.Field{Key: "client_id", Value: id})
}

// readOnce performs one non-blocking read of up to readBudgetBytes,
// processing any whole newline-delimited JSON records found. Returns false
// if the client's connection should be dropped.
func (s *Server) readOnce(c *clientConn) bool {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return false
	}
	buf := make([]byte, readBudgetBytes)
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.readBuf.Write(buf[:n])
		s.processLines(c)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return true // no data available this tick
		}
		return false // EOF or a real transport error: drop this client only
	}
	return true
}

func (s *Server) processLines(c *clientConn) {
	for {
		line, err := c.readBuf.ReadBytes('\n')
		if err != nil {
			// no full line yet: push whatever was consumed back to the front
			c.readBuf.Reset()
			c.readBuf.Write(line)
			return
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		s.handleFrame(c, line)
	}
}

func (s *Server) handleFrame(c *clientConn, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.enqueue(c, newMessage("system", "system", "malformed frame", nil))
		return
	}

	switch frame.Type {
	case "ping":
		s.enqueue(c, newMessage("pong", "system", nil, nil))
	case "subscribe", "unsubscribe":
		// Informational toggle; the tap keeps streaming regardless (spec.md §4.10).
	case "command":
		s.handleCommand(c, frame)
	default:
		s.enqueue(c, newMessage("response", "system", CommandResult{Success: false}, map[string]any{"command": frame.Command}))
	}
}

func (s *Server) handleCommand(c *clientConn, frame inboundFrame) {
	s.commandMu.Lock()
	s.commandCnt[frame.Command]++
	s.commandMu.Unlock()

	var result CommandResult
	switch {
	case frame.Command == "stats":
		result = s.statsResult()
	case s.handler != nil:
		result = s.handler(frame.Command, frame.Args)
	default:
		result = CommandResult{Success: false}
	}

	meta := map[string]any{"command": frame.Command, "success": result.Success}
	if result.Message != "" {
		meta["message"] = result.Message
	}
	s.enqueue(c, newMessage("response", "system", result.Data, meta))
}

func (s *Server) statsResult() CommandResult {
	if s.reg == nil {
		return CommandResult{Success: true, Data: map[string]any{}}
	}
	return CommandResult{Success: true, Data: map[string]any{
		"connect_attempts":   s.reg.Connection.ConnectAttempts.Load(),
		"connect_successes":  s.reg.Connection.ConnectSuccesses.Load(),
		"active_connections": s.reg.Connection.ActiveConnections.Load(),
		"disconnections":     s.reg.Connection.Disconnections.Load(),
	}}
}

// CommandCount returns how many times command has been received, for
// tests and host introspection.
func (s *Server) CommandCount(command string) uint64 {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.commandCnt[command]
}

func (s *Server) enqueue(c *clientConn, m Message) {
	b, err := m.encode()
	if err != nil {
		return
	}
	b = append(b, '\n')
	if !c.outbound.Put(&b) {
		s.logger.Warn("debug tap client outbound queue full, dropping message", ports.Field{Key: "client_id", Value: c.id})
	}
}

// flushOnce writes up to outboundCapacity queued frames to the client's
// socket without blocking indefinitely. Returns false if the client should
// be dropped.
func (s *Server) flushOnce(c *clientConn) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(pollDeadline * 10)); err != nil {
		return false
	}
	w := bufio.NewWriter(c.conn)
	for {
		item := c.outbound.Get()
		if item == nil {
			break
		}
		if _, err := w.Write(*item); err != nil {
			return false
		}
	}
	if err := w.Flush(); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return true // try the remainder next tick
		}
		return false
	}
	return true
}

func (s *Server) drop(id uint64) {
	s.mu.Lock()
	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		s.logger.Debug("debug tap client disconnected", ports.Field{Key: "client_id", Value: id})
	}
}

// Broadcast enqueues m on every attached client's outbound queue.
func (s *Server) Broadcast(m Message) {
	if !s.enabled || s.closed.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		s.enqueue(c, m)
	}
}

// Forward satisfies internal/listeners.DebugTapForwarder: it converts the
// tagged event into a Debug Message and broadcasts it (spec.md §4.5, §6).
func (s *Server) Forward(e events.Event) {
	if !s.enabled || s.closed.Load() {
		return
	}
	if m, ok := toDebugMessage(e); ok {
		s.Broadcast(m)
	}
}

// Shutdown closes every client and removes the socket file (spec.md
// §4.10).
func (s *Server) Shutdown() error {
	if !s.enabled {
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[uint64]*clientConn)
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}

	err := s.ln.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
		if err == nil {
			err = rmErr
		}
	}
	return err
}

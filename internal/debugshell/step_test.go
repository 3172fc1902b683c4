package debugshell

import (
	"testing"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func TestStepEngine_StreamingDisplaysImmediately(t *testing.T) {
	s := NewStepEngine()
	e := Entry{ID: 1, Message: debugtap.Message{Type: "publish"}}
	if !s.Observe(e) {
		t.Fatalf("streaming mode should display immediately")
	}
}

func TestStepEngine_StepQueuesUntilNext(t *testing.T) {
	s := NewStepEngine()
	s.Step()
	e := Entry{ID: 1, Message: debugtap.Message{Type: "publish"}}
	if s.Observe(e) {
		t.Fatalf("step mode should not display immediately")
	}
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", s.Pending())
	}
	msg, ok := s.Next()
	if !ok || msg.Type != "publish" {
		t.Fatalf("next() = (%+v, %v)", msg, ok)
	}
	if _, ok := s.Next(); ok {
		t.Fatalf("expected no more pending messages")
	}
}

func TestStepEngine_BreakpointAutoPauses(t *testing.T) {
	s := NewStepEngine()
	expr, err := Parse("qos >= 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s.AddBreakpoint("high-qos", expr)

	low := Entry{ID: 1, Message: debugtap.Message{Metadata: map[string]any{"qos": float64(0)}}}
	if !s.Observe(low) {
		t.Fatalf("low qos should still stream")
	}
	if s.Mode() != ModeStreaming {
		t.Fatalf("mode should remain streaming before a match")
	}

	high := Entry{ID: 2, Message: debugtap.Message{Metadata: map[string]any{"qos": float64(1)}}}
	if s.Observe(high) {
		t.Fatalf("matching breakpoint should suppress immediate display")
	}
	if s.Mode() != ModeStep {
		t.Fatalf("breakpoint match should switch to step mode")
	}
}

func TestStepEngine_ContinueDropsQueueAndResumesStreaming(t *testing.T) {
	s := NewStepEngine()
	s.Step()
	s.Observe(Entry{ID: 1, Message: debugtap.Message{}})
	s.Continue()
	if s.Mode() != ModeStreaming {
		t.Fatalf("continue should resume streaming mode")
	}
	if s.Pending() != 0 {
		t.Fatalf("continue should drop the pending queue")
	}
}

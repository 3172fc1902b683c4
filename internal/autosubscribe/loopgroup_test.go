package autosubscribe

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_StartRunsUntilStop(t *testing.T) {
	g := NewGroup(context.Background())
	var running atomic.Bool

	g.Start(Loop{Name: "w-0", Run: func(ctx context.Context) {
		running.Store(true)
		<-ctx.Done()
		running.Store(false)
	}})

	deadline := time.Now().Add(time.Second)
	for !running.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !running.Load() {
		t.Fatalf("expected loop to be running")
	}

	g.Stop()
	if running.Load() {
		t.Fatalf("expected loop to have stopped")
	}
}

func TestGroup_StartAfterStopIsNoop(t *testing.T) {
	g := NewGroup(context.Background())
	g.Stop()

	var ran atomic.Bool
	g.Start(Loop{Name: "late", Run: func(context.Context) { ran.Store(true) }})
	time.Sleep(10 * time.Millisecond)
	if ran.Load() {
		t.Fatalf("expected Start after Stop to be a no-op")
	}
}

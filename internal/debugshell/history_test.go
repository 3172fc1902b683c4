package debugshell

import (
	"testing"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func insertN(h *History, n int) {
	for i := 0; i < n; i++ {
		h.Insert(debugtap.Message{Type: "publish"})
	}
}

// TestHistory_CircularBufferRetention is spec.md §8's boundary case:
// capacity 100 retains messages 41..140 after 140 inserts, newest id 140.
func TestHistory_CircularBufferRetention(t *testing.T) {
	h := NewHistory(100)
	insertN(h, 140)

	if got := h.Newest(); got != 140 {
		t.Fatalf("newest = %d, want 140", got)
	}
	if got := h.Oldest(); got != 41 {
		t.Fatalf("oldest = %d, want 41", got)
	}
	if _, ok := h.ByID(40); ok {
		t.Fatalf("id 40 should have been evicted")
	}
	if _, ok := h.ByID(41); !ok {
		t.Fatalf("id 41 should still be retained")
	}
	if got := h.Len(); got != 100 {
		t.Fatalf("len = %d, want 100", got)
	}
}

// TestHistory_MonotonicIDs is spec.md §8 invariant 4: every inserted
// message's id is strictly greater than every previously assigned id.
func TestHistory_MonotonicIDs(t *testing.T) {
	h := NewHistory(4)
	var last uint64
	for i := 0; i < 20; i++ {
		e := h.Insert(debugtap.Message{})
		if e.ID <= last {
			t.Fatalf("id %d did not increase past %d", e.ID, last)
		}
		last = e.ID
	}
}

func TestHistory_ByOffset(t *testing.T) {
	h := NewHistory(8)
	insertN(h, 5)

	newest, ok := h.ByOffset(0)
	if !ok || newest.ID != 5 {
		t.Fatalf("offset 0 = %+v, want id 5", newest)
	}
	prior, ok := h.ByOffset(-2)
	if !ok || prior.ID != 3 {
		t.Fatalf("offset -2 = %+v, want id 3", prior)
	}
	if _, ok := h.ByOffset(-10); ok {
		t.Fatalf("offset -10 should miss on a 5-entry history")
	}
}

func TestHistory_RangeOldestFirst(t *testing.T) {
	h := NewHistory(8)
	insertN(h, 5)

	got := h.Range(3)
	if len(got) != 3 {
		t.Fatalf("range(3) len = %d, want 3", len(got))
	}
	if got[0].ID != 3 || got[2].ID != 5 {
		t.Fatalf("range(3) = %v, want ids [3,4,5]", got)
	}
}

func TestHistory_FilterByTopic(t *testing.T) {
	h := NewHistory(8)
	h.Insert(debugtap.Message{Payload: map[string]any{"topic": "sensors/a/temperature"}})
	h.Insert(debugtap.Message{Payload: map[string]any{"topic": "sensors/a/humidity"}})

	got := h.FilterByTopic("sensors/+/temperature")
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
}

func TestHistory_Search(t *testing.T) {
	h := NewHistory(8)
	h.Insert(debugtap.Message{Payload: map[string]any{"message": "hello world"}})
	h.Insert(debugtap.Message{Payload: map[string]any{"message": "goodbye"}})

	got := h.Search("hello")
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
}

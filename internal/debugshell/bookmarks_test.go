package debugshell

import (
	"testing"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

func TestBookmarks_AddAndResolve(t *testing.T) {
	h := NewHistory(8)
	e := h.Insert(debugtap.Message{Type: "publish"})
	b := NewBookmarks(h)

	name := b.Add(e.ID)
	if name != "@1" {
		t.Fatalf("first bookmark name = %q, want @1", name)
	}
	id, ok := b.Resolve(name)
	if !ok || id != e.ID {
		t.Fatalf("resolve(%q) = (%d,%v), want (%d,true)", name, id, ok, e.ID)
	}

	id, ok = b.Resolve("@last")
	if !ok || id != e.ID {
		t.Fatalf("resolve(@last) = (%d,%v), want (%d,true)", id, ok, e.ID)
	}
}

func TestBookmarks_StaleAfterEviction(t *testing.T) {
	h := NewHistory(2)
	e := h.Insert(debugtap.Message{})
	b := NewBookmarks(h)
	name := b.Add(e.ID)

	insertN(h, 10) // forces eviction of e

	list := b.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 bookmark, got %d", len(list))
	}
	if list[0].Name != name || !list[0].Stale {
		t.Fatalf("expected stale bookmark, got %+v", list[0])
	}
}

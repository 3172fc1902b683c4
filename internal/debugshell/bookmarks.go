package debugshell

import (
	"fmt"
	"sort"
	"sync"
)

// Bookmark is one named slot of spec.md §4.11.3: `@1..@N` plus `@last`.
// Bookmarks reference a message by id, not by value — if History evicts
// that id the bookmark is surfaced as stale rather than resolved to
// something else.
type Bookmark struct {
	Name string
	ID   uint64
}

// Bookmarks tracks the shell's named slots over a History.
type Bookmarks struct {
	history *History

	mu    sync.Mutex
	slots map[string]uint64
	last  uint64
	n     int
}

// NewBookmarks builds an empty Bookmarks view over history.
func NewBookmarks(history *History) *Bookmarks {
	return &Bookmarks{history: history, slots: make(map[string]uint64)}
}

// Add creates the next numbered slot (`@1`, `@2`, ...) referencing id and
// returns its name. It also updates `@last`.
func (b *Bookmarks) Add(id uint64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	name := fmt.Sprintf("@%d", b.n)
	b.slots[name] = id
	b.last = id
	return name
}

// AddLast bookmarks the newest History entry, if any.
func (b *Bookmarks) AddLast() (string, bool) {
	e, ok := b.history.Last()
	if !ok {
		return "", false
	}
	return b.Add(e.ID), true
}

// Resolve returns the message id referenced by name (`@1`, `@last`, or a
// bare number treated as `@n`), and whether the name is known.
func (b *Bookmarks) Resolve(name string) (uint64, bool) {
	if name == "@last" || name == "last" {
		b.mu.Lock()
		id, ok := b.last, b.last != 0
		b.mu.Unlock()
		return id, ok
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.slots[name]
	if !ok {
		id, ok = b.slots["@"+name]
	}
	return id, ok
}

// Listing is one row of spec.md §4.11.3's `(@n, id, one_line_summary)`
// output; Stale is true if the referenced message has been evicted.
type Listing struct {
	Name    string
	ID      uint64
	Summary string
	Stale   bool
}

// List returns every bookmark, sorted by name, with a one-line summary of
// the referenced message or Stale=true if it has been evicted.
func (b *Bookmarks) List() []Listing {
	b.mu.Lock()
	names := make([]string, 0, len(b.slots))
	ids := make(map[string]uint64, len(b.slots))
	for name, id := range b.slots {
		names = append(names, name)
		ids[name] = id
	}
	b.mu.Unlock()
	sort.Strings(names)

	out := make([]Listing, 0, len(names))
	for _, name := range names {
		id := ids[name]
		entry, ok := b.history.ByID(id)
		l := Listing{Name: name, ID: id, Stale: !ok}
		if ok {
			l.Summary = Compact(entry.Message, 80)
		}
		out = append(out, l)
	}
	return out
}

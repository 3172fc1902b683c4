package debugshell

import (
	"strings"
	"sync"

	"github.com/ibs-source/mqttpool/internal/debugtap"
	"github.com/ibs-source/mqttpool/internal/topic"
)

// Entry is one message accepted into History, stamped with its
// monotonically increasing id (spec.md §4.11.2, §8 invariant 4).
type Entry struct {
	ID      uint64
	Message debugtap.Message
}

// History is the finite, monotonically-indexed circular buffer of spec.md
// §4.11.2. A slot is `(id-1) % capacity`, and a slot's current occupant's
// id tells ByID whether it is still the one the caller asked for or has
// since been overwritten. A map-based by_id lookup (what pkg/ringbuffer
// itself does not offer) would cost an unbounded map; the direct index
// avoids it entirely. Unlike pkg/ringbuffer, capacity is kept exact rather
// than rounded to a power of two — spec.md §8's boundary case pins a
// capacity of exactly 100, not the next power of two.
type History struct {
	mu       sync.RWMutex
	slots    []Entry
	occupied []bool
	capacity uint64
	nextID   uint64
}

// NewHistory builds a History retaining at most capacity messages.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		slots:    make([]Entry, capacity),
		occupied: make([]bool, capacity),
		capacity: uint64(capacity),
	}
}

func (h *History) slotIndex(id uint64) uint64 {
	return (id - 1) % h.capacity
}

// Insert assigns msg the next monotonically increasing id and stores it,
// evicting the oldest occupant of the slot if necessary. The assigned id
// is never reused, even across eviction (spec.md §4.11.2, §8 invariant 4).
func (h *History) Insert(msg debugtap.Message) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	idx := h.slotIndex(id)
	e := Entry{ID: id, Message: msg}
	h.slots[idx] = e
	h.occupied[idx] = true
	return e
}

// ByID returns the entry with the given id, if it has not been evicted.
func (h *History) ByID(id uint64) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if id == 0 {
		return Entry{}, false
	}
	idx := h.slotIndex(id)
	if !h.occupied[idx] || h.slots[idx].ID != id {
		return Entry{}, false
	}
	return h.slots[idx], true
}

// Newest returns the most recently inserted id, or 0 if History is empty.
func (h *History) Newest() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nextID
}

// Oldest returns the oldest id still retained, or 0 if History is empty.
func (h *History) Oldest() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.nextID == 0 {
		return 0
	}
	if h.nextID <= h.capacity {
		return 1
	}
	return h.nextID - h.capacity + 1
}

// Len returns the number of entries currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.nextID == 0 {
		return 0
	}
	if h.nextID < h.capacity {
		return int(h.nextID)
	}
	return int(h.capacity)
}

// ByOffset returns the k-th entry from newest (k=0 is the newest, k=-1 the
// one before it, matching spec.md §4.11.2's "by_offset(-k)"). k must be
// <= 0; a positive k always misses.
func (h *History) ByOffset(k int) (Entry, bool) {
	if k > 0 {
		return Entry{}, false
	}
	h.mu.RLock()
	newest := h.nextID
	h.mu.RUnlock()
	if newest == 0 {
		return Entry{}, false
	}
	id := int64(newest) + int64(k)
	if id < 1 {
		return Entry{}, false
	}
	return h.ByID(uint64(id))
}

// Last returns the most recently inserted entry.
func (h *History) Last() (Entry, bool) {
	return h.ByOffset(0)
}

// Range returns up to limit of the most recent entries, oldest first. A
// non-positive limit returns every retained entry.
func (h *History) Range(limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	oldest, newest := h.oldestLocked(), h.nextID
	if newest == 0 {
		return nil
	}
	count := newest - oldest + 1
	if limit > 0 && uint64(limit) < count {
		oldest = newest - uint64(limit) + 1
	}
	out := make([]Entry, 0, newest-oldest+1)
	for id := oldest; id <= newest; id++ {
		idx := h.slotIndex(id)
		if h.occupied[idx] && h.slots[idx].ID == id {
			out = append(out, h.slots[idx])
		}
	}
	return out
}

func (h *History) oldestLocked() uint64 {
	if h.nextID == 0 {
		return 0
	}
	if h.nextID <= h.capacity {
		return 1
	}
	return h.nextID - h.capacity + 1
}

// Search returns every retained entry whose rendered payload contains
// substr (case-sensitive).
func (h *History) Search(substr string) []Entry {
	all := h.Range(0)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if strings.Contains(Compact(e.Message, 0), substr) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByTopic returns every retained entry whose payload's topic field
// matches the given MQTT filter pattern.
func (h *History) FilterByTopic(pattern string) []Entry {
	all := h.Range(0)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		t, ok := messageTopic(e.Message)
		if ok && topic.MatchFilter(pattern, t) {
			out = append(out, e)
		}
	}
	return out
}

func messageTopic(m debugtap.Message) (string, bool) {
	asMap, ok := m.Payload.(map[string]any)
	if !ok {
		return "", false
	}
	t, ok := asMap["topic"].(string)
	return t, ok
}

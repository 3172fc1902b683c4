package debugshell

import (
	"sort"
	"strings"
	"time"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

// Stats is spec.md §4.11.7's statistics: counts by topic and direction, a
// latency histogram between correlated outgoing/incoming pairs, and a
// topic-namespace tree.
type Stats struct {
	ByTopic     map[string]uint64
	ByDirection map[string]uint64
	Latency     LatencyHistogram
	Tree        *TopicNode
}

// LatencyHistogram buckets round-trip latencies (ms) between a publish and
// its correlated receive, when the codec supplies correlation information
// in properties (spec.md §4.11.7). Correlation key is
// metadata.correlation_id; a publish with no matching receive (or vice
// versa) contributes nothing.
type LatencyHistogram struct {
	Buckets map[string]uint64 // bucket label -> count
	Samples []time.Duration
}

var histogramBounds = []time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	5 * time.Second,
}

func newLatencyHistogram() LatencyHistogram {
	return LatencyHistogram{Buckets: make(map[string]uint64)}
}

func (h *LatencyHistogram) observe(d time.Duration) {
	h.Samples = append(h.Samples, d)
	for _, b := range histogramBounds {
		if d <= b {
			h.Buckets[b.String()]++
			return
		}
	}
	h.Buckets["+Inf"]++
}

// TopicNode is one level of the topic-namespace tree: rows are topic
// levels, leaves carry message counts (spec.md §4.11.7).
type TopicNode struct {
	Children map[string]*TopicNode
	Count    uint64
}

func newTopicNode() *TopicNode {
	return &TopicNode{Children: make(map[string]*TopicNode)}
}

func (n *TopicNode) insert(levels []string) {
	n.Count++
	if len(levels) == 0 {
		return
	}
	head, rest := levels[0], levels[1:]
	child, ok := n.Children[head]
	if !ok {
		child = newTopicNode()
		n.Children[head] = child
	}
	child.insert(rest)
}

// Render renders the tree as indented "level (count)" lines.
func (n *TopicNode) Render() string {
	var sb strings.Builder
	n.renderInto(&sb, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func (n *TopicNode) renderInto(sb *strings.Builder, depth int) {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := n.Children[name]
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(name)
		sb.WriteString(" (")
		sb.WriteString(itoaUint(child.Count))
		sb.WriteString(")\n")
		child.renderInto(sb, depth+1)
	}
}

func itoaUint(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// Compute walks entries and produces Stats. It never mutates entries.
func Compute(entries []Entry) Stats {
	s := Stats{
		ByTopic:     make(map[string]uint64),
		ByDirection: make(map[string]uint64),
		Latency:     newLatencyHistogram(),
		Tree:        newTopicNode(),
	}

	outstanding := make(map[string]time.Time) // correlation_id -> publish time
	for _, e := range entries {
		m := e.Message
		if t, ok := messageTopic(m); ok && t != "" {
			s.ByTopic[t]++
			s.Tree.insert(strings.Split(t, "/"))
		}
		s.ByDirection[directionOf(m)]++

		corr, ok := m.Metadata["correlation_id"]
		if !ok {
			continue
		}
		key := toString(corr)
		ts, err := parseTimestamp(m.Timestamp)
		if err != nil {
			continue
		}
		switch directionOf(m) {
		case "out":
			outstanding[key] = ts
		case "in":
			if start, found := outstanding[key]; found {
				s.Latency.observe(ts.Sub(start))
				delete(outstanding, key)
			}
		}
	}
	return s
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

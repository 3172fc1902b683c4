package debugshell

import (
	"fmt"
	"strconv"
	"strings"
)

// JSONPath is one parsed dotted path selector of spec.md §4.11.6, e.g.
// `$.a.b[0].c` or `$.items[*].value`.
type JSONPath struct {
	segments []pathSegment
}

type pathSegment struct {
	field string // "" if this segment is purely an index/wildcard
	index int    // valid when hasIndex
	hasIndex bool
	wildcard bool // `[*]`
}

// ParseJSONPath parses a path expression. The leading `$` is optional but
// conventional; `.` separates fields and `[N]`/`[*]` index or wildcard a
// list.
func ParseJSONPath(expr string) (JSONPath, error) {
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return JSONPath{}, nil
	}

	var segs []pathSegment
	for _, rawField := range splitPath(s) {
		field, indices, err := splitIndices(rawField)
		if err != nil {
			return JSONPath{}, err
		}
		if field != "" {
			segs = append(segs, pathSegment{field: field})
		}
		for _, idx := range indices {
			if idx == "*" {
				segs = append(segs, pathSegment{wildcard: true})
				continue
			}
			n, err := strconv.Atoi(idx)
			if err != nil {
				return JSONPath{}, fmt.Errorf("invalid index %q", idx)
			}
			segs = append(segs, pathSegment{hasIndex: true, index: n})
		}
	}
	return JSONPath{segments: segs}, nil
}

// splitPath splits "a.b[0].c" into ["a", "b[0]", "c"], respecting that a
// dot may itself appear only as a separator (paths never quote field
// names).
func splitPath(s string) []string {
	return strings.Split(s, ".")
}

// splitIndices splits "items[0][1]" into field="items", indices=["0","1"].
func splitIndices(token string) (field string, indices []string, err error) {
	i := strings.IndexByte(token, '[')
	if i < 0 {
		return token, nil, nil
	}
	field = token[:i]
	rest := token[i:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed index in %q", token)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated index in %q", token)
		}
		indices = append(indices, rest[1:end])
		rest = rest[end+1:]
	}
	return field, indices, nil
}

// Extract evaluates the path against v and returns the matched subtree, or
// nil if any segment does not resolve. A wildcard segment fans out across
// every element of the next segment's matches and collects them into a
// slice (spec.md §8: `$.items[*].v` over `{items:[{v:1},{v:2},{v:3}]}`
// returns `[1,2,3]`).
func (p JSONPath) Extract(v any) any {
	return extract(v, p.segments)
}

func extract(v any, segs []pathSegment) any {
	if len(segs) == 0 {
		return v
	}
	seg := segs[0]
	rest := segs[1:]

	switch {
	case seg.field != "":
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		next, ok := m[seg.field]
		if !ok {
			return nil
		}
		return extract(next, rest)

	case seg.hasIndex:
		arr, ok := v.([]any)
		if !ok || seg.index < 0 || seg.index >= len(arr) {
			return nil
		}
		return extract(arr[seg.index], rest)

	case seg.wildcard:
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		out := make([]any, 0, len(arr))
		for _, elem := range arr {
			out = append(out, extract(elem, rest))
		}
		return out

	default:
		return nil
	}
}

// Extract is a convenience one-shot parse-and-evaluate, used standalone by
// the shell's `jpath` command and as a filter-engine field (spec.md
// §4.11.6).
func Extract(v any, expr string) (any, error) {
	p, err := ParseJSONPath(expr)
	if err != nil {
		return nil, err
	}
	return p.Extract(v), nil
}

// Package debugshell implements the Debug Shell Core of spec.md §4.11: the
// filter engine, message history, bookmarks, step/breakpoints, formatters,
// JSON path extraction, statistics, and export that together drive the
// companion interactive client attached to the Debug Tap. New code: no
// example repo ships a query-language parser, so file layout follows the
// teacher's general idiom (small single-purpose files, table-driven tests)
// rather than any one teacher file.
package debugshell

import (
	"fmt"
	"sync"

	"github.com/ibs-source/mqttpool/internal/debugtap"
)

// Format selects one of spec.md §4.11.5's five output formats.
type Format int

const (
	FormatCompact Format = iota
	FormatTable
	FormatVertical
	FormatJSON
	FormatHex
)

// Shell is the stateful core the companion interactive client drives: it
// ingests every Debug Message the tap forwards, keeps it in History
// regardless of display mode, evaluates the current filter/breakpoints,
// and renders whatever the user asks to see (spec.md §4.11).
type Shell struct {
	History   *History
	Bookmarks *Bookmarks
	Step      *StepEngine

	mu     sync.Mutex
	filter Expr // nil matches everything
}

// NewShell builds a Shell with a history of the given capacity and no
// filter.
func NewShell(historyCapacity int) *Shell {
	h := NewHistory(historyCapacity)
	return &Shell{
		History:   h,
		Bookmarks: NewBookmarks(h),
		Step:      NewStepEngine(),
	}
}

// Ingest records msg into History unconditionally and reports whether it
// should be shown to the user right now, per the current display mode and
// breakpoint set (spec.md §4.11.4: "messages always accumulate into
// history regardless of display mode").
func (s *Shell) Ingest(msg debugtap.Message) (Entry, bool) {
	e := s.History.Insert(msg)
	shouldDisplay := s.Step.Observe(e)
	if !shouldDisplay {
		return e, false
	}
	if !s.matches(e.Message) {
		return e, false
	}
	return e, true
}

func (s *Shell) matches(m debugtap.Message) bool {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	if f == nil {
		return true
	}
	return f.Eval(m)
}

// SetFilter parses and installs a new filter expression. On a parse error
// the prior filter remains in effect (spec.md §4.11.1, §7).
func (s *Shell) SetFilter(expr string) error {
	if expr == "" {
		s.mu.Lock()
		s.filter = nil
		s.mu.Unlock()
		return nil
	}
	parsed, err := Parse(expr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.filter = parsed
	s.mu.Unlock()
	return nil
}

// CurrentFilter returns the canonical rendering of the active filter, or
// "" if none is set.
func (s *Shell) CurrentFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter == nil {
		return ""
	}
	return Render(s.filter)
}

// RenderMessage formats m in the requested Format.
func (s *Shell) RenderMessage(m debugtap.Message, format Format, opts JSONOptions) (string, error) {
	switch format {
	case FormatTable:
		return Table([]Entry{{Message: m}}), nil
	case FormatVertical:
		return Vertical(m), nil
	case FormatJSON:
		return JSON(m, opts)
	case FormatHex:
		return Hex(m), nil
	default:
		return Compact(m, 120), nil
	}
}

// Next advances step mode by one message, returning its rendered form in
// the requested format, or an error if nothing is queued.
func (s *Shell) Next(format Format, opts JSONOptions) (string, error) {
	m, ok := s.Step.Next()
	if !ok {
		return "", fmt.Errorf("no message queued")
	}
	return s.RenderMessage(m, format, opts)
}

// Stats computes spec.md §4.11.7's statistics over every retained entry.
func (s *Shell) Stats() Stats {
	return Compute(s.History.Range(0))
}

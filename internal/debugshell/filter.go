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
	"strconv"
	"strings"

	"github.com/ibs-source/mqttpool/internal/debugtap"
	"github.com/ibs-source/mqttpool/internal/topic"
)

// FilterParseError is spec.md §7's FilterParseError: reported to the shell
// user, prior filter retained.
type FilterParseError struct {
	Input  string
	Reason string
}

func (e *FilterParseError) Error() string {
	return fmt.Sprintf("filter parse error: %s (%q)", e.Reason, e.Input)
}

// Expr is a parsed filter predicate, evaluated once per incoming Debug
// Message (spec.md §4.11.1: "re-uses a single pre-parsed AST per received
// message").
type Expr interface {
	Eval(m debugtap.Message) bool
	render() string
}

// Render returns the canonical textual form of e, used by Parse's
// idempotence guarantee (spec.md §8: re-parsing a successfully parsed
// filter yields an equivalent AST).
func Render(e Expr) string { return e.render() }

type binExpr struct {
	op          string // "and" | "or"
	left, right Expr
}

func (b *binExpr) Eval(m debugtap.Message) bool {
	if b.op == "and" {
		return b.left.Eval(m) && b.right.Eval(m)
	}
	return b.left.Eval(m) || b.right.Eval(m)
}

func (b *binExpr) render() string {
	return "(" + b.left.render() + " " + b.op + " " + b.right.render() + ")"
}

type cmpExpr struct {
	field string
	op    string
	value string // literal as written; re-parsed for numeric comparisons
}

func (c *cmpExpr) render() string {
	return c.field + " " + c.op + " " + strconv.Quote(c.value)
}

func (c *cmpExpr) Eval(m debugtap.Message) bool {
	got, ok := resolveField(m, c.field)
	if !ok {
		return false
	}
	switch c.op {
	case "=":
		return equalValues(got, c.value)
	case "!=":
		return !equalValues(got, c.value)
	case "<", "<=", ">", ">=":
		gf, gok := toFloat64(got)
		wf, wok := toFloat64(c.value)
		if !gok || !wok {
			return false
		}
		switch c.op {
		case "<":
			return gf < wf
		case "<=":
			return gf <= wf
		case ">":
			return gf > wf
		default:
			return gf >= wf
		}
	case "like":
		gs := fmt.Sprint(got)
		return topic.MatchFilter(c.value, gs)
	default:
		return false
	}
}

// Parse parses a filter expression of the grammar documented in spec.md
// §4.11.1. The leading "where" keyword is optional.
func Parse(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, &FilterParseError{Input: input, Reason: err.Error()}
	}
	p := &parser{toks: toks}
	if p.peekKeyword("where") {
		p.pos++
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, &FilterParseError{Input: input, Reason: err.Error()}
	}
	if p.pos != len(p.toks) {
		return nil, &FilterParseError{Input: input, Reason: "unexpected trailing input"}
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) peekKeyword(kw string) bool {
	t, ok := p.peek()
	return ok && t.kind == tIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("or") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("and") {
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of filter")
	}
	if t.kind == tLParen {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tRParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	fieldTok, ok := p.peek()
	if !ok || fieldTok.kind != tIdent {
		return nil, fmt.Errorf("expected a field name")
	}
	p.pos++

	opTok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("expected an operator after field %q", fieldTok.text)
	}
	var op string
	switch {
	case opTok.kind == tOp:
		op = opTok.text
	case opTok.kind == tIdent && strings.EqualFold(opTok.text, "like"):
		op = "like"
	default:
		return nil, fmt.Errorf("expected an operator after field %q", fieldTok.text)
	}
	p.pos++

	valTok, ok := p.peek()
	if !ok || (valTok.kind != tString && valTok.kind != tNumber) {
		return nil, fmt.Errorf("expected a value after operator %q", op)
	}
	p.pos++

	return &cmpExpr{field: fieldTok.text, op: op, value: valTok.text}, nil
}

// resolveField extracts a field's value from a Debug Message per spec.md
// §4.11.1's field grammar.
func resolveField(m debugtap.Message, field string) (any, bool) {
	switch field {
	case "type":
		return m.Type, true
	case "source":
		return m.Source, true
	case "topic":
		return payloadField(m.Payload, "topic")
	case "direction", "qos":
		v, ok := m.Metadata[field]
		return v, ok
	default:
		if strings.HasPrefix(field, "metadata.") {
			v, ok := m.Metadata[strings.TrimPrefix(field, "metadata.")]
			return v, ok
		}
		if strings.HasPrefix(field, "jpath:") {
			v, err := Extract(m.Payload, strings.TrimPrefix(field, "jpath:"))
			return v, err == nil && v != nil
		}
		return payloadField(m.Payload, field)
	}
}

func payloadField(payload any, key string) (any, bool) {
	asMap, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := asMap[key]
	return v, ok
}

func equalValues(got any, want string) bool {
	if gf, ok := toFloat64(got); ok {
		if wf, err := strconv.ParseFloat(want, 64); err == nil {
			return gf == wf
		}
	}
	return fmt.Sprint(got) == want
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

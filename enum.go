package cstruct

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// evalEnumBody walks an enum body's comma-separated enumerator list in
// source order, computing each entry's integer value (first enumerator
// defaults to 0, each subsequent one to prev+1, explicit initializers are
// evaluated as constant expressions), and publishes every enumerator into
// e.enumerators (first write wins). tag is published into e.enums,
// alongside every typedef'd alias name so that a bare typedef'd enum name
// resolves as an enum tag too.
//
// An initializer that fails to evaluate logs a warning and falls back to
// DefaultEnumVal; it never aborts the parse.
func (e *Env) evalEnumBody(tag string, names []string, body string) {
	local := map[string]int64{}
	var prev int64 = -1

	for _, entry := range splitEnumEntries(body) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, exprText, hasInit := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var value int64
		if !hasInit {
			value = prev + 1
		} else {
			v, err := e.evalIntExpr(strings.TrimSpace(exprText), local)
			if err != nil {
				e.Log.WithFields(logrus.Fields{
					"enumerator": name,
					"expr":       exprText,
					"error":      err,
				}).Warn("cstruct: unevaluable enum initializer, falling back to default value")
				value = DefaultEnumVal
			} else {
				value = v
			}
		}

		if _, exists := e.enumerators[name]; !exists {
			e.enumerators[name] = value
		}
		local[name] = value
		prev = value
	}

	if tag != "" {
		e.enums[tag] = true
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			e.enums[n] = true
		}
	}
}

// splitEnumEntries splits an enum body on top-level commas, ignoring any
// comma nested inside parentheses (an initializer expression may use
// parenthesized sub-expressions).
func splitEnumEntries(body string) []string {
	var (
		entries []string
		start   int
		depth   int
	)
	runes := []rune(body)
	for i, r := range runes {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				entries = append(entries, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	entries = append(entries, string(runes[start:]))
	return entries
}

// evalIntExpr evaluates a constant integer expression over the operators
// `+ - * / % << >> & | ^ ~ ( )`, integer literals, and identifiers resolved
// against locally-defined enumerators first, then e.enumerators.
func (e *Env) evalIntExpr(expr string, local map[string]int64) (int64, error) {
	p := &exprParser{toks: tokenizeExpr(expr), env: e, local: local}
	v, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, &UnevaluableExprError{Text: expr}
	}
	return v, nil
}

type exprTokKind uint8

const (
	tokNum exprTokKind = iota
	tokIdent
	tokOp
)

type exprTok struct {
	kind exprTokKind
	text string
}

func tokenizeExpr(s string) []exprTok {
	var toks []exprTok
	runes := []rune(s)
	n := len(runes)

	for i := 0; i < n; {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < n && isIdentOrHexRune(runes[j]) {
				j++
			}
			toks = append(toks, exprTok{tokNum, string(runes[i:j])})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentRune(runes[j]) {
				j++
			}
			toks = append(toks, exprTok{tokIdent, string(runes[i:j])})
			i = j
		case c == '<' && i+1 < n && runes[i+1] == '<':
			toks = append(toks, exprTok{tokOp, "<<"})
			i += 2
		case c == '>' && i+1 < n && runes[i+1] == '>':
			toks = append(toks, exprTok{tokOp, ">>"})
			i += 2
		case strings.ContainsRune("+-*/%&|^~()", c):
			toks = append(toks, exprTok{tokOp, string(c)})
			i++
		default:
			// Unknown character: emit as its own opaque op token so the
			// parser fails cleanly on it rather than silently dropping it.
			toks = append(toks, exprTok{tokOp, string(c)})
			i++
		}
	}
	return toks
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isIdentOrHexRune(r rune) bool {
	return isIdentRune(r)
}

type exprParser struct {
	toks  []exprTok
	pos   int
	env   *Env
	local map[string]int64
}

func (p *exprParser) peek() (exprTok, bool) {
	if p.pos >= len(p.toks) {
		return exprTok{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) matchOp(op string) bool {
	t, ok := p.peek()
	if ok && t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) parseOr() (int64, error) {
	v, err := p.parseXor()
	if err != nil {
		return 0, err
	}
	for p.matchOp("|") {
		rhs, err := p.parseXor()
		if err != nil {
			return 0, err
		}
		v |= rhs
	}
	return v, nil
}

func (p *exprParser) parseXor() (int64, error) {
	v, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.matchOp("^") {
		rhs, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		v ^= rhs
	}
	return v, nil
}

func (p *exprParser) parseAnd() (int64, error) {
	v, err := p.parseShift()
	if err != nil {
		return 0, err
	}
	for p.matchOp("&") {
		rhs, err := p.parseShift()
		if err != nil {
			return 0, err
		}
		v &= rhs
	}
	return v, nil
}

func (p *exprParser) parseShift() (int64, error) {
	v, err := p.parseAdd()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.matchOp("<<"):
			rhs, err := p.parseAdd()
			if err != nil {
				return 0, err
			}
			v <<= uint(rhs)
		case p.matchOp(">>"):
			rhs, err := p.parseAdd()
			if err != nil {
				return 0, err
			}
			v >>= uint(rhs)
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseAdd() (int64, error) {
	v, err := p.parseMul()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.matchOp("+"):
			rhs, err := p.parseMul()
			if err != nil {
				return 0, err
			}
			v += rhs
		case p.matchOp("-"):
			rhs, err := p.parseMul()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseMul() (int64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.matchOp("*"):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case p.matchOp("/"):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, &UnevaluableExprError{Text: "division by zero"}
			}
			v /= rhs
		case p.matchOp("%"):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, &UnevaluableExprError{Text: "modulo by zero"}
			}
			v %= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseUnary() (int64, error) {
	switch {
	case p.matchOp("-"):
		v, err := p.parseUnary()
		return -v, err
	case p.matchOp("+"):
		return p.parseUnary()
	case p.matchOp("~"):
		v, err := p.parseUnary()
		return ^v, err
	default:
		return p.parsePrimary()
	}
}

func (p *exprParser) parsePrimary() (int64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, &UnevaluableExprError{Text: "unexpected end of expression"}
	}

	if t.kind == tokOp && t.text == "(" {
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		if !p.matchOp(")") {
			return 0, &UnevaluableExprError{Text: "missing closing paren"}
		}
		return v, nil
	}

	if t.kind == tokNum {
		p.pos++
		return parseIntLiteral(t.text)
	}

	if t.kind == tokIdent {
		p.pos++
		if v, ok := p.local[t.text]; ok {
			return v, nil
		}
		if v, ok := p.env.enumerators[t.text]; ok {
			return v, nil
		}
		return 0, &UnevaluableExprError{Text: fmt.Sprintf("unknown identifier %q", t.text)}
	}

	return 0, &UnevaluableExprError{Text: t.text}
}

// parseIntLiteral parses a decimal/hex/octal integer literal, stripping
// any trailing U/L/UL/LU suffix.
func parseIntLiteral(text string) (int64, error) {
	trimmed := strings.TrimRight(text, "uUlL")
	if trimmed == "" {
		return 0, &UnevaluableExprError{Text: text}
	}
	v, err := strconv.ParseInt(trimmed, 0, 64)
	if err != nil {
		uv, uerr := strconv.ParseUint(trimmed, 0, 64)
		if uerr != nil {
			return 0, &UnevaluableExprError{Text: text}
		}
		return int64(uv), nil
	}
	return v, nil
}

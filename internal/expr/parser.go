// Package expr evaluates the integer expressions accepted as input: decimal
// literals combined with + - * / % and postfix !, grouped by parentheses.
//
// Evaluation is eager. Each operator is applied to already reduced operands as
// soon as it is parsed; no syntax tree is built.
package expr

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"primecheck/internal/bigint"
)

// maxDepth bounds parenthesis nesting so hostile input cannot exhaust the stack.
const maxDepth = 10_000

// Options bound the work a single expression may request.
type Options struct {
	// FactorialCeiling is the largest n for which n! is evaluated.
	FactorialCeiling uint64
	// MaxInputLength is the largest accepted input in bytes; 0 disables the check.
	MaxInputLength int
}

// DefaultOptions returns the limits used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		FactorialCeiling: 1_000,
		MaxInputLength:   1 << 20,
	}
}

// Parser evaluates expressions under fixed Options. It holds no per-call state
// and is safe for concurrent use.
type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse evaluates input with DefaultOptions.
func Parse(input string) (bigint.Nat, error) {
	return New(DefaultOptions()).Parse(input)
}

// Parse evaluates input to a single non-negative integer. Every failure is a
// *ParseError.
func (p *Parser) Parse(input string) (bigint.Nat, error) {
	if p.opts.MaxInputLength > 0 && len(input) > p.opts.MaxInputLength {
		return bigint.Nat{}, &ParseError{
			Kind:   InputTooLong,
			Reason: fmt.Sprintf("Input too long (limit %d bytes)", p.opts.MaxInputLength),
		}
	}
	toks, err := tokenize(input)
	if err != nil {
		return bigint.Nat{}, err
	}

	s := &state{toks: toks, opts: p.opts}
	v, err := s.expr()
	if err != nil {
		return bigint.Nat{}, err
	}
	if t := s.peek(); t.kind != tokEnd {
		if t.is(')') {
			return bigint.Nat{}, &ParseError{
				Kind:   MalformedParentheses,
				Pos:    t.pos,
				Char:   ')',
				Reason: "Unmatched closing parenthesis",
			}
		}
		return bigint.Nat{}, unexpectedChar(t.pos, t.first())
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokEnd
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(op byte) bool { return t.kind == tokOp && t.text[0] == op }

func (t token) first() byte { return t.text[0] }

func isOperator(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '!', '(', ')':
		return true
	}
	return false
}

// tokenize splits input into numbers and single-byte operators. Whitespace only
// separates tokens; anything outside the alphabet is rejected here, before any
// arithmetic runs.
func tokenize(input string) ([]token, error) {
	var toks []token
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(input) && input[j] >= '0' && input[j] <= '9' {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: input[i:j], pos: i})
			i = j
		case isOperator(c):
			toks = append(toks, token{kind: tokOp, text: input[i : i+1], pos: i})
			i++
		default:
			r, size := utf8.DecodeRuneInString(input[i:])
			if !unicode.IsSpace(r) {
				return nil, invalidChar(i, r)
			}
			i += size
		}
	}
	return append(toks, token{kind: tokEnd, pos: len(input)}), nil
}

type state struct {
	toks  []token
	i     int
	depth int
	opts  Options
}

func (s *state) peek() token { return s.toks[s.i] }

func (s *state) next() token {
	t := s.toks[s.i]
	if t.kind != tokEnd {
		s.i++
	}
	return t
}

// expr := term (('+' | '-') term)*
func (s *state) expr() (bigint.Nat, error) {
	v, err := s.term()
	if err != nil {
		return v, err
	}
	for {
		op := s.peek()
		if !op.is('+') && !op.is('-') {
			return v, nil
		}
		s.next()
		rhs, err := s.term()
		if err != nil {
			return v, err
		}
		if op.is('+') {
			v = v.Add(rhs)
			continue
		}
		v, err = v.Sub(rhs)
		if err != nil {
			return v, &ParseError{Kind: NegativeResult, Pos: op.pos, Char: '-', Reason: "Negative result", cause: err}
		}
	}
}

// term := postfix (('*' | '/' | '%') postfix)*
func (s *state) term() (bigint.Nat, error) {
	v, err := s.postfix()
	if err != nil {
		return v, err
	}
	for {
		op := s.peek()
		if !op.is('*') && !op.is('/') && !op.is('%') {
			return v, nil
		}
		s.next()
		rhs, err := s.postfix()
		if err != nil {
			return v, err
		}
		if op.is('*') {
			v = v.Mul(rhs)
			continue
		}
		q, r, err := v.DivRem(rhs)
		if err != nil {
			reason := "Division by zero"
			if op.is('%') {
				reason = "Modulo by zero"
			}
			return v, &ParseError{Kind: DivisionByZero, Pos: op.pos, Char: rune(op.first()), Reason: reason, cause: err}
		}
		if op.is('/') {
			v = q
		} else {
			v = r
		}
	}
}

// postfix := primary '!'*
func (s *state) postfix() (bigint.Nat, error) {
	v, err := s.primary()
	if err != nil {
		return v, err
	}
	for s.peek().is('!') {
		bang := s.next()
		v, err = bigint.Factorial(v, s.opts.FactorialCeiling)
		if err != nil {
			return v, &ParseError{
				Kind:   FactorialArgumentTooLarge,
				Pos:    bang.pos,
				Char:   '!',
				Reason: fmt.Sprintf("Factorial argument too large (limit %d)", s.opts.FactorialCeiling),
				cause:  err,
			}
		}
	}
	return v, nil
}

// primary := number | '(' expr ')'
func (s *state) primary() (bigint.Nat, error) {
	t := s.next()
	switch {
	case t.kind == tokEnd:
		return bigint.Nat{}, unexpectedEnd(t.pos)
	case t.kind == tokNumber:
		v, err := bigint.FromDecimal(t.text)
		if err != nil {
			return v, &ParseError{Kind: InvalidCharacter, Pos: t.pos, Reason: err.Error(), cause: err}
		}
		return v, nil
	case t.is('('):
		s.depth++
		if s.depth > maxDepth {
			return bigint.Nat{}, &ParseError{Kind: MalformedParentheses, Pos: t.pos, Char: '(', Reason: "Parentheses nested too deeply"}
		}
		v, err := s.expr()
		if err != nil {
			return v, err
		}
		s.depth--
		closing := s.next()
		switch {
		case closing.is(')'):
			return v, nil
		case closing.kind == tokEnd:
			return v, &ParseError{Kind: MalformedParentheses, Pos: t.pos, Char: '(', Reason: "Unclosed parenthesis"}
		default:
			return v, unexpectedChar(closing.pos, closing.first())
		}
	default:
		// An operator where an operand belongs. This is what rejects "* *",
		// "2 ** 3" and a leading sign.
		return bigint.Nat{}, unexpectedChar(t.pos, t.first())
	}
}

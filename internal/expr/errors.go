package expr

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError with errors.Is.
var ErrParse = errors.New("parse error")

// ErrorKind classifies a parse or evaluation failure.
type ErrorKind int

const (
	InvalidCharacter ErrorKind = iota + 1
	UnexpectedCharacter
	UnexpectedEnd
	DivisionByZero
	NegativeResult
	FactorialArgumentTooLarge
	MalformedParentheses
	InputTooLong
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidCharacter:
		return "invalid_character"
	case UnexpectedCharacter:
		return "unexpected_character"
	case UnexpectedEnd:
		return "unexpected_end"
	case DivisionByZero:
		return "division_by_zero"
	case NegativeResult:
		return "negative_result"
	case FactorialArgumentTooLarge:
		return "factorial_argument_too_large"
	case MalformedParentheses:
		return "malformed_parentheses"
	case InputTooLong:
		return "input_too_long"
	default:
		return "unknown"
	}
}

// ParseError is the terminal failure of one Parse call.
type ParseError struct {
	Kind ErrorKind
	// Pos is the byte offset of the offending token in the raw input.
	Pos int
	// Char is the offending character for the character kinds.
	Char rune
	// Reason is the human-readable text shown to the user.
	Reason string

	cause error
}

func (e *ParseError) Error() string { return e.Reason }

// Unwrap exposes the bigint sentinel an evaluation error came from.
func (e *ParseError) Unwrap() error { return e.cause }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func unexpectedChar(pos int, c byte) *ParseError {
	return &ParseError{
		Kind:   UnexpectedCharacter,
		Pos:    pos,
		Char:   rune(c),
		Reason: fmt.Sprintf("Unexpected character '%c'", c),
	}
}

func invalidChar(pos int, c rune) *ParseError {
	return &ParseError{
		Kind:   InvalidCharacter,
		Pos:    pos,
		Char:   c,
		Reason: fmt.Sprintf("Unexpected character '%c'", c),
	}
}

func unexpectedEnd(pos int) *ParseError {
	return &ParseError{Kind: UnexpectedEnd, Pos: pos, Reason: "Unexpected end of input"}
}

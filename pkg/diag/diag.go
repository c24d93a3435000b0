// Package diag defines the compiler's error taxonomy and warning records.
// Every error and warning carries the source position it refers to.
package diag

import (
	"fmt"

	"github.com/mzlang/mzc/pkg/token"
)

type Kind int

const (
	LexError Kind = iota
	ParseError
	DialectError
	CodegenError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case DialectError:
		return "dialect error"
	case CodegenError:
		return "codegen error"
	}
	return "error"
}

type Code string

const (
	CodeUnknownToken         Code = "unknown-token"
	CodeUnterminatedComment  Code = "unterminated-comment"
	CodeMultilineString      Code = "multiline-string"
	CodeUnterminatedString   Code = "unterminated-string"
	CodeIntegerOverflow      Code = "integer-overflow"
	CodeFeatureDisabled      Code = "feature-disabled"
	CodeUnexpectedToken      Code = "unexpected-token"
	CodeMissingToken         Code = "missing-token"
	CodeDialectNotFound      Code = "dialect-not-found"
	CodeMissingMapping       Code = "missing-mapping"
	CodeInvalidDialect       Code = "invalid-dialect"
	CodeKeywordCollision     Code = "keyword-collision"
	CodeUndeclaredIdentifier Code = "undeclared-identifier"
	CodeRedeclared           Code = "redeclared"
	CodeNotAnArray           Code = "not-an-array"
	CodeNotAScalar           Code = "not-a-scalar"
	CodeUnknownBuiltin       Code = "unknown-builtin"
	CodeBadArity             Code = "bad-arity"
	CodeBadArgument          Code = "bad-argument"
	CodeInvalidArraySize     Code = "invalid-array-size"
)

// Error is a fatal language-level error. Line 0 means the error has no
// source position (dialect loading, for example).
type Error struct {
	Kind Kind
	Code Code
	Line int
	Col  int
	Len  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Col, e.Kind, e.Msg)
}

func (e *Error) Pos() token.Pos { return token.Pos{Line: e.Line, Col: e.Col} }

func Newf(kind Kind, code Code, pos token.Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Line: pos.Line, Col: pos.Col, Len: 1, Msg: fmt.Sprintf(format, args...)}
}

// AtToken builds an error spanning tok.
func AtToken(kind Kind, code Code, tok token.Token, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Line: tok.Line, Col: tok.Col, Len: tok.Len(), Msg: fmt.Sprintf(format, args...)}
}

type Level int

const (
	LevelError Level = iota
	LevelWarning
)

func (l Level) String() string {
	if l == LevelWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a non-fatal finding, or an Error converted for display.
type Diagnostic struct {
	Level   Level
	Name    string // warning flag name, e.g. "unused"
	Line    int
	Col     int
	Len     int
	Message string
}

func Warning(name string, tok token.Token, format string, args ...any) Diagnostic {
	return Diagnostic{
		Level: LevelWarning, Name: name, Line: tok.Line, Col: tok.Col, Len: tok.Len(),
		Message: fmt.Sprintf(format, args...),
	}
}

func FromError(e *Error) Diagnostic {
	return Diagnostic{Level: LevelError, Name: string(e.Code), Line: e.Line, Col: e.Col, Len: e.Len, Message: e.Msg}
}

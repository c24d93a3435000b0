// Package scanner turns source text into positioned characters. It owns
// whitespace skipping, the comment and string-literal modes, and line/column
// accounting.
package scanner

import (
	"strings"
	"unicode"

	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

// Char is a rune with the 1-based position it was read from.
type Char struct {
	R    rune
	Line int
	Col  int
}

func (c Char) Pos() token.Pos { return token.Pos{Line: c.Line, Col: c.Col} }

type Scanner struct {
	source []rune
	pos    int
	line   int
	column int
}

func New(src string) *Scanner {
	return &Scanner{source: []rune(src), line: 1, column: 1}
}

func (s *Scanner) isAtEnd() bool { return s.pos >= len(s.source) }

func (s *Scanner) advance() rune {
	ch := s.source[s.pos]
	if ch == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	s.pos++
	return ch
}

// SkipSpace consumes whitespace up to the next significant character.
func (s *Scanner) SkipSpace() {
	for !s.isAtEnd() && unicode.IsSpace(s.source[s.pos]) {
		s.advance()
	}
}

// HasNext skips whitespace and reports whether a non-whitespace character
// remains. Afterwards Peek(0) is that character.
func (s *Scanner) HasNext() bool {
	s.SkipSpace()
	return !s.isAtEnd()
}

// Peek returns the character offset positions ahead without consuming
// anything. Line and column are computed by scanning forward.
func (s *Scanner) Peek(offset int) (Char, bool) {
	idx := s.pos + offset
	if offset < 0 || idx >= len(s.source) {
		return Char{}, false
	}
	line, col := s.line, s.column
	for i := s.pos; i < idx; i++ {
		if s.source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Char{R: s.source[idx], Line: line, Col: col}, true
}

// PeekRune is Peek without the position bookkeeping.
func (s *Scanner) PeekRune(offset int) (rune, bool) {
	idx := s.pos + offset
	if offset < 0 || idx >= len(s.source) {
		return 0, false
	}
	return s.source[idx], true
}

func (s *Scanner) Next() (Char, bool) {
	if s.isAtEnd() {
		return Char{}, false
	}
	c := Char{Line: s.line, Col: s.column}
	c.R = s.advance()
	return c, true
}

func (s *Scanner) Pos() token.Pos { return token.Pos{Line: s.line, Col: s.column} }

// ConsumeComment reads a comment whose opening marker is the next
// character. A doubled marker opens a block comment that ends at the next
// doubled marker; otherwise the comment runs to the end of the line, which
// is left unconsumed.
func (s *Scanner) ConsumeComment(marker rune) (text string, block bool, err error) {
	start := s.Pos()
	if r, ok := s.PeekRune(0); !ok || r != marker {
		return "", false, diag.Newf(diag.LexError, diag.CodeUnexpectedToken, start, "expected comment marker '%c'", marker)
	}
	s.advance()

	if r, ok := s.PeekRune(0); ok && r == marker {
		s.advance()
		var sb strings.Builder
		for !s.isAtEnd() {
			if s.source[s.pos] == marker {
				if r, ok := s.PeekRune(1); ok && r == marker {
					s.advance()
					s.advance()
					return sb.String(), true, nil
				}
			}
			sb.WriteRune(s.advance())
		}
		return "", true, &diag.Error{
			Kind: diag.LexError, Code: diag.CodeUnterminatedComment,
			Line: start.Line, Col: start.Col, Len: 2,
			Msg: "unterminated block comment",
		}
	}

	var sb strings.Builder
	for !s.isAtEnd() && s.source[s.pos] != '\n' {
		sb.WriteRune(s.advance())
	}
	return strings.TrimRight(sb.String(), "\r"), false, nil
}

// ConsumeString reads a literal opened by terminal and returns its content
// without the terminals.
func (s *Scanner) ConsumeString(terminal rune) (string, error) {
	start := s.Pos()
	if r, ok := s.PeekRune(0); !ok || r != terminal {
		return "", diag.Newf(diag.LexError, diag.CodeUnexpectedToken, start, "expected string delimiter '%c'", terminal)
	}
	s.advance()

	var sb strings.Builder
	for !s.isAtEnd() {
		c := s.source[s.pos]
		switch c {
		case terminal:
			s.advance()
			return sb.String(), nil
		case '\n':
			return "", &diag.Error{
				Kind: diag.LexError, Code: diag.CodeMultilineString,
				Line: start.Line, Col: start.Col, Len: s.column - start.Col,
				Msg: "multiline string literals are not supported",
			}
		}
		sb.WriteRune(s.advance())
	}
	return "", &diag.Error{
		Kind: diag.LexError, Code: diag.CodeUnterminatedString,
		Line: start.Line, Col: start.Col, Len: 1,
		Msg: "unterminated string literal",
	}
}

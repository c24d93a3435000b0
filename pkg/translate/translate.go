// Package translate re-renders a token stream in another dialect. It works
// on tokens only: nothing is parsed or validated, so a translation round
// trips at the token level.
package translate

import (
	"strings"
	"unicode/utf8"

	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/token"
)

const indentUnit = "    "

type renderer struct {
	target *dialect.Table
	out    []byte
	indent int
	prev   *token.Token
	last   string // spelling of prev
	keep   int    // out[:keep] ends a line comment and must not be trimmed
}

// Translate renders tokens with target's spellings.
func Translate(tokens []token.Token, target *dialect.Table) (string, error) {
	r := &renderer{target: target}
	for i := range tokens {
		tok := tokens[i]
		if tok.Kind == token.EOF {
			continue
		}
		next := token.EOF
		if i+1 < len(tokens) {
			next = tokens[i+1].Kind
		}
		if err := r.token(tok, next); err != nil {
			return "", err
		}
		r.prev = &tokens[i]
	}
	out := strings.TrimRight(string(r.out), " \t\n")
	if len(out) < r.keep {
		out = string(r.out[:r.keep])
	}
	return out + "\n", nil
}

// TranslateSource lexes src in the from dialect and renders it in to.
func TranslateSource(src string, from, to *dialect.Table, cfg *config.Config) (string, error) {
	tokens, err := lexer.Tokenize(src, from, cfg)
	if err != nil {
		return "", err
	}
	return Translate(tokens, to)
}

func (r *renderer) token(tok token.Token, next token.Kind) error {
	switch tok.Kind {
	case token.Comment:
		return r.comment(tok)
	case token.CloseCurly:
		r.trimSpace()
		r.indent = max(r.indent-1, 0)
		if r.atLineStart() {
			r.writeIndent()
		}
	}

	text, err := r.spell(tok)
	if err != nil {
		return err
	}
	if r.needsSpace(tok, text) {
		r.out = append(r.out, ' ')
	}
	r.out = append(r.out, text...)
	r.last = text

	switch tok.Kind {
	case token.OpenCurly:
		r.indent++
		r.newline()
	case token.Semi:
		r.newline()
	case token.CloseCurly:
		if next == token.Elif || next == token.Else {
			return nil
		}
		r.newline()
	}
	return nil
}

func (r *renderer) spell(tok token.Token) (string, error) {
	switch tok.Kind {
	case token.IntLit:
		return tok.Text, nil
	case token.Ident:
		if kind, ok := r.target.Lookup(tok.Text); ok {
			return "", &diag.Error{
				Kind: diag.DialectError, Code: diag.CodeKeywordCollision,
				Line: tok.Line, Col: tok.Col, Len: tok.Len(),
				Msg: "identifier '" + tok.Text + "' is spelled like " + kind.String() + " in dialect '" + r.target.Name + "'",
			}
		}
		return tok.Text, nil
	case token.StrLit:
		return string(dialect.StringTerminal) + tok.Text + string(dialect.StringTerminal), nil
	}
	text, err := r.target.Render(tok.Kind)
	if err != nil {
		if de, ok := err.(*diag.Error); ok {
			de.Line, de.Col, de.Len = tok.Line, tok.Col, tok.Len()
		}
		return "", err
	}
	return text, nil
}

func (r *renderer) comment(tok token.Token) error {
	marker, ok := r.target.CommentMarker()
	if !ok {
		return &diag.Error{
			Kind: diag.DialectError, Code: diag.CodeMissingMapping,
			Line: tok.Line, Col: tok.Col, Len: tok.Len(),
			Msg: "dialect '" + r.target.Name + "' has no spelling for comment",
		}
	}
	m := string(marker)
	if tok.Block {
		if strings.Contains(tok.Text, m+m) || strings.HasSuffix(tok.Text, m) {
			return &diag.Error{
				Kind: diag.DialectError, Code: diag.CodeKeywordCollision,
				Line: tok.Line, Col: tok.Col, Len: 2,
				Msg: "block comment contains the closing marker " + m + m + " of dialect '" + r.target.Name + "'",
			}
		}
		if !r.atLineStart() {
			r.out = append(r.out, ' ')
		}
		r.out = append(r.out, m+m+tok.Text+m+m...)
		r.last = m + m
		return nil
	}
	if strings.HasPrefix(tok.Text, m) {
		return &diag.Error{
			Kind: diag.DialectError, Code: diag.CodeKeywordCollision,
			Line: tok.Line, Col: tok.Col, Len: 2,
			Msg: "line comment would open a block comment " + m + m + " in dialect '" + r.target.Name + "'",
		}
	}
	if !r.atLineStart() {
		r.out = append(r.out, ' ')
	}
	r.out = append(r.out, m+tok.Text...)
	r.keep = len(r.out)
	// Trailing blanks are comment text.
	r.out = append(r.out, '\n')
	r.writeIndent()
	return nil
}

// needsSpace decides whether text must be separated from what precedes
// it: always between words, never where the result would read as another
// token, and otherwise by conventional layout.
func (r *renderer) needsSpace(tok token.Token, text string) bool {
	if r.prev == nil || r.atLineStart() || len(r.out) > 0 && r.out[len(r.out)-1] == ' ' {
		return false
	}
	if r.prev.Kind == token.Comment {
		return true
	}
	if r.joins(r.last, text) {
		return true
	}

	switch tok.Kind {
	case token.Semi, token.CloseParen, token.CloseBracket, token.Comma:
		return false
	case token.OpenParen:
		return r.prev.Kind != token.Ident && r.prev.Kind != token.Exit
	case token.OpenBracket:
		return r.prev.Kind != token.Ident
	}
	switch r.prev.Kind {
	case token.OpenParen, token.OpenBracket:
		return false
	}
	return true
}

// joins reports whether a and b written back to back could lex as
// something else.
func (r *renderer) joins(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if isWordRune(last) && isWordRune(first) {
		return true
	}
	if isWordRune(last) || isWordRune(first) {
		return false
	}
	if eq, ok := r.target.SingleChar(token.Eq); ok && first == eq {
		for _, k := range []token.Kind{token.Eq, token.Bang, token.LogicGt, token.LogicLt} {
			if c, ok := r.target.SingleChar(k); ok && c == last {
				return true
			}
		}
	}
	return r.target.HasSymbolPrefix(string(last) + string(first))
}

func isWordRune(c rune) bool {
	return dialect.IsWord(string(c)) || c >= '0' && c <= '9'
}

func (r *renderer) atLineStart() bool {
	for i := len(r.out) - 1; i >= 0; i-- {
		switch r.out[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func (r *renderer) trimSpace() {
	for len(r.out) > 0 && (r.out[len(r.out)-1] == ' ' || r.out[len(r.out)-1] == '\t') {
		r.out = r.out[:len(r.out)-1]
	}
}

func (r *renderer) writeIndent() {
	r.out = append(r.out, strings.Repeat(indentUnit, r.indent)...)
}

func (r *renderer) newline() {
	r.trimSpace()
	r.out = append(r.out, '\n')
	r.writeIndent()
}

package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/scanner"
	"github.com/mzlang/mzc/pkg/token"
)

// composedFirst are the kinds that may open a two-character operator.
var composedFirst = []token.Kind{token.Eq, token.Bang, token.LogicGt, token.LogicLt}

type Lexer struct {
	sc     *scanner.Scanner
	table  *dialect.Table
	cfg    *config.Config
	tokens []token.Token
}

func New(src string, table *dialect.Table, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{sc: scanner.New(src), table: table, cfg: cfg}
}

// Tokenize is a convenience wrapper around New(...).Tokenize().
func Tokenize(src string, table *dialect.Table, cfg *config.Config) ([]token.Token, error) {
	return New(src, table, cfg).Tokenize()
}

// Tokenize scans the whole input. The returned stream always ends with a
// single eof token.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	marker, hasMarker := l.table.CommentMarker()

	for l.sc.HasNext() {
		c, _ := l.sc.Peek(0)
		var err error
		switch {
		case isDigit(c.R):
			err = l.number(c)
		case c.R == '_' || unicode.IsLetter(c.R):
			l.word(c)
		case c.R == dialect.StringTerminal:
			err = l.stringLiteral(c)
		case hasMarker && c.R == marker:
			err = l.comment(c, marker)
		default:
			err = l.symbol(c)
		}
		if err != nil {
			return nil, err
		}
	}

	end := l.sc.Pos()
	l.tokens = append(l.tokens, token.New(token.EOF, "", end.Line, end.Col, end.Col))
	return l.tokens, nil
}

// Tokens returns what has been scanned so far. After a failed Tokenize it
// holds every token before the error.
func (l *Lexer) Tokens() []token.Token { return l.tokens }

func (l *Lexer) emit(kind token.Kind, text string, start scanner.Char) *token.Token {
	endCol := l.sc.Pos().Col
	if l.sc.Pos().Line != start.Line {
		endCol = start.Col + 1
	}
	l.tokens = append(l.tokens, token.New(kind, text, start.Line, start.Col, endCol))
	return &l.tokens[len(l.tokens)-1]
}

func (l *Lexer) number(start scanner.Char) error {
	var sb strings.Builder
	for {
		r, ok := l.sc.PeekRune(0)
		if !ok || !isDigit(r) {
			break
		}
		l.sc.Next()
		sb.WriteRune(r)
	}
	text := sb.String()
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return &diag.Error{
			Kind: diag.LexError, Code: diag.CodeIntegerOverflow,
			Line: start.Line, Col: start.Col, Len: len(text),
			Msg: "integer literal " + text + " does not fit in 64 bits",
		}
	}
	l.emit(token.IntLit, text, start)
	return nil
}

// word reads an identifier-shaped run. While the run stays on a path of
// the dialect's word trie it may still be a keyword; once it leaves, it can
// only be an identifier and the table is not consulted.
func (l *Lexer) word(start scanner.Char) {
	var sb strings.Builder
	keyword := true
	for {
		r, ok := l.sc.PeekRune(0)
		if !ok || !isWordRune(r) {
			break
		}
		l.sc.Next()
		sb.WriteRune(r)
		if keyword && !l.table.HasWordPrefix(sb.String()) {
			keyword = false
		}
	}
	text := sb.String()
	if keyword {
		if kind, ok := l.table.Lookup(text); ok {
			l.emit(kind, text, start)
			return
		}
	}
	l.emit(token.Ident, text, start)
}

func (l *Lexer) stringLiteral(start scanner.Char) error {
	if !l.cfg.IsFeatureEnabled(config.FeatStrings) {
		return l.featureDisabled(start, 1, "string literals", config.FeatStrings)
	}
	text, err := l.sc.ConsumeString(dialect.StringTerminal)
	if err != nil {
		return err
	}
	l.emit(token.StrLit, text, start)
	return nil
}

func (l *Lexer) comment(start scanner.Char, marker rune) error {
	if next, ok := l.sc.PeekRune(1); ok && next == marker && !l.cfg.IsFeatureEnabled(config.FeatBlockComments) {
		return l.featureDisabled(start, 2, "block comments", config.FeatBlockComments)
	}
	text, block, err := l.sc.ConsumeComment(marker)
	if err != nil {
		return err
	}
	l.emit(token.Comment, text, start).Block = block
	return nil
}

func (l *Lexer) symbol(start scanner.Char) error {
	if kind, ok := l.composed(start.R); ok {
		l.sc.Next()
		l.sc.Next()
		text, _ := l.table.Render(kind)
		l.emit(kind, text, start)
		return nil
	}

	// Greedy longest match against the symbol trie.
	var buf []rune
	matched, matchedKind := 0, token.EOF
	for i := 0; ; i++ {
		r, ok := l.sc.PeekRune(i)
		if !ok || !isSymbolRune(r) || !l.table.HasSymbolPrefix(string(append(buf, r))) {
			break
		}
		buf = append(buf, r)
		if kind, ok := l.table.Lookup(string(buf)); ok {
			matched, matchedKind = len(buf), kind
		}
	}

	if matched == 0 {
		run := l.symbolRun()
		return &diag.Error{
			Kind: diag.LexError, Code: diag.CodeUnknownToken,
			Line: start.Line, Col: start.Col, Len: len([]rune(run)),
			Msg: "unknown token '" + run + "'",
		}
	}

	if (matchedKind == token.OpenBracket || matchedKind == token.CloseBracket) && !l.cfg.IsFeatureEnabled(config.FeatArrays) {
		return l.featureDisabled(start, matched, "arrays", config.FeatArrays)
	}

	for i := 0; i < matched; i++ {
		l.sc.Next()
	}
	l.emit(matchedKind, string(buf[:matched]), start)
	return nil
}

// composed recognizes ==, !=, >= and <= by looking two characters ahead
// over the dialect's single-character spellings.
func (l *Lexer) composed(first rune) (token.Kind, bool) {
	eq, ok := l.table.SingleChar(token.Eq)
	if !ok {
		return token.EOF, false
	}
	second, ok := l.sc.PeekRune(1)
	if !ok || second != eq {
		return token.EOF, false
	}
	for _, k := range composedFirst {
		if r, ok := l.table.SingleChar(k); ok && r == first {
			return token.Compose(k)
		}
	}
	return token.EOF, false
}

// symbolRun is the maximal run of symbol characters at the cursor, used to
// name an unknown token.
func (l *Lexer) symbolRun() string {
	var sb strings.Builder
	for i := 0; ; i++ {
		r, ok := l.sc.PeekRune(i)
		if !ok || !isSymbolRune(r) {
			break
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (l *Lexer) featureDisabled(start scanner.Char, length int, what string, ft config.Feature) error {
	return &diag.Error{
		Kind: diag.LexError, Code: diag.CodeFeatureDisabled,
		Line: start.Line, Col: start.Col, Len: length,
		Msg: what + " are disabled (enable with -F" + l.cfg.Features[ft].Name + ")",
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordRune(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func isSymbolRune(r rune) bool {
	return !isWordRune(r) && !unicode.IsSpace(r) && r != dialect.StringTerminal
}

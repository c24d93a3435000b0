package lsp

import (
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/token"
)

var SemanticTokenTypes = []string{
	"keyword",
	"variable",
	"function",
	"number",
	"string",
	"operator",
	"comment",
}

var SemanticTokenModifiers = []string{
	"declaration",
}

const (
	typeKeyword = iota
	typeVariable
	typeFunction
	typeNumber
	typeString
	typeOperator
	typeComment
)

const modDeclaration = 1 << 0

// SemanticToken is one highlighted span, 0-based, columns in UTF-16 units.
type SemanticToken struct {
	Line      uint32
	StartChar uint32
	Length    uint32
	Type      int
	Modifiers int
}

// SemanticTokens classifies the tokens of src. Only the lexer runs, so
// highlighting survives parse errors; a lex error truncates the result at
// the offending token.
func SemanticTokens(src string, table *dialect.Table, cfg *config.Config) []SemanticToken {
	lx := lexer.New(src, table, cfg)
	_, _ = lx.Tokenize()
	tokens := lx.Tokens()

	ls := splitLines(src)
	var out []SemanticToken
	for i, tok := range tokens {
		typ, ok := classify(tokens, i)
		if !ok {
			continue
		}
		start, length := ls.span(tok.Line, tok.Col, tok.Len())
		st := SemanticToken{
			Line:      uint32(tok.Line - 1),
			StartChar: start,
			Length:    length,
			Type:      typ,
		}
		if tok.Kind == token.Ident && i > 0 && tokens[i-1].Kind == token.Let {
			st.Modifiers |= modDeclaration
		}
		out = append(out, st)
	}
	return out
}

func classify(tokens []token.Token, i int) (int, bool) {
	tok := tokens[i]
	switch {
	case tok.Kind == token.EOF:
		return 0, false
	case tok.Kind.IsKeyword():
		return typeKeyword, true
	case tok.Kind == token.Ident:
		if i+1 < len(tokens) && tokens[i+1].Kind == token.OpenParen {
			return typeFunction, true
		}
		return typeVariable, true
	case tok.Kind == token.IntLit:
		return typeNumber, true
	case tok.Kind == token.StrLit:
		return typeString, true
	case tok.Kind == token.Comment:
		return typeComment, true
	case token.IsBinaryOp(tok.Kind), tok.Kind == token.Eq:
		return typeOperator, true
	}
	return 0, false
}

// EncodeSemanticTokens packs tokens into the LSP relative format: each
// token is five integers, its line and start relative to the previous one.
func EncodeSemanticTokens(tokens []SemanticToken) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)
	var prevLine, prevStart uint32
	for _, t := range tokens {
		deltaLine := t.Line - prevLine
		deltaStart := t.StartChar
		if deltaLine == 0 {
			deltaStart = t.StartChar - prevStart
		}
		data = append(data, deltaLine, deltaStart, t.Length, uint32(t.Type), uint32(t.Modifiers))
		prevLine, prevStart = t.Line, t.StartChar
	}
	return data
}

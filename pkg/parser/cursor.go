package parser

import "github.com/mzlang/mzc/pkg/token"

// Cursor is a lookahead view over a token stream. Comment tokens are
// skipped. Past the last real token every read returns the eof token and
// ok == false.
type Cursor struct {
	tokens []token.Token
	pos    int
}

func NewCursor(tokens []token.Token) *Cursor {
	c := &Cursor{tokens: make([]token.Token, 0, len(tokens)+1)}
	for _, t := range tokens {
		if t.Kind == token.Comment {
			continue
		}
		if t.Kind == token.EOF {
			break
		}
		c.tokens = append(c.tokens, t)
	}

	eof := token.New(token.EOF, "", 1, 1, 1)
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		eof = token.New(token.EOF, "", last.Line, last.EndCol, last.EndCol)
		if last.Kind == token.EOF {
			eof = last
		}
	}
	c.tokens = append(c.tokens, eof)
	return c
}

func (c *Cursor) eof() token.Token { return c.tokens[len(c.tokens)-1] }

// Peek returns the current token without consuming it.
func (c *Cursor) Peek() (token.Token, bool) { return c.PeekAt(0) }

// PeekAt returns the token offset positions after the current one.
func (c *Cursor) PeekAt(offset int) (token.Token, bool) {
	idx := c.pos + offset
	if offset < 0 || idx >= len(c.tokens)-1 {
		return c.eof(), false
	}
	return c.tokens[idx], true
}

// Next consumes and returns the current token.
func (c *Cursor) Next() (token.Token, bool) {
	t, ok := c.Peek()
	if ok {
		c.pos++
	}
	return t, ok
}

// Prev returns the most recently consumed token.
func (c *Cursor) Prev() (token.Token, bool) {
	if c.pos == 0 {
		return token.Token{}, false
	}
	return c.tokens[c.pos-1], true
}

func (c *Cursor) AtEnd() bool { return c.pos >= len(c.tokens)-1 }

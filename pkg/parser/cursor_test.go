package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/token"
)

func TestCursorSkipsComments(t *testing.T) {
	c := NewCursor([]token.Token{
		token.New(token.Comment, " c", 1, 1, 4),
		token.New(token.Exit, "exit", 2, 1, 5),
		token.New(token.Comment, " d", 2, 6, 9),
		token.New(token.Semi, ";", 3, 1, 2),
		token.New(token.EOF, "", 3, 2, 2),
	})

	tok, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, token.Exit, tok.Kind)

	tok, ok = c.Peek()
	require.True(t, ok)
	assert.Equal(t, token.Semi, tok.Kind)

	prev, ok := c.Prev()
	require.True(t, ok)
	assert.Equal(t, token.Exit, prev.Kind)

	c.Next()
	assert.True(t, c.AtEnd())
	tok, ok = c.Next()
	assert.False(t, ok)
	assert.Equal(t, token.EOF, tok.Kind)
	assert.Equal(t, token.Pos{Line: 3, Col: 2}, tok.Pos())
}

func TestCursorSynthesizesEOF(t *testing.T) {
	c := NewCursor([]token.Token{token.New(token.Let, "let", 4, 3, 6)})
	tok, ok := c.PeekAt(1)
	assert.False(t, ok)
	assert.Equal(t, token.EOF, tok.Kind)
	assert.Equal(t, token.Pos{Line: 4, Col: 6}, tok.Pos())

	empty := NewCursor(nil)
	assert.True(t, empty.AtEnd())
	_, ok = empty.Prev()
	assert.False(t, ok)
	tok, _ = empty.Peek()
	assert.Equal(t, token.Pos{Line: 1, Col: 1}, tok.Pos())
}

func TestCursorPeekAtNegative(t *testing.T) {
	c := NewCursor([]token.Token{token.New(token.Semi, ";", 1, 1, 2)})
	_, ok := c.PeekAt(-1)
	assert.False(t, ok)
}

package diag

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/token"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestErrorString(t *testing.T) {
	tok := token.New(token.IntLit, "69", 1, 6, 8)
	err := AtToken(ParseError, CodeMissingToken, tok, "expected %s, found %s", "'('", tok.Describe())
	assert.Equal(t, "1:6: parse error: expected '(', found integer 69", err.Error())
	assert.Equal(t, 2, err.Len)
	assert.Equal(t, token.Pos{Line: 1, Col: 6}, err.Pos())

	noPos := &Error{Kind: DialectError, Code: CodeDialectNotFound, Msg: "unknown dialect"}
	assert.Equal(t, "dialect error: unknown dialect", noPos.Error())

	wrapped := fmt.Errorf("compiling: %w", err)
	var de *Error
	require.ErrorAs(t, wrapped, &de)
	assert.Equal(t, CodeMissingToken, de.Code)
}

func TestKindAndLevelNames(t *testing.T) {
	assert.Equal(t, "lex error", LexError.String())
	assert.Equal(t, "codegen error", CodegenError.String())
	assert.Equal(t, "error", Kind(42).String())
	assert.Equal(t, "warning", LevelWarning.String())
	assert.Equal(t, "error", LevelError.String())
}

func TestReporterFormat(t *testing.T) {
	src := "let x = 1;\n  exit 69;\n"
	r := NewReporter("prog.mz", src, nil)

	err := Newf(ParseError, CodeMissingToken, token.Pos{Line: 2, Col: 8}, "expected '(' after 'exit', found integer 69")
	err.Len = 2
	assert.Equal(t,
		"prog.mz:2:8: error: expected '(' after 'exit', found integer 69\n"+
			"    exit 69;\n"+
			"         ^~\n",
		r.Format(FromError(err)))

	w := Warning("unused", token.New(token.Ident, "x", 1, 5, 6), "'%s' is declared but never read", "x")
	assert.Equal(t,
		"prog.mz:1:5: warning: 'x' is declared but never read [-Wunused]\n"+
			"  let x = 1;\n"+
			"      ^\n",
		r.Format(w))
}

func TestReporterWithoutPosition(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("prog.mz", "exit(0);", &buf)

	r.ReportError(&Error{Kind: DialectError, Code: CodeDialectNotFound, Msg: "unknown dialect 'x'"})
	assert.Equal(t, "prog.mz: error: unknown dialect 'x'\n", buf.String())

	buf.Reset()
	r.ReportError(errors.New("permission denied"))
	assert.Equal(t, "prog.mz: error: permission denied\n", buf.String())

	buf.Reset()
	r.Report(Diagnostic{Level: LevelError, Line: 9, Col: 1, Message: "past the end"})
	assert.Equal(t, "prog.mz:9:1: error: past the end\n", buf.String(), "no excerpt for lines outside the source")
}

func TestReporterCRLF(t *testing.T) {
	r := NewReporter("w.mz", "exit(1)\r\n", nil)
	out := r.Format(Diagnostic{Level: LevelError, Line: 1, Col: 8, Len: 1, Message: "expected ';'"})
	assert.Equal(t, "w.mz:1:8: error: expected ';'\n  exit(1)\n         ^\n", out)
}

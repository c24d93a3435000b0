package dialect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

func requireDialectError(t *testing.T, err error, code diag.Code) {
	t.Helper()
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, diag.DialectError, de.Kind)
	assert.Equal(t, code, de.Code, de.Msg)
}

func TestBuiltinDialectsLoad(t *testing.T) {
	assert.Equal(t, []string{"default", "espanol", "italiano"}, Names())
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tbl, err := Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, tbl.Name)
			assert.NotEmpty(t, tbl.Description)

			// Every kind the grammar needs renders.
			for _, k := range token.Kinds() {
				switch k {
				case token.EOF, token.IntLit, token.Ident, token.StrLit:
					continue
				}
				_, err := tbl.Render(k)
				assert.NoError(t, err, "%s has no spelling for %s", name, k)
			}
		})
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("klingon")
	requireDialectError(t, err, diag.CodeDialectNotFound)
	assert.Contains(t, err.Error(), "available: default, espanol, italiano")
	assert.Panics(t, func() { MustLoad("klingon") })
}

func TestDefaultVocabulary(t *testing.T) {
	tbl := MustLoad(Default)

	k, ok := tbl.Lookup("exit")
	require.True(t, ok)
	assert.Equal(t, token.Exit, k)

	_, ok = tbl.Lookup("==")
	assert.False(t, ok, "composed operators are not entries")

	for kind, want := range map[token.Kind]string{
		token.LogicEq:    "==",
		token.LogicNotEq: "!=",
		token.LogicGe:    ">=",
		token.LogicLe:    "<=",
		token.LogicAnd:   "&&",
	} {
		got, err := tbl.Render(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	marker, ok := tbl.CommentMarker()
	require.True(t, ok)
	assert.Equal(t, '#', marker)

	assert.True(t, tbl.HasWordPrefix("wh"))
	assert.False(t, tbl.HasWordPrefix("x"))
	assert.True(t, tbl.HasSymbolPrefix("&"))
	assert.False(t, tbl.HasSymbolPrefix("&|"))
}

func TestSynonymsAndInverse(t *testing.T) {
	tbl := MustLoad("italiano")

	for _, word := range []string{"esci", "fine"} {
		k, ok := tbl.Lookup(word)
		require.True(t, ok, word)
		assert.Equal(t, token.Exit, k)
	}
	// Ties on length are broken lexicographically.
	s, ok := tbl.Spelling(token.Exit)
	require.True(t, ok)
	assert.Equal(t, "esci", s)

	s, _ = tbl.Spelling(token.Elif)
	assert.Equal(t, "altrimentise", s)
	assert.True(t, tbl.HasWordPrefix("altr"))
}

func TestEspanolCommentMarker(t *testing.T) {
	marker, ok := MustLoad("espanol").CommentMarker()
	require.True(t, ok)
	assert.Equal(t, '@', marker)
}

func TestNewShortestSpellingWins(t *testing.T) {
	tbl, err := New("t", map[string]token.Kind{"quit": token.Exit, "q": token.Exit, "qq": token.Exit})
	require.NoError(t, err)
	s, _ := tbl.Spelling(token.Exit)
	assert.Equal(t, "q", s)
	assert.Len(t, tbl.Entries(), 3)
}

func TestEntriesIsACopy(t *testing.T) {
	tbl := MustLoad(Default)
	e := tbl.Entries()
	delete(e, "exit")
	_, ok := tbl.Lookup("exit")
	assert.True(t, ok)
}

func TestRenderMissingMapping(t *testing.T) {
	tbl, err := New("tiny", map[string]token.Kind{"exit": token.Exit})
	require.NoError(t, err)

	_, err = tbl.Render(token.Semi)
	requireDialectError(t, err, diag.CodeMissingMapping)
	_, err = tbl.Render(token.LogicEq)
	requireDialectError(t, err, diag.CodeMissingMapping)

	_, ok := tbl.CommentMarker()
	assert.False(t, ok)
}

func TestNewRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]token.Kind
	}{
		{"empty spelling", map[string]token.Kind{"": token.Exit}},
		{"composed kind", map[string]token.Kind{"==": token.LogicEq}},
		{"literal kind", map[string]token.Kind{"num": token.IntLit}},
		{"mixed spelling", map[string]token.Kind{"a+": token.Plus}},
		{"spelling with space", map[string]token.Kind{"let it": token.Let}},
		{"long comment marker", map[string]token.Kind{"//": token.Comment}},
		{"word comment marker", map[string]token.Kind{"c": token.Comment}},
		{"word eq", map[string]token.Kind{"is": token.Eq}},
		{"shadows composed", map[string]token.Kind{"=": token.Eq, "==>": token.Plus}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("bad", tt.entries)
			requireDialectError(t, err, diag.CodeInvalidDialect)
		})
	}
}

func TestIsWord(t *testing.T) {
	for _, s := range []string{"exit", "_x", "x1", "però", "altrimentise"} {
		assert.True(t, IsWord(s), s)
	}
	for _, s := range []string{"", "1x", "a-b", ";", "&&"} {
		assert.False(t, IsWord(s), s)
	}
}

func TestParseFiles(t *testing.T) {
	yamlDoc := []byte(`
name: pirate
description: Arr.
entries:
  walk_the_plank: exit
  ahoy: let
  ";": semi
  "(": open_paren
  ")": close_paren
  "=": eq
`)
	jsonDoc := []byte(`{"description": "Arr.", "entries": {"walk_the_plank": "exit", "ahoy": "let", ";": "semi", "(": "open_paren", ")": "close_paren", "=": "eq"}}`)

	fromYAML, err := Parse("pirate.yaml", yamlDoc)
	require.NoError(t, err)
	assert.Equal(t, "pirate", fromYAML.Name)

	fromJSON, err := Parse("pirate.json", jsonDoc)
	require.NoError(t, err)
	assert.Equal(t, "pirate", fromJSON.Name, "name falls back to the file name")

	if diff := cmp.Diff(fromYAML.Entries(), fromJSON.Entries()); diff != "" {
		t.Errorf("yaml and json entries differ (-yaml +json):\n%s", diff)
	}

	_, err = Parse("pirate.toml", yamlDoc)
	requireDialectError(t, err, diag.CodeInvalidDialect)

	_, err = Parse("broken.yaml", []byte(`entries: {exit: no_such_kind}`))
	requireDialectError(t, err, diag.CodeInvalidDialect)

	_, err = Parse("broken.json", []byte(`{`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.yml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  bye: exit\n  \";\": semi\n"), 0o644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mini", tbl.Name)
	k, ok := tbl.Lookup("bye")
	require.True(t, ok)
	assert.Equal(t, token.Exit, k)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

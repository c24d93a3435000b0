// Package dialect holds the swappable surface vocabularies of the language.
// A Table maps keyword words and punctuation spellings to token kinds and
// back. Tables are immutable once built and are shared by reference.
package dialect

import (
	"fmt"
	"slices"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
	"github.com/mzlang/mzc/pkg/trie"
)

// StringTerminal delimits string literals in every dialect.
const StringTerminal = '"'

// Kinds whose spelling must be one character: the composed operators are
// built from them, and the comment marker is matched by the scanner.
var singleCharKinds = []token.Kind{token.Eq, token.Bang, token.LogicGt, token.LogicLt, token.Comment}

type Table struct {
	Name        string
	Description string
	forward     map[string]token.Kind
	inverse     map[token.Kind]string
	words       *trie.Trie
	symbols     *trie.Trie
}

// New validates entries (surface spelling -> kind) and builds a table.
func New(name string, entries map[string]token.Kind) (*Table, error) {
	t := &Table{
		Name:    name,
		forward: make(map[string]token.Kind, len(entries)),
		inverse: make(map[token.Kind]string),
		words:   trie.New(),
		symbols: trie.New(),
	}

	surfaces := make([]string, 0, len(entries))
	for s := range entries {
		surfaces = append(surfaces, s)
	}
	// Shortest spelling wins the inverse map, ties broken lexicographically.
	sort.Slice(surfaces, func(i, j int) bool {
		a, b := surfaces[i], surfaces[j]
		if utf8.RuneCountInString(a) != utf8.RuneCountInString(b) {
			return utf8.RuneCountInString(a) < utf8.RuneCountInString(b)
		}
		return a < b
	})

	for _, surface := range surfaces {
		kind := entries[surface]
		if err := t.checkEntry(surface, kind); err != nil {
			return nil, err
		}
		t.forward[surface] = kind
		if _, taken := t.inverse[kind]; !taken {
			t.inverse[kind] = surface
		}
		if IsWord(surface) {
			t.words.Insert(surface)
		} else {
			t.symbols.Insert(surface)
		}
	}

	for _, k := range singleCharKinds {
		for _, surface := range surfaces {
			if entries[surface] == k && utf8.RuneCountInString(surface) != 1 {
				return nil, invalid(name, "spelling %q of %s must be a single character", surface, k)
			}
		}
	}

	if err := t.checkComposed(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) checkEntry(surface string, kind token.Kind) error {
	switch {
	case surface == "":
		return invalid(t.Name, "empty spelling for %s", kind)
	case kind.IsComposed():
		return invalid(t.Name, "%s is composed from single-character spellings and cannot be mapped directly", kind)
	case kind == token.EOF || kind == token.IntLit || kind == token.Ident || kind == token.StrLit:
		return invalid(t.Name, "%s has no surface spelling", kind)
	}

	if IsWord(surface) {
		if slices.Contains(singleCharKinds, kind) {
			return invalid(t.Name, "spelling %q of %s must be a symbol", surface, kind)
		}
		return nil
	}
	for _, r := range surface {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) || r == StringTerminal {
			return invalid(t.Name, "spelling %q is neither a word nor a symbol", surface)
		}
	}
	return nil
}

// checkComposed rejects symbol spellings that would shadow a composed
// operator, since the lexer recognizes those by two-character lookahead.
func (t *Table) checkComposed() error {
	for _, k := range token.Kinds() {
		first, second, ok := k.Parts()
		if !ok {
			continue
		}
		a, okA := t.inverse[first]
		b, okB := t.inverse[second]
		if !okA || !okB {
			continue
		}
		if t.symbols.ContainsPrefix(a + b) {
			return invalid(t.Name, "a symbol spelling starts with %q, which is reserved for %s", a+b, k)
		}
	}
	return nil
}

func invalid(name, format string, args ...any) error {
	return &diag.Error{
		Kind: diag.DialectError, Code: diag.CodeInvalidDialect,
		Msg: fmt.Sprintf("dialect %q: %s", name, fmt.Sprintf(format, args...)),
	}
}

// IsWord reports whether s is shaped like an identifier.
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func (t *Table) Lookup(surface string) (token.Kind, bool) {
	k, ok := t.forward[surface]
	return k, ok
}

// Spelling returns the surface spelling used to render kind.
func (t *Table) Spelling(kind token.Kind) (string, bool) {
	s, ok := t.inverse[kind]
	return s, ok
}

// Render is Spelling plus synthesis of the composed operators.
func (t *Table) Render(kind token.Kind) (string, error) {
	if first, second, ok := kind.Parts(); ok {
		a, errA := t.Render(first)
		if errA != nil {
			return "", errA
		}
		b, errB := t.Render(second)
		if errB != nil {
			return "", errB
		}
		return a + b, nil
	}
	if s, ok := t.inverse[kind]; ok {
		return s, nil
	}
	return "", &diag.Error{
		Kind: diag.DialectError, Code: diag.CodeMissingMapping,
		Msg: fmt.Sprintf("dialect %q has no spelling for %s", t.Name, kind),
	}
}

func (t *Table) HasWordPrefix(prefix string) bool   { return t.words.ContainsPrefix(prefix) }
func (t *Table) HasSymbolPrefix(prefix string) bool { return t.symbols.ContainsPrefix(prefix) }

// SingleChar returns the one-rune spelling of kind, if it has one.
func (t *Table) SingleChar(kind token.Kind) (rune, bool) {
	s, ok := t.inverse[kind]
	if !ok || utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

// CommentMarker is the character that opens a comment, if the dialect has one.
func (t *Table) CommentMarker() (rune, bool) { return t.SingleChar(token.Comment) }

// Entries returns a copy of the forward map.
func (t *Table) Entries() map[string]token.Kind {
	out := make(map[string]token.Kind, len(t.forward))
	for k, v := range t.forward {
		out[k] = v
	}
	return out
}

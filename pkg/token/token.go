package token

import "fmt"

type Kind int

const (
	EOF Kind = iota
	Comment
	IntLit
	Ident
	StrLit
	Let
	Exit
	If
	Elif
	Else
	While
	Semi
	OpenParen
	CloseParen
	OpenCurly
	CloseCurly
	OpenBracket
	CloseBracket
	Comma
	Eq
	Bang
	Plus
	Minus
	Star
	Slash
	Percent
	LogicEq
	LogicNotEq
	LogicGt
	LogicGe
	LogicLt
	LogicLe
	LogicAnd
	LogicOr
	kindCount
)

// Names are the identifiers used by dialect resources.
var kindNames = [...]string{
	EOF:          "eof",
	Comment:      "comment",
	IntLit:       "int_lit",
	Ident:        "ident",
	StrLit:       "str_lit",
	Let:          "let",
	Exit:         "exit",
	If:           "if",
	Elif:         "elif",
	Else:         "else",
	While:        "while",
	Semi:         "semi",
	OpenParen:    "open_paren",
	CloseParen:   "close_paren",
	OpenCurly:    "open_curly",
	CloseCurly:   "close_curly",
	OpenBracket:  "open_bracket",
	CloseBracket: "close_bracket",
	Comma:        "comma",
	Eq:           "eq",
	Bang:         "bang",
	Plus:         "plus",
	Minus:        "minus",
	Star:         "star",
	Slash:        "slash",
	Percent:      "percent",
	LogicEq:      "logic_eq",
	LogicNotEq:   "logic_not_eq",
	LogicGt:      "logic_gt",
	LogicGe:      "logic_ge",
	LogicLt:      "logic_lt",
	LogicLe:      "logic_le",
	LogicAnd:     "logic_and",
	LogicOr:      "logic_or",
}

var kindByName = make(map[string]Kind, len(kindNames))

func init() {
	for k, name := range kindNames {
		kindByName[name] = Kind(k)
	}
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a dialect resource name such as "open_paren" to its Kind.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := EOF; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsLiteral reports whether tokens of this kind carry a payload that takes
// part in equality.
func (k Kind) IsLiteral() bool {
	return k == IntLit || k == Ident || k == StrLit || k == Comment
}

func (k Kind) IsKeyword() bool { return k >= Let && k <= While }

// IsComposed reports whether the kind is a two-character operator that no
// dialect spells directly.
func (k Kind) IsComposed() bool {
	return k == LogicEq || k == LogicNotEq || k == LogicGe || k == LogicLe
}

// Parts returns the two single-character kinds a composed operator is built from.
func (k Kind) Parts() (Kind, Kind, bool) {
	switch k {
	case LogicEq:
		return Eq, Eq, true
	case LogicNotEq:
		return Bang, Eq, true
	case LogicGe:
		return LogicGt, Eq, true
	case LogicLe:
		return LogicLt, Eq, true
	}
	return EOF, EOF, false
}

// Compose returns the composed operator whose first constituent is first.
// The second constituent is always Eq.
func Compose(first Kind) (Kind, bool) {
	switch first {
	case Eq:
		return LogicEq, true
	case Bang:
		return LogicNotEq, true
	case LogicGt:
		return LogicGe, true
	case LogicLt:
		return LogicLe, true
	}
	return EOF, false
}

// Precedence of binary operators, higher binds tighter. Non-operators are -1.
func Precedence(k Kind) int {
	switch k {
	case Star, Slash, Percent:
		return 5
	case Plus, Minus:
		return 4
	case LogicLt, LogicLe, LogicGt, LogicGe:
		return 3
	case LogicEq, LogicNotEq:
		return 2
	case LogicAnd:
		return 1
	case LogicOr:
		return 0
	default:
		return -1
	}
}

func IsBinaryOp(k Kind) bool { return Precedence(k) >= 0 }

type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Col    int
	EndCol int
	Prec   int
	Block  bool // block comment
}

func New(kind Kind, text string, line, col, endCol int) Token {
	return Token{Kind: kind, Text: text, Line: line, Col: col, EndCol: endCol, Prec: Precedence(kind)}
}

func (t Token) Pos() Pos { return Pos{Line: t.Line, Col: t.Col} }

// Len is the number of columns the token covers on its first line.
func (t Token) Len() int {
	if t.EndCol <= t.Col {
		return 1
	}
	return t.EndCol - t.Col
}

// Equal compares kind and, for literal kinds, the payload. Positions and
// surface spellings are ignored so streams from different dialects compare.
func (t Token) Equal(o Token) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind.IsLiteral() {
		return t.Text == o.Text && t.Block == o.Block
	}
	return true
}

// Describe is used in diagnostics: "identifier 'x'", "'('", "end of input".
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case IntLit:
		return fmt.Sprintf("integer %s", t.Text)
	case Ident:
		return fmt.Sprintf("identifier '%s'", t.Text)
	case StrLit:
		return fmt.Sprintf("string %q", t.Text)
	case Comment:
		return "comment"
	}
	if t.Text != "" {
		return fmt.Sprintf("'%s'", t.Text)
	}
	return t.Kind.String()
}

func (t Token) String() string {
	if t.Kind.IsLiteral() {
		return fmt.Sprintf("%s(%s)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
	}
	return fmt.Sprintf("%s@%d:%d", t.Kind, t.Line, t.Col)
}

// EqualKinds reports whether two streams have equal tokens, see Token.Equal.
func EqualKinds(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

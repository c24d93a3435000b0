// Package resolve checks name usage before code generation. It binds every
// identifier to a declaration in the scope stack the backends mirror,
// validates array sizes and builtin calls, and collects warnings.
package resolve

import (
	"sort"
	"strings"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

// ArgKind restricts what a builtin accepts.
type ArgKind int

const (
	ArgScalar ArgKind = iota
	ArgString
)

type Builtin struct {
	Name     string
	MinArgs  int
	MaxArgs  int // -1 for variadic
	Accepts  ArgKind
	Synopsis string
}

// Builtins are the calls the language provides. Both lower to the write
// system call.
var Builtins = map[string]Builtin{
	"putchar": {Name: "putchar", MinArgs: 1, MaxArgs: 1, Accepts: ArgScalar, Synopsis: "putchar(c): write the low byte of c to stdout"},
	"print":   {Name: "print", MinArgs: 1, MaxArgs: -1, Accepts: ArgString, Synopsis: "print(\"s\", ...): write each string to stdout"},
}

type Symbol struct {
	Name    string
	Tok     token.Token
	IsArray bool
	Size    int64
	Used    bool
}

type scope struct {
	symbols map[string]*Symbol
	order   []*Symbol
}

type resolver struct {
	cfg      *config.Config
	scopes   []*scope
	warnings []diag.Diagnostic
}

// Resolve walks prog and returns its warnings, sorted by position, or the
// first error.
func Resolve(prog *ast.Program, cfg *config.Config) ([]diag.Diagnostic, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	r := &resolver{cfg: cfg}
	r.push()
	if err := r.stmts(prog.Stmts); err != nil {
		return nil, err
	}
	r.pop()

	sort.SliceStable(r.warnings, func(i, j int) bool {
		a, b := r.warnings[i], r.warnings[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return r.warnings, nil
}

func (r *resolver) push() {
	r.scopes = append(r.scopes, &scope{symbols: make(map[string]*Symbol)})
}

func (r *resolver) pop() {
	top := r.scopes[len(r.scopes)-1]
	r.scopes = r.scopes[:len(r.scopes)-1]
	for _, sym := range top.order {
		if !sym.Used && !strings.HasPrefix(sym.Name, "_") {
			r.warn(config.WarnUnused, sym.Tok, "'%s' is declared but never read", sym.Name)
		}
	}
}

func (r *resolver) warn(w config.Warning, tok token.Token, format string, args ...any) {
	if r.cfg.IsWarningEnabled(w) {
		r.warnings = append(r.warnings, diag.Warning(r.cfg.WarningName(w), tok, format, args...))
	}
}

func (r *resolver) lookup(name string) *Symbol {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if sym, ok := r.scopes[i].symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (r *resolver) declare(sym *Symbol) error {
	top := r.scopes[len(r.scopes)-1]
	if prev, ok := top.symbols[sym.Name]; ok {
		return diag.AtToken(diag.CodegenError, diag.CodeRedeclared, sym.Tok,
			"'%s' is already declared in this scope (at %s)", sym.Name, prev.Tok.Pos())
	}
	if outer := r.lookup(sym.Name); outer != nil {
		r.warn(config.WarnShadow, sym.Tok, "'%s' shadows the declaration at %s", sym.Name, outer.Tok.Pos())
	}
	top.symbols[sym.Name] = sym
	top.order = append(top.order, sym)
	return nil
}

func (r *resolver) find(tok token.Token, name string) (*Symbol, error) {
	sym := r.lookup(name)
	if sym == nil {
		return nil, diag.AtToken(diag.CodegenError, diag.CodeUndeclaredIdentifier, tok, "undeclared identifier '%s'", name)
	}
	return sym, nil
}

func (r *resolver) scalar(tok token.Token, name string) (*Symbol, error) {
	sym, err := r.find(tok, name)
	if err != nil {
		return nil, err
	}
	if sym.IsArray {
		return nil, diag.AtToken(diag.CodegenError, diag.CodeNotAScalar, tok, "'%s' is an array and must be indexed", name)
	}
	return sym, nil
}

func (r *resolver) array(tok token.Token, name string) (*Symbol, error) {
	sym, err := r.find(tok, name)
	if err != nil {
		return nil, err
	}
	if !sym.IsArray {
		return nil, diag.AtToken(diag.CodegenError, diag.CodeNotAnArray, tok, "'%s' is not an array", name)
	}
	return sym, nil
}

func (r *resolver) stmts(stmts []*ast.Stmt) error {
	exited := false
	for _, s := range stmts {
		if exited {
			r.warn(config.WarnUnreachable, s.Tok, "statement is unreachable after exit")
			exited = false
		}
		if err := r.stmt(s); err != nil {
			return err
		}
		if s.Kind == ast.Exit {
			exited = true
		}
	}
	return nil
}

func (r *resolver) stmt(s *ast.Stmt) error {
	switch d := s.Data.(type) {
	case ast.LetNode:
		if err := r.expr(d.Value); err != nil {
			return err
		}
		return r.declare(&Symbol{Name: d.Name, Tok: s.Tok})

	case ast.AssignNode:
		if _, err := r.scalar(s.Tok, d.Name); err != nil {
			return err
		}
		return r.expr(d.Value)

	case ast.ExitNode:
		if err := r.expr(d.Value); err != nil {
			return err
		}
		if v, ok := ast.ConstValue(d.Value); ok && (v < 0 || v > 255) {
			r.warn(config.WarnExitRange, d.Value.Tok, "exit status %d is outside 0..255 and will be truncated to %d", v, uint8(v))
		}
		return nil

	case ast.ScopeNode:
		r.push()
		if err := r.stmts(d.Stmts); err != nil {
			return err
		}
		r.pop()
		return nil

	case ast.IfNode:
		if err := r.expr(d.Cond); err != nil {
			return err
		}
		if err := r.stmt(d.Then); err != nil {
			return err
		}
		for _, elif := range d.Elifs {
			if err := r.expr(elif.Cond); err != nil {
				return err
			}
			if err := r.stmt(elif.Body); err != nil {
				return err
			}
		}
		if d.Else != nil {
			return r.stmt(d.Else)
		}
		return nil

	case ast.WhileNode:
		if err := r.expr(d.Cond); err != nil {
			return err
		}
		return r.stmt(d.Body)

	case ast.ArrayDeclNode:
		size, ok := ast.ConstValue(d.Size)
		if !ok {
			return diag.AtToken(diag.CodegenError, diag.CodeInvalidArraySize, d.Size.Tok, "size of array '%s' must be a constant expression", d.Name)
		}
		if size <= 0 {
			return diag.AtToken(diag.CodegenError, diag.CodeInvalidArraySize, d.Size.Tok, "size of array '%s' must be positive, got %d", d.Name, size)
		}
		return r.declare(&Symbol{Name: d.Name, Tok: s.Tok, IsArray: true, Size: size})

	case ast.ArrayAssignNode:
		sym, err := r.array(s.Tok, d.Name)
		if err != nil {
			return err
		}
		if err := r.index(sym, d.Index); err != nil {
			return err
		}
		return r.expr(d.Value)

	case ast.ArrayReadNode:
		sym, err := r.array(s.Tok, d.Name)
		if err != nil {
			return err
		}
		sym.Used = true
		return r.index(sym, d.Index)

	case ast.BuiltinCallNode:
		return r.call(s.Tok, d)
	}
	return nil
}

func (r *resolver) index(sym *Symbol, idx *ast.Expr) error {
	if err := r.expr(idx); err != nil {
		return err
	}
	if v, ok := ast.ConstValue(idx); ok && (v < 0 || v >= sym.Size) {
		r.warn(config.WarnExtra, idx.Tok, "index %d is out of bounds for '%s' of size %d", v, sym.Name, sym.Size)
	}
	return nil
}

func (r *resolver) call(tok token.Token, d ast.BuiltinCallNode) error {
	b, ok := Builtins[d.Name]
	if !ok {
		return diag.AtToken(diag.CodegenError, diag.CodeUnknownBuiltin, tok, "unknown builtin '%s'", d.Name)
	}
	n := len(d.Args)
	if n < b.MinArgs || (b.MaxArgs >= 0 && n > b.MaxArgs) {
		want := "at least 1"
		if b.MaxArgs == b.MinArgs {
			want = "exactly 1"
		}
		return diag.AtToken(diag.CodegenError, diag.CodeBadArity, tok, "'%s' takes %s argument(s), got %d", d.Name, want, n)
	}
	for _, arg := range d.Args {
		isString := arg.Kind == ast.StrLit
		switch {
		case b.Accepts == ArgString && !isString:
			return diag.AtToken(diag.CodegenError, diag.CodeBadArgument, arg.Tok, "'%s' only accepts string literals", d.Name)
		case b.Accepts == ArgScalar && isString:
			return diag.AtToken(diag.CodegenError, diag.CodeBadArgument, arg.Tok, "'%s' does not accept string literals", d.Name)
		}
		if !isString {
			if err := r.expr(arg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) expr(e *ast.Expr) error {
	switch d := e.Data.(type) {
	case ast.IdentNode:
		sym, err := r.scalar(e.Tok, d.Name)
		if err != nil {
			return err
		}
		sym.Used = true
	case ast.BinaryNode:
		if err := r.expr(d.Left); err != nil {
			return err
		}
		return r.expr(d.Right)
	case ast.ParenNode:
		return r.expr(d.Inner)
	case ast.ArrayReadNode:
		sym, err := r.array(e.Tok, d.Name)
		if err != nil {
			return err
		}
		sym.Used = true
		return r.index(sym, d.Index)
	case ast.StrLitNode:
		return diag.AtToken(diag.CodegenError, diag.CodeBadArgument, e.Tok, "string literals are only allowed as builtin arguments")
	}
	return nil
}

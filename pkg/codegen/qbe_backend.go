package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

type qbeVar struct {
	addr    string
	isArray bool
	size    int64
}

// qbeBackend lowers the program to QBE IL in a single $main. Every
// variable is a stack slot; QBE turns the loads and stores into registers.
type qbeBackend struct {
	allocs     strings.Builder
	body       strings.Builder
	data       strings.Builder
	strs       map[string]string
	scopes     []map[string]qbeVar
	tempCount  int
	slotCount  int
	labelCount int
	needByte   bool
}

// GenerateIR returns the QBE IL for prog.
func (b *qbeBackend) GenerateIR(prog *ast.Program, cfg *config.Config) (string, error) {
	*b = qbeBackend{strs: make(map[string]string)}

	b.scopes = append(b.scopes, make(map[string]qbeVar))
	for _, s := range prog.Stmts {
		if err := b.genStmt(s); err != nil {
			return "", err
		}
	}

	var out strings.Builder
	out.WriteString("export function w $main() {\n@start\n")
	if b.needByte {
		out.WriteString("\t%byte =l alloc8 8\n")
	}
	out.WriteString(b.allocs.String())
	out.WriteString(b.body.String())
	out.WriteString("\tret 0\n}\n")
	if b.data.Len() > 0 {
		out.WriteString("\n")
		out.WriteString(b.data.String())
	}
	return out.String(), nil
}

func (b *qbeBackend) emit(format string, args ...any) {
	b.body.WriteByte('\t')
	fmt.Fprintf(&b.body, format, args...)
	b.body.WriteByte('\n')
}

func (b *qbeBackend) newTemp() string {
	b.tempCount++
	return fmt.Sprintf("%%t%d", b.tempCount)
}

func (b *qbeBackend) newLabel() string {
	b.labelCount++
	return fmt.Sprintf("@L%d", b.labelCount)
}

func (b *qbeBackend) label(l string) { b.body.WriteString(l + "\n") }

// alloc reserves a static slot in the start block.
func (b *qbeBackend) alloc(name string, bytes int64) string {
	b.slotCount++
	addr := fmt.Sprintf("%%v%d_%s", b.slotCount, name)
	fmt.Fprintf(&b.allocs, "\t%s =l alloc8 %d\n", addr, bytes)
	return addr
}

func (b *qbeBackend) lookup(tok token.Token, name string) (qbeVar, error) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v, nil
		}
	}
	return qbeVar{}, diag.AtToken(diag.CodegenError, diag.CodeUndeclaredIdentifier, tok, "undeclared identifier '%s'", name)
}

func (b *qbeBackend) bind(name string, v qbeVar) { b.scopes[len(b.scopes)-1][name] = v }

func (b *qbeBackend) genStmt(s *ast.Stmt) error {
	switch d := s.Data.(type) {
	case ast.LetNode:
		val, err := b.genExpr(d.Value)
		if err != nil {
			return err
		}
		addr := b.alloc(d.Name, slotSize)
		b.emit("storel %s, %s", val, addr)
		b.bind(d.Name, qbeVar{addr: addr})

	case ast.AssignNode:
		v, err := b.lookup(s.Tok, d.Name)
		if err != nil {
			return err
		}
		val, err := b.genExpr(d.Value)
		if err != nil {
			return err
		}
		b.emit("storel %s, %s", val, v.addr)

	case ast.ExitNode:
		val, err := b.genExpr(d.Value)
		if err != nil {
			return err
		}
		b.emit("call $exit(w %s)", val)
		b.emit("hlt")
		b.label(b.newLabel())

	case ast.ScopeNode:
		b.scopes = append(b.scopes, make(map[string]qbeVar))
		for _, inner := range d.Stmts {
			if err := b.genStmt(inner); err != nil {
				return err
			}
		}
		b.scopes = b.scopes[:len(b.scopes)-1]

	case ast.IfNode:
		end := b.newLabel()
		clauses := append([]ast.ElifClause{{Cond: d.Cond, Body: d.Then}}, d.Elifs...)
		for _, c := range clauses {
			cond, err := b.genCond(c.Cond)
			if err != nil {
				return err
			}
			then, next := b.newLabel(), b.newLabel()
			b.emit("jnz %s, %s, %s", cond, then, next)
			b.label(then)
			if err := b.genStmt(c.Body); err != nil {
				return err
			}
			b.emit("jmp %s", end)
			b.label(next)
		}
		if d.Else != nil {
			if err := b.genStmt(d.Else); err != nil {
				return err
			}
		}
		b.label(end)

	case ast.WhileNode:
		condLabel, body, end := b.newLabel(), b.newLabel(), b.newLabel()
		b.label(condLabel)
		cond, err := b.genCond(d.Cond)
		if err != nil {
			return err
		}
		b.emit("jnz %s, %s, %s", cond, body, end)
		b.label(body)
		if err := b.genStmt(d.Body); err != nil {
			return err
		}
		b.emit("jmp %s", condLabel)
		b.label(end)

	case ast.ArrayDeclNode:
		size, ok := ast.ConstValue(d.Size)
		if !ok || size <= 0 {
			return diag.AtToken(diag.CodegenError, diag.CodeInvalidArraySize, d.Size.Tok, "invalid size for array '%s'", d.Name)
		}
		addr := b.alloc(d.Name, size*slotSize)
		b.emit("call $memset(l %s, w 0, l %d)", addr, size*slotSize)
		b.bind(d.Name, qbeVar{addr: addr, isArray: true, size: size})

	case ast.ArrayAssignNode:
		v, err := b.lookupArray(s.Tok, d.Name)
		if err != nil {
			return err
		}
		ptr, err := b.elementAddress(v, d.Index)
		if err != nil {
			return err
		}
		val, err := b.genExpr(d.Value)
		if err != nil {
			return err
		}
		b.emit("storel %s, %s", val, ptr)

	case ast.ArrayReadNode:
		v, err := b.lookupArray(s.Tok, d.Name)
		if err != nil {
			return err
		}
		if _, err := b.elementAddress(v, d.Index); err != nil {
			return err
		}

	case ast.BuiltinCallNode:
		return b.genBuiltin(s.Tok, d)

	default:
		return diag.AtToken(diag.CodegenError, diag.CodeUnexpectedToken, s.Tok, "cannot generate code for %s", s.Kind)
	}
	return nil
}

// genCond reduces e to a word that is non-zero exactly when e is, since
// jnz only inspects the low 32 bits.
func (b *qbeBackend) genCond(e *ast.Expr) (string, error) {
	val, err := b.genExpr(e)
	if err != nil {
		return "", err
	}
	t := b.newTemp()
	b.emit("%s =w cnel %s, 0", t, val)
	return t, nil
}

func (b *qbeBackend) lookupArray(tok token.Token, name string) (qbeVar, error) {
	v, err := b.lookup(tok, name)
	if err != nil {
		return v, err
	}
	if !v.isArray {
		return v, diag.AtToken(diag.CodegenError, diag.CodeNotAnArray, tok, "'%s' is not an array", name)
	}
	return v, nil
}

func (b *qbeBackend) elementAddress(v qbeVar, index *ast.Expr) (string, error) {
	idx, err := b.genExpr(index)
	if err != nil {
		return "", err
	}
	off, ptr := b.newTemp(), b.newTemp()
	b.emit("%s =l mul %s, %d", off, idx, slotSize)
	b.emit("%s =l add %s, %s", ptr, v.addr, off)
	return ptr, nil
}

func (b *qbeBackend) genBuiltin(tok token.Token, d ast.BuiltinCallNode) error {
	switch d.Name {
	case "putchar":
		if len(d.Args) != 1 {
			return diag.AtToken(diag.CodegenError, diag.CodeBadArity, tok, "'putchar' takes exactly 1 argument")
		}
		val, err := b.genExpr(d.Args[0])
		if err != nil {
			return err
		}
		b.needByte = true
		b.emit("storeb %s, %%byte", val)
		b.emit("call $write(w 1, l %%byte, l 1)")
	case "print":
		for _, arg := range d.Args {
			if arg.Kind != ast.StrLit {
				return diag.AtToken(diag.CodegenError, diag.CodeBadArgument, arg.Tok, "'print' only accepts string literals")
			}
			s := arg.Data.(ast.StrLitNode).Value
			if s == "" {
				continue
			}
			b.emit("call $write(w 1, l %s, l %d)", b.stringData(s), len(s))
		}
	default:
		return diag.AtToken(diag.CodegenError, diag.CodeUnknownBuiltin, tok, "unknown builtin '%s'", d.Name)
	}
	return nil
}

func (b *qbeBackend) stringData(s string) string {
	if l, ok := b.strs[s]; ok {
		return l
	}
	l := fmt.Sprintf("$str%d", len(b.strs))
	b.strs[s] = l
	items := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		items = append(items, "b "+strconv.Itoa(int(s[i])))
	}
	fmt.Fprintf(&b.data, "data %s = { %s }\n", l, strings.Join(items, ", "))
	return l
}

var qbeOps = map[ast.BinOp]string{
	ast.Add:   "add",
	ast.Sub:   "sub",
	ast.Mul:   "mul",
	ast.Div:   "div",
	ast.Mod:   "rem",
	ast.Eq:    "ceql",
	ast.NotEq: "cnel",
	ast.Lt:    "csltl",
	ast.Le:    "cslel",
	ast.Gt:    "csgtl",
	ast.Ge:    "csgel",
}

func (b *qbeBackend) genExpr(e *ast.Expr) (string, error) {
	switch d := e.Data.(type) {
	case ast.IntLitNode:
		t := b.newTemp()
		b.emit("%s =l copy %d", t, d.Value)
		return t, nil

	case ast.IdentNode:
		v, err := b.lookup(e.Tok, d.Name)
		if err != nil {
			return "", err
		}
		if v.isArray {
			return "", diag.AtToken(diag.CodegenError, diag.CodeNotAScalar, e.Tok, "'%s' is an array and must be indexed", d.Name)
		}
		t := b.newTemp()
		b.emit("%s =l loadl %s", t, v.addr)
		return t, nil

	case ast.ParenNode:
		return b.genExpr(d.Inner)

	case ast.ArrayReadNode:
		v, err := b.lookupArray(e.Tok, d.Name)
		if err != nil {
			return "", err
		}
		ptr, err := b.elementAddress(v, d.Index)
		if err != nil {
			return "", err
		}
		t := b.newTemp()
		b.emit("%s =l loadl %s", t, ptr)
		return t, nil

	case ast.BinaryNode:
		l, err := b.genExpr(d.Left)
		if err != nil {
			return "", err
		}
		r, err := b.genExpr(d.Right)
		if err != nil {
			return "", err
		}
		t := b.newTemp()
		if d.Op == ast.And || d.Op == ast.Or {
			lb, rb := b.newTemp(), b.newTemp()
			b.emit("%s =l cnel %s, 0", lb, l)
			b.emit("%s =l cnel %s, 0", rb, r)
			instr := "and"
			if d.Op == ast.Or {
				instr = "or"
			}
			b.emit("%s =l %s %s, %s", t, instr, lb, rb)
			return t, nil
		}
		b.emit("%s =l %s %s, %s", t, qbeOps[d.Op], l, r)
		return t, nil
	}
	return "", diag.AtToken(diag.CodegenError, diag.CodeUnexpectedToken, e.Tok, "cannot generate code for %s", e.Kind)
}

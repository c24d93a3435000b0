package codegen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

const (
	sysWrite = 1
	sysExit  = 60
	slotSize = 8
)

// unrollLimit is the largest array zeroed with straight-line pushes.
const unrollLimit = 8

// variable is a binding to an evaluation-stack slot. Slot numbers count
// pushes from the bottom of the stack; an array's base is its element 0.
type variable struct {
	slot    int
	isArray bool
	size    int64
}

type frame struct {
	vars       map[string]variable
	startDepth int
}

// nasmBackend emits x86-64 NASM for Linux using a stack-machine
// discipline: every expression leaves its value pushed on the stack.
type nasmBackend struct {
	out        strings.Builder
	data       strings.Builder
	strings    map[string]string
	frames     []frame
	depth      int
	labelCount int
	cfg        *config.Config
}

func (b *nasmBackend) Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error) {
	*b = nasmBackend{strings: make(map[string]string), cfg: cfg}

	b.out.WriteString("global _start\n")
	b.out.WriteString("section .text\n")
	b.out.WriteString("_start:\n")

	b.enterScope()
	for _, s := range prog.Stmts {
		if err := b.genStmt(s); err != nil {
			return nil, err
		}
	}
	b.exitScope()

	b.comment("implicit exit(0)")
	b.emit("mov rax, %d", sysExit)
	b.emit("mov rdi, 0")
	b.emit("syscall")

	var buf bytes.Buffer
	buf.WriteString(b.out.String())
	if b.data.Len() > 0 {
		buf.WriteString("section .data\n")
		buf.WriteString(b.data.String())
	}
	return &buf, nil
}

func (b *nasmBackend) emit(format string, args ...any) {
	b.out.WriteString("    ")
	fmt.Fprintf(&b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *nasmBackend) comment(text string) { b.out.WriteString("    ; " + text + "\n") }

func (b *nasmBackend) label(name string) { b.out.WriteString(name + ":\n") }

func (b *nasmBackend) newLabel() string {
	l := fmt.Sprintf("L%d", b.labelCount)
	b.labelCount++
	return l
}

func (b *nasmBackend) push(operand string) {
	b.emit("push %s", operand)
	b.depth++
}

func (b *nasmBackend) pop(reg string) {
	b.emit("pop %s", reg)
	b.depth--
}

// offset is recomputed on every access because depth changes as values
// are pushed and popped around it.
func (b *nasmBackend) offset(slot int) int { return (b.depth - slot - 1) * slotSize }

func (b *nasmBackend) enterScope() {
	b.frames = append(b.frames, frame{vars: make(map[string]variable), startDepth: b.depth})
}

func (b *nasmBackend) exitScope() {
	top := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	if n := b.depth - top.startDepth; n > 0 {
		b.emit("add rsp, %d", n*slotSize)
	}
	b.depth = top.startDepth
}

func (b *nasmBackend) bind(name string, v variable) {
	b.frames[len(b.frames)-1].vars[name] = v
}

func (b *nasmBackend) lookup(tok token.Token, name string) (variable, error) {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if v, ok := b.frames[i].vars[name]; ok {
			return v, nil
		}
	}
	return variable{}, diag.AtToken(diag.CodegenError, diag.CodeUndeclaredIdentifier, tok, "undeclared identifier '%s'", name)
}

func (b *nasmBackend) genStmt(s *ast.Stmt) error {
	b.comment(fmt.Sprintf("%s %s", s.Tok.Pos(), s.Kind))

	switch d := s.Data.(type) {
	case ast.LetNode:
		if err := b.genExpr(d.Value); err != nil {
			return err
		}
		b.bind(d.Name, variable{slot: b.depth - 1})

	case ast.AssignNode:
		v, err := b.lookup(s.Tok, d.Name)
		if err != nil {
			return err
		}
		if err := b.genExpr(d.Value); err != nil {
			return err
		}
		b.pop("rax")
		b.emit("mov [rsp + %d], rax", b.offset(v.slot))

	case ast.ExitNode:
		if err := b.genExpr(d.Value); err != nil {
			return err
		}
		b.emit("mov rax, %d", sysExit)
		b.pop("rdi")
		b.emit("syscall")

	case ast.ScopeNode:
		b.enterScope()
		for _, inner := range d.Stmts {
			if err := b.genStmt(inner); err != nil {
				return err
			}
		}
		b.exitScope()

	case ast.IfNode:
		return b.genIf(d)

	case ast.WhileNode:
		bodyLabel, condLabel := b.newLabel(), b.newLabel()
		b.emit("jmp %s", condLabel)
		b.label(bodyLabel)
		if err := b.genStmt(d.Body); err != nil {
			return err
		}
		b.label(condLabel)
		if err := b.genCond(d.Cond); err != nil {
			return err
		}
		b.emit("jnz %s", bodyLabel)

	case ast.ArrayDeclNode:
		size, ok := ast.ConstValue(d.Size)
		if !ok || size <= 0 {
			return diag.AtToken(diag.CodegenError, diag.CodeInvalidArraySize, d.Size.Tok, "invalid size for array '%s'", d.Name)
		}
		base := b.depth
		b.zeroSlots(size)
		b.bind(d.Name, variable{slot: base, isArray: true, size: size})

	case ast.ArrayAssignNode:
		v, err := b.lookupArray(s.Tok, d.Name)
		if err != nil {
			return err
		}
		if err := b.genExpr(d.Index); err != nil {
			return err
		}
		if err := b.genExpr(d.Value); err != nil {
			return err
		}
		b.pop("rcx")
		b.pop("rax")
		b.elementAddress(v)
		b.emit("mov [rbx], rcx")

	case ast.ArrayReadNode:
		v, err := b.lookupArray(s.Tok, d.Name)
		if err != nil {
			return err
		}
		if err := b.genArrayRead(v, d.Index); err != nil {
			return err
		}
		b.emit("add rsp, %d", slotSize)
		b.depth--

	case ast.BuiltinCallNode:
		return b.genBuiltin(s.Tok, d)

	default:
		return diag.AtToken(diag.CodegenError, diag.CodeUnexpectedToken, s.Tok, "cannot generate code for %s", s.Kind)
	}
	return nil
}

func (b *nasmBackend) genIf(d ast.IfNode) error {
	endLabel := b.newLabel()
	hasMore := len(d.Elifs) > 0 || d.Else != nil

	nextLabel := b.newLabel()
	if err := b.genCond(d.Cond); err != nil {
		return err
	}
	b.emit("jz %s", nextLabel)
	if err := b.genStmt(d.Then); err != nil {
		return err
	}
	if hasMore {
		b.emit("jmp %s", endLabel)
	}
	b.label(nextLabel)

	for i, elif := range d.Elifs {
		nextLabel = b.newLabel()
		if err := b.genCond(elif.Cond); err != nil {
			return err
		}
		b.emit("jz %s", nextLabel)
		if err := b.genStmt(elif.Body); err != nil {
			return err
		}
		if i < len(d.Elifs)-1 || d.Else != nil {
			b.emit("jmp %s", endLabel)
		}
		b.label(nextLabel)
	}

	if d.Else != nil {
		if err := b.genStmt(d.Else); err != nil {
			return err
		}
	}
	b.label(endLabel)
	return nil
}

// genCond evaluates e and leaves the flags set for jz/jnz on its value.
func (b *nasmBackend) genCond(e *ast.Expr) error {
	if err := b.genExpr(e); err != nil {
		return err
	}
	b.pop("rax")
	b.emit("test rax, rax")
	return nil
}

func (b *nasmBackend) zeroSlots(n int64) {
	if n <= unrollLimit {
		for i := int64(0); i < n; i++ {
			b.emit("push QWORD 0")
		}
	} else {
		loop := b.newLabel()
		b.emit("mov rcx, %d", n)
		b.label(loop)
		b.emit("push QWORD 0")
		b.emit("dec rcx")
		b.emit("jnz %s", loop)
	}
	b.depth += int(n)
}

func (b *nasmBackend) lookupArray(tok token.Token, name string) (variable, error) {
	v, err := b.lookup(tok, name)
	if err != nil {
		return v, err
	}
	if !v.isArray {
		return v, diag.AtToken(diag.CodegenError, diag.CodeNotAnArray, tok, "'%s' is not an array", name)
	}
	return v, nil
}

// elementAddress loads the address of v[rax] into rbx. Element i lives
// 8*i bytes below element 0.
func (b *nasmBackend) elementAddress(v variable) {
	b.emit("lea rbx, [rsp + %d]", b.offset(v.slot))
	b.emit("shl rax, 3")
	b.emit("sub rbx, rax")
}

func (b *nasmBackend) genArrayRead(v variable, index *ast.Expr) error {
	if err := b.genExpr(index); err != nil {
		return err
	}
	b.pop("rax")
	b.elementAddress(v)
	b.push("QWORD [rbx]")
	return nil
}

func (b *nasmBackend) genBuiltin(tok token.Token, d ast.BuiltinCallNode) error {
	switch d.Name {
	case "putchar":
		if len(d.Args) != 1 {
			return diag.AtToken(diag.CodegenError, diag.CodeBadArity, tok, "'putchar' takes exactly 1 argument")
		}
		if err := b.genExpr(d.Args[0]); err != nil {
			return err
		}
		b.writeSyscall("rsp", 1)
		b.emit("add rsp, %d", slotSize)
		b.depth--
	case "print":
		for _, arg := range d.Args {
			if arg.Kind != ast.StrLit {
				return diag.AtToken(diag.CodegenError, diag.CodeBadArgument, arg.Tok, "'print' only accepts string literals")
			}
			s := arg.Data.(ast.StrLitNode).Value
			if s == "" {
				continue
			}
			b.writeSyscall(b.stringLabel(s), len(s))
		}
	default:
		return diag.AtToken(diag.CodegenError, diag.CodeUnknownBuiltin, tok, "unknown builtin '%s'", d.Name)
	}
	return nil
}

func (b *nasmBackend) writeSyscall(addr string, n int) {
	b.emit("mov rax, %d", sysWrite)
	b.emit("mov rdi, 1")
	b.emit("mov rsi, %s", addr)
	b.emit("mov rdx, %d", n)
	b.emit("syscall")
}

// stringLabel interns s in the data section.
func (b *nasmBackend) stringLabel(s string) string {
	if l, ok := b.strings[s]; ok {
		return l
	}
	l := fmt.Sprintf("str%d", len(b.strings))
	b.strings[s] = l
	bytesList := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		bytesList = append(bytesList, strconv.Itoa(int(s[i])))
	}
	fmt.Fprintf(&b.data, "%s: db %s\n", l, strings.Join(bytesList, ", "))
	return l
}

func (b *nasmBackend) genExpr(e *ast.Expr) error {
	switch d := e.Data.(type) {
	case ast.IntLitNode:
		b.emit("mov rax, %d", d.Value)
		b.push("rax")

	case ast.IdentNode:
		v, err := b.lookup(e.Tok, d.Name)
		if err != nil {
			return err
		}
		if v.isArray {
			return diag.AtToken(diag.CodegenError, diag.CodeNotAScalar, e.Tok, "'%s' is an array and must be indexed", d.Name)
		}
		b.push(fmt.Sprintf("QWORD [rsp + %d]", b.offset(v.slot)))

	case ast.ParenNode:
		return b.genExpr(d.Inner)

	case ast.ArrayReadNode:
		v, err := b.lookupArray(e.Tok, d.Name)
		if err != nil {
			return err
		}
		return b.genArrayRead(v, d.Index)

	case ast.BinaryNode:
		if err := b.genExpr(d.Left); err != nil {
			return err
		}
		if err := b.genExpr(d.Right); err != nil {
			return err
		}
		b.pop("rbx")
		b.pop("rax")
		b.genBinOp(d.Op)
		b.push("rax")

	default:
		return diag.AtToken(diag.CodegenError, diag.CodeUnexpectedToken, e.Tok, "cannot generate code for %s", e.Kind)
	}
	return nil
}

// genBinOp computes rax = rax op rbx.
func (b *nasmBackend) genBinOp(op ast.BinOp) {
	switch op {
	case ast.Add:
		b.emit("add rax, rbx")
	case ast.Sub:
		b.emit("sub rax, rbx")
	case ast.Mul:
		b.emit("imul rax, rbx")
	case ast.Div:
		b.emit("cqo")
		b.emit("idiv rbx")
	case ast.Mod:
		b.emit("cqo")
		b.emit("idiv rbx")
		b.emit("mov rax, rdx")
	case ast.And, ast.Or:
		instr := "and"
		if op == ast.Or {
			instr = "or"
		}
		b.emit("test rax, rax")
		b.emit("setne al")
		b.emit("test rbx, rbx")
		b.emit("setne bl")
		b.emit("%s al, bl", instr)
		b.emit("movzx rax, al")
	default:
		b.emit("cmp rax, rbx")
		b.emit("%s al", setcc[op])
		b.emit("movzx rax, al")
	}
}

var setcc = map[ast.BinOp]string{
	ast.Eq:    "sete",
	ast.NotEq: "setne",
	ast.Lt:    "setl",
	ast.Le:    "setle",
	ast.Gt:    "setg",
	ast.Ge:    "setge",
}

package codegen

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.ParseSource(src, dialect.MustLoad(dialect.Default), config.NewConfig())
	require.NoError(t, err)
	return prog
}

func nasm(t *testing.T, src string) string {
	t.Helper()
	buf, err := (&nasmBackend{}).Generate(mustParse(t, src), config.NewConfig())
	require.NoError(t, err)
	return buf.String()
}

func qbeIR(t *testing.T, src string) string {
	t.Helper()
	ir, err := (&qbeBackend{}).GenerateIR(mustParse(t, src), config.NewConfig())
	require.NoError(t, err)
	return ir
}

// instructions drops comments, labels and indentation.
func instructions(asm string) []string {
	var out []string
	for _, line := range strings.Split(asm, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func TestNewBackend(t *testing.T) {
	assert.Equal(t, []string{"nasm", "qbe"}, BackendNames())
	for _, name := range BackendNames() {
		b, err := NewBackend(name)
		require.NoError(t, err)
		assert.NotNil(t, b)
	}
	_, err := NewBackend("llvm")
	assert.ErrorContains(t, err, "unsupported backend 'llvm'")
}

func TestNasmExitLiteral(t *testing.T) {
	asm := nasm(t, "exit(69);")
	assert.True(t, strings.HasPrefix(asm, "global _start\nsection .text\n_start:\n"))
	assert.Equal(t, []string{
		"global _start",
		"section .text",
		"mov rax, 69",
		"push rax",
		"mov rax, 60",
		"pop rdi",
		"syscall",
		"mov rax, 60",
		"mov rdi, 0",
		"syscall",
	}, instructions(asm))
	assert.NotContains(t, asm, "section .data")
}

func TestNasmVariablesUseStackOffsets(t *testing.T) {
	asm := nasm(t, "let x = 1; let y = 2; exit(x);")
	ins := instructions(asm)
	// x is one slot below the top once y is pushed.
	assert.Contains(t, ins, "push QWORD [rsp + 8]")
	assert.Contains(t, asm, "add rsp, 16")
}

func TestNasmScopesReleaseSlots(t *testing.T) {
	asm := nasm(t, "let x = 1; { let y = 2; let z = 3; x = z; } exit(x);")
	assert.Contains(t, asm, "mov [rsp + 16], rax", "assignment to x from inside the scope")
	assert.Contains(t, asm, "add rsp, 16", "the inner scope releases y and z")
	assert.Contains(t, asm, "push QWORD [rsp + 0]", "x is back on top after the scope")
}

func TestNasmBinaryOperators(t *testing.T) {
	tests := []struct {
		op   string
		want []string
	}{
		{"+", []string{"add rax, rbx"}},
		{"-", []string{"sub rax, rbx"}},
		{"*", []string{"imul rax, rbx"}},
		{"/", []string{"cqo", "idiv rbx"}},
		{"%", []string{"cqo", "idiv rbx", "mov rax, rdx"}},
		{"==", []string{"cmp rax, rbx", "sete al", "movzx rax, al"}},
		{"!=", []string{"setne al"}},
		{"<", []string{"setl al"}},
		{"<=", []string{"setle al"}},
		{">", []string{"setg al"}},
		{">=", []string{"setge al"}},
		{"&&", []string{"test rbx, rbx", "and al, bl"}},
		{"||", []string{"or al, bl"}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			asm := nasm(t, "let a = 7; let b = 2; exit(a "+tt.op+" b);")
			ins := instructions(asm)
			assert.Contains(t, ins, "pop rbx")
			for _, want := range tt.want {
				assert.Contains(t, ins, want)
			}
		})
	}
}

func TestNasmControlFlow(t *testing.T) {
	asm := nasm(t, "let x = 1; if (x) { exit(1); } elif (x - 1) { exit(2); } else { exit(3); }")
	assert.Equal(t, 2, strings.Count(asm, "jz "))
	assert.Equal(t, 2, strings.Count(asm, "jmp L0"))
	assert.Contains(t, asm, "\nL0:\n")

	loop := nasm(t, "let i = 0; while (i < 3) { i = i + 1; } exit(i);")
	assert.Contains(t, loop, "jmp L1")
	assert.Contains(t, loop, "jnz L0")
	assert.Contains(t, loop, "test rax, rax")
}

func TestNasmArrays(t *testing.T) {
	small := nasm(t, "let a[3]; a[2] = 9; exit(a[2]);")
	assert.Equal(t, 3, strings.Count(small, "push QWORD 0"))
	assert.Contains(t, small, "shl rax, 3")
	assert.Contains(t, small, "sub rbx, rax")
	assert.Contains(t, small, "mov [rbx], rcx")
	assert.Contains(t, small, "push QWORD [rbx]")

	big := nasm(t, "let a[100]; exit(a[0]);")
	assert.Equal(t, 1, strings.Count(big, "push QWORD 0"), "large arrays are zeroed in a loop")
	assert.Contains(t, big, "mov rcx, 100")
	assert.Contains(t, big, "add rsp, 800")
}

func TestNasmBuiltins(t *testing.T) {
	asm := nasm(t, `putchar(65); print("ok", "ok", "");`)
	assert.Contains(t, asm, "mov rsi, rsp")
	assert.Contains(t, asm, "mov rsi, str0")
	assert.Equal(t, 2, strings.Count(asm, "mov rsi, str0"))
	assert.Contains(t, asm, "section .data\nstr0: db 111, 107\n")
	assert.NotContains(t, asm, "str1")
	assert.Equal(t, 3, strings.Count(asm, "mov rax, 1\n"), "one write per non-empty piece")
}

func TestBackendErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"undeclared", "exit(x);", diag.CodeUndeclaredIdentifier},
		{"not an array", "let x = 1; x[0] = 1;", diag.CodeNotAnArray},
		{"array as scalar", "let a[2]; exit(a);", diag.CodeNotAScalar},
		{"array size", "let n = 1; let a[n];", diag.CodeInvalidArraySize},
		{"unknown builtin", "flush();", diag.CodeUnknownBuiltin},
	}
	for _, tt := range tests {
		for _, name := range BackendNames() {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				var err error
				prog := mustParse(t, tt.src)
				if name == "qbe" {
					_, err = (&qbeBackend{}).GenerateIR(prog, config.NewConfig())
				} else {
					_, err = (&nasmBackend{}).Generate(prog, config.NewConfig())
				}
				var de *diag.Error
				require.ErrorAs(t, err, &de)
				assert.Equal(t, diag.CodegenError, de.Kind)
				assert.Equal(t, tt.code, de.Code)
			})
		}
	}
}

func TestQbeIR(t *testing.T) {
	ir := qbeIR(t, "let x = 2; x = x * 3; exit(x);")
	assert.True(t, strings.HasPrefix(ir, "export function w $main() {\n@start\n"))
	assert.Contains(t, ir, "\t%v1_x =l alloc8 8\n")
	assert.Contains(t, ir, "storel %t1, %v1_x")
	assert.Contains(t, ir, "=l mul %t")
	assert.Contains(t, ir, "call $exit(w %t")
	assert.True(t, strings.HasSuffix(ir, "\tret 0\n}\n"))
}

func TestQbeArraysAndBuiltins(t *testing.T) {
	ir := qbeIR(t, `let a[4]; a[1] = 72; putchar(a[1]); print("hi");`)
	assert.Contains(t, ir, "%v1_a =l alloc8 32")
	assert.Contains(t, ir, "call $memset(l %v1_a, w 0, l 32)")
	assert.Contains(t, ir, "%byte =l alloc8 8")
	assert.Contains(t, ir, "call $write(w 1, l %byte, l 1)")
	assert.Contains(t, ir, "call $write(w 1, l $str0, l 2)")
	assert.Contains(t, ir, "data $str0 = { b 104, b 105 }")
}

func TestQbeControlFlow(t *testing.T) {
	ir := qbeIR(t, "let i = 0; while (i < 3 && 1) { i = i + 1; } if (i == 3) { exit(0); } exit(1);")
	assert.Contains(t, ir, "csltl")
	assert.Contains(t, ir, "ceql")
	assert.Contains(t, ir, "=l and ")
	assert.Equal(t, 2, strings.Count(ir, "=w cnel "), "one condition per loop and branch")
	assert.Contains(t, ir, "jmp @L1")
}

func TestQbeGenerate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("qbe binary required on windows")
	}
	cfg := config.NewConfig()
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	buf, err := (&qbeBackend{}).Generate(mustParse(t, "let x = 40 + 2; exit(x);"), cfg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "main")
}

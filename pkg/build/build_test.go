package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := NewPipeline(config.NewConfig(), dialect.MustLoad(dialect.Default))
	var out bytes.Buffer
	p.Stdout, p.Stderr = &out, &out
	return p
}

func TestPaths(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		fn   func(string) string
		in   string
		want string
	}{
		{InputPath, "", "fausto.mz"},
		{InputPath, "main", "main.mz"},
		{InputPath, "main.mz", "main.mz"},
		{InputPath, "notes.txt", "notes.txt.mz"},
		{OutputPath, "", "fausto.asm"},
		{OutputPath, "out", "out.asm"},
		{OutputPath, "out.asm", "out.asm"},
		{ExecutablePath, "out.asm", "." + sep + "out"},
		{ExecutablePath, filepath.Join("build", "a.asm"), filepath.Join("build", "a")},
		{ExecutablePath, "prog", "." + sep + "prog.out"},
		{ExecutablePath, ".asm", "." + sep + ".asm.out"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.fn(tt.in), tt.in)
	}
}

func TestDigest(t *testing.T) {
	asm := []byte("global _start\n")
	d := Digest("nasm", asm)
	assert.Len(t, d, 16)
	assert.Equal(t, d, Digest("nasm", asm))
	assert.NotEqual(t, d, Digest("qbe", asm), "the backend is part of the digest")
	assert.NotEqual(t, d, Digest("nasm", []byte("global _start\n\n")))
}

func TestCompile(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Compile("let unused = 1;\nexit(69);")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens)
	require.NotNil(t, res.Program)
	assert.Len(t, res.Program.Stmts, 2)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "unused", res.Warnings[0].Name)
	assert.Contains(t, res.Asm.String(), "mov rax, 69")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"lex", "exit(1); $", diag.LexError},
		{"parse", "exit 69;", diag.ParseError},
		{"resolve", "exit(nope);", diag.CodegenError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newPipeline(t).Compile(tt.src)
			require.Error(t, err)
			assert.True(t, IsLanguageError(err))
			var de *diag.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.kind, de.Kind)
			assert.NotNil(t, res, "partial results are returned with the error")
			assert.Nil(t, res.Asm)
		})
	}

	p := newPipeline(t)
	p.Cfg.Backend = "llvm"
	_, err := p.Compile("exit(0);")
	require.Error(t, err)
	assert.False(t, IsLanguageError(err))
}

func TestBuildWritesAssembly(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "prog.asm")

	p := newPipeline(t)
	res, err := p.Build(context.Background(), "exit(3);", asmPath, StageAsm)
	require.NoError(t, err)

	data, err := os.ReadFile(asmPath)
	require.NoError(t, err)
	assert.Equal(t, res.Asm.String(), string(data))
	assert.Empty(t, res.Executable, "nothing is linked when stopping after assembly")
}

func TestLinkSkipsUpToDateExecutables(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "prog.asm")

	p := newPipeline(t)
	res, err := p.Compile("exit(0);")
	require.NoError(t, err)
	require.NoError(t, p.WriteAsm(res, asmPath))

	exe := ExecutablePath(asmPath)
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, writeStamp(asmPath, Digest("nasm", res.Asm.Bytes())))

	require.NoError(t, p.Link(context.Background(), res, asmPath))
	assert.True(t, res.Cached)
	assert.Equal(t, exe, res.Executable)
}

func TestUpToDate(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "a.asm")
	exe := filepath.Join(dir, "a")

	assert.False(t, upToDate(asmPath, exe, "abc"), "no stamp")
	require.NoError(t, writeStamp(asmPath, "abc"))
	assert.False(t, upToDate(asmPath, exe, "abc"), "no executable")
	require.NoError(t, os.WriteFile(exe, nil, 0o755))
	assert.True(t, upToDate(asmPath, exe, "abc"))
	assert.False(t, upToDate(asmPath, exe, "abd"), "stale stamp")
}

func TestLinkUnknownToolchain(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Compile("exit(0);")
	require.NoError(t, err)
	p.Cfg.Backend = "llvm"
	err = p.Link(context.Background(), res, filepath.Join(t.TempDir(), "x.asm"))
	assert.EqualError(t, err, "no toolchain for backend 'llvm'")
}

func TestRunToolMissing(t *testing.T) {
	err := runTool(context.Background(), "mzc-no-such-tool-xyz", "-v")
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "mzc-no-such-tool-xyz", te.Tool)
	assert.True(t, errors.Is(err, te.Err))
	assert.Contains(t, err.Error(), "mzc-no-such-tool-xyz failed: ")
}

func TestToolErrorFormat(t *testing.T) {
	err := &ToolError{Tool: "ld", ExitCode: 1, Output: "  undefined symbol _start\n", Err: errors.New("exit status 1")}
	assert.Equal(t, "ld failed with exit status 1\nundefined symbol _start", err.Error())
}

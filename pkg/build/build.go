// Package build drives a compilation from source text to a running
// executable. The language stages are pure; this package owns the file
// system, the external assembler and linker, and the logging around them.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/codegen"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/parser"
	"github.com/mzlang/mzc/pkg/resolve"
	"github.com/mzlang/mzc/pkg/token"
)

const (
	SourceExt = ".mz"
	AsmExt    = ".asm"

	DefaultInput  = "fausto" + SourceExt
	DefaultOutput = "fausto" + AsmExt
)

var log = commonlog.GetLogger("mzc.build")

// Stage is how far Build goes.
type Stage int

const (
	StageAsm Stage = iota
	StageLink
	StageRun
)

// Result holds what each stage produced. Fields are filled in as far as
// the pipeline got.
type Result struct {
	Tokens     []token.Token
	Program    *ast.Program
	Warnings   []diag.Diagnostic
	Asm        *bytes.Buffer
	Executable string
	Cached     bool
	ExitCode   int
}

type Pipeline struct {
	Cfg    *config.Config
	Table  *dialect.Table
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewPipeline(cfg *config.Config, table *dialect.Table) *Pipeline {
	return &Pipeline{Cfg: cfg, Table: table, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// InputPath and OutputPath append the default extensions when missing.
func InputPath(p string) string {
	if p == "" {
		return DefaultInput
	}
	if filepath.Ext(p) != SourceExt {
		p += SourceExt
	}
	return p
}

func OutputPath(p string) string {
	if p == "" {
		return DefaultOutput
	}
	if filepath.Ext(p) != AsmExt {
		p += AsmExt
	}
	return p
}

// ExecutablePath is where the linked program goes for a given assembly file.
func ExecutablePath(asmPath string) string {
	exe := strings.TrimSuffix(asmPath, AsmExt)
	if exe == asmPath || exe == "" {
		exe = asmPath + ".out"
	}
	if !strings.ContainsRune(exe, filepath.Separator) {
		exe = "." + string(filepath.Separator) + exe
	}
	return exe
}

func ReadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

// Tokenize and Parse are the front half of Compile, exposed for the
// --dump-* modes and the REPL.
func (p *Pipeline) Tokenize(src string) ([]token.Token, error) {
	log.Debug("tokenizing", "dialect", p.Table.Name)
	tokens, err := lexer.Tokenize(src, p.Table, p.Cfg)
	if err != nil {
		return nil, err
	}
	log.Debugf("%d tokens", len(tokens))
	return tokens, nil
}

func (p *Pipeline) Parse(tokens []token.Token) (*ast.Program, error) {
	log.Debug("parsing")
	prog, err := parser.New(tokens, p.Cfg).WithDialect(p.Table).Parse()
	if err != nil {
		return nil, err
	}
	log.Debugf("%d top-level statements", len(prog.Stmts))
	return prog, nil
}

// Compile runs tokenize, parse, resolve and generate.
func (p *Pipeline) Compile(src string) (*Result, error) {
	res := &Result{}
	var err error

	if res.Tokens, err = p.Tokenize(src); err != nil {
		return res, err
	}
	if res.Program, err = p.Parse(res.Tokens); err != nil {
		return res, err
	}

	log.Debug("resolving names")
	if res.Warnings, err = resolve.Resolve(res.Program, p.Cfg); err != nil {
		return res, err
	}
	if len(res.Warnings) > 0 {
		log.Debugf("%d warnings", len(res.Warnings))
	}

	log.Debug("generating code", "backend", p.Cfg.Backend)
	backend, err := codegen.NewBackend(p.Cfg.Backend)
	if err != nil {
		return res, err
	}
	if res.Asm, err = backend.Generate(res.Program, p.Cfg); err != nil {
		return res, fmt.Errorf("code generation: %w", err)
	}
	return res, nil
}

// WriteAsm writes the generated assembly to asmPath.
func (p *Pipeline) WriteAsm(res *Result, asmPath string) error {
	log.Infof("writing %s", asmPath)
	if err := os.WriteFile(asmPath, res.Asm.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing assembly: %w", err)
	}
	return nil
}

// Link assembles and links asmPath, unless the stamp next to it shows the
// executable was built from identical assembly.
func (p *Pipeline) Link(ctx context.Context, res *Result, asmPath string) error {
	res.Executable = ExecutablePath(asmPath)
	digest := Digest(p.Cfg.Backend, res.Asm.Bytes())
	if upToDate(asmPath, res.Executable, digest) {
		log.Infof("%s is up to date", res.Executable)
		res.Cached = true
		return nil
	}

	switch p.Cfg.Backend {
	case "nasm":
		obj := strings.TrimSuffix(res.Executable, filepath.Ext(res.Executable)) + ".o"
		log.Infof("assembling %s", asmPath)
		if err := runTool(ctx, "nasm", "-felf64", "-o", obj, asmPath); err != nil {
			return err
		}
		defer os.Remove(obj)
		log.Infof("linking %s", res.Executable)
		if err := runTool(ctx, "ld", "-o", res.Executable, obj); err != nil {
			return err
		}
	case "qbe":
		log.Infof("assembling and linking %s", res.Executable)
		if err := runTool(ctx, "cc", "-x", "assembler", "-o", res.Executable, asmPath); err != nil {
			return err
		}
	default:
		return fmt.Errorf("no toolchain for backend '%s'", p.Cfg.Backend)
	}

	if err := writeStamp(asmPath, digest); err != nil {
		log.Warningf("could not write build stamp: %s", err)
	}
	return nil
}

// Run executes the linked program. Its exit code is data, not an error.
func (p *Pipeline) Run(ctx context.Context, res *Result) error {
	log.Infof("running %s", res.Executable)
	code, err := runProgram(ctx, res.Executable, p.Stdin, p.Stdout, p.Stderr)
	if err != nil {
		return err
	}
	res.ExitCode = code
	log.Infof("%s exited with status %d", res.Executable, code)
	return nil
}

// Build compiles src and writes the assembly, then assembles, links and
// runs it as far as stop allows.
func (p *Pipeline) Build(ctx context.Context, src, asmPath string, stop Stage) (*Result, error) {
	res, err := p.Compile(src)
	if err != nil {
		return res, err
	}
	if err := p.WriteAsm(res, asmPath); err != nil {
		return res, err
	}
	if stop == StageAsm {
		return res, nil
	}
	if err := p.Link(ctx, res, asmPath); err != nil {
		return res, err
	}
	if stop == StageLink {
		return res, nil
	}
	return res, p.Run(ctx, res)
}

// IsLanguageError reports whether err comes from the source program
// rather than the environment.
func IsLanguageError(err error) bool {
	var de *diag.Error
	return errors.As(err, &de)
}

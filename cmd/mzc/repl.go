package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/build"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/token"
	"github.com/mzlang/mzc/pkg/translate"
)

const (
	historyFile = ".mzc_history"
	promptMain  = "mz> "
	promptCont  = "... "
)

type replMode string

const (
	modeTokens    replMode = "tokens"
	modeAST       replMode = "ast"
	modeAsm       replMode = "asm"
	modeRun       replMode = "run"
	modeTranslate replMode = "translate"
)

type session struct {
	cfg    *config.Config
	table  *dialect.Table
	mode   replMode
	target *dialect.Table // for modeTranslate
	dir    string
	out    io.Writer
}

func runREPL(cfg *config.Config, table *dialect.Table) error {
	dir, err := os.MkdirTemp("", "mzc-repl-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	s := &session{cfg: cfg, table: table, mode: modeAST, dir: dir, out: os.Stdout}
	fmt.Fprintf(s.out, "mzc %s dialect. :help for commands, :quit or Ctrl-D to leave.\n", table.Name)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		src, ok := s.readByDepthProbe(ln)
		if !ok {
			fmt.Fprintln(s.out)
			return nil
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := s.command(strings.Fields(trimmed)); quit {
				return nil
			}
			continue
		}
		s.eval(src)
	}
}

// readByDepthProbe reads lines until the brackets typed so far balance
// and no block comment is left open. io.EOF ends the session; Ctrl-C
// discards the pending input.
func (s *session) readByDepthProbe(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !incomplete(src, s.table, s.cfg) {
			return src, true
		}
	}
}

func incomplete(src string, table *dialect.Table, cfg *config.Config) bool {
	tokens, err := lexer.Tokenize(src, table, cfg)
	if err != nil {
		var de *diag.Error
		return errors.As(err, &de) && de.Code == diag.CodeUnterminatedComment
	}
	depth := 0
	for _, t := range tokens {
		switch t.Kind {
		case token.OpenCurly, token.OpenParen, token.OpenBracket:
			depth++
		case token.CloseCurly, token.CloseParen, token.CloseBracket:
			depth--
		}
	}
	return depth > 0
}

func (s *session) command(fields []string) (quit bool) {
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(s.out, ":mode tokens|ast|asm|run     choose what each entry shows")
		fmt.Fprintln(s.out, ":mode translate <dialect>     re-render entries in another dialect")
		fmt.Fprintln(s.out, ":dialect <name>               switch the input dialect")
		fmt.Fprintln(s.out, ":quit                         leave")
	case ":mode":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "mode is %s\n", s.mode)
			return false
		}
		mode := replMode(fields[1])
		switch mode {
		case modeTokens, modeAST, modeAsm, modeRun:
			s.mode = mode
		case modeTranslate:
			if len(fields) != 3 {
				s.fail(fmt.Errorf(":mode translate needs a dialect name"))
				return false
			}
			target, err := dialect.Load(fields[2])
			if err != nil {
				s.fail(err)
				return false
			}
			s.mode, s.target = mode, target
		default:
			s.fail(fmt.Errorf("unknown mode '%s'", fields[1]))
		}
	case ":dialect":
		if len(fields) != 2 {
			fmt.Fprintf(s.out, "dialect is %s\n", s.table.Name)
			return false
		}
		table, err := dialect.Load(fields[1])
		if err != nil {
			s.fail(err)
			return false
		}
		s.table = table
		s.cfg.Dialect = table.Name
	default:
		fmt.Fprintln(s.out, "unknown command, :help lists them")
	}
	return false
}

func (s *session) eval(src string) {
	reporter := diag.NewReporter("<repl>", src, os.Stderr)
	report := func(err error) { reporter.ReportError(err) }
	p := build.NewPipeline(s.cfg, s.table)
	p.Stdout = s.out

	switch s.mode {
	case modeTokens:
		tokens, err := p.Tokenize(src)
		if err != nil {
			report(err)
			return
		}
		for _, t := range tokens {
			fmt.Fprintln(s.out, t)
		}
	case modeAST:
		tokens, err := p.Tokenize(src)
		if err != nil {
			report(err)
			return
		}
		prog, err := p.Parse(tokens)
		if err != nil {
			report(err)
			return
		}
		fmt.Fprint(s.out, ast.Dump(prog))
	case modeTranslate:
		out, err := translate.TranslateSource(src, s.table, s.target, s.cfg)
		if err != nil {
			report(err)
			return
		}
		fmt.Fprint(s.out, out)
	case modeAsm, modeRun:
		asmPath := filepath.Join(s.dir, "repl"+build.AsmExt)
		stop := build.StageRun
		if s.mode == modeAsm {
			stop = build.StageAsm
		}
		res, err := p.Build(context.Background(), src, asmPath, stop)
		if res != nil {
			for _, w := range res.Warnings {
				reporter.Report(w)
			}
		}
		if err != nil {
			report(err)
			return
		}
		if s.mode == modeAsm {
			fmt.Fprint(s.out, res.Asm.String())
			return
		}
		fmt.Fprintf(s.out, "%s %d\n", color.New(color.Faint).Sprint("exit"), res.ExitCode)
	}
}

func (s *session) fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/build"
	"github.com/mzlang/mzc/pkg/cli"
	"github.com/mzlang/mzc/pkg/codegen"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/token"
	"github.com/mzlang/mzc/pkg/translate"
)

// errReported marks an error that was already printed with its source context.
var errReported = errors.New("compilation failed")

type options struct {
	output        string
	verbose       bool
	asmOnly       bool
	noRun         bool
	dialectName   string
	dialectFile   string
	translateTo   string
	backend       string
	target        string
	std           string
	dumpTokens    bool
	dumpAST       bool
	listDialects  bool
	repl          bool
	wall          bool
	propagateExit bool
}

func main() {
	app := cli.NewApp("mzc")
	app.Synopsis = "[options] [input.mz]"
	app.Description = "A compiler for the mz toy language. Source written in any dialect is lowered to x86-64 assembly, assembled, linked and run; --translate re-renders it in another dialect instead."
	app.Authors = []string{"the mzc authors"}
	app.Repository = "<https://github.com/mzlang/mzc>"

	var opts options
	fs := app.FlagSet
	fs.String(&opts.output, "output", "o", build.DefaultOutput, "Write the assembly to <file>. '.asm' is appended when missing.", "file")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Narrate every step of the pipeline.")
	fs.Bool(&opts.asmOnly, "asm-only", "S", false, "Stop after writing the assembly.")
	fs.Bool(&opts.noRun, "no-run", "c", false, "Assemble and link, but do not run the program.")
	fs.String(&opts.dialectName, "dialect", "", dialect.Default, "Read the source in the named dialect.", "name")
	fs.String(&opts.dialectFile, "dialect-file", "", "", "Read the source in the dialect described by a .yaml or .json file.", "file")
	fs.String(&opts.translateTo, "translate", "", "", "Write the source re-rendered in another dialect instead of compiling it.", "dialect")
	fs.String(&opts.backend, "backend", "", "nasm", "Code generator: nasm or qbe.", "backend")
	fs.String(&opts.target, "target", "t", "", "QBE target for the qbe backend (default: host).", "target")
	fs.String(&opts.std, "std", "", "full", "Language profile: core or full.", "std")
	fs.Bool(&opts.dumpTokens, "dump-tokens", "", false, "Print the token stream and exit.")
	fs.Bool(&opts.dumpAST, "dump-ast", "", false, "Print the syntax tree and exit.")
	fs.Bool(&opts.listDialects, "list-dialects", "", false, "List the built-in dialects and exit.")
	fs.Bool(&opts.repl, "repl", "i", false, "Start an interactive session.")
	fs.Bool(&opts.wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&opts.propagateExit, "propagate-exit", "", false, "Exit with the compiled program's exit status.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	exitCode := 0
	app.Action = func(args []string) error {
		verbosity := -1
		if opts.verbose {
			verbosity = 2
		}
		build.ConfigureLogging(verbosity, nil)

		if err := cfg.ApplyStd(opts.std); err != nil {
			return err
		}
		if opts.wall {
			cfg.ProcessFlags([]string{"-Wall"})
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if _, err := codegen.NewBackend(opts.backend); err != nil {
			return err
		}
		cfg.Backend = opts.backend
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, opts.target)

		if opts.listDialects {
			return listDialects(os.Stdout)
		}

		table, err := loadDialect(opts)
		if err != nil {
			return err
		}
		cfg.Dialect = table.Name

		if opts.repl {
			return runREPL(cfg, table)
		}

		if len(args) > 1 {
			return fmt.Errorf("expected at most one input file, got %d", len(args))
		}
		input := ""
		if len(args) == 1 {
			input = args[0]
		}

		code, err := compile(cfg, table, build.InputPath(input), build.OutputPath(opts.output), opts)
		if opts.propagateExit {
			exitCode = code
		}
		return err
	}

	if err := app.Run(os.Args[1:]); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("mzc:"), err)
		}
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func loadDialect(opts options) (*dialect.Table, error) {
	if opts.dialectFile != "" {
		return dialect.LoadFile(opts.dialectFile)
	}
	return dialect.Load(opts.dialectName)
}

func listDialects(w io.Writer) error {
	for _, name := range dialect.Names() {
		t, err := dialect.Load(name)
		if err != nil {
			return err
		}
		exit, _ := t.Render(token.Exit)
		let, _ := t.Render(token.Let)
		fmt.Fprintf(w, "%-10s %-8s %-8s %s\n", name, let, exit, t.Description)
	}
	return nil
}

// compile runs the selected mode on one source file and returns the
// compiled program's exit status when it was run.
func compile(cfg *config.Config, table *dialect.Table, input, output string, opts options) (int, error) {
	src, err := build.ReadSource(input)
	if err != nil {
		return 0, err
	}
	reporter := diag.NewReporter(input, src, os.Stderr)
	fail := func(err error) (int, error) {
		if build.IsLanguageError(err) {
			reporter.ReportError(err)
			return 0, errReported
		}
		return 0, err
	}

	p := build.NewPipeline(cfg, table)

	switch {
	case opts.translateTo != "":
		target, err := dialect.Load(opts.translateTo)
		if err != nil {
			return 0, err
		}
		out, err := translate.TranslateSource(src, table, target, cfg)
		if err != nil {
			return fail(err)
		}
		if opts.output == build.DefaultOutput {
			fmt.Print(out)
			return 0, nil
		}
		return 0, os.WriteFile(strings.TrimSuffix(output, build.AsmExt)+build.SourceExt, []byte(out), 0o644)

	case opts.dumpTokens:
		tokens, err := p.Tokenize(src)
		if err != nil {
			return fail(err)
		}
		for _, t := range tokens {
			fmt.Println(t)
		}
		return 0, nil

	case opts.dumpAST:
		tokens, err := p.Tokenize(src)
		if err != nil {
			return fail(err)
		}
		prog, err := p.Parse(tokens)
		if err != nil {
			return fail(err)
		}
		fmt.Print(ast.Dump(prog))
		return 0, nil
	}

	stop := build.StageRun
	switch {
	case opts.asmOnly:
		stop = build.StageAsm
	case opts.noRun:
		stop = build.StageLink
	}
	res, err := p.Build(context.Background(), src, output, stop)
	if res != nil {
		for _, w := range res.Warnings {
			reporter.Report(w)
		}
	}
	if err != nil {
		return fail(err)
	}
	switch stop {
	case build.StageAsm:
		if opts.verbose {
			color.Green("wrote %s", output)
		}
		return 0, nil
	case build.StageLink:
		if opts.verbose {
			color.Green("linked %s", res.Executable)
		}
		return 0, nil
	}
	if opts.verbose {
		status := color.GreenString("%d", res.ExitCode)
		if res.ExitCode != 0 {
			status = color.RedString("%d", res.ExitCode)
		}
		fmt.Fprintf(os.Stderr, "%s exited with status %s\n", res.Executable, status)
	}
	return res.ExitCode, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/tliron/glsp/server"

	"github.com/mzlang/mzc/pkg/build"
	"github.com/mzlang/mzc/pkg/cli"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lsp"
)

func main() {
	app := cli.NewApp("mzc-lsp")
	app.Synopsis = "[options]"
	app.Description = "Language server for mz sources. Speaks LSP over stdin and stdout."

	var dialectName, std, logFile string
	var verbose bool
	fs := app.FlagSet
	fs.String(&dialectName, "dialect", "", dialect.Default, "Dialect used until the client picks one in initializationOptions.", "name")
	fs.String(&std, "std", "", "full", "Language profile: core or full.", "std")
	fs.String(&logFile, "log", "", "", "Append the server log to <file>.", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Log every request.")

	app.Action = func(args []string) error {
		verbosity := 0
		if verbose {
			verbosity = 2
		}
		var path *string
		if logFile != "" {
			path = &logFile
		}
		build.ConfigureLogging(verbosity, path)

		cfg := config.NewConfig()
		if err := cfg.ApplyStd(std); err != nil {
			return err
		}
		cfg.ProcessFlags([]string{"-Wall"})

		table, err := dialect.Load(dialectName)
		if err != nil {
			return err
		}
		cfg.Dialect = table.Name

		h := lsp.NewHandler(table, cfg)
		return server.NewServer(h.Protocol(), lsp.Name, false).RunStdio()
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mzc-lsp: %v\n", err)
		os.Exit(1)
	}
}

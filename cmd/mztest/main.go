// mztest runs the programs under tests/ through mzc and checks them
// against golden results. Each golden records what compiling and running
// the source produced, stamped with the source's hash; every program is
// also re-run after translation into the other dialects, which must not
// change its behaviour.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mzlang/mzc/pkg/cli"
	"github.com/mzlang/mzc/pkg/dialect"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// Golden is the on-disk expectation for one source file.
type Golden struct {
	Hash    string     `json:"hash"`
	Compile Execution  `json:"compile"`
	Run     *Execution `json:"run,omitempty"`
}

type Status string

const (
	Pass  Status = "PASS"
	Fail  Status = "FAIL"
	Skip  Status = "SKIP"
	Error Status = "ERROR"
)

type FileTestResult struct {
	File    string             `json:"file"`
	Status  Status             `json:"status"`
	Message string             `json:"message,omitempty"`
	Diff    string             `json:"diff,omitempty"`
	Golden  *Golden            `json:"golden,omitempty"`
	Actual  *Golden            `json:"actual,omitempty"`
	Crossed map[string]*Golden `json:"crossed,omitempty"`
}

type options struct {
	compiler  string
	args      string
	files     string
	skip      string
	output    string
	goldenDir string
	dialects  []string
	generate  bool
	verbose   bool
	noCross   bool
	jobs      int
	timeout   time.Duration
}

const sourcePlaceholder = "__SOURCE__"

var (
	red    = color.New(color.FgHiRed).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	app := cli.NewApp("mztest")
	app.Synopsis = "[options]"
	app.Description = "Golden-file test runner for mzc. Compiles and runs every matched program, compares the result with its .<file>.json golden, and repeats the run after translating the source into each other dialect."

	var opts options
	fs := app.FlagSet
	fs.String(&opts.compiler, "compiler", "", "./mzc", "Path to the mzc binary under test.", "path")
	fs.String(&opts.args, "args", "", "", "Extra arguments for the compiler (space-separated).", "args")
	fs.String(&opts.files, "files", "", "tests/*.mz", "Glob pattern(s) for the programs to test (space-separated).", "glob")
	fs.String(&opts.skip, "skip", "", "", "Files to skip (space-separated).", "files")
	fs.String(&opts.output, "output", "o", ".test_results.json", "Write the JSON report to <file>.", "file")
	fs.String(&opts.goldenDir, "dir", "", "", "Directory holding the golden files (defaults to each source's directory).", "dir")
	fs.List(&opts.dialects, "dialect", "", "Dialect to cross-check through translation. Repeatable; defaults to every built-in one.", "name")
	fs.Bool(&opts.generate, "generate", "g", false, "Write golden files from the current compiler instead of testing.")
	fs.Bool(&opts.noCross, "no-cross", "", false, "Skip the translation cross-checks.")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Show per-dialect results.")
	fs.Int(&opts.jobs, "jobs", "j", 4, "Number of parallel test jobs.")
	fs.Duration(&opts.timeout, "timeout", "", 5*time.Second, "Timeout for each command.")

	app.Action = func(args []string) error {
		if opts.jobs < 1 {
			opts.jobs = 1
		}
		if len(opts.dialects) == 0 {
			for _, name := range dialect.Names() {
				if name != dialect.Default {
					opts.dialects = append(opts.dialects, name)
				}
			}
		}
		if opts.noCross {
			opts.dialects = nil
		}

		tempDir, err := os.MkdirTemp("", "mztest-*")
		if err != nil {
			return fmt.Errorf("creating temp directory: %w", err)
		}
		defer os.RemoveAll(tempDir)
		setupInterruptHandler(tempDir)

		files, err := expandGlobPatterns(opts.files)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No test files found matching the pattern(s).")
			return nil
		}

		r := &runner{opts: opts, tempDir: tempDir}
		if opts.generate {
			return r.generateAll(files)
		}
		results := r.runAll(files)
		printSummary(results, opts.verbose)
		if err := writeJSONReport(results, r.reportPath()); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("[ERROR]"), err)
		}
		if hasFailures(results) {
			os.Exit(1)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("[ERROR]"), err)
		os.Exit(2)
	}
}

// setupInterruptHandler cleans up on Ctrl-C.
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s Test run cancelled. Cleaning up...\n", yellow("[INTERRUPT]"))
		os.Exit(1)
	}()
}

type runner struct {
	opts    options
	tempDir string
}

func (r *runner) goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if r.opts.goldenDir != "" {
		return filepath.Join(r.opts.goldenDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func (r *runner) reportPath() string {
	if r.opts.goldenDir != "" {
		return filepath.Join(r.opts.goldenDir, r.opts.output)
	}
	return r.opts.output
}

func hashSource(src []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(src))
}

func (r *runner) generateAll(files []string) error {
	if r.opts.goldenDir != "" {
		if err := os.MkdirAll(r.opts.goldenDir, 0o755); err != nil {
			return err
		}
	}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		golden, err := r.compileAndRun(file, dialect.Default, nil, hashSource(src))
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		data, err := json.MarshalIndent(golden, "", "  ")
		if err != nil {
			return err
		}
		path := r.goldenPath(file)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", green("[GOLDEN]"), path)
	}
	return nil
}

func (r *runner) runAll(files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(r.opts.skip) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < r.opts.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- r.testFile(file)
			}
		}()
	}

	// Files with identical content are tested once.
	seen := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: Skip, Message: "Explicitly skipped"}
			continue
		}
		src, err := os.ReadFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: Error, Message: err.Error()}
			continue
		}
		h := hashSource(src)
		if original, ok := seen[h]; ok {
			resultsChan <- &FileTestResult{File: file, Status: Skip, Message: "Content is identical to " + original}
			continue
		}
		seen[h] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*FileTestResult
	for res := range resultsChan {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func (r *runner) testFile(file string) *FileTestResult {
	src, err := os.ReadFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: Error, Message: err.Error()}
	}
	hash := hashSource(src)

	data, err := os.ReadFile(r.goldenPath(file))
	if err != nil {
		return &FileTestResult{File: file, Status: Skip, Message: "No golden file; run with --generate"}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &FileTestResult{File: file, Status: Error, Message: fmt.Sprintf("Could not parse golden file: %v", err)}
	}
	if golden.Hash != hash {
		return &FileTestResult{File: file, Status: Fail, Message: "Golden file is stale: the source changed since it was generated", Golden: &golden}
	}

	actual, err := r.compileAndRun(file, dialect.Default, nil, hash)
	if err != nil {
		return &FileTestResult{File: file, Status: Error, Message: err.Error(), Golden: &golden}
	}
	result := &FileTestResult{File: file, Golden: &golden, Actual: actual}
	if diff := cmp.Diff(&golden, actual, cmpopts.IgnoreFields(Execution{}, "Duration")); diff != "" {
		result.Status, result.Message, result.Diff = Fail, "Output differs from the golden file", diff
		return result
	}

	// Only programs that compile can be translated.
	if golden.Compile.ExitCode == 0 {
		var diffs strings.Builder
		for _, name := range r.opts.dialects {
			crossed, err := r.crossCheck(file, name, hash)
			if err != nil {
				fmt.Fprintf(&diffs, "dialect %s: %v\n", name, err)
				continue
			}
			if result.Crossed == nil {
				result.Crossed = make(map[string]*Golden)
			}
			result.Crossed[name] = crossed
			if diff := cmp.Diff(golden.Run, crossed.Run, cmpopts.IgnoreFields(Execution{}, "Duration")); diff != "" {
				fmt.Fprintf(&diffs, "dialect %s:\n%s", name, diff)
			}
		}
		if diffs.Len() > 0 {
			result.Status, result.Message, result.Diff = Fail, "Behaviour changed after translation", diffs.String()
			return result
		}
	}

	result.Status, result.Message = Pass, "Matches golden"
	if len(result.Crossed) > 0 {
		result.Message += fmt.Sprintf(" in %d dialects", len(result.Crossed)+1)
	}
	return result
}

// crossCheck translates file into the named dialect, then compiles and
// runs the translation in that dialect.
func (r *runner) crossCheck(file, name, hash string) (*Golden, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.timeout)
	defer cancel()

	translated := filepath.Join(r.tempDir, hash+"-"+name+".mz")
	asm := strings.TrimSuffix(translated, ".mz") + ".asm"
	res := executeCommand(ctx, r.opts.compiler, "--translate", name, "-o", asm, file)
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("translation failed: %s", strings.TrimSpace(res.Stderr))
	}
	return r.compileAndRun(translated, name, []string{"--dialect", name}, hash+"-"+name)
}

// compileAndRun links file with mzc without running it, then runs the
// executable itself so that its stdout is captured apart from mzc's.
func (r *runner) compileAndRun(file, dialectName string, extra []string, stem string) (*Golden, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.timeout)
	defer cancel()

	asm := filepath.Join(r.tempDir, stem+".asm")
	exe := strings.TrimSuffix(asm, ".asm")

	args := append([]string{"--no-run", "-o", asm}, strings.Fields(r.opts.args)...)
	args = append(args, extra...)
	args = append(args, file)
	compile := executeCommand(ctx, r.opts.compiler, args...)
	if compile.ExitCode == -2 {
		return nil, fmt.Errorf("could not run %s: %s", r.opts.compiler, compile.Stderr)
	}
	compile.Stdout = ""
	compile.Stderr = strings.ReplaceAll(compile.Stderr, file, sourcePlaceholder)

	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	golden := &Golden{Hash: hashSource(src), Compile: compile}
	if dialectName != dialect.Default {
		// The hash of a translation is meaningless; keep the original's.
		golden.Hash = ""
	}
	if compile.ExitCode != 0 || compile.TimedOut {
		return golden, nil
	}
	if _, err := os.Stat(exe); err != nil {
		return nil, fmt.Errorf("compilation succeeded but no executable at %s", exe)
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), r.opts.timeout)
	defer runCancel()
	run := executeCommand(runCtx, exe)
	golden.Run = &run
	return golden, nil
}

// executeCommand runs a command and captures its output. Exit code -1
// means it timed out and -2 that it could not be started.
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut, res.ExitCode = true, -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -2
			res.Stderr += "\nexecution error: " + err.Error()
		}
	}
	return res
}

func printSummary(results []*FileTestResult, verbose bool) {
	counts := make(map[Status]int)
	for _, res := range results {
		counts[res.Status]++
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s...\n", cyan(res.File))
		switch res.Status {
		case Pass:
			fmt.Printf("  [%s] %s\n", green(res.Status), res.Message)
		case Fail, Error:
			fmt.Printf("  [%s] %s\n", red(res.Status), res.Message)
			fmt.Print(formatDiff(res.Diff))
		case Skip:
			fmt.Printf("  [%s] %s\n", yellow(res.Status), res.Message)
		}
		if verbose && res.Actual != nil && res.Actual.Run != nil {
			fmt.Printf("    %-10s exit %3d  %s\n", dialect.Default, res.Actual.Run.ExitCode, res.Actual.Run.Duration)
			names := make([]string, 0, len(res.Crossed))
			for name := range res.Crossed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if run := res.Crossed[name].Run; run != nil {
					fmt.Printf("    %-10s exit %3d  %s\n", name, run.ExitCode, run.Duration)
				}
			}
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%s %s, %s, %s, %s, %d Total\n", bold("Test Summary:"),
		green(fmt.Sprintf("%d Passed", counts[Pass])),
		red(fmt.Sprintf("%d Failed", counts[Fail])),
		yellow(fmt.Sprintf("%d Skipped", counts[Skip])),
		red(fmt.Sprintf("%d Errored", counts[Error])),
		len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			line = red(line)
		case strings.HasPrefix(trimmed, "+"):
			line = green(line)
		}
		sb.WriteString("    " + line + "\n")
	}
	return sb.String()
}

func writeJSONReport(results []*FileTestResult, path string) error {
	byFile := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		byFile[r.File] = r
	}
	data, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("Full test report saved to %s\n", path)
	return nil
}

func hasFailures(results []*FileTestResult) bool {
	for _, r := range results {
		if r.Status == Fail || r.Status == Error {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil || seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				all = append(all, abs)
				seen[abs] = true
			}
		}
	}
	return all, nil
}

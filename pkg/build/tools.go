package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ToolError is a failure of an external program: the assembler or linker
// exiting non-zero, or not being installed at all.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s failed", e.Tool)
	if e.ExitCode != 0 {
		fmt.Fprintf(&sb, " with exit status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&sb, "\n%s", out)
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

func runTool(ctx context.Context, tool string, args ...string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return &ToolError{Tool: tool, Args: args, Err: err}
	}
	log.Debugf("%s %s", tool, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		te := &ToolError{Tool: tool, Args: args, Output: string(out), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		return te
	}
	return nil
}

func runProgram(ctx context.Context, exe string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, exe)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	return -1, &ToolError{Tool: exe, Err: err}
}

// Digest identifies generated assembly for the build cache.
func Digest(backend string, asm []byte) string {
	h := xxhash.New()
	h.WriteString(backend)
	h.WriteString("\x00")
	h.Write(asm)
	return fmt.Sprintf("%016x", h.Sum64())
}

func stampPath(asmPath string) string { return asmPath + ".xxh" }

func upToDate(asmPath, exe, digest string) bool {
	stamp, err := os.ReadFile(stampPath(asmPath))
	if err != nil || strings.TrimSpace(string(stamp)) != digest {
		return false
	}
	_, err = os.Stat(exe)
	return err == nil
}

func writeStamp(asmPath, digest string) error {
	return os.WriteFile(stampPath(asmPath), []byte(digest+"\n"), 0o644)
}

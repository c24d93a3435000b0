//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
)

// Generate shells out to a qbe binary, as libqbe does not build on Windows.
func (b *qbeBackend) Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("QBE not found in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	input, err := os.CreateTemp("", "mzc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(input.Name())
	if _, err := input.WriteString(qbeIR); err != nil {
		input.Close()
		return nil, err
	}
	input.Close()

	args := []string{input.Name()}
	if cfg.QbeTarget != "" {
		args = append([]string{"-t", cfg.QbeTarget}, args...)
	}
	var asmBuf, stderr bytes.Buffer
	cmd := exec.Command("qbe", args...)
	cmd.Stdout, cmd.Stderr = &asmBuf, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\n%s\nError: %w", qbeIR, stderr.String(), err)
	}
	return &asmBuf, nil
}

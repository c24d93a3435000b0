//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"modernc.org/libqbe"
)

func (b *qbeBackend) Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error) {
	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	target := cfg.QbeTarget
	if target == "" {
		target = libqbe.DefaultTarget(runtime.GOOS, runtime.GOARCH)
	}

	var asmBuf bytes.Buffer
	if err := libqbe.Main(target, "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", qbeIR, err)
	}
	return &asmBuf, nil
}

package codegen

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate lowers a resolved program to target assembly. A backend
	// keeps per-call state only, so one value may serve many compilations
	// as long as they do not run concurrently.
	Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error)
}

var backends = map[string]func() Backend{
	"nasm": func() Backend { return &nasmBackend{} },
	"qbe":  func() Backend { return &qbeBackend{} },
}

// NewBackend returns a fresh backend by name.
func NewBackend(name string) (Backend, error) {
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unsupported backend '%s' (available: %v)", name, BackendNames())
	}
	return mk(), nil
}

func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generate is a convenience for NewBackend(cfg.Backend).Generate(prog, cfg).
func Generate(prog *ast.Program, cfg *config.Config) (*bytes.Buffer, error) {
	b, err := NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return b.Generate(prog, cfg)
}

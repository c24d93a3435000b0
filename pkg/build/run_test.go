package build

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/dialect"
)

// runnableBackends lists the backends whose assembler and linker are on
// PATH and whose output runs on this host.
func runnableBackends(t *testing.T) []string {
	t.Helper()
	tools := map[string][]string{
		"nasm": {"nasm", "ld"},
		"qbe":  {"cc"},
	}
	var out []string
	for _, backend := range []string{"nasm", "qbe"} {
		if backend == "nasm" && (runtime.GOOS != "linux" || runtime.GOARCH != "amd64") {
			continue
		}
		if backend == "qbe" && runtime.GOOS == "windows" {
			continue
		}
		found := true
		for _, tool := range tools[backend] {
			if _, err := exec.LookPath(tool); err != nil {
				found = false
			}
		}
		if found {
			out = append(out, backend)
		}
	}
	if len(out) == 0 {
		t.Skip("no assembler toolchain on PATH")
	}
	return out
}

type runOutput struct {
	stdout   string
	exitCode int
}

func buildAndRun(t *testing.T, backend, name, src string) (runOutput, error) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Backend = backend
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")

	p := NewPipeline(cfg, dialect.MustLoad(dialect.Default))
	var stdout, stderr bytes.Buffer
	p.Stdin, p.Stdout, p.Stderr = strings.NewReader(""), &stdout, &stderr

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := p.Build(ctx, src, filepath.Join(t.TempDir(), name+AsmExt), StageRun)
	if err != nil {
		return runOutput{}, err
	}
	return runOutput{stdout: stdout.String(), exitCode: res.ExitCode}, nil
}

func TestRunExitStatus(t *testing.T) {
	for _, backend := range runnableBackends(t) {
		t.Run(backend, func(t *testing.T) {
			tests := []struct {
				src  string
				want int
			}{
				{"exit(69);", 69},
				{"exit(300);", 44},
				{"exit(256);", 0},
				{"exit(0 - 1);", 255},
				{"let a = 7; exit(a / 2 + a % 2 * 10);", 13},
				{"let a = 1; { let b = 2; a = a + b; } exit(a);", 3},
			}
			for _, tt := range tests {
				out, err := buildAndRun(t, backend, "prog", tt.src)
				require.NoError(t, err, tt.src)
				assert.Equal(t, tt.want, out.exitCode, tt.src)
			}
		})
	}
}

func TestRunGoldenPrograms(t *testing.T) {
	backends := runnableBackends(t)
	files, err := filepath.Glob(filepath.Join("..", "..", "tests", "*"+SourceExt))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, backend := range backends {
		for _, file := range files {
			name := strings.TrimSuffix(filepath.Base(file), SourceExt)
			t.Run(backend+"/"+name, func(t *testing.T) {
				data, err := os.ReadFile(filepath.Join(filepath.Dir(file), "."+filepath.Base(file)+".json"))
				require.NoError(t, err)
				var golden struct {
					Compile struct {
						ExitCode int `json:"exitCode"`
					} `json:"compile"`
					Run *struct {
						Stdout   string `json:"stdout"`
						ExitCode int    `json:"exitCode"`
					} `json:"run"`
				}
				require.NoError(t, json.Unmarshal(data, &golden))

				src, err := ReadSource(file)
				require.NoError(t, err)
				out, err := buildAndRun(t, backend, name, src)
				if golden.Compile.ExitCode != 0 {
					require.Error(t, err)
					assert.True(t, IsLanguageError(err), "%v", err)
					return
				}
				require.NoError(t, err)
				require.NotNil(t, golden.Run)
				assert.Equal(t, golden.Run.ExitCode, out.exitCode)
				assert.Equal(t, golden.Run.Stdout, out.stdout)
			})
		}
	}
}

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type options struct {
	output  string
	verbose bool
	jobs    int
	timeout time.Duration
	files   []string
	std     string
}

func newTestSet() (*FlagSet, *options) {
	o := &options{}
	fs := NewFlagSet("test")
	fs.String(&o.output, "output", "o", "a.out", "Place the output into <file>.", "file")
	fs.Bool(&o.verbose, "verbose", "v", false, "Verbose output.")
	fs.Int(&o.jobs, "jobs", "j", 4, "Parallel jobs.")
	fs.Duration(&o.timeout, "timeout", "", 5*time.Second, "Per test timeout.")
	fs.List(&o.files, "files", "", "Input files.", "glob")
	fs.String(&o.std, "std", "", "full", "Language profile.", "std")
	return fs, o
}

func TestParseForms(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
		rest []string
	}{
		{
			name: "defaults",
			args: nil,
			want: options{output: "a.out", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{},
		},
		{
			name: "long with separate value",
			args: []string{"--output", "prog", "main.mz"},
			want: options{output: "prog", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{"main.mz"},
		},
		{
			name: "long with equals",
			args: []string{"--output=prog", "--timeout=250ms"},
			want: options{output: "prog", jobs: 4, timeout: 250 * time.Millisecond, files: []string{}, std: "full"},
			rest: []string{},
		},
		{
			name: "gcc style single dash",
			args: []string{"-std=core", "a.mz"},
			want: options{output: "a.out", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "core"},
			rest: []string{"a.mz"},
		},
		{
			name: "shorthands",
			args: []string{"-v", "-o", "x", "-j8"},
			want: options{output: "x", verbose: true, jobs: 8, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{},
		},
		{
			name: "attached shorthand value",
			args: []string{"-oprog"},
			want: options{output: "prog", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{},
		},
		{
			name: "repeated list",
			args: []string{"--files", "a/*.mz", "--files=b/*.mz"},
			want: options{output: "a.out", jobs: 4, timeout: 5 * time.Second, files: []string{"a/*.mz", "b/*.mz"}, std: "full"},
			rest: []string{},
		},
		{
			name: "explicit bool",
			args: []string{"--verbose=false", "--", "-v"},
			want: options{output: "a.out", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{"-v"},
		},
		{
			name: "lone dash is an argument",
			args: []string{"-"},
			want: options{output: "a.out", jobs: 4, timeout: 5 * time.Second, files: []string{}, std: "full"},
			rest: []string{"-"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, got := newTestSet()
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.want, *got)
			assert.Equal(t, tt.rest, fs.Args())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"--nope"}, "unknown flag: --nope"},
		{[]string{"-vx"}, "unknown flag: -vx"},
		{[]string{"--output"}, "flag needs an argument: -output"},
		{[]string{"-j", "many"}, "invalid integer value 'many'"},
		{[]string{"--timeout=soon"}, "invalid duration 'soon'"},
		{[]string{"--verbose=maybe"}, "invalid boolean value 'maybe'"},
	}
	for _, tt := range tests {
		fs, _ := newTestSet()
		err := fs.Parse(tt.args)
		require.Error(t, err, tt.args)
		assert.Contains(t, err.Error(), tt.msg)
	}
}

func TestFlagGroups(t *testing.T) {
	fs := NewFlagSet("test")
	entries := []FlagGroupEntry{
		{Name: "unused", Prefix: "W", Usage: "Unused variables.", Enabled: new(bool), Disabled: new(bool), Default: true},
		{Name: "shadow", Prefix: "W", Usage: "Shadowing.", Enabled: new(bool), Disabled: new(bool)},
	}
	fs.AddFlagGroup("Warning Flags", "Toggle warnings", "warning", "Available Warnings:", entries)

	require.NoError(t, fs.Parse([]string{"-Wshadow", "-Wno-unused"}))
	assert.True(t, *entries[1].Enabled)
	assert.True(t, *entries[0].Disabled)
	assert.False(t, *entries[0].Enabled)
}

func TestRedefinitionPanics(t *testing.T) {
	fs, _ := newTestSet()
	var s string
	assert.Panics(t, func() { fs.String(&s, "output", "", "", "", "") })
	assert.Panics(t, func() { fs.String(&s, "other", "o", "", "", "") })
	assert.Panics(t, func() { fs.String(&s, "", "", "", "", "") })
}

func TestHelp(t *testing.T) {
	color.NoColor = true
	app := NewApp("mzc")
	app.Synopsis = "[options] <file>"
	app.Description = "Compiles mz sources."
	fs, _ := newTestSet()
	app.FlagSet = fs
	var help bool
	fs.Bool(&help, "help", "h", false, "Display this information")
	fs.AddFlagGroup("Warning Flags", "Toggle warnings", "warning", "Available Warnings:", []FlagGroupEntry{
		{Name: "unused", Prefix: "W", Usage: "Unused variables.", Enabled: new(bool), Disabled: new(bool), Default: true},
	})

	var buf bytes.Buffer
	app.writeHelp(&buf)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Synopsis\n    mzc [options] <file>\n"))
	assert.Contains(t, out, "Compiles mz sources.")
	assert.Contains(t, out, "-o, --output <file>")
	assert.Contains(t, out, "|a.out|")
	assert.Contains(t, out, "-j, --jobs <n>")
	assert.Contains(t, out, "-W<warning> / -Wno-<warning>: Toggle warnings")
	assert.Contains(t, out, "Unused variables. |x|")
	assert.NotContains(t, out, "--Wunused", "group flags are listed in their own section")
	assert.Less(t, strings.Index(out, "--jobs"), strings.Index(out, "--output"), "options are sorted")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"aa bb", "cc"}, wrapText("aa bb cc", 5))
	assert.Nil(t, wrapText("   ", 10))
	assert.Equal(t, []string{"averylongword"}, wrapText("averylongword", 4))
}

package config

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzlang/mzc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "full", cfg.StdName)
	assert.Equal(t, "default", cfg.Dialect)
	assert.Equal(t, "nasm", cfg.Backend)
	for ft := Feature(0); ft < FeatCount; ft++ {
		assert.True(t, cfg.IsFeatureEnabled(ft), cfg.Features[ft].Name)
	}
	assert.True(t, cfg.IsWarningEnabled(WarnUnused))
	assert.False(t, cfg.IsWarningEnabled(WarnShadow))
	assert.False(t, cfg.IsWarningEnabled(WarnExtra))
	assert.Equal(t, "exit-range", cfg.WarningName(WarnExitRange))
	assert.Equal(t, FeatBlockComments, cfg.FeatureMap["block-comments"])
	assert.Equal(t, WarnUnreachable, cfg.WarningMap["unreachable"])
}

func TestApplyStd(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ApplyStd("core"))
	assert.Equal(t, "core", cfg.StdName)
	for ft := Feature(0); ft < FeatCount; ft++ {
		assert.False(t, cfg.IsFeatureEnabled(ft), cfg.Features[ft].Name)
	}
	require.NoError(t, cfg.ApplyStd("full"))
	assert.True(t, cfg.IsFeatureEnabled(FeatControlFlow))

	err := cfg.ApplyStd("c99")
	assert.EqualError(t, err, "unsupported standard 'c99'. Supported: 'core', 'full'")
	assert.Equal(t, "full", cfg.StdName)
}

func TestProcessFlags(t *testing.T) {
	cfg := NewConfig()
	// -Wall applies first regardless of position.
	cfg.ProcessFlags([]string{"-Wno-shadow", "-Wall", "-Fno-arrays", "-Wno-unknown", "-Fbogus"})
	assert.False(t, cfg.IsWarningEnabled(WarnShadow))
	assert.True(t, cfg.IsWarningEnabled(WarnExtra))
	assert.False(t, cfg.IsFeatureEnabled(FeatArrays))
	assert.True(t, cfg.IsFeatureEnabled(FeatBuiltins))

	cfg.ProcessFlags([]string{"-Wno-all", "-Farrays"})
	for wt := Warning(0); wt < WarnCount; wt++ {
		assert.False(t, cfg.IsWarningEnabled(wt))
	}
	assert.True(t, cfg.IsFeatureEnabled(FeatArrays))
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("mzc")
	warnings, features := cfg.SetupFlagGroups(fs)
	require.Len(t, warnings, int(WarnCount))
	require.Len(t, features, int(FeatCount))
	assert.Equal(t, "shadow", warnings[WarnShadow].Name)
	assert.Equal(t, "F", features[FeatStrings].Prefix)

	require.NoError(t, fs.Parse([]string{"-Wshadow", "-Wno-unused", "-Fno-control-flow", "main.mz"}))
	cfg.ApplyFlagGroups(warnings, features)
	assert.True(t, cfg.IsWarningEnabled(WarnShadow))
	assert.False(t, cfg.IsWarningEnabled(WarnUnused))
	assert.False(t, cfg.IsFeatureEnabled(FeatControlFlow))
	assert.True(t, cfg.IsFeatureEnabled(FeatArrays), "untouched flags keep their value")
	assert.Equal(t, []string{"main.mz"}, fs.Args())
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "amd64", "rv64")
	assert.Equal(t, "rv64", cfg.QbeTarget, "an explicit target wins")

	cfg.SetTarget("linux", "amd64", "")
	assert.Equal(t, "amd64_sysv", cfg.QbeTarget)

	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	assert.NotEmpty(t, cfg.QbeTarget)
}

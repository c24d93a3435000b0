package config

import (
	"fmt"
	"strings"

	"modernc.org/libqbe"

	"github.com/mzlang/mzc/pkg/cli"
)

type Feature int

const (
	FeatArrays Feature = iota
	FeatBuiltins
	FeatStrings
	FeatBlockComments
	FeatControlFlow
	FeatCount
)

type Warning int

const (
	WarnUnused Warning = iota
	WarnShadow
	WarnUnreachable
	WarnExitRange
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string
	Dialect    string
	Backend    string
	QbeTarget  string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		StdName:    "full",
		Dialect:    "default",
		Backend:    "nasm",
	}

	features := map[Feature]Info{
		FeatArrays:        {"arrays", true, "Allow stack arrays: `let a[n];`, `a[i] = v;`, `a[i]`."},
		FeatBuiltins:      {"builtins", true, "Allow builtin calls such as `putchar(c);` and `print(\"s\");`."},
		FeatStrings:       {"strings", true, "Allow string literals as builtin arguments."},
		FeatBlockComments: {"block-comments", true, "Allow block comments opened by a doubled comment marker."},
		FeatControlFlow:   {"control-flow", true, "Allow `if`/`elif`/`else` and `while`."},
	}

	warnings := map[Warning]Info{
		WarnUnused:      {"unused", true, "Warn about variables that are declared but never read."},
		WarnShadow:      {"shadow", false, "Warn when a declaration shadows one from an enclosing scope."},
		WarnUnreachable: {"unreachable", true, "Warn about statements that follow `exit` in the same scope."},
		WarnExitRange:   {"exit-range", true, "Warn when a constant exit status is outside 0..255."},
		WarnExtra:       {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

// SetTarget picks the QBE target used by the qbe backend. An empty target
// selects the host's.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		qbeTarget = libqbe.DefaultTarget(goos, goarch)
	}
	c.QbeTarget = qbeTarget
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningName is the flag name of wt, used in diagnostics.
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// ApplyStd selects a language profile. "core" is the minimal language:
// exit, let, assignment, arithmetic and scopes. "full" enables everything.
func (c *Config) ApplyStd(stdName string) error {
	var enabled bool
	switch stdName {
	case "core":
		enabled = false
	case "full":
		enabled = true
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'core', 'full'", stdName)
	}
	c.StdName = stdName
	for ft := Feature(0); ft < FeatCount; ft++ {
		c.SetFeature(ft, enabled)
	}
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	isWarning := true
	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		isWarning = false
	default:
		name = trimmed
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
	}
}

// ProcessFlags applies -W/-F style flags in order, with -Wall first so that
// specific flags can override it.
func (c *Config) ProcessFlags(flags []string) {
	for _, f := range flags {
		if f == "-Wall" || f == "-Wno-all" {
			c.applyFlag(f)
		}
	}
	for _, f := range flags {
		if f != "-Wall" && f != "-Wno-all" {
			c.applyFlag(f)
		}
	}
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// on fs. The returned entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific language features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed group entries onto the config.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

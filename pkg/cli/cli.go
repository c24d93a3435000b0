package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s'", s)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }

type durationValue struct{ p *time.Duration }

func (v *durationValue) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	*v.p = d
	return nil
}
func (v *durationValue) String() string { return v.p.String() }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry is a -<Prefix><Name> / -<Prefix>no-<Name> pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
	Default  bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), "n")
}

func (f *FlagSet) Duration(p *time.Duration, name, shorthand string, value time.Duration, usage string) {
	*p = value
	f.Var(&durationValue{p}, name, shorthand, usage, value.String(), "duration")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", false, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", false, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name: name, Description: description, Flags: entries,
		GroupType: groupType, AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse accepts --name[=v], -name[=v] (gcc style, e.g. -Wunused, -std=core)
// and single-letter shorthands, -o file or -ofile.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}

		body := strings.TrimLeft(arg, "-")
		name, value, hasValue := strings.Cut(body, "=")
		flag, ok := f.flags[name]
		if !ok && !strings.HasPrefix(arg, "--") {
			if sh, found := f.shorthands[arg[1:2]]; found {
				flag, name = sh, sh.Shorthand
				if !sh.isBool() && len(arg) > 2 {
					value, hasValue = arg[2:], true
				}
				ok = sh.isBool() && len(arg) == 2 || !sh.isBool()
			}
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		switch {
		case hasValue:
			if err := flag.Value.Set(value); err != nil {
				return err
			}
		case flag.isBool():
			if err := flag.Value.Set(""); err != nil {
				return err
			}
		default:
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: -%s", name)
			}
			i++
			if err := flag.Value.Set(arguments[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.writeUsage(os.Stderr)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, g := range a.FlagSet.flagGroups {
		for _, e := range g.Flags {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if !grouped[flag.Name] {
			out = append(out, flag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func formatFlag(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !flag.isBool() && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func (a *App) writeUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "Run '%s --help' for all available options and flags.\n", a.Name)
}

func (a *App) writeHelp(w io.Writer) {
	heading := color.New(color.Bold).SprintFunc()
	width := terminalWidth()
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n    %s %s\n", heading("Synopsis"), a.Name, a.Synopsis)
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", heading("Description"))
		for _, line := range wrapText(a.Description, width-4) {
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	}

	options := a.optionFlags()
	left := 0
	for _, flag := range options {
		left = max(left, len(formatFlag(flag)))
	}
	for _, g := range a.FlagSet.flagGroups {
		for _, e := range g.Flags {
			left = max(left, len(e.Name))
		}
	}

	fmt.Fprintf(&sb, "\n%s\n", heading("Options"))
	for _, flag := range options {
		usage := flag.Usage
		if !flag.isBool() && flag.DefValue != "" {
			usage += fmt.Sprintf(" |%s|", flag.DefValue)
		}
		writeEntry(&sb, formatFlag(flag), usage, left, width)
	}

	for _, g := range a.FlagSet.flagGroups {
		if len(g.Flags) == 0 {
			continue
		}
		prefix := g.Flags[0].Prefix
		fmt.Fprintf(&sb, "\n%s\n", heading(g.Name))
		fmt.Fprintf(&sb, "    -%s<%s> / -%sno-<%s>: %s\n", prefix, g.GroupType, prefix, g.GroupType, g.Description)
		fmt.Fprintf(&sb, "  %s\n", g.AvailableFlagsHeader)
		entries := append([]FlagGroupEntry(nil), g.Flags...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			state := "|-|"
			if e.Default {
				state = "|x|"
			}
			writeEntry(&sb, e.Name, e.Usage+" "+state, left, width)
		}
	}
	fmt.Fprint(w, sb.String())
}

func writeEntry(sb *strings.Builder, leftPart, usage string, left, width int) {
	lines := wrapText(usage, max(10, width-left-6))
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "    %-*s %s\n", left, leftPart, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(sb, "    %s %s\n", strings.Repeat(" ", left), l)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter prints diagnostics with the offending source line and a caret
// underline beneath it.
type Reporter struct {
	filename string
	lines    []string
	out      io.Writer
}

func NewReporter(filename, source string, out io.Writer) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n"), out: out}
}

// ReportError prints err. Errors that are not *Error (I/O, toolchain) are
// printed without a source excerpt.
func (r *Reporter) ReportError(err error) {
	var de *Error
	if errors.As(err, &de) {
		r.Report(FromError(de))
		return
	}
	fmt.Fprintf(r.out, "%s: %s %v\n", r.filename, color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}

func (r *Reporter) Report(d Diagnostic) {
	fmt.Fprint(r.out, r.Format(d))
}

func (r *Reporter) Format(d Diagnostic) string {
	var sb strings.Builder
	levelColor := color.New(color.FgRed, color.Bold)
	if d.Level == LevelWarning {
		levelColor = color.New(color.FgYellow, color.Bold)
	}

	loc := r.filename
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", r.filename, d.Line, d.Col)
	}
	fmt.Fprintf(&sb, "%s: %s %s", loc, levelColor.Sprintf("%s:", d.Level), d.Message)
	if d.Level == LevelWarning && d.Name != "" {
		fmt.Fprintf(&sb, " [-W%s]", d.Name)
	}
	sb.WriteString("\n")
	r.writeSourceLine(&sb, d)
	return sb.String()
}

func (r *Reporter) writeSourceLine(sb *strings.Builder, d Diagnostic) {
	if d.Line <= 0 || d.Line > len(r.lines) {
		return
	}
	line := strings.TrimRight(r.lines[d.Line-1], "\r")
	fmt.Fprintf(sb, "  %s\n", line)

	col := d.Col
	if col < 1 {
		col = 1
	}
	marker := "^"
	if d.Len > 1 {
		marker += strings.Repeat("~", d.Len-1)
	}
	fmt.Fprintf(sb, "  %s%s\n", strings.Repeat(" ", col-1), color.New(color.FgGreen).Sprint(marker))
}

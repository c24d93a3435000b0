package lsp

import (
	"strings"
	"unicode/utf16"
)

// lines maps the lexer's 1-based rune columns onto LSP positions, which
// count UTF-16 code units.
type lines []string

func splitLines(src string) lines { return strings.Split(src, "\n") }

// span returns the 0-based UTF-16 offset and length of n runes starting at
// column col of line, clipped to the line. The length is at least 1.
func (ls lines) span(line, col, n int) (start, length uint32) {
	n = max(n, 1)
	if line < 1 || line > len(ls) {
		return uint32(max(col-1, 0)), uint32(n)
	}
	runes := []rune(ls[line-1])
	from := min(max(col-1, 0), len(runes))
	to := min(from+n, len(runes))
	return units(runes[:from]), max(units(runes[from:to]), 1)
}

func units(runes []rune) uint32 {
	var n uint32
	for _, r := range runes {
		if l := utf16.RuneLen(r); l > 0 {
			n += uint32(l)
		} else {
			n++
		}
	}
	return n
}

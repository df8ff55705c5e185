package styles

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// DisplayWidth measures the rendered width of s, ignoring ANSI escape
// sequences and counting grapheme clusters rather than runes.
func DisplayWidth(s string) int {
	return uniseg.StringWidth(ansi.Strip(s))
}

// Truncate shortens s to at most width display cells, appending an
// ellipsis when something was cut. Safe for multi-cell runes.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if DisplayWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width-1, "…")
}

// PadRight pads s with spaces to exactly width display cells.
func PadRight(s string, width int) string {
	gap := width - DisplayWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// dropped lists codepoints tcell measures wrongly or that reorder the
// line: skin tone modifiers, joiners, variation selectors and bidi
// overrides. A thumbs up with a skin tone becomes a plain thumbs up.
var dropped = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200F, Stride: 1},
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2066, Hi: 0x2069, Stride: 1},
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F3FB, Hi: 0x1F3FF, Stride: 1},
		{Lo: 0xE0100, Hi: 0xE01EF, Stride: 1},
	},
}

// sanitizeForTerminal removes the runes in dropped and control
// characters other than newline and tab.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(dropped, r) || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, s)
}

// display makes remote text safe for a dynamic-color view.
func display(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

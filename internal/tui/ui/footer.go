package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Footer is the bottom line: the page stack on the left and the current
// flash message on the right.
type Footer struct {
	*tview.Flex
	crumbs *tview.TextView
	flash  *tview.TextView
	theme  *Theme
}

// NewFooter creates an empty footer.
func NewFooter(theme *Theme) *Footer {
	f := &Footer{
		Flex:   tview.NewFlex(),
		crumbs: tview.NewTextView().SetDynamicColors(true),
		flash:  tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignRight),
		theme:  theme,
	}
	f.crumbs.SetBackgroundColor(theme.BgColor)
	f.flash.SetBackgroundColor(theme.BgColor)
	f.AddItem(f.crumbs, 0, 1, false).
		AddItem(f.flash, 0, 2, false)
	return f
}

// SetStack renders the page stack, bottom first, the front page
// highlighted.
func (f *Footer) SetStack(stack []string) {
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg, attr := f.theme.CrumbInactiveFg, f.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = f.theme.CrumbActiveFg, f.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]",
			colorName(fg), colorName(bg), attr, tview.Escape(name)))
	}
	f.crumbs.SetText(strings.Join(parts, " "))
}

// SetFlash renders msg. A nil msg clears it.
func (f *Footer) SetFlash(msg *FlashMessage) {
	if msg == nil {
		f.flash.SetText("")
		return
	}
	color, icon := f.theme.FlashInfoColor, "ℹ"
	switch msg.Level {
	case FlashWarn:
		color, icon = f.theme.FlashWarnColor, "⚠"
	case FlashErr:
		color, icon = f.theme.FlashErrColor, "✗"
	}
	f.flash.SetText(fmt.Sprintf("[%s]%s %s[-] ", colorName(color), icon, tview.Escape(msg.Text)))
}

package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// HeaderHeight is the number of terminal rows the header takes.
const HeaderHeight = 7

// MenuHint is a shortcut shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool
}

// Component is a page that can describe itself in the header.
type Component interface {
	Name() string
	Hints() []MenuHint
}

// Header is the top bar: profile summary, key hints and the logo.
type Header struct {
	*tview.Flex
	Info *ProfileInfo
	Menu *Menu
}

// NewHeader lays out the header panels.
func NewHeader(theme *Theme) *Header {
	h := &Header{
		Flex: tview.NewFlex(),
		Info: NewProfileInfo(theme),
		Menu: NewMenu(theme),
	}
	h.AddItem(h.Info, 32, 0, false).
		AddItem(h.Menu, 0, 1, false).
		AddItem(newLogo(theme), 20, 0, false)
	return h
}

// Menu lays the front page's shortcuts out in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
	rows  int
}

// NewMenu creates an empty menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme, rows: HeaderHeight - 1}
}

// Update renders hints column by column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.render(hints))
}

func (m *Menu) render(hints []MenuHint) string {
	if len(hints) == 0 {
		return ""
	}
	cols := (len(hints) + m.rows - 1) / m.rows
	widths := make([]int, cols)
	for i, h := range hints {
		widths[i/m.rows] = max(widths[i/m.rows], hintWidth(h))
	}

	var b strings.Builder
	for row := 0; row < m.rows && row < len(hints); row++ {
		for col := range cols {
			i := col*m.rows + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			kc := m.theme.MenuKeyColor
			if h.Numeric {
				kc = m.theme.NumericKeyColor
			}
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", colorName(kc), tview.Escape(h.Key), h.Description)
			if col < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[col]-hintWidth(h)+2))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func hintWidth(h MenuHint) int {
	return tview.TaggedStringWidth(h.Key) + tview.TaggedStringWidth(h.Description) + 3
}

func newLogo(theme *Theme) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := colorName(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%[1]s::b]╦╔╦╗╔═╗╔═╗╦═╗╔═╗[-:-:-]\n"+
			"[%[1]s::b]║║║║║  ║ ║╠╦╝║╣ [-:-:-]\n"+
			"[%[1]s::b]╩╩ ╩╚═╝╚═╝╩╚═╚═╝[-:-:-]\n"+
			"[%[2]s]instant messaging core[-:-:-]",
		title, colorName(theme.FgColor),
	)
	return tv
}

// colorName returns a tview color tag for c.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

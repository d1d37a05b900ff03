package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

var buddyColumns = []column{
	{title: "NAME", expansion: 2},
	{title: "ACCOUNT", expansion: 1},
	{title: "STATUS"},
}

// BuddyList shows groups and their contacts. Group rows are headers; a
// contact with several buddies gets one row per buddy.
type BuddyList struct {
	*tview.Table
	theme    *ui.Theme
	groups   []api.Group
	rows     map[int]api.Buddy
	filter   string
	accounts func(id string) string
	offline  bool
}

// NewBuddyList creates an empty buddy list. accountName maps an account
// id to a label; it may be nil.
func NewBuddyList(theme *ui.Theme, accountName func(id string) string) *BuddyList {
	if accountName == nil {
		accountName = func(id string) string { return id }
	}
	return &BuddyList{
		Table:    newTable(theme, " Buddies "),
		theme:    theme,
		rows:     make(map[int]api.Buddy),
		accounts: accountName,
	}
}

func (bl *BuddyList) Name() string { return "Buddies" }

func (bl *BuddyList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Message"},
		{Key: "o", Description: "Show offline"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
	}
}

// Update replaces the groups.
func (bl *BuddyList) Update(groups []api.Group) {
	bl.groups = groups
	bl.render()
}

// SetFilter narrows the list to buddies matching f.
func (bl *BuddyList) SetFilter(f string) {
	bl.filter = f
	bl.render()
}

// ToggleOffline switches between online buddies only and everyone.
func (bl *BuddyList) ToggleOffline() {
	bl.offline = !bl.offline
	bl.render()
}

func (bl *BuddyList) render() {
	bl.Clear()
	setHeader(bl.Table, bl.theme, buddyColumns)
	clear(bl.rows)

	row, shown := 1, 0
	for _, g := range bl.groups {
		header := row
		row++
		for _, c := range g.Contacts {
			for _, b := range c.Buddies {
				if !b.Visible || (!bl.offline && !b.Online) {
					continue
				}
				if !containsFold(bl.filter, c.Name, b.Name, b.Alias, g.Name) {
					continue
				}
				state, color := "offline", bl.theme.OfflineColor
				if b.Online {
					state, color = "online", bl.theme.OnlineColor
				}
				name := c.Name
				if len(c.Buddies) > 1 {
					name = fmt.Sprintf("%s [%s]", c.Name, b.Name)
				}
				bl.SetCell(row, 0, cell("  "+display(name), bl.theme.FgColor).SetExpansion(2))
				bl.SetCell(row, 1, cell(display(bl.accounts(b.AccountID)), bl.theme.FgColor).SetExpansion(1))
				bl.SetCell(row, 2, cell(state, color))
				bl.rows[row] = b
				row++
				shown++
			}
		}
		if row == header+1 && (bl.filter != "" || !bl.offline) {
			// Nothing of this group survived; reuse the row.
			row = header
			continue
		}
		bl.SetCell(header, 0, tview.NewTableCell(fmt.Sprintf(" %s (%d/%d)", tview.Escape(g.Name), g.Online, g.Current)).
			SetTextColor(bl.theme.GroupColor).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	bl.SetTitle(fmt.Sprintf(" Buddies (%d) ", shown))
}

// Selected returns the buddy under the cursor.
func (bl *BuddyList) Selected() (api.Buddy, bool) {
	row, _ := bl.GetSelection()
	b, ok := bl.rows[row]
	return b, ok
}

package views

import (
	"fmt"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

var accountColumns = []column{
	{title: "USERNAME", expansion: 2},
	{title: "PROTOCOL", expansion: 1},
	{title: "ENABLED"},
	{title: "STATE"},
	{title: "PRESENCE"},
	{title: "ERROR", expansion: 2},
}

// AccountList is the table of configured accounts.
type AccountList struct {
	*tview.Table
	theme    *ui.Theme
	accounts []api.Account
	visible  []api.Account
	filter   string
}

// NewAccountList creates an empty account table.
func NewAccountList(theme *ui.Theme) *AccountList {
	return &AccountList{
		Table: newTable(theme, " Accounts "),
		theme: theme,
	}
}

func (al *AccountList) Name() string { return "Accounts" }

func (al *AccountList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Details"},
		{Key: "e", Description: "Enable/Disable"},
		{Key: "c", Description: "Connect"},
		{Key: "x", Description: "Disconnect"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
	}
}

// Update replaces the rows, keeping the filter.
func (al *AccountList) Update(accounts []api.Account) {
	al.accounts = accounts
	al.render()
}

// SetFilter narrows the rows to accounts matching f.
func (al *AccountList) SetFilter(f string) {
	al.filter = f
	al.render()
}

func (al *AccountList) render() {
	al.Clear()
	setHeader(al.Table, al.theme, accountColumns)

	al.visible = al.visible[:0]
	for _, a := range al.accounts {
		if !containsFold(al.filter, a.Username, a.Alias, a.ProtocolID) {
			continue
		}
		al.visible = append(al.visible, a)
		row := len(al.visible)

		name := a.Username
		if a.Alias != "" {
			name = fmt.Sprintf("%s (%s)", a.Username, a.Alias)
		}
		fg := al.theme.FgColor
		al.SetCell(row, 0, cell(display(name), fg).SetExpansion(2))
		al.SetCell(row, 1, cell(a.ProtocolID, fg).SetExpansion(1))
		al.SetCell(row, 2, cell(yesNo(a.Enabled), fg))
		al.SetCell(row, 3, cell(a.State, al.theme.PresenceColor(a.State)))
		al.SetCell(row, 4, cell(a.Presence, al.theme.PresenceColor(a.Presence)))
		errText := a.Error
		if a.ErrorKind != "" {
			errText = a.ErrorKind + ": " + a.Error
		}
		al.SetCell(row, 5, cell(display(errText), al.theme.FlashErrColor).SetExpansion(2))
	}

	clampSelection(al.Table, len(al.visible))
	if al.filter != "" {
		al.SetTitle(fmt.Sprintf(" Accounts (%d/%d) filter: %s ", len(al.visible), len(al.accounts), tview.Escape(al.filter)))
	} else {
		al.SetTitle(fmt.Sprintf(" Accounts (%d) ", len(al.accounts)))
	}
}

// Selected returns the account under the cursor.
func (al *AccountList) Selected() (api.Account, bool) {
	if i := selectedIndex(al.Table, len(al.visible)); i >= 0 {
		return al.visible[i], true
	}
	return api.Account{}, false
}

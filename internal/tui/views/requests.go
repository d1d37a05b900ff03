package views

import (
	"fmt"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

var requestColumns = []column{
	{title: "KIND"},
	{title: "ACCOUNT", expansion: 1},
	{title: "TITLE", expansion: 2},
	{title: "AGE"},
}

// RequestList shows the pending requests with the selected one's text
// underneath. Info requests may carry a pairing code in Data, rendered
// verbatim so a QR block stays scannable.
type RequestList struct {
	*tview.Flex
	theme    *ui.Theme
	table    *tview.Table
	detail   *tview.TextView
	requests []api.Request
	accounts func(id string) string
}

// NewRequestList creates an empty request pane.
func NewRequestList(theme *ui.Theme, accountName func(id string) string) *RequestList {
	if accountName == nil {
		accountName = func(id string) string { return id }
	}
	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	detail.SetBorder(true)
	detail.SetBorderColor(theme.BorderColor)
	detail.SetBackgroundColor(theme.BgColor)
	detail.SetTextColor(theme.FgColor)
	detail.SetTitleColor(theme.TitleColor)

	rl := &RequestList{
		theme:    theme,
		table:    newTable(theme, " Requests "),
		detail:   detail,
		accounts: accountName,
	}
	rl.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rl.table, 0, 1, true).
		AddItem(detail, 0, 2, false)
	rl.table.SetSelectionChangedFunc(func(int, int) { rl.renderDetail() })
	return rl
}

func (rl *RequestList) Name() string { return "Requests" }

func (rl *RequestList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Answer"},
		{Key: "x", Description: "Dismiss"},
		{Key: "Esc", Description: "Back"},
	}
}

// Table returns the request table, for focus and selection callbacks.
func (rl *RequestList) Table() *tview.Table {
	return rl.table
}

// Update replaces the requests.
func (rl *RequestList) Update(reqs []api.Request) {
	rl.requests = reqs
	rl.table.Clear()
	setHeader(rl.table, rl.theme, requestColumns)
	for i, r := range reqs {
		row := i + 1
		fg := rl.theme.FgColor
		if r.Kind == "password" {
			fg = rl.theme.FlashWarnColor
		}
		account := ""
		if r.AccountID != "" {
			account = rl.accounts(r.AccountID)
		}
		rl.table.SetCell(row, 0, cell(r.Kind, fg))
		rl.table.SetCell(row, 1, cell(display(account), fg).SetExpansion(1))
		rl.table.SetCell(row, 2, cell(display(r.Title), fg).SetExpansion(2))
		rl.table.SetCell(row, 3, cell(formatTimestamp(r.CreatedAtMs), fg))
	}
	rl.table.SetTitle(fmt.Sprintf(" Requests (%d) ", len(reqs)))
	clampSelection(rl.table, len(reqs))
	rl.renderDetail()
}

func (rl *RequestList) renderDetail() {
	rl.detail.Clear()
	r, ok := rl.Selected()
	if !ok {
		rl.detail.SetTitle(" No pending requests ")
		return
	}
	rl.detail.SetTitle(" " + display(r.Title) + " ")
	_, _ = fmt.Fprintf(rl.detail, "\n [::b]%s[-:-:-]\n", display(r.Primary))
	if r.Secondary != "" {
		_, _ = fmt.Fprintf(rl.detail, "\n %s\n", display(r.Secondary))
	}
	if r.Data != "" {
		_, _ = fmt.Fprintf(rl.detail, "\n%s\n", tview.Escape(r.Data))
	}
	if r.Kind == "password" {
		_, _ = fmt.Fprint(rl.detail, "\n [::d]Press Enter to answer.[-:-:-]")
	}
}

// Selected returns the request under the cursor.
func (rl *RequestList) Selected() (api.Request, bool) {
	if i := selectedIndex(rl.table, len(rl.requests)); i >= 0 {
		return rl.requests[i], true
	}
	return api.Request{}, false
}

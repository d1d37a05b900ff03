package views

import (
	"fmt"
	"sort"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

// AccountDetails shows one account, its settings and its recent log.
type AccountDetails struct {
	*tview.TextView
	theme *ui.Theme
	id    string
	log   []api.LogEntry
}

// NewAccountDetails creates an empty details page.
func NewAccountDetails(theme *ui.Theme) *AccountDetails {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)
	return &AccountDetails{TextView: tv, theme: theme}
}

func (ad *AccountDetails) Name() string { return "Details" }

func (ad *AccountDetails) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "e", Description: "Enable/Disable"},
		{Key: "c", Description: "Connect"},
		{Key: "x", Description: "Disconnect"},
		{Key: "Esc", Description: "Back"},
	}
}

// AccountID returns the account shown, if any.
func (ad *AccountDetails) AccountID() string {
	return ad.id
}

// Refresh redraws with fresh account data and the last log.
func (ad *AccountDetails) Refresh(a api.Account) {
	if a.ID == ad.id {
		ad.Update(a, ad.log)
	}
}

// Update renders a and its log, newest entry first.
func (ad *AccountDetails) Update(a api.Account, log []api.LogEntry) {
	ad.id = a.ID
	ad.log = log
	ad.Clear()
	ad.SetTitle(fmt.Sprintf(" %s Details ", display(a.Username)))

	fg := fmt.Sprintf("#%06x", ad.theme.FgColor.Hex())
	ct := fmt.Sprintf("#%06x", ad.theme.CounterColor.Hex())
	field := func(name, value string) {
		_, _ = fmt.Fprintf(ad, " [%s::b]%-10s[-:-:-] [%s]%s[-]\n", fg, name+":", ct, display(value))
	}

	_, _ = fmt.Fprintln(ad)
	field("ID", a.ID)
	field("Username", a.Username)
	field("Alias", a.Alias)
	field("Protocol", a.ProtocolID)
	field("Enabled", yesNo(a.Enabled))
	field("State", a.State)
	field("Presence", a.Presence)
	if a.Error != "" {
		field("Error", a.ErrorKind+": "+a.Error)
	}

	if len(a.Settings) > 0 {
		_, _ = fmt.Fprint(ad, "\n [::b]Settings[-:-:-]\n")
		names := make([]string, 0, len(a.Settings))
		for name := range a.Settings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			field(name, a.Settings[name])
		}
	}

	_, _ = fmt.Fprint(ad, "\n [::b]Log[-:-:-]\n")
	if len(log) == 0 {
		_, _ = fmt.Fprint(ad, " [::d]empty[-:-:-]\n")
	}
	for _, e := range log {
		ts := time.UnixMilli(e.LoggedAtMs).Format("01/02 15:04:05")
		_, _ = fmt.Fprintf(ad, " [::d]%s[-:-:-] %-12s %s\n", ts, e.Kind, display(e.Message))
	}
}

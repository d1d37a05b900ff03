package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView is the key and command reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates the help page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	kc := fmt.Sprintf("#%06x", theme.MenuKeyColor.Hex())
	help := `
  [::b]Global[-:-:-]

  {:}       Command mode        {Esc}     Back
  {/}       Filter the page     {?}       Help
  {a}       Accounts            {b}       Buddies
  {m}       Conversations       {r}       Requests
  {s}       Search              {q}       Quit

  [::b]Accounts[-:-:-]

  {Enter}   Details and log     {e}       Enable or disable
  {c}       Connect             {x}       Disconnect

  [::b]Buddies[-:-:-]

  {Enter}   Message buddy       {o}       Show offline buddies

  [::b]Conversations and thread[-:-:-]

  {Enter}   Open                {1-9}     Open Nth conversation
  {i}       Focus composer      {Esc}     Leave composer

  [::b]Requests[-:-:-]

  {Enter}   Answer password     {x}       Dismiss

  [::b]Commands[-:-:-]

  {:online} / {:offline}            Toggle the global online state
  {:status <account> <status>}      Set an account status, e.g. away
  {:msg <account> <name>}           Open a conversation
  {:add <account> <name> [group[]}   Add a buddy
  {:search <query>}                 Search message history
  {:quit}                           Quit
`
	help = strings.NewReplacer("{", "["+kc+"]", "}", "[-:-:-]").Replace(help)
	_, _ = fmt.Fprint(tv, help)
	return &HelpView{TextView: tv}
}

func (hv *HelpView) Name() string { return "Help" }

func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

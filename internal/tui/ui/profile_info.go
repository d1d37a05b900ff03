package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData is the header summary of the daemon.
type ProfileData struct {
	Profile       string
	State         string
	Online        bool
	Accounts      int
	Connected     int
	Buddies       int
	Conversations int
	Pending       int
	Uptime        time.Duration
}

// ProfileInfo renders ProfileData in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates the header panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update redraws the panel. A nil d clears it.
func (pi *ProfileInfo) Update(d *ProfileData) {
	pi.Clear()
	if d == nil {
		return
	}

	fg := colorName(pi.theme.FgColor)
	ct := colorName(pi.theme.CounterColor)
	state := d.State
	if !d.Online {
		state += " (offline)"
	}
	pending := fmt.Sprintf("[%s]%d[-]", ct, d.Pending)
	if d.Pending > 0 {
		pending = fmt.Sprintf("[%s::b]%d[-:-:-]", colorName(pi.theme.FlashWarnColor), d.Pending)
	}

	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Accounts:[-:-:-] [%s]%d/%d[-]\n"+
			"[%s::b]Buddies:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Convs:[-:-:-]    [%s]%d[-]\n"+
			"[%s::b]Requests:[-:-:-] %s\n"+
			"[%s::b]Uptime:[-:-:-]   [%s]%s[-]",
		fg, ct, tview.Escape(d.Profile),
		fg, ct, state,
		fg, ct, d.Connected, d.Accounts,
		fg, ct, d.Buddies,
		fg, ct, d.Conversations,
		fg, pending,
		fg, ct, formatDuration(d.Uptime),
	)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the TUI colors.
type Theme struct {
	BgColor     tcell.Color
	FgColor     tcell.Color
	BorderColor tcell.Color
	TitleColor  tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	// Header and footer.
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	CounterColor      tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	// Presence of buddies and accounts.
	OnlineColor  tcell.Color
	AwayColor    tcell.Color
	OfflineColor tcell.Color
	GroupColor   tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	accent := tcell.ColorMediumPurple
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorLightSteelBlue,
		BorderColor: tcell.ColorSteelBlue,
		TitleColor:  accent,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorLightSkyBlue,

		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     accent,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorSteelBlue,
		MenuKeyColor:      tcell.ColorLightSkyBlue,
		NumericKeyColor:   accent,
		CounterColor:      tcell.ColorWheat,
		PromptBorderColor: accent,

		FlashInfoColor: tcell.ColorWheat,
		FlashWarnColor: tcell.ColorDarkOrange,
		FlashErrColor:  tcell.ColorCrimson,

		OnlineColor:  tcell.ColorSpringGreen,
		AwayColor:    tcell.ColorGold,
		OfflineColor: tcell.ColorDimGray,
		GroupColor:   accent,
	}
}

// PresenceColor picks the color for a presence primitive or connection
// state as reported by the daemon.
func (t *Theme) PresenceColor(state string) tcell.Color {
	switch state {
	case "available", "streaming", "connected":
		return t.OnlineColor
	case "away", "idle", "dnd", "connecting":
		return t.AwayColor
	default:
		return t.OfflineColor
	}
}

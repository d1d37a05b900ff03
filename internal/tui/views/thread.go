package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/conversation"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread shows one conversation with a composer below it.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	onSend   func(text string)
	onTyping func(state string)
	typing   bool
}

// NewMessageThread creates an empty thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	mt := &MessageThread{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(messages, 0, 1, true).
			AddItem(composer, 3, 0, false),
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetChangedFunc(func(text string) {
		typing := text != ""
		if typing != mt.typing && mt.onTyping != nil {
			state := "none"
			if typing {
				state = "typing"
			}
			mt.onTyping(state)
		}
		mt.typing = typing
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		if text := strings.TrimSpace(composer.GetText()); text != "" {
			mt.onSend(text)
			// Sending clears the typing state on the daemon side.
			mt.typing = false
			composer.SetText("")
		}
	})
	return mt
}

func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnSend sets the callback for a submitted message.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnTyping sets the callback run when the composer goes from empty to
// non-empty or back. state is "typing" or "none".
func (mt *MessageThread) SetOnTyping(fn func(state string)) {
	mt.onTyping = fn
}

// Update renders the thread. Messages arrive newest first.
func (mt *MessageThread) Update(title, typing string, msgs []api.Message) {
	mt.title = title
	t := " " + tview.Escape(title) + " "
	if typing == "typing" || typing == "paused" {
		t = fmt.Sprintf(" %s [::d](%s)[-:-:-] ", tview.Escape(title), typing)
	}
	mt.messages.SetTitle(t)

	mt.messages.Clear()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		author := m.Author
		if m.Outgoing {
			author = "You"
		}
		mark := ""
		switch flags := conversation.MessageFlags(m.Flags); {
		case flags&conversation.FlagDelayed != 0:
			mark = " [::d](queued)[-:-:-]"
		case flags&conversation.FlagError != 0:
			mark = fmt.Sprintf(" [%s](error)[-]", colorTag(mt.theme.FlashErrColor))
		}
		if conversation.MessageFlags(m.Flags)&conversation.FlagSystem != 0 {
			_, _ = fmt.Fprintf(mt.messages, "[::d]%s %s[-:-:-]\n\n", formatTimestamp(m.TimestampMs), display(m.Body))
			continue
		}
		_, _ = fmt.Fprintf(mt.messages, "[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			display(author), formatTimestamp(m.TimestampMs), mark, display(m.Body))
	}
	mt.messages.ScrollToEnd()
}

// Messages returns the history view, for focus.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the input field, for focus.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// Reset clears the composer without reporting a typing change.
func (mt *MessageThread) Reset() {
	mt.typing = false
	onTyping := mt.onTyping
	mt.onTyping = nil
	mt.composer.SetText("")
	mt.onTyping = onTyping
}

func colorTag(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}

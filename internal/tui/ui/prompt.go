package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what a submitted prompt means.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

const historySize = 50

// Prompt is the ":" command and "/" filter bar. Up and Down walk back
// through earlier commands.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	history  []string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a hidden prompt.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input}
	input.SetDoneFunc(p.done)
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			p.Recall(-1)
			return nil
		case tcell.KeyDown:
			p.Recall(1)
			return nil
		}
		return ev
	})
	return p
}

func (p *Prompt) done(key tcell.Key) {
	text := p.GetText()
	p.SetText("")
	switch key {
	case tcell.KeyEnter:
		if p.mode == PromptCommand && text != "" {
			p.remember(text)
		}
		// An empty filter clears the current one; an empty command
		// cancels.
		if p.onSubmit != nil && (text != "" || p.mode == PromptFilter) {
			p.onSubmit(p.mode, text)
			return
		}
	case tcell.KeyEscape:
	default:
		return
	}
	if p.onCancel != nil {
		p.onCancel()
	}
}

func (p *Prompt) remember(cmd string) {
	if n := len(p.history); n > 0 && p.history[n-1] == cmd {
		return
	}
	p.history = append(p.history, cmd)
	if len(p.history) > historySize {
		p.history = p.history[1:]
	}
}

// Recall moves through the command history; dir is -1 for older and 1
// for newer. Moving past the newest entry clears the field.
func (p *Prompt) Recall(dir int) {
	if p.mode != PromptCommand || len(p.history) == 0 {
		return
	}
	p.cursor = min(max(p.cursor+dir, 0), len(p.history))
	if p.cursor == len(p.history) {
		p.SetText("")
		return
	}
	p.SetText(p.history[p.cursor])
}

// SetOnSubmit sets the callback for Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Escape or an empty command.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the prompt and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history)
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
}

// Mode returns the active mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages keeps a navigation history over tview.Pages. Only the top page
// is visible.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates an empty stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange registers fn to run after every stack change.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push brings name to the front. If name is already on the stack,
// everything above it is dropped instead of growing the history. Pushing
// the front page is a no-op.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	if i := slices.Index(p.stack, name); i >= 0 {
		p.show(p.stack[:i+1])
		return
	}
	p.show(append(p.stack, name))
}

// Pop drops the front page and returns its name. The bottom page stays;
// popping it returns "".
func (p *Pages) Pop() string {
	if len(p.stack) < 2 {
		return ""
	}
	top := p.Current()
	p.show(p.stack[:len(p.stack)-1])
	return top
}

// Reset makes name the only page.
func (p *Pages) Reset(name string) {
	p.show([]string{name})
}

// Current returns the front page, or "" before the first Reset.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the history, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

func (p *Pages) show(stack []string) {
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = stack
	front := p.Current()
	p.ShowPage(front)
	p.SendToFront(front)
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

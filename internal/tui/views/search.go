package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

var searchColumns = []column{
	{title: "FROM", expansion: 1},
	{title: "MESSAGE", expansion: 3},
	{title: "TIME"},
}

// SearchView runs full text queries over the message history.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	data    []api.Message
	onQuery func(query string)
}

// NewSearchView creates an empty search page.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	sv := &SearchView{
		theme:   theme,
		input:   input,
		results: newTable(theme, " Results "),
	}
	sv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(sv.results, 0, 1, false)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			sv.Submit()
		}
	})
	return sv
}

func (sv *SearchView) Name() string { return "Search" }

func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnQuery sets the callback for a submitted query.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// SetQuery fills the input, as if typed.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Submit runs the query in the input field.
func (sv *SearchView) Submit() {
	if q := sv.input.GetText(); q != "" && sv.onQuery != nil {
		sv.onQuery(q)
	}
}

// Update shows results.
func (sv *SearchView) Update(msgs []api.Message) {
	sv.data = msgs
	sv.results.Clear()
	setHeader(sv.results, sv.theme, searchColumns)
	for i, m := range msgs {
		from := m.Author
		if m.Outgoing {
			from = "You"
		}
		sv.results.SetCell(i+1, 0, cell(display(from), sv.theme.FgColor).SetExpansion(1).SetMaxWidth(25))
		sv.results.SetCell(i+1, 1, cell(display(m.Body), sv.theme.FgColor).SetExpansion(3))
		sv.results.SetCell(i+1, 2, cell(formatTimestamp(m.TimestampMs), sv.theme.FgColor))
	}
	clampSelection(sv.results, len(msgs))
}

// Selected returns the message under the cursor.
func (sv *SearchView) Selected() (api.Message, bool) {
	if i := selectedIndex(sv.results, len(sv.data)); i >= 0 {
		return sv.data[i], true
	}
	return api.Message{}, false
}

// Input returns the query field.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the result table.
func (sv *SearchView) Results() *tview.Table { return sv.results }

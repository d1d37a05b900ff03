package views

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

var conversationColumns = []column{
	{title: "TITLE", expansion: 2},
	{title: "ACCOUNT", expansion: 1},
	{title: "TYPE"},
	{title: "TYPING"},
	{title: "MSGS", align: tview.AlignRight},
}

// ConversationList is the table of open conversations.
type ConversationList struct {
	*tview.Table
	theme    *ui.Theme
	convs    []api.Conversation
	visible  []api.Conversation
	filter   string
	accounts func(id string) string
}

// NewConversationList creates an empty conversation table.
func NewConversationList(theme *ui.Theme, accountName func(id string) string) *ConversationList {
	if accountName == nil {
		accountName = func(id string) string { return id }
	}
	return &ConversationList{
		Table:    newTable(theme, " Conversations "),
		theme:    theme,
		accounts: accountName,
	}
}

func (cl *ConversationList) Name() string { return "Conversations" }

func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows, keeping the filter.
func (cl *ConversationList) Update(convs []api.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetFilter narrows the rows to conversations matching f.
func (cl *ConversationList) SetFilter(f string) {
	cl.filter = f
	cl.render()
}

func (cl *ConversationList) render() {
	cl.Clear()
	setHeader(cl.Table, cl.theme, conversationColumns)

	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if !containsFold(cl.filter, c.Title, c.Name, c.Topic) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)

		fg := cl.theme.FgColor
		if !c.Online {
			fg = cl.theme.OfflineColor
		}
		typing := ""
		if c.Typing != "none" {
			typing = c.Typing
		}
		cl.SetCell(row, 0, cell(display(c.Title), fg).SetExpansion(2))
		cl.SetCell(row, 1, cell(display(cl.accounts(c.AccountID)), fg).SetExpansion(1))
		cl.SetCell(row, 2, cell(c.Type, fg))
		cl.SetCell(row, 3, cell(typing, cl.theme.AwayColor))
		cl.SetCell(row, 4, cell(strconv.Itoa(c.Messages), fg).SetAlign(tview.AlignRight))
	}

	clampSelection(cl.Table, len(cl.visible))
	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the conversation under the cursor.
func (cl *ConversationList) Selected() (api.Conversation, bool) {
	if i := selectedIndex(cl.Table, len(cl.visible)); i >= 0 {
		return cl.visible[i], true
	}
	return api.Conversation{}, false
}

// ByIndex returns the nth visible conversation, counting from 1.
func (cl *ConversationList) ByIndex(n int) (api.Conversation, bool) {
	if n < 1 || n > len(cl.visible) {
		return api.Conversation{}, false
	}
	return cl.visible[n-1], true
}

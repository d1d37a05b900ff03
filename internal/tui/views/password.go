package views

import (
	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

// PasswordForm answers a password request.
type PasswordForm struct {
	*tview.Form
	request  api.Request
	onAnswer func(req api.Request, password string, remember bool)
	onCancel func(req api.Request)
}

// NewPasswordForm creates the form. Call Show before displaying it.
func NewPasswordForm(theme *ui.Theme) *PasswordForm {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)
	return &PasswordForm{Form: form}
}

func (pf *PasswordForm) Name() string { return "Password" }

func (pf *PasswordForm) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Esc", Description: "Cancel"},
	}
}

// SetOnAnswer sets the callback for OK.
func (pf *PasswordForm) SetOnAnswer(fn func(req api.Request, password string, remember bool)) {
	pf.onAnswer = fn
}

// SetOnCancel sets the callback for Cancel.
func (pf *PasswordForm) SetOnCancel(fn func(req api.Request)) {
	pf.onCancel = fn
}

// Show rebuilds the form for req.
func (pf *PasswordForm) Show(req api.Request) {
	pf.request = req
	pf.Clear(true)
	pf.SetTitle(" " + display(req.Title) + " ")
	pf.AddTextView("", display(req.Primary), 0, 2, true, false)
	pf.AddPasswordField("Password", "", 0, '*', nil)
	pf.AddCheckbox("Remember", false, nil)
	pf.AddButton("OK", func() {
		password := pf.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		remember := pf.GetFormItemByLabel("Remember").(*tview.Checkbox).IsChecked()
		if pf.onAnswer != nil {
			pf.onAnswer(pf.request, password, remember)
		}
	})
	pf.AddButton("Cancel", func() {
		if pf.onCancel != nil {
			pf.onCancel(pf.request)
		}
	})
	pf.SetFocus(1)
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/client"
	"github.com/matheus3301/imcore/internal/tui/keys"
	"github.com/matheus3301/imcore/internal/tui/model"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/matheus3301/imcore/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageAccounts      = "accounts"
	pageDetails       = "details"
	pageBuddies       = "buddies"
	pageConversations = "conversations"
	pageThread        = "thread"
	pageRequests      = "requests"
	pagePassword      = "password"
	pageSearch        = "search"
	pageHelp          = "help"
)

const rpcTimeout = 10 * time.Second

// App is the terminal front end of a running daemon.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	client   *client.Client
	registry *keys.Registry
	flash    *ui.FlashModel
	profile  string

	header *ui.Header
	footer *ui.Footer
	prompt *ui.Prompt
	body   *tview.Flex

	accounts *views.AccountList
	details  *views.AccountDetails
	buddies  *views.BuddyList
	convs    *views.ConversationList
	thread   *views.MessageThread
	requests *views.RequestList
	password *views.PasswordForm
	search   *views.SearchView
	help     *views.HelpView

	components   map[string]ui.Component
	seenRequests map[string]bool
	promptActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp builds the UI for the daemon behind c.
func NewApp(c *client.Client, profile string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	vm := model.NewViewModel(c)

	a := &App{
		app:          tview.NewApplication(),
		theme:        theme,
		pages:        ui.NewPages(),
		vm:           vm,
		client:       c,
		registry:     keys.NewRegistry(),
		flash:        ui.NewFlashModel(),
		profile:      profile,
		header:       ui.NewHeader(theme),
		footer:       ui.NewFooter(theme),
		prompt:       ui.NewPrompt(theme),
		seenRequests: make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}
	a.accounts = views.NewAccountList(theme)
	a.details = views.NewAccountDetails(theme)
	a.buddies = views.NewBuddyList(theme, a.accountName)
	a.convs = views.NewConversationList(theme, a.accountName)
	a.thread = views.NewMessageThread(theme)
	a.requests = views.NewRequestList(theme, a.accountName)
	a.password = views.NewPasswordForm(theme)
	a.search = views.NewSearchView(theme)
	a.help = views.NewHelpView(theme)

	a.components = map[string]ui.Component{
		pageAccounts:      a.accounts,
		pageDetails:       a.details,
		pageBuddies:       a.buddies,
		pageConversations: a.convs,
		pageThread:        a.thread,
		pageRequests:      a.requests,
		pagePassword:      a.password,
		pageSearch:        a.search,
		pageHelp:          a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) accountName(id string) string {
	if acct, ok := a.vm.Account(id); ok {
		return acct.Username
	}
	return id
}

func (a *App) setupBindings() {
	global := []struct {
		name, label, desc string
		r                 rune
		key               tcell.Key
		fn                func()
	}{
		{"1-accounts", "a", "Accounts", 'a', tcell.KeyRune, func() { a.show(pageAccounts) }},
		{"2-buddies", "b", "Buddies", 'b', tcell.KeyRune, func() { a.show(pageBuddies) }},
		{"3-conversations", "m", "Conversations", 'm', tcell.KeyRune, func() { a.show(pageConversations) }},
		{"4-requests", "r", "Requests", 'r', tcell.KeyRune, func() { a.show(pageRequests) }},
		{"5-search", "s", "Search", 's', tcell.KeyRune, func() { a.show(pageSearch) }},
		{"6-help", "?", "Help", '?', tcell.KeyRune, func() { a.show(pageHelp) }},
		{"7-quit", "q", "Quit", 'q', tcell.KeyRune, a.Stop},
		{"command", ":", "", ':', tcell.KeyRune, func() { a.showPrompt(ui.PromptCommand) }},
		{"filter", "/", "", '/', tcell.KeyRune, func() { a.showPrompt(ui.PromptFilter) }},
		{"refresh", "ctrl-r", "", 0, tcell.KeyCtrlR, func() { a.run("refresh", a.vm.Refresh) }},
	}
	for _, g := range global {
		a.registry.AddGlobal(g.name, &keys.Action{
			Key: g.key, Rune: g.r, Label: g.label, Description: g.desc,
			Visible: g.desc != "", Handler: g.fn,
		})
	}

	accountActions := func(page string, selected func() (string, bool)) {
		a.registry.AddPage(page, "enable", &keys.Action{Key: tcell.KeyRune, Rune: 'e', Handler: func() {
			if id, ok := selected(); ok {
				acct, _ := a.vm.Account(id)
				a.run("enable", func(ctx context.Context) error {
					_, err := a.client.Accounts.SetEnabled(ctx, id, !acct.Enabled)
					return err
				})
			}
		}})
		a.registry.AddPage(page, "connect", &keys.Action{Key: tcell.KeyRune, Rune: 'c', Handler: func() {
			if id, ok := selected(); ok {
				a.run("connect", func(ctx context.Context) error {
					_, err := a.client.Accounts.Connect(ctx, id)
					return err
				})
			}
		}})
		a.registry.AddPage(page, "disconnect", &keys.Action{Key: tcell.KeyRune, Rune: 'x', Handler: func() {
			if id, ok := selected(); ok {
				a.run("disconnect", func(ctx context.Context) error {
					_, err := a.client.Accounts.Disconnect(ctx, id)
					return err
				})
			}
		}})
	}
	accountActions(pageAccounts, func() (string, bool) {
		acct, ok := a.accounts.Selected()
		return acct.ID, ok
	})
	accountActions(pageDetails, func() (string, bool) {
		id := a.details.AccountID()
		return id, id != ""
	})

	a.registry.AddPage(pageBuddies, "offline", &keys.Action{Key: tcell.KeyRune, Rune: 'o', Handler: a.buddies.ToggleOffline})
	a.registry.AddPage(pageRequests, "dismiss", &keys.Action{Key: tcell.KeyRune, Rune: 'x', Handler: func() {
		if req, ok := a.requests.Selected(); ok {
			a.run("dismiss", func(ctx context.Context) error { return a.client.Requests.Dismiss(ctx, req.ID) })
		}
	}})
	a.registry.AddPage(pageThread, "compose", &keys.Action{Key: tcell.KeyRune, Rune: 'i', Handler: func() {
		a.app.SetFocus(a.thread.Composer())
	}})
}

func (a *App) setupCallbacks() {
	a.accounts.SetSelectedFunc(func(int, int) {
		if acct, ok := a.accounts.Selected(); ok {
			a.openDetails(acct)
		}
	})
	a.buddies.SetSelectedFunc(func(int, int) {
		if b, ok := a.buddies.Selected(); ok {
			a.openIM(b.AccountID, b.Name)
		}
	})
	a.convs.SetSelectedFunc(func(int, int) {
		if c, ok := a.convs.Selected(); ok {
			a.openConversation(c)
		}
	})
	a.requests.Table().SetSelectedFunc(func(int, int) {
		if req, ok := a.requests.Selected(); ok && req.Kind == "password" {
			a.password.Show(req)
			a.show(pagePassword)
		}
	})
	a.search.Results().SetSelectedFunc(func(int, int) {
		m, ok := a.search.Selected()
		if !ok {
			return
		}
		for _, c := range a.vm.Conversations() {
			if c.AccountID == m.AccountID && c.ID == m.ConversationID {
				a.openConversation(c)
				return
			}
		}
		a.flash.Warn("That conversation is no longer open")
		a.footer.SetFlash(a.flash.Current())
	})

	a.thread.SetOnSend(func(text string) {
		a.run("send", func(ctx context.Context) error {
			queued, err := a.vm.SendText(ctx, text)
			if err == nil && queued {
				a.flash.Info("Offline: message queued")
			}
			return err
		})
	})
	a.thread.SetOnTyping(func(state string) {
		a.run("typing", func(ctx context.Context) error { return a.vm.SetTyping(ctx, state) })
	})
	a.search.SetOnQuery(func(query string) {
		a.run("search", func(ctx context.Context) error {
			msgs, err := a.vm.Search(ctx, query)
			if err != nil {
				return err
			}
			a.app.QueueUpdateDraw(func() {
				a.search.Update(msgs)
				a.app.SetFocus(a.search.Results())
			})
			return nil
		})
	})

	a.password.SetOnAnswer(func(req api.Request, password string, remember bool) {
		a.pages.Pop()
		a.focusCurrent()
		a.run("answer", func(ctx context.Context) error {
			return a.client.Requests.AnswerPassword(ctx, &api.AnswerPasswordRequest{
				ID: req.ID, Password: password, Remember: remember,
			})
		})
	})
	a.password.SetOnCancel(func(req api.Request) {
		a.pages.Pop()
		a.focusCurrent()
		a.run("cancel", func(ctx context.Context) error { return a.client.Requests.Dismiss(ctx, req.ID) })
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.applyFilter(text)
			return
		}
		a.execute(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		a.footer.SetStack(stack)
		a.updateMenu()
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageAccounts, a.accounts, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageBuddies, a.buddies, true, false)
	a.pages.AddPage(pageConversations, a.convs, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageRequests, a.requests, true, false)
	a.pages.AddPage(pagePassword, center(a.password, 60, 11), true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, ui.HeaderHeight, 0, false).
		AddItem(a.body, 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.capture)
	a.pages.Reset(pageAccounts)
	a.focusCurrent()
}

func (a *App) capture(event *tcell.EventKey) *tcell.EventKey {
	if a.promptActive {
		return event
	}
	page := a.pages.Current()

	if event.Key() == tcell.KeyEscape {
		if page == pageThread && a.app.GetFocus() == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if page == pageSearch && a.app.GetFocus() == a.search.Results() {
			a.app.SetFocus(a.search.Input())
			return nil
		}
		a.back()
		return nil
	}

	// Text widgets and the password form see every other key.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok || page == pagePassword {
		return event
	}

	if page == pageConversations && event.Key() == tcell.KeyRune {
		if r := event.Rune(); r >= '1' && r <= '9' {
			if c, ok := a.convs.ByIndex(int(r - '0')); ok {
				a.openConversation(c)
			}
			return nil
		}
	}

	if a.registry.HandleEvent(page, event) {
		return nil
	}
	return event
}

// show brings page to the front. Top level pages reset the stack.
func (a *App) show(page string) {
	switch page {
	case pageAccounts, pageBuddies, pageConversations, pageRequests:
		a.leaveThread()
		a.pages.Reset(page)
	default:
		a.pages.Push(page)
	}
	a.focusCurrent()
}

func (a *App) back() {
	if a.pages.Current() == pageThread {
		a.leaveThread()
	}
	a.pages.Pop()
	a.focusCurrent()
}

func (a *App) leaveThread() {
	if a.vm.Thread() == nil {
		return
	}
	if a.thread.Composer().GetText() != "" {
		a.run("typing", func(ctx context.Context) error { return a.vm.SetTyping(ctx, "none") })
	}
	a.thread.Reset()
	a.vm.CloseThread()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Composer())
	case pageRequests:
		a.app.SetFocus(a.requests.Table())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	case pagePassword:
		a.app.SetFocus(a.password)
	default:
		if c, ok := a.components[a.pages.Current()].(tview.Primitive); ok {
			a.app.SetFocus(c)
		}
	}
}

func (a *App) updateMenu() {
	var hints []ui.MenuHint
	if c, ok := a.components[a.pages.Current()]; ok {
		hints = append(hints, c.Hints()...)
	}
	hints = append(hints, a.registry.Hints(a.pages.Current())...)
	a.header.Menu.Update(hints)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	a.body.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.body.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) applyFilter(f string) {
	switch a.pages.Current() {
	case pageAccounts:
		a.accounts.SetFilter(f)
	case pageBuddies:
		a.buddies.SetFilter(f)
	case pageConversations:
		a.convs.SetFilter(f)
	default:
		a.flash.Warn("Nothing to filter here")
		a.footer.SetFlash(a.flash.Current())
	}
}

// execute runs a ":" command. It is called on the UI goroutine.
func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.show(pageHelp)
	case pageAccounts, pageBuddies, pageConversations, pageRequests:
		a.show(cmd.Name)
	case "online", "offline":
		online := cmd.Name == "online"
		a.run(cmd.Name, func(ctx context.Context) error { return a.client.Core.SetOnline(ctx, online) })
	case "status":
		acct, ok := a.findAccount(cmd.Arg(0))
		if !ok || cmd.Arg(1) == "" {
			a.fail("usage: status <account> <status> [message]")
			return
		}
		a.run("status", func(ctx context.Context) error {
			_, err := a.client.Accounts.SetStatus(ctx, &api.SetStatusRequest{ID: acct.ID, StatusID: cmd.Arg(1), Message: cmd.From(2)})
			return err
		})
	case "msg":
		acct, ok := a.findAccount(cmd.Arg(0))
		if !ok || cmd.Arg(1) == "" {
			a.fail("usage: msg <account> <name>")
			return
		}
		a.openIM(acct.ID, cmd.Arg(1))
	case "add":
		acct, ok := a.findAccount(cmd.Arg(0))
		if !ok || cmd.Arg(1) == "" {
			a.fail("usage: add <account> <name> [group]")
			return
		}
		a.run("add buddy", func(ctx context.Context) error {
			_, err := a.client.Buddies.Add(ctx, &api.AddBuddyRequest{AccountID: acct.ID, Name: cmd.Arg(1), Group: cmd.From(2)})
			return err
		})
	case "search":
		a.show(pageSearch)
		if cmd.Rest != "" {
			a.search.SetQuery(cmd.Rest)
			a.search.Submit()
		}
	default:
		a.fail(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

// findAccount resolves a username or an account id.
func (a *App) findAccount(s string) (api.Account, bool) {
	if s == "" {
		return api.Account{}, false
	}
	for _, acct := range a.vm.Accounts() {
		if acct.ID == s || strings.EqualFold(acct.Username, s) {
			return acct, true
		}
	}
	return api.Account{}, false
}

func (a *App) fail(msg string) {
	a.flash.Err(errors.New(msg))
	a.footer.SetFlash(a.flash.Current())
}

// run calls f off the UI goroutine, flashes its error and refreshes the
// cached state on success.
func (a *App) run(what string, f func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := f(ctx)
		if err == nil && what != "refresh" && what != "typing" {
			err = a.vm.Refresh(ctx)
		}
		if err != nil && a.ctx.Err() == nil {
			a.flash.Err(fmt.Errorf("%s: %w", what, err))
		}
		a.app.QueueUpdateDraw(func() { a.footer.SetFlash(a.flash.Current()) })
	}()
}

func (a *App) openDetails(acct api.Account) {
	a.run("account log", func(ctx context.Context) error {
		resp, err := a.client.Accounts.Log(ctx, acct.ID, 50)
		if err != nil {
			return err
		}
		a.app.QueueUpdateDraw(func() {
			a.details.Update(acct, resp.Entries)
			a.show(pageDetails)
		})
		return nil
	})
}

// openIM opens, creating it if needed, the DM with name on the account.
func (a *App) openIM(accountID, name string) {
	a.run("open conversation", func(ctx context.Context) error {
		conv, err := a.client.Conversations.SetTyping(ctx, &api.SetTypingRequest{
			AccountID: accountID, To: name, State: "none",
		})
		if err != nil {
			return err
		}
		return a.loadThread(ctx, *conv)
	})
}

func (a *App) openConversation(c api.Conversation) {
	a.run("open conversation", func(ctx context.Context) error { return a.loadThread(ctx, c) })
}

func (a *App) loadThread(ctx context.Context, c api.Conversation) error {
	if err := a.vm.OpenThread(ctx, c); err != nil {
		return err
	}
	a.app.QueueUpdateDraw(func() {
		a.thread.Reset()
		a.renderThread()
		if a.pages.Current() != pageThread {
			a.pages.Push(pageThread)
		}
		a.focusCurrent()
	})
	return nil
}

func (a *App) renderThread() {
	if t := a.vm.Thread(); t != nil {
		a.thread.Update(t.Title, t.Typing, t.Messages)
	}
}

// render copies the view model into every view. UI goroutine only.
func (a *App) render() {
	if st := a.vm.Status(); st != nil {
		a.header.Info.Update(&ui.ProfileData{
			Profile:       st.Profile,
			State:         st.State,
			Online:        st.Online,
			Accounts:      st.Accounts,
			Connected:     st.Connected,
			Buddies:       st.Buddies,
			Conversations: st.Conversations,
			Pending:       st.PendingRequests,
			Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
		})
	}
	a.accounts.Update(a.vm.Accounts())
	if acct, ok := a.vm.Account(a.details.AccountID()); ok {
		a.details.Refresh(acct)
	}
	a.buddies.Update(a.vm.Groups())
	a.convs.Update(a.vm.Conversations())
	a.renderThread()

	reqs := a.vm.Requests()
	a.requests.Update(reqs)
	live := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		live[r.ID] = true
		if a.seenRequests[r.ID] {
			continue
		}
		a.seenRequests[r.ID] = true
		a.flash.Warn("New request: " + r.Title)
		if r.Kind != "notify" && a.pages.Current() != pagePassword && a.pages.Current() != pageRequests {
			a.pages.Push(pageRequests)
			a.focusCurrent()
		}
	}
	for id := range a.seenRequests {
		if !live[id] {
			delete(a.seenRequests, id)
		}
	}
	a.footer.SetFlash(a.flash.Current())
}

// Run loads the initial state, follows daemon events and blocks until the
// UI exits.
func (a *App) Run() error {
	a.header.Info.Update(&ui.ProfileData{Profile: a.profile, State: "loading"})
	go func() {
		if err := a.vm.Refresh(a.ctx); err != nil {
			a.flash.Err(fmt.Errorf("load: %w", err))
		}
		a.app.QueueUpdateDraw(a.render)

		go func() {
			if err := a.vm.Run(a.ctx); err != nil && a.ctx.Err() == nil {
				a.flash.Err(fmt.Errorf("event stream: %w", err))
				a.app.QueueUpdateDraw(func() { a.footer.SetFlash(a.flash.Current()) })
			}
		}()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-a.vm.RefreshCh():
				a.app.QueueUpdateDraw(a.render)
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() { a.footer.SetFlash(a.flash.Current()) })
			}
		}
	}()
	return a.app.Run()
}

// Stop ends the UI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

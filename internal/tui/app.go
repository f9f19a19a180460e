package tui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageList   = "conversations"
	pageChat   = "chat"
	pagePrompt = "prompt"

	flashTTL       = 5 * time.Second
	refreshEvery   = 5 * time.Second
	requestTimeout = 10 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	env       *app.Env
	logger    *zap.Logger
	registry  *keys.Registry
	flash     *model.Flash
	statusBar *views.StatusBar
	list      *views.ConversationList
	thread    *views.MessageThread
	prompt    *ui.Prompt

	// changed is signalled by the engine; it never blocks the sender.
	changed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	session *chat.Session
}

// NewApp creates the TUI application.
func NewApp(env *app.Env) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		env:       env,
		logger:    env.Logger.Named("tui"),
		registry:  keys.NewRegistry(),
		flash:     model.NewFlash(),
		statusBar: views.NewStatusBar(theme),
		list:      views.NewConversationList(theme, env.Config.UserID),
		thread:    views.NewMessageThread(theme),
		prompt:    ui.NewPrompt(theme),
		changed:   make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(env.Profile)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Hint: "q:quit",
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Hint: ":to <member>  :open <id>",
		Handler: a.showPrompt,
	})
	a.registry.AddPage(pageList, &keys.Action{
		Key: tcell.KeyRune, Rune: 'g', Hint: "g:refresh",
		Handler: func() { go a.loadConversations() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Hint: "i:compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Hint: "r:retry",
		Handler: a.retryLast,
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Hint: "x:discard",
		Handler: a.discardLast,
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyEscape, Hint: "esc:back",
		Handler: a.closeConversation,
	})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, col int) {
		if id := a.list.Selected(); id != "" {
			a.open(chat.ResolveInput{ConversationID: id})
		}
	})

	a.thread.SetOnSend(a.send)

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		in, err := ParseCommand(text).Target()
		if err != nil {
			a.setFlash(model.Warn, err.Error())
			return
		}
		a.open(in)
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	promptModal := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(a.prompt, 3, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage(pageList, a.list, true, true)
	a.pages.AddPage(pageChat, a.thread, true, false)
	a.pages.AddPage(pagePrompt, promptModal, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)
	a.statusBar.SetHints(a.registry.Hints(pageList))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()
		if page == pagePrompt {
			return event
		}

		// Text input gets every key; Esc leaves the composer.
		if _, typing := a.app.GetFocus().(*tview.InputField); typing {
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

// Run starts the UI. A non-empty in opens that conversation right away.
func (a *App) Run(in chat.ResolveInput) error {
	go a.loadConversations()
	if in != (chat.ResolveInput{}) {
		a.open(in)
	}
	go a.watch()

	defer a.closeSession()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// notify is the engine's change callback.
func (a *App) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// watch redraws on transcript changes and sync events. The conversation
// list is refreshed while no conversation is open.
func (a *App) watch() {
	events, unsub := a.env.Bus.Subscribe("sync.", 64)
	defer unsub()
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.changed:
			a.app.QueueUpdateDraw(a.renderThread)
		case evt := <-events:
			switch evt.Kind {
			case bus.SyncFallback:
				a.setFlash(model.Warn, "live updates unavailable, polling")
			case bus.SyncDisconnected:
				a.setFlash(model.Warn, "connection lost, reconnecting")
			}
			a.app.QueueUpdateDraw(a.renderStatus)
		case <-ticker.C:
			if a.current() == nil {
				a.loadConversations()
			}
			a.app.QueueUpdateDraw(a.renderStatus)
		}
	}
}

func (a *App) loadConversations() {
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	defer cancel()
	convs, err := a.env.Client().ListConversations(ctx)
	if err != nil {
		a.logger.Warn("list conversations", zap.Error(err))
		a.setFlash(model.Err, "could not load conversations")
		return
	}
	a.app.QueueUpdateDraw(func() { a.list.Update(convs) })
}

// open replaces the current conversation with in.
func (a *App) open(in chat.ResolveInput) {
	a.closeSession()
	a.setFlash(model.Info, "opening…")

	go func() {
		s, err := a.env.Open(a.ctx, in)
		if s == nil {
			a.logger.Warn("open conversation", zap.Error(err))
			a.setFlash(model.Err, err.Error())
			return
		}
		if err != nil {
			a.logger.Warn("conversation opened degraded", zap.Error(err))
			a.setFlash(model.Warn, degradedMessage(err))
		} else {
			a.setFlash(model.Info, "")
		}

		a.mu.Lock()
		if a.ctx.Err() != nil {
			a.mu.Unlock()
			s.Close()
			return
		}
		prev := a.session
		a.session = s
		a.mu.Unlock()
		if prev != nil {
			prev.Close()
		}
		s.OnChange(a.notify)

		title := in.ConversationID
		if title == "" {
			title = in.RecipientID
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetTitle(title)
			a.renderThread()
			a.pages.SwitchToPage(pageChat)
			a.statusBar.SetHints(a.registry.Hints(pageChat))
			a.app.SetFocus(a.thread.Composer())
		})
	}()
}

func degradedMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrHistoryLoadFailed):
		return "history unavailable, showing live messages only"
	case errors.Is(err, chat.ErrResolutionFailed):
		return "could not look up conversations; first message starts a new one"
	}
	return err.Error()
}

func (a *App) current() *chat.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) closeSession() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (a *App) closeConversation() {
	a.closeSession()
	a.pages.SwitchToPage(pageList)
	a.app.SetFocus(a.list)
	a.statusBar.SetSync("", "")
	a.statusBar.SetHints(a.registry.Hints(pageList))
	go a.loadConversations()
}

func (a *App) send(text string) {
	s := a.current()
	if s == nil {
		return
	}
	go func() {
		_, err := s.Send(a.ctx, text)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrSendFailed):
			a.setFlash(model.Err, "send failed: r to retry, x to discard")
			draft := s.TakeDraft()
			a.app.QueueUpdateDraw(func() { a.thread.SetDraft(draft) })
		default:
			a.setFlash(model.Warn, err.Error())
		}
	}()
}

func (a *App) retryLast() {
	s := a.current()
	if s == nil {
		return
	}
	m, found := s.LastFailed()
	if !found {
		a.setFlash(model.Info, "nothing to retry")
		return
	}
	go func() {
		if _, err := s.Retry(a.ctx, m.ID); err != nil {
			a.setFlash(model.Err, "retry failed")
		}
	}()
}

func (a *App) discardLast() {
	s := a.current()
	if s == nil {
		return
	}
	m, found := s.LastFailed()
	if !found {
		return
	}
	if err := s.Discard(m.ID); err != nil {
		a.setFlash(model.Warn, err.Error())
	}
}

func (a *App) showPrompt() {
	a.pages.ShowPage(pagePrompt)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.pages.HidePage(pagePrompt)
	page, _ := a.pages.GetFrontPage()
	if page == pageChat {
		a.app.SetFocus(a.thread.Messages())
	} else {
		a.app.SetFocus(a.list)
	}
}

// renderThread runs on the UI goroutine.
func (a *App) renderThread() {
	s := a.current()
	if s == nil {
		return
	}
	a.thread.Update(model.Transcript(s.Messages(), a.env.Config.UserID, time.Now()))
	a.renderStatus()
}

func (a *App) renderStatus() {
	if s := a.current(); s != nil {
		a.statusBar.SetSync(string(s.Status()), string(s.TransportKind()))
	}
	a.statusBar.SetFlash(a.flash.Get())
}

// setFlash may be called from any goroutine.
func (a *App) setFlash(level model.Level, msg string) {
	a.flash.Set(level, msg, flashTTL)
	a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
}

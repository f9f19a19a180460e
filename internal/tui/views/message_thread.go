package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays one conversation and its composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
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

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		composer.SetText("")
		mt.onSend(text)
	})

	return mt
}

// SetTitle names the conversation in the border.
func (mt *MessageThread) SetTitle(name string) {
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(model.Clean(name))))
}

// SetOnSend sets the callback when the composer submits.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetDraft puts text back into an empty composer. Text the user already
// started typing wins.
func (mt *MessageThread) SetDraft(text string) {
	if text == "" || mt.composer.GetText() != "" {
		return
	}
	mt.composer.SetText(text)
}

// Update redraws the transcript.
func (mt *MessageThread) Update(lines []model.Line) {
	mt.messages.Clear()

	for _, l := range lines {
		color := ""
		switch {
		case l.Failed:
			color = ui.Tag(mt.theme.FailedColor)
		case l.Marker != "":
			color = ui.Tag(mt.theme.PendingColor)
		case l.Mine:
			color = ui.Tag(mt.theme.OwnColor)
		}
		marker := ""
		if l.Marker != "" {
			marker = " " + tview.Escape(l.Marker)
		}
		_, _ = fmt.Fprintf(mt.messages, "%s[::b]%s[::-] [::d]%s[::-]%s[-]\n%s\n\n",
			color, tview.Escape(l.Sender), l.Time, marker, tview.Escape(l.Body))
	}

	mt.messages.ScrollToEnd()
}

// Messages returns the transcript view, for focus management.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field, for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

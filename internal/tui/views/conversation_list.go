package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the table of conversations the user takes part in.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	selfID string
	convs  []chat.Conversation
}

func NewConversationList(theme *ui.Theme, selfID string) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Conversations ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)
	return &ConversationList{Table: table, theme: theme, selfID: selfID}
}

// Update replaces the rows, keeping the selected conversation selected.
func (cl *ConversationList) Update(convs []chat.Conversation) {
	selected := cl.Selected()
	cl.convs = convs
	cl.Clear()

	for col, title := range []string{" With", " Unread", " Last"} {
		cl.SetCell(0, col, tview.NewTableCell(title).
			SetSelectable(false).
			SetTextColor(cl.theme.HeaderColor))
	}

	now := time.Now()
	for i, c := range convs {
		row := i + 1
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", c.UnreadCount)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(cl.peers(c))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 1, tview.NewTableCell(" "+unread).SetMaxWidth(8))
		cl.SetCell(row, 2, tview.NewTableCell(" "+model.Clock(c.LastMessageAt, now)).SetMaxWidth(12))
		if c.ID == selected {
			cl.Select(row, 0)
		}
	}
}

// Selected returns the id of the selected conversation, or "".
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	if idx := row - 1; idx >= 0 && idx < len(cl.convs) {
		return cl.convs[idx].ID
	}
	return ""
}

// peers names the other participants, or the conversation id.
func (cl *ConversationList) peers(c chat.Conversation) string {
	var names []string
	for _, p := range c.Participants {
		if p.ID != cl.selfID {
			names = append(names, model.Clean(p.ID))
		}
	}
	if len(names) == 0 {
		return c.ID
	}
	return strings.Join(names, ", ")
}

package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the profile, the sync state of the open conversation and
// the current flash message.
type StatusBar struct {
	*tview.TextView
	theme     *ui.Theme
	profile   string
	status    string
	transport string
	hints     []string
	flash     string
	level     model.Level
}

func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme}
}

func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetSync shows the conversation's status and transport. Empty values
// hide the section.
func (sb *StatusBar) SetSync(status, transport string) {
	sb.status, sb.transport = status, transport
	sb.render()
}

func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash, sb.level = msg, level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	parts := []string{fmt.Sprintf(" [::b]%s[::-]", tview.Escape(sb.profile))}
	if sb.status != "" {
		parts = append(parts, fmt.Sprintf("%s (%s)", sb.status, sb.transport))
	}
	if sb.flash != "" {
		color := sb.theme.FlashInfoColor
		switch sb.level {
		case model.Warn:
			color = sb.theme.FlashWarnColor
		case model.Err:
			color = sb.theme.FlashErrColor
		}
		parts = append(parts, ui.Tag(color)+tview.Escape(sb.flash)+"[-]")
	} else if len(sb.hints) > 0 {
		parts = append(parts, "[::d]"+strings.Join(sb.hints, "  ")+"[::-]")
	}

	_, _ = fmt.Fprint(sb, strings.Join(parts, " | "))
}

// Package model turns engine state into what the views draw.
package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/matheus3301/chatsync/internal/chat"
)

// Markers shown next to unconfirmed messages.
const (
	PendingMarker = "…"
	FailedMarker  = "!"
)

// Line is one rendered transcript entry.
type Line struct {
	ID     string
	Sender string
	Time   string
	Body   string
	Marker string
	Mine   bool
	Failed bool
}

// Transcript renders msgs in order. selfID labels own messages "You".
func Transcript(msgs []chat.Message, selfID string, now time.Time) []Line {
	lines := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		mine := selfID != "" && m.SenderID == selfID
		// Optimistic sends may not know their sender yet.
		if m.Status != chat.StatusConfirmed && m.SenderID == "" {
			mine = true
		}
		sender := Clean(m.SenderID)
		if mine {
			sender = "You"
		}

		l := Line{
			ID:     m.ID,
			Sender: sender,
			Time:   Clock(m.CreatedAt, now),
			Body:   Clean(m.Body),
			Mine:   mine,
		}
		switch m.Status {
		case chat.StatusPending:
			l.Marker = PendingMarker
		case chat.StatusFailed:
			l.Marker = FailedMarker
			l.Failed = true
		}
		lines = append(lines, l)
	}
	return lines
}

// Clock formats t as a time today, otherwise as a date.
func Clock(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// Clean drops codepoints tcell renders badly: skin tone modifiers, zero
// width joiners and variation selectors. Other control characters except
// newlines and tabs go too.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF,
			r == 0x200D,
			r >= 0xFE00 && r <= 0xFE0F,
			r >= 0xE0100 && r <= 0xE01EF:
			return -1
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

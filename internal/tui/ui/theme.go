// Package ui holds widgets and styling shared by the views.
package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the colors of the TUI.
type Theme struct {
	BgColor        tcell.Color
	FgColor        tcell.Color
	BorderColor    tcell.Color
	TitleColor     tcell.Color
	HeaderColor    tcell.Color
	MenuKeyColor   tcell.Color
	OwnColor       tcell.Color
	PendingColor   tcell.Color
	FailedColor    tcell.Color
	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:        tcell.ColorBlack,
		FgColor:        tcell.ColorCadetBlue,
		BorderColor:    tcell.ColorDodgerBlue,
		TitleColor:     tcell.ColorFuchsia,
		HeaderColor:    tcell.ColorWhite,
		MenuKeyColor:   tcell.ColorDodgerBlue,
		OwnColor:       tcell.ColorAqua,
		PendingColor:   tcell.ColorGray,
		FailedColor:    tcell.ColorOrangeRed,
		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,
	}
}

// Tag returns the tview color tag of c, e.g. "[#ff4500]".
func Tag(c tcell.Color) string {
	return "[" + c.CSS() + "]"
}

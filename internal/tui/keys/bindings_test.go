package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Hint: "q:quit", Handler: func() { got = "quit" }})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "close" }})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'r', Hint: "r:retry", Handler: func() { got = "retry" }})

	q := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	if !r.HandleEvent("chat", q) || got != "close" {
		t.Errorf("chat q -> %q", got)
	}
	if !r.HandleEvent("list", q) || got != "quit" {
		t.Errorf("list q -> %q", got)
	}
	if r.HandleEvent("list", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)) {
		t.Error("r handled outside chat page")
	}
	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)) || got != "retry" {
		t.Errorf("chat r -> %q", got)
	}
}

func TestSpecialKeys(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddPage("chat", &Action{Key: tcell.KeyEscape, Handler: func() { hit = true }})
	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !hit {
		t.Error("escape not dispatched")
	}
}

func TestHints(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Hint: "q:quit", Handler: func() {}})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'x', Hint: "x:discard", Handler: func() {}})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'i', Hint: "i:compose", Handler: func() {}})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'z', Handler: func() {}})

	want := []string{"i:compose", "x:discard", "q:quit"}
	if got := r.Hints("chat"); !reflect.DeepEqual(got, want) {
		t.Errorf("Hints = %v, want %v", got, want)
	}
}

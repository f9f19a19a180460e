// Package keys maps key presses to actions per page.
package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action is one key binding.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Hint    string
	Handler func()
}

// Matches reports whether ev triggers a.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds global bindings and bindings scoped to a page.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints lists the hints of a page followed by the global ones.
func (r *Registry) Hints(page string) []string {
	var out []string
	for _, group := range [][]*Action{r.pages[page], r.global} {
		var hints []string
		for _, a := range group {
			if a.Hint != "" {
				hints = append(hints, a.Hint)
			}
		}
		sort.Strings(hints)
		out = append(out, hints...)
	}
	return out
}

// HandleEvent runs the first matching action, page bindings first.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, group := range [][]*Action{r.pages[page], r.global} {
		for _, a := range group {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}

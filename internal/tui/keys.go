package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action names a bindable command. Config keymaps use these names.
type Action string

const (
	ActionQuit     Action = "quit"
	ActionDown     Action = "down"
	ActionUp       Action = "up"
	ActionNextDB   Action = "next_db"
	ActionPrevDB   Action = "prev_db"
	ActionRefresh  Action = "refresh"
	ActionQuery    Action = "query"
	ActionPut      Action = "put"
	ActionDelete   Action = "delete"
	ActionUndo     Action = "undo"
	ActionRedo     Action = "redo"
	ActionCommit   Action = "commit"
	ActionAbort    Action = "abort"
	ActionBookmark Action = "bookmark"
	ActionJump     Action = "jump"
	ActionStats    Action = "stats"
	ActionEnvStats Action = "env_stats"
	ActionExport   Action = "export"
	ActionPreview  Action = "preview"
	ActionHelp     Action = "help"
	ActionBack     Action = "back"
	ActionDismiss  Action = "dismiss"
)

// KeyMap binds actions to keys.
type KeyMap struct {
	order    []Action
	bindings map[Action]key.Binding
}

// DefaultKeyMap returns the built-in bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{bindings: make(map[Action]key.Binding)}
	reg := func(a Action, help string, keys ...string) {
		km.order = append(km.order, a)
		km.bindings[a] = key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
	}

	reg(ActionDown, "next entry", "j", "down")
	reg(ActionUp, "previous entry", "k", "up")
	reg(ActionNextDB, "next database", "tab", "l", "right")
	reg(ActionPrevDB, "previous database", "shift+tab", "h", "left")
	reg(ActionPreview, "preview value", "enter")
	reg(ActionQuery, "query", "/")
	reg(ActionPut, "put key=value", "a")
	reg(ActionDelete, "delete entry", "d")
	reg(ActionUndo, "undo", "u")
	reg(ActionRedo, "redo", "ctrl+r")
	reg(ActionCommit, "commit", "ctrl+s")
	reg(ActionAbort, "discard changes", "ctrl+x")
	reg(ActionBookmark, "toggle bookmark", "m")
	reg(ActionJump, "next bookmark", "'")
	reg(ActionStats, "database stats", "s")
	reg(ActionEnvStats, "store stats", "S")
	reg(ActionExport, "export to <db>.json", "e")
	reg(ActionRefresh, "reload", "r")
	reg(ActionHelp, "help", "?")
	reg(ActionBack, "back", "esc")
	reg(ActionDismiss, "dismiss message", "x")
	reg(ActionQuit, "quit", "q", "ctrl+c")
	return km
}

// Binding returns the binding for a.
func (km KeyMap) Binding(a Action) (key.Binding, bool) {
	b, ok := km.bindings[a]
	return b, ok
}

// Help returns the bindings in display order.
func (km KeyMap) Help() []key.Binding {
	out := make([]key.Binding, 0, len(km.order))
	for _, a := range km.order {
		out = append(out, km.bindings[a])
	}
	return out
}

// Match returns the action bound to the pressed key.
func (km KeyMap) Match(msg tea.KeyMsg) (Action, bool) {
	for _, a := range km.order {
		if key.Matches(msg, km.bindings[a]) {
			return a, true
		}
	}
	return "", false
}

// WithOverrides returns a copy of km with bindings replaced. Each value is a
// comma-separated key list. Unknown actions and keys bound to two actions
// are errors.
func (km KeyMap) WithOverrides(overrides map[string]string) (KeyMap, error) {
	out := KeyMap{order: km.order, bindings: make(map[Action]key.Binding, len(km.bindings))}
	for a, b := range km.bindings {
		out.bindings[a] = b
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := Action(strings.ToLower(strings.TrimSpace(name)))
		old, ok := out.bindings[a]
		if !ok {
			return KeyMap{}, fmt.Errorf("keymap: unknown action %q", name)
		}
		keys := splitKeys(overrides[name])
		if len(keys) == 0 {
			return KeyMap{}, fmt.Errorf("keymap: no keys for %q", name)
		}
		out.bindings[a] = key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], old.Help().Desc))
	}

	owner := make(map[string]Action)
	for _, a := range out.order {
		for _, k := range out.bindings[a].Keys() {
			if prev, dup := owner[k]; dup {
				return KeyMap{}, fmt.Errorf("keymap: %q is bound to both %s and %s", k, prev, a)
			}
			owner[k] = a
		}
	}
	return out, nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

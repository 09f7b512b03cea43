package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/boltview/internal/app"
	"github.com/roach88/boltview/internal/export"
)

// translate maps a key press to an app action. input is the text being
// edited when s is in an input mode; the returned string is its new value.
func translate(s app.State, km KeyMap, input string, msg tea.KeyMsg) (app.Action, string, bool) {
	if s.Input != app.InputNone {
		return editInput(input, msg)
	}

	a, ok := km.Match(msg)
	if !ok {
		return nil, input, false
	}
	switch a {
	case ActionQuit:
		return app.Quit{}, input, true
	case ActionDown:
		return app.NextEntry{}, input, true
	case ActionUp:
		return app.PrevEntry{}, input, true
	case ActionNextDB:
		return app.NextDB{}, input, true
	case ActionPrevDB:
		return app.PrevDB{}, input, true
	case ActionRefresh:
		return app.Refresh{}, input, true
	case ActionQuery:
		return app.StartInput{Mode: app.InputQuery}, input, true
	case ActionPut:
		return app.StartInput{Mode: app.InputPut}, input, true
	case ActionDelete:
		return app.DeleteCurrent{}, input, true
	case ActionUndo:
		return app.UndoEdit{}, input, true
	case ActionRedo:
		return app.RedoEdit{}, input, true
	case ActionCommit:
		return app.Commit{}, input, true
	case ActionAbort:
		return app.Abort{}, input, true
	case ActionBookmark:
		return app.ToggleBookmark{}, input, true
	case ActionJump:
		loc, ok := nextBookmark(s)
		if !ok {
			return nil, input, false
		}
		return app.JumpTo{Location: loc}, input, true
	case ActionStats:
		return app.ShowStats{}, input, true
	case ActionEnvStats:
		return app.ShowEnvStats{}, input, true
	case ActionExport:
		db, ok := s.CurrentDB()
		if !ok {
			return nil, input, false
		}
		return app.Export{DB: db, Format: export.FormatJSON, Path: exportPath(db)}, input, true
	case ActionPreview:
		return app.Push{View: app.ViewPreview}, input, true
	case ActionHelp:
		return app.Push{View: app.ViewHelp}, input, true
	case ActionBack:
		return app.Back{}, input, true
	case ActionDismiss:
		return app.DismissNotice{}, input, true
	}
	return nil, input, false
}

// editInput handles a key press while text is being edited.
func editInput(input string, msg tea.KeyMsg) (app.Action, string, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		return app.SubmitInput{}, "", true
	case tea.KeyEsc, tea.KeyCtrlC:
		return app.CancelInput{}, "", true
	case tea.KeyBackspace:
		if input == "" {
			return nil, input, false
		}
		r := []rune(input)
		input = string(r[:len(r)-1])
		return app.EditInput{Text: input}, input, true
	case tea.KeyCtrlU:
		return app.EditInput{Text: ""}, "", true
	case tea.KeySpace:
		input += " "
		return app.EditInput{Text: input}, input, true
	case tea.KeyRunes:
		input += string(msg.Runes)
		return app.EditInput{Text: input}, input, true
	}
	return nil, input, false
}

// nextBookmark returns the bookmark after the entry under the cursor,
// wrapping around.
func nextBookmark(s app.State) (app.Location, bool) {
	if len(s.Bookmarks) == 0 {
		return app.Location{}, false
	}
	db, _ := s.CurrentDB()
	var here app.Location
	if rec, ok := s.Current(); ok {
		here = app.Location{DB: db, Key: rec.Key}
	}
	for i, b := range s.Bookmarks {
		if b.Equal(here) {
			return s.Bookmarks[(i+1)%len(s.Bookmarks)], true
		}
	}
	return s.Bookmarks[0], true
}

// exportPath is where the export key writes db.
func exportPath(db string) string {
	safe := make([]rune, 0, len(db))
	for _, r := range db {
		switch r {
		case '/', '\\', ':', '(', ')', ' ':
			r = '_'
		}
		safe = append(safe, r)
	}
	return string(safe) + ".json"
}

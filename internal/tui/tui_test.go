package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/app"
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/store"
	"github.com/roach88/boltview/internal/testutil"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func browsing() app.State {
	s := app.NewState()
	s.Phase = app.PhaseBrowsing
	s.Env = &app.EnvInfo{Path: "/tmp/data.db"}
	s.Databases = []string{"(unnamed)", "users"}
	s.Selected = 1
	s.Entries = []store.Record{
		{Key: []byte("alice"), Value: []byte(`{"age":30}`)},
		{Key: []byte("bob"), Value: []byte("plain")},
	}
	return s
}

func plainStyles(t *testing.T) Styles {
	t.Helper()
	st, err := NewStyles("plain")
	require.NoError(t, err)
	return st
}

func TestTranslate_Bindings(t *testing.T) {
	km := DefaultKeyMap()
	s := browsing()

	tests := []struct {
		name string
		msg  tea.KeyMsg
		want app.Action
	}{
		{"down", runes("j"), app.NextEntry{}},
		{"arrow up", tea.KeyMsg{Type: tea.KeyUp}, app.PrevEntry{}},
		{"next db", tea.KeyMsg{Type: tea.KeyTab}, app.NextDB{}},
		{"query", runes("/"), app.StartInput{Mode: app.InputQuery}},
		{"put", runes("a"), app.StartInput{Mode: app.InputPut}},
		{"delete", runes("d"), app.DeleteCurrent{}},
		{"undo", runes("u"), app.UndoEdit{}},
		{"redo", tea.KeyMsg{Type: tea.KeyCtrlR}, app.RedoEdit{}},
		{"commit", tea.KeyMsg{Type: tea.KeyCtrlS}, app.Commit{}},
		{"preview", tea.KeyMsg{Type: tea.KeyEnter}, app.Push{View: app.ViewPreview}},
		{"back", tea.KeyMsg{Type: tea.KeyEsc}, app.Back{}},
		{"export", runes("e"), app.Export{DB: "users", Format: export.FormatJSON, Path: "users.json"}},
		{"quit", tea.KeyMsg{Type: tea.KeyCtrlC}, app.Quit{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, ok := translate(s, km, "", tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.want, a)
		})
	}

	_, _, ok := translate(s, km, "", runes("z"))
	assert.False(t, ok, "unbound key")
}

func TestTranslate_InputMode(t *testing.T) {
	km := DefaultKeyMap()
	s := browsing()
	s.Input = app.InputQuery

	a, input, ok := translate(s, km, "ag", runes("e"))
	require.True(t, ok)
	assert.Equal(t, app.EditInput{Text: "age"}, a)
	assert.Equal(t, "age", input)

	// bound keys are text while typing
	a, input, ok = translate(s, km, "age", runes("q"))
	require.True(t, ok)
	assert.Equal(t, app.EditInput{Text: "ageq"}, a)
	assert.Equal(t, "ageq", input)

	a, input, _ = translate(s, km, "héé", tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, app.EditInput{Text: "hé"}, a)
	assert.Equal(t, "hé", input)

	_, _, ok = translate(s, km, "", tea.KeyMsg{Type: tea.KeyBackspace})
	assert.False(t, ok)

	a, input, _ = translate(s, km, "x", tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, app.EditInput{Text: "x "}, a)
	assert.Equal(t, "x ", input)

	a, input, _ = translate(s, km, "age > 1", tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, app.SubmitInput{}, a)
	assert.Empty(t, input)

	a, _, _ = translate(s, km, "age", tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, app.CancelInput{}, a)
}

func TestTranslate_JumpCyclesBookmarks(t *testing.T) {
	km := DefaultKeyMap()
	s := browsing()

	_, _, ok := translate(s, km, "", runes("'"))
	assert.False(t, ok, "no bookmarks")

	first := app.Location{DB: "users", Key: []byte("alice")}
	second := app.Location{DB: "(unnamed)", Key: []byte("k")}
	s.Bookmarks = []app.Location{first, second}

	a, _, ok := translate(s, km, "", runes("'"))
	require.True(t, ok)
	assert.Equal(t, app.JumpTo{Location: second}, a, "cursor is on alice")

	s.Cursor = 1
	a, _, _ = translate(s, km, "", runes("'"))
	assert.Equal(t, app.JumpTo{Location: first}, a)
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, "_unnamed_.json", exportPath(store.DefaultDB))
	assert.Equal(t, "a_b_c.json", exportPath("a/b c"))
}

func TestKeyMap_Overrides(t *testing.T) {
	km, err := DefaultKeyMap().WithOverrides(map[string]string{"quit": "Q, ctrl+q", "Down": "n"})
	require.NoError(t, err)

	a, ok := km.Match(runes("Q"))
	require.True(t, ok)
	assert.Equal(t, ActionQuit, a)

	_, ok = km.Match(runes("q"))
	assert.False(t, ok, "old quit key released")

	a, ok = km.Match(runes("n"))
	require.True(t, ok)
	assert.Equal(t, ActionDown, a)

	b, _ := km.Binding(ActionQuit)
	assert.Equal(t, "Q", b.Help().Key)
	assert.Equal(t, "quit", b.Help().Desc)

	// the receiver is unchanged
	a, ok = DefaultKeyMap().Match(runes("q"))
	require.True(t, ok)
	assert.Equal(t, ActionQuit, a)
}

func TestKeyMap_OverrideErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown action": {"launch": "L"},
		"empty keys":     {"quit": " , "},
		"conflict":       {"undo": "d"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DefaultKeyMap().WithOverrides(overrides)
			assert.Error(t, err)
		})
	}
}

func TestKeyMap_HelpOrder(t *testing.T) {
	help := DefaultKeyMap().Help()
	require.NotEmpty(t, help)
	assert.Equal(t, "j", help[0].Help().Key)
	assert.Equal(t, "q", help[len(help)-1].Help().Key)
}

func TestNewStyles(t *testing.T) {
	for _, name := range Themes {
		_, err := NewStyles(name)
		assert.NoError(t, err, name)
	}
	_, err := NewStyles("neon")
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, window(3, 0, 5))
	assert.Equal(t, []int{0, 1}, window(5, 1, 2))
	assert.Equal(t, []int{3, 4}, window(5, 4, 2))
	assert.Empty(t, window(0, 0, 3))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "abc", display([]byte("abc"), 10))
	assert.Equal(t, `a\nb`, display([]byte("a\nb"), 10))
	assert.Equal(t, "abcd…", display([]byte("abcdefgh"), 5))
	assert.Equal(t, `"\xff"`, display([]byte{0xff}, 10))
}

func TestPretty(t *testing.T) {
	assert.Contains(t, pretty([]byte(`{"age":30}`)), `"age": 30`)
	assert.Equal(t, "plain", pretty([]byte("plain")))
}

func TestRender_Browsing(t *testing.T) {
	s := browsing()
	s.Pending = "tok"
	s.Undo = 2
	s.Bookmarks = []app.Location{{DB: "users", Key: []byte("bob")}}

	out := render(s, DefaultKeyMap(), plainStyles(t), 100, 20)
	assert.Contains(t, out, "/tmp/data.db")
	assert.Contains(t, out, "pending: 2 undo, 0 redo")
	assert.Contains(t, out, "> users")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "? for help")
}

func TestRender_Variants(t *testing.T) {
	st := plainStyles(t)
	km := DefaultKeyMap()

	assert.Contains(t, render(app.NewState(), km, st, 0, 0), "no store open")

	s := browsing()
	s.Env.ReadOnly = true
	s.Input = app.InputQuery
	s.InputText = "age > 1"
	out := render(s, km, st, 80, 20)
	assert.Contains(t, out, "[read-only]")
	assert.Contains(t, out, "query: age > 1_")

	s = browsing()
	s.Notice = &app.Notice{Level: app.LevelError, Code: "WRITE_CONFLICT", Text: "stale"}
	assert.Contains(t, render(s, km, st, 80, 20), "[WRITE_CONFLICT] stale")

	s = browsing()
	s.Views = append(s.Views, app.ViewHelp)
	assert.Contains(t, render(s, km, st, 80, 40), "toggle bookmark")

	s = browsing()
	s.Views = append(s.Views, app.ViewPreview)
	out = render(s, km, st, 80, 40)
	assert.Contains(t, out, "users /")
	assert.Contains(t, out, `"age": 30`)

	s = browsing()
	s.Phase = app.PhaseQuerying
	s.Views = append(s.Views, app.ViewQuery)
	s.Query = &app.QueryState{Text: "age > 1", DB: "users", Results: []store.Record{{Key: []byte("alice"), Value: []byte("x")}}}
	out = render(s, km, st, 80, 20)
	assert.Contains(t, out, "age > 1")
	assert.Contains(t, out, "alice = x")
}

// nopExecutor drops every effect.
type nopExecutor struct{}

func (nopExecutor) Execute(context.Context, app.Effect, func(app.Action)) {}

func TestModel_QuitKeyEndsProgram(t *testing.T) {
	loop := app.NewLoop(nopExecutor{}, app.WithLoopLogger(testutil.DiscardLogger()))
	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	t.Cleanup(loop.Stop)

	m := New(loop, WithStyles(plainStyles(t)))
	defer m.Close()

	_, cmd := m.Update(runes("q"))
	assert.Nil(t, cmd)

	// Follow published states until the quit lands.
	cmd = m.Init()
	for i := 0; i < 10 && cmd != nil; i++ {
		msg := cmd()
		var next tea.Cmd
		_, next = m.Update(msg)
		if m.state.Terminated {
			require.NotNil(t, next)
			assert.Equal(t, tea.QuitMsg{}, next())
			break
		}
		cmd = next
	}
	assert.True(t, m.state.Terminated)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestModel_TracksInputAndSize(t *testing.T) {
	loop := app.NewLoop(nopExecutor{}, app.WithLoopLogger(testutil.DiscardLogger()))
	m := New(loop)
	defer m.Close()

	_, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 120, m.width)

	s := browsing()
	s.Input = app.InputQuery
	s.InputText = "old"
	_, cmd = m.Update(stateMsg(s))
	assert.NotNil(t, cmd)
	assert.Equal(t, "old", m.input, "entering input mode seeds the buffer")

	_, _ = m.Update(runes("x"))
	assert.Equal(t, "oldx", m.input)
	assert.True(t, strings.Contains(m.View(), "query: old_"))

	_, cmd = m.Update(closedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

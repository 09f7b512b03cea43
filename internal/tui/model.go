// Package tui is the interactive terminal browser. It renders app.State
// snapshots published by an app.Loop and turns key presses into app
// actions; it holds no application state of its own beyond the text being
// typed.
package tui

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/boltview/internal/app"
)

// Model is the bubbletea model.
type Model struct {
	loop   *app.Loop
	states <-chan app.State
	unsub  func()

	state  app.State
	input  string
	keys   KeyMap
	styles Styles
	width  int
	height int
}

// Option configures a Model.
type Option func(*options)

type options struct {
	keys   KeyMap
	styles *Styles
	in     io.Reader
	out    io.Writer
}

// WithKeyMap sets the key bindings.
func WithKeyMap(km KeyMap) Option {
	return func(o *options) { o.keys = km }
}

// WithStyles sets the rendering styles.
func WithStyles(s Styles) Option {
	return func(o *options) { o.styles = &s }
}

// WithIO replaces the terminal input and output.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

func buildOptions(opts []Option) options {
	o := options{keys: DefaultKeyMap()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.styles == nil {
		s, _ := NewStyles("")
		o.styles = &s
	}
	return o
}

// New creates a Model subscribed to loop. Call Close when done.
func New(loop *app.Loop, opts ...Option) *Model {
	o := buildOptions(opts)
	states, unsub := loop.Subscribe()
	return &Model{
		loop:   loop,
		states: states,
		unsub:  unsub,
		state:  loop.Snapshot(),
		keys:   o.keys,
		styles: *o.styles,
	}
}

// Close unsubscribes from the loop.
func (m *Model) Close() {
	m.unsub()
}

type (
	stateMsg  app.State
	closedMsg struct{}
)

// waitForState blocks until the loop publishes a new state.
func (m *Model) waitForState() tea.Cmd {
	states := m.states
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForState()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		prev := m.state.Input
		m.state = app.State(msg)
		if m.state.Terminated {
			return m, tea.Quit
		}
		if m.state.Input != prev {
			m.input = m.state.InputText
		}
		return m, m.waitForState()
	case closedMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		a, input, ok := translate(m.state, m.keys, m.input, msg)
		if !ok {
			return m, nil
		}
		m.input = input
		if !m.loop.Dispatch(a) {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	return render(m.state, m.keys, m.styles, m.width, m.height)
}

// Run shows the browser until the user quits, the loop stops or ctx ends.
func Run(ctx context.Context, loop *app.Loop, opts ...Option) error {
	o := buildOptions(opts)
	m := New(loop, opts...)
	defer m.Close()

	popts := []tea.ProgramOption{tea.WithContext(ctx)}
	if o.in != nil || o.out != nil {
		popts = append(popts, tea.WithInput(o.in), tea.WithOutput(o.out))
	} else {
		popts = append(popts, tea.WithAltScreen())
	}

	_, err := tea.NewProgram(m, popts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

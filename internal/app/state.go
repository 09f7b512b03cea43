// Package app is the application state machine.
//
// Reduce is a pure function from (State, Action) to a new State and a list
// of Effect descriptors. It performs no I/O. The Loop owns the State on one
// goroutine, runs effects through an Executor and feeds the resulting
// actions back into Reduce.
//
// # Phases
//
//   - Idle to Browsing when an environment opens
//   - Browsing to Querying on RunQuery, and back on ExitQuery
//   - Browsing or Querying to Editing when the first edit is applied
//   - Editing to Browsing (or Querying) on Committed or Aborted
//   - any phase to Idle on Close or EnvClosed
//
// A query started while Editing keeps the phase Editing.
package app

import (
	"bytes"
	"fmt"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/store"
)

const (
	// MaxRecent bounds the recent command list.
	MaxRecent = 50

	// MaxJumps bounds the jump history.
	MaxJumps = 50

	// DefaultEntryLimit is the number of entries loaded per database view.
	DefaultEntryLimit = 100
)

// Phase is the coarse application mode.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBrowsing
	PhaseQuerying
	PhaseEditing
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBrowsing:
		return "browsing"
	case PhaseQuerying:
		return "querying"
	case PhaseEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// View is one entry of the navigation stack.
type View int

const (
	ViewDatabases View = iota
	ViewQuery
	ViewPreview
	ViewHelp
)

// String returns the lowercase view name.
func (v View) String() string {
	switch v {
	case ViewDatabases:
		return "databases"
	case ViewQuery:
		return "query"
	case ViewPreview:
		return "preview"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// InputMode says where typed text goes.
type InputMode int

const (
	// InputNone routes keys to navigation.
	InputNone InputMode = iota
	// InputQuery edits a query expression.
	InputQuery
	// InputPut edits a "key=value" pair for the selected database.
	InputPut
)

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a transient message for the user.
type Notice struct {
	Level Level
	Code  apperr.Code
	Text  string
}

// EnvInfo describes the open environment.
type EnvInfo struct {
	Path     string
	ReadOnly bool
}

// Location addresses one key.
type Location struct {
	DB  string
	Key []byte
}

// Equal reports whether l and o address the same key.
func (l Location) Equal(o Location) bool {
	return l.DB == o.DB && bytes.Equal(l.Key, o.Key)
}

// String renders the location as db/"key".
func (l Location) String() string {
	return fmt.Sprintf("%s/%q", l.DB, l.Key)
}

// JobRef correlates an outstanding job with the effect that started it.
type JobRef struct {
	Ref  int
	ID   string
	Kind jobs.Kind
}

// QueryState is the active query.
type QueryState struct {
	Text    string
	DB      string
	Ref     int
	Running bool
	Scanned int
	Skipped int
	Results []store.Record
}

// State is the whole application state. Values are immutable: Reduce
// returns a new State and never writes through slices of the old one.
type State struct {
	Phase      Phase
	Terminated bool

	Env       *EnvInfo
	Databases []string
	Selected  int

	Entries []store.Record
	Cursor  int
	// Focus is the key the cursor moves to once entries load.
	Focus []byte

	Views     []View
	Input     InputMode
	InputText string

	// Pending is the token of the open write transaction.
	Pending string
	Undo    int
	Redo    int

	Query *QueryState
	Jobs  []JobRef
	// NextRef numbers job effects.
	NextRef int

	Recent    []string
	Bookmarks []Location
	Jumps     []Location

	DBStats  *store.DBStats
	EnvStats *store.EnvStats

	Notice *Notice

	EntryLimit int
}

// NewState returns the initial Idle state.
func NewState() State {
	return State{
		Views:      []View{ViewDatabases},
		EntryLimit: DefaultEntryLimit,
	}
}

// CurrentDB returns the selected database name.
func (s State) CurrentDB() (string, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Databases) {
		return "", false
	}
	return s.Databases[s.Selected], true
}

// Current returns the entry under the cursor.
func (s State) Current() (store.Record, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Entries) {
		return store.Record{}, false
	}
	return s.Entries[s.Cursor], true
}

// View returns the top of the navigation stack.
func (s State) View() View {
	if len(s.Views) == 0 {
		return ViewDatabases
	}
	return s.Views[len(s.Views)-1]
}

// Bookmarked reports whether loc is bookmarked.
func (s State) Bookmarked(loc Location) bool {
	return indexOf(s.Bookmarks, loc) >= 0
}

func indexOf(list []Location, loc Location) int {
	for i, l := range list {
		if l.Equal(loc) {
			return i
		}
	}
	return -1
}

// pushBounded returns a new slice with v appended, dropping the oldest
// elements beyond limit.
func pushBounded[T any](list []T, v T, limit int) []T {
	if drop := len(list) + 1 - limit; drop > 0 {
		list = list[drop:]
	}
	out := make([]T, 0, len(list)+1)
	out = append(out, list...)
	return append(out, v)
}

// without returns a new slice lacking the element at i.
func without[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

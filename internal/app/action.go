package app

import (
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/store"
)

// Action is an input to Reduce: either a user intent or the result of an
// effect.
type Action interface {
	action()
}

// User intents.
type (
	OpenEnv struct {
		Path string
		Mode store.OpenMode
	}
	Close        struct{}
	Quit         struct{}
	SelectDB     struct{ Name string }
	NextDB       struct{}
	PrevDB       struct{}
	NextEntry    struct{}
	PrevEntry    struct{}
	Refresh      struct{}
	RunQuery     struct{ Text string }
	ExitQuery    struct{}
	Put          struct {
		DB         string
		Key, Value []byte
	}
	Delete struct {
		DB  string
		Key []byte
	}
	DeleteCurrent  struct{}
	UndoEdit       struct{}
	RedoEdit       struct{}
	Commit         struct{}
	Abort          struct{}
	ToggleBookmark struct{}
	JumpTo         struct{ Location Location }
	ShowStats      struct{}
	ShowEnvStats   struct{}
	Export         struct {
		DB     string
		Format export.Format
		Path   string
	}
	Import struct {
		DB     string
		Format export.Format
		Path   string
	}
	Push          struct{ View View }
	Back          struct{}
	StartInput    struct{ Mode InputMode }
	EditInput     struct{ Text string }
	SubmitInput   struct{}
	CancelInput   struct{}
	DismissNotice struct{}
)

// Effect results.
type (
	EnvOpened struct {
		Info      EnvInfo
		Databases []string
	}
	EnvClosed       struct{}
	DatabasesLoaded struct{ Names []string }
	EntriesLoaded   struct {
		DB      string
		Records []store.Record
	}
	// Edited reports an applied Put, Delete, Undo or Redo.
	Edited struct {
		Op      EditOp
		Command history.Command
		Token   string
		Undo    int
		Redo    int
	}
	Imported struct {
		DB    string
		Count int
		Token string
		Undo  int
		Redo  int
	}
	Committed  struct{}
	Aborted    struct{}
	JobStarted struct {
		Ref  int
		ID   string
		Kind jobs.Kind
	}
	JobUpdate struct {
		Ref    int
		Update jobs.Update
	}
	// Failed reports an effect that returned an error.
	Failed struct {
		Op  string
		Err error
	}
)

func (OpenEnv) action()         {}
func (Close) action()           {}
func (Quit) action()            {}
func (SelectDB) action()        {}
func (NextDB) action()          {}
func (PrevDB) action()          {}
func (NextEntry) action()       {}
func (PrevEntry) action()       {}
func (Refresh) action()         {}
func (RunQuery) action()        {}
func (ExitQuery) action()       {}
func (Put) action()             {}
func (Delete) action()          {}
func (DeleteCurrent) action()   {}
func (UndoEdit) action()        {}
func (RedoEdit) action()        {}
func (Commit) action()          {}
func (Abort) action()           {}
func (ToggleBookmark) action()  {}
func (JumpTo) action()          {}
func (ShowStats) action()       {}
func (ShowEnvStats) action()    {}
func (Export) action()          {}
func (Import) action()          {}
func (Push) action()            {}
func (Back) action()            {}
func (StartInput) action()      {}
func (EditInput) action()       {}
func (SubmitInput) action()     {}
func (CancelInput) action()     {}
func (DismissNotice) action()   {}
func (EnvOpened) action()       {}
func (EnvClosed) action()       {}
func (DatabasesLoaded) action() {}
func (EntriesLoaded) action()   {}
func (Edited) action()          {}
func (Imported) action()        {}
func (Committed) action()       {}
func (Aborted) action()         {}
func (JobStarted) action()      {}
func (JobUpdate) action()       {}
func (Failed) action()          {}

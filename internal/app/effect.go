package app

import (
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/store"
)

// EffectKind identifies the work an Effect asks for.
type EffectKind int

const (
	EffectOpenEnv EffectKind = iota + 1
	EffectCloseEnv
	EffectLoadDatabases
	EffectLoadEntries
	EffectEdit
	EffectCommit
	EffectAbort
	EffectImport
	EffectSubmitJob
	EffectCancelJob
	EffectExit
)

// String returns the effect kind name.
func (k EffectKind) String() string {
	switch k {
	case EffectOpenEnv:
		return "open-env"
	case EffectCloseEnv:
		return "close-env"
	case EffectLoadDatabases:
		return "load-databases"
	case EffectLoadEntries:
		return "load-entries"
	case EffectEdit:
		return "edit"
	case EffectCommit:
		return "commit"
	case EffectAbort:
		return "abort"
	case EffectImport:
		return "import"
	case EffectSubmitJob:
		return "submit-job"
	case EffectCancelJob:
		return "cancel-job"
	case EffectExit:
		return "exit"
	default:
		return "unknown"
	}
}

// EditOp is the edit an EffectEdit applies.
type EditOp int

const (
	OpPut EditOp = iota + 1
	OpDelete
	OpUndo
	OpRedo
)

// String returns the lowercase op name.
func (o EditOp) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpUndo:
		return "undo"
	case OpRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Effect describes I/O for the Executor. Only the fields relevant to Kind
// are set.
type Effect struct {
	Kind EffectKind

	Path string
	Mode store.OpenMode

	DB    string
	Key   []byte
	Value []byte
	Op    EditOp
	Limit int

	Format export.Format

	// Ref correlates job effects with JobStarted and JobUpdate.
	Ref   int
	Job   jobs.Request
	JobID string
}

package app

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/query"
)

// Reduce applies a to s and returns the next state and the effects to run,
// in order. It performs no I/O. A terminated state ignores every action.
func Reduce(s State, a Action) (State, []Effect) {
	if s.Terminated {
		return s, nil
	}

	switch a := a.(type) {
	case OpenEnv:
		return openEnv(s, a)
	case Close:
		return closeEnv(s)
	case Quit:
		return quit(s)
	case SelectDB:
		if s.Env == nil {
			return noEnv(s), nil
		}
		idx := slices.Index(s.Databases, a.Name)
		if idx < 0 {
			return notify(s, LevelError, apperr.CodeNotFound, fmt.Sprintf("database %s not found", a.Name)), nil
		}
		return selectIndex(s, idx)
	case NextDB:
		if len(s.Databases) == 0 {
			return s, nil
		}
		return selectIndex(s, (s.Selected+1)%len(s.Databases))
	case PrevDB:
		if len(s.Databases) == 0 {
			return s, nil
		}
		return selectIndex(s, (s.Selected-1+len(s.Databases))%len(s.Databases))
	case NextEntry:
		if len(s.Entries) > 0 {
			s.Cursor = (s.Cursor + 1) % len(s.Entries)
		}
		return s, nil
	case PrevEntry:
		if len(s.Entries) > 0 {
			s.Cursor = (s.Cursor - 1 + len(s.Entries)) % len(s.Entries)
		}
		return s, nil
	case Refresh:
		if s.Env == nil {
			return noEnv(s), nil
		}
		return s, append([]Effect{{Kind: EffectLoadDatabases}}, loadEntries(s)...)
	case RunQuery:
		return runQuery(s, a.Text)
	case ExitQuery:
		return exitQuery(s)
	case Put:
		return put(s, a)
	case Delete:
		return del(s, a)
	case DeleteCurrent:
		rec, ok := s.Current()
		if !ok {
			return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no entry selected"), nil
		}
		return del(s, Delete{Key: rec.Key})
	case UndoEdit:
		return step(s, OpUndo)
	case RedoEdit:
		return step(s, OpRedo)
	case Commit:
		if s.Pending == "" {
			return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no pending changes"), nil
		}
		return s, []Effect{{Kind: EffectCommit}}
	case Abort:
		if s.Pending == "" {
			return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no pending changes"), nil
		}
		return s, []Effect{{Kind: EffectAbort}}
	case ToggleBookmark:
		return toggleBookmark(s)
	case JumpTo:
		return jumpTo(s, a.Location)
	case ShowStats:
		db, ok := s.CurrentDB()
		if !ok {
			return noDB(s), nil
		}
		return submit(s, jobs.Request{Kind: jobs.KindDBStats, DB: db})
	case ShowEnvStats:
		if s.Env == nil {
			return noEnv(s), nil
		}
		return submit(s, jobs.Request{Kind: jobs.KindEnvStats})
	case Export:
		return exportDB(s, a)
	case Import:
		return importDB(s, a)
	case Push:
		if s.View() != a.View {
			s.Views = pushBounded(s.Views, a.View, len(s.Views)+1)
		}
		return s, nil
	case Back:
		return back(s)
	case StartInput:
		if s.Env == nil {
			return noEnv(s), nil
		}
		s.Input = a.Mode
		s.InputText = ""
		if a.Mode == InputQuery && s.Query != nil {
			s.InputText = s.Query.Text
		}
		return s, nil
	case EditInput:
		if s.Input != InputNone {
			s.InputText = a.Text
		}
		return s, nil
	case SubmitInput:
		return submitInput(s)
	case CancelInput:
		s.Input = InputNone
		s.InputText = ""
		return s, nil
	case DismissNotice:
		s.Notice = nil
		return s, nil

	case EnvOpened:
		return envOpened(s, a)
	case EnvClosed:
		return idle(s), nil
	case Failed:
		return failed(s, a)
	}

	// Remaining actions are results that only apply to an open environment.
	if s.Env == nil {
		return s, nil
	}
	switch a := a.(type) {
	case DatabasesLoaded:
		return databasesLoaded(s, a)
	case EntriesLoaded:
		return entriesLoaded(s, a), nil
	case Edited:
		return edited(s, a)
	case Imported:
		return imported(s, a)
	case Committed:
		return writeEnded(s, "changes committed")
	case Aborted:
		return writeEnded(s, "changes discarded")
	case JobStarted:
		return jobStarted(s, a)
	case JobUpdate:
		return jobUpdate(s, a), nil
	}
	return s, nil
}

func notify(s State, level Level, code apperr.Code, text string) State {
	s.Notice = &Notice{Level: level, Code: code, Text: text}
	return s
}

func noEnv(s State) State {
	return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no environment open")
}

func noDB(s State) State {
	return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no database selected")
}

// idle drops everything tied to the open environment.
func idle(s State) State {
	return State{
		Phase:      PhaseIdle,
		Views:      []View{ViewDatabases},
		NextRef:    s.NextRef,
		Recent:     s.Recent,
		Bookmarks:  s.Bookmarks,
		Jumps:      s.Jumps,
		Notice:     s.Notice,
		EntryLimit: s.EntryLimit,
	}
}

// release returns the effects that let go of the environment: cancel jobs,
// abort the pending write, close.
func release(s State) []Effect {
	var effects []Effect
	for _, j := range s.Jobs {
		effects = append(effects, Effect{Kind: EffectCancelJob, Ref: j.Ref, JobID: j.ID})
	}
	if s.Pending != "" {
		effects = append(effects, Effect{Kind: EffectAbort})
	}
	return append(effects, Effect{Kind: EffectCloseEnv})
}

func openEnv(s State, a OpenEnv) (State, []Effect) {
	if s.Pending != "" {
		return notify(s, LevelWarn, apperr.CodeWriteConflict, "commit or abort pending changes first"), nil
	}
	var effects []Effect
	if s.Env != nil {
		effects = release(s)
	}
	s = idle(s)
	s.Notice = nil
	return s, append(effects, Effect{Kind: EffectOpenEnv, Path: a.Path, Mode: a.Mode})
}

func closeEnv(s State) (State, []Effect) {
	if s.Env == nil {
		return s, nil
	}
	effects := release(s)
	return idle(s), effects
}

func quit(s State) (State, []Effect) {
	var effects []Effect
	if s.Env != nil {
		effects = release(s)
	}
	s = idle(s)
	s.Terminated = true
	return s, append(effects, Effect{Kind: EffectExit})
}

func envOpened(s State, a EnvOpened) (State, []Effect) {
	s = idle(s)
	info := a.Info
	s.Env = &info
	s.Phase = PhaseBrowsing
	s.Databases = a.Databases
	s = notify(s, LevelInfo, "", "opened "+info.Path)
	return s, loadEntries(s)
}

func loadEntries(s State) []Effect {
	db, ok := s.CurrentDB()
	if !ok {
		return nil
	}
	return []Effect{{Kind: EffectLoadEntries, DB: db, Limit: s.EntryLimit}}
}

func selectIndex(s State, idx int) (State, []Effect) {
	s.Selected = idx
	s.Entries = nil
	s.Cursor = 0
	s.Focus = nil
	s.DBStats = nil
	return s, loadEntries(s)
}

func databasesLoaded(s State, a DatabasesLoaded) (State, []Effect) {
	cur, had := s.CurrentDB()
	s.Databases = a.Names
	if had {
		if idx := slices.Index(a.Names, cur); idx >= 0 {
			s.Selected = idx
			return s, nil
		}
	}
	return selectIndex(s, 0)
}

func entriesLoaded(s State, a EntriesLoaded) State {
	if db, ok := s.CurrentDB(); !ok || db != a.DB {
		return s
	}
	s.Entries = a.Records
	if s.Focus != nil {
		for i, rec := range a.Records {
			if bytes.Equal(rec.Key, s.Focus) {
				s.Cursor = i
				break
			}
		}
		s.Focus = nil
	}
	if s.Cursor >= len(s.Entries) {
		s.Cursor = max(len(s.Entries)-1, 0)
	}
	return s
}

func runQuery(s State, text string) (State, []Effect) {
	db, ok := s.CurrentDB()
	if !ok {
		return noDB(s), nil
	}
	q, err := query.Parse(text, nil)
	if err != nil {
		return notify(s, LevelError, apperr.CodeOf(err), err.Error()), nil
	}

	var effects []Effect
	if s.Query != nil && s.Query.Running {
		effects = cancelRef(s, s.Query.Ref)
	}
	if s.Phase == PhaseBrowsing {
		s.Phase = PhaseQuerying
	}
	if s.View() != ViewQuery {
		s.Views = pushBounded(s.Views, ViewQuery, len(s.Views)+1)
	}
	s.NextRef++
	s.Query = &QueryState{Text: text, DB: db, Ref: s.NextRef, Running: true}
	s.Notice = nil
	return s, append(effects, Effect{
		Kind: EffectSubmitJob,
		Ref:  s.NextRef,
		Job:  jobs.Request{Kind: jobs.KindScan, DB: db, Query: q, Limit: s.EntryLimit},
	})
}

// cancelRef cancels the job started for ref, if it has started.
func cancelRef(s State, ref int) []Effect {
	for _, j := range s.Jobs {
		if j.Ref == ref {
			return []Effect{{Kind: EffectCancelJob, Ref: ref, JobID: j.ID}}
		}
	}
	return nil
}

func exitQuery(s State) (State, []Effect) {
	if s.Query == nil {
		return s, nil
	}
	var effects []Effect
	if s.Query.Running {
		effects = cancelRef(s, s.Query.Ref)
	}
	s.Query = nil
	if s.Phase == PhaseQuerying {
		s.Phase = PhaseBrowsing
	}
	if i := slices.Index(s.Views, ViewQuery); i >= 0 {
		s.Views = slices.Clone(s.Views[:i])
		if len(s.Views) == 0 {
			s.Views = []View{ViewDatabases}
		}
	}
	return s, effects
}

func back(s State) (State, []Effect) {
	if s.View() == ViewQuery {
		return exitQuery(s)
	}
	if len(s.Views) > 1 {
		s.Views = slices.Clone(s.Views[:len(s.Views)-1])
	}
	return s, nil
}

// writable returns the notice state when edits are impossible.
func writable(s State) (State, bool) {
	if s.Env == nil {
		return noEnv(s), false
	}
	if s.Env.ReadOnly {
		return notify(s, LevelError, apperr.CodePermissionDenied, "environment is read-only"), false
	}
	return s, true
}

// targetDB resolves an explicit database or falls back to the selected one.
func targetDB(s State, db string) (string, bool) {
	if db != "" {
		return db, true
	}
	return s.CurrentDB()
}

func put(s State, a Put) (State, []Effect) {
	s, ok := writable(s)
	if !ok {
		return s, nil
	}
	db, ok := targetDB(s, a.DB)
	if !ok {
		return noDB(s), nil
	}
	return s, []Effect{{Kind: EffectEdit, Op: OpPut, DB: db, Key: a.Key, Value: a.Value}}
}

func del(s State, a Delete) (State, []Effect) {
	s, ok := writable(s)
	if !ok {
		return s, nil
	}
	db, ok := targetDB(s, a.DB)
	if !ok {
		return noDB(s), nil
	}
	return s, []Effect{{Kind: EffectEdit, Op: OpDelete, DB: db, Key: a.Key}}
}

func step(s State, op EditOp) (State, []Effect) {
	if s.Pending == "" {
		return notify(s, LevelWarn, apperr.CodeEmptyHistory, "nothing to "+op.String()), nil
	}
	return s, []Effect{{Kind: EffectEdit, Op: op}}
}

func edited(s State, a Edited) (State, []Effect) {
	s.Phase = PhaseEditing
	s.Pending = a.Token
	s.Undo, s.Redo = a.Undo, a.Redo

	entry := a.Command.String()
	if a.Op == OpUndo || a.Op == OpRedo {
		entry = a.Op.String() + " " + entry
	}
	s.Recent = pushBounded(s.Recent, entry, MaxRecent)
	s.Notice = nil

	if db, ok := s.CurrentDB(); ok && db == a.Command.DB && a.Op == OpPut {
		s.Focus = bytes.Clone(a.Command.Key)
	}
	effects := loadEntries(s)
	if !slices.Contains(s.Databases, a.Command.DB) {
		effects = append([]Effect{{Kind: EffectLoadDatabases}}, effects...)
	}
	return s, effects
}

func imported(s State, a Imported) (State, []Effect) {
	if a.Token != "" {
		s.Phase = PhaseEditing
		s.Pending = a.Token
		s.Undo, s.Redo = a.Undo, a.Redo
	}
	if a.Count > 0 {
		s.Recent = pushBounded(s.Recent, fmt.Sprintf("import %d records into %s", a.Count, a.DB), MaxRecent)
	}
	s = notify(s, LevelInfo, "", fmt.Sprintf("imported %d records into %s", a.Count, a.DB))
	return s, append([]Effect{{Kind: EffectLoadDatabases}}, loadEntries(s)...)
}

// afterWrite is the phase once the write transaction is gone.
func afterWrite(s State) Phase {
	if s.Query != nil {
		return PhaseQuerying
	}
	return PhaseBrowsing
}

func writeEnded(s State, text string) (State, []Effect) {
	s.Pending = ""
	s.Undo, s.Redo = 0, 0
	s.Phase = afterWrite(s)
	s.DBStats = nil
	s = notify(s, LevelInfo, "", text)
	return s, append([]Effect{{Kind: EffectLoadDatabases}}, loadEntries(s)...)
}

func toggleBookmark(s State) (State, []Effect) {
	rec, ok := s.Current()
	db, hasDB := s.CurrentDB()
	if !ok || !hasDB {
		return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no entry selected"), nil
	}
	loc := Location{DB: db, Key: bytes.Clone(rec.Key)}
	if i := indexOf(s.Bookmarks, loc); i >= 0 {
		s.Bookmarks = without(s.Bookmarks, i)
		return notify(s, LevelInfo, "", "removed bookmark "+loc.String()), nil
	}
	s.Bookmarks = pushBounded(s.Bookmarks, loc, len(s.Bookmarks)+1)
	s.Jumps = pushBounded(s.Jumps, loc, MaxJumps)
	return notify(s, LevelInfo, "", "bookmarked "+loc.String()), nil
}

func jumpTo(s State, loc Location) (State, []Effect) {
	if s.Env == nil {
		return noEnv(s), nil
	}
	idx := slices.Index(s.Databases, loc.DB)
	if idx < 0 {
		return notify(s, LevelError, apperr.CodeNotFound, fmt.Sprintf("database %s not found", loc.DB)), nil
	}
	s.Jumps = pushBounded(s.Jumps, loc, MaxJumps)
	s, effects := selectIndex(s, idx)
	s.Focus = bytes.Clone(loc.Key)
	return s, effects
}

func submit(s State, req jobs.Request) (State, []Effect) {
	s.NextRef++
	return s, []Effect{{Kind: EffectSubmitJob, Ref: s.NextRef, Job: req}}
}

func exportDB(s State, a Export) (State, []Effect) {
	if s.Env == nil {
		return noEnv(s), nil
	}
	db, ok := targetDB(s, a.DB)
	if !ok {
		return noDB(s), nil
	}
	if a.Path == "" {
		return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no export path"), nil
	}
	return submit(s, jobs.Request{Kind: jobs.KindExport, DB: db, Format: a.Format, Path: a.Path})
}

func importDB(s State, a Import) (State, []Effect) {
	s, ok := writable(s)
	if !ok {
		return s, nil
	}
	db, ok := targetDB(s, a.DB)
	if !ok {
		return noDB(s), nil
	}
	if a.Path == "" {
		return notify(s, LevelWarn, apperr.CodeInvalidArgument, "no import path"), nil
	}
	return s, []Effect{{Kind: EffectImport, DB: db, Format: a.Format, Path: a.Path}}
}

func submitInput(s State) (State, []Effect) {
	mode, text := s.Input, s.InputText
	s.Input = InputNone
	s.InputText = ""
	switch mode {
	case InputQuery:
		return runQuery(s, text)
	case InputPut:
		key, value, ok := strings.Cut(text, "=")
		if !ok || key == "" {
			return notify(s, LevelWarn, apperr.CodeInvalidArgument, "expected key=value"), nil
		}
		return put(s, Put{Key: []byte(key), Value: []byte(value)})
	default:
		return s, nil
	}
}

func jobStarted(s State, a JobStarted) (State, []Effect) {
	s.Jobs = pushBounded(s.Jobs, JobRef{Ref: a.Ref, ID: a.ID, Kind: a.Kind}, len(s.Jobs)+1)
	// A scan whose query was replaced or dismissed before it started.
	if a.Kind == jobs.KindScan && (s.Query == nil || s.Query.Ref != a.Ref) {
		return s, []Effect{{Kind: EffectCancelJob, Ref: a.Ref, JobID: a.ID}}
	}
	return s, nil
}

func jobUpdate(s State, a JobUpdate) State {
	u := a.Update
	isQuery := s.Query != nil && s.Query.Ref == a.Ref

	if !u.Final {
		if isQuery {
			q := *s.Query
			q.Scanned = u.Scanned
			s.Query = &q
		}
		return s
	}

	for i, j := range s.Jobs {
		if j.Ref == a.Ref {
			s.Jobs = without(s.Jobs, i)
			break
		}
	}

	if isQuery {
		q := *s.Query
		q.Running = false
		q.Scanned = u.Scanned
		s.Query = &q
		switch u.Status {
		case jobs.StatusSucceeded:
			q.Results = u.Result.Records
			q.Skipped = u.Result.Skipped
			return notify(s, LevelInfo, "", fmt.Sprintf("%d matches", len(q.Results)))
		case jobs.StatusCancelled:
			return notify(s, LevelInfo, "", "query cancelled")
		default:
			return notify(s, LevelError, apperr.CodeOf(u.Err), errText(u.Err))
		}
	}
	if u.Kind == jobs.KindScan {
		// Result of a superseded query.
		return s
	}

	switch u.Status {
	case jobs.StatusSucceeded:
		switch u.Kind {
		case jobs.KindDBStats:
			s.DBStats = u.Result.DBStats
		case jobs.KindEnvStats:
			s.EnvStats = u.Result.EnvStats
		case jobs.KindExport:
			return notify(s, LevelInfo, "", fmt.Sprintf("exported %d records", u.Result.Exported))
		case jobs.KindCount:
			return notify(s, LevelInfo, "", fmt.Sprintf("%d entries", u.Result.Count))
		}
		return s
	case jobs.StatusCancelled:
		return notify(s, LevelInfo, "", u.Kind.String()+" cancelled")
	default:
		return notify(s, LevelError, apperr.CodeOf(u.Err), errText(u.Err))
	}
}

func failed(s State, a Failed) (State, []Effect) {
	s = notify(s, LevelError, apperr.CodeOf(a.Err), fmt.Sprintf("%s: %s", a.Op, errText(a.Err)))
	// The store force-aborted the write; nothing is pending any more.
	if apperr.Is(a.Err, apperr.CodeWriteAborted) && s.Pending != "" {
		s.Pending = ""
		s.Undo, s.Redo = 0, 0
		s.Phase = afterWrite(s)
		return s, loadEntries(s)
	}
	return s, nil
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

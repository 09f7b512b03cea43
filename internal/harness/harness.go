package harness

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/service"
	"github.com/roach88/boltview/internal/store"
	"github.com/roach88/boltview/internal/testutil"
)

// TokenPrefix prefixes the write tokens issued during a run: tx-1, tx-2, ...
const TokenPrefix = "tx"

// Harness executes the steps of one scenario against one store.
type Harness struct {
	svc    *service.Service
	env    *store.Environment
	logger *slog.Logger
}

// Run executes scenario against a new store created in dir and returns the
// result. An error means the harness itself could not run; scenario
// failures are reported in Result.Errors.
//
// Execution flow:
//  1. Create a store at dir/<name>.db with sequential write tokens
//  2. Execute setup steps; any failure stops the run
//  3. Execute flow steps and check expect clauses
//  4. Discard uncommitted edits and snapshot the committed state
//  5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	logger := testutil.DiscardLogger()
	mgr := store.NewManager(
		store.WithNoSync(),
		store.WithTokenGenerator(testutil.NewSequenceGenerator(TokenPrefix)),
		store.WithLogger(logger),
	)
	defer func() {
		if err := mgr.CloseAll(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	env, err := mgr.Open(filepath.Join(dir, scenario.Name+".db"), store.ModeCreate)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	h := &Harness{
		svc:    service.New(env, service.WithLogger(logger)),
		env:    env,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		e := result.AddEvent(h.execute(ctx, step))
		if e.Case != CaseOK {
			return nil, fmt.Errorf("setup step %d (%s) failed: %s", i, step.Op, e.Message)
		}
	}
	for i, step := range scenario.Flow {
		e := result.AddEvent(h.execute(ctx, step))
		for _, msg := range checkExpect(e, step.Expect) {
			result.AddError(fmt.Sprintf("flow step %d (%s): %s", i, step.Op, msg))
		}
	}

	if _, pending := h.svc.Pending(); pending {
		if err := h.svc.Abort(ctx); err != nil {
			return nil, fmt.Errorf("failed to discard pending edits: %w", err)
		}
	}
	if result.State, err = h.snapshot(); err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and returns its event.
func (h *Harness) execute(ctx context.Context, step Step) TraceEvent {
	e := TraceEvent{Op: step.Op, Args: stepArgs(step)}
	res, err := h.dispatch(ctx, step)
	if err != nil {
		e.Case = string(apperr.CodeOf(err))
		if e.Case == "" {
			e.Case = "ERROR"
		}
		e.Message = err.Error()
		h.logger.Debug("step failed", "op", step.Op, "error", err)
		return e
	}
	e.Case = CaseOK
	e.Result = res
	return e
}

func (h *Harness) dispatch(ctx context.Context, step Step) (map[string]any, error) {
	key := []byte(step.Key)
	switch step.Op {
	case OpPut:
		if err := h.svc.Put(ctx, step.DB, key, []byte(step.Value)); err != nil {
			return nil, err
		}
		return h.depth(), nil
	case OpDelete:
		if err := h.svc.Delete(ctx, step.DB, key); err != nil {
			return nil, err
		}
		return h.depth(), nil
	case OpGet:
		value, found, err := h.svc.Get(ctx, step.DB, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return map[string]any{"found": false}, nil
		}
		return map[string]any{"found": true, "value": string(value)}, nil
	case OpUndo:
		cmd, err := h.svc.Undo(ctx)
		if err != nil {
			return nil, err
		}
		return h.edit(cmd), nil
	case OpRedo:
		cmd, err := h.svc.Redo(ctx)
		if err != nil {
			return nil, err
		}
		return h.edit(cmd), nil
	case OpCommit:
		return nil, h.svc.Commit(ctx)
	case OpAbort:
		return nil, h.svc.Abort(ctx)
	case OpList:
		names, err := h.svc.ListDatabases(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"databases": anySlice(names)}, nil
	case OpQuery:
		q, err := query.Parse(step.Query, nil)
		if err != nil {
			return nil, err
		}
		var keys []string
		err = h.svc.Query(ctx, step.DB, q, func(rec store.Record) error {
			keys = append(keys, string(rec.Key))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"keys": anySlice(keys)}, nil
	case OpStats:
		st, err := h.svc.Stats(ctx, step.DB)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": st.Entries}, nil
	}
	return nil, apperr.Newf(apperr.CodeInvalidArgument, "harness", "unknown op %q", step.Op)
}

// depth reports the pending write after an edit.
func (h *Harness) depth() map[string]any {
	token, _ := h.svc.Pending()
	undo, redo := h.svc.Depth()
	return map[string]any{"token": token, "undo": undo, "redo": redo}
}

// edit describes an undone or redone command.
func (h *Harness) edit(cmd history.Command) map[string]any {
	res := h.depth()
	res["kind"] = cmd.Kind.String()
	res["db"] = cmd.DB
	res["key"] = string(cmd.Key)
	return res
}

// snapshot reads every committed entry.
func (h *Harness) snapshot() (map[string]map[string]string, error) {
	r, err := h.env.BeginRead()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names, err := r.Databases()
	if err != nil {
		return nil, err
	}
	state := make(map[string]map[string]string, len(names))
	for _, db := range names {
		entries := make(map[string]string)
		for rec, err := range query.Execute(r, db, query.All()) {
			if err != nil {
				return nil, err
			}
			entries[string(rec.Key)] = string(rec.Value)
		}
		state[db] = entries
	}
	return state, nil
}

func stepArgs(step Step) map[string]any {
	args := make(map[string]any)
	if step.DB != "" {
		args["db"] = step.DB
	}
	if step.Key != "" {
		args["key"] = step.Key
	}
	if step.Op == OpPut {
		args["value"] = step.Value
	}
	if step.Query != "" {
		args["query"] = step.Query
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

// anySlice converts names to the []any form YAML expectations decode to.
func anySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// Package service is the session contract every surface drives: the CLI,
// the interactive loop and the remote HTTP API all call the same methods.
//
// Edits accumulate in one pending write transaction that stays open across
// calls until Commit or Abort. Every edit is recorded on the transaction's
// undo stack. Reads see the pending edits when a write is open, and the last
// commit otherwise.
package service

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/store"
)

// DefaultEntryLimit is the number of entries Entries returns when no limit is given.
const DefaultEntryLimit = 100

// Service serves one environment.
type Service struct {
	env    *store.Environment
	logger *slog.Logger

	// mu serializes acquisition and release of the pending write.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service over env.
func New(env *store.Environment, opts ...Option) *Service {
	s := &Service{env: env, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Environment returns the served environment.
func (s *Service) Environment() *store.Environment {
	return s.env
}

// Pending returns the token of the open write transaction, if any.
func (s *Service) Pending() (string, bool) {
	if w := s.env.Write(); w != nil {
		return w.Token(), true
	}
	return "", false
}

// view runs fn against the pending write if one is open, else a fresh snapshot.
func (s *Service) view(fn func(store.Reader) error) error {
	if w := s.env.Write(); w != nil {
		err := w.View(fn)
		// The write ended between the lookup and the view; fall through to a snapshot.
		if !apperr.Is(err, apperr.CodeWriteConflict) {
			return err
		}
	}
	r, err := s.env.BeginRead()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

// edit runs fn against the pending write, opening one if needed. A panic in
// fn aborts the write. If fn fails on a write this call opened and left no
// history, that write is aborted so no empty write outlives the call.
func (s *Service) edit(fn func(*store.WriteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.env.Write()
	opened := w == nil
	if opened {
		var err error
		if w, err = s.env.BeginWrite(); err != nil {
			return err
		}
		s.logger.Debug("opened write transaction", "token", w.Token())
	}
	err := s.env.Guard(w.Token(), fn)
	if err != nil && opened && s.env.Write() == w {
		if undo, redo := w.Depth(); undo == 0 && redo == 0 {
			if aerr := s.env.Abort(w.Token()); aerr != nil {
				s.logger.Warn("failed to release write transaction", "token", w.Token(), "error", aerr)
			} else {
				s.logger.Debug("released unused write transaction", "token", w.Token())
			}
		}
	}
	return err
}

// ListDatabases returns the database names in ascending order.
func (s *Service) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.view(func(r store.Reader) error {
		var err error
		names, err = r.Databases()
		return err
	})
	return names, err
}

// Get returns the value at key. found is false when the key is absent.
//
// Errors:
//   - NOT_FOUND: db does not exist
func (s *Service) Get(ctx context.Context, db string, key []byte) (value []byte, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	err = s.view(func(r store.Reader) error {
		value, found, err = r.Get(db, key)
		return err
	})
	return value, found, err
}

// Put sets key to value in the pending write, creating db if needed.
//
// Errors:
//   - PERMISSION_DENIED: the environment is read-only
//   - WRITE_CONFLICT: another writer holds the environment
func (s *Service) Put(ctx context.Context, db string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.edit(func(w *store.WriteTx) error {
		cmd, err := putCommand(w, db, key, value)
		if err != nil {
			return err
		}
		return w.Push(cmd)
	})
}

// putCommand returns Create or Update depending on whether key exists.
func putCommand(w *store.WriteTx, db string, key, value []byte) (history.Command, error) {
	var old []byte
	var found bool
	err := w.View(func(r store.Reader) error {
		var err error
		old, found, err = r.Get(db, key)
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return history.Command{}, err
	}
	if found {
		return history.Update(db, key, old, value), nil
	}
	return history.Create(db, key, value), nil
}

// Delete removes key in the pending write.
//
// Errors:
//   - NOT_FOUND: db or key does not exist
func (s *Service) Delete(ctx context.Context, db string, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.edit(func(w *store.WriteTx) error {
		var old []byte
		var found bool
		err := w.View(func(r store.Reader) error {
			var err error
			old, found, err = r.Get(db, key)
			return err
		})
		if err != nil {
			return err
		}
		if !found {
			return apperr.Newf(apperr.CodeNotFound, "delete", "key %q not found in %s", key, db)
		}
		return w.Push(history.Delete(db, key, old))
	})
}

// Undo reverts the most recent edit of the pending write.
//
// Errors:
//   - EMPTY_HISTORY: no write is open or nothing to undo
func (s *Service) Undo(ctx context.Context) (history.Command, error) {
	return s.step(ctx, "undo", (*store.WriteTx).Undo)
}

// Redo re-applies the most recently undone edit.
//
// Errors:
//   - EMPTY_HISTORY: no write is open or nothing to redo
func (s *Service) Redo(ctx context.Context) (history.Command, error) {
	return s.step(ctx, "redo", (*store.WriteTx).Redo)
}

func (s *Service) step(ctx context.Context, op string, fn func(*store.WriteTx) (history.Command, error)) (history.Command, error) {
	if err := ctx.Err(); err != nil {
		return history.Command{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.env.Write()
	if w == nil {
		return history.Command{}, apperr.Newf(apperr.CodeEmptyHistory, op, "nothing to %s", op)
	}
	var cmd history.Command
	err := s.env.Guard(w.Token(), func(w *store.WriteTx) error {
		var err error
		cmd, err = fn(w)
		return err
	})
	return cmd, err
}

// History returns the pending write's applied edits, oldest first.
func (s *Service) History() []history.Command {
	if w := s.env.Write(); w != nil {
		return w.History()
	}
	return nil
}

// Depth returns the undo and redo depths of the pending write.
func (s *Service) Depth() (undo, redo int) {
	if w := s.env.Write(); w != nil {
		return w.Depth()
	}
	return 0, 0
}

// Commit makes the pending edits durable.
//
// Errors:
//   - INVALID_ARGUMENT: no write is open
//   - WRITE_ABORTED: the commit failed; the prior state is intact
func (s *Service) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.env.Write()
	if w == nil {
		return apperr.New(apperr.CodeInvalidArgument, "commit", "no pending changes")
	}
	if err := s.env.Commit(w.Token()); err != nil {
		return err
	}
	s.logger.Info("committed", "token", w.Token())
	return nil
}

// Abort discards the pending edits.
//
// Errors:
//   - INVALID_ARGUMENT: no write is open
func (s *Service) Abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.env.Write()
	if w == nil {
		return apperr.New(apperr.CodeInvalidArgument, "abort", "no pending changes")
	}
	if err := s.env.Abort(w.Token()); err != nil {
		return err
	}
	s.logger.Info("aborted", "token", w.Token())
	return nil
}

// Stats returns statistics for db as of the last commit.
func (s *Service) Stats(ctx context.Context, db string) (store.DBStats, error) {
	if err := ctx.Err(); err != nil {
		return store.DBStats{}, err
	}
	return s.env.DatabaseStats(db)
}

// EnvStats returns environment statistics.
func (s *Service) EnvStats(ctx context.Context) (store.EnvStats, error) {
	if err := ctx.Err(); err != nil {
		return store.EnvStats{}, err
	}
	return s.env.Stats()
}

// Entries returns up to limit entries of db in key order. limit <= 0 uses
// DefaultEntryLimit.
func (s *Service) Entries(ctx context.Context, db string, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	var out []store.Record
	err := s.Query(ctx, db, query.All().WithLimit(limit), func(rec store.Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Query runs q against db and calls fn for each match. Iteration stops at
// the first error from fn or when ctx ends.
func (s *Service) Query(ctx context.Context, db string, q query.Query, fn func(store.Record) error) error {
	return s.view(func(r store.Reader) error {
		for rec, err := range query.Execute(r, db, q) {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Import applies records to db as undoable edits in the pending write. It
// does not commit. If any record fails, the edits made by this import are
// rolled back and earlier pending edits are kept.
func (s *Service) Import(ctx context.Context, db string, records iter.Seq2[store.Record, error]) (int, error) {
	n := 0
	err := s.edit(func(w *store.WriteTx) error {
		for rec, err := range records {
			if err == nil {
				err = ctx.Err()
			}
			if err == nil {
				err = importOne(w, db, rec, &n)
			}
			if err != nil {
				if rerr := w.Rollback(n); rerr != nil {
					return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("imported records", "db", db, "records", n)
	return n, nil
}

func importOne(w *store.WriteTx, db string, rec store.Record, n *int) error {
	cmd, err := putCommand(w, db, rec.Key, rec.Value)
	if err != nil {
		return err
	}
	if cmd.Kind == history.KindUpdate && bytes.Equal(cmd.Old, cmd.New) {
		return nil
	}
	if err := w.Push(cmd); err != nil {
		return err
	}
	*n++
	return nil
}

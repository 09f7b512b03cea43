package store

import (
	"errors"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/history"
)

// ReadTx is a snapshot of the last committed state.
type ReadTx struct {
	env *Environment
	tx  *bolt.Tx

	mu     sync.Mutex
	closed bool
}

// BeginRead opens a snapshot. It does not wait for the writer.
//
// Errors:
//   - BUSY: the environment is closing or closed
func (e *Environment) BeginRead() (*ReadTx, error) {
	e.mu.Lock()
	if e.closing || e.closed {
		e.mu.Unlock()
		return nil, apperr.New(apperr.CodeBusy, "begin read", "environment is closed")
	}
	e.readers++
	e.mu.Unlock()

	tx, err := e.db.Begin(false)
	if err != nil {
		e.releaseReader()
		return nil, apperr.Wrap(apperr.CodeBusy, "begin read", err)
	}
	return &ReadTx{env: e, tx: tx}, nil
}

func (e *Environment) releaseReader() {
	e.mu.Lock()
	e.readers--
	e.mu.Unlock()
}

// ID returns the id of the committed transaction this snapshot sees.
func (r *ReadTx) ID() int {
	return r.tx.ID()
}

// Close ends the snapshot. Safe to call more than once.
func (r *ReadTx) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.tx.Rollback()
	r.env.releaseReader()
}

func (r *ReadTx) reader(op string) (txReader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return txReader{}, apperr.New(apperr.CodeBusy, op, "read transaction closed")
	}
	return txReader{tx: r.tx}, nil
}

// Get implements Reader.
func (r *ReadTx) Get(db string, key []byte) ([]byte, bool, error) {
	tr, err := r.reader("get")
	if err != nil {
		return nil, false, err
	}
	return tr.Get(db, key)
}

// Cursor implements Reader.
func (r *ReadTx) Cursor(db string) (*Cursor, error) {
	tr, err := r.reader("cursor")
	if err != nil {
		return nil, err
	}
	return tr.Cursor(db)
}

// Databases implements Reader.
func (r *ReadTx) Databases() ([]string, error) {
	tr, err := r.reader("databases")
	if err != nil {
		return nil, err
	}
	return tr.Databases()
}

// WriteTx is the single live write transaction of an environment.
//
// Edits go through Push so every change lands on the undo stack. All
// methods are safe for concurrent use; they serialize on the transaction.
type WriteTx struct {
	env   *Environment
	tx    *bolt.Tx
	token string

	mu      sync.Mutex
	done    bool
	touched map[string]struct{}
	created map[string]struct{} // buckets this transaction created
	history *history.Stack
}

// BeginWrite opens the write transaction.
//
// Errors:
//   - PERMISSION_DENIED: the environment is read-only
//   - WRITE_CONFLICT: a write transaction is already live
//   - BUSY: the environment is closing or closed
func (e *Environment) BeginWrite() (*WriteTx, error) {
	if e.ReadOnly() {
		return nil, apperr.New(apperr.CodePermissionDenied, "begin write", "environment is read-only")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing || e.closed {
		return nil, apperr.New(apperr.CodeBusy, "begin write", "environment is closed")
	}
	if e.write != nil {
		return nil, apperr.New(apperr.CodeWriteConflict, "begin write", "write transaction already open")
	}

	tx, err := e.db.Begin(true)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeBusy, "begin write", err)
	}
	w := &WriteTx{
		env:     e,
		tx:      tx,
		token:   e.opts.Tokens.Generate(),
		touched: make(map[string]struct{}),
		created: make(map[string]struct{}),
		history: history.NewStack(),
	}
	e.write = w
	e.logger.Debug("write transaction started", "token", w.token)
	return w, nil
}

// Write returns the live write transaction, or nil.
func (e *Environment) Write() *WriteTx {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write
}

// owner returns the live write transaction if token owns it.
func (e *Environment) owner(op, token string) (*WriteTx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.write == nil || e.write.token != token {
		return nil, apperr.Newf(apperr.CodeWriteConflict, op, "token %q does not own the write transaction", token)
	}
	return e.write, nil
}

func (e *Environment) releaseWrite(w *WriteTx) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.write == w {
		e.write = nil
	}
}

// Commit makes the write transaction's edits durable and ends it.
// The undo history is discarded either way.
//
// Errors:
//   - WRITE_CONFLICT: token does not own the write transaction
//   - WRITE_ABORTED: the commit hook refused; nothing was written
func (e *Environment) Commit(token string) error {
	w, err := e.owner("commit", token)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return apperr.Newf(apperr.CodeWriteConflict, "commit", "token %q does not own the write transaction", token)
	}

	var cerr error
	if hook := e.opts.CommitHook; hook != nil {
		if err := hook(token); err != nil {
			_ = w.tx.Rollback()
			cerr = apperr.Wrap(apperr.CodeWriteAborted, "commit", err)
		}
	}
	if cerr == nil {
		if err := w.tx.Commit(); err != nil {
			_ = w.tx.Rollback()
			cerr = apperr.Wrap(apperr.CodeWriteAborted, "commit", err)
		}
	}

	w.finish()
	e.releaseWrite(w)

	if cerr != nil {
		e.logger.Warn("commit failed, write transaction rolled back", "token", token, "error", cerr)
		return cerr
	}
	e.stats.invalidate(w.touchedNames())
	e.logger.Debug("write transaction committed", "token", token, "databases", len(w.touched))
	return nil
}

// Abort discards the write transaction's edits and ends it.
//
// Errors:
//   - WRITE_CONFLICT: token does not own the write transaction
func (e *Environment) Abort(token string) error {
	w, err := e.owner("abort", token)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return apperr.Newf(apperr.CodeWriteConflict, "abort", "token %q does not own the write transaction", token)
	}
	_ = w.tx.Rollback()
	w.finish()
	e.releaseWrite(w)
	e.logger.Debug("write transaction aborted", "token", token)
	return nil
}

// Guard runs fn against the write transaction owned by token. If fn panics
// the transaction is force-aborted and the panic is returned as
// WRITE_ABORTED; the environment stays usable.
func (e *Environment) Guard(token string, fn func(*WriteTx) error) (err error) {
	w, err := e.owner("guard", token)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("write transaction faulted, aborting", "token", token, "panic", r)
			e.forceAbort(w)
			err = apperr.Newf(apperr.CodeWriteAborted, "guard", "write transaction aborted: %v", r)
		}
	}()
	return fn(w)
}

func (e *Environment) forceAbort(w *WriteTx) {
	w.mu.Lock()
	if !w.done {
		_ = w.tx.Rollback()
		w.finish()
	}
	w.mu.Unlock()
	e.releaseWrite(w)
}

// Token returns the token that owns this transaction.
func (w *WriteTx) Token() string {
	return w.token
}

// finish marks the transaction ended. Caller holds w.mu.
func (w *WriteTx) finish() {
	w.done = true
	w.history.Clear()
}

func (w *WriteTx) lock(op string) error {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return apperr.Newf(apperr.CodeWriteConflict, op, "write transaction %q has ended", w.token)
	}
	return nil
}

// View runs fn with a Reader over the uncommitted state.
// fn must not retain the Reader or call back into w.
func (w *WriteTx) View(fn func(Reader) error) error {
	if err := w.lock("view"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return fn(txReader{tx: w.tx})
}

// Push applies cmd and records it on the undo stack.
func (w *WriteTx) Push(cmd history.Command) error {
	if err := w.lock("push"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return w.history.Push(mutator{w}, cmd)
}

// Undo reverts the most recent edit.
func (w *WriteTx) Undo() (history.Command, error) {
	if err := w.lock("undo"); err != nil {
		return history.Command{}, err
	}
	defer w.mu.Unlock()
	return w.history.Undo(mutator{w})
}

// Redo re-applies the most recently undone edit.
func (w *WriteTx) Redo() (history.Command, error) {
	if err := w.lock("redo"); err != nil {
		return history.Command{}, err
	}
	defer w.mu.Unlock()
	return w.history.Redo(mutator{w})
}

// Rollback reverts and forgets the n most recent edits.
func (w *WriteTx) Rollback(n int) error {
	if err := w.lock("rollback"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	return w.history.Rollback(mutator{w}, n)
}

// History returns the applied edits, oldest first.
func (w *WriteTx) History() []history.Command {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Entries()
}

// Depth returns the undo and redo stack sizes.
func (w *WriteTx) Depth() (undo, redo int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.UndoLen(), w.history.RedoLen()
}

func (w *WriteTx) touchedNames() []string {
	names := make([]string, 0, len(w.touched))
	for n := range w.touched {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// mutator applies history commands to the bbolt transaction. A database
// created by the transaction is dropped again once it is emptied, so undoing
// its first insert leaves no trace. Caller holds w.mu.
type mutator struct {
	w *WriteTx
}

func (m mutator) Put(db string, key, value []byte) error {
	tx := m.w.tx
	name := bucketName(db)
	b := tx.Bucket(name)
	if b == nil {
		if n := (txReader{tx: tx}).countDatabases(); n >= m.w.env.opts.MaxDatabases {
			return apperr.Newf(apperr.CodeInvalidArgument, "put", "database limit %d reached", m.w.env.opts.MaxDatabases)
		}
		var err error
		if b, err = tx.CreateBucket(name); err != nil {
			return classifyWriteError("put", err)
		}
		m.w.created[string(name)] = struct{}{}
	}
	if value == nil {
		value = []byte{}
	}
	if err := b.Put(key, value); err != nil {
		return classifyWriteError("put", err)
	}
	m.w.touched[displayName(name)] = struct{}{}
	return nil
}

func (m mutator) Delete(db string, key []byte) error {
	name := bucketName(db)
	b := m.w.tx.Bucket(name)
	if b == nil {
		return errNoDatabase("delete", db)
	}
	if err := b.Delete(key); err != nil {
		return classifyWriteError("delete", err)
	}
	m.w.touched[displayName(name)] = struct{}{}

	if _, ok := m.w.created[string(name)]; ok && isEmpty(b) {
		if err := m.w.tx.DeleteBucket(name); err != nil {
			return classifyWriteError("delete", err)
		}
		delete(m.w.created, string(name))
	}
	return nil
}

func classifyWriteError(op string, err error) error {
	switch {
	case errors.Is(err, bolt.ErrKeyRequired),
		errors.Is(err, bolt.ErrKeyTooLarge),
		errors.Is(err, bolt.ErrValueTooLarge),
		errors.Is(err, bolt.ErrBucketNameRequired),
		errors.Is(err, bolt.ErrIncompatibleValue):
		return apperr.Wrap(apperr.CodeInvalidArgument, op, err)
	case errors.Is(err, bolt.ErrTxClosed):
		return apperr.Wrap(apperr.CodeWriteConflict, op, err)
	default:
		return apperr.Wrap(apperr.CodeWriteAborted, op, err)
	}
}

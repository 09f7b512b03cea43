package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/boltview/internal/apperr"
)

// closePollInterval is how often Close re-checks the reader count.
const closePollInterval = 5 * time.Millisecond

// Environment is one open store file.
//
// All transaction bookkeeping goes through the facade in txn.go; nothing
// outside this package touches the underlying *bolt.DB.
type Environment struct {
	path   string
	mode   OpenMode
	opts   Options
	db     *bolt.DB
	logger *slog.Logger

	mgr  *Manager
	refs int // guarded by mgr.mu

	mu      sync.Mutex // guards the fields below
	readers int
	write   *WriteTx
	closing bool
	closed  bool

	stats statsCache
}

func openEnvironment(path string, mode OpenMode, opts Options) (*Environment, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist) && mode != ModeCreate:
			return nil, apperr.Newf(apperr.CodeStoreNotFound, "open", "no store at %s", path)
		case errors.Is(err, fs.ErrPermission):
			return nil, apperr.Wrap(apperr.CodePermissionDenied, "open", err)
		}
	}

	if info != nil {
		opts.MapSize = initialMapSize(opts.MapSize, info.Size())
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         opts.OpenTimeout,
		ReadOnly:        mode == ModeReadOnly,
		InitialMmapSize: opts.MapSize,
		PageSize:        opts.PageSize,
		NoSync:          opts.NoSync,
	})
	if err != nil {
		return nil, classifyOpenError(path, err)
	}

	env := &Environment{
		path:   path,
		mode:   mode,
		opts:   opts,
		db:     db,
		logger: opts.Logger.With("env", path),
	}
	env.stats.init()

	env.logger.Info("environment opened",
		"mode", mode.String(),
		"page_size", db.Info().PageSize,
		"map_size", opts.MapSize)
	return env, nil
}

// initialMapSize returns the map size to open a file of fileSize bytes
// with: the configured size, or twice the file size when that is larger.
func initialMapSize(configured int, fileSize int64) int {
	if grown := 2 * fileSize; grown > int64(configured) {
		return int(grown)
	}
	return configured
}

// classifyOpenError maps bbolt and filesystem errors to the error taxonomy.
func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return apperr.Newf(apperr.CodeStoreNotFound, "open", "no store at %s", path)
	case errors.Is(err, fs.ErrPermission):
		return apperr.Wrap(apperr.CodePermissionDenied, "open", err)
	case errors.Is(err, bolt.ErrTimeout):
		return apperr.Newf(apperr.CodeBusy, "open", "store %s is locked by another process", path)
	case errors.Is(err, bolt.ErrInvalid),
		errors.Is(err, bolt.ErrChecksum),
		errors.Is(err, bolt.ErrVersionMismatch),
		strings.Contains(err.Error(), "file size too small"):
		return apperr.Wrap(apperr.CodeCorruptStore, "open", err)
	default:
		return fmt.Errorf("failed to open store: %w", err)
	}
}

// Path returns the canonical path of the store file.
func (e *Environment) Path() string {
	return e.path
}

// Mode returns the mode the environment was opened with.
func (e *Environment) Mode() OpenMode {
	return e.mode
}

// ReadOnly reports whether writes are refused.
func (e *Environment) ReadOnly() bool {
	return !e.mode.Writable()
}

// MaxDatabases returns the configured bound on named databases.
func (e *Environment) MaxDatabases() int {
	return e.opts.MaxDatabases
}

// Close releases this reference to the environment. The file is closed when
// the last reference goes.
//
// Errors (last reference only):
//   - BUSY: a write transaction is live, or readers outlived CloseTimeout
//
// On error the environment stays open and usable.
func (e *Environment) Close() error {
	if e.mgr != nil && !e.mgr.release(e) {
		return nil
	}
	if err := e.shutdown(); err != nil {
		return err
	}
	if e.mgr != nil {
		e.mgr.forget(e)
	}
	return nil
}

func (e *Environment) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing || e.closed
}

// shutdown closes the underlying file after in-flight readers finish.
func (e *Environment) shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.write != nil {
		e.mu.Unlock()
		return apperr.New(apperr.CodeBusy, "close", "write transaction in progress")
	}
	// New readers are refused from here on.
	e.closing = true
	e.mu.Unlock()

	if err := e.awaitReaders(e.opts.CloseTimeout); err != nil {
		e.mu.Lock()
		e.closing = false
		e.mu.Unlock()
		return err
	}

	err := e.db.Close()

	e.mu.Lock()
	e.closing = false
	e.closed = true
	e.mu.Unlock()

	if err != nil {
		return apperr.Wrap(apperr.CodeBusy, "close", err)
	}
	e.logger.Info("environment closed")
	return nil
}

func (e *Environment) awaitReaders(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(closePollInterval)
	defer tick.Stop()

	for {
		e.mu.Lock()
		n := e.readers
		e.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-deadline.C:
			return apperr.Newf(apperr.CodeBusy, "close", "%d read transactions still open after %s", n, timeout)
		case <-tick.C:
		}
	}
}

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/roach88/boltview/internal/apperr"
)

// Manager tracks open environments by canonical path.
//
// bbolt holds an exclusive file lock per open handle, so a second open of
// the same file in one process would block on itself. The Manager hands out
// the existing Environment instead and counts references; the file is
// closed when the last reference is released.
type Manager struct {
	mu   sync.Mutex
	envs map[string]*Environment
	opts Options
}

// NewManager creates a Manager whose environments share the given options.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		envs: make(map[string]*Environment),
		opts: o,
	}
}

// Open opens the store at path, or returns the already-open handle for it.
//
// Errors:
//   - STORE_NOT_FOUND: path missing and mode is not ModeCreate
//   - PERMISSION_DENIED: the file cannot be opened with the requested access
//   - CORRUPT_STORE: the file is not a valid store
//   - BUSY: another process holds the file lock past OpenTimeout
func (m *Manager) Open(path string, mode OpenMode) (*Environment, error) {
	key, err := canonicalPath(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "open", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if env, ok := m.envs[key]; ok {
		if env.isClosing() {
			return nil, apperr.Newf(apperr.CodeBusy, "open", "environment %s is closing", key)
		}
		env.refs++
		if env.mode != mode {
			m.opts.Logger.Debug("reusing open environment with its original mode",
				"path", key, "requested", mode.String(), "mode", env.mode.String())
		}
		return env, nil
	}

	env, err := openEnvironment(key, mode, m.opts)
	if err != nil {
		return nil, err
	}
	env.mgr = m
	env.refs = 1
	m.envs[key] = env
	return env, nil
}

// Paths returns the canonical paths of all open environments, sorted.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.envs))
	for p := range m.envs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CloseAll releases every open environment regardless of reference count.
// Returns the joined errors of environments that refused to close.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	envs := make([]*Environment, 0, len(m.envs))
	for _, env := range m.envs {
		envs = append(envs, env)
	}
	m.mu.Unlock()

	var errs []error
	for _, env := range envs {
		if err := env.shutdown(); err != nil {
			errs = append(errs, err)
			continue
		}
		m.forget(env)
	}
	return errors.Join(errs...)
}

// release drops one reference. It reports whether the caller held the last one.
func (m *Manager) release(env *Environment) (last bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env.refs > 1 {
		env.refs--
		return false
	}
	return true
}

func (m *Manager) forget(env *Environment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env.refs = 0
	if m.envs[env.path] == env {
		delete(m.envs, env.path)
	}
}

// canonicalPath resolves path to an absolute, cleaned form, following
// symlinks when the target exists.
func canonicalPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty environment path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return filepath.Clean(abs), nil
}

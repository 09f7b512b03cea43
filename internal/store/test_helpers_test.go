package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/testutil"
)

// createTestManager creates a Manager with deterministic tokens and fast timeouts.
func createTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	base := []Option{
		WithNoSync(),
		WithTokenGenerator(testutil.NewSequenceGenerator("tok")),
		WithCloseTimeout(100 * time.Millisecond),
		WithOpenTimeout(100 * time.Millisecond),
		WithLogger(testutil.NewTestLogger(t)),
	}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(func() { _ = m.CloseAll() })
	return m
}

// createTestEnv creates a fresh writable environment in a temp dir.
func createTestEnv(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	m := createTestManager(t, opts...)
	env, err := m.Open(filepath.Join(t.TempDir(), "test.db"), ModeCreate)
	require.NoError(t, err)
	return env
}

// seed commits key/value pairs (alternating) into db.
func seed(t *testing.T, env *Environment, db string, kv ...string) {
	t.Helper()
	require.Zero(t, len(kv)%2, "seed needs key/value pairs")
	w, err := env.BeginWrite()
	require.NoError(t, err)
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, w.Push(history.Create(db, []byte(kv[i]), []byte(kv[i+1]))))
	}
	require.NoError(t, env.Commit(w.Token()))
}

// readValue reads key from db in a fresh snapshot.
func readValue(t *testing.T, env *Environment, db, key string) (string, bool) {
	t.Helper()
	r, err := env.BeginRead()
	require.NoError(t, err)
	defer r.Close()
	v, found, err := r.Get(db, []byte(key))
	require.NoError(t, err)
	return string(v), found
}

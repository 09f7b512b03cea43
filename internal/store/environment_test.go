package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/apperr"
)

func TestOpen_MissingPath(t *testing.T) {
	m := createTestManager(t)
	path := filepath.Join(t.TempDir(), "missing.db")

	for _, mode := range []OpenMode{ModeReadOnly, ModeReadWrite} {
		_, err := m.Open(path, mode)
		assert.True(t, apperr.Is(err, apperr.CodeStoreNotFound), "mode %s: %v", mode, err)
	}

	env, err := m.Open(path, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, ModeCreate, env.Mode())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_CorruptStore(t *testing.T) {
	m := createTestManager(t)
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 16*1024), 0o600))

	_, err := m.Open(path, ModeReadWrite)
	assert.True(t, apperr.Is(err, apperr.CodeCorruptStore), "got %v", err)
}

func TestOpen_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	m := createTestManager(t)
	path := filepath.Join(t.TempDir(), "locked.db")

	env, err := m.Open(path, ModeCreate)
	require.NoError(t, err)
	require.NoError(t, env.Close())
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o600) })

	_, err = m.Open(path, ModeReadWrite)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied), "got %v", err)
}

func TestOpen_ReusesHandle(t *testing.T) {
	m := createTestManager(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.db")

	first, err := m.Open(path, ModeCreate)
	require.NoError(t, err)
	second, err := m.Open(filepath.Join(dir, ".", "shared.db"), ModeReadWrite)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, m.Paths(), 1)

	// First Close drops a reference; the file stays open.
	require.NoError(t, first.Close())
	r, err := second.BeginRead()
	require.NoError(t, err)
	r.Close()

	require.NoError(t, second.Close())
	assert.Empty(t, m.Paths())

	_, err = second.BeginRead()
	assert.True(t, apperr.Is(err, apperr.CodeBusy))
}

func TestReadOnly_RefusesWrite(t *testing.T) {
	m := createTestManager(t)
	path := filepath.Join(t.TempDir(), "ro.db")
	env, err := m.Open(path, ModeCreate)
	require.NoError(t, err)
	seed(t, env, "users", "alice", "1")
	require.NoError(t, env.Close())

	ro, err := m.Open(path, ModeReadOnly)
	require.NoError(t, err)
	assert.True(t, ro.ReadOnly())

	_, err = ro.BeginWrite()
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))

	v, found := readValue(t, ro, "users", "alice")
	assert.True(t, found)
	assert.Equal(t, "1", v)
}

func TestClose_BusyWithLiveWrite(t *testing.T) {
	env := createTestEnv(t)
	w, err := env.BeginWrite()
	require.NoError(t, err)

	err = env.Close()
	assert.True(t, apperr.Is(err, apperr.CodeBusy))

	// Still usable.
	require.NoError(t, env.Abort(w.Token()))
	require.NoError(t, env.Close())
}

func TestClose_WaitsForReadersWithinBound(t *testing.T) {
	env := createTestEnv(t)
	seed(t, env, "db", "k", "v")

	r, err := env.BeginRead()
	require.NoError(t, err)

	err = env.Close()
	assert.True(t, apperr.Is(err, apperr.CodeBusy), "got %v", err)

	// The reader is unaffected and the environment reopens for business.
	v, found, err := r.Get("db", []byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))
	r.Close()

	require.NoError(t, env.Close())
}

func TestDatabases_DefaultSentinel(t *testing.T) {
	env := createTestEnv(t)
	seed(t, env, "", "k", "v")
	seed(t, env, "users", "alice", "1")

	r, err := env.BeginRead()
	require.NoError(t, err)
	defer r.Close()

	names, err := r.Databases()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultDB, "users"}, names)

	v, found, err := r.Get(DefaultDB, []byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))
}

func TestMaxDatabases(t *testing.T) {
	env := createTestEnv(t, WithMaxDatabases(2))
	seed(t, env, "a", "k", "v")
	seed(t, env, "b", "k", "v")

	w, err := env.BeginWrite()
	require.NoError(t, err)
	defer func() { _ = env.Abort(w.Token()) }()

	err = w.Push(createCmd("c", "k", "v"))
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument), "got %v", err)
}

func TestInitialMapSize(t *testing.T) {
	assert.Equal(t, DefaultMapSize, initialMapSize(DefaultMapSize, 0))
	assert.Equal(t, DefaultMapSize, initialMapSize(DefaultMapSize, 1<<20))
	assert.Equal(t, 200<<20, initialMapSize(DefaultMapSize, 100<<20))
}

func TestOpen_ScalesMapSizeToFile(t *testing.T) {
	m := createTestManager(t, WithMapSize(1<<20))
	path := filepath.Join(t.TempDir(), "grow.db")
	env, err := m.Open(path, ModeCreate)
	require.NoError(t, err)
	seed(t, env, "db", "k", string(make([]byte, 2<<20)))
	require.NoError(t, env.Close())

	env, err = m.Open(path, ModeReadWrite)
	require.NoError(t, err)
	st, err := env.Stats()
	require.NoError(t, err)
	assert.Greater(t, st.MapSize, 1<<20)
}

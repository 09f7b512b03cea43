package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/store"
	"github.com/roach88/boltview/internal/testutil"
)

const waitTimeout = 5 * time.Second

func createTestEnv(t *testing.T) *store.Environment {
	t.Helper()
	m := store.NewManager(store.WithNoSync(), store.WithLogger(testutil.DiscardLogger()))
	t.Cleanup(func() { _ = m.CloseAll() })
	env, err := m.Open(filepath.Join(t.TempDir(), "jobs.db"), store.ModeCreate)
	require.NoError(t, err)
	return env
}

func seedN(t *testing.T, env *store.Environment, db string, from, n int) {
	t.Helper()
	w, err := env.BeginWrite()
	require.NoError(t, err)
	for i := from; i < from+n; i++ {
		require.NoError(t, w.Push(history.Create(db, []byte(fmt.Sprintf("k%03d", i)), []byte("v"))))
	}
	require.NoError(t, env.Commit(w.Token()))
}

func createTestScheduler(t *testing.T, env *store.Environment, opts ...Option) *Scheduler {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequenceGenerator("job")),
		WithLogger(testutil.DiscardLogger()),
	}
	s := New(env, append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func wait(t *testing.T, h *Handle) Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	u, err := h.Wait(ctx)
	require.NoError(t, err)
	return u
}

// gate blocks the unit hook at a chosen unit until released.
type gate struct {
	unit    int
	reached chan struct{}
	release chan struct{}
}

func newGate(unit int) *gate {
	return &gate{unit: unit, reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hook(_ string, unit int) {
	if unit == g.unit {
		close(g.reached)
		<-g.release
	}
}

func (g *gate) await(t *testing.T) {
	t.Helper()
	select {
	case <-g.reached:
	case <-time.After(waitTimeout):
		t.Fatal("scan never reached the gate")
	}
}

func TestScan_Succeeds(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 20)
	s := createTestScheduler(t, env)

	h := s.Submit(Request{Kind: KindScan, DB: "db", Query: query.Prefix([]byte("k01"))})
	assert.Equal(t, "job-1", h.ID())

	u := wait(t, h)
	require.Equal(t, StatusSucceeded, u.Status, "err: %v", u.Err)
	require.NotNil(t, u.Result)
	assert.Len(t, u.Result.Records, 10)
	assert.Equal(t, "k010", string(u.Result.Records[0].Key))
	assert.True(t, u.Final)
}

func TestUpdates_OrderedAndClosed(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 100)
	s := createTestScheduler(t, env, WithPageSize(10))

	h := s.Submit(Request{Kind: KindCount, DB: "db"})

	var got []Update
	for u := range h.Updates() {
		got = append(got, u)
	}
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
		assert.False(t, got[i-1].Final)
	}
	last := got[len(got)-1]
	assert.True(t, last.Final)
	assert.Equal(t, StatusSucceeded, last.Status)
	assert.Equal(t, 100, last.Result.Count)
}

func TestCancel_StopsWithinOneUnit(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 100)
	g := newGate(1)
	s := createTestScheduler(t, env, WithPageSize(10), WithUnitHook(g.hook))

	h := s.Submit(Request{Kind: KindScan, DB: "db"})
	g.await(t)
	assert.True(t, s.Cancel(h.ID()))
	close(g.release)

	u := wait(t, h)
	assert.Equal(t, StatusCancelled, u.Status)
	assert.Equal(t, 10, u.Scanned)
	assert.Nil(t, u.Result)
}

func TestScan_SeesSnapshot(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 30)
	g := newGate(1)
	s := createTestScheduler(t, env, WithPageSize(10), WithUnitHook(g.hook))

	h := s.Submit(Request{Kind: KindCount, DB: "db"})
	g.await(t)

	// Commit more entries while the job holds its snapshot.
	seedN(t, env, "db", 30, 30)
	close(g.release)

	u := wait(t, h)
	require.Equal(t, StatusSucceeded, u.Status)
	assert.Equal(t, 30, u.Result.Count)
}

func TestScan_MissingDatabaseFails(t *testing.T) {
	env := createTestEnv(t)
	s := createTestScheduler(t, env)

	u := wait(t, s.Submit(Request{Kind: KindScan, DB: "nope"}))
	assert.Equal(t, StatusFailed, u.Status)
	assert.True(t, errors.Is(u.Err, apperr.ErrJobFailed))
	var cause *apperr.Error
	require.True(t, errors.As(errors.Unwrap(u.Err), &cause))
	assert.Equal(t, apperr.CodeNotFound, cause.Code)
}

func TestWorkers_BoundConcurrency(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 20)
	g := newGate(1)
	s := createTestScheduler(t, env, WithWorkers(1), WithPageSize(10), WithUnitHook(func(id string, unit int) {
		if id == "job-1" {
			g.hook(id, unit)
		}
	}))

	first := s.Submit(Request{Kind: KindCount, DB: "db"})
	g.await(t)
	second := s.Submit(Request{Kind: KindCount, DB: "db"})

	select {
	case <-second.Done():
		t.Fatal("second job ran while the only worker was busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(g.release)
	assert.Equal(t, StatusSucceeded, wait(t, first).Status)
	assert.Equal(t, StatusSucceeded, wait(t, second).Status)
}

func TestStatsJobs(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 5)
	s := createTestScheduler(t, env)

	u := wait(t, s.Submit(Request{Kind: KindDBStats, DB: "db"}))
	require.Equal(t, StatusSucceeded, u.Status)
	assert.Equal(t, 5, u.Result.DBStats.Entries)

	u = wait(t, s.Submit(Request{Kind: KindEnvStats}))
	require.Equal(t, StatusSucceeded, u.Status)
	assert.Equal(t, 1, u.Result.EnvStats.Databases)
}

func TestExportJob(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 12)
	s := createTestScheduler(t, env)
	path := filepath.Join(t.TempDir(), "out.csv")

	u := wait(t, s.Submit(Request{Kind: KindExport, DB: "db", Format: export.FormatCSV, Path: path}))
	require.Equal(t, StatusSucceeded, u.Status, "err: %v", u.Err)
	assert.Equal(t, 12, u.Result.Exported)

	recs, err := query.Collect(export.ReadFile(path, export.FormatCSV))
	require.NoError(t, err)
	assert.Len(t, recs, 12)
}

func TestExportJob_CancelRemovesFile(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 50)
	g := newGate(1)
	s := createTestScheduler(t, env, WithPageSize(10), WithUnitHook(g.hook))
	path := filepath.Join(t.TempDir(), "out.json")

	h := s.Submit(Request{Kind: KindExport, DB: "db", Format: export.FormatJSON, Path: path})
	g.await(t)
	h.Cancel()
	close(g.release)

	assert.Equal(t, StatusCancelled, wait(t, h).Status)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAbandon(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 50)
	g := newGate(1)
	s := createTestScheduler(t, env, WithPageSize(10), WithUnitHook(g.hook))

	h := s.Submit(Request{Kind: KindScan, DB: "db"})
	g.await(t)
	h.Abandon()
	close(g.release)

	assert.Equal(t, StatusCancelled, wait(t, h).Status)
	assert.Eventually(t, func() bool { return len(s.Active()) == 0 }, waitTimeout, time.Millisecond)
}

func TestWait_ContextEnds(t *testing.T) {
	env := createTestEnv(t)
	seedN(t, env, "db", 0, 20)
	g := newGate(1)
	s := createTestScheduler(t, env, WithPageSize(10), WithUnitHook(g.hook))

	h := s.Submit(Request{Kind: KindScan, DB: "db"})
	g.await(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.True(t, apperr.Is(err, apperr.CodeJobFailed))

	close(g.release)
	assert.Equal(t, StatusSucceeded, wait(t, h).Status)
}

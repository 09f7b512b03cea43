package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/store"
)

const (
	// DefaultWorkers bounds concurrently running jobs.
	DefaultWorkers = 4

	// DefaultPageSize is the number of entries per scan unit.
	DefaultPageSize = 256
)

// IDGenerator produces job ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable job ids.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 id.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// UnitHook observes each completed scan unit before the cancellation check.
type UnitHook func(jobID string, unit int)

// Scheduler runs jobs against one environment.
type Scheduler struct {
	env      *store.Environment
	sem      *semaphore.Weighted
	ids      IDGenerator
	pageSize int
	unitHook UnitHook
	logger   *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	handles map[string]*Handle
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds the number of concurrently running jobs.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithPageSize sets the scan unit size.
func WithPageSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) { s.ids = g }
}

// WithUnitHook installs a hook called after every scan unit.
func WithUnitHook(h UnitHook) Option {
	return func(s *Scheduler) { s.unitHook = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scheduler for env.
func New(env *store.Environment, opts ...Option) *Scheduler {
	s := &Scheduler{
		env:      env,
		sem:      semaphore.NewWeighted(DefaultWorkers),
		ids:      UUIDv7Generator{},
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts a job and returns immediately.
func (s *Scheduler) Submit(req Request) *Handle {
	h := newHandle(s.ids.Generate(), req.Kind, s.logger)

	s.mu.Lock()
	s.handles[h.id] = h
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(h.id)
		s.run(h, req)
	}()
	return h
}

// Cancel cancels the job with the given id. Returns false if it is unknown
// or already finished.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if ok {
		h.Cancel()
	}
	return ok
}

// Active returns the ids of unfinished jobs, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown cancels every job and waits for them to finish or ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, h := range s.handles {
		h.Cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(apperr.CodeBusy, "shutdown jobs", ctx.Err())
	}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()
}

// run executes one job to completion. It always ends with h.finish.
func (s *Scheduler) run(h *Handle, req Request) {
	if err := s.sem.Acquire(h.ctx, 1); err != nil {
		h.finish(Update{Status: StatusCancelled})
		return
	}
	defer s.sem.Release(1)

	r, err := s.env.BeginRead()
	if err != nil {
		h.finish(Update{Status: StatusFailed, Err: apperr.JobFailed(h.id, err)})
		return
	}
	defer r.Close()

	u := s.execute(h, r, req)
	if u.Status == 0 {
		u.Status = StatusSucceeded
	}
	h.finish(u)
}

// errCancelled ends a scan from inside the visit callback.
var errCancelled = errors.New("job cancelled")

// unitCheck returns a visit callback that reports progress and honors
// cancellation once per scan unit.
func (s *Scheduler) unitCheck(h *Handle) func(int) error {
	return func(visited int) error {
		if visited%s.pageSize != 0 {
			return nil
		}
		if s.unitHook != nil {
			s.unitHook(h.id, visited/s.pageSize)
		}
		if h.ctx.Err() != nil {
			return errCancelled
		}
		h.progress(visited)
		return nil
	}
}

// outcome converts a job error into its final update.
func outcome(h *Handle, scanned int, err error) Update {
	if errors.Is(err, errCancelled) || h.ctx.Err() != nil {
		return Update{Status: StatusCancelled, Scanned: scanned}
	}
	return Update{Status: StatusFailed, Scanned: scanned, Err: apperr.JobFailed(h.id, err)}
}

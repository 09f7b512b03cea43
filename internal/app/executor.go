package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/history"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/service"
	"github.com/roach88/boltview/internal/store"
)

const (
	// DefaultJobTimeout is how long a job may run before its handle is
	// abandoned and reported failed.
	DefaultJobTimeout = 5 * time.Minute

	// shutdownTimeout bounds waiting for jobs when an environment closes.
	shutdownTimeout = 5 * time.Second
)

// ServiceExecutor runs effects against environments opened through a
// store.Manager.
//
// Storage effects run in order on one worker goroutine, so an abort queued
// before a close always happens first. Job submission and cancellation run
// inline; each job's updates are forwarded by their own goroutine.
type ServiceExecutor struct {
	mgr        *store.Manager
	logger     *slog.Logger
	jobTimeout time.Duration
	jobOpts    []jobs.Option

	work *queue[func()]
	done chan struct{}
	fwd  sync.WaitGroup

	mu    sync.Mutex
	env   *store.Environment
	svc   *service.Service
	sched *jobs.Scheduler
}

// ExecutorOption configures a ServiceExecutor.
type ExecutorOption func(*ServiceExecutor)

// WithJobTimeout sets how long a job may run before it is abandoned. 0
// disables the timeout.
func WithJobTimeout(d time.Duration) ExecutorOption {
	return func(x *ServiceExecutor) { x.jobTimeout = d }
}

// WithSchedulerOptions passes options to every job scheduler the executor
// creates.
func WithSchedulerOptions(opts ...jobs.Option) ExecutorOption {
	return func(x *ServiceExecutor) { x.jobOpts = append(x.jobOpts, opts...) }
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(x *ServiceExecutor) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewServiceExecutor starts an executor. Call Close to stop it.
func NewServiceExecutor(mgr *store.Manager, opts ...ExecutorOption) *ServiceExecutor {
	x := &ServiceExecutor{
		mgr:        mgr,
		logger:     slog.Default(),
		jobTimeout: DefaultJobTimeout,
		work:       newQueue[func()](),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(x)
	}
	go x.worker()
	return x
}

func (x *ServiceExecutor) worker() {
	defer close(x.done)
	for {
		if fn, ok := x.work.TryDequeue(); ok {
			fn()
			continue
		}
		<-x.work.Wait()
		if x.work.Drained() {
			return
		}
	}
}

// Execute implements Executor.
func (x *ServiceExecutor) Execute(ctx context.Context, e Effect, dispatch func(Action)) {
	switch e.Kind {
	case EffectSubmitJob:
		x.submit(e, dispatch)
		return
	case EffectCancelJob:
		x.cancel(e)
		return
	}

	// Queued storage work finishes even if the loop's context ends.
	ctx = context.WithoutCancel(ctx)
	if !x.work.Enqueue(func() { x.run(ctx, e, dispatch) }) {
		x.logger.Debug("executor closed, dropping effect", "effect", e.Kind.String())
	}
}

func (x *ServiceExecutor) run(ctx context.Context, e Effect, dispatch func(Action)) {
	x.logger.Debug("running effect", "effect", e.Kind.String(), "db", e.DB)

	if e.Kind == EffectOpenEnv {
		x.open(ctx, e, dispatch)
		return
	}
	if e.Kind == EffectCloseEnv {
		x.closeEnv(dispatch)
		return
	}

	svc := x.service()
	if svc == nil {
		dispatch(Failed{Op: e.Kind.String(), Err: apperr.New(apperr.CodeInvalidArgument, e.Kind.String(), "no environment open")})
		return
	}

	switch e.Kind {
	case EffectLoadDatabases:
		names, err := svc.ListDatabases(ctx)
		if err != nil {
			dispatch(Failed{Op: "list databases", Err: err})
			return
		}
		dispatch(DatabasesLoaded{Names: names})
	case EffectLoadEntries:
		recs, err := svc.Entries(ctx, e.DB, e.Limit)
		if err != nil && !apperr.IsNotFound(err) {
			dispatch(Failed{Op: "load entries", Err: err})
			return
		}
		dispatch(EntriesLoaded{DB: e.DB, Records: recs})
	case EffectEdit:
		x.edit(ctx, svc, e, dispatch)
	case EffectCommit:
		if err := svc.Commit(ctx); err != nil {
			dispatch(Failed{Op: "commit", Err: err})
			return
		}
		dispatch(Committed{})
	case EffectAbort:
		if err := svc.Abort(ctx); err != nil {
			dispatch(Failed{Op: "abort", Err: err})
			return
		}
		dispatch(Aborted{})
	case EffectImport:
		n, err := svc.Import(ctx, e.DB, export.ReadFile(e.Path, e.Format))
		if err != nil {
			dispatch(Failed{Op: "import", Err: err})
			return
		}
		token, _ := svc.Pending()
		undo, redo := svc.Depth()
		dispatch(Imported{DB: e.DB, Count: n, Token: token, Undo: undo, Redo: redo})
	default:
		x.logger.Warn("unhandled effect", "effect", e.Kind.String())
	}
}

func (x *ServiceExecutor) service() *service.Service {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.svc
}

func (x *ServiceExecutor) open(ctx context.Context, e Effect, dispatch func(Action)) {
	x.mu.Lock()
	open := x.env != nil
	x.mu.Unlock()
	if open {
		if err := x.release(); err != nil {
			dispatch(Failed{Op: "close", Err: err})
			return
		}
	}

	env, err := x.mgr.Open(e.Path, e.Mode)
	if err != nil {
		dispatch(Failed{Op: "open", Err: err})
		return
	}
	svc := service.New(env, service.WithLogger(x.logger))
	sched := jobs.New(env, append([]jobs.Option{jobs.WithLogger(x.logger)}, x.jobOpts...)...)

	names, err := svc.ListDatabases(ctx)
	if err != nil {
		_ = env.Close()
		dispatch(Failed{Op: "open", Err: err})
		return
	}

	x.mu.Lock()
	x.env, x.svc, x.sched = env, svc, sched
	x.mu.Unlock()

	dispatch(EnvOpened{
		Info:      EnvInfo{Path: env.Path(), ReadOnly: env.ReadOnly()},
		Databases: names,
	})
}

func (x *ServiceExecutor) closeEnv(dispatch func(Action)) {
	if err := x.release(); err != nil {
		dispatch(Failed{Op: "close", Err: err})
		return
	}
	dispatch(EnvClosed{})
}

// release stops jobs, drops any pending write and closes the environment.
func (x *ServiceExecutor) release() error {
	x.mu.Lock()
	env, svc, sched := x.env, x.svc, x.sched
	x.env, x.svc, x.sched = nil, nil, nil
	x.mu.Unlock()

	if env == nil {
		return nil
	}

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, ok := svc.Pending(); ok {
		if err := svc.Abort(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := env.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (x *ServiceExecutor) edit(ctx context.Context, svc *service.Service, e Effect, dispatch func(Action)) {
	var cmd history.Command
	var err error
	switch e.Op {
	case OpPut:
		err = svc.Put(ctx, e.DB, e.Key, e.Value)
	case OpDelete:
		err = svc.Delete(ctx, e.DB, e.Key)
	case OpUndo:
		cmd, err = svc.Undo(ctx)
	case OpRedo:
		cmd, err = svc.Redo(ctx)
	default:
		err = apperr.Newf(apperr.CodeInvalidArgument, "edit", "unknown edit op %d", int(e.Op))
	}
	if err != nil {
		dispatch(Failed{Op: e.Op.String(), Err: err})
		return
	}
	if e.Op == OpPut || e.Op == OpDelete {
		if h := svc.History(); len(h) > 0 {
			cmd = h[len(h)-1]
		}
	}

	token, _ := svc.Pending()
	undo, redo := svc.Depth()
	dispatch(Edited{Op: e.Op, Command: cmd, Token: token, Undo: undo, Redo: redo})
}

func (x *ServiceExecutor) submit(e Effect, dispatch func(Action)) {
	x.mu.Lock()
	sched := x.sched
	x.mu.Unlock()
	if sched == nil {
		dispatch(JobUpdate{Ref: e.Ref, Update: jobs.Update{
			Kind:   e.Job.Kind,
			Status: jobs.StatusFailed,
			Final:  true,
			Err:    apperr.New(apperr.CodeInvalidArgument, "submit job", "no environment open"),
		}})
		return
	}

	h := sched.Submit(e.Job)
	dispatch(JobStarted{Ref: e.Ref, ID: h.ID(), Kind: h.Kind()})

	x.fwd.Add(1)
	go func() {
		defer x.fwd.Done()
		x.forward(e.Ref, h, dispatch)
	}()
}

// forward relays h's updates until the final one or the job timeout.
func (x *ServiceExecutor) forward(ref int, h *jobs.Handle, dispatch func(Action)) {
	var timeout <-chan time.Time
	if x.jobTimeout > 0 {
		t := time.NewTimer(x.jobTimeout)
		defer t.Stop()
		timeout = t.C
	}

	for {
		select {
		case u, ok := <-h.Updates():
			if !ok {
				return
			}
			dispatch(JobUpdate{Ref: ref, Update: u})
			if u.Final {
				return
			}
		case <-timeout:
			h.Abandon()
			dispatch(JobUpdate{Ref: ref, Update: jobs.Update{
				JobID:  h.ID(),
				Kind:   h.Kind(),
				Status: jobs.StatusFailed,
				Final:  true,
				Err:    apperr.JobFailed(h.ID(), fmt.Errorf("no result after %s", x.jobTimeout)),
			}})
			return
		}
	}
}

func (x *ServiceExecutor) cancel(e Effect) {
	x.mu.Lock()
	sched := x.sched
	x.mu.Unlock()
	if sched != nil && e.JobID != "" {
		sched.Cancel(e.JobID)
	}
}

// Close drains queued storage work, then releases the open environment.
func (x *ServiceExecutor) Close() error {
	x.work.Close()
	<-x.done
	err := x.release()
	x.fwd.Wait()
	return err
}

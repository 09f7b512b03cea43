package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/boltview/internal/apperr"
)

// updateBuffer is the capacity of each job's update channel. The last slot
// is reserved for the final update.
const updateBuffer = 16

// Handle tracks one submitted job.
type Handle struct {
	id     string
	kind   Kind
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	updates chan Update
	done    chan struct{}

	mu        sync.Mutex
	seq       int
	final     *Update
	abandoned bool
}

func newHandle(id string, kind Kind, logger *slog.Logger) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		id:      id,
		kind:    kind,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("job", id, "kind", kind.String()),
		updates: make(chan Update, updateBuffer),
		done:    make(chan struct{}),
	}
}

// ID returns the job id.
func (h *Handle) ID() string { return h.id }

// Kind returns the job kind.
func (h *Handle) Kind() Kind { return h.kind }

// Updates returns the job's update stream. It is closed after the final update.
func (h *Handle) Updates() <-chan Update { return h.updates }

// Done is closed once the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests cooperative cancellation. Safe to call at any time.
func (h *Handle) Cancel() { h.cancel() }

// Abandon detaches the consumer: the job is cancelled and its failure, if
// any, is logged at debug level instead of being treated as an error.
func (h *Handle) Abandon() {
	h.mu.Lock()
	h.abandoned = true
	h.mu.Unlock()
	h.cancel()
}

// Result returns the final update once the job has finished.
func (h *Handle) Result() (Update, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.final == nil {
		return Update{}, false
	}
	return *h.final, true
}

// Wait blocks until the job finishes or ctx ends.
//
// Errors:
//   - JOB_FAILED: ctx ended first (wrapping ctx.Err()); the job keeps running
func (h *Handle) Wait(ctx context.Context) (Update, error) {
	select {
	case <-h.done:
		u, _ := h.Result()
		return u, nil
	case <-ctx.Done():
		return Update{}, apperr.JobFailed(h.id, ctx.Err())
	}
}

// progress sends a non-final update if the buffer has room to spare.
func (h *Handle) progress(scanned int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.final != nil || len(h.updates) >= cap(h.updates)-1 {
		return
	}
	h.seq++
	h.updates <- Update{
		JobID:   h.id,
		Kind:    h.kind,
		Seq:     h.seq,
		Status:  StatusRunning,
		Scanned: scanned,
	}
}

// finish publishes the final update and closes the stream.
func (h *Handle) finish(u Update) {
	h.mu.Lock()
	if h.final != nil {
		h.mu.Unlock()
		return
	}
	h.seq++
	u.JobID = h.id
	u.Kind = h.kind
	u.Seq = h.seq
	u.Final = true
	h.final = &u
	abandoned := h.abandoned

	// progress never fills the last slot, so this does not block.
	h.updates <- u
	close(h.updates)
	h.mu.Unlock()

	close(h.done)
	h.cancel()

	switch {
	case u.Status == StatusFailed && abandoned:
		h.logger.Debug("abandoned job failed", "error", u.Err)
	case u.Status == StatusFailed:
		h.logger.Warn("job failed", "error", u.Err)
	default:
		h.logger.Debug("job finished", "status", u.Status.String(), "scanned", u.Scanned)
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Executor runs effects. Execute must not block the caller; results are
// posted back through dispatch, possibly from other goroutines.
type Executor interface {
	Execute(ctx context.Context, e Effect, dispatch func(Action))
}

// Loop owns the State and serializes every transition.
//
// Thread-safety model:
//   - Dispatch, Snapshot, Subscribe: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Loop struct {
	exec   Executor
	logger *slog.Logger
	inbox  *queue[Action]

	mu    sync.RWMutex
	state State

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithInitialState replaces NewState() as the starting state.
func WithInitialState(s State) LoopOption {
	return func(lp *Loop) { lp.state = s }
}

// NewLoop creates a Loop that runs effects through exec.
func NewLoop(exec Executor, opts ...LoopOption) *Loop {
	l := &Loop{
		exec:   exec,
		logger: slog.Default(),
		inbox:  newQueue[Action](),
		state:  NewState(),
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dispatch queues a for the Run loop. Returns false once the loop has stopped.
func (l *Loop) Dispatch(a Action) bool {
	return l.inbox.Enqueue(a)
}

// Snapshot returns the current state.
func (l *Loop) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Subscribe returns a channel that receives the latest state after every
// transition. Slow subscribers see only the most recent state. The channel
// is closed when Run returns or cancel is called.
func (l *Loop) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	ch <- l.Snapshot()

	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()

	return ch, func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

// Stop closes the inbox. Run returns after draining queued actions.
func (l *Loop) Stop() {
	l.inbox.Close()
}

// Run processes actions until an Exit effect, Stop, or ctx ends.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")
	defer l.closeSubscribers()

	for {
		if a, ok := l.inbox.TryDequeue(); ok {
			if l.step(ctx, a) {
				l.logger.Debug("loop stopping: exit")
				l.inbox.Close()
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.inbox.Close()
			return ctx.Err()
		case <-l.inbox.Wait():
			if l.inbox.Drained() {
				l.logger.Debug("loop stopping: inbox closed")
				return nil
			}
		}
	}
}

// step reduces one action and starts its effects. Reports whether an Exit
// effect was reached; effects after Exit are not run.
func (l *Loop) step(ctx context.Context, a Action) bool {
	l.mu.Lock()
	next, effects := Reduce(l.state, a)
	l.state = next
	l.mu.Unlock()

	l.logger.Debug("reduced action",
		"action", fmt.Sprintf("%T", a),
		"phase", next.Phase.String(),
		"effects", len(effects),
	)
	l.publish(next)

	for _, e := range effects {
		if e.Kind == EffectExit {
			return true
		}
		l.exec.Execute(ctx, e, l.post)
	}
	return false
}

func (l *Loop) post(a Action) {
	if !l.Dispatch(a) {
		l.logger.Debug("dropped action after loop stopped", "action", fmt.Sprintf("%T", a))
	}
}

func (l *Loop) publish(s State) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		// Replace any unread state with the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func (l *Loop) closeSubscribers() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

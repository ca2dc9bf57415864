package sim

import (
	"context"
	"fmt"
	"sync"
)

// A Lock serializes sequences that target the same driver. Waiters are
// granted the lock in FIFO order. Acquiring a lock the caller already holds
// is a configuration error, not a suspension.
type Lock struct {
	sched *Scheduler

	mu     sync.Mutex
	holder *Task
	queue  []*lockWaiter
}

type lockWaiter struct {
	w *Waiter
	t *Task
}

// NewLock creates a lock managed by the given scheduler.
func NewLock(sched *Scheduler) *Lock {
	return &Lock{sched: sched}
}

// Acquire blocks the calling task until the lock is free and then marks it
// held. If the context is canceled while waiting, Acquire returns the
// context error and guarantees the lock is not left assigned to the caller,
// even if the grant raced with the cancellation.
func (l *Lock) Acquire(ctx context.Context) error {
	t := TaskFromContext(ctx)
	if t == nil {
		return fmt.Errorf("sim: lock acquired outside a scheduler task")
	}

	l.mu.Lock()
	if l.holder == nil {
		l.holder = t
		l.mu.Unlock()
		return nil
	}
	if l.holder == t {
		l.mu.Unlock()
		return fmt.Errorf("sim: task %s acquired a lock it already holds", t.Name())
	}

	lw := &lockWaiter{w: l.sched.NewWaiter(), t: t}
	l.queue = append(l.queue, lw)
	l.mu.Unlock()

	if err := l.sched.Await(ctx, lw.w); err != nil {
		l.mu.Lock()
		if l.holder == t {
			// Release raced with the cancellation and already handed us the
			// lock. Pass it straight on.
			l.releaseLocked()
			l.mu.Unlock()
			return err
		}
		l.removeLocked(lw)
		l.mu.Unlock()
		return err
	}

	return nil
}

// Release hands the lock to the next FIFO waiter, or marks it free. Only the
// holder may release.
func (l *Lock) Release(ctx context.Context) error {
	t := TaskFromContext(ctx)
	if t == nil {
		return fmt.Errorf("sim: lock released outside a scheduler task")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != t {
		return fmt.Errorf("sim: task %s released a lock it does not hold", t.Name())
	}

	l.releaseLocked()
	return nil
}

func (l *Lock) releaseLocked() {
	if len(l.queue) == 0 {
		l.holder = nil
		return
	}

	next := l.queue[0]
	l.queue = l.queue[1:]
	l.holder = next.t
	l.sched.Wake(next.w)
}

func (l *Lock) removeLocked(lw *lockWaiter) {
	for i, q := range l.queue {
		if q == lw {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// Do runs fn with the lock held, releasing it on every exit path. This is
// the scope-bound acquisition form every sequence should prefer.
func (l *Lock) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	fnErr := fn(ctx)

	if err := l.Release(ctx); err != nil {
		if fnErr != nil {
			return fnErr
		}
		return err
	}

	return fnErr
}

// Holder returns the task currently holding the lock, or nil.
func (l *Lock) Holder() *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// A Phase is one of the delivery slots within a single simulated cycle.
// Phases are delivered in order. Drivers and sequences resume in PhaseEdge,
// reference models of the design under test resume in PhaseSettle, and
// monitors resume in PhaseSample, which guarantees sample-after-drive
// ordering within every cycle.
type Phase int

const (
	// PhaseEdge is the rising clock edge. Drivers apply signal values here.
	PhaseEdge Phase = iota

	// PhaseSettle runs after all edge tasks have suspended. Design models
	// compute their outputs here.
	PhaseSettle

	// PhaseSample runs last. Monitors observe the settled signal values of
	// the current cycle here.
	PhaseSample

	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhaseEdge:
		return "Edge"
	case PhaseSettle:
		return "Settle"
	case PhaseSample:
		return "Sample"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ErrDeadlock reports that every live task is suspended on a condition that
// no other task can ever satisfy.
var ErrDeadlock = errors.New("sim: all tasks suspended with no pending clock waiter")

// ErrCycleLimit reports that the run reached its configured cycle budget
// before all tracked tasks completed.
var ErrCycleLimit = errors.New("sim: cycle limit reached")

// A Waiter is a one-shot suspension point managed by a Scheduler. A task
// parks on a waiter with Await; another task hands control back with Wake.
type Waiter struct {
	ch chan struct{}

	// All remaining fields are guarded by the scheduler mutex.
	parked    bool
	woken     bool
	resumed   bool
	abandoned bool

	// start is non-nil for task-start waiters. Resuming such a waiter
	// launches the task body instead of unblocking a parked goroutine.
	start func()
}

// A Scheduler multiplexes cooperative tasks onto discrete simulated cycles.
// At most one task executes at any instant; tasks hand control back by
// suspending on a phase or a waiter, and the scheduler resumes runnable
// tasks one at a time in FIFO order. This keeps every run deterministic for
// a fixed set of tasks and a fixed random seed.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	cycle     Cycle
	phase     Phase
	maxCycles Cycle

	running int
	tasks   int
	tracked int

	ready        []*Waiter
	phaseWaiters [numPhases][]*Waiter

	runCtx    context.Context
	cancelRun context.CancelFunc
	runErr    error
	done      bool
}

// NewScheduler creates a scheduler with no cycle budget.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// WithCycleLimit sets the maximum number of cycles one Run may advance.
// Zero means unbounded.
func (s *Scheduler) WithCycleLimit(n Cycle) *Scheduler {
	s.mu.Lock()
	s.maxCycles = n
	s.mu.Unlock()
	return s
}

// CurrentCycle returns the cycle the scheduler is currently delivering.
// Cycle 0 is the time before the first clock edge.
func (s *Scheduler) CurrentCycle() Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Err returns the first fatal error recorded during the run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Fail records a fatal error and cancels the run. The first error wins;
// later calls are ignored.
func (s *Scheduler) Fail(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	cancel := s.failLocked(err)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) failLocked(err error) context.CancelFunc {
	if s.runErr != nil {
		return nil
	}
	s.runErr = err
	s.cond.Broadcast()
	return s.cancelRun
}

// Go registers a task. Tasks registered before Run starts are launched in
// registration order; tasks registered by a running task are launched once
// the registering task suspends. Tracked tasks contribute to the end-of-run
// condition: the run completes when every tracked task has returned.
func (s *Scheduler) Go(name string, tracked bool, fn TaskFunc) {
	t := &Task{name: name, tracked: tracked}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		panic("sim: task " + name + " registered after the run completed")
	}

	s.tasks++
	if tracked {
		s.tracked++
	}

	w := &Waiter{parked: true}
	w.start = func() {
		s.mu.Lock()
		ctx := s.runCtx
		s.mu.Unlock()

		ctx = context.WithValue(ctx, taskCtxKey{}, t)
		err := fn(ctx)
		s.taskExit(t, err)
	}
	s.ready = append(s.ready, w)
}

func (s *Scheduler) taskExit(t *Task, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Fail(fmt.Errorf("task %s: %w", t.name, err))
	}

	s.mu.Lock()
	s.tasks--
	if t.tracked {
		s.tracked--
	}
	s.decRunningLocked()
	s.mu.Unlock()
}

// NewWaiter creates a one-shot waiter bound to this scheduler.
func (s *Scheduler) NewWaiter() *Waiter {
	return &Waiter{ch: make(chan struct{})}
}

// Wake marks a waiter runnable. If the owning task is already parked it is
// appended to the ready queue and resumes once the current task suspends;
// if the owner has not parked yet, its next Await returns immediately.
// Waking an abandoned or already-woken waiter has no effect.
func (s *Scheduler) Wake(w *Waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.woken || w.abandoned {
		return
	}
	w.woken = true
	if w.parked {
		s.ready = append(s.ready, w)
	}
}

// Await parks the calling task on the waiter until another task wakes it or
// the context is canceled. It must be called from a scheduler task.
func (s *Scheduler) Await(ctx context.Context, w *Waiter) error {
	s.mu.Lock()
	if w.woken {
		s.mu.Unlock()
		return nil
	}
	w.parked = true
	s.decRunningLocked()
	s.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		if !w.resumed {
			// Not handed the baton yet: reclaim our running slot and make
			// sure a pending or future Wake cannot resume a dead waiter.
			w.abandoned = true
			s.running++
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

// WaitPhase parks the calling task until the given phase of the next cycle
// (or of the current cycle, for phases not yet delivered) is reached.
func (s *Scheduler) WaitPhase(ctx context.Context, p Phase) error {
	if p < 0 || p >= numPhases {
		panic(fmt.Sprintf("sim: invalid phase %d", int(p)))
	}

	w := s.NewWaiter()
	s.mu.Lock()
	s.phaseWaiters[p] = append(s.phaseWaiters[p], w)
	s.mu.Unlock()

	return s.Await(ctx, w)
}

// decRunningLocked notes that the current task stopped executing and pokes
// the run loop if the scheduler went idle.
func (s *Scheduler) decRunningLocked() {
	s.running--
	if s.running == 0 {
		s.cond.Broadcast()
	}
}

func (s *Scheduler) resumeLocked(w *Waiter) bool {
	if w.abandoned {
		return false
	}

	w.resumed = true
	s.running++

	if w.start != nil {
		go w.start()
		return true
	}

	close(w.ch)
	return true
}

// Run delivers cycles until every tracked task has completed, a fatal error
// is recorded, the cycle budget is exhausted, or no task can make progress.
// It then cancels all outstanding tasks and waits for them to unwind.
func (s *Scheduler) Run(parent context.Context) error {
	runCtx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		cancel()
		return errors.New("sim: scheduler can only run once")
	}
	s.runCtx = runCtx
	s.cancelRun = cancel
	s.mu.Unlock()

	s.loop(runCtx)

	cancel()
	s.drain()

	s.mu.Lock()
	err := s.runErr
	s.done = true
	s.mu.Unlock()

	return err
}

func (s *Scheduler) loop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		for s.running > 0 {
			s.cond.Wait()
		}

		if s.runErr != nil || ctx.Err() != nil {
			return
		}

		if len(s.ready) > 0 {
			w := s.ready[0]
			s.ready = s.ready[1:]
			s.resumeLocked(w)
			continue
		}

		// Quiescent: every task is parked. Decide whether the run is over
		// before delivering the next phase.
		if s.tracked == 0 {
			return
		}

		if s.totalPhaseWaitersLocked() == 0 {
			s.failLocked(ErrDeadlock)
			return
		}

		if s.phase == PhaseEdge {
			if s.maxCycles > 0 && s.cycle >= s.maxCycles {
				s.failLocked(fmt.Errorf("%w after %d cycles",
					ErrCycleLimit, s.cycle))
				return
			}
			s.cycle++
		}

		s.ready = append(s.ready, s.phaseWaiters[s.phase]...)
		s.phaseWaiters[s.phase] = nil
		s.phase = (s.phase + 1) % numPhases
	}
}

func (s *Scheduler) totalPhaseWaitersLocked() int {
	n := 0
	for p := Phase(0); p < numPhases; p++ {
		n += len(s.phaseWaiters[p])
	}
	return n
}

// drain discards never-started tasks and waits for the live ones to observe
// cancellation and return.
func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		remaining := s.ready[:0]
		for _, w := range s.ready {
			if w.start != nil && !w.resumed {
				w.abandoned = true
				s.tasks--
				continue
			}
			remaining = append(remaining, w)
		}
		s.ready = remaining

		if s.tasks == 0 && s.running == 0 {
			return
		}

		s.cond.Wait()
	}
}

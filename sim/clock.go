package sim

import "context"

// Cycle counts rising clock edges since the start of the run.
type Cycle uint64

// ResetPolarity tells which signal level means "reset asserted".
type ResetPolarity int

const (
	// ResetActiveHigh marks a reset that is asserted when the signal is 1.
	ResetActiveHigh ResetPolarity = iota

	// ResetActiveLow marks a reset that is asserted when the signal is 0.
	ResetActiveLow
)

// A Clock is the shared clock and reset source of a testbench. It is a thin
// view over the scheduler's phase machinery plus the current reset level.
type Clock struct {
	sched    *Scheduler
	polarity ResetPolarity
	level    uint64
}

// NewClock creates a clock on the given scheduler. The reset signal starts
// asserted at the configured polarity.
func NewClock(sched *Scheduler, polarity ResetPolarity) *Clock {
	c := &Clock{sched: sched, polarity: polarity}
	c.SetReset(true)
	return c
}

// Scheduler returns the scheduler driving this clock.
func (c *Clock) Scheduler() *Scheduler {
	return c.sched
}

// Cycle returns the current cycle number. Cycle 0 is the time before the
// first rising edge.
func (c *Clock) Cycle() Cycle {
	return c.sched.CurrentCycle()
}

// WaitEdge suspends the calling task until the next rising clock edge.
func (c *Clock) WaitEdge(ctx context.Context) error {
	return c.sched.WaitPhase(ctx, PhaseEdge)
}

// WaitSettle suspends the calling task until the settle phase of the
// current cycle, after all edge tasks have run.
func (c *Clock) WaitSettle(ctx context.Context) error {
	return c.sched.WaitPhase(ctx, PhaseSettle)
}

// WaitSample suspends the calling task until the sample phase of the
// current cycle, after edge and settle tasks have run.
func (c *Clock) WaitSample(ctx context.Context) error {
	return c.sched.WaitPhase(ctx, PhaseSample)
}

// WaitCycles suspends the calling task for n rising edges.
func (c *Clock) WaitCycles(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := c.WaitEdge(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SetReset asserts or releases the reset signal at the configured polarity.
func (c *Clock) SetReset(asserted bool) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()

	high := asserted == (c.polarity == ResetActiveHigh)
	if high {
		c.level = 1
	} else {
		c.level = 0
	}
}

// ResetLevel returns the raw value of the reset signal.
func (c *Clock) ResetLevel() uint64 {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	return c.level
}

// InReset tells whether reset is currently asserted.
func (c *Clock) InReset() bool {
	level := c.ResetLevel()
	if c.polarity == ResetActiveHigh {
		return level == 1
	}
	return level == 0
}

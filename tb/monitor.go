package tb

import (
	"context"
	"sync"

	"github.com/hwbench/strobe/hwio"
	"github.com/hwbench/strobe/sim"
)

// A SampleFunc inspects the monitor's interface during the sample phase and
// returns the transaction observed this cycle, if any. It must not suspend.
type SampleFunc func(m *Monitor) (Transaction, bool)

// A Monitor observes one interface of the design. Every cycle, after all
// drivers and design models have run, it samples the interface and forwards
// each captured transaction to its capture sink, usually a scoreboard
// channel. Nothing is sampled while reset is asserted.
type Monitor struct {
	name   string
	clk    *sim.Clock
	port   hwio.Port
	sample SampleFunc

	mu       sync.Mutex
	capture  func(Transaction)
	captured uint64
}

// NewMonitor creates a monitor over the given interface.
func NewMonitor(name string, clk *sim.Clock, port hwio.Port, sample SampleFunc) *Monitor {
	return &Monitor{
		name:   name,
		clk:    clk,
		port:   port,
		sample: sample,
	}
}

// Name returns the monitor name.
func (m *Monitor) Name() string {
	return m.name
}

// Port returns the observed interface.
func (m *Monitor) Port() hwio.Port {
	return m.port
}

// Clock returns the clock pacing the monitor.
func (m *Monitor) Clock() *sim.Clock {
	return m.clk
}

// SetCapture installs the sink receiving captured transactions.
func (m *Monitor) SetCapture(fn func(Transaction)) {
	m.mu.Lock()
	m.capture = fn
	m.mu.Unlock()
}

// Captured returns the number of transactions observed so far.
func (m *Monitor) Captured() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captured
}

// Run is the monitor task body. The bench registers it as an untracked
// task; it only returns on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := m.clk.WaitSample(ctx); err != nil {
			return err
		}
		if m.clk.InReset() {
			continue
		}

		txn, ok := m.sample(m)
		if !ok {
			continue
		}

		m.mu.Lock()
		m.captured++
		capture := m.capture
		m.mu.Unlock()

		if capture != nil {
			capture(txn)
		}
	}
}

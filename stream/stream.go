// Package stream implements a ready/valid stream interface: the initiator
// presents data and valid, the responder signals acceptance with ready, and
// a word transfers on every cycle where both are high. It provides the
// drivers, the monitor, and reusable sequences for that protocol.
package stream

import (
	"context"
	"fmt"

	"github.com/hwbench/strobe/hwio"
	"github.com/hwbench/strobe/sim"
	"github.com/hwbench/strobe/tb"
)

// A Transaction is one 32-bit word moved over a stream interface.
type Transaction struct {
	Data uint32
}

// A Backpressure is a responder stimulus: hold ready at the given level for
// the given number of cycles.
type Backpressure struct {
	Ready  bool
	Cycles int
}

// Validate implements tb.Validator.
func (b Backpressure) Validate() error {
	if b.Cycles < 1 {
		return fmt.Errorf("backpressure must hold for at least 1 cycle, got %d", b.Cycles)
	}
	return nil
}

// Signals declares the fields of a stream interface.
func Signals() []hwio.Signal {
	return []hwio.Signal{
		{Name: "data", Width: 32, Dir: hwio.DirInitiator},
		{Name: "valid", Width: 1, Dir: hwio.DirInitiator},
		{Name: "ready", Width: 1, Dir: hwio.DirResponder},
	}
}

// NewBundle wraps one stream interface of a bank. The role is the design's
// role on the interface.
func NewBundle(bank *hwio.Bank, name string, role hwio.Role) *hwio.Bundle {
	return hwio.NewBundle(bank, name, role, Signals(), nil)
}

// NewInitiator creates a blocking driver that plays the initiator side:
// present data and valid at the edge, hold them until the design asserts
// ready, then release valid on the following edge. Back-to-back
// transactions keep valid high with no idle cycle.
func NewInitiator(name string, clk *sim.Clock, port hwio.Port) *tb.Driver {
	return tb.NewDriver(name, clk, port, driveInitiator)
}

func driveInitiator(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
	word := txn.(Transaction)

	d.Port().Set("data", 32, uint64(word.Data))
	d.Port().Set("valid", 1, 1)

	if err := d.AwaitAccept(ctx, "ready"); err != nil {
		return err
	}

	// The word transferred this cycle. Valid may only change at the next
	// edge, where a queued follow-up overwrites it anyway.
	if err := d.Clock().WaitEdge(ctx); err != nil {
		return err
	}
	d.Port().Set("valid", 1, 0)
	return nil
}

// NewResponder creates a non-blocking driver that plays the responder side,
// applying Backpressure stimuli: ready is set at the edge and held for the
// requested number of cycles.
func NewResponder(name string, clk *sim.Clock, port hwio.Port) *tb.Driver {
	return tb.NewDriver(name, clk, port, driveResponder).AsNonBlocking()
}

func driveResponder(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
	bp := txn.(Backpressure)

	var level uint64
	if bp.Ready {
		level = 1
	}
	d.Port().Set("ready", 1, level)

	return d.Clock().WaitCycles(ctx, bp.Cycles)
}

// NewMonitor creates a monitor that captures one Transaction on every cycle
// where valid and ready are both high.
func NewMonitor(name string, clk *sim.Clock, port hwio.Port) *tb.Monitor {
	return tb.NewMonitor(name, clk, port, sample)
}

func sample(m *tb.Monitor) (tb.Transaction, bool) {
	if m.Port().Get("valid", 1) == 0 || m.Port().Get("ready", 1) == 0 {
		return nil, false
	}
	return Transaction{Data: uint32(m.Port().Get("data", 32))}, true
}

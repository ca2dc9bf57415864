// Package tb assembles the verification engine: drivers that apply
// transactions to a design, monitors that observe it, sequences that
// generate constrained-random traffic, and the bench that wires them to a
// shared clock, scoreboard, and random source.
package tb

import (
	"context"
	"fmt"
	"sync"

	"github.com/hwbench/strobe/hooking"
	"github.com/hwbench/strobe/hwio"
	"github.com/hwbench/strobe/sim"
)

// Driver lifecycle positions. Subscribers see the transaction as the event
// payload; handles returned by Enqueue resolve at the same points.
var (
	// HookPosEnqueue fires when a transaction enters the driver queue.
	HookPosEnqueue = &hooking.Pos{Name: "Enqueue"}

	// HookPosPreDrive fires when the driver dequeues a transaction, before
	// any signal is touched.
	HookPosPreDrive = &hooking.Pos{Name: "PreDrive"}

	// HookPosPostDrive fires once the transaction has been fully applied and
	// accepted by the design.
	HookPosPostDrive = &hooking.Pos{Name: "PostDrive"}
)

// A Handle follows one enqueued transaction through the driver lifecycle.
// Tasks can suspend until the transaction reaches a given position.
type Handle struct {
	sched *sim.Scheduler
	txn   Transaction

	mu      sync.Mutex
	fired   map[*hooking.Pos]bool
	waiters map[*hooking.Pos][]*sim.Waiter
}

func newHandle(sched *sim.Scheduler, txn Transaction) *Handle {
	return &Handle{
		sched:   sched,
		txn:     txn,
		fired:   make(map[*hooking.Pos]bool),
		waiters: make(map[*hooking.Pos][]*sim.Waiter),
	}
}

// Transaction returns the enqueued payload.
func (h *Handle) Transaction() Transaction {
	return h.txn
}

// Fired tells whether the transaction already passed the given position.
func (h *Handle) Fired(pos *hooking.Pos) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired[pos]
}

// Wait suspends the calling task until the transaction reaches pos. It
// returns immediately if the position already fired.
func (h *Handle) Wait(ctx context.Context, pos *hooking.Pos) error {
	h.mu.Lock()
	if h.fired[pos] {
		h.mu.Unlock()
		return nil
	}
	w := h.sched.NewWaiter()
	h.waiters[pos] = append(h.waiters[pos], w)
	h.mu.Unlock()

	return h.sched.Await(ctx, w)
}

func (h *Handle) complete(pos *hooking.Pos) {
	h.mu.Lock()
	h.fired[pos] = true
	waiters := h.waiters[pos]
	h.waiters[pos] = nil
	h.mu.Unlock()

	for _, w := range waiters {
		h.sched.Wake(w)
	}
}

// A ProtocolTimeout reports that the design failed to accept a driven
// transaction within the driver's accept budget.
type ProtocolTimeout struct {
	Driver string
	Signal string
	Cycles sim.Cycle
}

func (e *ProtocolTimeout) Error() string {
	return fmt.Sprintf("driver %s: %s not asserted within %d cycles",
		e.Driver, e.Signal, e.Cycles)
}

// A DriveFunc applies one transaction to the design and returns once the
// design has accepted it. It runs on the driver task, starting at a clock
// edge, and uses the driver's clock to pace multi-cycle protocols.
type DriveFunc func(ctx context.Context, d *Driver, txn Transaction) error

// A Driver applies transactions to one interface of the design, one at a
// time, in enqueue order. Blocking drivers wait for the design to accept
// each transaction; non-blocking drivers apply values without waiting for a
// handshake and model autonomous stimulus such as backpressure.
type Driver struct {
	hooking.Publisher

	name          string
	clk           *sim.Clock
	port          hwio.Port
	drive         DriveFunc
	lock          *sim.Lock
	blocking      bool
	acceptTimeout sim.Cycle

	mu    sync.Mutex
	queue []*Handle
}

// NewDriver creates a blocking driver with no accept timeout.
func NewDriver(name string, clk *sim.Clock, port hwio.Port, drive DriveFunc) *Driver {
	return &Driver{
		name:     name,
		clk:      clk,
		port:     port,
		drive:    drive,
		lock:     sim.NewLock(clk.Scheduler()),
		blocking: true,
	}
}

// AsNonBlocking marks the driver as applying stimulus without a handshake.
func (d *Driver) AsNonBlocking() *Driver {
	d.blocking = false
	return d
}

// WithAcceptTimeout bounds the number of cycles a blocking drive may wait
// for the design to accept a transaction. Zero means unbounded.
func (d *Driver) WithAcceptTimeout(n sim.Cycle) *Driver {
	d.acceptTimeout = n
	return d
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return d.name
}

// Port returns the interface the driver drives.
func (d *Driver) Port() hwio.Port {
	return d.port
}

// Clock returns the clock pacing the driver.
func (d *Driver) Clock() *sim.Clock {
	return d.clk
}

// Blocking tells whether the driver awaits a handshake per transaction.
func (d *Driver) Blocking() bool {
	return d.blocking
}

// Lock returns the driver's exclusivity lock. Sequences that need sole use
// of the driver wrap their critical section in Lock().Do.
func (d *Driver) Lock() *sim.Lock {
	return d.lock
}

// Enqueue validates a transaction, appends it to the driver queue, and
// returns a handle that resolves as the transaction moves through the
// lifecycle. The enqueue position fires before Enqueue returns.
func (d *Driver) Enqueue(txn Transaction) (*Handle, error) {
	if txn == nil {
		return nil, fmt.Errorf("driver %s: nil transaction enqueued", d.name)
	}
	if v, ok := txn.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("driver %s: invalid transaction: %w", d.name, err)
		}
	}

	h := newHandle(d.clk.Scheduler(), txn)
	d.mu.Lock()
	d.queue = append(d.queue, h)
	d.mu.Unlock()

	d.Publish(hooking.Ctx{Domain: d, Pos: HookPosEnqueue, Item: txn})
	h.complete(HookPosEnqueue)

	return h, nil
}

// MustEnqueue is Enqueue for transactions known to be valid.
func (d *Driver) MustEnqueue(txn Transaction) *Handle {
	h, err := d.Enqueue(txn)
	if err != nil {
		panic(err)
	}
	return h
}

// QueueLen returns the number of transactions waiting to be driven.
func (d *Driver) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Driver) dequeue() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return nil
	}
	h := d.queue[0]
	d.queue = d.queue[1:]
	return h
}

// Run is the driver task body. It dequeues transactions one at a time,
// fires the pre-drive position, applies the transaction, and fires the
// post-drive position once the drive completes. Transactions are never
// driven while reset is asserted. The bench registers Run as an untracked
// task; it only returns on cancellation or a drive error.
func (d *Driver) Run(ctx context.Context) error {
	for {
		h := d.dequeue()
		if h == nil {
			if err := d.clk.WaitEdge(ctx); err != nil {
				return err
			}
			continue
		}

		for d.clk.InReset() {
			if err := d.clk.WaitEdge(ctx); err != nil {
				return err
			}
		}

		d.Publish(hooking.Ctx{Domain: d, Pos: HookPosPreDrive, Item: h.txn})
		h.complete(HookPosPreDrive)

		if err := d.drive(ctx, d, h.txn); err != nil {
			return err
		}

		d.Publish(hooking.Ctx{Domain: d, Pos: HookPosPostDrive, Item: h.txn})
		h.complete(HookPosPostDrive)
	}
}

// AwaitAccept suspends until the named single-bit signal reads non-zero at
// a sample phase, honoring the driver's accept timeout. Drive functions use
// it to implement ready/valid style handshakes.
func (d *Driver) AwaitAccept(ctx context.Context, sig string) error {
	var waited sim.Cycle
	for {
		if err := d.clk.WaitSample(ctx); err != nil {
			return err
		}
		if d.port.Get(sig, 1) != 0 {
			return nil
		}

		waited++
		if d.acceptTimeout > 0 && waited >= d.acceptTimeout {
			return &ProtocolTimeout{Driver: d.name, Signal: sig, Cycles: waited}
		}
	}
}

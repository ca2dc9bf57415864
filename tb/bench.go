package tb

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"

	"github.com/hwbench/strobe/monitoring"
	"github.com/hwbench/strobe/record"
	"github.com/hwbench/strobe/scoreboard"
	"github.com/hwbench/strobe/sim"
)

// A Bench owns one verification run: the scheduler and clock, the registered
// drivers and monitors, the scoreboard, and the seeded random source shared
// by every sequence. Registration happens before Run; Run delivers cycles
// until the end-of-run condition and returns the report.
type Bench struct {
	name string
	cfg  Config

	sched *sim.Scheduler
	clk   *sim.Clock
	rnd   *rand.Rand
	log   *log.Logger
	sb    *scoreboard.Scoreboard

	mu           sync.Mutex
	drivers      map[string]*Driver
	driverOrder  []string
	monitors     map[string]*Monitor
	monitorOrder []string
	channels     []*scoreboard.Channel
}

// NewBench creates a bench from the given config. The clock starts with
// reset asserted; Run releases it after the configured reset cycles.
func NewBench(name string, cfg Config) *Bench {
	sched := sim.NewScheduler().WithCycleLimit(cfg.MaxCycles)

	polarity := sim.ResetActiveHigh
	if cfg.ResetActiveLow {
		polarity = sim.ResetActiveLow
	}

	return &Bench{
		name:     name,
		cfg:      cfg,
		sched:    sched,
		clk:      sim.NewClock(sched, polarity),
		rnd:      rand.New(rand.NewSource(cfg.Seed)),
		log:      log.New(os.Stderr, "["+name+"] ", 0),
		sb:       scoreboard.New(),
		drivers:  make(map[string]*Driver),
		monitors: make(map[string]*Monitor),
	}
}

// Name returns the bench name.
func (b *Bench) Name() string {
	return b.name
}

// Config returns the run configuration.
func (b *Bench) Config() Config {
	return b.cfg
}

// Clock returns the shared clock.
func (b *Bench) Clock() *sim.Clock {
	return b.clk
}

// Scheduler returns the underlying scheduler.
func (b *Bench) Scheduler() *sim.Scheduler {
	return b.sched
}

// Rand returns the seeded random source of the bench. All randomness of a
// run must come from here to keep runs reproducible.
func (b *Bench) Rand() *rand.Rand {
	return b.rnd
}

// Log returns the bench logger.
func (b *Bench) Log() *log.Logger {
	return b.log
}

// Scoreboard returns the bench scoreboard.
func (b *Bench) Scoreboard() *scoreboard.Scoreboard {
	return b.sb
}

// Fatal records a fatal error and ends the run. The first error wins.
func (b *Bench) Fatal(err error) {
	b.sched.Fail(err)
}

// RegisterDriver adds a driver to the bench under its own name. Blocking
// drivers with no explicit accept timeout inherit the configured default.
func (b *Bench) RegisterDriver(d *Driver) *Driver {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.drivers[d.Name()]; dup {
		panic("tb: driver " + d.Name() + " already registered")
	}

	if d.Blocking() && d.acceptTimeout == 0 {
		d.WithAcceptTimeout(b.cfg.AcceptTimeout)
	}

	b.drivers[d.Name()] = d
	b.driverOrder = append(b.driverOrder, d.Name())
	return d
}

// RegisterMonitor adds a monitor and gives it a scoreboard channel of the
// same name with the given match window. Captured transactions land on the
// channel's actual queue; a mismatch ends the run.
func (b *Bench) RegisterMonitor(m *Monitor, window int) *scoreboard.Channel {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.monitors[m.Name()]; dup {
		panic("tb: monitor " + m.Name() + " already registered")
	}

	ch := b.sb.NewChannel(m.Name(), window)
	m.SetCapture(func(txn Transaction) {
		if err := ch.PushActual(txn); err != nil {
			b.Fatal(err)
		}
	})

	b.monitors[m.Name()] = m
	b.monitorOrder = append(b.monitorOrder, m.Name())
	b.channels = append(b.channels, ch)
	return ch
}

// Driver returns the registered driver with the given name, or nil.
func (b *Bench) Driver(name string) *Driver {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drivers[name]
}

// Monitor returns the registered monitor with the given name, or nil.
func (b *Bench) Monitor(name string) *Monitor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.monitors[name]
}

// Expect pushes a reference transaction onto a channel, ending the run on a
// scoreboard failure.
func (b *Bench) Expect(ch *scoreboard.Channel, txn Transaction) {
	if err := ch.PushReference(txn); err != nil {
		b.Fatal(err)
	}
}

// Register adds a tracked task. The run completes once every tracked task
// has returned.
func (b *Bench) Register(name string, fn sim.TaskFunc) {
	b.sched.Go(name, true, fn)
}

// Daemon adds an untracked task that is canceled when the run ends.
func (b *Bench) Daemon(name string, fn sim.TaskFunc) {
	b.sched.Go(name, false, fn)
}

// StartSequence resolves a sequence's requirements against the bind map
// (role name to registered component name), draws its randomized arguments,
// and registers its body as a task. Background sequences run untracked.
// Resolution failures are reported before the run starts.
func (b *Bench) StartSequence(spec SeqSpec, bind map[string]string) error {
	sc := &SeqContext{
		Log:      log.New(os.Stderr, "["+b.name+"/"+spec.Name+"] ", 0),
		Rand:     b.rnd,
		Args:     make(Args),
		drivers:  make(map[string]*Driver),
		monitors: make(map[string]*Monitor),
	}

	for _, req := range spec.Requires {
		target, bound := bind[req.Role]
		if !bound {
			return fmt.Errorf("tb: sequence %s: role %s is not bound",
				spec.Name, req.Role)
		}

		switch req.Cap {
		case CapDrive, CapRespond:
			d := b.Driver(target)
			if d == nil {
				return fmt.Errorf("tb: sequence %s: role %s: no driver named %s",
					spec.Name, req.Role, target)
			}
			if req.Cap == CapDrive && !d.Blocking() {
				return fmt.Errorf(
					"tb: sequence %s: role %s: driver %s cannot drive, it is non-blocking",
					spec.Name, req.Role, target)
			}
			if req.Cap == CapRespond && d.Blocking() {
				return fmt.Errorf(
					"tb: sequence %s: role %s: driver %s cannot respond, it is blocking",
					spec.Name, req.Role, target)
			}
			sc.drivers[req.Role] = d
		case CapObserve:
			m := b.Monitor(target)
			if m == nil {
				return fmt.Errorf("tb: sequence %s: role %s: no monitor named %s",
					spec.Name, req.Role, target)
			}
			sc.monitors[req.Role] = m
		default:
			return fmt.Errorf("tb: sequence %s: role %s: unknown capability %v",
				spec.Name, req.Role, req.Cap)
		}
	}

	for _, arg := range spec.Rand {
		if arg.Max < arg.Min {
			return fmt.Errorf("tb: sequence %s: argument %s: range [%v, %v] is empty",
				spec.Name, arg.Name, arg.Min, arg.Max)
		}
		if arg.Integral {
			lo, hi := int64(arg.Min), int64(arg.Max)
			sc.Args[arg.Name] = float64(lo + b.rnd.Int63n(hi-lo+1))
		} else {
			sc.Args[arg.Name] = arg.Min + b.rnd.Float64()*(arg.Max-arg.Min)
		}
	}

	body := func(ctx context.Context) error {
		return spec.Run(ctx, sc)
	}
	if spec.Background {
		b.Daemon(spec.Name, body)
	} else {
		b.Register(spec.Name, body)
	}
	return nil
}

// Status implements monitoring.Source.
func (b *Bench) Status() monitoring.Snapshot {
	b.mu.Lock()
	channels := append([]*scoreboard.Channel(nil), b.channels...)
	b.mu.Unlock()

	snap := monitoring.Snapshot{
		Bench:  b.name,
		Cycle:  uint64(b.sched.CurrentCycle()),
		Failed: b.sched.Err() != nil,
	}
	for _, ch := range channels {
		matched, ref, act := ch.Counts()
		snap.Channels = append(snap.Channels, monitoring.ChannelStatus{
			Name:      ch.Name(),
			Matched:   matched,
			Reference: ref,
			Actual:    act,
		})
	}
	return snap
}

// Run starts the reset task, the drivers, and the monitors, delivers cycles
// until the end-of-run condition, finalizes the scoreboard, and returns the
// report. A bench runs once.
func (b *Bench) Run(ctx context.Context) *Report {
	// The reset task registers first so that reset release is visible to
	// drivers resuming on the same edge.
	b.Daemon("reset", func(ctx context.Context) error {
		if err := b.clk.WaitCycles(ctx, b.cfg.ResetCycles); err != nil {
			return err
		}
		b.clk.SetReset(false)
		return nil
	})

	b.mu.Lock()
	driverOrder := append([]string(nil), b.driverOrder...)
	monitorOrder := append([]string(nil), b.monitorOrder...)
	b.mu.Unlock()

	for _, name := range driverOrder {
		b.Daemon("driver:"+name, b.drivers[name].Run)
	}
	for _, name := range monitorOrder {
		b.Daemon("monitor:"+name, b.monitors[name].Run)
	}

	if b.cfg.StatusPort > 0 {
		server := monitoring.NewServer(b).WithPortNumber(b.cfg.StatusPort)
		if _, err := server.StartServer(); err != nil {
			b.log.Printf("status server disabled: %v", err)
		}
	}

	err := b.sched.Run(ctx)

	rep := &Report{
		Bench:  b.name,
		Seed:   b.cfg.Seed,
		Cycles: b.sched.CurrentCycle(),
		Err:    err,
	}
	for _, res := range b.sb.Finalize() {
		rep.Channels = append(rep.Channels, ChannelReport{
			Name:      res.Channel,
			Matched:   res.Matched,
			Reference: res.Reference,
			Actual:    res.Actual,
			Failure:   res.Failure,
		})
	}

	if b.cfg.RecordPath != "" {
		if err := b.recordReport(rep); err != nil {
			b.log.Printf("recording failed: %v", err)
		}
	}

	return rep
}

func (b *Bench) recordReport(rep *Report) error {
	rec, err := record.Open(b.cfg.RecordPath)
	if err != nil {
		return err
	}
	defer rec.Close()

	run := record.Run{
		Bench:  rep.Bench,
		Seed:   rep.Seed,
		Cycles: uint64(rep.Cycles),
		Passed: rep.Passed(),
	}
	if rep.Err != nil {
		run.Failure = rep.Err.Error()
	}

	var channels []record.ChannelResult
	for _, ch := range rep.Channels {
		res := record.ChannelResult{
			Channel:   ch.Name,
			Matched:   ch.Matched,
			Reference: ch.Reference,
			Actual:    ch.Actual,
		}
		if ch.Failure != nil {
			res.Failure = ch.Failure.Error()
		}
		channels = append(channels, res)
	}

	id, err := rec.WriteRun(run, channels)
	if err != nil {
		return err
	}
	b.log.Printf("run recorded as %s in %s", id, b.cfg.RecordPath)
	return nil
}

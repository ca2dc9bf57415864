package tb

import (
	"context"
	"fmt"
	"log"
	"math/rand"
)

// A Capability is what a sequence needs to be able to do with a resolved
// component.
type Capability int

const (
	// CapDrive requires a blocking driver that awaits acceptance.
	CapDrive Capability = iota

	// CapRespond requires a non-blocking driver supplying autonomous
	// stimulus such as backpressure.
	CapRespond

	// CapObserve requires a monitor.
	CapObserve
)

func (c Capability) String() string {
	switch c {
	case CapDrive:
		return "drive"
	case CapRespond:
		return "respond"
	case CapObserve:
		return "observe"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// A Requirement names one component role a sequence depends on, plus the
// capability the bound component must have. The bench maps roles to
// registered component names when the sequence starts.
type Requirement struct {
	Role string
	Cap  Capability
}

// A RandArg declares one randomized parameter of a sequence. Each start of
// the sequence draws a fresh value from the bench's seeded random source.
type RandArg struct {
	Name     string
	Min, Max float64
	Integral bool
}

// IntArg declares an integer parameter drawn uniformly from [min, max].
func IntArg(name string, min, max int) RandArg {
	return RandArg{Name: name, Min: float64(min), Max: float64(max), Integral: true}
}

// FloatArg declares a float parameter drawn uniformly from [min, max).
func FloatArg(name string, min, max float64) RandArg {
	return RandArg{Name: name, Min: min, Max: max}
}

// Args holds the values drawn for a sequence's randomized parameters.
type Args map[string]float64

// Int returns the named integer argument. Asking for an undeclared argument
// is a programming error.
func (a Args) Int(name string) int {
	v, found := a[name]
	if !found {
		panic("tb: sequence argument " + name + " was never declared")
	}
	return int(v)
}

// Float returns the named float argument.
func (a Args) Float(name string) float64 {
	v, found := a[name]
	if !found {
		panic("tb: sequence argument " + name + " was never declared")
	}
	return v
}

// A SeqContext is what a running sequence sees: its log, its private view of
// the random source, the values drawn for its parameters, and the components
// resolved for its requirements.
type SeqContext struct {
	Log  *log.Logger
	Rand *rand.Rand
	Args Args

	drivers  map[string]*Driver
	monitors map[string]*Monitor
}

// Driver returns the driver bound to the given role.
func (sc *SeqContext) Driver(role string) *Driver {
	d, found := sc.drivers[role]
	if !found {
		panic("tb: sequence has no driver bound to role " + role)
	}
	return d
}

// Monitor returns the monitor bound to the given role.
func (sc *SeqContext) Monitor(role string) *Monitor {
	m, found := sc.monitors[role]
	if !found {
		panic("tb: sequence has no monitor bound to role " + role)
	}
	return m
}

// A SeqFunc is a sequence body. It runs as its own task.
type SeqFunc func(ctx context.Context, sc *SeqContext) error

// A SeqSpec is the declarative record describing a reusable sequence: its
// name, the component roles it requires, the parameters it randomizes, and
// its body. Specs are plain values; libraries export them and benches start
// them with a role binding.
type SeqSpec struct {
	Name     string
	Requires []Requirement
	Rand     []RandArg

	// Background marks sequences that supply stimulus forever, such as
	// randomized backpressure. They run untracked and are canceled when the
	// run ends.
	Background bool

	Run SeqFunc
}

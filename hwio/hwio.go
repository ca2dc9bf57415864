// Package hwio defines the signal-level boundary between the verification
// engine and a simulated design. A Port gives read/write access to named
// signals of bounded width; a Bundle groups the signals of one interface
// instance into initiator-driven and responder-driven sets; a Bank is a
// map-backed signal store that stands in for a simulator adapter.
package hwio

import (
	"fmt"
	"sync"
)

// Role tells which side of an interface a component plays.
type Role int

const (
	// RoleInitiator marks the side that originates transfers.
	RoleInitiator Role = iota

	// RoleResponder marks the side that accepts transfers.
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// Dir tells which side of an interface drives a signal.
type Dir int

const (
	// DirInitiator marks signals driven by the initiator, such as data and
	// valid on a stream interface.
	DirInitiator Dir = iota

	// DirResponder marks signals driven by the responder, such as ready.
	DirResponder
)

// A Signal declares one field of an interface bundle.
type Signal struct {
	Name  string
	Width int
	Dir   Dir
}

// A Port is the engine's access to a group of named signals. Get and Set
// take the bit width of the field; values are truncated to that width.
type Port interface {
	Name() string
	Get(sig string, width int) uint64
	Set(sig string, width int, val uint64)
}

func mask(width int, val uint64) uint64 {
	if width <= 0 || width > 64 {
		panic(fmt.Sprintf("hwio: unsupported signal width %d", width))
	}
	if width == 64 {
		return val
	}
	return val & ((1 << uint(width)) - 1)
}

// A Bank is a flat, named signal store. It implements Port directly and
// backs every Bundle wrapped around it. Signals spring into existence on
// first write; reading an unwritten signal returns zero, matching the rest
// value of an idle interface.
type Bank struct {
	mu      sync.Mutex
	name    string
	signals map[string]uint64
}

// NewBank creates an empty signal bank.
func NewBank(name string) *Bank {
	return &Bank{
		name:    name,
		signals: make(map[string]uint64),
	}
}

// Name returns the name of the bank.
func (b *Bank) Name() string {
	return b.name
}

// Get reads a signal, truncated to width bits.
func (b *Bank) Get(sig string, width int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return mask(width, b.signals[sig])
}

// Set writes a signal, truncated to width bits.
func (b *Bank) Set(sig string, width int, val uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals[sig] = mask(width, val)
}

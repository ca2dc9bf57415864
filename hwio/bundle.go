package hwio

import (
	"fmt"
	"os"
)

// A Style maps a bundle-local signal name onto the flat name used by the
// underlying signal store. The bundle role and the driving direction of the
// signal decide whether the signal is an input or an output of the design.
type Style func(bundle string, sig Signal, role Role) string

// DefaultStyle names signals i_<bundle>_<sig> when the design receives them
// and o_<bundle>_<sig> when the design drives them, for a bundle viewed from
// the design's side.
func DefaultStyle(bundle string, sig Signal, role Role) string {
	designDrives := (role == RoleResponder && sig.Dir == DirResponder) ||
		(role == RoleInitiator && sig.Dir == DirInitiator)

	prefix := "i"
	if designDrives {
		prefix = "o"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, bundle, sig.Name)
}

// A Bundle is a named, directioned view over a Bank: one interface instance
// of a design. The role is the design's role on that interface, so a bundle
// with RoleResponder covers an input interface of the design.
type Bundle struct {
	bank    *Bank
	name    string
	role    Role
	style   Style
	signals map[string]Signal
}

// NewBundle wraps the given signals of a bank into one interface view.
func NewBundle(
	bank *Bank,
	name string,
	role Role,
	signals []Signal,
	style Style,
) *Bundle {
	if style == nil {
		style = DefaultStyle
	}

	b := &Bundle{
		bank:    bank,
		name:    name,
		role:    role,
		style:   style,
		signals: make(map[string]Signal),
	}

	for _, sig := range signals {
		if _, dup := b.signals[sig.Name]; dup {
			panic("hwio: duplicate signal " + sig.Name +
				" in bundle " + name)
		}
		b.signals[sig.Name] = sig
	}

	return b
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Role returns the design's role on this interface.
func (b *Bundle) Role() Role {
	return b.role
}

// Get reads a bundle signal, truncated to width bits.
func (b *Bundle) Get(sig string, width int) uint64 {
	return b.bank.Get(b.resolve(sig), width)
}

// Set writes a bundle signal, truncated to width bits.
func (b *Bundle) Set(sig string, width int, val uint64) {
	b.bank.Set(b.resolve(sig), width, val)
}

func (b *Bundle) resolve(sig string) string {
	decl, found := b.signals[sig]
	if !found {
		errMsg := fmt.Sprintf(
			"Signal %s is not declared on bundle %s.\n", sig, b.name)
		errMsg += "Declared signals include:\n"
		for n := range b.signals {
			errMsg += fmt.Sprintf("\t%s\n", n)
		}
		fmt.Fprint(os.Stderr, errMsg)

		panic("hwio: signal not found")
	}

	return b.style(b.name, decl, b.role)
}

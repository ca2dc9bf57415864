// Package hooking provides the publish/subscribe registry that testbench
// components use to expose their lifecycle to one another. Subscriptions are
// keyed by position and invoked synchronously, in registration order, before
// control returns to the publisher.
package hooking

import "sync"

// Pos identifies one publishing position on a component, such as a driver's
// enqueue or pre-drive point. Positions are compared by identity, so each
// component package declares its positions as package-level variables.
type Pos struct {
	Name string
}

// Ctx carries the information about the site where an event fired.
type Ctx struct {
	// Domain is the component that published the event.
	Domain Hookable

	// Pos is the position the event fired at.
	Pos *Pos

	// Item is the payload, typically the transaction involved.
	Item any
}

// A Func is a subscriber callback. Callbacks run on the publisher's task and
// must not suspend; a subscriber that needs to wait must hand the work to a
// separately registered task.
type Func func(ctx Ctx)

// Hookable is implemented by components that accept subscriptions.
type Hookable interface {
	Subscribe(pos *Pos, fn Func)
}

// Publisher implements Hookable and is embedded by publishing components.
// The zero value is ready to use.
type Publisher struct {
	mu   sync.Mutex
	subs map[*Pos][]Func
}

// Subscribe registers fn to run whenever pos fires on this component.
// Callbacks for the same position run in the order they were registered.
func (p *Publisher) Subscribe(pos *Pos, fn Func) {
	if pos == nil || fn == nil {
		panic("hooking: subscription requires a position and a callback")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subs == nil {
		p.subs = make(map[*Pos][]Func)
	}
	p.subs[pos] = append(p.subs[pos], fn)
}

// NumSubscribers returns the number of callbacks registered at pos.
func (p *Publisher) NumSubscribers(pos *Pos) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[pos])
}

// Publish invokes every callback subscribed at ctx.Pos, in registration
// order, and returns once all of them have run.
func (p *Publisher) Publish(ctx Ctx) {
	p.mu.Lock()
	fns := p.subs[ctx.Pos]
	if len(fns) > 0 {
		fns = append([]Func(nil), fns...)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

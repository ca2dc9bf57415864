// Package scoreboard matches reference transactions against observed ones
// inside a sliding tolerance window. One channel pairs the expected stream
// of a single observed interface with what a monitor actually captured;
// reordering within the window is legitimate, anything beyond it is a
// defect.
package scoreboard

import (
	"fmt"
	"reflect"
	"sync"
)

// A Mismatch is the fatal failure raised when the head of the actual queue
// matches no reference entry within the window.
type Mismatch struct {
	Channel   string
	Window    int
	Reference any
	Actual    any
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf(
		"scoreboard channel %s: no match within window %d, reference head %+v, actual head %+v",
		m.Channel, m.Window, m.Reference, m.Actual)
}

// A Leftover is the end-of-run failure raised when a channel still holds
// unmatched entries at finalization.
type Leftover struct {
	Channel   string
	Reference int
	Actual    int
}

func (l *Leftover) Error() string {
	return fmt.Sprintf(
		"scoreboard channel %s: %d unterminated expectations, %d unexplained observations",
		l.Channel, l.Reference, l.Actual)
}

// A Channel holds the reference and actual queues of one observed
// interface. Transactions are opaque to the channel and compared by value.
type Channel struct {
	name   string
	window int

	mu        sync.Mutex
	reference []any
	actual    []any
	matched   int
	failure   error
}

func newChannel(name string, window int) *Channel {
	if window < 1 {
		panic("scoreboard: channel " + name + " needs a window of at least 1")
	}

	return &Channel{name: name, window: window}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Window returns the configured match window.
func (c *Channel) Window() int {
	return c.window
}

// PushReference appends an expected transaction and runs the matching step.
func (c *Channel) PushReference(txn any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reference = append(c.reference, txn)
	return c.matchLocked()
}

// PushActual appends an observed transaction and runs the matching step.
func (c *Channel) PushActual(txn any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actual = append(c.actual, txn)
	return c.matchLocked()
}

// matchLocked drains every resolvable pair. The head of the actual queue is
// compared against reference entries at offsets 0..window-1, nearest offset
// first; a hit removes both entries, shifting later references down. A miss
// with the full window available is fatal. A miss with fewer references
// than the window waits for more expectations to arrive.
func (c *Channel) matchLocked() error {
	if c.failure != nil {
		return c.failure
	}

	for len(c.actual) > 0 && len(c.reference) > 0 {
		head := c.actual[0]

		limit := c.window
		if len(c.reference) < limit {
			limit = len(c.reference)
		}

		found := -1
		for k := 0; k < limit; k++ {
			if reflect.DeepEqual(c.reference[k], head) {
				found = k
				break
			}
		}

		if found < 0 {
			if len(c.reference) < c.window {
				return nil
			}
			c.failure = &Mismatch{
				Channel:   c.name,
				Window:    c.window,
				Reference: c.reference[0],
				Actual:    head,
			}
			return c.failure
		}

		c.reference = append(c.reference[:found], c.reference[found+1:]...)
		c.actual = c.actual[1:]
		c.matched++
	}

	return nil
}

// Counts returns the number of matched pairs and the entries still pending
// in each queue.
func (c *Channel) Counts() (matched, reference, actual int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matched, len(c.reference), len(c.actual)
}

// Drained tells whether both queues are empty.
func (c *Channel) Drained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reference) == 0 && len(c.actual) == 0
}

// Finalize checks the end-of-run contract: a clean channel has no recorded
// failure and no leftover entries in either queue.
func (c *Channel) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failure != nil {
		return c.failure
	}

	if len(c.reference) > 0 || len(c.actual) > 0 {
		c.failure = &Leftover{
			Channel:   c.name,
			Reference: len(c.reference),
			Actual:    len(c.actual),
		}
		return c.failure
	}

	return nil
}

// A Result summarizes one channel at the end of a run.
type Result struct {
	Channel   string
	Matched   int
	Reference int
	Actual    int
	Failure   error
}

// Passed tells whether the channel ended clean.
func (r Result) Passed() bool {
	return r.Failure == nil
}

// A Scoreboard owns the channels of one testbench.
type Scoreboard struct {
	mu       sync.Mutex
	channels map[string]*Channel
	order    []string
}

// New creates an empty scoreboard.
func New() *Scoreboard {
	return &Scoreboard{channels: make(map[string]*Channel)}
}

// NewChannel creates and registers a channel. Channel names are unique.
func (s *Scoreboard) NewChannel(name string, window int) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.channels[name]; dup {
		panic("scoreboard: channel " + name + " already registered")
	}

	c := newChannel(name, window)
	s.channels[name] = c
	s.order = append(s.order, name)
	return c
}

// Channel returns the channel with the given name, or nil.
func (s *Scoreboard) Channel(name string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[name]
}

// Finalize runs the end-of-run check on every channel, in registration
// order, and returns one result per channel.
func (s *Scoreboard) Finalize() []Result {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	results := make([]Result, 0, len(names))
	for _, name := range names {
		c := s.Channel(name)
		failure := c.Finalize()
		matched, ref, act := c.Counts()

		results = append(results, Result{
			Channel:   name,
			Matched:   matched,
			Reference: ref,
			Actual:    act,
			Failure:   failure,
		})
	}

	return results
}

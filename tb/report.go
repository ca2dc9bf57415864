package tb

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/hwbench/strobe/sim"
)

// A ChannelReport summarizes one scoreboard channel at the end of a run.
type ChannelReport struct {
	Name      string
	Matched   int
	Reference int
	Actual    int
	Failure   error
}

// A Report is the outcome of one bench run.
type Report struct {
	Bench    string
	Seed     int64
	Cycles   sim.Cycle
	Channels []ChannelReport

	// Err is the fatal run error, if any. Scoreboard failures surface per
	// channel instead.
	Err error
}

// Passed tells whether the run ended clean on every front.
func (r *Report) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, ch := range r.Channels {
		if ch.Failure != nil {
			return false
		}
	}
	return true
}

// Print writes a human-readable summary.
func (r *Report) Print(w io.Writer) {
	bold := color.New(color.Bold)
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	bold.Fprintf(w, "%s: seed %d, %d cycles\n", r.Bench, r.Seed, r.Cycles)

	for _, ch := range r.Channels {
		if ch.Failure == nil {
			pass.Fprintf(w, "  ok   ")
		} else {
			fail.Fprintf(w, "  FAIL ")
		}
		fmt.Fprintf(w, "%-12s matched %d", ch.Name, ch.Matched)
		if ch.Reference > 0 || ch.Actual > 0 {
			fmt.Fprintf(w, ", %d reference / %d actual pending",
				ch.Reference, ch.Actual)
		}
		fmt.Fprintln(w)
		if ch.Failure != nil {
			fmt.Fprintf(w, "       %v\n", ch.Failure)
		}
	}

	if r.Err != nil {
		fail.Fprintf(w, "  error: ")
		fmt.Fprintf(w, "%v\n", r.Err)
	}

	if r.Passed() {
		pass.Fprintln(w, "PASS")
	} else {
		fail.Fprintln(w, "FAIL")
	}
}

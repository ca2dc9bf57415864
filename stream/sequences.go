package stream

import (
	"context"

	"github.com/hwbench/strobe/tb"
)

// TrafficSeq pushes a random number of random words through a stream
// initiator, holding the driver lock so no other sequence interleaves its
// traffic.
var TrafficSeq = tb.SeqSpec{
	Name: "stream_traffic",
	Requires: []tb.Requirement{
		{Role: "stream", Cap: tb.CapDrive},
	},
	Rand: []tb.RandArg{
		tb.IntArg("count", 100, 1000),
	},
	Run: func(ctx context.Context, sc *tb.SeqContext) error {
		d := sc.Driver("stream")

		return d.Lock().Do(ctx, func(ctx context.Context) error {
			count := sc.Args.Int("count")
			sc.Log.Printf("driving %d words", count)

			var last *tb.Handle
			for i := 0; i < count; i++ {
				last = d.MustEnqueue(Transaction{Data: sc.Rand.Uint32()})
			}
			return last.Wait(ctx, tb.HookPosPostDrive)
		})
	},
}

// BackpressureSeq feeds a stream responder with randomized ready stimulus
// forever: each step holds ready high with the drawn probability, for a
// random number of cycles up to the drawn bound. It holds the responder's
// lock for its whole lifetime and queues the next directive as soon as the
// current one starts driving, so the ready level never goes stale between
// directives. It runs in the background until the bench ends.
var BackpressureSeq = tb.SeqSpec{
	Name:       "stream_backpressure",
	Background: true,
	Requires: []tb.Requirement{
		{Role: "stream", Cap: tb.CapRespond},
	},
	Rand: []tb.RandArg{
		tb.FloatArg("ready_prob", 0.4, 0.9),
		tb.IntArg("max_hold", 3, 8),
	},
	Run: func(ctx context.Context, sc *tb.SeqContext) error {
		d := sc.Driver("stream")
		readyProb := sc.Args.Float("ready_prob")
		maxHold := sc.Args.Int("max_hold")

		return d.Lock().Do(ctx, func(ctx context.Context) error {
			for {
				bp := Backpressure{
					Ready:  sc.Rand.Float64() < readyProb,
					Cycles: 1 + sc.Rand.Intn(maxHold),
				}
				h := d.MustEnqueue(bp)
				if err := h.Wait(ctx, tb.HookPosPreDrive); err != nil {
					return err
				}
			}
		})
	},
}

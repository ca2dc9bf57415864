package tb_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hwbench/strobe/hooking"
	"github.com/hwbench/strobe/hwio"
	"github.com/hwbench/strobe/sim"
	"github.com/hwbench/strobe/tb"
)

type pulse struct {
	ID int
}

type brokenTxn struct{}

func (brokenTxn) Validate() error {
	return errors.New("field out of range")
}

var _ = Describe("Driver", func() {
	var (
		sched *sim.Scheduler
		clk   *sim.Clock
		bank  *hwio.Bank
	)

	BeforeEach(func() {
		sched = sim.NewScheduler().WithCycleLimit(1000)
		clk = sim.NewClock(sched, sim.ResetActiveHigh)
		bank = hwio.NewBank("dut")
	})

	releaseResetAfter := func(cycles int) {
		sched.Go("reset", false, func(ctx context.Context) error {
			if err := clk.WaitCycles(ctx, cycles); err != nil {
				return err
			}
			clk.SetReset(false)
			return nil
		})
	}

	It("drives transactions in enqueue order", func() {
		var order []int
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				order = append(order, txn.(pulse).ID)
				return clk.WaitEdge(ctx)
			})

		releaseResetAfter(1)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			drv.MustEnqueue(pulse{ID: 1})
			drv.MustEnqueue(pulse{ID: 2})
			last := drv.MustEnqueue(pulse{ID: 3})
			return last.Wait(ctx, tb.HookPosPostDrive)
		})

		Expect(sched.Run(context.Background())).To(Succeed())
		Expect(order).To(Equal([]int{1, 2, 3}))
	})

	It("fires enqueue, pre-drive, and post-drive in order per transaction", func() {
		var events []string
		record := func(tag string) hooking.Func {
			return func(ctx hooking.Ctx) {
				events = append(events,
					fmt.Sprintf("%s:%d", tag, ctx.Item.(pulse).ID))
			}
		}

		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				events = append(events,
					fmt.Sprintf("drive:%d", txn.(pulse).ID))
				return clk.WaitEdge(ctx)
			})
		drv.Subscribe(tb.HookPosEnqueue, record("enqueue"))
		drv.Subscribe(tb.HookPosPreDrive, record("pre"))
		drv.Subscribe(tb.HookPosPostDrive, record("post"))

		releaseResetAfter(1)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			drv.MustEnqueue(pulse{ID: 1})
			last := drv.MustEnqueue(pulse{ID: 2})
			return last.Wait(ctx, tb.HookPosPostDrive)
		})

		Expect(sched.Run(context.Background())).To(Succeed())
		Expect(events).To(Equal([]string{
			"enqueue:1", "enqueue:2",
			"pre:1", "drive:1", "post:1",
			"pre:2", "drive:2", "post:2",
		}))
	})

	It("holds transactions back while reset is asserted", func() {
		var firstDrive sim.Cycle
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				if firstDrive == 0 {
					firstDrive = clk.Cycle()
				}
				return clk.WaitEdge(ctx)
			})

		releaseResetAfter(3)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			return drv.MustEnqueue(pulse{ID: 1}).Wait(ctx, tb.HookPosPostDrive)
		})

		Expect(sched.Run(context.Background())).To(Succeed())
		Expect(firstDrive).To(Equal(sim.Cycle(3)))
	})

	It("rejects nil and invalid transactions at enqueue", func() {
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				return nil
			})

		_, err := drv.Enqueue(nil)
		Expect(err).To(HaveOccurred())

		_, err = drv.Enqueue(brokenTxn{})
		Expect(err).To(MatchError(ContainSubstring("field out of range")))
		Expect(drv.QueueLen()).To(Equal(0))
	})

	It("resolves handle waits that start after the position fired", func() {
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				return clk.WaitEdge(ctx)
			})

		releaseResetAfter(1)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			h := drv.MustEnqueue(pulse{ID: 1})
			if err := h.Wait(ctx, tb.HookPosPostDrive); err != nil {
				return err
			}
			// Already fired: must not suspend.
			if !h.Fired(tb.HookPosPreDrive) {
				return errors.New("pre-drive not marked fired")
			}
			return h.Wait(ctx, tb.HookPosEnqueue)
		})

		Expect(sched.Run(context.Background())).To(Succeed())
	})

	It("fails the run when the design never accepts", func() {
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				d.Port().Set("valid", 1, 1)
				return d.AwaitAccept(ctx, "ready")
			}).
			WithAcceptTimeout(3)

		releaseResetAfter(1)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			return drv.MustEnqueue(pulse{ID: 1}).Wait(ctx, tb.HookPosPostDrive)
		})

		err := sched.Run(context.Background())
		var timeout *tb.ProtocolTimeout
		Expect(errors.As(err, &timeout)).To(BeTrue())
		Expect(timeout.Driver).To(Equal("in"))
		Expect(timeout.Signal).To(Equal("ready"))
	})

	It("applies signal values through the port", func() {
		ctrl := gomock.NewController(GinkgoT())
		port := NewMockPort(ctrl)
		gomock.InOrder(
			port.EXPECT().Set("data", 8, uint64(0x5a)),
			port.EXPECT().Set("valid", 1, uint64(1)),
		)

		drv := tb.NewDriver("in", clk, port,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				d.Port().Set("data", 8, uint64(txn.(pulse).ID))
				d.Port().Set("valid", 1, 1)
				return nil
			})

		releaseResetAfter(1)
		sched.Go("driver", false, drv.Run)
		sched.Go("test", true, func(ctx context.Context) error {
			return drv.MustEnqueue(pulse{ID: 0x5a}).Wait(ctx, tb.HookPosPostDrive)
		})

		Expect(sched.Run(context.Background())).To(Succeed())
	})

	It("reports its configuration", func() {
		drv := tb.NewDriver("in", clk, bank,
			func(ctx context.Context, d *tb.Driver, txn tb.Transaction) error {
				return nil
			})

		Expect(drv.Name()).To(Equal("in"))
		Expect(drv.Blocking()).To(BeTrue())
		Expect(drv.AsNonBlocking().Blocking()).To(BeFalse())
		Expect(drv.Lock()).NotTo(BeNil())
	})
})

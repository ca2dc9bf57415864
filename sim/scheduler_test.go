package sim_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwbench/strobe/sim"
)

var _ = Describe("Scheduler", func() {
	var sched *sim.Scheduler

	BeforeEach(func() {
		sched = sim.NewScheduler()
	})

	It("should resume edge waiters in registration order", func() {
		var order []string

		for _, name := range []string{"a", "b", "c"} {
			name := name
			sched.Go(name, true, func(ctx context.Context) error {
				for i := 0; i < 3; i++ {
					if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
						return err
					}
					order = append(order,
						fmt.Sprintf("%s@%d", name, sched.CurrentCycle()))
				}
				return nil
			})
		}

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(order).To(Equal([]string{
			"a@1", "b@1", "c@1",
			"a@2", "b@2", "c@2",
			"a@3", "b@3", "c@3",
		}))
	})

	It("should deliver settle and sample after edge within one cycle", func() {
		var trace []string

		sched.Go("sampler", true, func(ctx context.Context) error {
			if err := sched.WaitPhase(ctx, sim.PhaseSample); err != nil {
				return err
			}
			trace = append(trace, "sample")
			return nil
		})
		sched.Go("model", true, func(ctx context.Context) error {
			if err := sched.WaitPhase(ctx, sim.PhaseSettle); err != nil {
				return err
			}
			trace = append(trace, "settle")
			return nil
		})
		sched.Go("driver", true, func(ctx context.Context) error {
			if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
				return err
			}
			trace = append(trace, "edge")
			return nil
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(trace).To(Equal([]string{"edge", "settle", "sample"}))
	})

	It("should let a running task hand work to a freshly registered task", func() {
		var trace []string

		sched.Go("parent", true, func(ctx context.Context) error {
			trace = append(trace, "parent-before")
			sched.Go("child", true, func(ctx context.Context) error {
				trace = append(trace, "child")
				return nil
			})
			if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
				return err
			}
			trace = append(trace, "parent-after")
			return nil
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(trace).To(Equal([]string{"parent-before", "child", "parent-after"}))
	})

	It("should end the run when all tracked tasks complete", func() {
		daemonCycles := 0

		sched.Go("daemon", false, func(ctx context.Context) error {
			for {
				if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
					return err
				}
				daemonCycles++
			}
		})
		sched.Go("work", true, func(ctx context.Context) error {
			for i := 0; i < 4; i++ {
				if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
					return err
				}
			}
			return nil
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(sched.CurrentCycle()).To(Equal(sim.Cycle(4)))
		Expect(daemonCycles).To(Equal(4))
	})

	It("should report a deadlock when no task awaits the clock", func() {
		sched.Go("stuck", true, func(ctx context.Context) error {
			return sched.Await(ctx, sched.NewWaiter())
		})

		err := sched.Run(context.Background())

		Expect(errors.Is(err, sim.ErrDeadlock)).To(BeTrue())
	})

	It("should stop at the cycle limit", func() {
		sched.WithCycleLimit(3)
		sched.Go("forever", true, func(ctx context.Context) error {
			for {
				if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
					return err
				}
			}
		})

		err := sched.Run(context.Background())

		Expect(errors.Is(err, sim.ErrCycleLimit)).To(BeTrue())
	})

	It("should surface the first task error and cancel the rest", func() {
		boom := errors.New("boom")

		sched.Go("failing", true, func(ctx context.Context) error {
			if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
				return err
			}
			return boom
		})
		sched.Go("bystander", true, func(ctx context.Context) error {
			for {
				if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
					return err
				}
			}
		})

		err := sched.Run(context.Background())

		Expect(errors.Is(err, boom)).To(BeTrue())
	})

	It("should wake a parked waiter exactly once", func() {
		w := sched.NewWaiter()
		var got []string

		sched.Go("waiter", true, func(ctx context.Context) error {
			if err := sched.Await(ctx, w); err != nil {
				return err
			}
			got = append(got, "woken")
			return nil
		})
		sched.Go("waker", true, func(ctx context.Context) error {
			if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
				return err
			}
			sched.Wake(w)
			sched.Wake(w)
			got = append(got, "woke")
			return nil
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal([]string{"woke", "woken"}))
	})

	It("should return immediately from Await on a pre-woken waiter", func() {
		w := sched.NewWaiter()

		sched.Go("only", true, func(ctx context.Context) error {
			sched.Wake(w)
			return sched.Await(ctx, w)
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
	})
})

package sim_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwbench/strobe/sim"
)

var _ = Describe("Lock", func() {
	var (
		sched *sim.Scheduler
		lock  *sim.Lock
	)

	BeforeEach(func() {
		sched = sim.NewScheduler()
		lock = sim.NewLock(sched)
	})

	It("should never be held by two tasks at once", func() {
		inCritical := 0
		maxInCritical := 0
		var grants []string

		for _, name := range []string{"a", "b", "c"} {
			name := name
			sched.Go(name, true, func(ctx context.Context) error {
				for i := 0; i < 2; i++ {
					err := lock.Do(ctx, func(ctx context.Context) error {
						inCritical++
						if inCritical > maxInCritical {
							maxInCritical = inCritical
						}
						grants = append(grants, name)

						if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
							return err
						}

						inCritical--
						return nil
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
		}

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(maxInCritical).To(Equal(1))
		Expect(grants).To(Equal([]string{"a", "b", "c", "a", "b", "c"}))
		Expect(lock.Holder()).To(BeNil())
	})

	It("should reject recursive acquisition by the holder", func() {
		var acquireErr error

		sched.Go("seq", true, func(ctx context.Context) error {
			return lock.Do(ctx, func(ctx context.Context) error {
				acquireErr = lock.Acquire(ctx)
				return nil
			})
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(acquireErr).To(HaveOccurred())
	})

	It("should release the lock when the critical section is canceled", func() {
		var bAcquired bool

		sched.Go("a", true, func(ctx context.Context) error {
			err := lock.Do(ctx, func(ctx context.Context) error {
				return context.Canceled
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		sched.Go("b", true, func(ctx context.Context) error {
			return lock.Do(ctx, func(ctx context.Context) error {
				bAcquired = true
				return nil
			})
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(bAcquired).To(BeTrue())
		Expect(lock.Holder()).To(BeNil())
	})

	It("should drop a canceled waiter from the queue", func() {
		var waitErr error
		var cAcquired bool

		sched.Go("a", true, func(ctx context.Context) error {
			return lock.Do(ctx, func(ctx context.Context) error {
				return sched.WaitPhase(ctx, sim.PhaseEdge)
			})
		})
		sched.Go("b", true, func(ctx context.Context) error {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			waitErr = lock.Acquire(canceled)
			return nil
		})
		sched.Go("c", true, func(ctx context.Context) error {
			return lock.Do(ctx, func(ctx context.Context) error {
				cAcquired = true
				return nil
			})
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(errors.Is(waitErr, context.Canceled)).To(BeTrue())
		Expect(cAcquired).To(BeTrue())
		Expect(lock.Holder()).To(BeNil())
	})

	It("should refuse release by a non-holder", func() {
		var releaseErr error

		sched.Go("a", true, func(ctx context.Context) error {
			return lock.Do(ctx, func(ctx context.Context) error {
				return sched.WaitPhase(ctx, sim.PhaseEdge)
			})
		})
		sched.Go("b", true, func(ctx context.Context) error {
			releaseErr = lock.Release(ctx)
			return nil
		})

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(releaseErr).To(HaveOccurred())
	})

	It("should serialize interleaved enqueue bursts", func() {
		var burst []string

		for _, name := range []string{"x", "y"} {
			name := name
			sched.Go(name, true, func(ctx context.Context) error {
				return lock.Do(ctx, func(ctx context.Context) error {
					for i := 0; i < 3; i++ {
						burst = append(burst, fmt.Sprintf("%s%d", name, i))
						if err := sched.WaitPhase(ctx, sim.PhaseEdge); err != nil {
							return err
						}
					}
					return nil
				})
			})
		}

		err := sched.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(burst).To(Equal([]string{"x0", "x1", "x2", "y0", "y1", "y2"}))
	})
})

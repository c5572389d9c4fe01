package aggregator

import (
	"context"
	"time"

	"netlens/internal/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Aggregator", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		in     chan models.NetworkEvent
		out    chan models.Batch
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		// unbuffered, so a completed send means the event was ingested
		// before any later query is serviced
		in = make(chan models.NetworkEvent)
		out = make(chan models.Batch, 16)
	})

	AfterEach(func() {
		cancel()
	})

	start := func(a *Aggregator, out chan<- models.Batch) {
		go func() {
			defer GinkgoRecover()
			Expect(a.Run(ctx, in, out)).To(Succeed())
		}()
	}

	send := func(from, to int) {
		for i := from; i <= to; i++ {
			in <- event(i)
		}
	}

	It("should reject a non-positive capacity", func() {
		_, err := New(Config{Capacity: 0})
		Expect(err).To(MatchError(ErrInvalidCapacity))
	})

	It("should require an output channel when autonomous", func() {
		a, err := New(Config{Policy: PolicyAutonomous, Capacity: 3})
		Expect(err).ToNot(HaveOccurred())

		Expect(a.Run(ctx, in, nil)).To(MatchError(ErrNoOutput))
		Eventually(a.Done()).Should(BeClosed())
	})

	Context("autonomous policy", func() {
		It("should release one batch per period and stay quiet when idle", func() {
			period := 40 * time.Millisecond
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 20, FlushInterval: period})
			Expect(err).ToNot(HaveOccurred())
			start(a, out)

			send(1, 5)

			var batch models.Batch
			Eventually(out, 5*period).Should(Receive(&batch))
			Expect(batch.Reason).To(Equal(models.ReleaseTimer))
			Expect(summaries(batch.Events)).To(Equal([]string{"E1", "E2", "E3", "E4", "E5"}))
			Expect(batch.ID).ToNot(BeEmpty())

			Consistently(out, 4*period).ShouldNot(Receive())
			Expect(a.Stats().Pending).To(BeZero())
		})

		It("should release immediately when the buffer fills up", func() {
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 3, FlushInterval: time.Hour})
			Expect(err).ToNot(HaveOccurred())
			start(a, out)

			send(1, 3)
			var batch models.Batch
			Eventually(out).Should(Receive(&batch))
			Expect(batch.Reason).To(Equal(models.ReleaseCapacity))
			Expect(summaries(batch.Events)).To(Equal([]string{"E1", "E2", "E3"}))

			send(4, 5)
			Consistently(out, 100*time.Millisecond).ShouldNot(Receive())

			send(6, 6)
			Eventually(out).Should(Receive(&batch))
			Expect(summaries(batch.Events)).To(Equal([]string{"E4", "E5", "E6"}))
		})

		It("should deliver every event exactly once and in order", func() {
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 5, FlushInterval: 30 * time.Millisecond})
			Expect(err).ToNot(HaveOccurred())
			start(a, out)

			const total = 23
			send(1, total)

			var got []string
			Eventually(func() int {
				for {
					select {
					case b := <-out:
						got = append(got, summaries(b.Events)...)
					default:
						return len(got)
					}
				}
			}, time.Second).Should(Equal(total))

			expected := make([]string, 0, total)
			for i := 1; i <= total; i++ {
				expected = append(expected, event(i).Summary)
			}
			Expect(got).To(Equal(expected))
			Expect(a.Stats().Evicted).To(BeZero())
		})

		It("should refuse on-demand queries", func() {
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 3})
			Expect(err).ToNot(HaveOccurred())

			_, err = a.Query(ctx, "anything?")
			Expect(err).To(MatchError(ErrQueryUnsupported))
		})

		It("should keep flushing after the event source closes", func() {
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 10, FlushInterval: 30 * time.Millisecond})
			Expect(err).ToNot(HaveOccurred())
			start(a, out)

			send(1, 2)
			close(in)

			var batch models.Batch
			Eventually(out).Should(Receive(&batch))
			Expect(batch.Len()).To(Equal(2))
			Consistently(a.Done(), 100*time.Millisecond).ShouldNot(BeClosed())
		})

		It("should drop batches instead of stalling when the consumer is full", func() {
			full := make(chan models.Batch, 1)
			a, err := New(Config{Policy: PolicyAutonomous, Capacity: 2, FlushInterval: time.Hour})
			Expect(err).ToNot(HaveOccurred())
			start(a, full)

			send(1, 6)

			Eventually(func() uint64 { return a.Stats().DroppedBatches }).Should(Equal(uint64(2)))
			stats := a.Stats()
			Expect(stats.Ingested).To(Equal(uint64(6)))
			Expect(stats.Batches).To(Equal(uint64(3)))
			Expect(stats.Capacity).To(Equal(2))

			var batch models.Batch
			Expect(full).To(Receive(&batch))
			Expect(summaries(batch.Events)).To(Equal([]string{"E1", "E2"}))
		})
	})

	Context("interactive policy", func() {
		var a *Aggregator

		BeforeEach(func() {
			var err error
			a, err = New(Config{Policy: PolicyInteractive, Capacity: 3, FlushInterval: 10 * time.Millisecond})
			Expect(err).ToNot(HaveOccurred())
			start(a, nil)
		})

		It("should answer an empty buffer with an empty batch", func() {
			batch, err := a.Query(ctx, "what happened?")

			Expect(err).ToNot(HaveOccurred())
			Expect(batch.Empty()).To(BeTrue())
			Expect(batch.Reason).To(Equal(models.ReleaseDemand))
			Expect(batch.Question).To(Equal("what happened?"))
		})

		It("should keep only the newest events up to capacity", func() {
			send(1, 4)

			batch, err := a.Query(ctx, "q")

			Expect(err).ToNot(HaveOccurred())
			Expect(summaries(batch.Events)).To(Equal([]string{"E2", "E3", "E4"}))
			Expect(a.Stats().Evicted).To(Equal(uint64(1)))
		})

		It("should drain atomically", func() {
			send(1, 2)

			first, err := a.Query(ctx, "q1")
			Expect(err).ToNot(HaveOccurred())
			second, err := a.Query(ctx, "q2")
			Expect(err).ToNot(HaveOccurred())

			Expect(first.Len()).To(Equal(2))
			Expect(second.Empty()).To(BeTrue())
		})

		It("should never release on its own", func() {
			send(1, 3)

			Consistently(out, 100*time.Millisecond).ShouldNot(Receive())
			batch, err := a.Query(ctx, "q")
			Expect(err).ToNot(HaveOccurred())
			Expect(batch.Len()).To(Equal(3))
		})

		It("should fail queries once stopped", func() {
			cancel()
			Eventually(a.Done()).Should(BeClosed())

			_, err := a.Query(context.Background(), "q")
			Expect(err).To(MatchError(ErrStopped))
		})

		It("should honour the caller's context", func() {
			idle, err := New(Config{Policy: PolicyInteractive, Capacity: 3})
			Expect(err).ToNot(HaveOccurred())

			qctx, qcancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer qcancel()
			_, err = idle.Query(qctx, "q")
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("ParsePolicy", func() {
		It("should accept known modes case-insensitively", func() {
			Expect(ParsePolicy("Interactive")).To(Equal(PolicyInteractive))
			Expect(ParsePolicy("autonomous")).To(Equal(PolicyAutonomous))
		})

		It("should reject unknown modes", func() {
			_, err := ParsePolicy("hybrid")
			Expect(err).To(HaveOccurred())
		})
	})
})

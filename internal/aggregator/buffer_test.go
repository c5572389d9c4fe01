package aggregator

import (
	"fmt"
	"math/rand"

	"netlens/internal/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func event(i int) models.NetworkEvent {
	return models.NetworkEvent{
		SourceAddress: "10.0.0.1",
		DestAddress:   "10.0.0.2",
		Transport:     models.TransportTCP,
		Summary:       fmt.Sprintf("E%d", i),
	}
}

func summaries(evs []models.NetworkEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Summary
	}
	return out
}

var _ = Describe("Buffer", func() {
	It("should evict the oldest event on overflow", func() {
		b := NewBuffer(3)
		for i := 1; i <= 4; i++ {
			b.Push(event(i))
		}

		Expect(summaries(b.Snapshot())).To(Equal([]string{"E2", "E3", "E4"}))
	})

	It("should report reaching capacity only on the transition", func() {
		b := NewBuffer(2)

		reached, evicted := b.Push(event(1))
		Expect(reached).To(BeFalse())
		Expect(evicted).To(BeFalse())

		reached, evicted = b.Push(event(2))
		Expect(reached).To(BeTrue())
		Expect(evicted).To(BeFalse())

		reached, evicted = b.Push(event(3))
		Expect(reached).To(BeFalse())
		Expect(evicted).To(BeTrue())
	})

	It("should never exceed capacity and evict once per excess insert", func() {
		rng := rand.New(rand.NewSource(7))
		for round := 0; round < 50; round++ {
			capacity := rng.Intn(10) + 1
			inserts := rng.Intn(40)
			b := NewBuffer(capacity)

			evictions := 0
			for i := 0; i < inserts; i++ {
				if _, evicted := b.Push(event(i)); evicted {
					evictions++
				}
				Expect(b.Len()).To(BeNumerically("<=", capacity))
			}

			Expect(evictions).To(Equal(max(0, inserts-capacity)))
			if inserts > 0 {
				last := b.Snapshot()
				Expect(last[len(last)-1].Summary).To(Equal(fmt.Sprintf("E%d", inserts-1)))
			}
		}
	})

	It("should hand everything over on drain and start empty", func() {
		b := NewBuffer(5)
		b.Push(event(1))
		b.Push(event(2))

		first := b.Drain()
		second := b.Drain()

		Expect(summaries(first)).To(Equal([]string{"E1", "E2"}))
		Expect(second).To(BeEmpty())
		Expect(b.Len()).To(Equal(0))
	})

	It("should not let later pushes alias a drained batch", func() {
		b := NewBuffer(2)
		b.Push(event(1))
		drained := b.Drain()
		b.Push(event(9))

		Expect(drained[0].Summary).To(Equal("E1"))
	})
})

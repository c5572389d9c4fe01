package aggregator

import "netlens/internal/models"

// Buffer is the bounded FIFO of pending events. It is not safe for
// concurrent use; the Aggregator's Run goroutine is its only owner.
type Buffer struct {
	pending  []models.NetworkEvent
	capacity int
}

// NewBuffer returns an empty buffer holding at most capacity events.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		pending:  make([]models.NetworkEvent, 0, capacity),
		capacity: capacity,
	}
}

// Push appends ev. When the buffer would grow past capacity the single oldest
// event is dropped. reached is true only on the insert that moves the buffer
// from below capacity to exactly capacity.
func (b *Buffer) Push(ev models.NetworkEvent) (reached, evicted bool) {
	before := len(b.pending)
	b.pending = append(b.pending, ev)

	if len(b.pending) > b.capacity {
		b.pending = b.pending[len(b.pending)-b.capacity:]
		evicted = true
	}
	reached = before < b.capacity && len(b.pending) == b.capacity
	return reached, evicted
}

// Drain hands over everything pending and leaves the buffer empty.
func (b *Buffer) Drain() []models.NetworkEvent {
	out := b.pending
	b.pending = make([]models.NetworkEvent, 0, b.capacity)
	return out
}

// Len returns the number of pending events.
func (b *Buffer) Len() int {
	return len(b.pending)
}

// Capacity returns the configured bound.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Snapshot returns a copy of the pending events without draining them.
func (b *Buffer) Snapshot() []models.NetworkEvent {
	out := make([]models.NetworkEvent, len(b.pending))
	copy(out, b.pending)
	return out
}

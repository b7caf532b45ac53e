package channel

import "sync"

// Buffered is a channel with a fixed queue
type Buffered[T any] struct {
	ch   chan T
	once sync.Once
}

// NewBuffered creates a new buffered channel with the given size
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Send queues v, blocking while the queue is full
func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

// TrySend queues v unless the queue is full
func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of queued items
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Close closes the channel once
func (b *Buffered[T]) Close() {
	b.once.Do(func() { close(b.ch) })
}

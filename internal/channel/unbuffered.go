package channel

import "sync"

// Unbuffered hands values directly to a waiting receiver
type Unbuffered[T any] struct {
	ch   chan T
	once sync.Once
}

// NewUnbuffered creates a new unbuffered channel
func NewUnbuffered[T any]() *Unbuffered[T] {
	return &Unbuffered[T]{ch: make(chan T)}
}

// Send blocks until v is received
func (u *Unbuffered[T]) Send(v T) {
	u.ch <- v
}

// TrySend succeeds only when a receiver is already waiting
func (u *Unbuffered[T]) TrySend(v T) bool {
	select {
	case u.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel
func (u *Unbuffered[T]) Receive() <-chan T {
	return u.ch
}

// Len always returns 0
func (u *Unbuffered[T]) Len() int {
	return 0
}

// Close closes the channel once
func (u *Unbuffered[T]) Close() {
	u.once.Do(func() { close(u.ch) })
}

// Package channel provides generic channel interfaces used for per-client
// outbound queues.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	// Send blocks until v is accepted.
	Send(v T)
	// TrySend returns false instead of blocking when v cannot be accepted.
	TrySend(v T) bool
}

// Channel combines read and write access. Close may be called more than once.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

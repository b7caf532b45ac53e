//go:build !debug

package channel

// New creates an outbound queue of the given size.
// Debug builds use an unbuffered channel instead to surface slow consumers.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}

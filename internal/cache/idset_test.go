package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDSet_AddHasRemove(t *testing.T) {
	s := NewIDSet()

	assert.True(t, s.Add(3))
	assert.False(t, s.Add(3), "second add reports existing")
	assert.True(t, s.Has(3))

	s.Remove(3)
	assert.False(t, s.Has(3))

	// Should not panic when removing a missing id
	s.Remove(42)
}

func TestIDSet_SliceIsSorted(t *testing.T) {
	s := NewIDSet()
	for _, id := range []int{5, 1, 3} {
		s.Add(id)
	}

	assert.Equal(t, []int{1, 3, 5}, s.Slice())
}

func TestIDSet_RestoreAndReset(t *testing.T) {
	s := NewIDSet()
	s.Add(9)

	s.Restore([]int{2, 2, 4})
	assert.Equal(t, []int{2, 4}, s.Slice())
	assert.Equal(t, 2, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestIDSet_ConcurrentAccess(t *testing.T) {
	s := NewIDSet()
	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.Add(id)
			s.Has(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}

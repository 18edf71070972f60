package fbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqCounterWraps(t *testing.T) {
	s := NewSeqCounter()
	for i := 0; i < 8; i++ {
		assert.Equal(t, byte(SeqFirst+i), s.Next())
	}
	// Eight allocations bring the counter back to the start.
	assert.Equal(t, byte(SeqFirst), s.Peek())
	assert.Equal(t, byte(SeqFirst), s.Next())
	assert.Equal(t, byte(SeqFirst+1), s.Next())
}

func TestSeqCounterZeroValue(t *testing.T) {
	var s SeqCounter
	assert.Equal(t, byte(SeqFirst), s.Peek())
	assert.Equal(t, byte(SeqFirst), s.Next())
	assert.Equal(t, byte(SeqFirst+1), s.Peek())
}

func TestSeqCounterConcurrentStaysInRange(t *testing.T) {
	s := NewSeqCounter()
	counts := make([]int, SeqLast-SeqFirst+1)
	var mutex sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v := s.Next()
				mutex.Lock()
				counts[v-SeqFirst]++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	for i, c := range counts {
		assert.Equal(t, 100, c, "seq %.2x", SeqFirst+i)
	}
}

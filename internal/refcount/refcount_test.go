package refcount_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavelet-io/wavelet-go/internal/refcount"
)

func TestCounterStartsAtOne(t *testing.T) {
	c := refcount.New()
	assert.EqualValues(t, 1, c.Count())
}

func TestDecrementFloorsAtZero(t *testing.T) {
	c := refcount.New()
	assert.EqualValues(t, 0, c.Decrement())
	assert.EqualValues(t, 0, c.Decrement())
}

func TestTryFreeFiresExactlyOnce(t *testing.T) {
	c := refcount.New()
	c.Increment() // count == 2

	const goroutines = 16
	var wg sync.WaitGroup
	var freedCount atomicInt
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if c.TryFree() {
				freedCount.add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, freedCount.load(), "exactly one caller must observe the zero transition")
	assert.EqualValues(t, 0, c.Count())
}

type atomicInt struct {
	mu sync.Mutex
	v  int
}

func (a *atomicInt) add(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v += n
}

func (a *atomicInt) load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

package mixer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	concurrent int32
	maxSeen    int32
}

func (f *countingFactory) CreateFrame(tag string, width, height int) (any, error) {
	n := atomic.AddInt32(&f.concurrent, 1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.concurrent, -1)
	return "frame:" + tag, nil
}

func TestAllocatingFactory_BoundsConcurrency(t *testing.T) {
	underlying := &countingFactory{}
	allocator := NewAllocator(AllocatorConfig{MaxConcurrent: 2, AcquireTimeout: time.Second})
	factory := NewAllocatingFactory(underlying, allocator)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := factory.CreateFrame("tag", 1920, 1080)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&underlying.maxSeen), int32(2))
}

func TestAllocatingFactory_DelegatesResult(t *testing.T) {
	underlying := &countingFactory{}
	allocator := NewAllocator(DefaultAllocatorConfig())
	factory := NewAllocatingFactory(underlying, allocator)

	result, err := factory.CreateFrame("bg", 640, 480)
	require.NoError(t, err)
	assert.Equal(t, "frame:bg", result)
}

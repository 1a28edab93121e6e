package mixer

import (
	"context"
	"fmt"

	"github.com/onairstack/stagecast/internal/playout/producer"
)

// AllocatingFactory wraps an underlying FrameFactory, bracketing every
// CreateFrame call with an Allocator.Acquire/release pair so that the
// configured concurrency limit is actually enforced across every Stage
// sharing the factory, rather than the Allocator sitting beside the
// factory unused.
type AllocatingFactory struct {
	underlying producer.FrameFactory
	allocator  *Allocator
}

// NewAllocatingFactory wraps underlying with allocator.
func NewAllocatingFactory(underlying producer.FrameFactory, allocator *Allocator) *AllocatingFactory {
	return &AllocatingFactory{underlying: underlying, allocator: allocator}
}

// CreateFrame acquires a slot from the allocator, delegates to the
// underlying factory, and releases the slot before returning. The
// producer.FrameFactory interface carries no context, so the acquire uses
// context.Background(); the AcquireTimeout configured on the Allocator is
// what actually bounds the wait.
func (f *AllocatingFactory) CreateFrame(tag string, width, height int) (any, error) {
	release, err := f.allocator.Acquire(context.Background())
	if err != nil {
		return nil, fmt.Errorf("acquiring mixer allocation for %q: %w", tag, err)
	}
	defer release()

	return f.underlying.CreateFrame(tag, width, height)
}

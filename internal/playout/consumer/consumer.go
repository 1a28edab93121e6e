// Package consumer defines the sink side of the playout pipeline: anything
// that accepts a Stage's rendered Frame each tick. Consumers never feed back
// into a Stage, so this package must never import internal/playout/stage.
package consumer

import (
	"context"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

// Consumer receives one rendered Frame per Stage tick. Implementations
// must not block the channel's tick cadence indefinitely; a slow consumer
// should buffer or drop rather than stall the Stage's Tick, which publishes
// to every consumer in turn.
type Consumer interface {
	// Publish delivers f, the Stage's output for the current tick.
	Publish(ctx context.Context, f frame.Frame) error

	// Name identifies the consumer for logging and diagnostics.
	Name() string
}

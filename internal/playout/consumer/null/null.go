// Package null provides a Consumer that discards every published frame,
// used by Stages that have no wired output (diagnostics-only channels,
// tests) so the Stage's consumer fan-out path always has at least one
// well-behaved sink to exercise.
package null

import (
	"context"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

// Consumer discards every frame it receives.
type Consumer struct{}

// New constructs a discarding Consumer.
func New() Consumer { return Consumer{} }

// Publish always succeeds and does nothing with f.
func (Consumer) Publish(context.Context, frame.Frame) error { return nil }

// Name identifies the consumer for logging and diagnostics.
func (Consumer) Name() string { return "null" }

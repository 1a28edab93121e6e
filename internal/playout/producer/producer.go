// Package producer defines the pull-mode frame source capability set that
// a Stage drives once per tick, plus the "empty" producer every channel
// falls back to.
package producer

import (
	"context"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

// FrameFactory is the shared image-mixer handle producers use to allocate
// frame payloads. It is expected to be internally thread-safe; concrete
// implementations (GPU mixer bindings) live outside this package.
type FrameFactory interface {
	CreateFrame(tag string, width, height int) (any, error)
}

// Producer is the capability set every concrete frame source (file, image,
// scene, text, color, transition, empty) implements. The core only ever
// sees this interface; parameter parsing and concrete wiring live in a
// surrounding layer via the registry package.
type Producer interface {
	// Initialize prepares the producer to render, given the shared
	// FrameFactory. Called exactly once before the first RenderFrame in a
	// given role, and again if the producer is reused as a following
	// producer after auto-advance.
	Initialize(ctx context.Context, factory FrameFactory) error

	// RenderFrame returns the next frame, or (Frame{}, false, nil) to
	// signal exhaustion. It must not block longer than one frame interval
	// in steady state. A non-nil error indicates ProducerFailure.
	RenderFrame(ctx context.Context) (frame.Frame, bool, error)

	// FollowingProducer returns the producer the channel should switch to
	// when this one exhausts or fails. Returns nil if there is none, in
	// which case the Stage repeats the last frame on exhaustion and falls
	// back to the empty producer on failure.
	FollowingProducer() Producer

	// SetLeadingProducer records a back-reference to the producer this one
	// is replacing. It is informational only: the Stage never dereferences
	// it, and only the transition producer makes use of its own stored
	// reference.
	SetLeadingProducer(p Producer)

	// Format returns this producer's output geometry and audio layout.
	Format() frame.FormatDesc

	// Name identifies the producer for logging and diagnostics.
	Name() string
}

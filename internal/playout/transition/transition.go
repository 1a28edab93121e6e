// Package transition implements the Transition Producer: a Producer that
// wraps two child producers (source = outgoing, dest = incoming) and emits
// a deterministic sequence of composited frames for a fixed duration,
// then collapses to dest.
package transition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
)

// Type enumerates the supported transition effects.
type Type int

const (
	Cut Type = iota
	Mix
	Slide
	Push
	Wipe
)

// String renders the transition type name for logging.
func (t Type) String() string {
	switch t {
	case Cut:
		return "cut"
	case Mix:
		return "mix"
	case Slide:
		return "slide"
	case Push:
		return "push"
	case Wipe:
		return "wipe"
	default:
		return "unknown"
	}
}

// Direction is used only by slide/push/wipe transitions.
type Direction int

const (
	FromLeft Direction = iota
	FromRight
)

// String renders the direction name for logging.
func (d Direction) String() string {
	if d == FromRight {
		return "from_right"
	}
	return "from_left"
}

// Info describes a transition effect: its type, direction (ignored by
// cut/mix), and duration in frames.
type Info struct {
	Type      Type
	Direction Direction
	Duration  int
}

// Producer is a specialized Producer that composites source (outgoing)
// and dest (incoming) for Info.Duration frames, then exhausts so the
// Stage auto-advances to dest.
type Producer struct {
	dest   producer.Producer
	source producer.Producer

	info    Info
	format  frame.FormatDesc
	factory producer.FrameFactory
	logger  *slog.Logger

	currentFrame int
	cutDone      bool
}

// New constructs a Transition Producer. dest is required and non-nil;
// duration must be a positive number of frames (duration = 0 is
// InvalidArgument for every type, cut included). Both preconditions fail
// construction with producer.ErrInvalidArgument, per spec.md §3, §7 and
// §8 scenario S6.
func New(dest producer.Producer, info Info, format frame.FormatDesc, logger *slog.Logger) (*Producer, error) {
	if dest == nil {
		return nil, fmt.Errorf("transition requires a non-nil dest producer: %w", producer.ErrInvalidArgument)
	}
	if info.Duration < 1 {
		return nil, fmt.Errorf("transition duration must be positive, got %d: %w", info.Duration, producer.ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{dest: dest, info: info, format: format, logger: logger}, nil
}

// Initialize stores the shared FrameFactory and initializes dest. source,
// if present, is already running under the Stage and is not re-initialized.
func (t *Producer) Initialize(ctx context.Context, factory producer.FrameFactory) error {
	t.factory = factory
	if err := t.dest.Initialize(ctx, factory); err != nil {
		return fmt.Errorf("initializing transition dest producer %q: %w", t.dest.Name(), err)
	}
	return nil
}

// FollowingProducer is always dest: once the transition exhausts, the
// Stage's auto-advance mechanism promotes dest to current.
func (t *Producer) FollowingProducer() producer.Producer {
	return t.dest
}

// SetLeadingProducer records the outgoing producer as source. Called by
// the Stage at swap time per spec.md §4.4 "play()".
func (t *Producer) SetLeadingProducer(p producer.Producer) {
	t.source = p
}

// Format returns the channel format this transition renders into.
func (t *Producer) Format() frame.FormatDesc {
	return t.format
}

// Name identifies this transition for logging and diagnostics.
func (t *Producer) Name() string {
	return fmt.Sprintf("transition(%s)", t.info.Type)
}

// RenderFrame implements the algorithm in spec.md §4.3.
func (t *Producer) RenderFrame(ctx context.Context) (frame.Frame, bool, error) {
	if t.cutDone || t.currentFrame >= t.info.Duration {
		return frame.Frame{}, false, nil
	}

	// Progress for this call is computed from the pre-increment value
	// (spec.md §9 Open Question): call k (from 0) renders progress k/Duration,
	// and call Duration+1 reports exhaustion.
	progress := float64(t.currentFrame) / float64(t.info.Duration)
	t.currentFrame++

	if t.info.Type == Cut {
		// Cut always exhausts after exactly one emitted frame, independent
		// of the configured duration (spec.md §8 scenario S5).
		t.cutDone = true
		f, ok := t.renderChild(ctx, &t.source, "source")
		if !ok {
			return frame.Frame{}, false, nil
		}
		return f, true, nil
	}

	var destFrame, sourceFrame frame.Frame
	var destOK, sourceOK bool

	// Fork-join: render both children concurrently. A failure in one must
	// never cancel the other, so neither goroutine returns its error to
	// the group — each traps it into renderChild's detach-and-continue
	// logic and the group always joins with a nil error.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		destFrame, destOK = t.renderChild(gctx, &t.dest, "dest")
		return nil
	})
	g.Go(func() error {
		sourceFrame, sourceOK = t.renderChild(gctx, &t.source, "source")
		return nil
	})
	_ = g.Wait()

	if !destOK {
		// Both children failed, or dest alone failed: the tick returns
		// absent and the Stage repeats the last good frame.
		return frame.Frame{}, false, nil
	}

	volume := int32(progress * 256)
	destFrame, sourceFrame = t.compose(progress, volume, destFrame, sourceFrame, sourceOK)

	children := make([]frame.Frame, 0, 2)
	audio := destFrame.Audio
	if sourceOK {
		children = append(children, sourceFrame)
		audio = frame.MixAudio(sourceFrame.Audio, destFrame.Audio)
	}
	children = append(children, destFrame)

	composite := frame.Composite(ulid.Make(), children...)
	composite.Audio = audio
	return composite, true, nil
}

// compose applies the per-type transform table from spec.md §4.3.
// Composite order is source-then-dest (back-to-front); this only mutates
// the transform/alpha/audio attributes, the caller assembles the order.
func (t *Producer) compose(progress float64, volume int32, dest, source frame.Frame, sourceOK bool) (frame.Frame, frame.Frame) {
	switch t.info.Type {
	case Mix:
		dest.Alpha = progress
	case Slide:
		dest.Translate = slideTranslate(t.info.Direction, progress)
		dest.Alpha = 1
	case Push:
		dest.Translate = slideTranslate(t.info.Direction, progress)
		dest.Alpha = 1
		source.Translate = pushSourceTranslate(t.info.Direction, progress)
	case Wipe:
		dest.Translate = slideTranslate(t.info.Direction, progress)
		dest.TexCoords = wipeTexCoords(t.info.Direction, progress)
		dest.Alpha = 1
	case Cut:
		// handled separately in RenderFrame
	}

	dest.Audio = frame.ScaleAudio(dest.Audio, volume)
	if sourceOK {
		source.Audio = frame.ScaleAudio(source.Audio, 256-volume)
	}

	return dest, source
}

func slideTranslate(dir Direction, progress float64) frame.Translate {
	if dir == FromLeft {
		return frame.Translate{X: -1 + progress}
	}
	return frame.Translate{X: 1 - progress}
}

func pushSourceTranslate(dir Direction, progress float64) frame.Translate {
	if dir == FromLeft {
		return frame.Translate{X: progress}
	}
	return frame.Translate{X: -progress}
}

func wipeTexCoords(dir Direction, progress float64) frame.Rect {
	if dir == FromLeft {
		return frame.Rect{Left: -1 + progress, Top: 1, Right: progress, Bottom: 0}
	}
	return frame.Rect{Left: 1 - progress, Top: 1, Right: 2 - progress, Bottom: 0}
}

// renderChild renders the child producer referenced by *pp, applying the
// stage-style failure and one-retry auto-advance contract locally: a
// render failure detaches the child (sets *pp to nil); exhaustion with a
// non-nil following producer triggers a single auto-advance retry, mirrored
// from the original transition_producer's render_frame(producer&) recursion
// (see SPEC_FULL.md §12), bounded to one retry per tick per child.
func (t *Producer) renderChild(ctx context.Context, pp *producer.Producer, label string) (frame.Frame, bool) {
	p := *pp
	if p == nil {
		return frame.Frame{}, false
	}

	f, ok, err := p.RenderFrame(ctx)
	if err != nil {
		failure := producer.NewFailureError(p.Name(), err)
		t.logger.Warn("transition child producer failed, detaching",
			slog.String("child", label), slog.Any("error", failure))
		*pp = nil
		return frame.Frame{}, false
	}
	if ok {
		return f, true
	}

	following := p.FollowingProducer()
	if following == nil {
		*pp = nil
		return frame.Frame{}, false
	}

	if err := following.Initialize(ctx, t.factory); err != nil {
		t.logger.Warn("transition child auto-advance init failed",
			slog.String("child", label), slog.String("producer", following.Name()), slog.Any("error", err))
		*pp = nil
		return frame.Frame{}, false
	}
	following.SetLeadingProducer(p)
	*pp = following

	f, ok, err = following.RenderFrame(ctx)
	if err != nil {
		failure := producer.NewFailureError(following.Name(), err)
		t.logger.Warn("transition child producer failed after auto-advance",
			slog.String("child", label), slog.Any("error", failure))
		*pp = nil
		return frame.Frame{}, false
	}
	if !ok {
		*pp = nil
		return frame.Frame{}, false
	}
	return f, true
}

// Package stage implements the per-channel driver: it owns the current
// producer, accepts load/play/stop commands, ticks once per channel clock,
// and applies the failure/auto-advance policy before publishing the
// resulting Frame to a consumer set.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/onairstack/stagecast/internal/playout/consumer"
	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
	"github.com/onairstack/stagecast/internal/playout/transition"
)

// State is the Stage's current-producer state machine position.
type State int

const (
	Empty State = iota
	Playing
	Transitioning
)

// String renders the state name for logging and diagnostics responses.
func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Playing:
		return "playing"
	case Transitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Stage owns one channel's current producer and drives its tick loop. All
// exported methods are safe for concurrent use; the load/play/stop surface
// is serialized against tick via mu, matching the "load during an
// in-progress tick takes effect at the next tick boundary" contract.
type Stage struct {
	id     string
	format frame.FormatDesc

	factory producer.FrameFactory
	logger  *slog.Logger
	breaker *CircuitBreaker

	mu      sync.Mutex
	state   State
	current producer.Producer
	empty   *producer.EmptyProducer

	pending     producer.Producer
	pendingInfo *transition.Info

	lastFrame     frame.Frame
	haveLastFrame bool

	consumers []consumer.Consumer
}

// Config supplies everything a Stage needs at construction.
type Config struct {
	ID      string
	Format  frame.FormatDesc
	Factory producer.FrameFactory
	Breaker *CircuitBreaker
	Logger  *slog.Logger
}

// New constructs a Stage in the Empty state, driven by an EmptyProducer
// per spec.md §3's Stage invariant: every Stage starts with current set to
// the empty producer and it never exhausts or fails.
func New(cfg Config) (*Stage, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("stage requires a non-empty channel id")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}

	empty := producer.NewEmptyProducer(producer.EmptyConfig{
		Format:          cfg.Format,
		BackgroundColor: producer.DefaultEmptyConfig().BackgroundColor,
	})
	if err := empty.Initialize(context.Background(), cfg.Factory); err != nil {
		return nil, fmt.Errorf("initializing empty producer for channel %q: %w", cfg.ID, err)
	}

	return &Stage{
		id:      cfg.ID,
		format:  cfg.Format,
		factory: cfg.Factory,
		logger:  logger.With(slog.String("channel", cfg.ID)),
		breaker: breaker,
		state:   Empty,
		current: empty,
		empty:   empty,
	}, nil
}

// ID returns the channel ID this Stage drives.
func (s *Stage) ID() string { return s.id }

// State returns the Stage's current state-machine position.
func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddConsumer registers a consumer to receive this channel's published
// frames. It takes the same lock as Tick, so a consumer added while the
// tick loop runs starts receiving frames from the next tick.
func (s *Stage) AddConsumer(c consumer.Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

// Load stages newProducer (and an optional transition) for the next Play
// call. It is synchronous and produces no frames, per spec.md §4.4.
func (s *Stage) Load(p producer.Producer, info *transition.Info) error {
	if p == nil {
		return fmt.Errorf("%w: load requires a non-nil producer", producer.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
	s.pendingInfo = info
	return nil
}

// Play promotes the pending producer to current. If a transition was
// supplied to Load, it wraps the pending producer in a Transition Producer
// and hands it the outgoing producer via SetLeadingProducer; otherwise the
// previous current is simply replaced.
func (s *Stage) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return ErrNoPendingProducer
	}

	outgoing := s.current
	next := s.pending
	info := s.pendingInfo
	s.pending = nil
	s.pendingInfo = nil

	if err := next.Initialize(ctx, s.factory); err != nil {
		return fmt.Errorf("initializing new producer %q on channel %q: %w", next.Name(), s.id, err)
	}

	if info == nil || info.Type == transition.Cut {
		// spec.md §4.4's state machine treats cut-or-absent info as a direct
		// swap, bypassing the Transition Producer entirely.
		s.current = next
		s.state = Playing
		return nil
	}

	tr, err := transition.New(next, *info, s.format, s.logger)
	if err != nil {
		return fmt.Errorf("constructing transition on channel %q: %w", s.id, err)
	}
	if err := tr.Initialize(ctx, s.factory); err != nil {
		return fmt.Errorf("initializing transition on channel %q: %w", s.id, err)
	}
	tr.SetLeadingProducer(outgoing)

	s.current = tr
	s.state = Transitioning
	return nil
}

// Stop replaces current with the empty producer. The channel keeps
// emitting black frames until the next Load/Play.
func (s *Stage) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.empty
	s.state = Empty
}

// Tick produces exactly one frame for the channel clock. It never blocks
// longer than one render pass and never returns an error to the caller:
// all producer-level failures are absorbed into repeat-last or
// auto-advance, per spec.md §4.4's "tick() is total" policy.
func (s *Stage) Tick(ctx context.Context) frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.renderCurrentLocked(ctx)
	if !ok {
		if s.haveLastFrame {
			s.publishLocked(ctx, s.lastFrame)
			return s.lastFrame
		}
		black := s.blackFrameLocked()
		s.publishLocked(ctx, black)
		return black
	}

	s.breaker.RecordSuccess()
	s.lastFrame = f
	s.haveLastFrame = true
	s.publishLocked(ctx, f)
	return f
}

// renderCurrentLocked implements spec.md §4.4's tick algorithm steps 1-4.
// A failure always falls back to following-or-empty immediately (step 2).
// Exhaustion with a following producer auto-advances (step 3); exhaustion
// with no following leaves current untouched and reports false so Tick
// can repeat-last (step 4) — it is not treated as a failure. Each path is
// retried at most once per tick. Caller must hold mu.
func (s *Stage) renderCurrentLocked(ctx context.Context) (frame.Frame, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		f, ok, err := s.current.RenderFrame(ctx)
		if err != nil {
			failure := producer.NewFailureError(s.current.Name(), err)
			s.logger.Warn("producer render failed, detaching", slog.Any("error", failure))
			s.breaker.RecordFailure()
			s.current = s.fallbackFromLocked(ctx, s.current)
			continue
		}
		if ok {
			return f, true
		}

		// Exhausted: auto-advance to following, if any; otherwise report
		// absence and let the caller repeat-last without replacing current.
		following := s.current.FollowingProducer()
		if following == nil {
			return frame.Frame{}, false
		}

		if err := following.Initialize(ctx, s.factory); err != nil {
			s.logger.Warn("auto-advance initialize failed, falling back to empty",
				slog.String("producer", following.Name()), slog.Any("error", err))
			s.current = s.empty
			s.state = Empty
			continue
		}
		following.SetLeadingProducer(s.current)
		s.current = following
		if _, isTr := following.(*transition.Producer); !isTr {
			s.state = Playing
		}
	}

	return frame.Frame{}, false
}

// fallbackFromLocked returns the producer to drive after p fails: its
// following producer if one exists, otherwise the empty producer. As with
// the auto-advance path, the following producer is initialized and given
// its leading producer before being promoted to current (spec.md §5:
// set_leading_producer and initialize must be ordered strictly before a
// producer's first render_frame in its new role). Caller must hold mu.
func (s *Stage) fallbackFromLocked(ctx context.Context, p producer.Producer) producer.Producer {
	following := p.FollowingProducer()
	if following == nil {
		s.state = Empty
		return s.empty
	}

	if err := following.Initialize(ctx, s.factory); err != nil {
		s.logger.Warn("fallback initialize failed, falling back to empty",
			slog.String("producer", following.Name()), slog.Any("error", err))
		s.state = Empty
		return s.empty
	}
	following.SetLeadingProducer(p)
	if _, isTr := following.(*transition.Producer); !isTr {
		s.state = Playing
	}
	return following
}

// blackFrameLocked renders a single frame from the empty producer for use
// when there is no last-good frame to repeat (e.g. the very first tick).
func (s *Stage) blackFrameLocked() frame.Frame {
	f, _, err := s.empty.RenderFrame(context.Background())
	if err != nil {
		return frame.New(ulid.Make(), nil, make([]int16, s.format.SamplesPerFrame()))
	}
	return f
}

// publishLocked fans f out to every registered consumer, logging but not
// propagating individual consumer failures so one slow or broken sink
// never stalls the channel's tick cadence.
func (s *Stage) publishLocked(ctx context.Context, f frame.Frame) {
	for _, c := range s.consumers {
		if err := c.Publish(ctx, f); err != nil {
			s.logger.Warn("consumer publish failed",
				slog.String("consumer", c.Name()), slog.Any("error", err))
		}
	}
}

package stage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
	"github.com/onairstack/stagecast/internal/playout/transition"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFormat() frame.FormatDesc {
	return frame.FormatDesc{Width: 4, Height: 4, FrameRateNum: 25, FrameRateDen: 1, AudioSampleRate: 48000, AudioChannels: 2}
}

type fakeFactory struct{}

func (fakeFactory) CreateFrame(tag string, width, height int) (any, error) { return tag, nil }

// fakeProducer renders frameCount frames tagged with name, then exhausts
// (or fails, if failAfter >= 0).
type fakeProducer struct {
	name       string
	frameCount int
	failAfter  int
	following  producer.Producer
	rendered   int

	initialized  int
	leadingSetTo producer.Producer
}

func newFakeProducer(name string, frameCount int) *fakeProducer {
	return &fakeProducer{name: name, frameCount: frameCount, failAfter: -1}
}

func (p *fakeProducer) Initialize(context.Context, producer.FrameFactory) error {
	p.initialized++
	return nil
}

func (p *fakeProducer) RenderFrame(context.Context) (frame.Frame, bool, error) {
	if p.failAfter >= 0 && p.rendered >= p.failAfter {
		return frame.Frame{}, false, errors.New("simulated producer failure")
	}
	if p.rendered >= p.frameCount {
		return frame.Frame{}, false, nil
	}
	f := frame.New(ulid.Make(), p.name, nil)
	p.rendered++
	return f, true, nil
}

func (p *fakeProducer) FollowingProducer() producer.Producer { return p.following }
func (p *fakeProducer) SetLeadingProducer(leading producer.Producer) {
	p.leadingSetTo = leading
}
func (p *fakeProducer) Format() frame.FormatDesc { return frame.FormatDesc{} }
func (p *fakeProducer) Name() string             { return p.name }

// erroringInitProducer always fails Initialize, used to exercise the
// fall-back-to-empty path when a promoted following producer cannot be
// initialized.
type erroringInitProducer struct {
	*fakeProducer
}

func (p *erroringInitProducer) Initialize(context.Context, producer.FrameFactory) error {
	return errors.New("simulated initialize failure")
}

type recordingConsumer struct {
	published []frame.Frame
}

func (c *recordingConsumer) Publish(_ context.Context, f frame.Frame) error {
	c.published = append(c.published, f)
	return nil
}

func (c *recordingConsumer) Name() string { return "recording" }

func newTestStage(t *testing.T) *Stage {
	t.Helper()
	s, err := New(Config{
		ID:      "main",
		Format:  testFormat(),
		Factory: fakeFactory{},
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	return s
}

func TestStage_StartsEmptyAndEmitsBlackFrame(t *testing.T) {
	s := newTestStage(t)
	assert.Equal(t, Empty, s.State())

	f := s.Tick(context.Background())
	assert.Equal(t, 0, len(f.Children))
}

func TestStage_StopThenTickYieldsByteIdenticalBlackFrames(t *testing.T) {
	s := newTestStage(t)
	s.Stop()

	f1 := s.Tick(context.Background())
	f2 := s.Tick(context.Background())
	assert.Same(t, f1.Pixels, f2.Pixels)
}

func TestStage_LoadPlayCutSwapsDirectlyToPlaying(t *testing.T) {
	s := newTestStage(t)
	p := newFakeProducer("clip", 5)

	require.NoError(t, s.Load(p, nil))
	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, Playing, s.State())

	f := s.Tick(context.Background())
	assert.Equal(t, "clip", f.Pixels)
}

func TestStage_LoadPlayWithTransitionEntersTransitioning(t *testing.T) {
	s := newTestStage(t)
	outgoing := newFakeProducer("a", 10)
	require.NoError(t, s.Load(outgoing, nil))
	require.NoError(t, s.Play(context.Background()))

	incoming := newFakeProducer("b", 10)
	require.NoError(t, s.Load(incoming, &transition.Info{Type: transition.Mix, Duration: 5}))
	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, Transitioning, s.State())
}

func TestStage_PlayWithoutLoadReturnsError(t *testing.T) {
	s := newTestStage(t)
	err := s.Play(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingProducer)
}

func TestStage_EmitsExactlyOneFramePerTickRegardlessOfErrors(t *testing.T) {
	// spec.md testable property 1: frame count == tick count, even with
	// producer failures.
	s := newTestStage(t)
	p := newFakeProducer("clip", 3)
	p.failAfter = 1
	require.NoError(t, s.Load(p, nil))
	require.NoError(t, s.Play(context.Background()))

	for i := 0; i < 5; i++ {
		f := s.Tick(context.Background())
		assert.NotNil(t, f)
	}
}

func TestStage_AutoAdvanceChain(t *testing.T) {
	// spec.md S4: clip A (5 frames) -> clip B (3 frames) -> empty. Tick 10
	// times: A0..A4, B0..B2, then repeat-last B2 for ticks 8 and 9.
	b := newFakeProducer("b", 3)
	a := newFakeProducer("a", 5)
	a.following = b

	s := newTestStage(t)
	require.NoError(t, s.Load(a, nil))
	require.NoError(t, s.Play(context.Background()))

	var got []any
	for i := 0; i < 10; i++ {
		f := s.Tick(context.Background())
		got = append(got, f.Pixels)
	}

	want := []any{"a", "a", "a", "a", "a", "b", "b", "b", "b", "b"}
	assert.Equal(t, want, got)
}

func TestStage_FailedProducerDetachedWithinOneTick(t *testing.T) {
	// spec.md testable property 6: a producer whose render fails is removed
	// from the Stage within one tick; that same tick still returns a frame.
	p := newFakeProducer("clip", 10)
	p.failAfter = 2

	s := newTestStage(t)
	require.NoError(t, s.Load(p, nil))
	require.NoError(t, s.Play(context.Background()))

	s.Tick(context.Background())
	s.Tick(context.Background())
	f := s.Tick(context.Background())
	assert.NotNil(t, f)
	assert.Equal(t, Empty, s.State())
}

func TestStage_FailedProducerPromotesFollowingAfterInitialize(t *testing.T) {
	// spec.md §5: set_leading_producer and initialize must be ordered
	// strictly before a producer's first render_frame in its new role,
	// even when it is promoted via the failure path rather than exhaustion.
	failing := newFakeProducer("bad", 1)
	failing.failAfter = 0
	following := newFakeProducer("good", 5)
	failing.following = following

	s := newTestStage(t)
	require.NoError(t, s.Load(failing, nil))
	require.NoError(t, s.Play(context.Background()))

	s.Tick(context.Background())

	assert.Equal(t, 1, following.initialized)
	assert.Same(t, failing, following.leadingSetTo)
	assert.Equal(t, Playing, s.State())
}

func TestStage_FailedProducerFallsBackToEmptyWhenFollowingInitializeFails(t *testing.T) {
	failing := newFakeProducer("bad", 1)
	failing.failAfter = 0
	following := &erroringInitProducer{fakeProducer: newFakeProducer("broken-follow", 5)}
	failing.following = following

	s := newTestStage(t)
	require.NoError(t, s.Load(failing, nil))
	require.NoError(t, s.Play(context.Background()))

	s.Tick(context.Background())

	assert.Equal(t, Empty, s.State())
}

func TestStage_ConsumerReceivesEveryPublishedFrame(t *testing.T) {
	s := newTestStage(t)
	c := &recordingConsumer{}
	s.AddConsumer(c)

	p := newFakeProducer("clip", 3)
	require.NoError(t, s.Load(p, nil))
	require.NoError(t, s.Play(context.Background()))

	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}

	assert.Len(t, c.published, 3)
}

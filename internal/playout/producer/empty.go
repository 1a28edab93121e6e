package producer

import (
	"context"
	"image"
	"image/color"

	"github.com/oklog/ulid/v2"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

// EmptyConfig controls the still slate an EmptyProducer renders: same
// visual-slate shape as a fallback-card generator (resolution and
// background color; no message text), but rendered as a single Go image rather than spawned
// through an external encoder, since concrete codec/capture bindings are
// out of scope here.
type EmptyConfig struct {
	Format          frame.FormatDesc
	BackgroundColor color.NRGBA
}

// DefaultEmptyConfig returns a 1080p25 black slate, matching the Stage's
// own default format when none is configured.
func DefaultEmptyConfig() EmptyConfig {
	return EmptyConfig{
		Format: frame.FormatDesc{
			Width: 1920, Height: 1080,
			FrameRateNum: 25, FrameRateDen: 1,
			AudioSampleRate: 48000, AudioChannels: 2,
		},
		BackgroundColor: color.NRGBA{A: 255},
	}
}

// EmptyProducer is the Stage's always-available fallback: it never fails,
// never exhausts, and always renders a solid-color frame of the channel
// format with silent audio. Every Stage is constructed with current set to
// an EmptyProducer (spec.md §3 Stage invariant), and a producer whose render
// fails with no FollowingProducer is replaced by one. Exhaustion with no
// FollowingProducer does not switch to it: the Stage repeats the last frame.
type EmptyProducer struct {
	cfg  EmptyConfig
	img  *image.NRGBA
}

// NewEmptyProducer constructs an EmptyProducer for the given configuration.
func NewEmptyProducer(cfg EmptyConfig) *EmptyProducer {
	return &EmptyProducer{cfg: cfg}
}

// Initialize renders the solid-color canvas once; RenderFrame reuses it.
func (p *EmptyProducer) Initialize(_ context.Context, _ FrameFactory) error {
	img := image.NewNRGBA(image.Rect(0, 0, p.cfg.Format.Width, p.cfg.Format.Height))
	fillRect(img, p.cfg.BackgroundColor)
	p.img = img
	return nil
}

// RenderFrame always succeeds with the same still frame and silent audio,
// once Initialize has rendered the canvas.
func (p *EmptyProducer) RenderFrame(_ context.Context) (frame.Frame, bool, error) {
	if p.img == nil {
		return frame.Frame{}, false, ErrNotInitialized
	}
	samples := make([]int16, p.cfg.Format.SamplesPerFrame())
	f := frame.New(ulid.Make(), p.img, samples)
	return f, true, nil
}

// FollowingProducer is always nil: the empty producer is the terminus of
// every auto-advance chain.
func (p *EmptyProducer) FollowingProducer() Producer { return nil }

// SetLeadingProducer is a no-op; the empty producer never needs to keep a
// retiring producer alive.
func (p *EmptyProducer) SetLeadingProducer(_ Producer) {}

// Format returns the configured channel format.
func (p *EmptyProducer) Format() frame.FormatDesc { return p.cfg.Format }

// Name identifies this producer for logging and diagnostics.
func (p *EmptyProducer) Name() string { return "empty" }

func fillRect(img *image.NRGBA, c color.NRGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

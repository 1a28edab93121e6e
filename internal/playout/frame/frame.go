// Package frame defines the immutable video+audio unit produced once per
// channel tick, and the geometric/alpha attributes the compositor applies
// to it.
package frame

import (
	"github.com/oklog/ulid/v2"
)

// Rect is a texcoords rectangle in the unit square, {left, top, right,
// bottom}. The default texcoords value is the unit rectangle {0, 0, 1, 1}.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// UnitRect returns the default (identity) texcoords rectangle.
func UnitRect() Rect {
	return Rect{Left: 0, Top: 0, Right: 1, Bottom: 1}
}

// Translate is a 2D offset in [-1, 1]^2, applied by the compositor when
// placing a frame on the destination canvas. The default is (0, 0).
type Translate struct {
	X, Y float64
}

// FormatDesc describes a channel's immutable output geometry and audio
// layout. It never changes after a Stage is constructed.
type FormatDesc struct {
	Width           int
	Height          int
	FrameRateNum    int
	FrameRateDen    int
	AudioSampleRate int
	AudioChannels   int
}

// SamplesPerFrame returns the number of interleaved audio sample frames a
// Frame of this format must carry, per spec.md §3: samples per frame =
// audio_rate / frame_rate * channels.
func (f FormatDesc) SamplesPerFrame() int {
	if f.FrameRateNum == 0 {
		return 0
	}
	return f.AudioSampleRate * f.FrameRateDen * f.AudioChannels / f.FrameRateNum
}

// Frame is a single-assignment video+audio unit. Compositing always
// produces a new Frame rather than mutating an input one.
type Frame struct {
	// ID is a per-tick trace identifier, used to correlate fork-joined
	// transition renders across log lines.
	ID ulid.ULID

	// Pixels is an opaque handle to the image payload (a GPU texture or
	// equivalent). The core never interprets it; concrete producers and
	// the compositor implementation give it meaning.
	Pixels any

	// Audio is the ordered, channel-interleaved 16-bit PCM sample sequence.
	Audio []int16

	Alpha     float64
	Translate Translate
	TexCoords Rect

	// Children holds an ordered back-to-front list of child Frames for a
	// composite Frame. The compositor flattens it into a single Frame.
	Children []Frame
}

// New returns a Frame with identity attributes (alpha=1, translate=(0,0),
// texcoords=unit rectangle) and the given trace ID, pixels and audio.
func New(id ulid.ULID, pixels any, audio []int16) Frame {
	return Frame{
		ID:        id,
		Pixels:    pixels,
		Audio:     audio,
		Alpha:     1,
		Translate: Translate{},
		TexCoords: UnitRect(),
	}
}

// IsIdentity reports whether the Frame carries the default compositing
// attributes (alpha=1, translate=(0,0), texcoords=unit rectangle).
func (f Frame) IsIdentity() bool {
	return f.Alpha == 1 && f.Translate == (Translate{}) && f.TexCoords == UnitRect()
}

// Composite returns a new composite Frame aggregating children back-to-front.
func Composite(id ulid.ULID, children ...Frame) Frame {
	return Frame{ID: id, Alpha: 1, TexCoords: UnitRect(), Children: children}
}

// ScaleVolume applies the transition audio-scaling rule from spec.md §4.1:
// given integer volume v in [0, 256], each sample s is replaced by
// (s * v) >> 8. This never overflows: s is in [-2^15, 2^15) and v <= 256,
// so the product fits comfortably in 24 bits.
func ScaleVolume(sample int16, volume int32) int16 {
	return int16((int32(sample) * volume) >> 8)
}

// ScaleAudio returns a new sample slice with ScaleVolume applied to every
// sample; the input slice is never mutated (frames are single-assignment).
func ScaleAudio(samples []int16, volume int32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = ScaleVolume(s, volume)
	}
	return out
}

// MixAudio adds two equal-length, pre-scaled sample slices sample-by-sample,
// clamping to the int16 range. Used to combine dest and source audio during
// mix/slide/push/wipe transitions.
func MixAudio(a, b []int16) []int16 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]int16, n)
	const (
		maxInt16 = 1<<15 - 1
		minInt16 = -1 << 15
	)
	for i := 0; i < n; i++ {
		sum := int32(a[i]) + int32(b[i])
		switch {
		case sum > maxInt16:
			sum = maxInt16
		case sum < minInt16:
			sum = minInt16
		}
		out[i] = int16(sum)
	}
	return out
}

// Package mpegts publishes each tick's composited Frame as an MPEG-TS
// elementary stream using github.com/asticode/go-astits, adapted from a
// fixed video/audio PID track layout. Real video/audio encoding is out of
// scope (spec.md's core treats Frame.Pixels as opaque); this consumer
// packages the composited canvas and PCM audio as raw access-unit
// payloads on the fixed VideoPID/AudioPID, which is sufficient to exercise the
// container format without a concrete codec binding.
package mpegts

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/asticode/go-astits"

	"github.com/onairstack/stagecast/internal/playout/compositor"
	"github.com/onairstack/stagecast/internal/playout/frame"
)

// PID layout for the video and audio elementary streams.
const (
	VideoPID uint16 = 0x0100
	AudioPID uint16 = 0x0101
)

// Config configures the Consumer.
type Config struct {
	Writer     io.Writer
	Compositor compositor.Compositor
	Format     frame.FormatDesc
	Logger     *slog.Logger
}

// Consumer mux elementary Frame output into an MPEG-TS stream.
type Consumer struct {
	compositor   compositor.Compositor
	logger       *slog.Logger
	ptsIncrement int64

	mu        sync.Mutex
	muxer     *astits.Muxer
	videoPID  uint16
	audioPID  uint16
	pts       int64
	tablesSet bool
}

// mpegtsClockHz is the fixed 90kHz clock MPEG-TS PTS/DTS values are
// expressed in, independent of the channel's own frame rate.
const mpegtsClockHz = 90000

// ptsIncrement returns how far the 90kHz PTS clock advances for one frame
// interval of f. Falls back to a 25fps interval if f is zero-valued.
func ptsIncrement(f frame.FormatDesc) int64 {
	if f.FrameRateNum == 0 {
		return mpegtsClockHz / 25
	}
	return int64(mpegtsClockHz) * int64(f.FrameRateDen) / int64(f.FrameRateNum)
}

// NewConsumer constructs a Consumer writing to cfg.Writer.
func NewConsumer(ctx context.Context, cfg Config) (*Consumer, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("mpegts consumer requires a non-nil writer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := astits.NewMuxer(ctx, cfg.Writer)

	if err := m.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: VideoPID,
		StreamType:    astits.StreamTypeH264Video,
	}); err != nil {
		return nil, fmt.Errorf("adding video elementary stream: %w", err)
	}
	if err := m.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: AudioPID,
		StreamType:    astits.StreamTypeAACAudio,
	}); err != nil {
		return nil, fmt.Errorf("adding audio elementary stream: %w", err)
	}
	m.SetPCRPID(VideoPID)

	return &Consumer{
		compositor:   cfg.Compositor,
		logger:       logger.With(slog.String("component", "mpegts_consumer")),
		ptsIncrement: ptsIncrement(cfg.Format),
		muxer:        m,
		videoPID:     VideoPID,
		audioPID:     AudioPID,
	}, nil
}

// Name identifies the consumer for logging and diagnostics.
func (c *Consumer) Name() string { return "mpegts" }

// Publish flattens f via the compositor, then writes one video access unit
// and one audio access unit to the stream, advancing the 90kHz PTS clock
// by one tick's worth of samples.
func (c *Consumer) Publish(ctx context.Context, f frame.Frame) error {
	img, err := c.compositor.Composite(ctx, f)
	if err != nil {
		return fmt.Errorf("compositing frame for mpegts: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tablesSet {
		if _, err := c.muxer.WriteTables(); err != nil {
			return fmt.Errorf("writing PAT/PMT: %w", err)
		}
		c.tablesSet = true
	}

	videoPayload := encodeVideoPlaceholder(img)
	if _, err := c.muxer.WriteData(&astits.MuxerData{
		PID: c.videoPID,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: &astits.PESOptionalHeader{
					MarkerBits:               2,
					PTSDTSIndicator:          astits.PTSDTSIndicatorOnlyPTS,
					PTS:                      &astits.ClockReference{Base: c.pts},
				},
			},
			Data: videoPayload,
		},
	}); err != nil {
		return fmt.Errorf("writing video access unit: %w", err)
	}

	audioPayload := encodeAudioPlaceholder(f.Audio)
	if _, err := c.muxer.WriteData(&astits.MuxerData{
		PID: c.audioPID,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: &astits.PESOptionalHeader{
					MarkerBits:      2,
					PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
					PTS:             &astits.ClockReference{Base: c.pts},
				},
			},
			Data: audioPayload,
		},
	}); err != nil {
		return fmt.Errorf("writing audio access unit: %w", err)
	}

	c.pts += c.ptsIncrement
	return nil
}

// encodeVideoPlaceholder serializes the composited canvas dimensions and
// raw pixel bytes. A production consumer would encode this to H.264 here;
// that concrete codec binding is outside this core's scope.
func encodeVideoPlaceholder(img *image.NRGBA) []byte {
	b := img.Bounds()
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(header[4:8], uint32(b.Dy()))
	return append(header, img.Pix...)
}

// encodeAudioPlaceholder serializes PCM samples as big-endian bytes. A
// production consumer would encode this to AAC here.
func encodeAudioPlaceholder(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

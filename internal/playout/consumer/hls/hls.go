// Package hls publishes each tick's composited Frame as a rolling HLS
// playlist, adapted from a thin HTTP-delegating wrapper around
// gohlslib.Muxer. As with the mpegts consumer, concrete video/audio
// encoding is out of scope; this consumer drives gohlslib's MPEG-TS variant
// with the composited canvas and PCM audio packaged as raw access units.
package hls

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gohlslib "github.com/bluenviron/gohlslib/v2"
	"github.com/bluenviron/gohlslib/v2/pkg/codecs"

	"github.com/onairstack/stagecast/internal/playout/compositor"
	"github.com/onairstack/stagecast/internal/playout/frame"
)

// Config configures the Consumer.
type Config struct {
	Compositor         compositor.Compositor
	Format             frame.FormatDesc
	SegmentCount       int
	SegmentMinDuration time.Duration
	Logger             *slog.Logger
}

// mpegtsClockHz is the fixed 90kHz clock gohlslib's MPEG-TS variant expects
// PTS values to be expressed in, independent of the channel's frame rate.
const mpegtsClockHz = 90000

// ptsIncrement returns how far the 90kHz PTS clock advances for one frame
// interval of f. Falls back to a 25fps interval if f is zero-valued.
func ptsIncrement(f frame.FormatDesc) int64 {
	if f.FrameRateNum == 0 {
		return mpegtsClockHz / 25
	}
	return int64(mpegtsClockHz) * int64(f.FrameRateDen) / int64(f.FrameRateNum)
}

// DefaultConfig mirrors common HLS live-muxer defaults.
func DefaultConfig() Config {
	return Config{
		SegmentCount:       7,
		SegmentMinDuration: 1 * time.Second,
	}
}

// Consumer wraps a gohlslib.Muxer, feeding it one video and one audio
// access unit per published Frame.
type Consumer struct {
	compositor compositor.Compositor
	logger     *slog.Logger

	mu         sync.RWMutex
	muxer      *gohlslib.Muxer
	videoTrack *gohlslib.Track
	audioTrack *gohlslib.Track

	started      atomic.Bool
	pts          int64
	ptsIncrement int64
}

// NewConsumer constructs and starts a Consumer, ready to accept Publish
// calls and serve HTTP requests via Handle.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Compositor == nil {
		return nil, fmt.Errorf("hls consumer requires a non-nil compositor")
	}
	if cfg.SegmentCount <= 0 {
		cfg.SegmentCount = 7
	}
	if cfg.SegmentMinDuration <= 0 {
		cfg.SegmentMinDuration = 1 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	videoTrack := &gohlslib.Track{Codec: &codecs.H264{}}
	audioTrack := &gohlslib.Track{Codec: &codecs.MPEG4Audio{}}

	muxer := &gohlslib.Muxer{
		Variant:            gohlslib.MuxerVariantMPEGTS,
		SegmentCount:       cfg.SegmentCount,
		SegmentMinDuration: cfg.SegmentMinDuration,
		Tracks:             []*gohlslib.Track{videoTrack, audioTrack},
	}
	if err := muxer.Start(); err != nil {
		return nil, fmt.Errorf("starting gohlslib muxer: %w", err)
	}

	c := &Consumer{
		compositor:   cfg.Compositor,
		logger:       logger.With(slog.String("component", "hls_consumer")),
		ptsIncrement: ptsIncrement(cfg.Format),
		muxer:        muxer,
		videoTrack:   videoTrack,
		audioTrack:   audioTrack,
	}
	c.started.Store(true)
	return c, nil
}

// Name identifies the consumer for logging and diagnostics.
func (c *Consumer) Name() string { return "hls" }

// Publish composites f and writes one access unit to each track, advancing
// the 90kHz PTS clock by one tick.
func (c *Consumer) Publish(ctx context.Context, f frame.Frame) error {
	img, err := c.compositor.Composite(ctx, f)
	if err != nil {
		return fmt.Errorf("compositing frame for hls: %w", err)
	}

	c.mu.RLock()
	muxer := c.muxer
	c.mu.RUnlock()
	if muxer == nil {
		return fmt.Errorf("hls consumer closed")
	}

	now := time.Now()
	if err := muxer.WriteH264(c.videoTrack, now, c.pts, [][]byte{encodeVideoPlaceholder(img)}); err != nil {
		return fmt.Errorf("writing video access unit: %w", err)
	}
	if err := muxer.WriteMPEG4Audio(c.audioTrack, now, c.pts, [][]byte{encodeAudioPlaceholder(f.Audio)}); err != nil {
		return fmt.Errorf("writing audio access unit: %w", err)
	}

	c.pts += c.ptsIncrement
	return nil
}

// Handle serves HLS playlist and segment requests, delegating to
// gohlslib.Muxer.Handle.
func (c *Consumer) Handle(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	muxer := c.muxer
	c.mu.RUnlock()
	if muxer == nil {
		http.Error(w, "hls consumer not available", http.StatusServiceUnavailable)
		return
	}
	muxer.Handle(w, r)
}

// Close releases the underlying muxer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	muxer := c.muxer
	c.muxer = nil
	c.mu.Unlock()
	if muxer != nil {
		muxer.Close()
	}
	return nil
}

func encodeVideoPlaceholder(img *image.NRGBA) []byte {
	b := img.Bounds()
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(header[4:8], uint32(b.Dy()))
	return append(header, img.Pix...)
}

func encodeAudioPlaceholder(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

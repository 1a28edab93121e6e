package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	stagecastapi "github.com/onairstack/stagecast/internal/api"
	"github.com/onairstack/stagecast/internal/config"
	"github.com/onairstack/stagecast/internal/observability"
	"github.com/onairstack/stagecast/internal/playout/compositor"
	"github.com/onairstack/stagecast/internal/playout/consumer/hls"
	"github.com/onairstack/stagecast/internal/playout/consumer/mpegts"
	"github.com/onairstack/stagecast/internal/playout/consumer/null"
	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/mixer"
	"github.com/onairstack/stagecast/internal/playout/registry"
	"github.com/onairstack/stagecast/internal/playout/stage"
	"github.com/onairstack/stagecast/internal/service/logs"
	"github.com/onairstack/stagecast/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stagecast playout core",
	Long: `Start the stagecast playout core.

Drives one Stage per configured channel, each ticking at its own frame
rate, and exposes a diagnostics API (health, channel state, recent logs)
plus per-channel HLS playback endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Diagnostics API host to bind to")
	serveCmd.Flags().Int("port", 8080, "Diagnostics API port to listen on")
	serveCmd.Flags().Bool("record", false, "Record each channel to a continuous MPEG-TS file")
	serveCmd.Flags().String("record-dir", "./recordings", "Directory MPEG-TS recordings are written to, one file per channel")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("recording.enabled", serveCmd.Flags().Lookup("record"))
	mustBindPFlag("recording.dir", serveCmd.Flags().Lookup("record-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logsService := logs.New()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags given explicitly on the command line override file/env values.
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled, _ = flags.GetBool("record")
	}
	if flags.Changed("record-dir") {
		cfg.Recording.Dir, _ = flags.GetString("record-dir")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}

	wrappedHandler := logsService.WrapHandler(observability.NewLogger(cfg.Logging).Handler())
	logger := slog.New(wrappedHandler)
	observability.SetDefault(logger)
	logger = observability.WithComponent(logger, "stagecast")

	allocator := mixer.NewAllocator(mixer.AllocatorConfig{
		MaxConcurrent:  cfg.Mixer.MaxAllocations,
		AcquireTimeout: cfg.Mixer.AcquireTimeout,
	})
	defer allocator.Close()
	factory := mixer.NewAllocatingFactory(mixer.NewSoftwareFactory(), allocator)

	manager := stage.NewManager(factory, stage.CircuitBreakerConfig{
		FailureThreshold: cfg.Channels[0].CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.Channels[0].CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.Channels[0].CircuitBreaker.Timeout,
	}, logger)

	apiServer := stagecastapi.NewServer(cfg.Server, logger, version.Version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
			return fmt.Errorf("creating recording directory %q: %w", cfg.Recording.Dir, err)
		}
	}
	var recordingFiles []*os.File
	defer func() {
		for _, f := range recordingFiles {
			f.Close()
		}
	}()

	tickIntervals := make(map[string]time.Duration, len(cfg.Channels))
	for _, chCfg := range cfg.Channels {
		s, err := manager.AddChannel(chCfg)
		if err != nil {
			return fmt.Errorf("registering channel %q: %w", chCfg.ID, err)
		}
		tickIntervals[chCfg.ID] = chCfg.TickInterval()

		// The producer factory registry is built and seeded with the one
		// producer type the core itself knows about; concrete producer
		// types beyond "empty" are registered by the surrounding
		// control-protocol layer, which is out of scope here.
		producers := registry.New()
		producers.RegisterEmpty(frameFormat(chCfg))

		hlsConsumer, err := hls.NewConsumer(hls.Config{
			Compositor: newChannelCompositor(chCfg),
			Format:     frameFormat(chCfg),
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("starting hls consumer for channel %q: %w", chCfg.ID, err)
		}
		s.AddConsumer(hlsConsumer)
		s.AddConsumer(null.New())

		if cfg.Recording.Enabled {
			recordingPath := filepath.Join(cfg.Recording.Dir, chCfg.ID+".ts")
			recordingFile, err := os.Create(recordingPath)
			if err != nil {
				return fmt.Errorf("creating recording file for channel %q: %w", chCfg.ID, err)
			}
			recordingFiles = append(recordingFiles, recordingFile)

			mpegtsConsumer, err := mpegts.NewConsumer(ctx, mpegts.Config{
				Writer:     recordingFile,
				Compositor: newChannelCompositor(chCfg),
				Format:     frameFormat(chCfg),
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("starting mpegts recorder for channel %q: %w", chCfg.ID, err)
			}
			s.AddConsumer(mpegtsConsumer)
		}

		apiServer.Router().Get("/channels/"+chCfg.ID+"/hls/*", hlsConsumer.Handle)
	}

	healthHandler := stagecastapi.NewHealthHandler(version.Version, manager)
	healthHandler.Register(apiServer.API())

	channelHandler := stagecastapi.NewChannelHandler(manager)
	channelHandler.Register(apiServer.API())

	logsHandler := stagecastapi.NewLogsHandler(logsService)
	logsHandler.Register(apiServer.API())

	manager.Run(tickIntervals)
	defer manager.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	logger.Info("stagecast running",
		slog.String("address", cfg.Server.Address()),
		slog.Int("channels", len(cfg.Channels)),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("diagnostics API server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return apiServer.Shutdown(shutdownCtx)
}

// frameFormat converts a channel's configuration into the FormatDesc every
// producer and consumer driving that channel must agree on.
func frameFormat(cfg config.ChannelConfig) frame.FormatDesc {
	return frame.FormatDesc{
		Width:           cfg.Width,
		Height:          cfg.Height,
		FrameRateNum:    cfg.FrameRateNum,
		FrameRateDen:    cfg.FrameRateDen,
		AudioSampleRate: cfg.AudioSampleRate,
		AudioChannels:   cfg.AudioChannels,
	}
}

// newChannelCompositor builds the software reference compositor for a
// channel's configured output geometry.
func newChannelCompositor(cfg config.ChannelConfig) compositor.Compositor {
	return compositor.NewSoftwareCompositor(cfg.Width, cfg.Height)
}

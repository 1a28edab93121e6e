package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onairstack/stagecast/internal/config"
	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
)

// Manager owns one Stage per configured channel and drives each on its own
// goroutine, ticking at the channel's configured frame rate. Adapted from
// a session-manager pattern: a registry keyed by ID, a shared
// context/cancel pair for coordinated shutdown, and a WaitGroup joined on
// Close. Unlike a session-per-request model, every Stage here is
// long-lived for the process lifetime of its channel.
type Manager struct {
	factory producer.FrameFactory
	breaker *CircuitBreakerRegistry
	logger  *slog.Logger

	mu     sync.RWMutex
	stages map[string]*Stage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs a Manager. factory is the shared FrameFactory
// passed to every Stage; breakerCfg tunes the per-channel circuit breakers
// created on demand.
func NewManager(factory producer.FrameFactory, breakerCfg CircuitBreakerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory: factory,
		breaker: NewCircuitBreakerRegistry(breakerCfg),
		logger:  logger.With(slog.String("component", "stage_manager")),
		stages:  make(map[string]*Stage),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddChannel constructs and registers a Stage for cfg. It must be called
// before Run; channels cannot be added once ticking has started.
func (m *Manager) AddChannel(cfg config.ChannelConfig) (*Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stages[cfg.ID]; exists {
		return nil, fmt.Errorf("channel %q: %w", cfg.ID, ErrChannelExists)
	}

	s, err := New(Config{
		ID: cfg.ID,
		Format: frameFormat(cfg),
		Factory: m.factory,
		Breaker: m.breaker.Get(cfg.ID),
		Logger:  m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stage for channel %q: %w", cfg.ID, err)
	}

	m.stages[cfg.ID] = s
	return s, nil
}

// Get returns the Stage for channelID, or ErrChannelNotFound.
func (m *Manager) Get(channelID string) (*Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stages[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", channelID, ErrChannelNotFound)
	}
	return s, nil
}

// Channels returns the IDs of every registered channel.
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.stages))
	for id := range m.stages {
		ids = append(ids, id)
	}
	return ids
}

// Run starts one tick-driver goroutine per registered channel, each firing
// at its configured frame interval (spec.md §4.4 "Scheduling model": one
// dedicated driver per channel, channels independent and share no mutable
// state). Run returns immediately; shutdown happens via Close.
func (m *Manager) Run(tickIntervals map[string]time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, s := range m.stages {
		interval := tickIntervals[id]
		if interval <= 0 {
			interval = 40 * time.Millisecond
		}
		m.wg.Add(1)
		go m.driveLoop(s, interval)
	}
}

func (m *Manager) driveLoop(s *Stage, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(m.ctx)
		}
	}
}

// Close stops every driver goroutine and waits for them to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// frameFormat converts a channel's configuration into the FormatDesc its
// Stage and every producer it drives must agree on.
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

// Stats reports every channel's current state and circuit breaker health,
// for the diagnostics API.
type Stats struct {
	Channels        map[string]string          `json:"channels"`
	CircuitBreakers map[string]CircuitStats `json:"circuit_breakers"`
}

// Stats returns a snapshot across all registered channels.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make(map[string]string, len(m.stages))
	for id, s := range m.stages {
		channels[id] = s.State().String()
	}

	return Stats{
		Channels:        channels,
		CircuitBreakers: m.breaker.AllStats(),
	}
}

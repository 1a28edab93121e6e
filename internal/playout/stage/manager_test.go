package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairstack/stagecast/internal/config"
	"github.com/onairstack/stagecast/internal/playout/frame"
)

type stubFactory struct{}

func (stubFactory) CreateFrame(_ string, _, _ int) (any, error) { return nil, nil }

func testChannelConfig(id string) config.ChannelConfig {
	return config.ChannelConfig{
		ID:              id,
		FrameRateNum:    25,
		FrameRateDen:    1,
		Width:           1920,
		Height:          1080,
		AudioSampleRate: 48000,
		AudioChannels:   2,
	}
}

func TestManager_AddChannelRegistersStage(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)

	s, err := m.AddChannel(testChannelConfig("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", s.ID())
	assert.Equal(t, Empty, s.State())
	assert.Equal(t, []string{"1"}, m.Channels())
}

func TestManager_AddChannelRejectsDuplicateID(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)
	_, err := m.AddChannel(testChannelConfig("1"))
	require.NoError(t, err)

	_, err = m.AddChannel(testChannelConfig("1"))
	assert.ErrorIs(t, err, ErrChannelExists)
}

func TestManager_GetUnknownChannel(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)
	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestManager_RunDrivesEveryChannel(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)
	s, err := m.AddChannel(testChannelConfig("1"))
	require.NoError(t, err)

	m.Run(map[string]time.Duration{"1": 5 * time.Millisecond})
	defer m.Close()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.haveLastFrame
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestManager_StatsReportsChannelsAndBreakers(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)
	_, err := m.AddChannel(testChannelConfig("1"))
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, "empty", stats.Channels["1"])
}

func TestManager_CloseStopsDriverGoroutines(t *testing.T) {
	m := NewManager(stubFactory{}, DefaultCircuitBreakerConfig(), nil)
	_, err := m.AddChannel(testChannelConfig("1"))
	require.NoError(t, err)

	m.Run(map[string]time.Duration{"1": 5 * time.Millisecond})
	m.Close()
}

func TestFrameFormat_ConvertsChannelConfig(t *testing.T) {
	cfg := testChannelConfig("1")
	got := frameFormat(cfg)
	assert.Equal(t, frame.FormatDesc{
		Width:           1920,
		Height:          1080,
		FrameRateNum:    25,
		FrameRateDen:    1,
		AudioSampleRate: 48000,
		AudioChannels:   2,
	}, got)
}

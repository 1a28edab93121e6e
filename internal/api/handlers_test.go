package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairstack/stagecast/internal/config"
	"github.com/onairstack/stagecast/internal/playout/stage"
	"github.com/onairstack/stagecast/internal/service/logs"
)

type stubFactory struct{}

func (stubFactory) CreateFrame(_ string, _, _ int) (any, error) { return nil, nil }

func testManager(t *testing.T, channelIDs ...string) *stage.Manager {
	t.Helper()
	m := stage.NewManager(stubFactory{}, stage.DefaultCircuitBreakerConfig(), nil)
	for _, id := range channelIDs {
		_, err := m.AddChannel(config.ChannelConfig{
			ID: id, FrameRateNum: 25, FrameRateDen: 1,
			Width: 1920, Height: 1080, AudioSampleRate: 48000, AudioChannels: 2,
		})
		require.NoError(t, err)
	}
	return m
}

func TestHealthHandler_GetHealth(t *testing.T) {
	m := testManager(t, "1")
	h := NewHealthHandler("1.2.3", m)

	out, err := h.GetHealth(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Equal(t, "empty", out.Body.Channels["1"])
}

func TestChannelHandler_ListChannels(t *testing.T) {
	m := testManager(t, "1", "2")
	h := NewChannelHandler(m)

	out, err := h.ListChannels(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Len(t, out.Body.Channels, 2)
}

func TestChannelHandler_GetChannel(t *testing.T) {
	m := testManager(t, "1")
	h := NewChannelHandler(m)

	out, err := h.GetChannel(context.Background(), &GetChannelInput{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", out.Body.ID)
	assert.Equal(t, "empty", out.Body.State)
}

func TestChannelHandler_GetChannelNotFound(t *testing.T) {
	m := testManager(t)
	h := NewChannelHandler(m)

	_, err := h.GetChannel(context.Background(), &GetChannelInput{ID: "missing"})
	assert.Error(t, err)
}

func TestLogsHandler_ListLogs(t *testing.T) {
	svc := logs.New()
	h := NewLogsHandler(svc)

	out, err := h.ListLogs(context.Background(), &ListLogsInput{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, out.Body.Logs)
}

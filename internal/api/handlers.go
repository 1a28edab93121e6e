package api

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/onairstack/stagecast/internal/playout/stage"
	"github.com/onairstack/stagecast/internal/service/logs"
)

// HealthHandler reports process uptime and per-channel circuit breaker
// health. Unlike a typical service health check, there is no database or
// request-serving CPU load to report here, so those sections are dropped.
type HealthHandler struct {
	version   string
	startTime time.Time
	stages    *stage.Manager
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(version string, stages *stage.Manager) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now(), stages: stages}
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status          string                        `json:"status"`
	Version         string                        `json:"version"`
	UptimeSeconds   float64                        `json:"uptime_seconds"`
	Goroutines      int                            `json:"goroutines"`
	Channels        map[string]string              `json:"channels"`
	CircuitBreakers map[string]stage.CircuitStats `json:"circuit_breakers"`
}

// HealthOutput wraps HealthResponse for huma.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the /health route.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns process uptime and per-channel circuit breaker health",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth implements the /health operation.
func (h *HealthHandler) GetHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	stats := h.stages.Stats()
	return &HealthOutput{
		Body: HealthResponse{
			Status:          "healthy",
			Version:         h.version,
			UptimeSeconds:   time.Since(h.startTime).Seconds(),
			Goroutines:      runtime.NumGoroutine(),
			Channels:        stats.Channels,
			CircuitBreakers: stats.CircuitBreakers,
		},
	}, nil
}

// ChannelHandler exposes per-channel Stage state via a list/get pair.
type ChannelHandler struct {
	stages *stage.Manager
}

// NewChannelHandler constructs a ChannelHandler.
func NewChannelHandler(stages *stage.Manager) *ChannelHandler {
	return &ChannelHandler{stages: stages}
}

// ChannelSummary describes one channel's current state.
type ChannelSummary struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// ListChannelsOutput wraps the channel list for huma.
type ListChannelsOutput struct {
	Body struct {
		Channels []ChannelSummary `json:"channels"`
	}
}

// GetChannelInput identifies a single channel by path parameter.
type GetChannelInput struct {
	ID string `path:"id"`
}

// GetChannelOutput wraps a single channel summary for huma.
type GetChannelOutput struct {
	Body ChannelSummary
}

// Register registers the /channels routes.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/channels",
		Summary:     "List channels",
		Tags:        []string{"Channels"},
	}, h.ListChannels)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      "GET",
		Path:        "/channels/{id}",
		Summary:     "Get channel state",
		Tags:        []string{"Channels"},
	}, h.GetChannel)
}

// ListChannels implements the /channels operation.
func (h *ChannelHandler) ListChannels(_ context.Context, _ *struct{}) (*ListChannelsOutput, error) {
	ids := h.stages.Channels()
	out := &ListChannelsOutput{}
	out.Body.Channels = make([]ChannelSummary, 0, len(ids))
	for _, id := range ids {
		s, err := h.stages.Get(id)
		if err != nil {
			continue
		}
		out.Body.Channels = append(out.Body.Channels, ChannelSummary{ID: id, State: s.State().String()})
	}
	return out, nil
}

// GetChannel implements the /channels/{id} operation.
func (h *ChannelHandler) GetChannel(_ context.Context, in *GetChannelInput) (*GetChannelOutput, error) {
	s, err := h.stages.Get(in.ID)
	if err != nil {
		return nil, huma.Error404NotFound("channel not found", err)
	}
	return &GetChannelOutput{Body: ChannelSummary{ID: in.ID, State: s.State().String()}}, nil
}

// LogsHandler exposes the in-memory ring-buffer log service.
type LogsHandler struct {
	service *logs.Service
}

// NewLogsHandler constructs a LogsHandler.
func NewLogsHandler(service *logs.Service) *LogsHandler {
	return &LogsHandler{service: service}
}

// ListLogsInput accepts an optional result-count limit.
type ListLogsInput struct {
	Limit int `query:"limit" default:"100"`
}

// ListLogsOutput wraps the recent-log list and summary stats for huma.
type ListLogsOutput struct {
	Body struct {
		Logs  []logs.LogEntry `json:"logs"`
		Stats logs.LogStats   `json:"stats"`
	}
}

// Register registers the /logs route.
func (h *LogsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLogs",
		Method:      "GET",
		Path:        "/logs",
		Summary:     "Recent logs",
		Tags:        []string{"System"},
	}, h.ListLogs)
}

// ListLogs implements the /logs operation.
func (h *LogsHandler) ListLogs(_ context.Context, in *ListLogsInput) (*ListLogsOutput, error) {
	out := &ListLogsOutput{}
	out.Body.Logs = h.service.GetRecentLogs(in.Limit)
	out.Body.Stats = h.service.GetStats()
	return out, nil
}

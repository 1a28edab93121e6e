package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Mixer:   MixerConfig{MaxAllocations: 8, AcquireTimeout: 5 * time.Second},
		Channels: []ChannelConfig{
			{
				ID:              "1",
				FrameRateNum:    25,
				FrameRateDen:    1,
				Width:           1920,
				Height:          1080,
				AudioSampleRate: 48000,
				AudioChannels:   2,
			},
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Load without config file should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Mixer defaults
	assert.Equal(t, 8, cfg.Mixer.MaxAllocations)
	assert.Equal(t, 5*time.Second, cfg.Mixer.AcquireTimeout)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// A single default channel is synthesized when none are configured
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "1", cfg.Channels[0].ID)
	assert.Equal(t, 25, cfg.Channels[0].FrameRateNum)
	assert.Equal(t, 1, cfg.Channels[0].FrameRateDen)
	assert.Equal(t, 1920, cfg.Channels[0].Width)
	assert.Equal(t, 1080, cfg.Channels[0].Height)

	// Recording defaults: disabled
	assert.False(t, cfg.Recording.Enabled)
	assert.Equal(t, "./recordings", cfg.Recording.Dir)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	configContent := `
server:
  host: 127.0.0.1
  port: 9090
logging:
  level: debug
  format: text
mixer:
  max_allocations: 4
  acquire_timeout: 2s
channels:
  - id: "main"
    frame_rate_num: 50
    frame_rate_den: 1
    width: 1280
    height: 720
    audio_sample_rate: 48000
    audio_channels: 2
  - id: "preview"
    frame_rate_num: 25
    frame_rate_den: 1
    width: 640
    height: 360
    audio_sample_rate: 48000
    audio_channels: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Mixer.MaxAllocations)
	assert.Equal(t, 2*time.Second, cfg.Mixer.AcquireTimeout)

	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "main", cfg.Channels[0].ID)
	assert.Equal(t, 50, cfg.Channels[0].FrameRateNum)
	assert.Equal(t, "preview", cfg.Channels[1].ID)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("STAGECAST_SERVER_PORT", "7070")
	t.Setenv("STAGECAST_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validTestConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too large", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestValidate_InvalidLoggingLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_InvalidLoggingFormat(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_InvalidMixerMaxAllocations(t *testing.T) {
	cfg := validTestConfig()
	cfg.Mixer.MaxAllocations = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mixer.max_allocations")
}

func TestValidate_RecordingEnabledWithoutDir(t *testing.T) {
	cfg := validTestConfig()
	cfg.Recording.Enabled = true
	cfg.Recording.Dir = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "recording.dir")
}

func TestValidate_RecordingDisabledAllowsEmptyDir(t *testing.T) {
	cfg := validTestConfig()
	cfg.Recording.Enabled = false
	cfg.Recording.Dir = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ChannelMissingID(t *testing.T) {
	cfg := validTestConfig()
	cfg.Channels[0].ID = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestValidate_DuplicateChannelID(t *testing.T) {
	cfg := validTestConfig()
	cfg.Channels = append(cfg.Channels, cfg.Channels[0])
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
}

func TestValidate_InvalidChannelFrameRate(t *testing.T) {
	cfg := validTestConfig()
	cfg.Channels[0].FrameRateNum = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "frame_rate_num")
}

func TestValidate_InvalidChannelResolution(t *testing.T) {
	cfg := validTestConfig()
	cfg.Channels[0].Width = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "width/height")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestChannelConfig_FrameRate(t *testing.T) {
	tests := []struct {
		name     string
		num      int
		den      int
		expected float64
	}{
		{"25fps", 25, 1, 25.0},
		{"30000/1001 ntsc", 30000, 1001, 29.97002997002997},
		{"50fps", 50, 1, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ChannelConfig{FrameRateNum: tt.num, FrameRateDen: tt.den}
			assert.InDelta(t, tt.expected, cfg.FrameRate(), 0.0000001)
		})
	}
}

func TestChannelConfig_TickInterval(t *testing.T) {
	cfg := ChannelConfig{FrameRateNum: 25, FrameRateDen: 1}
	assert.Equal(t, 40*time.Millisecond, cfg.TickInterval())
}

// Package config provides configuration management for stagecast using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultMixerMaxAllocations   = 8
	defaultMixerAcquireTimeout   = 5 * time.Second
	defaultChannelFrameRateNum   = 25
	defaultChannelFrameRateDen   = 1
	defaultChannelWidth          = 1920
	defaultChannelHeight         = 1080
	defaultChannelAudioRate      = 48000
	defaultChannelAudioChannels  = 2
	defaultCircuitBreakerThresh  = 5
	defaultCircuitBreakerSuccess = 2
	defaultCircuitBreakerTimeout = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Channels  []ChannelConfig `mapstructure:"channels"`
	Mixer     MixerConfig     `mapstructure:"mixer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Recording RecordingConfig `mapstructure:"recording"`
}

// RecordingConfig controls the optional per-channel MPEG-TS file recorder.
// Disabled by default; when enabled each channel writes a continuous
// MPEG-TS file under Dir named after its channel ID.
type RecordingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// ServerConfig holds diagnostics HTTP API configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// ChannelConfig describes one playout channel and the Stage that drives it.
type ChannelConfig struct {
	ID                string        `mapstructure:"id"`
	FrameRateNum      int           `mapstructure:"frame_rate_num"`
	FrameRateDen      int           `mapstructure:"frame_rate_den"`
	Width             int           `mapstructure:"width"`
	Height            int           `mapstructure:"height"`
	AudioSampleRate   int           `mapstructure:"audio_sample_rate"`
	AudioChannels     int           `mapstructure:"audio_channels"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig tunes a Stage's per-channel failure-streak breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// MixerConfig bounds concurrent frame-factory allocations shared across channels.
type MixerConfig struct {
	MaxAllocations  int           `mapstructure:"max_allocations"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STAGECAST_ and use underscores for nesting.
// Example: STAGECAST_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stagecast")
		v.AddConfigPath("$HOME/.stagecast")
	}

	// Environment variable settings
	v.SetEnvPrefix("STAGECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Channels) == 0 {
		cfg.Channels = []ChannelConfig{defaultChannel()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func defaultChannel() ChannelConfig {
	return ChannelConfig{
		ID:              "1",
		FrameRateNum:    defaultChannelFrameRateNum,
		FrameRateDen:    defaultChannelFrameRateDen,
		Width:           defaultChannelWidth,
		Height:          defaultChannelHeight,
		AudioSampleRate: defaultChannelAudioRate,
		AudioChannels:   defaultChannelAudioChannels,
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: defaultCircuitBreakerThresh,
			SuccessThreshold: defaultCircuitBreakerSuccess,
			Timeout:          defaultCircuitBreakerTimeout,
		},
	}
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Mixer defaults
	v.SetDefault("mixer.max_allocations", defaultMixerMaxAllocations)
	v.SetDefault("mixer.acquire_timeout", defaultMixerAcquireTimeout)

	// Channels default to a single 1080p25 channel; applied in Load if
	// the config file/env did not set any channels explicitly, since
	// viper has no clean way to default a non-empty slice of structs.

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Recording defaults: disabled, writing alongside the binary if enabled
	// without an explicit directory.
	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.dir", "./recordings")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Mixer validation
	if c.Mixer.MaxAllocations < 1 {
		return fmt.Errorf("mixer.max_allocations must be at least 1")
	}

	// Recording validation
	if c.Recording.Enabled && c.Recording.Dir == "" {
		return fmt.Errorf("recording.dir is required when recording.enabled is true")
	}

	// Channel validation
	seen := make(map[string]bool, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.ID == "" {
			return fmt.Errorf("channels[%d].id is required", i)
		}
		if seen[ch.ID] {
			return fmt.Errorf("channels[%d].id %q is duplicated", i, ch.ID)
		}
		seen[ch.ID] = true
		if ch.FrameRateNum < 1 || ch.FrameRateDen < 1 {
			return fmt.Errorf("channel %q: frame_rate_num/frame_rate_den must be positive", ch.ID)
		}
		if ch.Width < 1 || ch.Height < 1 {
			return fmt.Errorf("channel %q: width/height must be positive", ch.ID)
		}
		if ch.AudioSampleRate < 1 {
			return fmt.Errorf("channel %q: audio_sample_rate must be positive", ch.ID)
		}
		if ch.AudioChannels < 1 {
			return fmt.Errorf("channel %q: audio_channels must be positive", ch.ID)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FrameRate returns the channel's frame rate as a floating-point frames-per-second value.
func (c *ChannelConfig) FrameRate() float64 {
	return float64(c.FrameRateNum) / float64(c.FrameRateDen)
}

// TickInterval returns the duration of a single frame tick for this channel.
func (c *ChannelConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) * float64(c.FrameRateDen) / float64(c.FrameRateNum))
}

// Package config loads the optional YAML configuration. Every field has a
// default matching the original tool (stereo 44.1 kHz, 100-frame chunks,
// 50–200 ms delay range), so running without a file just works.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snovvcrash/dafgen/internal/device"
)

type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Delay   DelayConfig   `yaml:"delay"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig fixes the stream format for a session.
type AudioConfig struct {
	SampleRate     int `yaml:"sample_rate"`
	Channels       int `yaml:"channels"`
	FramesPerChunk int `yaml:"frames_per_chunk"`
}

// DelayConfig bounds the delay control and its resize throttle.
type DelayConfig struct {
	MinMs            int `yaml:"min_ms"`
	MaxMs            int `yaml:"max_ms"`
	DefaultMs        int `yaml:"default_ms"`
	ResizeThrottleMs int `yaml:"resize_throttle_ms"`
}

// MonitorConfig controls the input level readout.
type MonitorConfig struct {
	Enabled    bool `yaml:"enabled"`
	WindowSize int  `yaml:"window_size"`
}

type LoggingConfig struct {
	// File receives the structured log; empty disables logging in TUI
	// mode (the TUI owns the terminal) and falls back to stderr when
	// running headless.
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:     44100,
			Channels:       2,
			FramesPerChunk: 100,
		},
		Delay: DelayConfig{
			MinMs:            50,
			MaxMs:            200,
			DefaultMs:        100,
			ResizeThrottleMs: 10,
		},
		Monitor: MonitorConfig{
			Enabled:    true,
			WindowSize: 2048,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("audio.channels must be at least 1, got %d", c.Audio.Channels)
	}
	if c.Audio.FramesPerChunk < 1 {
		return fmt.Errorf("audio.frames_per_chunk must be at least 1, got %d", c.Audio.FramesPerChunk)
	}
	if c.Delay.MinMs < 1 {
		return fmt.Errorf("delay.min_ms must be at least 1, got %d", c.Delay.MinMs)
	}
	if c.Delay.MaxMs < c.Delay.MinMs {
		return fmt.Errorf("delay.max_ms (%d) must not be below delay.min_ms (%d)",
			c.Delay.MaxMs, c.Delay.MinMs)
	}
	if c.Delay.DefaultMs < c.Delay.MinMs || c.Delay.DefaultMs > c.Delay.MaxMs {
		return fmt.Errorf("delay.default_ms (%d) outside [%d, %d]",
			c.Delay.DefaultMs, c.Delay.MinMs, c.Delay.MaxMs)
	}
	if c.Delay.ResizeThrottleMs < 1 {
		return fmt.Errorf("delay.resize_throttle_ms must be at least 1, got %d",
			c.Delay.ResizeThrottleMs)
	}
	if c.Monitor.Enabled && c.Monitor.WindowSize < 256 {
		return fmt.Errorf("monitor.window_size must be at least 256, got %d",
			c.Monitor.WindowSize)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// Format returns the device format the configuration describes.
func (c *Config) Format() device.Format {
	return device.Format{
		SampleRate:     c.Audio.SampleRate,
		Channels:       c.Audio.Channels,
		FramesPerChunk: c.Audio.FramesPerChunk,
	}
}

// MinDelay, MaxDelay, DefaultDelay and ResizeThrottle expose the delay
// policy as durations.
func (c *Config) MinDelay() time.Duration { return time.Duration(c.Delay.MinMs) * time.Millisecond }
func (c *Config) MaxDelay() time.Duration { return time.Duration(c.Delay.MaxMs) * time.Millisecond }
func (c *Config) DefaultDelay() time.Duration {
	return time.Duration(c.Delay.DefaultMs) * time.Millisecond
}
func (c *Config) ResizeThrottle() time.Duration {
	return time.Duration(c.Delay.ResizeThrottleMs) * time.Millisecond
}

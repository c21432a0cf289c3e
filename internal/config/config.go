package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aelhadi/mudawin/internal/audio"
	"github.com/aelhadi/mudawin/internal/capture"
	"github.com/aelhadi/mudawin/internal/language"
	"github.com/aelhadi/mudawin/internal/playback"
)

type Config struct {
	Capture       CaptureConfig       `toml:"capture"`
	Audio         AudioConfig         `toml:"audio"`
	Playback      PlaybackConfig      `toml:"playback"`
	Store         StoreConfig         `toml:"store"`
	Notifications NotificationsConfig `toml:"notifications"`
}

type CaptureConfig struct {
	Variant      string `toml:"variant"`  // recognizer, live, batch
	Language     string `toml:"language"` // BCP-47, e.g. "ar-SA"
	Endpoint     string `toml:"endpoint"` // live websocket endpoint
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"` // batch transcription model
	SampleRate   int    `toml:"sample_rate"`
	ChunkSamples int    `toml:"chunk_samples"`
}

type AudioConfig struct {
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type PlaybackConfig struct {
	StartOnCapture bool          `toml:"start_on_capture"`
	RewindOnStop   bool          `toml:"rewind_on_stop"`
	RewindOffset   time.Duration `toml:"rewind_offset"`
}

type StoreConfig struct {
	Path        string        `toml:"path"` // empty = default location
	Debounce    time.Duration `toml:"debounce"`
	SavedWindow time.Duration `toml:"saved_window"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Variant:      capture.VariantLive,
			Language:     "ar-SA",
			Endpoint:     "wss://transcription.googleapis.com/v1/live",
			Model:        "whisper-1",
			SampleRate:   16000,
			ChunkSamples: 4096,
		},
		Audio: AudioConfig{
			Device:            "",
			ChannelBufferSize: 20,
		},
		Playback: PlaybackConfig{
			StartOnCapture: true,
			RewindOnStop:   false,
			RewindOffset:   1500 * time.Millisecond,
		},
		Store: StoreConfig{
			Debounce:    time.Second,
			SavedWindow: 2 * time.Second,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
	}
}

func (c *Config) ToCaptureConfig() capture.Config {
	cfg := capture.DefaultConfig()
	cfg.Variant = c.Capture.Variant
	cfg.Language = c.Capture.Language
	cfg.Endpoint = c.Capture.Endpoint
	cfg.APIKey = c.resolveAPIKey()
	cfg.Model = c.Capture.Model
	if c.Capture.SampleRate > 0 {
		cfg.SampleRate = c.Capture.SampleRate
	}
	if c.Capture.ChunkSamples > 0 {
		cfg.ChunkSamples = c.Capture.ChunkSamples
	}
	return cfg
}

func (c *Config) resolveAPIKey() string {
	if c.Capture.APIKey != "" {
		return c.Capture.APIKey
	}
	switch c.Capture.Variant {
	case capture.VariantLive:
		return os.Getenv("GEMINI_API_KEY")
	case capture.VariantBatch:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func (c *Config) ToAudioConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.Device = c.Audio.Device
	if c.Audio.ChannelBufferSize > 0 {
		cfg.ChannelBufferSize = c.Audio.ChannelBufferSize
	}
	if c.Capture.SampleRate > 0 {
		cfg.SampleRate = c.Capture.SampleRate
	}
	if c.Capture.ChunkSamples > 0 {
		cfg.ChunkSamples = c.Capture.ChunkSamples
	}
	return cfg
}

func (c *Config) ToPlaybackPolicy() playback.Policy {
	return playback.Policy{
		StartOnCapture: c.Playback.StartOnCapture,
		RewindOnStop:   c.Playback.RewindOnStop,
		RewindOffset:   c.Playback.RewindOffset,
	}
}

func (c *Config) Validate() error {
	switch c.Capture.Variant {
	case capture.VariantRecognizer, capture.VariantLive, capture.VariantBatch:
	default:
		return fmt.Errorf("invalid capture.variant: %s (must be recognizer, live, or batch)", c.Capture.Variant)
	}

	if !language.IsValidTag(c.Capture.Language) {
		return fmt.Errorf("invalid capture.language: %q (not a supported locale)", c.Capture.Language)
	}

	if c.Capture.Variant == capture.VariantLive {
		if c.Capture.Endpoint == "" {
			return fmt.Errorf("capture.endpoint required for the live variant")
		}
		if c.resolveAPIKey() == "" {
			return fmt.Errorf("live API key required: not found in config (capture.api_key) or environment (GEMINI_API_KEY)")
		}
	}
	if c.Capture.Variant == capture.VariantBatch {
		if c.resolveAPIKey() == "" {
			return fmt.Errorf("batch API key required: not found in config (capture.api_key) or environment (OPENAI_API_KEY)")
		}
		if c.Capture.Model == "" {
			return fmt.Errorf("invalid capture.model: empty")
		}
	}

	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.ChunkSamples <= 0 {
		return fmt.Errorf("invalid capture.chunk_samples: %d", c.Capture.ChunkSamples)
	}
	if c.Audio.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid audio.channel_buffer_size: %d", c.Audio.ChannelBufferSize)
	}

	if c.Playback.RewindOnStop && c.Playback.RewindOffset <= 0 {
		return fmt.Errorf("invalid playback.rewind_offset: %v", c.Playback.RewindOffset)
	}

	if c.Store.Debounce <= 0 {
		return fmt.Errorf("invalid store.debounce: %v", c.Store.Debounce)
	}
	if c.Store.SavedWindow <= 0 {
		return fmt.Errorf("invalid store.saved_window: %v", c.Store.SavedWindow)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

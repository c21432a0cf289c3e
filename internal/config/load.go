package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	mudawinDir := filepath.Join(configDir, "mudawin")
	if err := os.MkdirAll(mudawinDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(mudawinDir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config file doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("config: no config file found at %s, creating with defaults", configPath)
		if err := SaveDefaultConfig(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return Load()
	}

	log.Printf("config: loading configuration from %s", configPath)
	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return &config, nil
}

func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func SaveDefaultConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configContent := `# Mudawin Configuration
# This file is automatically generated with defaults.
# Edit values as needed - changes are applied immediately without daemon restart.

# Speech Capture Configuration
[capture]
  variant = "live"             # Capture source ("recognizer", "live", "batch")
  language = "ar-SA"           # Recognition language (BCP-47)
  endpoint = "wss://transcription.googleapis.com/v1/live"  # Live streaming endpoint
  api_key = ""                 # API key (or GEMINI_API_KEY / OPENAI_API_KEY environment variable)
  model = "whisper-1"          # Batch transcription model
  sample_rate = 16000          # Microphone sample rate in Hz
  chunk_samples = 4096         # Samples per streamed audio chunk

# Microphone Configuration
[audio]
  device = ""                  # PipeWire audio device (empty = default microphone)
  channel_buffer_size = 20     # Audio frame buffer (frames to buffer)

# Playback Coupling Configuration
[playback]
  start_on_capture = true      # Start paused playback when capture starts
  rewind_on_stop = false       # Rewind slightly on user stop to re-hear the last phrase
  rewind_offset = "1500ms"     # How far to rewind when rewind_on_stop is enabled

# Draft Persistence Configuration
[store]
  path = ""                    # Draft database location (empty = default)
  debounce = "1s"              # Quiet period before a draft write
  saved_window = "2s"          # How long the "saved" status is shown

# Desktop Notification Configuration
[notifications]
  enabled = true               # Enable notifications
  type = "desktop"             # Notification type ("desktop", "log", "none")

# Variant explanations:
# - "recognizer": bridge to a platform continuous speech recognizer
# - "live":       stream microphone audio to the remote live endpoint
# - "batch":      collect audio and transcribe in one request on stop
`

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(configContent); err != nil {
		return fmt.Errorf("failed to write config content: %w", err)
	}

	return nil
}

package tui

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/aelhadi/mudawin/internal/capture"
	"github.com/aelhadi/mudawin/internal/config"
	"github.com/aelhadi/mudawin/internal/language"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionCapture       ConfigSection = "capture"
	SectionPlayback      ConfigSection = "playback"
	SectionStore         ConfigSection = "store"
	SectionNotifications ConfigSection = "notifications"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the TUI configuration wizard
func Run(cfg *config.Config) (*ConfigureResult, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			return &ConfigureResult{Config: cfg, Cancelled: false}, nil

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionCapture:
			if err := editCapture(cfg); err != nil {
				continue
			}

		case SectionPlayback:
			if err := editPlayback(cfg); err != nil {
				continue
			}

		case SectionStore:
			if err := editStore(cfg); err != nil {
				continue
			}

		case SectionNotifications:
			if err := editNotifications(cfg); err != nil {
				continue
			}
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(fmt.Sprintf("Capture (%s, %s)", cfg.Capture.Variant, cfg.Capture.Language), SectionCapture),
		huh.NewOption(formatPlaybackLabel(cfg), SectionPlayback),
		huh.NewOption("Draft Persistence", SectionStore),
		huh.NewOption(fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type), SectionNotifications),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

func formatPlaybackLabel(cfg *config.Config) string {
	if cfg.Playback.StartOnCapture {
		return "Playback Coupling (coupled)"
	}
	return "Playback Coupling (off)"
}

func editCapture(cfg *config.Config) error {
	variant := cfg.Capture.Variant
	locale := cfg.Capture.Language
	endpoint := cfg.Capture.Endpoint
	apiKey := cfg.Capture.APIKey
	model := cfg.Capture.Model

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Capture Variant").
				Description("How speech is turned into text").
				Options(
					huh.NewOption("Live streaming (remote websocket)", capture.VariantLive),
					huh.NewOption("Platform recognizer (continuous, local engine)", capture.VariantRecognizer),
					huh.NewOption("Batch (transcribe on stop)", capture.VariantBatch),
				).
				Value(&variant),

			huh.NewSelect[string]().
				Title("Language").
				Options(localeOptions()...).
				Value(&locale),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Live Endpoint").
				Description("Websocket URL for the live variant").
				Value(&endpoint),

			huh.NewInput().
				Title("API Key").
				Description("Leave empty to use GEMINI_API_KEY / OPENAI_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),

			huh.NewInput().
				Title("Batch Model").
				Description("Transcription model for the batch variant").
				Value(&model),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Capture.Variant = variant
	cfg.Capture.Language = locale
	cfg.Capture.Endpoint = endpoint
	cfg.Capture.APIKey = apiKey
	cfg.Capture.Model = model
	return nil
}

func editPlayback(cfg *config.Config) error {
	startOnCapture := cfg.Playback.StartOnCapture
	rewindOnStop := cfg.Playback.RewindOnStop
	rewindOffset := cfg.Playback.RewindOffset.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start playback with capture?").
				Description("Resume paused audio when transcription starts").
				Value(&startOnCapture),

			huh.NewConfirm().
				Title("Rewind on stop?").
				Description("Step back slightly on stop to re-hear the last phrase").
				Value(&rewindOnStop),

			huh.NewInput().
				Title("Rewind Offset").
				Description("How far to rewind, e.g. 1500ms or 2s").
				Validate(validateDuration).
				Value(&rewindOffset),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Playback.StartOnCapture = startOnCapture
	cfg.Playback.RewindOnStop = rewindOnStop
	if d, err := time.ParseDuration(rewindOffset); err == nil {
		cfg.Playback.RewindOffset = d
	}
	return nil
}

func editStore(cfg *config.Config) error {
	path := cfg.Store.Path
	debounce := cfg.Store.Debounce.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Draft Database Path").
				Description("Leave empty for the default location").
				Value(&path),

			huh.NewInput().
				Title("Save Debounce").
				Description("Quiet period before a draft write, e.g. 1s").
				Validate(validateDuration).
				Value(&debounce),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Store.Path = path
	if d, err := time.ParseDuration(debounce); err == nil {
		cfg.Store.Debounce = d
	}
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	typ := cfg.Notifications.Type

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Value(&enabled),

			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop (notify-send)", "desktop"),
					huh.NewOption("Daemon log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&typ),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = typ
	return nil
}

func localeOptions() []huh.Option[string] {
	locales := language.List()
	options := make([]huh.Option[string], len(locales))
	for i, l := range locales {
		options[i] = huh.NewOption(fmt.Sprintf("%s — %s", l.Name, l.NativeName), l.Tag)
	}
	return options
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if _, ierr := strconv.Atoi(s); ierr == nil {
			return fmt.Errorf("missing unit, try %sms or %ss", s, s)
		}
		return fmt.Errorf("invalid duration: %s", s)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

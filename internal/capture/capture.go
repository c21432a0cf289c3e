package capture

import (
	"context"
	"fmt"

	"github.com/aelhadi/mudawin/internal/audio"
)

// Source is a single attempt to run a speech recognizer. A source emits
// ordered events on its channel until it ends; Ended is always the last
// event, after which the channel is closed and the source is dead. A new
// attempt requires a new Source.
type Source interface {
	// Start opens the underlying engine with the given language hint.
	Start(ctx context.Context, language string) error

	// Events returns the ordered event stream for this source.
	Events() <-chan Event

	// Close requests a graceful shutdown. The Ended event is still
	// delivered. Close is idempotent.
	Close() error
}

type EventKind string

const (
	// Partial carries the current not-yet-finalized hypothesis. Each
	// partial fully supersedes the previous one.
	Partial EventKind = "partial"

	// Final carries a segment the engine will not revise further.
	Final EventKind = "final"

	// Err carries a *Error describing a failure. Recoverable errors do
	// not imply the source is done.
	Err EventKind = "error"

	// Ended signals the source terminated, expectedly or not. Always the
	// last event for a source.
	Ended EventKind = "ended"
)

type Event struct {
	Kind EventKind
	Text string // Partial and Final only
	Err  error  // Err only, always a *Error
}

// Variant names for the capture source factory.
const (
	VariantRecognizer = "recognizer"
	VariantLive       = "live"
	VariantBatch      = "batch"
)

// Config selects and parameterizes a capture source variant.
type Config struct {
	Variant  string
	Language string

	// Live variant.
	Endpoint     string
	APIKey       string
	SampleRate   int
	ChunkSamples int
	SystemPrompt string

	// Batch variant.
	Model string
}

func DefaultConfig() Config {
	return Config{
		Variant:      VariantLive,
		Language:     "ar-SA",
		SampleRate:   16000,
		ChunkSamples: 4096,
		SystemPrompt: arabicTranscriptionPrompt,
	}
}

const arabicTranscriptionPrompt = "أنت نظام تفريغ صوتي. اكتب ما تسمعه باللغة العربية الفصحى حرفياً دون أي تعليق أو إضافة."

// New builds a source for the configured variant. The frames channel feeds
// microphone audio to the live and batch variants; the recognizer variant
// owns its own audio path and ignores it.
func New(cfg Config, rec Recognizer, frames <-chan audio.Frame) (Source, error) {
	switch cfg.Variant {
	case VariantRecognizer:
		if rec == nil {
			return nil, fmt.Errorf("recognizer variant requires a platform recognizer")
		}
		return NewRecognizerSource(rec), nil

	case VariantLive:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("live transcription API key required")
		}
		return NewLiveSource(cfg, frames), nil

	case VariantBatch:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("batch transcription API key required")
		}
		return NewBatchSource(cfg, frames), nil

	default:
		return nil, fmt.Errorf("unsupported capture variant: %s", cfg.Variant)
	}
}

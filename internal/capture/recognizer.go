package capture

import (
	"context"
	"fmt"
	"sync"
)

// Recognizer is the platform continuous speech recognizer boundary. The
// engine runs outside this process; implementations bridge to it. The event
// channel carries indexed result-list updates and engine error codes, and
// closes when the engine ends, which continuous engines do unilaterally
// after inactivity or internal limits. Closure is expected, not
// exceptional.
type Recognizer interface {
	Start(ctx context.Context, cfg RecognizerConfig) (<-chan RecognizerEvent, error)

	// Abort asks the engine to stop. The event channel still closes.
	Abort() error
}

type RecognizerConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

type RecognizerResult struct {
	Transcript string
	IsFinal    bool
}

// RecognizerEvent is one engine callback: the full result list for the
// session plus the index of the first result that changed, or an engine
// error code ("no-speech", "not-allowed", ...).
type RecognizerEvent struct {
	ResultIndex int
	Results     []RecognizerResult
	ErrCode     string
}

// recognizerSource adapts a Recognizer into the Source event stream.
type recognizerSource struct {
	rec     Recognizer
	events  chan Event
	closeFn sync.Once
	started bool
}

func NewRecognizerSource(rec Recognizer) Source {
	return &recognizerSource{
		rec:    rec,
		events: make(chan Event, 32),
	}
}

func (s *recognizerSource) Start(ctx context.Context, language string) error {
	if s.started {
		return fmt.Errorf("source already started")
	}

	cfg := RecognizerConfig{
		Continuous:     true,
		InterimResults: true,
		Language:       language,
	}

	engineCh, err := s.rec.Start(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}
	s.started = true

	go s.translate(engineCh)
	return nil
}

func (s *recognizerSource) translate(engineCh <-chan RecognizerEvent) {
	defer close(s.events)

	for ev := range engineCh {
		if ev.ErrCode != "" {
			s.events <- Event{Kind: Err, Err: mapEngineError(ev.ErrCode)}
			continue
		}

		// Finals are committed individually; all interim transcripts
		// from the changed range concatenate into the new partial,
		// which fully supersedes the previous one.
		interim := ""
		for i := ev.ResultIndex; i < len(ev.Results); i++ {
			r := ev.Results[i]
			if r.IsFinal {
				s.events <- Event{Kind: Final, Text: r.Transcript}
			} else {
				interim += r.Transcript
			}
		}
		s.events <- Event{Kind: Partial, Text: interim}
	}

	s.events <- Event{Kind: Ended}
}

func (s *recognizerSource) Events() <-chan Event {
	return s.events
}

func (s *recognizerSource) Close() error {
	var err error
	s.closeFn.Do(func() {
		err = s.rec.Abort()
	})
	return err
}

func mapEngineError(code string) *Error {
	switch code {
	case "no-speech":
		return NewError(KindSilenceTimeout, fmt.Errorf("engine: %s", code))
	case "not-allowed", "service-not-allowed":
		return NewError(KindPermissionDenied, fmt.Errorf("engine: %s", code))
	case "audio-capture":
		return NewError(KindPermissionDenied, fmt.Errorf("engine: %s", code))
	default:
		return NewError(KindTransientClosure, fmt.Errorf("engine: %s", code))
	}
}

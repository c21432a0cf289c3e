package capture

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/aelhadi/mudawin/internal/audio"
	"github.com/aelhadi/mudawin/internal/language"
)

// Flusher is implemented by sources whose text is only confirmed when the
// session closes. The supervisor commits the flushed text as one final
// segment after a user-requested stop.
type Flusher interface {
	FlushText() (string, error)
}

// batchSource collects all microphone audio for the session and transcribes
// it in one request when closed. It emits no partials; its single final
// segment is delivered through FlushText.
type batchSource struct {
	cfg    Config
	frames <-chan audio.Frame
	client *openai.Client

	events chan Event

	mu      sync.Mutex
	buffer  []byte
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	flushText string
	flushErr  error
}

func NewBatchSource(cfg Config, frames <-chan audio.Frame) Source {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	cfg.Model = model
	return &batchSource{
		cfg:    cfg,
		frames: frames,
		client: openai.NewClient(cfg.APIKey),
		events: make(chan Event, 1),
	}
}

func (s *batchSource) Start(ctx context.Context, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("source already started")
	}
	s.started = true

	var collectCtx context.Context
	collectCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.collect(collectCtx)
	return nil
}

func (s *batchSource) collect(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			s.mu.Lock()
			s.buffer = append(s.buffer, frame.Data...)
			s.mu.Unlock()
		}
	}
}

func (s *batchSource) Events() <-chan Event {
	return s.events
}

// Close stops collection, transcribes everything gathered, and ends the
// session. The result is held for FlushText.
func (s *batchSource) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	audioData := make([]byte, len(s.buffer))
	copy(audioData, s.buffer)
	s.mu.Unlock()

	s.flushText, s.flushErr = s.transcribe(audioData)

	s.events <- Event{Kind: Ended}
	close(s.events)
	return nil
}

func (s *batchSource) transcribe(audioData []byte) (string, error) {
	if len(audioData) == 0 {
		log.Printf("batch: no audio to transcribe")
		return "", nil
	}

	wavData := audio.WAV(audioData, s.cfg.SampleRate, 1)

	req := openai.AudioRequest{
		Model:    s.cfg.Model,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
		Language: language.Short(s.cfg.Language),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	resp, err := s.client.CreateTranscription(ctx, req)
	if err != nil {
		log.Printf("batch: transcription failed after %v: %v", time.Since(start), err)
		return "", NewError(KindBackendFatal, fmt.Errorf("transcription: %w", err))
	}

	log.Printf("batch: transcribed %d bytes in %v", len(audioData), time.Since(start))
	return resp.Text, nil
}

func (s *batchSource) FlushText() (string, error) {
	return s.flushText, s.flushErr
}

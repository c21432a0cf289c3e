package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aelhadi/mudawin/internal/audio"
)

// liveSource streams microphone audio to a remote transcription backend
// over a persistent websocket and maps its events onto the Source stream.
// The backend returns incremental transcription deltas for the current
// utterance and signals turn completion; the accumulated text up to that
// signal is flushed as one final segment.
type liveSource struct {
	cfg    Config
	frames <-chan audio.Frame

	conn   *websocket.Conn
	events chan Event

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// Outgoing messages.

type liveSetup struct {
	Setup liveSetupBody `json:"setup"`
}

type liveSetupBody struct {
	AudioFormat        string `json:"audioFormat"`
	ResponseModality   string `json:"responseModality"`
	InputTranscription bool   `json:"inputTranscriptionEnabled"`
	SystemPrompt       string `json:"systemPrompt"`
	Language           string `json:"language,omitempty"`
}

type liveAudioInput struct {
	RealtimeInput liveRealtimeInput `json:"realtimeInput"`
}

type liveRealtimeInput struct {
	Audio liveAudioChunk `json:"audio"`
}

type liveAudioChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 little-endian 16-bit PCM
}

// Incoming messages.

type liveServerMessage struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *liveServerContent `json:"serverContent,omitempty"`
	Error         *liveServerError   `json:"error,omitempty"`
}

type liveServerContent struct {
	InputTranscription *liveTranscription `json:"inputTranscription,omitempty"`
	TurnComplete       bool               `json:"turnComplete,omitempty"`
}

type liveTranscription struct {
	Text string `json:"text"`
}

type liveServerError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewLiveSource(cfg Config, frames <-chan audio.Frame) Source {
	return &liveSource{
		cfg:    cfg,
		frames: frames,
		events: make(chan Event, 100),
	}
}

func (s *liveSource) Start(ctx context.Context, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("source already started")
	}
	if language == "" {
		language = s.cfg.Language
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}

	log.Printf("live: connecting to %s", redactKey(wsURL))
	conn, resp, err := websocket.DefaultDialer.DialContext(s.ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			log.Printf("live: dial failed with status %d", resp.StatusCode)
		}
		s.cancel()
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn

	setup := liveSetup{Setup: liveSetupBody{
		AudioFormat:        fmt.Sprintf("pcm;rate=%d", s.cfg.SampleRate),
		ResponseModality:   "audio",
		InputTranscription: true,
		SystemPrompt:       s.cfg.SystemPrompt,
		Language:           language,
	}}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		s.cancel()
		return fmt.Errorf("send setup: %w", err)
	}

	s.started = true

	s.wg.Add(1)
	go s.sendAudio()
	go s.readLoop()

	log.Printf("live: session open, language=%s", language)
	return nil
}

func (s *liveSource) buildURL() (string, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", s.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redactKey(wsURL string) string {
	if i := strings.Index(wsURL, "key="); i >= 0 {
		return wsURL[:i] + "key=..."
	}
	return wsURL
}

// sendAudio re-chunks microphone frames to the configured chunk size and
// pushes them base64-encoded over the socket.
func (s *liveSource) sendAudio() {
	defer s.wg.Done()

	chunkBytes := s.cfg.ChunkSamples * 2
	mime := fmt.Sprintf("audio/pcm;rate=%d", s.cfg.SampleRate)
	var pending []byte

	flush := func(buf []byte) {
		msg := liveAudioInput{RealtimeInput: liveRealtimeInput{
			Audio: liveAudioChunk{
				MimeType: mime,
				Data:     base64.StdEncoding.EncodeToString(buf),
			},
		}}
		s.mu.Lock()
		conn := s.conn
		var err error
		if conn != nil {
			err = conn.WriteJSON(msg)
		}
		s.mu.Unlock()
		if err != nil {
			log.Printf("live: send error: %v", err)
		}
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-s.frames:
			if !ok {
				if len(pending) > 0 {
					flush(pending)
				}
				return
			}
			pending = append(pending, frame.Data...)
			for len(pending) >= chunkBytes {
				flush(pending[:chunkBytes])
				pending = pending[chunkBytes:]
			}
		}
	}
}

func (s *liveSource) readLoop() {
	defer close(s.events)

	var turnText strings.Builder

	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			break
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.ctx.Done():
				// requested shutdown
			default:
				log.Printf("live: read error: %v", err)
				s.events <- Event{Kind: Err, Err: NewError(KindTransientClosure, err)}
			}
			break
		}

		var msg liveServerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("live: parse error: %v", err)
			continue
		}

		switch {
		case msg.SetupComplete != nil:
			log.Printf("live: setup complete")

		case msg.Error != nil:
			log.Printf("live: backend error: %s", msg.Error.Message)
			s.events <- Event{Kind: Err, Err: NewError(KindBackendFatal,
				fmt.Errorf("backend: %s", msg.Error.Message))}

		case msg.ServerContent != nil:
			sc := msg.ServerContent
			if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
				turnText.WriteString(sc.InputTranscription.Text)
				s.events <- Event{Kind: Partial, Text: turnText.String()}
			}
			if sc.TurnComplete {
				if text := turnText.String(); strings.TrimSpace(text) != "" {
					log.Printf("live: turn complete: %q", text)
					s.events <- Event{Kind: Final, Text: text}
				}
				turnText.Reset()
			}
		}
	}

	s.events <- Event{Kind: Ended}
}

func (s *liveSource) Events() <-chan Event {
	return s.events
}

func (s *liveSource) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	s.wg.Wait()
	log.Printf("live: closed")
	return nil
}

package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aelhadi/mudawin/internal/audio"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockLiveServer simulates the streaming transcription backend. The handler
// runs after the setup message has been read and checked.
func mockLiveServer(t *testing.T, handler func(*websocket.Conn, liveSetup)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		var setup liveSetup
		if err := conn.ReadJSON(&setup); err != nil {
			t.Logf("read setup: %v", err)
			return
		}
		conn.WriteJSON(liveServerMessage{SetupComplete: &struct{}{}})

		handler(conn, setup)
	}))
}

func liveTestConfig(serverURL string) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "ws" + strings.TrimPrefix(serverURL, "http")
	cfg.APIKey = "test-api-key"
	cfg.ChunkSamples = 4
	return cfg
}

func TestLiveSourceSetup(t *testing.T) {
	setupCh := make(chan liveSetup, 1)
	server := mockLiveServer(t, func(conn *websocket.Conn, setup liveSetup) {
		setupCh <- setup
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	src := NewLiveSource(liveTestConfig(server.URL), nil)
	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	select {
	case setup := <-setupCh:
		if setup.Setup.AudioFormat != "pcm;rate=16000" {
			t.Errorf("audioFormat = %q", setup.Setup.AudioFormat)
		}
		if !setup.Setup.InputTranscription {
			t.Error("input transcription must be enabled")
		}
		if setup.Setup.Language != "ar-SA" {
			t.Errorf("language = %q, expected ar-SA", setup.Setup.Language)
		}
		if setup.Setup.SystemPrompt == "" {
			t.Error("system prompt missing from setup")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the setup message")
	}
}

func TestLiveSourceTranscriptionFlow(t *testing.T) {
	server := mockLiveServer(t, func(conn *websocket.Conn, _ liveSetup) {
		// Two deltas for one utterance, then turn completion.
		conn.WriteJSON(liveServerMessage{ServerContent: &liveServerContent{
			InputTranscription: &liveTranscription{Text: "مرحبا "},
		}})
		conn.WriteJSON(liveServerMessage{ServerContent: &liveServerContent{
			InputTranscription: &liveTranscription{Text: "بكم"},
		}})
		conn.WriteJSON(liveServerMessage{ServerContent: &liveServerContent{
			TurnComplete: true,
		}})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	src := NewLiveSource(liveTestConfig(server.URL), nil)
	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	events := collect(t, src.Events(), 3)

	if events[0].Kind != Partial || events[0].Text != "مرحبا " {
		t.Errorf("event 0 = %+v, expected first delta as partial", events[0])
	}
	// Deltas accumulate; each partial carries the whole utterance so far.
	if events[1].Kind != Partial || events[1].Text != "مرحبا بكم" {
		t.Errorf("event 1 = %+v, expected accumulated partial", events[1])
	}
	if events[2].Kind != Final || events[2].Text != "مرحبا بكم" {
		t.Errorf("event 2 = %+v, expected accumulated final", events[2])
	}
}

func TestLiveSourceEmptyTurnProducesNoFinal(t *testing.T) {
	server := mockLiveServer(t, func(conn *websocket.Conn, _ liveSetup) {
		// Turn completes without any transcription: nothing to commit.
		conn.WriteJSON(liveServerMessage{ServerContent: &liveServerContent{
			TurnComplete: true,
		}})
		conn.WriteJSON(liveServerMessage{ServerContent: &liveServerContent{
			InputTranscription: &liveTranscription{Text: "لاحق"},
		}})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	src := NewLiveSource(liveTestConfig(server.URL), nil)
	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	events := collect(t, src.Events(), 1)
	if events[0].Kind != Partial || events[0].Text != "لاحق" {
		t.Errorf("event = %+v, empty turn must be skipped", events[0])
	}
}

func TestLiveSourceBackendError(t *testing.T) {
	server := mockLiveServer(t, func(conn *websocket.Conn, _ liveSetup) {
		conn.WriteJSON(liveServerMessage{Error: &liveServerError{
			Code:    "internal",
			Message: "backend exploded",
		}})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	src := NewLiveSource(liveTestConfig(server.URL), nil)
	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	events := collect(t, src.Events(), 1)
	if events[0].Kind != Err {
		t.Fatalf("event = %+v, expected error", events[0])
	}
	if got := KindOf(events[0].Err); got != KindBackendFatal {
		t.Errorf("kind = %s, expected %s", got, KindBackendFatal)
	}
}

func TestLiveSourceSendsChunkedAudio(t *testing.T) {
	received := make(chan []byte, 10)
	server := mockLiveServer(t, func(conn *websocket.Conn, _ liveSetup) {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg liveAudioInput
			if err := json.Unmarshal(message, &msg); err != nil {
				continue
			}
			if msg.RealtimeInput.Audio.Data != "" {
				decoded, _ := base64.StdEncoding.DecodeString(msg.RealtimeInput.Audio.Data)
				received <- decoded
			}
		}
	})
	defer server.Close()

	frames := make(chan audio.Frame, 4)
	cfg := liveTestConfig(server.URL) // 4 samples = 8 bytes per chunk

	src := NewLiveSource(cfg, frames)
	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	// 12 bytes in: one full 8-byte chunk now, 4 bytes held back.
	frames <- audio.Frame{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}

	select {
	case chunk := <-received:
		if len(chunk) != 8 {
			t.Errorf("chunk size = %d, expected 8 bytes", len(chunk))
		}
		for i, b := range chunk {
			if b != byte(i+1) {
				t.Errorf("chunk[%d] = %d, expected %d", i, b, i+1)
				break
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received an audio chunk")
	}

	// Closing the frame stream flushes the remainder.
	close(frames)
	select {
	case chunk := <-received:
		if len(chunk) != 4 {
			t.Errorf("final chunk size = %d, expected 4 bytes", len(chunk))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending audio was not flushed")
	}
}

func TestLiveSourceMissingKeyRejected(t *testing.T) {
	server := mockLiveServer(t, func(conn *websocket.Conn, _ liveSetup) {})
	defer server.Close()

	cfg := liveTestConfig(server.URL)
	cfg.APIKey = ""
	src := NewLiveSource(cfg, nil)
	if err := src.Start(context.Background(), "ar-SA"); err == nil {
		src.Close()
		t.Error("Start should fail when the backend rejects the key")
	}
}

func TestRedactKey(t *testing.T) {
	redacted := redactKey("wss://example.com/v1/live?key=secret123")
	if strings.Contains(redacted, "secret123") {
		t.Errorf("key leaked: %s", redacted)
	}
}

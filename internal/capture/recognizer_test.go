package capture

import (
	"context"
	"testing"
	"time"
)

type fakeRecognizer struct {
	ch      chan RecognizerEvent
	aborted bool
	cfg     RecognizerConfig
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{ch: make(chan RecognizerEvent, 16)}
}

func (r *fakeRecognizer) Start(ctx context.Context, cfg RecognizerConfig) (<-chan RecognizerEvent, error) {
	r.cfg = cfg
	return r.ch, nil
}

func (r *fakeRecognizer) Abort() error {
	r.aborted = true
	close(r.ch)
	return nil
}

func collect(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed after %d events, expected %d", len(out), n)
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events, expected %d", len(out), n)
		}
	}
	return out
}

func TestRecognizerSourceConfig(t *testing.T) {
	rec := newFakeRecognizer()
	src := NewRecognizerSource(rec)

	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if !rec.cfg.Continuous {
		t.Error("recognizer must run in continuous mode")
	}
	if !rec.cfg.InterimResults {
		t.Error("recognizer must deliver interim results")
	}
	if rec.cfg.Language != "ar-SA" {
		t.Errorf("language = %q, expected ar-SA", rec.cfg.Language)
	}
}

func TestRecognizerSourceTranslation(t *testing.T) {
	rec := newFakeRecognizer()
	src := NewRecognizerSource(rec)

	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// One final and two interims in a single callback: the final is
	// committed on its own, the interims concatenate into the partial.
	rec.ch <- RecognizerEvent{
		ResultIndex: 0,
		Results: []RecognizerResult{
			{Transcript: "مرحبا", IsFinal: true},
			{Transcript: "بكم ", IsFinal: false},
			{Transcript: "في", IsFinal: false},
		},
	}

	events := collect(t, src.Events(), 2)
	if events[0].Kind != Final || events[0].Text != "مرحبا" {
		t.Errorf("event 0 = %+v, expected final %q", events[0], "مرحبا")
	}
	if events[1].Kind != Partial || events[1].Text != "بكم في" {
		t.Errorf("event 1 = %+v, expected partial %q", events[1], "بكم في")
	}

	// ResultIndex skips results the engine already reported.
	rec.ch <- RecognizerEvent{
		ResultIndex: 1,
		Results: []RecognizerResult{
			{Transcript: "مهمل", IsFinal: true},
			{Transcript: "الجديد", IsFinal: false},
		},
	}
	events = collect(t, src.Events(), 1)
	if events[0].Kind != Partial || events[0].Text != "الجديد" {
		t.Errorf("event = %+v, expected partial %q", events[0], "الجديد")
	}
}

func TestRecognizerSourceEndedOnEngineClose(t *testing.T) {
	rec := newFakeRecognizer()
	src := NewRecognizerSource(rec)

	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !rec.aborted {
		t.Error("Close must abort the engine")
	}

	events := collect(t, src.Events(), 1)
	if events[0].Kind != Ended {
		t.Errorf("last event = %+v, expected ended", events[0])
	}
	if _, ok := <-src.Events(); ok {
		t.Error("event channel must close after ended")
	}

	// Close is idempotent.
	if err := src.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestRecognizerSourceErrorTranslation(t *testing.T) {
	rec := newFakeRecognizer()
	src := NewRecognizerSource(rec)

	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	codes := []struct {
		code     string
		expected ErrorKind
	}{
		{"no-speech", KindSilenceTimeout},
		{"not-allowed", KindPermissionDenied},
		{"service-not-allowed", KindPermissionDenied},
		{"audio-capture", KindPermissionDenied},
		{"network", KindTransientClosure},
		{"aborted", KindTransientClosure},
	}

	for _, tt := range codes {
		rec.ch <- RecognizerEvent{ErrCode: tt.code}
		events := collect(t, src.Events(), 1)
		if events[0].Kind != Err {
			t.Errorf("code %q: event = %+v, expected error", tt.code, events[0])
			continue
		}
		if got := KindOf(events[0].Err); got != tt.expected {
			t.Errorf("code %q: kind = %s, expected %s", tt.code, got, tt.expected)
		}
	}
}

func TestRecognizerSourceStartTwice(t *testing.T) {
	rec := newFakeRecognizer()
	src := NewRecognizerSource(rec)

	if err := src.Start(context.Background(), "ar-SA"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if err := src.Start(context.Background(), "ar-SA"); err == nil {
		t.Error("second Start should fail")
	}
}

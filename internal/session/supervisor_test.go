package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aelhadi/mudawin/internal/capture"
	"github.com/aelhadi/mudawin/internal/transcript"
)

type fakeSource struct {
	mu      sync.Mutex
	events  chan capture.Event
	started bool
	closed  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan capture.Event, 16)}
}

func (f *fakeSource) Start(ctx context.Context, language string) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) Events() <-chan capture.Event { return f.events }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeSource) emit(ev capture.Event) { f.events <- ev }

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// sourceFactory hands out fake sources and can be told to fail opens.
type sourceFactory struct {
	mu       sync.Mutex
	sources  []*fakeSource
	failNext int
}

func (f *sourceFactory) open() (capture.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("open refused")
	}
	s := newFakeSource()
	f.sources = append(f.sources, s)
	return s, nil
}

func (f *sourceFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

func (f *sourceFactory) source(i int) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[i]
}

type fakeNotifier struct {
	mu      sync.Mutex
	started int
	stopped int
	errors  []string
}

func (n *fakeNotifier) CaptureStarted() {
	n.mu.Lock()
	n.started++
	n.mu.Unlock()
}

func (n *fakeNotifier) CaptureStopped() {
	n.mu.Lock()
	n.stopped++
	n.mu.Unlock()
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func newTestSupervisor(t *testing.T) (*Supervisor, *sourceFactory, *transcript.Assembler, *fakeNotifier, context.CancelFunc) {
	t.Helper()
	factory := &sourceFactory{}
	assembler := transcript.NewAssembler()
	notifier := &fakeNotifier{}
	s := New("ar-SA", factory.open, assembler, nil, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, factory, assembler, notifier, cancel
}

func TestSupervisorStartDeliversEvents(t *testing.T) {
	s, factory, assembler, notifier, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := s.State(); got != StateStarting {
		t.Errorf("state after Start = %s, expected %s", got, StateStarting)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Partial, Text: "مرحـ"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })
	waitFor(t, "partial applied", func() bool { return assembler.Partial() == "مرحـ" })

	src.emit(capture.Event{Kind: capture.Final, Text: "مرحبا"})
	waitFor(t, "final committed", func() bool { return assembler.Buffer() == "مرحبا " })

	if notifier.started != 1 {
		t.Errorf("started notifications = %d, expected 1", notifier.started)
	}
}

func TestSupervisorStartWhileActiveFails(t *testing.T) {
	s, _, _, _, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start should fail while capture is active")
	}
}

func TestSupervisorAutoRestart(t *testing.T) {
	s, factory, assembler, notifier, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Final, Text: "الجزء الأول"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })

	// Engine ends unilaterally; the supervisor reopens in place.
	src.Close()
	waitFor(t, "second session opened", func() bool { return factory.count() == 2 })

	src2 := factory.source(1)
	src2.emit(capture.Event{Kind: capture.Final, Text: "الجزء الثاني"})
	waitFor(t, "listening again", func() bool { return s.State() == StateListening })
	waitFor(t, "segments joined across restart", func() bool {
		return assembler.Buffer() == "الجزء الأول الجزء الثاني "
	})

	// The restart is transparent: only the user-visible start notifies.
	if notifier.started != 1 {
		t.Errorf("started notifications = %d, expected 1", notifier.started)
	}
}

func TestSupervisorReopenRetryAfterFailure(t *testing.T) {
	s, factory, _, _, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Partial, Text: "نص"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })

	// First reopen fails synchronously; the delayed retry must succeed.
	factory.mu.Lock()
	factory.failNext = 1
	factory.mu.Unlock()

	src.Close()
	waitFor(t, "retry opened a session", func() bool { return factory.count() == 2 })
}

func TestSupervisorUserStop(t *testing.T) {
	s, factory, assembler, notifier, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Final, Text: "مثبت"})
	src.emit(capture.Event{Kind: capture.Partial, Text: "فرضية"})
	waitFor(t, "partial applied", func() bool { return assembler.Partial() == "فرضية" })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("state after Stop = %s, expected %s", got, StateStopped)
	}
	if got := assembler.Partial(); got != "" {
		t.Errorf("partial after Stop = %q, expected empty", got)
	}
	waitFor(t, "source closed", src.isClosed)

	// A final queued by the superseded session is discarded, not committed.
	// (The fake channel is closed, so emit through a fresh snapshot check.)
	time.Sleep(50 * time.Millisecond)
	if got := assembler.Buffer(); got != "مثبت " {
		t.Errorf("Buffer() = %q after stop, expected %q", got, "مثبت ")
	}
	if factory.count() != 1 {
		t.Errorf("sessions opened = %d, user stop must not trigger a reopen", factory.count())
	}

	// Stop again is a no-op.
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if notifier.stopped != 1 {
		t.Errorf("stopped notifications = %d, expected 1", notifier.stopped)
	}
}

func TestSupervisorSupersededFinalDiscarded(t *testing.T) {
	s, factory, assembler, _, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Partial, Text: "نص"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The session is detached now; a final it had in flight goes nowhere.
	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		src.events <- capture.Event{Kind: capture.Final, Text: "متأخر"}
	}

	time.Sleep(50 * time.Millisecond)
	if got := assembler.Buffer(); got != "" {
		t.Errorf("Buffer() = %q, superseded final must be discarded", got)
	}
}

func TestSupervisorTerminalError(t *testing.T) {
	s, factory, assembler, notifier, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Partial, Text: "فرضية"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })

	src.emit(capture.Event{
		Kind: capture.Err,
		Err:  capture.NewError(capture.KindPermissionDenied, errors.New("engine: not-allowed")),
	})

	waitFor(t, "failed state", func() bool { return s.State() == StateFailed })
	waitFor(t, "user notified", func() bool { return notifier.errorCount() == 1 })

	if got := assembler.Partial(); got != "" {
		t.Errorf("partial after terminal error = %q, expected empty", got)
	}
	notifier.mu.Lock()
	msg := notifier.errors[0]
	notifier.mu.Unlock()
	if msg != "يجب السماح بالوصول إلى الميكروفون لبدء التفريغ." {
		t.Errorf("unexpected error message: %q", msg)
	}

	time.Sleep(50 * time.Millisecond)
	if factory.count() != 1 {
		t.Errorf("sessions opened = %d, terminal errors must not trigger a reopen", factory.count())
	}

	// Manual restart after the user resolved the failure.
	if err := s.Start(); err != nil {
		t.Fatalf("Start after failure should succeed: %v", err)
	}
}

func TestSupervisorSilenceTimeoutIgnored(t *testing.T) {
	s, factory, _, notifier, cancel := newTestSupervisor(t)
	defer cancel()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src := factory.source(0)
	src.emit(capture.Event{Kind: capture.Partial, Text: "نص"})
	waitFor(t, "listening state", func() bool { return s.State() == StateListening })

	src.emit(capture.Event{
		Kind: capture.Err,
		Err:  capture.NewError(capture.KindSilenceTimeout, errors.New("engine: no-speech")),
	})

	time.Sleep(50 * time.Millisecond)
	if got := s.State(); got != StateListening {
		t.Errorf("state after silence timeout = %s, expected %s", got, StateListening)
	}
	if notifier.errorCount() != 0 {
		t.Errorf("silence timeouts must not notify, got %d notifications", notifier.errorCount())
	}
}

// Package session supervises capture sessions: it owns the one active
// session, restarts it transparently when it ends without a user stop, and
// routes its events into the transcript assembler.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aelhadi/mudawin/internal/capture"
	"github.com/aelhadi/mudawin/internal/notify"
	"github.com/aelhadi/mudawin/internal/playback"
	"github.com/aelhadi/mudawin/internal/transcript"
)

// reopenBackoff is the single delayed retry after a synchronous reopen
// failure during recovery.
const reopenBackoff = 500 * time.Millisecond

// OpenFunc builds a fresh capture source for each session attempt.
type OpenFunc func() (capture.Source, error)

// captureSession is one attempt to run a capture source. A recovery restart
// creates a new one; the supervisor only ever listens to the current one,
// so events queued by a superseded session are discarded.
type captureSession struct {
	seq    int
	source capture.Source
	events <-chan capture.Event
}

type Supervisor struct {
	language  string
	open      OpenFunc
	assembler *transcript.Assembler
	sync      *playback.Synchronizer
	notifier  notify.Notifier

	cmds chan func()
	quit chan struct{}

	// Loop-owned state; touched only from Run's goroutine.
	ctx       context.Context
	state     State
	userStop  bool
	session   *captureSession
	seq       int
	retryCh   <-chan time.Time
	retried   bool
	stateSubs []func(State)
}

func New(language string, open OpenFunc, assembler *transcript.Assembler, sync *playback.Synchronizer, notifier notify.Notifier) *Supervisor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Supervisor{
		language:  language,
		open:      open,
		assembler: assembler,
		sync:      sync,
		notifier:  notifier,
		cmds:      make(chan func(), 16),
		quit:      make(chan struct{}),
		state:     StateIdle,
	}
}

// Run processes commands and session events one at a time until ctx is
// cancelled. All state transitions happen on this goroutine; callers must
// start Run before issuing commands.
func (s *Supervisor) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.quit)
	for {
		var events <-chan capture.Event
		if s.session != nil {
			events = s.session.events
		}

		select {
		case fn := <-s.cmds:
			fn()

		case ev, ok := <-events:
			if !ok {
				s.handleEnded()
				continue
			}
			s.handleEvent(ev)

		case <-s.retryCh:
			s.retryCh = nil
			s.retryReopen()

		case <-ctx.Done():
			s.teardown()
			return
		}
	}
}

// do runs fn on the supervisor goroutine and waits for it.
func (s *Supervisor) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-s.quit:
		return
	}
	select {
	case <-done:
	case <-s.quit:
	}
}

// Start begins capture. No-op error if capture is already active.
func (s *Supervisor) Start() error {
	var err error
	s.do(func() { err = s.startLocked() })
	return err
}

// Stop ends capture at the user's request. Calling it again is a no-op.
func (s *Supervisor) Stop() error {
	s.do(func() { s.stopLocked() })
	return nil
}

func (s *Supervisor) State() State {
	st := StateIdle
	s.do(func() { st = s.state })
	return st
}

func (s *Supervisor) startLocked() error {
	next, err := Transition(s.state, TriggerStart)
	if err != nil {
		return fmt.Errorf("capture already active (state=%s)", s.state)
	}
	prev := s.state
	s.userStop = false
	s.setState(next)

	if err := s.openSession(); err != nil {
		log.Printf("supervisor: start failed: %v", err)
		s.setState(prev)
		return err
	}

	if s.sync != nil {
		s.sync.OnCaptureStart()
	}
	s.notifier.CaptureStarted()
	return nil
}

func (s *Supervisor) stopLocked() {
	if !s.state.Active() {
		return
	}

	// Flag first: any ended observed from here on is user-requested.
	s.userStop = true
	s.retryCh = nil

	next, _ := Transition(s.state, TriggerStop)
	s.setState(next)

	s.assembler.ClearPartial()
	if s.sync != nil {
		s.sync.OnUserStop()
	}

	sess := s.detach()
	if sess != nil {
		go s.closeAndFlush(sess)
	}
	s.notifier.CaptureStopped()
}

// closeAndFlush closes a stopped session off the supervisor goroutine
// (closing the batch variant blocks on transcription) and commits any
// close-time flush text.
func (s *Supervisor) closeAndFlush(sess *captureSession) {
	if err := sess.source.Close(); err != nil {
		log.Printf("supervisor: close session %d: %v", sess.seq, err)
	}

	flusher, ok := sess.source.(capture.Flusher)
	if !ok {
		return
	}
	text, err := flusher.FlushText()
	if err != nil {
		log.Printf("supervisor: flush session %d: %v", sess.seq, err)
		s.notifier.Error(messageFor(capture.KindOf(err)))
		return
	}
	if text == "" {
		return
	}

	select {
	case s.cmds <- func() { s.assembler.OnFinal(text) }:
	case <-s.quit:
	}
}

func (s *Supervisor) handleEvent(ev capture.Event) {
	// First event from a fresh session means the engine is live.
	if s.state == StateStarting || s.state == StateRestarting {
		if next, err := Transition(s.state, TriggerReady); err == nil {
			s.setState(next)
		}
	}

	switch ev.Kind {
	case capture.Partial:
		s.assembler.OnPartial(ev.Text)

	case capture.Final:
		s.assembler.OnFinal(ev.Text)

	case capture.Err:
		s.handleError(ev.Err)

	case capture.Ended:
		s.handleEnded()
	}
}

func (s *Supervisor) handleError(err error) {
	kind := capture.KindOf(err)
	switch {
	case kind == capture.KindSilenceTimeout:
		// Expected during quiet stretches; keep listening.

	case kind.Terminal():
		log.Printf("supervisor: terminal capture error: %v", err)
		s.setState(StateFailed)
		s.assembler.ClearPartial()
		s.retryCh = nil

		sess := s.detach()
		if sess != nil {
			go func() { _ = sess.source.Close() }()
		}
		s.notifier.Error(messageFor(kind))

	default:
		log.Printf("supervisor: transient capture error: %v", err)
	}
}

func (s *Supervisor) handleEnded() {
	sess := s.detach()
	if sess != nil {
		go func() { _ = sess.source.Close() }()
	}

	// The flag check happens here, at the point of acting, so last-moment
	// stop requests always win over a queued ended.
	if s.userStop || s.state == StateFailed {
		return
	}

	next, err := Transition(s.state, TriggerEnded)
	if err != nil {
		// Already Starting/Restarting: a reopen is in flight.
		return
	}
	s.setState(next)

	log.Printf("supervisor: session ended unexpectedly, reopening")
	s.retried = false
	if err := s.openSession(); err != nil {
		log.Printf("supervisor: reopen failed: %v, retrying in %v", err, reopenBackoff)
		s.retryCh = time.After(reopenBackoff)
	}
	// Playback deliberately untouched on supervisor-driven restarts.
}

func (s *Supervisor) retryReopen() {
	if s.state != StateRestarting || s.userStop || s.retried {
		return
	}
	s.retried = true
	if err := s.openSession(); err != nil {
		// Give up silently for this cycle; transient restart hiccups are
		// not surfaced to the user.
		log.Printf("supervisor: reopen retry failed: %v", err)
	}
}

// openSession creates and starts a new capture session and attaches its
// event stream.
func (s *Supervisor) openSession() error {
	src, err := s.open()
	if err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}
	if err := src.Start(s.ctx, s.language); err != nil {
		_ = src.Close()
		return fmt.Errorf("start capture source: %w", err)
	}

	s.seq++
	s.session = &captureSession{
		seq:    s.seq,
		source: src,
		events: src.Events(),
	}
	log.Printf("supervisor: capture session %d open", s.seq)
	return nil
}

// detach removes the current session from the loop and drains its queued
// events so the source's goroutines never block. Drained events are
// discarded: they belong to a superseded session.
func (s *Supervisor) detach() *captureSession {
	sess := s.session
	s.session = nil
	if sess != nil {
		go func(ch <-chan capture.Event) {
			for range ch {
			}
		}(sess.events)
	}
	return sess
}

func (s *Supervisor) setState(next State) {
	if next == s.state {
		return
	}
	log.Printf("supervisor: %s -> %s", s.state, next)
	s.state = next
	for _, fn := range s.stateSubs {
		fn(next)
	}
}

// SubscribeState registers fn to run on the supervisor goroutine after
// every state change. Must be called before Run.
func (s *Supervisor) SubscribeState(fn func(State)) {
	s.stateSubs = append(s.stateSubs, fn)
}

func (s *Supervisor) teardown() {
	sess := s.detach()
	if sess != nil {
		_ = sess.source.Close()
	}
}

func messageFor(kind capture.ErrorKind) string {
	switch kind {
	case capture.KindPermissionDenied:
		return "يجب السماح بالوصول إلى الميكروفون لبدء التفريغ."
	case capture.KindBackendFatal:
		return "تعذر الاتصال بخدمة التفريغ. يرجى إعادة المحاولة."
	default:
		return "حدث خطأ أثناء التفريغ."
	}
}

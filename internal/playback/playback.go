// Package playback couples capture lifecycle to the audio transport.
package playback

import (
	"log"
	"time"
)

// Transport is the opaque audio player boundary. It owns playback state;
// the rest of the system only reads it and requests changes.
type Transport interface {
	Load(path string) error
	Play() error
	Pause() error
	Playing() (bool, error)
	Position() (time.Duration, error)
	Duration() (time.Duration, error)
	Seek(pos time.Duration) error
	SetRate(rate float64) error
	Close() error
}

// Policy selects how capture lifecycle touches playback.
type Policy struct {
	// StartOnCapture starts paused playback when capture starts.
	StartOnCapture bool
	// RewindOnStop rewinds by RewindOffset on a user-requested stop so the
	// last phrase can be re-heard before manual correction.
	RewindOnStop bool
	RewindOffset time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		StartOnCapture: true,
		RewindOnStop:   false,
		RewindOffset:   1500 * time.Millisecond,
	}
}

// Synchronizer applies the policy. Playback failures are logged, never
// fatal to capture.
type Synchronizer struct {
	transport Transport
	policy    Policy
}

func NewSynchronizer(transport Transport, policy Policy) *Synchronizer {
	return &Synchronizer{transport: transport, policy: policy}
}

// OnCaptureStart starts playback if it is paused, best effort.
func (s *Synchronizer) OnCaptureStart() {
	if s.transport == nil || !s.policy.StartOnCapture {
		return
	}
	playing, err := s.transport.Playing()
	if err != nil {
		log.Printf("playback: query state: %v", err)
		return
	}
	if playing {
		return
	}
	if err := s.transport.Play(); err != nil {
		log.Printf("playback: start failed: %v", err)
	}
}

// OnUserStop applies the stop policy. Supervisor-driven restarts never
// reach here; they leave playback alone.
func (s *Synchronizer) OnUserStop() {
	if s.transport == nil || !s.policy.RewindOnStop {
		return
	}
	pos, err := s.transport.Position()
	if err != nil {
		log.Printf("playback: query position: %v", err)
		return
	}
	pos -= s.policy.RewindOffset
	if pos < 0 {
		pos = 0
	}
	if err := s.transport.Seek(pos); err != nil {
		log.Printf("playback: rewind failed: %v", err)
	}
}

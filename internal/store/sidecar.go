package store

import (
	"log"
	"sync"
	"time"
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// Sidecar debounces draft writes: every buffer mutation restarts a delay
// timer and only the latest state is persisted when it fires. Mutations
// within the window coalesce into one write. Persistence failures are
// logged, never surfaced.
type Sidecar struct {
	store *Store
	key   string

	delay       time.Duration
	savedWindow time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	savedTimer *time.Timer
	status     Status
	pending    string
	dirty      bool
	closed     bool
}

func NewSidecar(store *Store, key string, delay, savedWindow time.Duration) *Sidecar {
	if delay <= 0 {
		delay = time.Second
	}
	if savedWindow <= 0 {
		savedWindow = 2 * time.Second
	}
	return &Sidecar{
		store:       store,
		key:         key,
		delay:       delay,
		savedWindow: savedWindow,
		status:      StatusIdle,
	}
}

// Note records a new buffer state, (re)starting the debounce timer.
func (c *Sidecar) Note(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.pending = text
	c.dirty = true
	c.status = StatusSaving

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
}

func (c *Sidecar) fire() {
	c.mu.Lock()
	// The timer may fire after teardown; saving must then be a no-op.
	if c.closed || !c.dirty {
		c.mu.Unlock()
		return
	}
	text := c.pending
	c.dirty = false
	c.mu.Unlock()

	if err := c.store.SaveDraft(c.key, text); err != nil {
		log.Printf("sidecar: %v", err)
		c.setStatus(StatusIdle)
		return
	}

	c.setStatus(StatusSaved)

	c.mu.Lock()
	if c.savedTimer != nil {
		c.savedTimer.Stop()
	}
	c.savedTimer = time.AfterFunc(c.savedWindow, func() {
		c.mu.Lock()
		if c.status == StatusSaved {
			c.status = StatusIdle
		}
		c.mu.Unlock()
	})
	c.mu.Unlock()
}

func (c *Sidecar) setStatus(st Status) {
	c.mu.Lock()
	if !c.closed {
		c.status = st
	}
	c.mu.Unlock()
}

func (c *Sidecar) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Flush writes any pending draft immediately, used at shutdown.
func (c *Sidecar) Flush() {
	c.mu.Lock()
	if c.closed || !c.dirty {
		c.mu.Unlock()
		return
	}
	text := c.pending
	c.dirty = false
	c.mu.Unlock()

	if err := c.store.SaveDraft(c.key, text); err != nil {
		log.Printf("sidecar: flush: %v", err)
	}
}

// Close stops the timers. Pending state is flushed first.
func (c *Sidecar) Close() {
	c.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.savedTimer != nil {
		c.savedTimer.Stop()
	}
	c.status = StatusIdle
}

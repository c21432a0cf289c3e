// Package transcript owns the authoritative transcript buffer and the
// ephemeral partial hypothesis displayed alongside it.
package transcript

import (
	"strings"
	"sync"
)

// Assembler merges committed final segments into the transcript buffer
// under strict append discipline and holds the latest not-yet-committed
// partial text separately. It is the buffer's single mutable owner;
// everyone else gets read snapshots and mutation entry points.
type Assembler struct {
	mu      sync.Mutex
	buffer  string
	partial string

	subscribers []func(buffer string)
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Subscribe registers fn to run after every buffer mutation with the new
// buffer contents. Subscribers must not call back into the assembler.
func (a *Assembler) Subscribe(fn func(buffer string)) {
	a.mu.Lock()
	a.subscribers = append(a.subscribers, fn)
	a.mu.Unlock()
}

// OnPartial replaces the partial text verbatim. Successive partials do not
// merge; the engine reports a cumulative hypothesis for the current
// utterance, so last write wins.
func (a *Assembler) OnPartial(text string) {
	a.mu.Lock()
	a.partial = text
	a.mu.Unlock()
}

// OnFinal appends a confirmed segment. Both sides are trimmed and rejoined
// with exactly one separating space, and the buffer keeps exactly one
// trailing space ready for the next append. Clears the partial.
func (a *Assembler) OnFinal(text string) {
	a.mu.Lock()
	joined := strings.TrimSpace(a.buffer) + " " + strings.TrimSpace(text)
	a.buffer = strings.TrimSpace(joined) + " "
	a.partial = ""
	subs, buf := a.snapshotLocked()
	a.mu.Unlock()

	notify(subs, buf)
}

// OnManualEdit replaces the whole buffer with user-authored text, verbatim.
// No trimming: manual edits are freeform.
func (a *Assembler) OnManualEdit(text string) {
	a.mu.Lock()
	a.buffer = text
	subs, buf := a.snapshotLocked()
	a.mu.Unlock()

	notify(subs, buf)
}

// OnClear empties the buffer. Confirmation is the caller's responsibility.
func (a *Assembler) OnClear() {
	a.mu.Lock()
	a.buffer = ""
	subs, buf := a.snapshotLocked()
	a.mu.Unlock()

	notify(subs, buf)
}

// ClearPartial drops the in-flight hypothesis, e.g. when capture stops. An
// unconfirmed partial is never promoted to the buffer.
func (a *Assembler) ClearPartial() {
	a.mu.Lock()
	a.partial = ""
	a.mu.Unlock()
}

// Seed sets the initial buffer from a restored draft without notifying
// subscribers.
func (a *Assembler) Seed(text string) {
	a.mu.Lock()
	a.buffer = text
	a.mu.Unlock()
}

func (a *Assembler) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer
}

func (a *Assembler) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.partial
}

// Display is what the presentation layer renders: committed text followed
// by the current hypothesis.
func (a *Assembler) Display() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer + a.partial
}

func (a *Assembler) snapshotLocked() ([]func(string), string) {
	subs := make([]func(string), len(a.subscribers))
	copy(subs, a.subscribers)
	return subs, a.buffer
}

func notify(subs []func(string), buffer string) {
	for _, fn := range subs {
		fn(buffer)
	}
}

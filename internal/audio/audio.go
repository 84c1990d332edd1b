// Package audio delivers session sound cues. The engine only emits events;
// a Notifier decides what, if anything, is played.
package audio

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Event is a discrete cue emitted by a session.
type Event int

// Events.
const (
	KeyAccepted Event = iota + 1
	KeyRejected
	TestFinished
)

func (e Event) String() string {
	switch e {
	case KeyAccepted:
		return "key_accepted"
	case KeyRejected:
		return "key_rejected"
	case TestFinished:
		return "test_finished"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Notifier receives session events. Errors are reported to the caller for
// logging only and must never influence session state.
type Notifier interface {
	Notify(Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) error { return f(e) }

// Nop drops every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Event) error { return nil }

const bel = "\a"

// TerminalPath is the controlling terminal. Writing the bell there keeps it
// off the stdout stream the renderer owns.
const TerminalPath = "/dev/tty"

// Bell rings the terminal bell on rejected keys and once more on completion.
// Accepted keys are silent.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell returns a Bell writing to w, usually the controlling terminal.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// OpenBell opens path for writing and returns a Bell ringing on it. Close
// releases the handle.
func OpenBell(path string) (*Bell, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for the bell: %w", path, err)
	}
	return NewBell(f), nil
}

// Close closes the underlying writer when it is an io.Closer.
func (b *Bell) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Notify implements Notifier.
func (b *Bell) Notify(e Event) error {
	switch e {
	case KeyRejected, TestFinished:
	default:
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.w, bel); err != nil {
		return fmt.Errorf("failed to ring bell: %w", err)
	}
	return nil
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Notifier.
func (r *Recorder) Notify(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

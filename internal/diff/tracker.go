// Package diff tracks typed input against a target text, one rune at a time.
package diff

// Outcome is the effect of a single key on the tracker.
type Outcome int

// Outcomes.
const (
	Ignored Outcome = iota
	Accepted
	Rejected
	Backspaced
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Backspaced:
		return "backspaced"
	default:
		return "ignored"
	}
}

// Typed reports whether the outcome consumed a character of the target.
func (o Outcome) Typed() bool {
	return o == Accepted || o == Rejected
}

// Entry is one typed position.
type Entry struct {
	Expected rune
	Typed    rune
	Correct  bool
}

// Tracker holds the typing state of one session. The zero value tracks an
// empty target.
type Tracker struct {
	target  []rune
	entries []Entry
	errors  int
}

// New returns a tracker for target. The slice is copied.
func New(target []rune) *Tracker {
	return &Tracker{target: append([]rune(nil), target...)}
}

// Extend appends runes to the end of the target. Positions already typed
// are unaffected.
func (t *Tracker) Extend(more []rune) {
	t.target = append(t.target, more...)
}

// Type applies a character key at the caret.
func (t *Tracker) Type(r rune) Outcome {
	caret := len(t.entries)
	if caret >= len(t.target) {
		return Ignored
	}
	expected := t.target[caret]
	correct := r == expected
	t.entries = append(t.entries, Entry{Expected: expected, Typed: r, Correct: correct})
	if !correct {
		t.errors++
		return Rejected
	}
	return Accepted
}

// Backspace removes the last typed entry.
func (t *Tracker) Backspace() Outcome {
	n := len(t.entries)
	if n == 0 {
		return Ignored
	}
	if !t.entries[n-1].Correct {
		t.errors--
	}
	t.entries = t.entries[:n-1]
	return Backspaced
}

// Caret returns the index of the next position to type.
func (t *Tracker) Caret() int { return len(t.entries) }

// Len returns the current target length in runes.
func (t *Tracker) Len() int { return len(t.target) }

// Remaining returns the number of untyped target runes.
func (t *Tracker) Remaining() int { return len(t.target) - len(t.entries) }

// AtEnd reports whether the whole target has been typed.
func (t *Tracker) AtEnd() bool { return len(t.entries) == len(t.target) }

// Errors returns the number of incorrect entries currently typed.
func (t *Tracker) Errors() int { return t.errors }

// Correct returns the number of correct entries currently typed.
func (t *Tracker) Correct() int { return len(t.entries) - t.errors }

// Target returns a copy of the target text.
func (t *Tracker) Target() []rune {
	return append([]rune(nil), t.target...)
}

// Last returns the most recently typed entry.
func (t *Tracker) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Entries returns a copy of the typed entries.
func (t *Tracker) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// CompletedWords counts space-delimited target segments whose every rune
// has been typed, correctly or not.
func (t *Tracker) CompletedWords() int {
	caret := len(t.entries)
	completed := 0
	inWord := false
	for i, r := range t.target {
		if r == ' ' {
			if inWord && i <= caret {
				completed++
			}
			inWord = false
			continue
		}
		inWord = true
	}
	if inWord && caret == len(t.target) {
		completed++
	}
	return completed
}

// WordCount returns the number of space-delimited segments in the target.
func (t *Tracker) WordCount() int {
	count := 0
	inWord := false
	for _, r := range t.target {
		if r == ' ' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

package diff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeString(t *Tracker, s string) []Outcome {
	out := make([]Outcome, 0, len(s))
	for _, r := range s {
		out = append(out, t.Type(r))
	}
	return out
}

func TestTypeMarksCorrectness(t *testing.T) {
	tr := New([]rune("cat"))
	assert.Equal(t, []Outcome{Accepted, Rejected, Accepted}, typeString(tr, "cot"))
	assert.Equal(t, 3, tr.Caret())
	assert.Equal(t, 1, tr.Errors())
	assert.Equal(t, 2, tr.Correct())

	entries := tr.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Expected: 'a', Typed: 'o', Correct: false}, entries[1])
}

func TestTypeAtEndIsIgnored(t *testing.T) {
	tr := New([]rune("ab"))
	typeString(tr, "ab")
	assert.Equal(t, Ignored, tr.Type('c'))
	assert.Equal(t, 2, tr.Caret())
	assert.True(t, tr.AtEnd())
}

func TestBackspaceAtStartIsIgnored(t *testing.T) {
	tr := New([]rune("ab"))
	assert.Equal(t, Ignored, tr.Backspace())
	assert.Equal(t, 0, tr.Caret())
}

func TestBackspaceRemovesError(t *testing.T) {
	tr := New([]rune("ab"))
	typeString(tr, "ax")
	require.Equal(t, 1, tr.Errors())
	assert.Equal(t, Backspaced, tr.Backspace())
	assert.Equal(t, 0, tr.Errors())
	assert.Equal(t, Accepted, tr.Type('b'))
	assert.Equal(t, 0, tr.Errors())
	assert.Equal(t, 2, tr.Correct())
}

func TestBackspaceThenRetypeRestoresState(t *testing.T) {
	tr := New([]rune("hello world"))
	typeString(tr, "helxo")
	before := tr.Entries()
	errorsBefore := tr.Errors()

	tr.Backspace()
	tr.Type('o')

	assert.Equal(t, before, tr.Entries())
	assert.Equal(t, errorsBefore, tr.Errors())
}

func TestCaretMatchesEntriesForRandomInput(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	target := []rune("the quick brown fox jumps")
	tr := New(target)
	for i := 0; i < 2000; i++ {
		if rnd.Intn(4) == 0 {
			tr.Backspace()
		} else {
			tr.Type(rune('a' + rnd.Intn(26)))
		}
		entries := tr.Entries()
		require.Equal(t, tr.Caret(), len(entries))
		wrong := 0
		for j, e := range entries {
			require.Equal(t, target[j], e.Expected)
			if !e.Correct {
				wrong++
			}
		}
		require.Equal(t, wrong, tr.Errors())
	}
}

func TestExtendKeepsTypedPrefix(t *testing.T) {
	tr := New([]rune("ab"))
	typeString(tr, "ab")
	assert.Equal(t, Ignored, tr.Type(' '))
	tr.Extend([]rune(" cd"))
	assert.Equal(t, Accepted, tr.Type(' '))
	assert.Equal(t, 2, tr.Remaining())
	assert.Equal(t, "ab cd", string(tr.Target()))
}

func TestCompletedWords(t *testing.T) {
	tr := New([]rune("cat dog owl"))
	assert.Equal(t, 3, tr.WordCount())
	assert.Equal(t, 0, tr.CompletedWords())

	typeString(tr, "ca")
	assert.Equal(t, 0, tr.CompletedWords())
	typeString(tr, "x")
	assert.Equal(t, 1, tr.CompletedWords())
	typeString(tr, " dig o")
	assert.Equal(t, 2, tr.CompletedWords())
	typeString(tr, "wl")
	assert.Equal(t, 3, tr.CompletedWords())
}

func TestOutcomeTyped(t *testing.T) {
	assert.True(t, Accepted.Typed())
	assert.True(t, Rejected.Typed())
	assert.False(t, Backspaced.Typed())
	assert.False(t, Ignored.Typed())
	assert.Equal(t, "rejected", Rejected.String())
}

func TestLast(t *testing.T) {
	tr := New([]rune("ab"))
	_, ok := tr.Last()
	assert.False(t, ok)
	tr.Type('x')
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, Entry{Expected: 'a', Typed: 'x'}, last)
}

package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/typist/internal/diff"
)

func entriesFor(target, typed string) []diff.Entry {
	tr := diff.New([]rune(target))
	for _, r := range typed {
		tr.Type(r)
	}
	return tr.Entries()
}

func TestBuildStyledRunesCursor(t *testing.T) {
	target := []rune("ab")
	input := entriesFor("ab", "a")
	cursorIndex := len(input)

	runes := buildStyledRunes(target, input, cursorIndex)
	if len(runes) != 2 {
		t.Fatalf("expected 2 runes, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for first rune")
	}
	if runes[1].s != cursorStyle.Render("b") {
		t.Fatalf("expected cursor style for second rune")
	}
}

func TestBuildStyledRunesNoCursorWhenComplete(t *testing.T) {
	target := []rune("a")
	input := entriesFor("a", "a")
	cursorIndex := -1

	runes := buildStyledRunes(target, input, cursorIndex)
	if len(runes) != 1 {
		t.Fatalf("expected 1 rune, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for completed rune")
	}
}

func TestBuildStyledRunesKeepsTargetOnMistype(t *testing.T) {
	target := []rune("ab")
	input := entriesFor("ab", "ax")
	cursorIndex := len(input)

	runes := buildStyledRunes(target, input, cursorIndex)
	if len(runes) != 2 {
		t.Fatalf("expected 2 runes, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for first rune")
	}
	if runes[1].s != incorrectStyle.Render("b") {
		t.Fatalf("expected incorrect style for second rune")
	}
}

func TestBuildStyledRunesWordHighlighting(t *testing.T) {
	target := []rune("one two")
	input := entriesFor("one two", "o")
	cursorIndex := len(input)

	runes := buildStyledRunes(target, input, cursorIndex)
	if runes[0].s != correctStyle.Render("o") {
		t.Fatalf("expected correct style for typed rune")
	}
	if runes[1].s != currentWordStyle.Render("n") {
		t.Fatalf("expected current word style for untyped in current word")
	}
	if runes[2].s != currentWordStyle.Render("e") {
		t.Fatalf("expected current word style for untyped in current word")
	}
	if runes[4].s != pendingStyle.Render("t") {
		t.Fatalf("expected pending style for next word")
	}
	if runes[6].s != pendingStyle.Render("o") {
		t.Fatalf("expected pending style for next word")
	}
}

func TestBuildStyledRunesWrongSpaceDot(t *testing.T) {
	target := []rune("a b")
	input := entriesFor("a b", "ax")
	cursorIndex := len(input)

	runes := buildStyledRunes(target, input, cursorIndex)
	if len(runes) != 3 {
		t.Fatalf("expected 3 runes, got %d", len(runes))
	}
	if runes[1].s != incorrectStyle.Render("•") {
		t.Fatalf("expected red dot for wrong space")
	}
}

func plainRunes(text string) []styledRune {
	out := make([]styledRune, 0, len(text))
	for i, r := range []rune(text) {
		out = append(out, styledRune{s: string(r), width: 1, isSpace: r == ' ', index: i})
	}
	return out
}

func TestWrapStyledRunesBreaksAtSpaces(t *testing.T) {
	got := wrapStyledRunes(plainRunes("one two three"), 7)
	want := "one two\nthree"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapStyledRunesSplitsLongWords(t *testing.T) {
	got := wrapStyledRunes(plainRunes("abcdefgh"), 3)
	want := "abc\ndef\ngh"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVisibleWindowFollowsCursor(t *testing.T) {
	runes := plainRunes("aa bb cc dd ee")
	if got := visibleWindow(runes, 0, 2, 2); got != "aa\nbb" {
		t.Fatalf("unexpected window at start: %q", got)
	}
	// Cursor on "dd" keeps one line of context above.
	if got := visibleWindow(runes, 9, 2, 2); got != "cc\ndd" {
		t.Fatalf("unexpected window mid-text: %q", got)
	}
	// The dropped space after "cc" belongs to the next line.
	if got := visibleWindow(runes, 8, 2, 2); got != "cc\ndd" {
		t.Fatalf("unexpected window on break space: %q", got)
	}
	if got := visibleWindow(runes, 13, 2, 2); got != "dd\nee" {
		t.Fatalf("unexpected window at end: %q", got)
	}
	if got := visibleWindow(runes, 0, 2, 0); strings.Count(got, "\n") != 4 {
		t.Fatalf("expected the whole text without a window, got %q", got)
	}
}

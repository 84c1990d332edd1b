package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typist/internal/diff"
)

const wrongSpaceRune = '•'

type styledRune struct {
	s       string
	width   int
	isSpace bool
	index   int
}

func buildStyledRunes(target []rune, entries []diff.Entry, cursorIndex int) []styledRune {
	words := findWords(target)
	currentWord := wordForCursor(words, cursorIndex)

	out := make([]styledRune, 0, len(target))
	for i, expected := range target {
		displayed := expected
		style := pendingStyle
		if i < len(entries) {
			switch {
			case entries[i].Correct:
				style = correctStyle
			case expected == ' ':
				displayed = wrongSpaceRune
				style = incorrectStyle
			default:
				style = incorrectStyle
			}
		} else if expected != ' ' && currentWord != nil && i >= currentWord.start && i < currentWord.end {
			style = currentWordStyle
		}
		if i == cursorIndex && i >= len(entries) {
			style = cursorStyle
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: expected == ' ',
			index:   i,
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func findWords(target []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range target {
		if r == ' ' {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(target)})
	}
	return words
}

func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 {
		return nil
	}
	if cursorIndex < 0 {
		return &words[0]
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return &words[len(words)-1]
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapLines breaks runes into lines no wider than width, preferring to break
// at spaces. The space at a break is dropped.
func wrapLines(runes []styledRune, width int) [][]styledRune {
	if width <= 0 {
		return [][]styledRune{runes}
	}
	var lines [][]styledRune
	line := make([]styledRune, 0, width)
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			switch {
			case item.isSpace:
				lines = append(lines, line)
				line = []styledRune{}
				lineWidth = 0
				lastSpaceIdx = -1
				i++
			case lastSpaceIdx >= 0:
				lines = append(lines, line[:lastSpaceIdx])
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			default:
				lines = append(lines, line)
				line = []styledRune{}
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	return append(lines, line)
}

func wrapStyledRunes(runes []styledRune, width int) string {
	lines := wrapLines(runes, width)
	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = renderStyledRunes(line)
	}
	return strings.Join(rendered, "\n")
}

// visibleWindow renders at most n wrapped lines, scrolled so that the line
// holding the cursor is the first or second one shown. A negative cursor
// index means the whole text has been typed.
func visibleWindow(runes []styledRune, cursorIndex, width, n int) string {
	lines := wrapLines(runes, width)
	if n <= 0 || len(lines) <= n {
		return wrapStyledRunes(runes, width)
	}
	cursorLine := len(lines) - 1
	for i, line := range lines {
		if cursorIndex < 0 {
			break
		}
		if len(line) > 0 && line[len(line)-1].index >= cursorIndex {
			cursorLine = i
			break
		}
	}
	start := max(0, cursorLine-1)
	start = min(start, len(lines)-n)
	rendered := make([]string, 0, n)
	for _, line := range lines[start : start+n] {
		rendered = append(rendered, renderStyledRunes(line))
	}
	return strings.Join(rendered, "\n")
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}

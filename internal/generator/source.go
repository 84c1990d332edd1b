package generator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrExhausted signals that a source has no more words to hand out. It may
// accompany a final, short batch of words.
var ErrExhausted = errors.New("text source exhausted")

// Source supplies target words for a session.
type Source interface {
	// Request returns at least minWords words for lang, or fewer words
	// together with ErrExhausted.
	Request(lang string, minWords int) ([]string, error)
}

// RandomSource draws words from a word list. It never runs out.
type RandomSource struct {
	gen   *Generator
	lang  string
	words []string
	deco  Decoration

	mu         sync.Mutex
	weakSet    map[rune]struct{}
	weakFactor float64
}

// NewRandomSource returns a source over words for a single language.
func NewRandomSource(gen *Generator, lang string, words []string, deco Decoration) (*RandomSource, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("word list for %q is empty", lang)
	}
	return &RandomSource{gen: gen, lang: lang, words: words, deco: deco}, nil
}

// FocusWeak biases later requests toward the given characters. An empty set
// restores uniform selection.
func (s *RandomSource) FocusWeak(weakSet map[rune]struct{}, factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weakSet = weakSet
	s.weakFactor = factor
}

// Request implements Source.
func (s *RandomSource) Request(lang string, minWords int) ([]string, error) {
	if lang != s.lang {
		return nil, fmt.Errorf("source serves %q, not %q", s.lang, lang)
	}
	if minWords <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.weakSet) > 0 {
		return s.gen.GenerateWeighted(s.words, minWords, s.deco, s.weakSet, s.weakFactor), nil
	}
	return s.gen.Generate(s.words, minWords, s.deco), nil
}

// PassageSource hands out the words of a fixed passage in order and then
// reports exhaustion.
type PassageSource struct {
	mu    sync.Mutex
	words []string
	next  int
}

// NewPassageSource splits text on whitespace.
func NewPassageSource(text string) (*PassageSource, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("passage is empty")
	}
	return &PassageSource{words: words}, nil
}

// Request implements Source. The language is ignored.
func (s *PassageSource) Request(_ string, minWords int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := len(s.words) - s.next
	if remaining <= 0 {
		return nil, ErrExhausted
	}
	if minWords <= 0 {
		return nil, nil
	}
	n := minWords
	if n >= remaining {
		out := append([]string(nil), s.words[s.next:]...)
		s.next = len(s.words)
		if n > remaining {
			return out, ErrExhausted
		}
		return out, nil
	}
	out := append([]string(nil), s.words[s.next:s.next+n]...)
	s.next += n
	return out, nil
}

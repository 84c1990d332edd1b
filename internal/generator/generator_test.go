package generator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCountAndVocabulary(t *testing.T) {
	gen := NewWithSeed(1)
	words := []string{"cat", "dog", "owl"}
	out := gen.Generate(words, 20, Decoration{})
	require.Len(t, out, 20)
	for _, w := range out {
		assert.Contains(t, words, w)
	}
}

func TestGenerateAppliesDecoration(t *testing.T) {
	gen := NewWithSeed(2)
	out := gen.Generate([]string{"cat"}, 5, Decoration{CapsPct: 1, PunctPct: 1, PunctSet: []rune{'!'}})
	for _, w := range out {
		assert.Equal(t, "Cat!", w)
	}
}

func TestGenerateWeightedPrefersWeakWords(t *testing.T) {
	gen := NewWithSeed(3)
	words := []string{"aaaa", "bbbb"}
	weak := map[rune]struct{}{'a': {}}
	out := gen.GenerateWeighted(words, 400, Decoration{}, weak, 10)
	countA := 0
	for _, w := range out {
		if w == "aaaa" {
			countA++
		}
	}
	assert.Greater(t, countA, 300)
}

func TestRandomSourceRejectsOtherLanguage(t *testing.T) {
	src, err := NewRandomSource(NewWithSeed(4), "en", []string{"cat"}, Decoration{})
	require.NoError(t, err)
	_, err = src.Request("de", 3)
	assert.Error(t, err)
	words, err := src.Request("en", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "cat", "cat"}, words)
}

func TestPassageSourceExhausts(t *testing.T) {
	src, err := NewPassageSource("the quick brown fox")
	require.NoError(t, err)

	words, err := src.Request("en", 3)
	require.NoError(t, err)
	assert.Equal(t, "the quick brown", strings.Join(words, " "))

	words, err = src.Request("en", 3)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, []string{"fox"}, words)

	words, err = src.Request("en", 1)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Empty(t, words)
}

func TestPassageSourceExactFitIsNotExhaustion(t *testing.T) {
	src, err := NewPassageSource("one two")
	require.NoError(t, err)
	words, err := src.Request("en", 2)
	require.NoError(t, err)
	assert.Len(t, words, 2)
}

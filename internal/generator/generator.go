// Package generator builds typing text sequences.
package generator

import (
	"math/rand"
	"sort"
	"time"
	"unicode"
)

// Decoration controls how plain words are altered before being typed.
type Decoration struct {
	CapsPct  float64
	PunctPct float64
	PunctSet []rune
}

// Generator produces randomized typing text.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate selects words uniformly and applies caps/punctuation rules.
func (g *Generator) Generate(words []string, count int, deco Decoration) []string {
	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, g.decorate(words[g.rnd.Intn(len(words))], deco))
	}
	return result
}

// GenerateWeighted selects words with a bias toward weak characters: a word
// weighs 1 + factor per weak rune it contains.
func (g *Generator) GenerateWeighted(words []string, count int, deco Decoration, weakSet map[rune]struct{}, factor float64) []string {
	cumulative := make([]float64, len(words))
	total := 0.0
	for i, word := range words {
		weakCount := 0
		for _, r := range word {
			if _, ok := weakSet[r]; ok {
				weakCount++
			}
		}
		total += 1.0 + float64(weakCount)*factor
		cumulative[i] = total
	}

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		idx := sort.SearchFloat64s(cumulative, g.rnd.Float64()*total)
		if idx >= len(words) {
			idx = len(words) - 1
		}
		result = append(result, g.decorate(words[idx], deco))
	}
	return result
}

func (g *Generator) decorate(word string, deco Decoration) string {
	word = applyCaps(g.rnd, word, deco.CapsPct)
	return applyPunct(g.rnd, word, deco.PunctPct, deco.PunctSet)
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 || rnd.Float64() > capsPct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 || rnd.Float64() > punctPct {
		return word
	}
	return word + string(punctSet[rnd.Intn(len(punctSet))])
}

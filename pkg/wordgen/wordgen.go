// Package wordgen invents pronounceable words from letter-pair statistics and
// assembles them into paragraphs of fake prose.
package wordgen

import (
	"strings"

	"github.com/CTAG07/whiterabbit/pkg/sampling"
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// Relative frequency of each letter a-z at the start of an English word.
var wordStartFreq = [26]float64{
	0.1154, 0.043, 0.052, 0.032, 0.028, 0.04, 0.016, 0.042, 0.073, 0.0051, 0.0086,
	0.024, 0.038, 0.023, 0.076, 0.043, 0.0022, 0.028, 0.067, 0.16, 0.012, 0.0082,
	0.055, 0.00045, 0.0076, 0.00045,
}

// Probability of word lengths 1 through 13.
var wordLenDistribution = [13]float64{
	0.031500223549973574, 0.1717270251595334, 0.21533959273259357,
	0.15851725399341543, 0.10974271430313375, 0.08657480795024995,
	0.07316180953542249, 0.05690362963866195, 0.04064544974190139,
	0.027435678575783436, 0.01524204365321302, 0.009145226191927812,
	0.004064544974190139,
}

// MaxWordLength is the longest word Word can produce.
const MaxWordLength = len(wordLenDistribution)

var (
	startWeights  = weightsOf(wordStartFreq[:], func(i int) byte { return letters[i] })
	lengthWeights = weightsOf(wordLenDistribution[:], func(i int) int { return i + 1 })
)

func weightsOf[T any](freqs []float64, item func(int) T) []sampling.Weighted[T] {
	out := make([]sampling.Weighted[T], len(freqs))
	for i, f := range freqs {
		out[i] = sampling.Weighted[T]{Item: item(i), Weight: f}
	}
	return out
}

// Synthesizer produces invented words and paragraphs. A Synthesizer is safe for
// concurrent use only if its Source is.
type Synthesizer struct {
	table Table
	src   sampling.Source
}

// New creates a Synthesizer over table. A nil src selects sampling.Global.
func New(table Table, src sampling.Source) *Synthesizer {
	return &Synthesizer{table: table, src: sampling.OrGlobal(src)}
}

// Default returns a Synthesizer over DefaultTable using sampling.Global. If the
// embedded table cannot be loaded, letters after the first are uniform.
func Default() *Synthesizer {
	table, _ := DefaultTable()
	return New(table, nil)
}

// Word returns a lowercase invented word. Its first letter follows the
// word-start distribution, its length follows the word-length distribution,
// and each following letter is drawn from the bigrams of the previous one.
func (s *Synthesizer) Word() string {
	start, _ := sampling.Pick(s.src, startWeights)
	length, _ := sampling.Pick(s.src, lengthWeights)

	word := make([]byte, 1, length)
	word[0] = start
	for len(word) < length {
		last := word[len(word)-1]
		if next, ok := sampling.Pick(s.src, s.table[last]); ok {
			word = append(word, next)
			continue
		}
		word = append(word, letters[s.src.IntN(len(letters))])
	}
	return string(word)
}

// capitalize upper-cases the first letter of an ASCII word.
func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

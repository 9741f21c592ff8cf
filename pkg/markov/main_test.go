package markov

import (
	"context"
	"math/rand/v2"
	"testing"
)

var scenarioCorpus = []string{"The cat sat.", "The dog ran."}

var richCorpus = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A lazy afternoon makes the dog sleepy.",
	"The fox is quick and the dog is slow!",
	"Why does the fox run so fast?",
	"Every dog has its day in the sun.",
	"The sun rises over the quiet hills.",
	"Quiet hills hide a sleepy village.",
	"In the village the people sing at night.",
	"People sing songs about the brave fox.",
	"Brave hearts run toward the rising sun.",
}

// newTestSource returns a deterministic randomness source for a test.
func newTestSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// setupTestChain builds a chain from sentences with the default tokenizer.
func setupTestChain(t *testing.T, sentences []string) (context.Context, *Chain) {
	t.Helper()
	return context.Background(), Build(sentences, nil)
}

package markov

import (
	"io"
	"log/slog"
	"sort"
)

// Edge is a single outgoing transition of a token in the chain.
type Edge struct {
	Token string
	Count int
}

// Chain is a first-order word Markov chain built from a corpus of sentences.
// A Chain is immutable once built and is safe for concurrent use.
type Chain struct {
	tokenizer   Tokenizer
	startCounts map[string]int
	tokenCounts map[string]int
	transitions map[string][]Edge
	sentences   int

	// Jump targets for the fallback search, sorted for reproducible sampling.
	wordSources []string // tokens with at least one non-terminal outgoing edge
	anySources  []string // tokens with any outgoing edge

	logger *slog.Logger
}

// Build constructs a Chain from sentences in a single pass. Each sentence is
// tokenized on its own; sentences that produce no tokens are skipped. A nil
// tokenizer selects NewDefaultTokenizer.
func Build(sentences []string, tokenizer Tokenizer) *Chain {
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}

	startCounts := make(map[string]int)
	tokenCounts := make(map[string]int)
	counts := make(map[string]map[string]int)
	used := 0

	for _, sentence := range sentences {
		tokens := tokenizer.Tokenize(sentence)
		if len(tokens) == 0 {
			continue
		}
		used++
		startCounts[tokens[0]]++
		for _, tok := range tokens {
			tokenCounts[tok]++
		}
		for i := 0; i+1 < len(tokens); i++ {
			next, ok := counts[tokens[i]]
			if !ok {
				next = make(map[string]int)
				counts[tokens[i]] = next
			}
			next[tokens[i+1]]++
		}
	}

	return newChain(tokenizer, startCounts, tokenCounts, counts, used)
}

// newChain freezes the counting maps into the sorted edge lists used during
// generation and precomputes the fallback jump targets.
func newChain(tokenizer Tokenizer, startCounts, tokenCounts map[string]int, counts map[string]map[string]int, sentences int) *Chain {
	c := &Chain{
		tokenizer:   tokenizer,
		startCounts: startCounts,
		tokenCounts: tokenCounts,
		transitions: make(map[string][]Edge, len(counts)),
		sentences:   sentences,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for tok, next := range counts {
		edges := make([]Edge, 0, len(next))
		for nt, n := range next {
			if n > 0 {
				edges = append(edges, Edge{Token: nt, Count: n})
			}
		}
		if len(edges) == 0 {
			continue
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Token < edges[j].Token })
		c.transitions[tok] = edges
		c.anySources = append(c.anySources, tok)
		for _, e := range edges {
			if !tokenizer.Terminal(e.Token) {
				c.wordSources = append(c.wordSources, tok)
				break
			}
		}
	}
	sort.Strings(c.anySources)
	sort.Strings(c.wordSources)

	return c
}

// SetLogger sets the logger for the Chain. By default, all logs are discarded.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Tokenizer returns the tokenizer the chain was built with.
func (c *Chain) Tokenizer() Tokenizer {
	return c.tokenizer
}

// Empty reports whether the chain has no tokens at all.
func (c *Chain) Empty() bool {
	return c == nil || len(c.tokenCounts) == 0
}

// Edges returns the outgoing edges of token, sorted by target token. The
// returned slice must not be modified.
func (c *Chain) Edges(token string) []Edge {
	return c.transitions[token]
}

// StartCount returns how many sentences began with token.
func (c *Chain) StartCount(token string) int {
	return c.startCounts[token]
}

// TokenCount returns the global unigram count of token.
func (c *Chain) TokenCount(token string) int {
	return c.tokenCounts[token]
}

// argMax returns the key with the highest count, breaking ties by the
// lexically smallest key so the result does not depend on map order.
func argMax(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && n > 0 && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

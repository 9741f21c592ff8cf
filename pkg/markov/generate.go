package markov

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/CTAG07/whiterabbit/pkg/sampling"
)

const (
	// DefaultMaxTokens is the budget used when none, zero or a negative one is given.
	DefaultMaxTokens = 40
	// RecentWindowSize is how many of the last emitted tokens are penalized.
	RecentWindowSize = 5
	// RecentPenalty scales the weight of an edge whose target was emitted recently.
	RecentPenalty = 0.1
	// WeightExponent damps high-frequency edges: weight = count^WeightExponent.
	WeightExponent = 0.75
)

// Result is the outcome of a generation call.
type Result struct {
	Text         string
	Tokens       int  // number of tokens emitted
	HitMaxLength bool // the token budget was reached
}

// generateOptions Is used by Generate to configure default options.
type generateOptions struct {
	maxTokens  int
	strict     bool
	capitalize bool
	src        sampling.Source
}

// GenerateOption is a function that configures generation parameters.
type GenerateOption func(*generateOptions)

// WithMaxTokens sets the token budget. Values of zero or less select DefaultMaxTokens.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) { o.maxTokens = n }
}

// WithStrictBudget makes generation keep going past sentence-ending marks,
// jumping through the graph as needed, until the budget is met or no
// continuation exists anywhere. Without it, generation stops after the first
// sentence-ending mark.
func WithStrictBudget(strict bool) GenerateOption {
	return func(o *generateOptions) { o.strict = strict }
}

// WithCapitalize selects whether the first character of the output is upper
// case (the default) or lower case.
func WithCapitalize(capitalize bool) GenerateOption {
	return func(o *generateOptions) { o.capitalize = capitalize }
}

// WithSource sets the randomness source. The default is sampling.Global.
func WithSource(src sampling.Source) GenerateOption {
	return func(o *generateOptions) { o.src = src }
}

// Generate continues prompt with a sequence of chain tokens.
//
// The walk starts from the last prompt token known to the chain. That token is
// not repeated in the output. When no prompt token is known, the walk starts
// from the most common sentence start (or the most common token) and that
// token is emitted. An empty chain yields an empty Result.
func (c *Chain) Generate(ctx context.Context, prompt string, opts ...GenerateOption) Result {
	options := &generateOptions{
		maxTokens:  DefaultMaxTokens,
		capitalize: true,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxTokens <= 0 {
		options.maxTokens = DefaultMaxTokens
	}

	if c.Empty() {
		return Result{}
	}
	src := sampling.OrGlobal(options.src)

	promptTokens := c.tokenizer.Tokenize(prompt)
	var lastPrompt string
	if n := len(promptTokens); n > 0 {
		lastPrompt = promptTokens[n-1]
	}

	current, fromPrompt := c.seed(promptTokens)
	if current == "" {
		return Result{}
	}

	out := make([]string, 0, min(options.maxTokens, 256))
	recent := newRecentWindow(RecentWindowSize)
	jumps := 0
	reason := "budget reached"

	for len(out) < options.maxTokens {
		var next string
		if len(out) == 0 && !fromPrompt {
			next = current
		} else {
			var ok bool
			// A punctuation-dominated neighborhood is skipped for the first
			// token in every mode and for every token in strict mode.
			skipDegenerate := options.strict || len(out) == 0
			if next, ok = c.step(current, recent, skipDegenerate, src); !ok {
				if next, ok = c.jump(src, current, true); !ok {
					reason = "no continuation in graph"
					break
				}
				jumps++
			}
		}

		if len(out) == 0 && next == lastPrompt {
			if alt, ok := c.jump(src, lastPrompt, false); ok {
				next = alt
				jumps++
			}
		}

		out = append(out, next)
		recent.push(next)
		current = next

		if !options.strict && c.tokenizer.Terminal(next) {
			reason = "sentence end"
			break
		}
	}

	hit := len(out) >= options.maxTokens
	c.logger.DebugContext(ctx, "Generation finished",
		slog.String("reason", reason),
		slog.Int("max_tokens", options.maxTokens),
		slog.Int("generated_length", len(out)),
		slog.Int("jumps", jumps),
		slog.Bool("strict", options.strict),
	)

	return Result{
		Text:         c.render(out, options.capitalize),
		Tokens:       len(out),
		HitMaxLength: hit,
	}
}

// seed picks the starting token: the last prompt token that has outgoing
// edges, then the most common sentence start, then the most common token.
// fromPrompt reports whether the seed came from the prompt.
func (c *Chain) seed(promptTokens []string) (token string, fromPrompt bool) {
	for i := len(promptTokens) - 1; i >= 0; i-- {
		if len(c.transitions[promptTokens[i]]) > 0 {
			return promptTokens[i], true
		}
	}
	if tok := argMax(c.startCounts); tok != "" {
		return tok, false
	}
	return argMax(c.tokenCounts), false
}

// step samples the next token from the outgoing edges of current. It reports
// false on a dead end, and on a degenerate neighborhood when skipDegenerate is set.
func (c *Chain) step(current string, recent *recentWindow, skipDegenerate bool, src sampling.Source) (string, bool) {
	edges := c.transitions[current]
	if len(edges) == 0 {
		return "", false
	}
	if skipDegenerate && c.degenerate(edges) {
		return "", false
	}

	pairs := make([]sampling.Weighted[string], len(edges))
	for i, e := range edges {
		w := math.Pow(float64(e.Count), WeightExponent)
		if recent.contains(e.Token) {
			w *= RecentPenalty
		}
		pairs[i] = sampling.Weighted[string]{Item: e.Token, Weight: w}
	}
	return sampling.Pick(src, pairs)
}

// degenerate reports whether a neighborhood is dominated by sentence-ending
// marks: at most three edges, at most one of them to a word, and at least one
// to a terminal mark.
func (c *Chain) degenerate(edges []Edge) bool {
	if len(edges) > 3 {
		return false
	}
	words, terminals := 0, 0
	for _, e := range edges {
		if c.tokenizer.Terminal(e.Token) {
			terminals++
		} else {
			words++
		}
	}
	return words <= 1 && terminals > 0
}

// jump picks a uniformly random token to continue from, preferring tokens with
// an edge to a word over tokens with any edge. exclude is skipped unless
// allowExcluded is set and nothing else qualifies.
func (c *Chain) jump(src sampling.Source, exclude string, allowExcluded bool) (string, bool) {
	for _, pool := range [][]string{c.wordSources, c.anySources} {
		if tok, ok := pickExcluding(src, pool, exclude); ok {
			return tok, true
		}
	}
	if allowExcluded {
		for _, pool := range [][]string{c.wordSources, c.anySources} {
			if tok, ok := sampling.Uniform(src, pool); ok {
				return tok, true
			}
		}
	}
	return "", false
}

// pickExcluding chooses uniformly from the sorted pool without exclude.
func pickExcluding(src sampling.Source, pool []string, exclude string) (string, bool) {
	n := len(pool)
	idx := -1
	for i, tok := range pool {
		if tok == exclude {
			idx = i
			break
		}
	}
	if idx >= 0 {
		n--
	}
	if n <= 0 {
		return "", false
	}
	i := src.IntN(n)
	if idx >= 0 && i >= idx {
		i++
	}
	return pool[i], true
}

// render joins tokens with the tokenizer's separators, collapses whitespace and
// sets the case of the first character.
func (c *Chain) render(tokens []string, capitalize bool) string {
	var builder strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			builder.WriteString(c.tokenizer.Separator(tokens[i-1], tok))
		}
		builder.WriteString(tok)
	}
	return SetFirstCase(strings.Join(strings.Fields(builder.String()), " "), capitalize)
}

// SetFirstCase upper- or lowercases the first rune of s.
func SetFirstCase(s string, upper bool) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	if upper {
		return string(unicode.ToUpper(r)) + s[size:]
	}
	return string(unicode.ToLower(r)) + s[size:]
}

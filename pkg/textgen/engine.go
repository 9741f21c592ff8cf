// Package textgen composes the corpus Markov chain and the bigram word
// synthesizer into a single text generator.
package textgen

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/CTAG07/whiterabbit/pkg/markov"
	"github.com/CTAG07/whiterabbit/pkg/wordgen"
)

// Source names the generator that produced a Response.
type Source string

const (
	SourceMarkov Source = "markov"
	SourceBigram Source = "bigram"
)

// CharsPerToken converts a token budget into the character budget of the
// bigram fallback.
const CharsPerToken = 4

// Request describes one generation call.
type Request struct {
	Prompt     string
	MaxTokens  int  // zero or less selects markov.DefaultMaxTokens
	Strict     bool // keep generating past sentence ends until the budget is met
	Capitalize bool // upper-case the first character, otherwise lower-case it
}

// Response is the generated text and where it came from.
type Response struct {
	Text         string
	HitMaxLength bool
	Source       Source
}

// Engine tries the Markov chain first and falls back to invented prose when
// the chain produces nothing.
type Engine struct {
	chains *markov.Builder
	words  *wordgen.Synthesizer
	logger *slog.Logger
}

// New creates an Engine. A nil words selects wordgen.Default().
func New(chains *markov.Builder, words *wordgen.Synthesizer) *Engine {
	if words == nil {
		words = wordgen.Default()
	}
	return &Engine{
		chains: chains,
		words:  words,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Engine. By default, all logs are discarded.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Chains returns the chain builder backing the Engine.
func (e *Engine) Chains() *markov.Builder {
	return e.chains
}

// Generate produces text for req. It never fails; the worst case is invented
// prose from the bigram synthesizer.
func (e *Engine) Generate(ctx context.Context, req Request) Response {
	budget := req.MaxTokens
	if budget <= 0 {
		budget = markov.DefaultMaxTokens
	}

	if e.chains != nil {
		res := e.chains.Generate(ctx, req.Prompt,
			markov.WithMaxTokens(budget),
			markov.WithStrictBudget(req.Strict),
			markov.WithCapitalize(req.Capitalize),
		)
		if res.Text != "" {
			return Response{Text: res.Text, HitMaxLength: res.HitMaxLength, Source: SourceMarkov}
		}
	}

	e.logger.DebugContext(ctx, "Markov chain produced nothing, using bigram synthesizer",
		slog.Int("max_tokens", budget),
	)
	para := e.words.Paragraph(budget * CharsPerToken)
	return Response{
		Text:         markov.SetFirstCase(para.Text, req.Capitalize),
		HitMaxLength: para.HitMaxLength,
		Source:       SourceBigram,
	}
}

// CountTokens approximates the token count of text as its number of
// whitespace-separated words.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

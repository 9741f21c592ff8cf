package markov

import (
	"regexp"
	"strings"
)

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It lowercases its input and uses regular expressions to pick out words
// (runs of letters, digits, hyphens and apostrophes) and the sentence-ending
// marks '.', '!' and '?'. Everything else is treated as a separator.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	separator     string
	splitRegex    *regexp.Regexp
	terminalRegex *regexp.Regexp
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator Sets the string used for joining word tokens during generation.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithSplitRegex sets the regex used to find tokens in lowercased input text.
// Default: `[\p{L}\p{N}'-]+|[.!?]`
func WithSplitRegex(splitRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.splitRegex = regexp.MustCompile(splitRegex)
	}
}

// WithTerminalRegex sets the regex used to decide whether a token ends a sentence.
// Terminal tokens are attached to the preceding word without a separator.
// Default: `^[.!?]$`
func WithTerminalRegex(terminalRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.terminalRegex = regexp.MustCompile(terminalRegex)
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator:     " ",
		splitRegex:    regexp.MustCompile(`[\p{L}\p{N}'-]+|[.!?]`),
		terminalRegex: regexp.MustCompile(`^[.!?]$`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Tokenize returns the lowercase tokens of text. Empty input yields nil.
func (t *DefaultTokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return t.splitRegex.FindAllString(strings.ToLower(text), -1)
}

// Terminal reports whether token is a sentence-ending mark.
func (t *DefaultTokenizer) Terminal(token string) bool {
	return t.terminalRegex.MatchString(token)
}

// Separator Returns the configured separator, or nothing before a terminal mark.
func (t *DefaultTokenizer) Separator(_, next string) string {
	if t.Terminal(next) {
		return ""
	}
	return t.separator
}

package markov

// Tokenizer is an interface that defines the contract for splitting text into
// chain tokens and joining them back together. The same Tokenizer must be used
// for building a Chain and for reading prompts against it, otherwise prompt
// lookups will miss.
type Tokenizer interface {
	// Tokenize splits text into an ordered slice of tokens.
	Tokenize(text string) []string
	// Terminal reports whether a token ends a sentence.
	Terminal(token string) bool
	// Separator returns the string placed between prev and next when
	// rendering generated tokens.
	Separator(prev, next string) string
}

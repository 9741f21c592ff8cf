package markov

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/natefinch/atomic"
)

// ExportedChain is the serializable representation of a built chain, used for
// JSON-based import and export.
type ExportedChain struct {
	Sentences   int                       `json:"sentences"`
	StartCounts map[string]int            `json:"start_counts"`
	TokenCounts map[string]int            `json:"token_counts"`
	Transitions map[string]map[string]int `json:"transitions"`
}

// Export serializes the chain into a JSON format and writes it to the provided
// io.Writer. This is useful for inspecting what a corpus produced.
func (c *Chain) Export(w io.Writer) error {
	if c == nil {
		c = &Chain{}
	}
	exported := ExportedChain{
		Sentences:   c.sentences,
		StartCounts: c.startCounts,
		TokenCounts: c.tokenCounts,
		Transitions: make(map[string]map[string]int, len(c.transitions)),
	}
	for tok, edges := range c.transitions {
		next := make(map[string]int, len(edges))
		for _, e := range edges {
			next[e.Token] = e.Count
		}
		exported.Transitions[tok] = next
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exported); err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}
	return nil
}

// ExportFile writes the JSON export to path, replacing any existing file atomically.
func (c *Chain) ExportFile(path string) error {
	var buf bytes.Buffer
	if err := c.Export(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write chain export: %w", err)
	}
	return nil
}

// ImportChain reads a JSON export produced by Export and rebuilds the chain.
// Negative counts are rejected. A nil tokenizer selects NewDefaultTokenizer.
func ImportChain(r io.Reader, tokenizer Tokenizer) (*Chain, error) {
	var exported ExportedChain
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, fmt.Errorf("failed to decode chain: %w", err)
	}
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}

	for _, counts := range []map[string]int{exported.StartCounts, exported.TokenCounts} {
		for tok, n := range counts {
			if n < 0 {
				return nil, fmt.Errorf("negative count %d for token '%s'", n, tok)
			}
		}
	}
	for tok, next := range exported.Transitions {
		for nt, n := range next {
			if n < 0 {
				return nil, fmt.Errorf("negative count %d for link '%s' -> '%s'", n, tok, nt)
			}
		}
	}

	if exported.StartCounts == nil {
		exported.StartCounts = make(map[string]int)
	}
	if exported.TokenCounts == nil {
		exported.TokenCounts = make(map[string]int)
	}

	return newChain(tokenizer, exported.StartCounts, exported.TokenCounts, exported.Transitions, exported.Sentences), nil
}

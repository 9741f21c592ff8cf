package wordgen

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/CTAG07/whiterabbit/pkg/sampling"
)

//go:embed bigrams.json
var bigramData []byte

var (
	defaultTable     Table
	defaultTableErr  error
	loadDefaultTable sync.Once
)

// Bigram is one entry of a letter-pair frequency table, such as ["th", 3.56].
type Bigram struct {
	Pair string
	Freq float64
}

// UnmarshalJSON decodes the two-element array form used by bigrams.json.
func (b *Bigram) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bigram must be a [pair, freq] array: %w", err)
	}
	if err := json.Unmarshal(raw[0], &b.Pair); err != nil {
		return fmt.Errorf("bigram pair: %w", err)
	}
	if err := json.Unmarshal(raw[1], &b.Freq); err != nil {
		return fmt.Errorf("bigram frequency: %w", err)
	}
	return nil
}

// Table maps a letter to the letters that may follow it, each weighted by its
// probability. The weights of every entry sum to 1.
type Table map[byte][]sampling.Weighted[byte]

// NewTable groups bigrams by their first letter and normalizes their
// frequencies. Pairs must be two lowercase ASCII letters; entries with a
// non-positive frequency are dropped.
func NewTable(bigrams []Bigram) (Table, error) {
	sums := make(map[byte]float64)
	t := make(Table)
	for _, bg := range bigrams {
		if len(bg.Pair) != 2 || !isLower(bg.Pair[0]) || !isLower(bg.Pair[1]) {
			return nil, fmt.Errorf("invalid bigram %q", bg.Pair)
		}
		if bg.Freq <= 0 {
			continue
		}
		first := bg.Pair[0]
		t[first] = append(t[first], sampling.Weighted[byte]{Item: bg.Pair[1], Weight: bg.Freq})
		sums[first] += bg.Freq
	}
	for first, cands := range t {
		for i := range cands {
			cands[i].Weight /= sums[first]
		}
	}
	return t, nil
}

// ParseTable builds a Table from the JSON array form [["th", 3.56], ...].
func ParseTable(data []byte) (Table, error) {
	var bigrams []Bigram
	if err := json.Unmarshal(data, &bigrams); err != nil {
		return nil, fmt.Errorf("could not parse bigram table: %w", err)
	}
	return NewTable(bigrams)
}

// DefaultTable returns the table built from the embedded English bigram
// frequencies. It is parsed on first use only.
func DefaultTable() (Table, error) {
	loadDefaultTable.Do(func() {
		defaultTable, defaultTableErr = ParseTable(bigramData)
	})
	return defaultTable, defaultTableErr
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

// Package corpus loads the sentences the text generator learns from: a bundled
// default set, or one column of a remote CSV file, optionally cached in SQLite.
package corpus

import (
	_ "embed"
	"strings"
)

//go:embed default_corpus.txt
var defaultCorpus string

// Default returns a fresh copy of the bundled sentence set, one sentence per
// non-empty line of default_corpus.txt.
func Default() []string {
	lines := strings.Split(defaultCorpus, "\n")
	sentences := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			sentences = append(sentences, line)
		}
	}
	return sentences
}

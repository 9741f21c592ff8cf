package markov

// Stats holds aggregated statistics for a Chain.
type Stats struct {
	Sentences      int `json:"sentences"`       // The number of corpus sentences that produced tokens.
	VocabSize      int `json:"vocab_size"`      // The number of unique tokens.
	StartingTokens int `json:"starting_tokens"` // The number of unique tokens that begin a sentence.
	Sources        int `json:"sources"`         // The number of tokens with at least one outgoing edge.
	Transitions    int `json:"transitions"`     // The number of unique token->next_token links.
	TotalFrequency int `json:"total_frequency"` // The sum of all link counts.
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		Sentences:      c.sentences,
		VocabSize:      len(c.tokenCounts),
		StartingTokens: len(c.startCounts),
		Sources:        len(c.transitions),
	}
	for _, edges := range c.transitions {
		s.Transitions += len(edges)
		for _, e := range edges {
			s.TotalFrequency += e.Count
		}
	}
	return s
}

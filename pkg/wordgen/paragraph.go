package wordgen

import (
	"strings"

	"github.com/CTAG07/whiterabbit/pkg/sampling"
)

// LineWidth is how many characters may accumulate on a line before the next
// word goes on a new one.
const LineWidth = 80

var terminalMarks = []byte{'.', '!', '?'}

// Result is the outcome of a Paragraph call.
type Result struct {
	Text         string
	HitMaxLength bool // generation stopped early to stay within maxLen
}

type paragraphOptions struct {
	minSentences, maxSentences int
	minWords, maxWords         int
}

// ParagraphOption configures Paragraph.
type ParagraphOption func(*paragraphOptions)

// WithSentences sets the inclusive range of sentence counts. Default: 4 to 8.
func WithSentences(lo, hi int) ParagraphOption {
	return func(o *paragraphOptions) { o.minSentences, o.maxSentences = lo, hi }
}

// WithWordsPerSentence sets the inclusive range of words per sentence. Default: 5 to 15.
func WithWordsPerSentence(lo, hi int) ParagraphOption {
	return func(o *paragraphOptions) { o.minWords, o.maxWords = lo, hi }
}

// Paragraph assembles invented words into sentences. Each sentence starts with
// a capitalized word and ends with '.', '!' or '?'. Lines wrap once more than
// LineWidth characters have accumulated since the last break.
//
// If maxLen is positive the returned text never exceeds maxLen bytes. When a
// word would not fit, generation stops and HitMaxLength is set.
func (s *Synthesizer) Paragraph(maxLen int, opts ...ParagraphOption) Result {
	options := &paragraphOptions{
		minSentences: 4,
		maxSentences: 8,
		minWords:     5,
		maxWords:     15,
	}
	for _, opt := range opts {
		opt(options)
	}

	var builder strings.Builder
	lineStart := 0
	sentences := sampling.IntRange(s.src, options.minSentences, options.maxSentences)

	for i := 0; i < sentences; i++ {
		words := max(sampling.IntRange(s.src, options.minWords, options.maxWords), 1)
		for j := 0; j < words; j++ {
			word := s.Word()
			if j == 0 {
				word = capitalize(word)
			}

			sep := ""
			if builder.Len() > 0 {
				sep = " "
				if builder.Len()-lineStart > LineWidth {
					sep = "\n"
				}
			}

			need := len(sep) + len(word)
			if j == words-1 {
				need++ // sentence mark
			}
			if maxLen > 0 && builder.Len()+need > maxLen {
				return Result{Text: strings.TrimSpace(builder.String()), HitMaxLength: true}
			}

			builder.WriteString(sep)
			if sep == "\n" {
				lineStart = builder.Len()
			}
			builder.WriteString(word)
		}
		builder.WriteByte(terminalMarks[s.src.IntN(len(terminalMarks))])
	}

	return Result{Text: strings.TrimSpace(builder.String())}
}

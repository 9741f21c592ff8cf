package markov

import (
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	_, c := setupTestChain(t, scenarioCorpus)

	if got := c.StartCount("the"); got != 2 {
		t.Errorf("StartCount(the) = %d, want 2", got)
	}
	if got := c.TokenCount("."); got != 2 {
		t.Errorf("TokenCount(.) = %d, want 2", got)
	}

	wantEdges := map[string][]Edge{
		"the": {{Token: "cat", Count: 1}, {Token: "dog", Count: 1}},
		"cat": {{Token: "sat", Count: 1}},
		"sat": {{Token: ".", Count: 1}},
		"dog": {{Token: "ran", Count: 1}},
		"ran": {{Token: ".", Count: 1}},
	}
	for tok, want := range wantEdges {
		if got := c.Edges(tok); !reflect.DeepEqual(got, want) {
			t.Errorf("Edges(%q) = %+v, want %+v", tok, got, want)
		}
	}
	if got := c.Edges("."); len(got) != 0 {
		t.Errorf("Edges(.) = %+v, want none", got)
	}

	if want := []string{"cat", "dog", "the"}; !reflect.DeepEqual(c.wordSources, want) {
		t.Errorf("wordSources = %v, want %v", c.wordSources, want)
	}
	if want := []string{"cat", "dog", "ran", "sat", "the"}; !reflect.DeepEqual(c.anySources, want) {
		t.Errorf("anySources = %v, want %v", c.anySources, want)
	}
}

func TestBuildSkipsEmptySentences(t *testing.T) {
	_, c := setupTestChain(t, []string{"", "  ,; ", "Hello world."})

	stats := c.Stats()
	if stats.Sentences != 1 {
		t.Errorf("Sentences = %d, want 1", stats.Sentences)
	}
	if stats.StartingTokens != 1 || c.StartCount("hello") != 1 {
		t.Errorf("expected a single start token 'hello', got stats %+v", stats)
	}
}

func TestBuildEmpty(t *testing.T) {
	for _, sentences := range [][]string{nil, {}, {"", " ,; ()"}} {
		if c := Build(sentences, nil); !c.Empty() {
			t.Errorf("Build(%q) should be empty", sentences)
		}
	}
	var nilChain *Chain
	if !nilChain.Empty() {
		t.Error("nil chain should report Empty")
	}
}

func TestStats(t *testing.T) {
	_, c := setupTestChain(t, scenarioCorpus)
	want := Stats{
		Sentences:      2,
		VocabSize:      6,
		StartingTokens: 1,
		Sources:        5,
		Transitions:    6,
		TotalFrequency: 6,
	}
	if got := c.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

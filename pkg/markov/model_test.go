package markov

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportImportChain(t *testing.T) {
	ctx, c := setupTestChain(t, scenarioCorpus)

	var buf bytes.Buffer
	if err := c.Export(&buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"start_counts"`) {
		t.Errorf("export is missing start_counts: %s", buf.String())
	}

	imported, err := ImportChain(&buf, nil)
	if err != nil {
		t.Fatalf("ImportChain() failed: %v", err)
	}
	if got, want := imported.Stats(), c.Stats(); got != want {
		t.Errorf("imported Stats() = %+v, want %+v", got, want)
	}

	res := imported.Generate(ctx, "The cat", WithMaxTokens(3))
	if res.Text != "Sat." {
		t.Errorf("imported chain generated %q, want %q", res.Text, "Sat.")
	}
}

func TestImportChainRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"malformed json", `{"transitions": [`},
		{"negative start count", `{"start_counts": {"a": -1}}`},
		{"negative link count", `{"transitions": {"a": {"b": -3}}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ImportChain(strings.NewReader(tc.input), nil); err == nil {
				t.Error("ImportChain() succeeded, want an error")
			}
		})
	}
}

func TestExportFile(t *testing.T) {
	_, c := setupTestChain(t, scenarioCorpus)
	path := filepath.Join(t.TempDir(), "chain.json")

	if err := c.ExportFile(path); err != nil {
		t.Fatalf("ExportFile() failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	imported, err := ImportChain(f, nil)
	if err != nil {
		t.Fatalf("ImportChain() failed: %v", err)
	}
	if imported.Stats().Transitions != 6 {
		t.Errorf("imported %d transitions, want 6", imported.Stats().Transitions)
	}
}

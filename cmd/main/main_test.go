package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/CTAG07/whiterabbit/pkg/corpus"
	"github.com/CTAG07/whiterabbit/pkg/markov"
	"github.com/CTAG07/whiterabbit/pkg/textgen"
	"github.com/sashabaranov/go-openai"
)

const testModel = "Qwen/Qwen2.5-1.5B-Instruct"

type testServer struct {
	*httptest.Server
	config     *Config
	db         *sql.DB
	actionChan chan string
}

// setupTestServer starts the full handler stack over a temporary database and
// the default corpus. mutate may adjust the config before the server is built.
func setupTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	dir := t.TempDir()
	config := &Config{
		Server: DefaultServerConfig(),
		Corpus: DefaultCorpusConfig(),
	}
	config.Server.DataDir = dir
	config.Server.DatabasePath = filepath.Join(dir, "test.db")
	config.Server.ChainExportPath = filepath.Join(dir, "chain.json")
	if mutate != nil {
		mutate(config)
	}

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = corpus.SetupSchema(db); err != nil {
		t.Fatalf("failed to set up corpus schema: %v", err)
	}
	if err = setupStatsSchema(db); err != nil {
		t.Fatalf("failed to set up stats schema: %v", err)
	}

	load := func(context.Context) ([]string, error) { return corpus.Default(), nil }
	engine := textgen.New(markov.NewBuilder(load, nil), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	actionChan := make(chan string, 1)

	ts := httptest.NewServer(NewServer(config, logger, db, engine, actionChan))
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, config: config, db: db, actionChan: actionChan}
}

// client returns a go-openai client pointed at the test server.
func (ts *testServer) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = ts.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

// do sends a raw request and decodes the JSON response into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := ts.config.Server.APIKey; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

package corpus

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleCSV = "id,text,label\n" +
	"1,\"Hello, world.\",a\n" +
	"2,\"She said \"\"hi\"\" twice.\",b\n" +
	"3,\"Line one\nline two.\",c\n" +
	"4,,d\n" +
	"5\n" +
	"6,Plain text here.,e\n"

func TestDefault(t *testing.T) {
	sentences := Default()
	if len(sentences) < 50 {
		t.Fatalf("Default() returned %d sentences, want a usable corpus", len(sentences))
	}
	for _, s := range sentences {
		if s == "" || s != strings.TrimSpace(s) {
			t.Fatalf("Default() contains an untrimmed or empty sentence %q", s)
		}
	}
	sentences[0] = "mutated"
	if Default()[0] == "mutated" {
		t.Error("Default() should return a fresh copy")
	}
}

func TestExtractColumn(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		column   string
		maxRows  int
		expected []string
		err      error
	}{
		{
			name:   "quoted fields",
			input:  sampleCSV,
			column: "text",
			expected: []string{
				"Hello, world.",
				`She said "hi" twice.`,
				"Line one\nline two.",
				"Plain text here.",
			},
		},
		{
			name:     "row cap",
			input:    sampleCSV,
			column:   "text",
			maxRows:  2,
			expected: []string{"Hello, world.", `She said "hi" twice.`},
		},
		{
			name:     "byte order mark in header",
			input:    "\ufefftext\nfirst.\nsecond.\n",
			column:   "text",
			expected: []string{"first.", "second."},
		},
		{
			name:   "missing column",
			input:  sampleCSV,
			column: "body",
			err:    ErrColumnNotFound,
		},
		{
			name:   "empty input",
			input:  "",
			column: "text",
			err:    ErrColumnNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractColumn(strings.NewReader(tc.input), tc.column, tc.maxRows)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("ExtractColumn() error = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractColumn() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("ExtractColumn() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	testCases := map[string]bool{
		"https://example.com/data.csv": true,
		"http://localhost:8080/x.csv":  true,
		"ftp://example.com/data.csv":   false,
		"./local/data.csv":             false,
		"toxigen/toxigen-data":         false,
		"":                             false,
	}
	for input, want := range testCases {
		if got := IsRemote(input); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	ok, _ := setupCSVServer(t, http.StatusOK, sampleCSV)
	got, err := NewFetcher(time.Second).FetchColumn(ctx, ok.URL, "text", 0)
	if err != nil {
		t.Fatalf("FetchColumn() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("FetchColumn() returned %d texts, want 4", len(got))
	}

	missing, _ := setupCSVServer(t, http.StatusNotFound, "not found")
	if _, err = NewFetcher(time.Second).Fetch(ctx, missing.URL); err == nil {
		t.Error("Fetch() of a 404 should fail")
	}

	f := NewFetcher(time.Second)
	f.maxSize = 10
	if _, err = f.Fetch(ctx, ok.URL); err == nil {
		t.Error("Fetch() of an oversized body should fail")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if _, _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Load() of unknown key error = %v, want ErrNotCached", err)
	}

	first := []string{"one.", "two.", "three."}
	if err := s.Save(ctx, "k", first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, fetchedAt, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Errorf("Load() = %q, want %q", got, first)
	}
	if fetchedAt.IsZero() {
		t.Error("Load() returned a zero fetch time")
	}

	second := []string{"replaced."}
	if err = s.Save(ctx, "k", second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if got, _, _ = s.Load(ctx, "k"); !reflect.DeepEqual(got, second) {
		t.Errorf("Load() after replace = %q, want %q", got, second)
	}
}

func TestLoaderFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	broken, _ := setupCSVServer(t, http.StatusInternalServerError, "")
	noText, _ := setupCSVServer(t, http.StatusOK, "text\n\n,\n")

	testCases := []struct {
		name string
		opts Options
	}{
		{"no dataset", Options{}},
		{"no column", Options{Dataset: broken.URL}},
		{"not a url", Options{Dataset: "toxigen/toxigen-data", Column: "text"}},
		{"server error", Options{Dataset: broken.URL, Column: "text", Timeout: time.Second}},
		{"missing column", Options{Dataset: noText.URL, Column: "body", Timeout: time.Second}},
		{"empty column", Options{Dataset: noText.URL, Column: "text", Timeout: time.Second}},
	}

	want := Default()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewLoader(tc.opts, nil).Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Load() returned %d sentences, want the default corpus", len(got))
			}
		})
	}
}

func TestLoaderUsesCache(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	srv, hits := setupCSVServer(t, http.StatusOK, sampleCSV)
	opts := Options{Dataset: srv.URL, Column: "text", Timeout: time.Second}

	first, err := NewLoader(opts, store).Load(ctx)
	if err != nil || len(first) != 4 {
		t.Fatalf("Load() = %d sentences, %v; want 4", len(first), err)
	}

	second, _ := NewLoader(opts, store).Load(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached Load() = %q, want %q", second, first)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server was hit %d times, want 1", n)
	}
}

func TestLoaderStaleCacheOnFailure(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	srv, _ := setupCSVServer(t, http.StatusServiceUnavailable, "")
	key := srv.URL + "#text"

	if err := store.Save(ctx, key, []string{"cached sentence."}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// MaxAge of a nanosecond makes the cached copy stale immediately.
	opts := Options{Dataset: srv.URL, Column: "text", Timeout: time.Second, MaxAge: time.Nanosecond}
	got, _ := NewLoader(opts, store).Load(ctx)
	if !reflect.DeepEqual(got, []string{"cached sentence."}) {
		t.Errorf("Load() = %q, want the stale cached copy", got)
	}
}

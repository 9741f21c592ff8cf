package main

import (
	"strconv"
	"testing"
)

func TestTokenizeRoundTrip(t *testing.T) {
	ts := setupTestServer(t, nil)

	var tok tokenizeResponse
	if status := ts.do(t, "POST", "/tokenize", `{"model":"m","prompt":"Hello  white rabbit"}`, &tok); status != 200 {
		t.Fatalf("tokenize status = %d", status)
	}
	if tok.Count != 3 || len(tok.Tokens) != 3 {
		t.Fatalf("tokenize = %+v, want 3 tokens", tok)
	}
	if tok.MaxModelLen != ts.config.Server.MaxModelLen {
		t.Errorf("max_model_len = %d, want %d", tok.MaxModelLen, ts.config.Server.MaxModelLen)
	}
	for _, id := range tok.Tokens {
		if id >= uint64(ts.config.Server.VocabSize) {
			t.Errorf("id %d is outside the vocabulary", id)
		}
	}

	var again tokenizeResponse
	ts.do(t, "POST", "/tokenize", `{"model":"m","prompt":"rabbit"}`, &again)
	if len(again.Tokens) != 1 || again.Tokens[0] != tok.Tokens[2] {
		t.Errorf("tokenizing the same word gave %v, want %d", again.Tokens, tok.Tokens[2])
	}

	var detok detokenizeResponse
	body := `{"model":"m","tokens":[` + uintList(tok.Tokens) + `]}`
	if status := ts.do(t, "POST", "/detokenize", body, &detok); status != 200 {
		t.Fatalf("detokenize status = %d", status)
	}
	if detok.Prompt != "Hello white rabbit" {
		t.Errorf("detokenize = %q, want %q", detok.Prompt, "Hello white rabbit")
	}
}

func TestTokenizeMessages(t *testing.T) {
	ts := setupTestServer(t, nil)

	var tok tokenizeResponse
	body := `{"model":"m","messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hi"}]}`
	if status := ts.do(t, "POST", "/tokenize", body, &tok); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if tok.Count != 3 {
		t.Errorf("count = %d, want 3", tok.Count)
	}
}

func TestDetokenize(t *testing.T) {
	api := NewTokenizeAPI(&Config{Server: DefaultServerConfig()}, nil)
	ids := api.Tokenize("down the hole")

	tests := []struct {
		name string
		ids  []uint64
		want string
	}{
		{"known", ids, "down the hole"},
		{"unknown", []uint64{ids[0], 7}, "down <7>"},
		{"empty", []uint64{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := api.Detokenize(tt.ids); got != tt.want {
				t.Errorf("Detokenize(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}

	var out map[string]string
	ts := setupTestServer(t, nil)
	if status := ts.do(t, "POST", "/detokenize", `{"model":"m"}`, &out); status != 400 {
		t.Errorf("missing tokens status = %d, want 400", status)
	}
}

func uintList(ids []uint64) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatUint(id, 10)
	}
	return s
}

package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// TokenizeAPI serves the vLLM /tokenize and /detokenize endpoints with a
// placeholder vocabulary: every whitespace-separated word hashes to an id
// below the configured vocab size.
type TokenizeAPI struct {
	config *Config
	logger *slog.Logger
	seen   sync.Map // uint64 id -> string word
}

type tokenizeRequest struct {
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt"`
	Messages []chatMessage `json:"messages"`
}

type tokenizeResponse struct {
	Count       int      `json:"count"`
	MaxModelLen int      `json:"max_model_len"`
	Tokens      []uint64 `json:"tokens"`
}

type detokenizeRequest struct {
	Model  string   `json:"model"`
	Tokens []uint64 `json:"tokens"`
}

type detokenizeResponse struct {
	Prompt string `json:"prompt"`
}

// NewTokenizeAPI creates a new instance of the TokenizeAPI.
func NewTokenizeAPI(config *Config, logger *slog.Logger) *TokenizeAPI {
	return &TokenizeAPI{
		config: config,
		logger: logger,
	}
}

func (a *TokenizeAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/tokenize", instrument("/tokenize", http.HandlerFunc(a.handleTokenize)))
	mux.Handle("/detokenize", instrument("/detokenize", http.HandlerFunc(a.handleDetokenize)))
}

// Tokenize maps text to placeholder ids and remembers each word so that
// Detokenize can reverse it.
func (a *TokenizeAPI) Tokenize(text string) []uint64 {
	words := strings.Fields(text)
	ids := make([]uint64, len(words))
	for i, word := range words {
		ids[i] = a.tokenID(word)
		a.seen.Store(ids[i], word)
	}
	return ids
}

// Detokenize joins the words behind ids. Ids never produced by Tokenize
// render as "<id>".
func (a *TokenizeAPI) Detokenize(ids []uint64) string {
	words := make([]string, len(ids))
	for i, id := range ids {
		if word, ok := a.seen.Load(id); ok {
			words[i] = word.(string)
			continue
		}
		words[i] = "<" + strconv.FormatUint(id, 10) + ">"
	}
	return strings.Join(words, " ")
}

func (a *TokenizeAPI) tokenID(word string) uint64 {
	vocab := uint64(a.config.Server.VocabSize)
	if vocab == 0 {
		vocab = 1
	}
	return xxhash.Sum64String(word) % vocab
}

func (a *TokenizeAPI) handleTokenize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req tokenizeRequest
	if !decodeBody(w, r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text := req.Prompt
	if req.Messages != nil {
		parts := make([]string, 0, len(req.Messages))
		for _, m := range req.Messages {
			parts = append(parts, messageText(m.Content))
		}
		text = strings.Join(parts, " ")
	}

	ids := a.Tokenize(text)
	respondWithJSON(w, http.StatusOK, tokenizeResponse{
		Count:       len(ids),
		MaxModelLen: a.config.Server.MaxModelLen,
		Tokens:      ids,
	})
}

func (a *TokenizeAPI) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req detokenizeRequest
	if !decodeBody(w, r, &req) || req.Tokens == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondWithJSON(w, http.StatusOK, detokenizeResponse{Prompt: a.Detokenize(req.Tokens)})
}

package main

import (
	"bytes"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/CTAG07/whiterabbit/pkg/textgen"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const (
	maxBodyBytes = 4 << 20
	maxChoices   = 128
)

var completionTokenRegex = regexp.MustCompile(`\s+|\S+`)

// OpenAIAPI serves the OpenAI-compatible generation endpoints.
type OpenAIAPI struct {
	config *Config
	engine *textgen.Engine
	stats  *StatsAPI
	logger *slog.Logger
}

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type chatCompletionRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	N                   *int          `json:"n"`
	MaxTokens           *int          `json:"max_tokens"`
	MaxCompletionTokens *int          `json:"max_completion_tokens"`
	Logprobs            bool          `json:"logprobs"`
	Stream              bool          `json:"stream"`
}

// completionRequest accepts prompt as a string or an array and logprobs as a
// bool or an integer, like vLLM does.
type completionRequest struct {
	Model     string          `json:"model"`
	Prompt    json.RawMessage `json:"prompt"`
	N         *int            `json:"n"`
	MaxTokens *int            `json:"max_tokens"`
	Logprobs  json.RawMessage `json:"logprobs"`
	Echo      bool            `json:"echo"`
	Stream    bool            `json:"stream"`
}

type chatResponseMessage struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Refusal *string `json:"refusal"`
}

type chatTokenLogprob struct {
	Token       string        `json:"token"`
	Logprob     float64       `json:"logprob"`
	Bytes       []int         `json:"bytes"`
	TopLogprobs []interface{} `json:"top_logprobs"`
}

type chatLogprobs struct {
	Content []chatTokenLogprob `json:"content"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	Logprobs     *chatLogprobs       `json:"logprobs"`
	FinishReason openai.FinishReason `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	SystemFingerprint string       `json:"system_fingerprint"`
	Choices           []chatChoice `json:"choices"`
	Usage             openai.Usage `json:"usage"`
	PromptLogprobs    interface{}  `json:"prompt_logprobs"`
}

type completionLogprobs struct {
	TextOffset    []int                `json:"text_offset"`
	TokenLogprobs []float64            `json:"token_logprobs"`
	Tokens        []string             `json:"tokens"`
	TopLogprobs   []map[string]float64 `json:"top_logprobs"`
}

type completionChoice struct {
	Index        int                 `json:"index"`
	Text         string              `json:"text"`
	Logprobs     *completionLogprobs `json:"logprobs"`
	FinishReason openai.FinishReason `json:"finish_reason"`
}

type completionResponse struct {
	ID                string             `json:"id"`
	Object            string             `json:"object"`
	Created           int64              `json:"created"`
	Model             string             `json:"model"`
	SystemFingerprint string             `json:"system_fingerprint"`
	Choices           []completionChoice `json:"choices"`
	Usage             openai.Usage       `json:"usage"`
}

// NewOpenAIAPI creates a new instance of the OpenAIAPI.
func NewOpenAIAPI(config *Config, engine *textgen.Engine, stats *StatsAPI, logger *slog.Logger) *OpenAIAPI {
	return &OpenAIAPI{
		config: config,
		engine: engine,
		stats:  stats,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for the /v1 generation endpoints.
func (a *OpenAIAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/v1/chat/completions", instrument("/v1/chat/completions", http.HandlerFunc(a.handleChatCompletions)))
	mux.Handle("/v1/completions", instrument("/v1/completions", http.HandlerFunc(a.handleCompletions)))
	mux.Handle("/v1/embeddings", instrument("/v1/embeddings", http.HandlerFunc(a.handleEmbeddings)))
}

func (a *OpenAIAPI) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/chat/completions"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req chatCompletionRequest
	if !decodeBody(w, r, &req) || req.Model == "" || req.Messages == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream {
		respondWithError(w, http.StatusBadRequest, "Streaming is not supported")
		return
	}
	n, ok := choiceCount(req.N)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "n must be between 1 and 128")
		return
	}

	maxTokens := req.MaxTokens
	if req.MaxCompletionTokens != nil {
		maxTokens = req.MaxCompletionTokens
	}
	genReq := a.generationRequest(chatPrompt(req.Messages), maxTokens, true)

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += textgen.CountTokens(messageText(m.Content))
	}

	choices := make([]chatChoice, 0, n)
	completionTokens := 0
	sources := make([]textgen.Source, 0, n)
	for i := 0; i < n; i++ {
		res := a.engine.Generate(r.Context(), genReq)
		finish := finishReason(res.HitMaxLength)
		tokens := textgen.CountTokens(res.Text)
		completionTokens += tokens
		sources = append(sources, res.Source)
		observeGeneration(route, res, finish, tokens)

		choice := chatChoice{
			Index: i,
			Message: chatResponseMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: res.Text,
			},
			FinishReason: finish,
		}
		if req.Logprobs {
			choice.Logprobs = chatTokenLogprobs(res.Text)
		}
		choices = append(choices, choice)
	}

	a.logger.Debug("Served chat completion",
		"choices", n,
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens,
		"strict", genReq.Strict,
	)
	a.stats.Record(r.Context(), UsageRecord{
		Endpoint:         route,
		Model:            a.config.Server.Model,
		Source:           summarizeSources(sources),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})

	respondWithJSON(w, http.StatusOK, chatCompletionResponse{
		ID:                "chatcmpl-" + uuidHex(),
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             a.config.Server.Model,
		SystemFingerprint: systemFingerprint(),
		Choices:           choices,
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

func (a *OpenAIAPI) handleCompletions(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/completions"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req completionRequest
	if !decodeBody(w, r, &req) || req.Model == "" || isNullJSON(req.Prompt) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Stream {
		respondWithError(w, http.StatusBadRequest, "Streaming is not supported")
		return
	}
	n, ok := choiceCount(req.N)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "n must be between 1 and 128")
		return
	}

	prompt := promptString(req.Prompt)
	genReq := a.generationRequest(prompt, req.MaxTokens, false)
	wantLogprobs := truthyJSON(req.Logprobs)
	promptTokens := textgen.CountTokens(prompt)

	choices := make([]completionChoice, 0, n)
	completionTokens := 0
	sources := make([]textgen.Source, 0, n)
	for i := 0; i < n; i++ {
		res := a.engine.Generate(r.Context(), genReq)
		finish := finishReason(res.HitMaxLength)
		tokens := textgen.CountTokens(res.Text)
		completionTokens += tokens
		sources = append(sources, res.Source)
		observeGeneration(route, res, finish, tokens)

		text := res.Text
		if req.Echo {
			text = prompt + text
		}
		choice := completionChoice{
			Index:        i,
			Text:         text,
			FinishReason: finish,
		}
		if wantLogprobs {
			choice.Logprobs = completionTokenLogprobs(text)
		}
		choices = append(choices, choice)
	}

	a.stats.Record(r.Context(), UsageRecord{
		Endpoint:         route,
		Model:            a.config.Server.Model,
		Source:           summarizeSources(sources),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})

	respondWithJSON(w, http.StatusOK, completionResponse{
		ID:                "cmpl-" + uuidHex(),
		Object:            "text_completion",
		Created:           time.Now().Unix(),
		Model:             a.config.Server.Model,
		SystemFingerprint: systemFingerprint(),
		Choices:           choices,
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}

// generationRequest resolves the token budget. A client-set budget is filled
// strictly; otherwise generation may stop at a sentence end.
func (a *OpenAIAPI) generationRequest(prompt string, maxTokens *int, capitalize bool) textgen.Request {
	req := textgen.Request{
		Prompt:     prompt,
		Capitalize: capitalize,
		Strict:     a.config.Server.StrictBudget,
	}
	if maxTokens != nil && *maxTokens > 0 {
		req.MaxTokens = *maxTokens
		req.Strict = true
		if limit := a.config.Server.MaxModelLen; limit > 0 && req.MaxTokens > limit {
			req.MaxTokens = limit
		}
	}
	return req
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return false
	}
	return true
}

func choiceCount(n *int) (int, bool) {
	if n == nil {
		return 1, true
	}
	return *n, *n >= 1 && *n <= maxChoices
}

func finishReason(hitMaxLength bool) openai.FinishReason {
	if hitMaxLength {
		return openai.FinishReasonLength
	}
	return openai.FinishReasonStop
}

func observeGeneration(route string, res textgen.Response, finish openai.FinishReason, tokens int) {
	llmTokens.WithLabelValues(route).Observe(float64(tokens))
	generationsTotal.WithLabelValues(string(res.Source), string(finish)).Inc()
}

func summarizeSources(sources []textgen.Source) string {
	if len(sources) == 0 {
		return ""
	}
	for _, s := range sources[1:] {
		if s != sources[0] {
			return "mixed"
		}
	}
	return string(sources[0])
}

// chatPrompt returns the content of the last user message, or of the last
// message when no user message exists.
func chatPrompt(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messageText(messages[i].Content)
		}
	}
	if len(messages) > 0 {
		return messageText(messages[len(messages)-1].Content)
	}
	return ""
}

// messageText flattens a message content that is either a string or a list
// of content parts.
func messageText(raw json.RawMessage) string {
	if isNullJSON(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" || p.Type == "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// promptString returns a string prompt, or the first element of an array of
// string prompts.
func promptString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return ""
	}
	if err := json.Unmarshal(list[0], &s); err == nil {
		return s
	}
	return ""
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// truthyJSON reports whether raw is true or a non-zero number.
func truthyJSON(raw json.RawMessage) bool {
	if isNullJSON(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return false
}

func chatTokenLogprobs(text string) *chatLogprobs {
	lp := &chatLogprobs{Content: []chatTokenLogprob{}}
	for _, word := range strings.Fields(text) {
		lp.Content = append(lp.Content, chatTokenLogprob{
			Token:       word,
			Logprob:     -rand.Float64(),
			Bytes:       []int{},
			TopLogprobs: []interface{}{},
		})
	}
	return lp
}

// completionTokenLogprobs treats words and the whitespace between them as
// tokens, so the offsets cover the whole text.
func completionTokenLogprobs(text string) *completionLogprobs {
	tokens := completionTokenRegex.FindAllString(text, -1)
	lp := &completionLogprobs{
		TextOffset:    make([]int, 0, len(tokens)),
		TokenLogprobs: make([]float64, 0, len(tokens)),
		Tokens:        make([]string, 0, len(tokens)),
		TopLogprobs:   make([]map[string]float64, 0, len(tokens)),
	}
	offset := 0
	for _, tok := range tokens {
		logprob := -rand.Float64()
		lp.TextOffset = append(lp.TextOffset, offset)
		lp.TokenLogprobs = append(lp.TokenLogprobs, logprob)
		lp.Tokens = append(lp.Tokens, tok)
		lp.TopLogprobs = append(lp.TopLogprobs, map[string]float64{tok: logprob})
		offset += len(tok)
	}
	return lp
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func systemFingerprint() string {
	b := make([]byte, 16)
	_, _ = cryptorand.Read(b)
	return hex.EncodeToString(b)
}

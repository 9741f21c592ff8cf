package main

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/CTAG07/whiterabbit/pkg/textgen"
)

const (
	maxEmbeddingDims = 8192
	tokenSequence    = "<token_sequence>"
)

type embeddingRequest struct {
	Model          string          `json:"model"`
	Input          json.RawMessage `json:"input"`
	Dimensions     *int            `json:"dimensions"`
	EncodingFormat string          `json:"encoding_format"`
}

type embeddingData struct {
	Object    string      `json:"object"`
	Embedding interface{} `json:"embedding"` // []float64, or a base64 string of little-endian float32s
	Index     int         `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type embeddingResponse struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Data    []embeddingData `json:"data"`
	Usage   embeddingUsage  `json:"usage"`
}

func (a *OpenAIAPI) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/embeddings"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req embeddingRequest
	if !decodeBody(w, r, &req) || req.Model == "" || isNullJSON(req.Input) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inputs, msg := embeddingInputs(req.Input)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	dims := a.config.Server.EmbeddingDims
	if req.Dimensions != nil {
		dims = *req.Dimensions
	}
	if dims <= 0 || dims > maxEmbeddingDims {
		respondWithError(w, http.StatusBadRequest, "dimensions must be between 1 and 8192")
		return
	}
	base64Format := req.EncodingFormat == "base64"
	if req.EncodingFormat != "" && req.EncodingFormat != "float" && !base64Format {
		respondWithError(w, http.StatusBadRequest, "encoding_format must be float or base64")
		return
	}

	data := make([]embeddingData, len(inputs))
	totalTokens := 0
	for i, input := range inputs {
		vec := mockEmbedding(dims)
		var embedding interface{} = vec
		if base64Format {
			embedding = encodeEmbedding(vec)
		}
		data[i] = embeddingData{Object: "embedding", Embedding: embedding, Index: i}
		totalTokens += textgen.CountTokens(input)
	}

	a.stats.Record(r.Context(), UsageRecord{
		Endpoint:     route,
		Model:        a.config.Server.Model,
		Source:       "embedding",
		PromptTokens: totalTokens,
	})

	respondWithJSON(w, http.StatusOK, embeddingResponse{
		ID:      "embd-" + uuidHex(),
		Object:  "list",
		Created: time.Now().Unix(),
		Model:   a.config.Server.Model,
		Data:    data,
		Usage:   embeddingUsage{PromptTokens: totalTokens, TotalTokens: totalTokens},
	})
}

// embeddingInputs normalizes the accepted input shapes into one string per
// embedding. A flat token id array is one sequence; a nested one is one
// sequence per element. A non-empty message reports a client error.
func embeddingInputs(raw json.RawMessage) ([]string, string) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, "Invalid request body"
		}
		return []string{s}, ""
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, "Invalid request body"
	}
	if len(list) == 0 {
		return nil, "Input cannot be empty"
	}

	first := bytes.TrimSpace(list[0])
	switch {
	case len(first) > 0 && first[0] == '"':
		var strs []string
		if err := json.Unmarshal(raw, &strs); err != nil {
			return nil, "Invalid request body"
		}
		return strs, ""
	case len(first) > 0 && first[0] == '[':
		var seqs [][]int
		if err := json.Unmarshal(raw, &seqs); err != nil {
			return nil, "Invalid request body"
		}
		inputs := make([]string, len(seqs))
		for i := range seqs {
			inputs[i] = tokenSequence
		}
		return inputs, ""
	default:
		var ids []int
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, "Invalid request body"
		}
		return []string{tokenSequence}, ""
	}
}

// mockEmbedding returns a random vector of unit length.
func mockEmbedding(dims int) []float64 {
	vec := make([]float64, dims)
	var sum float64
	for i := range vec {
		vec[i] = rand.Float64()*2 - 1
		sum += vec[i] * vec[i]
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 {
		vec[0], magnitude = 1, 1
	}
	for i := range vec {
		vec[i] /= magnitude
	}
	return vec
}

func encodeEmbedding(vec []float64) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

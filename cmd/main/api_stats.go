package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS usage_log (
    id                INTEGER  PRIMARY KEY,
    endpoint          TEXT     NOT NULL,
    model             TEXT     NOT NULL,
    source            TEXT     NOT NULL,
    prompt_tokens     INTEGER  NOT NULL,
    completion_tokens INTEGER  NOT NULL,
    created_at        INTEGER  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_log_endpoint ON usage_log (endpoint);
`

// UsageRecord is one served completion or embedding request.
type UsageRecord struct {
	Endpoint         string    `json:"endpoint"`
	Model            string    `json:"model"`
	Source           string    `json:"source"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// EndpointUsage aggregates usage for one endpoint.
type EndpointUsage struct {
	Endpoint         string `json:"endpoint"`
	Requests         int64  `json:"requests"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// UsageSummary provides a high-level overview of all recorded usage.
type UsageSummary struct {
	TotalRequests    int64            `json:"total_requests"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	Endpoints        []EndpointUsage  `json:"endpoints"`
	Sources          map[string]int64 `json:"sources"`
}

// StatsAPI holds the dependencies for the usage statistics handlers.
type StatsAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     db,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/stats", s.handleSummary)
	mux.HandleFunc("/admin/stats/recent", s.handleRecent)
}

// Record stores a usage record. Failures are logged and otherwise ignored so
// that statistics never break a response.
func (s *StatsAPI) Record(ctx context.Context, rec UsageRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO usage_log (endpoint, model, source, prompt_tokens, completion_tokens, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, rec.Endpoint, rec.Model, rec.Source, rec.PromptTokens, rec.CompletionTokens, rec.CreatedAt.Unix())
	if err != nil {
		s.logger.Error("Failed to record usage", "endpoint", rec.Endpoint, "error", err)
	}
}

// Summary aggregates all recorded usage.
func (s *StatsAPI) Summary(ctx context.Context) (*UsageSummary, error) {
	summary := &UsageSummary{
		Endpoints: []EndpointUsage{},
		Sources:   map[string]int64{},
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT endpoint, COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
        FROM usage_log GROUP BY endpoint ORDER BY endpoint
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint usage: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var e EndpointUsage
		if err = rows.Scan(&e.Endpoint, &e.Requests, &e.PromptTokens, &e.CompletionTokens); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint usage: %w", err)
		}
		summary.Endpoints = append(summary.Endpoints, e)
		summary.TotalRequests += e.Requests
		summary.PromptTokens += e.PromptTokens
		summary.CompletionTokens += e.CompletionTokens
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	sourceRows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM usage_log GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source usage: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(sourceRows)

	for sourceRows.Next() {
		var source string
		var n int64
		if err = sourceRows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan source usage: %w", err)
		}
		summary.Sources[source] = n
	}
	return summary, sourceRows.Err()
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	summary, err := s.Summary(r.Context())
	if err != nil {
		s.logger.Error("Failed to build usage summary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	rows, err := s.db.QueryContext(r.Context(), `
        SELECT endpoint, model, source, prompt_tokens, completion_tokens, created_at
        FROM usage_log ORDER BY id DESC LIMIT ?
    `, limit)
	if err != nil {
		s.logger.Error("Failed to query recent usage", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	records := []UsageRecord{}
	for rows.Next() {
		var rec UsageRecord
		var createdAt int64
		if err = rows.Scan(&rec.Endpoint, &rec.Model, &rec.Source, &rec.PromptTokens, &rec.CompletionTokens, &createdAt); err != nil {
			s.logger.Error("Failed to scan usage row", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
			return
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		s.logger.Error("Failed to read recent usage", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

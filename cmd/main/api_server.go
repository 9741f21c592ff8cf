package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/whiterabbit/pkg/markov"
	"github.com/CTAG07/whiterabbit/pkg/textgen"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// maxChainImportBytes caps the body of /admin/chain/import.
const maxChainImportBytes = 64 << 20

// vllmVersion is the upstream server version reported by /version.
const vllmVersion = "0.6.3.post1"

// ServerAPI holds the dependencies for the health, version, model and admin handlers.
type ServerAPI struct {
	config     *Config
	actionChan chan string
	engine     *textgen.Engine
	logger     *slog.Logger
	started    time.Time
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version            string `json:"version"`
	WhiteRabbitVersion string `json:"white_rabbit_version"`
	Commit             string `json:"commit,omitempty"`
	BuildDate          string `json:"build_date,omitempty"`
}

// ModelCard is one entry of the /v1/models listing.
type ModelCard struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Created     int64  `json:"created"`
	OwnedBy     string `json:"owned_by"`
	Root        string `json:"root"`
	MaxModelLen int    `json:"max_model_len"`
}

// ModelList is the /v1/models response body.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(config *Config, actionChan chan string, engine *textgen.Engine, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		config:     config,
		actionChan: actionChan,
		engine:     engine,
		logger:     logger,
		started:    time.Now(),
	}
}

// RegisterPublicRoutes sets up the unauthenticated routes.
func (a *ServerAPI) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.Handle("/health", instrument("/health", http.HandlerFunc(a.handleHealthCheck)))
	mux.Handle("/version", instrument("/version", http.HandlerFunc(a.handleVersion)))
}

// RegisterRoutes sets up the routes that sit behind authentication.
func (a *ServerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/v1/models", instrument("/v1/models", http.HandlerFunc(a.handleModels)))
	mux.Handle("/admin/corpus/reload", instrument("/admin/corpus/reload", http.HandlerFunc(a.handleCorpusReload)))
	mux.Handle("/admin/chain/export", instrument("/admin/chain/export", http.HandlerFunc(a.handleChainExport)))
	mux.Handle("/admin/chain/import", instrument("/admin/chain/import", http.HandlerFunc(a.handleChainImport)))
	mux.Handle("/admin/chain/stats", instrument("/admin/chain/stats", http.HandlerFunc(a.handleChainStats)))
	mux.HandleFunc("/admin/shutdown", a.handleShutdown)
	mux.HandleFunc("/admin/restart", a.handleRestart)
}

func (a *ServerAPI) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion reports the emulated vLLM version. ?details=true adds build info.
func (a *ServerAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	info := VersionInfo{
		Version:            vllmVersion,
		WhiteRabbitVersion: Version,
	}
	if r.URL.Query().Get("details") == "true" {
		info.Commit = Commit
		info.BuildDate = BuildDate
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (a *ServerAPI) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model := a.config.Server.Model
	respondWithJSON(w, http.StatusOK, ModelList{
		Object: "list",
		Data: []ModelCard{{
			ID:          model,
			Object:      "model",
			Created:     a.started.Unix(),
			OwnedBy:     "vllm",
			Root:        model,
			MaxModelLen: a.config.Server.MaxModelLen,
		}},
	})
}

// handleCorpusReload discards the cached chain and rebuilds it from a fresh
// corpus load.
func (a *ServerAPI) handleCorpusReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	builder := a.engine.Chains()
	if builder == nil {
		respondWithError(w, http.StatusConflict, "No Markov chain is configured")
		return
	}

	a.logger.Info("Corpus reload requested via API")
	builder.Reset()
	chain := builder.Get(r.Context())
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Corpus reloaded",
		"stats":   chain.Stats(),
	})
}

func (a *ServerAPI) handleChainStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, a.currentChain(r).Stats())
}

// handleChainExport streams the chain as JSON. ?save=true also writes the
// snapshot to the configured export path.
func (a *ServerAPI) handleChainExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	chain := a.currentChain(r)

	if r.URL.Query().Get("save") == "true" {
		path := a.config.Server.ChainExportPath
		if err := chain.ExportFile(path); err != nil {
			a.logger.Error("Failed to export chain to file", "path", path, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to export chain")
			return
		}
		a.logger.Info("Chain exported to file", "path", path)
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Chain exported", "path": path})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="chain.json"`)
	if err := chain.Export(w); err != nil {
		a.logger.Error("Failed to export chain", "error", err)
	}
}

// handleChainImport replaces the running chain with a JSON export. The import
// lasts until the next corpus reload.
func (a *ServerAPI) handleChainImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	builder := a.engine.Chains()
	if builder == nil {
		respondWithError(w, http.StatusConflict, "No Markov chain is configured")
		return
	}

	chain, err := builder.Import(http.MaxBytesReader(w, r.Body, maxChainImportBytes))
	if err != nil {
		a.logger.Warn("Rejected chain import", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid chain export: "+err.Error())
		return
	}
	a.logger.Info("Chain imported via API")
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Chain imported",
		"stats":   chain.Stats(),
	})
}

func (a *ServerAPI) currentChain(r *http.Request) *markov.Chain {
	if builder := a.engine.Chains(); builder != nil {
		return builder.Get(r.Context())
	}
	return nil
}

// handleShutdown initiates a graceful shutdown of the server.
func (a *ServerAPI) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	a.logger.Warn("Shutdown initiated via API")
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server is shutting down..."})

	go func() {
		a.actionChan <- actionShutdown
	}()
}

// handleRestart reloads the configuration and restarts the server.
func (a *ServerAPI) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	a.logger.Warn("Restart initiated via API")
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server is restarting..."})

	go func() {
		a.actionChan <- actionRestart
	}()
}

package main

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/CTAG07/whiterabbit/pkg/textgen"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the API handlers onto a single mux.
type Server struct {
	config      *Config
	db          *sql.DB
	logger      *slog.Logger
	engine      *textgen.Engine
	authAPI     *AuthAPI
	openaiAPI   *OpenAIAPI
	tokenizeAPI *TokenizeAPI
	statsAPI    *StatsAPI
	serverAPI   *ServerAPI
	mux         *http.ServeMux
}

func NewServer(config *Config, logger *slog.Logger, db *sql.DB, engine *textgen.Engine, actionChan chan string) *Server {

	// api initialization
	authAPI := NewAuthAPI(config.Server.APIKey, logger)
	statsAPI := NewStatsAPI(db, logger)
	openaiAPI := NewOpenAIAPI(config, engine, statsAPI, logger)
	tokenizeAPI := NewTokenizeAPI(config, logger)
	serverAPI := NewServerAPI(config, actionChan, engine, logger)

	server := &Server{
		config:      config,
		db:          db,
		logger:      logger,
		engine:      engine,
		authAPI:     authAPI,
		openaiAPI:   openaiAPI,
		tokenizeAPI: tokenizeAPI,
		statsAPI:    statsAPI,
		serverAPI:   serverAPI,
		mux:         http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.openaiAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)
	apiMux.HandleFunc("/", handleNotFound)

	// /v1 and /admin must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	server.mux.Handle("/v1/", authedAPI)
	server.mux.Handle("/admin/", authedAPI)

	// ... the rest is open, like a vLLM server started without --api-key
	server.serverAPI.RegisterPublicRoutes(server.mux)
	server.tokenizeAPI.RegisterRoutes(server.mux)
	server.mux.Handle("/metrics", promhttp.Handler())
	server.mux.HandleFunc("/", handleNotFound)

	return server
}

// ServeHTTP makes the Server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondWithError(w, http.StatusNotFound, "Not found")
}

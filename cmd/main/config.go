package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CTAG07/whiterabbit/pkg/corpus"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server and the emulated model.
type ServerConfig struct {
	Addr            string `json:"addr"`
	LogLevel        string `json:"log_level"`
	LogPrefix       string `json:"log_prefix"`
	LogColors       bool   `json:"log_colors"`
	DataDir         string `json:"data_dir"`
	DatabasePath    string `json:"database_path"`
	ChainExportPath string `json:"chain_export_path"`
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	MaxModelLen     int    `json:"max_model_len"`
	VocabSize       int    `json:"vocab_size"`
	EmbeddingDims   int    `json:"embedding_dims"`
	// StrictBudget makes every request fill its token budget, even when the
	// client did not set max_tokens.
	StrictBudget bool `json:"strict_budget"`
}

// CorpusConfig holds settings for loading the text corpus.
type CorpusConfig struct {
	Dataset          string `json:"dataset"`
	Column           string `json:"column"`
	MaxRows          int    `json:"max_rows"`
	FetchTimeoutSec  int    `json:"fetch_timeout_sec"`
	CacheEnabled     bool   `json:"cache_enabled"`
	CacheMaxAgeHours int    `json:"cache_max_age_hours"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Corpus *CorpusConfig `json:"corpus_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:            ":8000",
		LogLevel:        "info",
		LogPrefix:       "🐰",
		LogColors:       true,
		DataDir:         "./data",
		DatabasePath:    "./data/whiterabbit.db",
		ChainExportPath: "./data/chain.json",
		APIKey:          "",
		Model:           "Qwen/Qwen2.5-1.5B-Instruct",
		MaxModelLen:     32768,
		VocabSize:       151936,
		EmbeddingDims:   384,
		StrictBudget:    false,
	}
}

// DefaultCorpusConfig creates a corpus configuration that uses the bundled corpus.
func DefaultCorpusConfig() *CorpusConfig {
	return &CorpusConfig{
		Dataset:          "",
		Column:           "",
		MaxRows:          10000,
		FetchTimeoutSec:  60,
		CacheEnabled:     true,
		CacheMaxAgeHours: 0,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := &Config{
		Server: DefaultServerConfig(),
		Corpus: DefaultCorpusConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	// Sections missing from an older file keep their defaults.
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Corpus == nil {
		config.Corpus = DefaultCorpusConfig()
	}

	return config, nil
}

// ApplyEnv overrides configuration values from WR_* environment variables.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("WR_MODEL"); ok && v != "" {
		c.Server.Model = v
	}
	if v, ok := lookup("WR_LOG_LEVEL"); ok && v != "" {
		c.Server.LogLevel = v
	}
	if v, ok := lookup("WR_LOG_PREFIX"); ok && v != "" {
		c.Server.LogPrefix = v
	}
	if v, ok := lookup("WR_LOG_COLORS"); ok && v != "" {
		colors, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WR_LOG_COLORS %q", v)
		}
		c.Server.LogColors = colors
	}
	if v, ok := lookup("WR_API_KEY"); ok {
		c.Server.APIKey = v
	}
	if v, ok := lookup("WR_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid WR_PORT %q", v)
		}
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("WR_HF_DATASET"); ok {
		c.Corpus.Dataset = strings.TrimSpace(v)
	}
	if v, ok := lookup("WR_HF_COLUMN"); ok {
		c.Corpus.Column = strings.TrimSpace(v)
	}
	return nil
}

// CorpusOptions converts the corpus section into loader options.
func (c *CorpusConfig) CorpusOptions() corpus.Options {
	return corpus.Options{
		Dataset: c.Dataset,
		Column:  c.Column,
		MaxRows: c.MaxRows,
		Timeout: time.Duration(c.FetchTimeoutSec) * time.Second,
		MaxAge:  time.Duration(c.CacheMaxAgeHours) * time.Hour,
	}
}

// Package config provides configuration loading and structs for gapscout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Matching  MatchingConfig  `yaml:"matching"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MatchingConfig holds similarity matching settings.
type MatchingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ArticleTextBudget   int     `yaml:"article_text_budget"`
}

// EmbeddingConfig holds embedding provider settings. APIKeyEnv names the
// environment variable holding the key; the key itself never lives in the
// config file.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

// APIKey resolves the provider key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// StorageConfig holds paths for the embedding cache and indices.
type StorageConfig struct {
	EmbeddingCachePath string `yaml:"embedding_cache_path"`
	BleveIndexPath     string `yaml:"bleve_index_path"`
	VectorIndexPath    string `yaml:"vector_index_path"`
}

// IngestConfig holds input locations for a pipeline run.
type IngestConfig struct {
	ArticlesPath  string `yaml:"articles_path"`
	TranscriptDir string `yaml:"transcript_dir"`
	EmailDir      string `yaml:"email_dir"`
}

// WatchConfig holds drop-directory watch settings.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
	Recursive  *bool    `yaml:"recursive"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true
// when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and
// expands relative paths against the config directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.EmbeddingCachePath = expandPath(cfg.Storage.EmbeddingCachePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	if cfg.Ingest.ArticlesPath != "" {
		cfg.Ingest.ArticlesPath = expandPath(cfg.Ingest.ArticlesPath, configDir)
	}
	if cfg.Ingest.TranscriptDir != "" {
		cfg.Ingest.TranscriptDir = expandPath(cfg.Ingest.TranscriptDir, configDir)
	}
	if cfg.Ingest.EmailDir != "" {
		cfg.Ingest.EmailDir = expandPath(cfg.Ingest.EmailDir, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

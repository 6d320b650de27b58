// Package config provides configuration loading and structs for tanya.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds on-disk locations. StorePath is the directory holding
// docs.index and metadata.pkl; DocumentsDir receives uploads and sample files.
type StorageConfig struct {
	StorePath        string `yaml:"store_path"`
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	DocumentsDir     string `yaml:"documents_dir"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai", "ollama" or "mock".
	Provider   string        `yaml:"provider"`
	ModelPath  string        `yaml:"model_path"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// VectorConfig selects the similarity index implementation.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// ChunkingConfig holds splitter sizes in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// TierConfig is one (k, threshold) retrieval attempt.
type TierConfig struct {
	K         int     `yaml:"k"`
	Threshold float64 `yaml:"threshold"`
}

// RetrievalConfig holds the ordered threshold tiers and query abbreviations.
type RetrievalConfig struct {
	Tiers         []TierConfig      `yaml:"tiers"`
	Abbreviations map[string]string `yaml:"abbreviations"`
}

// AnswerConfig controls answer composition.
type AnswerConfig struct {
	// Mode is "template" or "generative".
	Mode             string        `yaml:"mode"`
	Model            string        `yaml:"model"`
	BaseURL          string        `yaml:"base_url"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	MaxContextChunks int           `yaml:"max_context_chunks"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with every default applied. Relative paths resolve
// against the current directory.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	expandPaths(cfg, dir)
	return cfg
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

// Validate rejects values that would break retrieval or chunking.
func Validate(cfg *Config) error {
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			cfg.Chunking.ChunkOverlap, cfg.Chunking.ChunkSize)
	}
	for i, tier := range cfg.Retrieval.Tiers {
		if tier.K < 1 {
			return fmt.Errorf("retrieval.tiers[%d].k must be at least 1", i)
		}
		if tier.Threshold < -1 || tier.Threshold > 1 {
			return fmt.Errorf("retrieval.tiers[%d].threshold %v outside [-1, 1]", i, tier.Threshold)
		}
	}
	switch cfg.Answer.Mode {
	case "template", "generative":
	default:
		return fmt.Errorf("answer.mode must be template or generative, got %q", cfg.Answer.Mode)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.StorePath = expandPath(cfg.Storage.StorePath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.DocumentsDir = expandPath(cfg.Storage.DocumentsDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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

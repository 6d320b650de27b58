package config

import "time"

// DefaultAbbreviations are expanded in questions before embedding.
var DefaultAbbreviations = map[string]string{
	"PTO": "paid time off vacation",
	"HR":  "human resources",
	"IT":  "information technology technical support",
	"FAQ": "frequently asked questions",
}

// DefaultTiers are tried in order until one returns results.
var DefaultTiers = []TierConfig{
	{K: 5, Threshold: 0.45},
	{K: 5, Threshold: 0.30},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.StorePath == "" {
		cfg.Storage.StorePath = ".tanya/vector_store"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".tanya/documents.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = ".tanya/keyword"
	}
	if cfg.Storage.DocumentsDir == "" {
		cfg.Storage.DocumentsDir = ".tanya/documents"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if len(cfg.Retrieval.Tiers) == 0 {
		cfg.Retrieval.Tiers = append([]TierConfig(nil), DefaultTiers...)
	}
	if cfg.Retrieval.Abbreviations == nil {
		cfg.Retrieval.Abbreviations = make(map[string]string, len(DefaultAbbreviations))
		for k, v := range DefaultAbbreviations {
			cfg.Retrieval.Abbreviations[k] = v
		}
	}
	if cfg.Answer.Mode == "" {
		cfg.Answer.Mode = "template"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Answer.MaxContextChunks == 0 {
		cfg.Answer.MaxContextChunks = 3
	}
	if cfg.Answer.Timeout == 0 {
		cfg.Answer.Timeout = 60 * time.Second
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".csv", ".rtf", ".odt"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

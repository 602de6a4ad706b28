// Package config loads, defaults, and persists the tool's YAML
// configuration.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"localkb/internal/domain"
)

// Config holds all configuration for the knowledge-base tool.
type Config struct {
	Documents DocumentsConfig `yaml:"documents"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`

	// path the config was loaded from, for status write-back.
	path string
}

// DocumentsConfig lists what gets indexed.
type DocumentsConfig struct {
	Folders    []string `yaml:"folders"`
	Extensions []string `yaml:"extensions"`
}

// ChunkingConfig holds the splitter parameters.
type ChunkingConfig struct {
	Window  int `yaml:"window"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// StoreConfig holds the collection identity and location, plus the index
// status the indexer updates as a side effect of long-running runs.
type StoreConfig struct {
	Path        string             `yaml:"path"`
	Collection  string             `yaml:"collection"`
	IndexStatus domain.IndexStatus `yaml:"index_status"`
}

// RetrieveConfig holds retrieval tuning.
type RetrieveConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// LLMConfig holds the generation endpoint and sampling parameters.
type LLMConfig struct {
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Temperature float64  `yaml:"temperature"`
	TopP        float64  `yaml:"top_p"`
	TopK        int      `yaml:"top_k"`
	MaxTokens   int      `yaml:"max_tokens"`
	Stop        []string `yaml:"stop,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Folders:    []string{"./documents"},
			Extensions: []string{".pdf", ".txt", ".text", ".md", ".markdown", ".docx"},
		},
		Chunking: ChunkingConfig{
			Window:  1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Model:   "nomic-embed-text",
			BaseURL: "http://localhost:11434",
		},
		Store: StoreConfig{
			Path:        ".localkb",
			Collection:  "knowledge",
			IndexStatus: domain.IndexNotCreated,
		},
		Retrieve: RetrieveConfig{
			TopK:          5,
			MinSimilarity: 0.0,
		},
		LLM: LLMConfig{
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
			TopP:        0.9,
			TopK:        40,
			MaxTokens:   2000,
			Stop:        []string{"[DONE]", "<|im_end|>"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for localkb.yaml,
// then .localkb/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "localkb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".localkb", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.path = filepath.Join(dir, "localkb.yaml")
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SetIndexStatus records an index status transition and writes it back to
// the file the config was loaded from. Write-back is skipped when the file
// does not exist yet.
func (c *Config) SetIndexStatus(status domain.IndexStatus) error {
	c.Store.IndexStatus = status
	if c.path == "" {
		return nil
	}
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return nil
	}
	return c.Save(c.path)
}

// StorageDir returns the directory holding the collection database.
func (c *Config) StorageDir() string {
	return c.Store.Path
}

// EnsureStorageDir creates the storage directory.
func (c *Config) EnsureStorageDir() error {
	return os.MkdirAll(c.Store.Path, 0o755)
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SandboxConfig holds defaults for building a sandbox from a repo.
type SandboxConfig struct {
	// MaxFileSizeBytes caps any single ingested file (default: 50MB)
	MaxFileSizeBytes int64 `json:"max_file_size_bytes,omitempty"`

	// MaxTotalSizeBytes caps the sandbox's cumulative arena size (default: 500MB)
	MaxTotalSizeBytes int64 `json:"max_total_size_bytes,omitempty"`

	// ExcludePatterns are glob patterns for paths to skip during a local
	// directory walk, in addition to the built-in excludes.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
}

// ChunkerConfig holds defaults for the token-bounded chunker.
type ChunkerConfig struct {
	// MaxTokens is the approximate token budget per chunk (default: 2000)
	MaxTokens int `json:"max_tokens,omitempty"`
}

// EmbeddingConfig holds defaults for the remote embedding client.
type EmbeddingConfig struct {
	// Endpoint is the embedding service base URL (default: http://localhost:8000)
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the embedding model name the service is expected to serve
	Model string `json:"model,omitempty"`

	// TimeoutSeconds bounds each embedding request (default: 120)
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ClustererConfig holds defaults for the k-means clustering stage.
type ClustererConfig struct {
	// NumClusters is the target cluster count k (default: 8)
	NumClusters int `json:"num_clusters,omitempty"`

	// MaxIterations bounds k-means convergence (default: 50)
	MaxIterations int `json:"max_iterations,omitempty"`

	// Seed makes cluster assignment deterministic (default: 1)
	Seed uint64 `json:"seed,omitempty"`
}

// OutputConfig holds defaults for where a built docpack is written.
type OutputConfig struct {
	// Directory is where a docpack is written when --output is omitted
	Directory string `json:"directory,omitempty"`
}

// Config is the top-level co2pack configuration.
type Config struct {
	Schema    int              `json:"schema"`
	Workers   int              `json:"workers,omitempty"`
	Sandbox   *SandboxConfig   `json:"sandbox,omitempty"`
	Chunker   *ChunkerConfig   `json:"chunker,omitempty"`
	Embedding *EmbeddingConfig `json:"embedding,omitempty"`
	Clusterer *ClustererConfig `json:"clusterer,omitempty"`
	Output    *OutputConfig    `json:"output,omitempty"`
}

const CurrentConfigSchema = 1

// DefaultConfig returns a Config with no overrides; every Get*Config
// accessor fills in its own defaults when a section is nil.
func DefaultConfig() *Config {
	return &Config{Schema: CurrentConfigSchema, Workers: 4}
}

// Load reads the first config file found among an explicit path (if
// given) and the XDG config directory, falling back to DefaultConfig
// when neither exists.
func Load(configPath string) (*Config, error) {
	paths := getConfigPaths(configPath)

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}

		cfg.expandPaths()
		return &cfg, nil
	}

	return DefaultConfig(), nil
}

func getConfigPaths(explicit string) []string {
	home, _ := os.UserHomeDir()

	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "co2pack", "config.json"))

	return paths
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	if c.Output != nil && len(c.Output.Directory) > 0 && c.Output.Directory[0] == '~' {
		c.Output.Directory = filepath.Join(home, c.Output.Directory[1:])
	}
}

// GetSandboxConfig returns the sandbox config with defaults applied.
func (c *Config) GetSandboxConfig() SandboxConfig {
	cfg := SandboxConfig{
		MaxFileSizeBytes:  50 * 1024 * 1024,
		MaxTotalSizeBytes: 500 * 1024 * 1024,
	}
	if c.Sandbox != nil {
		if c.Sandbox.MaxFileSizeBytes > 0 {
			cfg.MaxFileSizeBytes = c.Sandbox.MaxFileSizeBytes
		}
		if c.Sandbox.MaxTotalSizeBytes > 0 {
			cfg.MaxTotalSizeBytes = c.Sandbox.MaxTotalSizeBytes
		}
		if len(c.Sandbox.ExcludePatterns) > 0 {
			cfg.ExcludePatterns = c.Sandbox.ExcludePatterns
		}
	}
	return cfg
}

// GetChunkerConfig returns the chunker config with defaults applied.
func (c *Config) GetChunkerConfig() ChunkerConfig {
	cfg := ChunkerConfig{MaxTokens: 2000}
	if c.Chunker != nil && c.Chunker.MaxTokens > 0 {
		cfg.MaxTokens = c.Chunker.MaxTokens
	}
	return cfg
}

// GetEmbeddingConfig returns the embedding config with defaults applied.
func (c *Config) GetEmbeddingConfig() EmbeddingConfig {
	cfg := EmbeddingConfig{
		Endpoint:       "http://localhost:8000",
		Model:          "google/embeddinggemma-300m",
		TimeoutSeconds: 120,
	}
	if c.Embedding != nil {
		if c.Embedding.Endpoint != "" {
			cfg.Endpoint = c.Embedding.Endpoint
		}
		if c.Embedding.Model != "" {
			cfg.Model = c.Embedding.Model
		}
		if c.Embedding.TimeoutSeconds > 0 {
			cfg.TimeoutSeconds = c.Embedding.TimeoutSeconds
		}
	}
	return cfg
}

// GetClustererConfig returns the clusterer config with defaults applied.
func (c *Config) GetClustererConfig() ClustererConfig {
	cfg := ClustererConfig{NumClusters: 8, MaxIterations: 50, Seed: 1}
	if c.Clusterer != nil {
		if c.Clusterer.NumClusters > 0 {
			cfg.NumClusters = c.Clusterer.NumClusters
		}
		if c.Clusterer.MaxIterations > 0 {
			cfg.MaxIterations = c.Clusterer.MaxIterations
		}
		if c.Clusterer.Seed != 0 {
			cfg.Seed = c.Clusterer.Seed
		}
	}
	return cfg
}

// GetOutputConfig returns the output config with defaults applied.
func (c *Config) GetOutputConfig() OutputConfig {
	cfg := OutputConfig{Directory: "."}
	if c.Output != nil && c.Output.Directory != "" {
		cfg.Directory = c.Output.Directory
	}
	return cfg
}

// GetWorkers returns the configured worker-pool size, defaulting to 4.
func (c *Config) GetWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 4
}

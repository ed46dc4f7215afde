// Package config loads the service configuration from per-environment YAML
// files with ${VAR:-default} expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the scamlens service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Backends  []BackendConfig `yaml:"backends"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Seed      SeedConfig      `yaml:"seed"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings. Model and dimensions
// together form the embedding version: the index is built for exactly this
// pair, and a vector of any other length is rejected before it is stored or
// compared.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // label for logs/metrics
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheTTLh  int    `yaml:"cache_ttl_hours"` // 0 = no expiry
}

// RetrievalConfig holds retriever settings.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	Oversample    int     `yaml:"oversample_factor"`
}

// BackendConfig holds one model backend. Backends are tried in the order
// they appear in the config. Retries is a pointer so an explicit 0 (single
// attempt per backend) survives defaulting.
type BackendConfig struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // "ollama" | "openai"
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Retries    *int   `yaml:"retries"`
}

// ClassifyConfig holds classification settings.
type ClassifyConfig struct {
	MaxConcurrent    int `yaml:"max_concurrent"`
	PromptBudgetByte int `yaml:"prompt_budget_bytes"`
}

// SeedConfig holds seed loader settings.
type SeedConfig struct {
	CorpusPath       string  `yaml:"corpus_path"`
	ManifestDir      string  `yaml:"manifest_dir"`
	BatchSize        int     `yaml:"batch_size"`
	CheckpointEvery  int     `yaml:"checkpoint_every"`
	FailureThreshold float64 `yaml:"failure_rate_threshold"`
	StoreRetries     int     `yaml:"store_retries"`
}

// Load reads configuration from a YAML file by environment name (local,
// dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60 // LLM round-trips are slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 32
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 400
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MinSimilarity <= 0 {
		c.Retrieval.MinSimilarity = 0.3
	}
	if c.Retrieval.Oversample <= 0 {
		c.Retrieval.Oversample = 3
	}
	if c.Classify.MaxConcurrent <= 0 {
		c.Classify.MaxConcurrent = 8
	}
	if c.Classify.PromptBudgetByte <= 0 {
		c.Classify.PromptBudgetByte = 12288
	}
	if c.Seed.BatchSize <= 0 {
		c.Seed.BatchSize = 50
	}
	if c.Seed.CheckpointEvery <= 0 {
		c.Seed.CheckpointEvery = 200
	}
	if c.Seed.FailureThreshold <= 0 {
		c.Seed.FailureThreshold = 0.05
	}
	if c.Seed.StoreRetries <= 0 {
		c.Seed.StoreRetries = 3
	}
	for i := range c.Backends {
		if c.Backends[i].TimeoutSec <= 0 {
			c.Backends[i].TimeoutSec = 30
		}
		if c.Backends[i].Retries == nil {
			retries := 1
			c.Backends[i].Retries = &retries
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
		switch b.Kind {
		case "ollama", "openai":
		default:
			return fmt.Errorf("backends[%d].kind must be \"ollama\" or \"openai\", got %q", i, b.Kind)
		}
		if b.Model == "" {
			return fmt.Errorf("backends[%d].model is required", i)
		}
		if b.Retries != nil && *b.Retries < 0 {
			return fmt.Errorf("backends[%d].retries must not be negative, got %d", i, *b.Retries)
		}
	}
	if c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in (0,1], got %f", c.Retrieval.MinSimilarity)
	}
	if c.Seed.FailureThreshold > 1 {
		return fmt.Errorf("seed.failure_rate_threshold must be in (0,1], got %f", c.Seed.FailureThreshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

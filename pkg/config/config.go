package config

import (
	"fmt"
	"os"
	"time"

	"github.com/onramp-ai/onramp/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all Onramp gateway configuration.
type Config struct {
	Listen    string                            `yaml:"listen"`
	DBPath    string                            `yaml:"db_path"`
	AuditPath string                            `yaml:"audit_db_path"`
	CachePath string                            `yaml:"cache_db_path"`
	Providers []models.ProviderProfile          `yaml:"providers"`
	Tiers     map[models.Tier]models.TierConfig `yaml:"tiers"`
	Usage     UsageConfig                       `yaml:"usage"`
	Memory    MemoryConfig                      `yaml:"memory"`
	Privacy   PrivacyConfig                     `yaml:"privacy"`
	Cache     CacheConfig                       `yaml:"cache"`
	Router    RouterConfig                      `yaml:"router"`
	Retrieval RetrievalConfig                   `yaml:"retrieval"`
	RateLimit RateLimitConfig                   `yaml:"rate_limit"`
}

// UsageConfig controls quota accounting.
type UsageConfig struct {
	Period time.Duration `yaml:"period"`
}

// MemoryConfig controls conversation memory.
type MemoryConfig struct {
	MaxHistory      int           `yaml:"max_history"`
	TTL             time.Duration `yaml:"ttl"`
	MaxContextChars int           `yaml:"max_context_chars"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// PrivacyConfig controls PII handling and consent.
type PrivacyConfig struct {
	ConsentRegions []string      `yaml:"consent_regions"`
	ConsentTTL     time.Duration `yaml:"consent_ttl"`
	RetentionDays  int           `yaml:"retention_days"`
}

// CacheConfig controls the answer cache for popular queries.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	TTL         time.Duration `yaml:"ttl"`
	MinHitCount int64         `yaml:"min_hit_count"`
}

// RouterConfig controls provider invocation.
type RouterConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// RetrievalConfig selects and configures the retrieval backend.
// Backend is "static" (built-in, for tests and no-backend deployments)
// or "qdrant".
type RetrievalConfig struct {
	Backend        string `yaml:"backend"`
	TopK           int    `yaml:"top_k"`
	QdrantURL      string `yaml:"qdrant_url"`
	QdrantAPIKey   string `yaml:"qdrant_api_key"`
	Collection     string `yaml:"collection"`
	EmbeddingURL   string `yaml:"embedding_url"`
	EmbeddingKey   string `yaml:"embedding_api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// RateLimitConfig controls per-identity request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		DBPath:    "onramp.db",
		AuditPath: "onramp_audit.db",
		CachePath: "onramp_cache.db",
		Tiers:     models.DefaultTiers(),
		Usage: UsageConfig{
			Period: 30 * 24 * time.Hour,
		},
		Memory: MemoryConfig{
			MaxHistory:      10,
			TTL:             30 * time.Minute,
			MaxContextChars: 8000,
		},
		Privacy: PrivacyConfig{
			ConsentRegions: []string{"EU"},
			ConsentTTL:     365 * 24 * time.Hour,
			RetentionDays:  90,
		},
		Cache: CacheConfig{
			Enabled:     true,
			TTL:         time.Hour,
			MinHitCount: 3,
		},
		Router: RouterConfig{
			Timeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Backend: "static",
			TopK:    4,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for tier := range c.Tiers {
		if _, err := models.ParseTier(string(tier)); err != nil {
			return fmt.Errorf("config tiers: %w", err)
		}
	}
	switch c.Retrieval.Backend {
	case "", "static", "qdrant":
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	return nil
}

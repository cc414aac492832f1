// Package config defines fetch configuration options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheBackend names a durable store for cached responses.
type CacheBackend string

const (
	CacheJSON       CacheBackend = "json"    // Single JSON document
	CacheSQLite3    CacheBackend = "sqlite3" // SQLite via cgo driver
	CacheSQLitePure CacheBackend = "sqlite"  // SQLite via pure-Go driver
	CacheLevelDB    CacheBackend = "leveldb" // LevelDB directory
	CacheMemory     CacheBackend = "memory"  // Not persisted
	CacheNone       CacheBackend = "none"    // Caching disabled
)

// Config holds all configuration for a go2web invocation.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string `json:"user_agent" yaml:"userAgent"`

	// Maximum number of redirect hops before giving up
	MaxRedirects int `json:"max_redirects" yaml:"maxRedirects"`

	// TCP connect timeout (0 = none)
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connectTimeout"`

	// Read timeout for a whole response (0 = none)
	ReadTimeout time.Duration `json:"read_timeout" yaml:"readTimeout"`

	// Accept any TLS certificate and server name.
	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecureSkipVerify"`

	// Maximum response size in bytes (0 = unlimited)
	MaxResponseSize int64 `json:"max_response_size" yaml:"maxResponseSize"`

	// Requests per second across redirect hops (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requestsPerSecond"`

	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Search SearchConfig `json:"search" yaml:"search"`
}

// CacheConfig selects and locates the response cache.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend"`
	Path    string       `json:"path" yaml:"path"`
}

// SearchConfig configures the search engine endpoint.
type SearchConfig struct {
	BaseURL string `json:"base_url" yaml:"baseURL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:          "go2web/1.0 (+https://github.com/go2web/go2web)",
		MaxRedirects:       10,
		ConnectTimeout:     10 * time.Second,
		ReadTimeout:        30 * time.Second,
		InsecureSkipVerify: true,
		MaxResponseSize:    0, // unlimited
		RequestsPerSecond:  0, // unlimited

		Cache: CacheConfig{
			Backend: CacheJSON,
			Path:    "http_cache.json",
		},
		Search: SearchConfig{
			BaseURL: "https://www.google.com/search",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxRedirects < 1 {
		return fmt.Errorf("max_redirects must be at least 1")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent must not be empty")
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxResponseSize < 0 {
		return fmt.Errorf("max_response_size must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	switch c.Cache.Backend {
	case CacheJSON, CacheSQLite3, CacheSQLitePure, CacheLevelDB:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache backend %q needs a path", c.Cache.Backend)
		}
	case CacheMemory, CacheNone:
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search base URL must not be empty")
	}
	return nil
}

// Save saves the configuration as YAML or JSON depending on the file extension.
func (c *Config) Save(filePath string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filePath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from a YAML (.yaml, .yml) or JSON file.
// Values missing from the file keep their defaults.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(filePath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func isYAML(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == ".yaml" || ext == ".yml"
}

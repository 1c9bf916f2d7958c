// Package config provides configuration loading for the repository server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SourceTypeHTTP is the type for sources backed by a remote simple index
	SourceTypeHTTP = "http"

	// SourceTypeLocal is the type for sources backed by a local directory tree
	SourceTypeLocal = "local"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// RepositoryName is the name/identifier for this repository instance
	// Defaults to "default" if not specified
	RepositoryName string `yaml:"repositoryName,omitempty"`

	// Sources are the upstream repositories, ordered from highest to
	// lowest priority. With more than one source a project is served
	// exclusively by the first source that carries it.
	Sources []SourceConfig `yaml:"sources"`

	// Cache configures the store shared by the caching components
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Metadata configures distribution metadata injection
	Metadata *MetadataConfig `yaml:"metadata,omitempty"`

	// AllowedProjects restricts the served projects to the listed names.
	// An empty list means no restriction.
	AllowedProjects []string `yaml:"allowedProjects,omitempty"`
}

// SourceConfig defines a single upstream source configuration
type SourceConfig struct {
	// Name is the identifier for this source
	Name string `yaml:"name"`

	// Type-specific configurations (only one should be set)
	HTTP  *HTTPSourceConfig  `yaml:"http,omitempty"`
	Local *LocalSourceConfig `yaml:"local,omitempty"`
}

// HTTPSourceConfig defines a remote simple index source
type HTTPSourceConfig struct {
	// URL is the index root, e.g. "https://pypi.org/simple/"
	URL string `yaml:"url"`

	// MaxTries caps attempts per upstream request, including the first.
	// Defaults to 3.
	MaxTries uint `yaml:"maxTries,omitempty"`

	// Timeout is the per-request timeout (e.g. "30s"). Defaults to 30s.
	Timeout string `yaml:"timeout,omitempty"`
}

// LocalSourceConfig defines a local directory source
type LocalSourceConfig struct {
	// Path is the directory holding one subdirectory per project
	Path string `yaml:"path"`
}

// CacheConfig defines the store backing index revalidation and extracted
// metadata
type CacheConfig struct {
	// Dir is the on-disk cache directory. Empty selects a directory under
	// the XDG cache home. "off" disables the disk layer entirely.
	Dir string `yaml:"dir,omitempty"`

	// MemoryEntries bounds the in-process cache. Defaults to 1024.
	MemoryEntries int `yaml:"memoryEntries,omitempty"`
}

// MetadataConfig defines distribution metadata injection settings
type MetadataConfig struct {
	// Enabled turns on metadata injection for wheels whose upstream does
	// not publish metadata files
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetRepositoryName returns the repository name, using "default" if not specified
func (c *Config) GetRepositoryName() string {
	if c.RepositoryName == "" {
		return "default"
	}
	return c.RepositoryName
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate at least one source is configured
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	// Validate each source configuration
	sourceNames := make(map[string]bool)
	for i, src := range c.Sources {
		// Validate source name
		if src.Name == "" {
			return fmt.Errorf("source[%d]: name is required", i)
		}

		// Check for duplicate source names
		if sourceNames[src.Name] {
			return fmt.Errorf("source[%d]: duplicate source name '%s'", i, src.Name)
		}
		sourceNames[src.Name] = true

		// Validate source-specific configuration
		if err := validateSourceConfig(&src, i); err != nil {
			return err
		}
	}

	return validateCacheConfig(c.Cache)
}

// validateSourceConfig validates a single source configuration
func validateSourceConfig(src *SourceConfig, index int) error {
	prefix := fmt.Sprintf("source[%d] (%s)", index, src.Name)

	// Validate exactly one source type is configured
	if err := validateSourceTypeCount(src, prefix); err != nil {
		return err
	}

	// Validate type-specific settings
	if src.HTTP != nil {
		return validateHTTPSourceConfig(src.HTTP, prefix)
	}
	return validateLocalSourceConfig(src.Local, prefix)
}

// validateSourceTypeCount ensures exactly one source type is configured
func validateSourceTypeCount(src *SourceConfig, prefix string) error {
	configCount := 0
	if src.HTTP != nil {
		configCount++
	}
	if src.Local != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("%s: one of http or local configuration must be specified", prefix)
	}
	if configCount > 1 {
		return fmt.Errorf("%s: only one of http or local configuration may be specified", prefix)
	}

	return nil
}

// validateHTTPSourceConfig validates remote index configuration
func validateHTTPSourceConfig(httpCfg *HTTPSourceConfig, prefix string) error {
	if httpCfg.URL == "" {
		return fmt.Errorf("%s: http.url is required", prefix)
	}
	parsed, err := url.Parse(httpCfg.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s: http.url must be an http or https URL, got %s", prefix, httpCfg.URL)
	}
	if httpCfg.Timeout != "" {
		if _, err := time.ParseDuration(httpCfg.Timeout); err != nil {
			return fmt.Errorf("%s: http.timeout must be a valid duration (e.g., '30s', '1m'): %w", prefix, err)
		}
	}
	return nil
}

// validateLocalSourceConfig validates local directory configuration
func validateLocalSourceConfig(local *LocalSourceConfig, prefix string) error {
	if local.Path == "" {
		return fmt.Errorf("%s: local.path is required", prefix)
	}
	return nil
}

// validateCacheConfig validates cache settings
func validateCacheConfig(cacheCfg *CacheConfig) error {
	if cacheCfg == nil {
		return nil
	}
	if cacheCfg.MemoryEntries < 0 {
		return fmt.Errorf("cache.memoryEntries must not be negative")
	}
	return nil
}

// GetType returns the inferred type of the source config based on which field is present
func (s *SourceConfig) GetType() string {
	if s.HTTP != nil {
		return SourceTypeHTTP
	}
	if s.Local != nil {
		return SourceTypeLocal
	}
	return ""
}

// GetTimeout returns the parsed per-request timeout for an HTTP source
func (h *HTTPSourceConfig) GetTimeout() time.Duration {
	if h.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

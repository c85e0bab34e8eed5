package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete GrantScout configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures where GrantScout keeps its on-disk state.
type PathsConfig struct {
	// DataDir is the index directory, relative to the project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures the hybrid retrieval pipeline.
// Tunables are configurable via:
//  1. User config (~/.config/grantscout/config.yaml) - personal defaults
//  2. Project config (.grantscout.yaml) - per-corpus tuning
//  3. Env vars (GRANTSCOUT_RRF_CONSTANT, GRANTSCOUT_SEMANTIC_THRESHOLD, ...) - highest priority
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// SemanticThreshold is the minimum cosine similarity for a vector hit.
	SemanticThreshold float64 `yaml:"semantic_threshold" json:"semantic_threshold"`

	// SemanticLimit caps how many vector hits feed into fusion.
	SemanticLimit int `yaml:"semantic_limit" json:"semantic_limit"`

	// ScanLimit is the reduced cap used when the vector index is gone
	// and the engine falls back to an exact scan over stored embeddings.
	ScanLimit int `yaml:"scan_limit" json:"scan_limit"`

	// VariantPageSize is the page size for paginated keyword retrieval.
	VariantPageSize int `yaml:"variant_page_size" json:"variant_page_size"`

	// VariantCap bounds the IDs collected per word-variant sub-query.
	// Keeps a single stop-word-like variant from flooding fusion.
	VariantCap int `yaml:"variant_cap" json:"variant_cap"`

	// MaxSubqueries rejects keyword queries that would fan out into more
	// than this many variant sub-queries.
	MaxSubqueries int `yaml:"max_subqueries" json:"max_subqueries"`

	// Fanout is the number of variant sub-queries allowed in flight at once.
	Fanout int `yaml:"fanout" json:"fanout"`

	// SubqueryTimeoutMS is the per-sub-query deadline in milliseconds.
	SubqueryTimeoutMS int `yaml:"subquery_timeout_ms" json:"subquery_timeout_ms"`

	// TermsTimeoutMS is the deadline for the structured-terms column probe.
	// On expiry the variant degrades to body-only matching.
	TermsTimeoutMS int `yaml:"terms_timeout_ms" json:"terms_timeout_ms"`

	// DisplayCap is the maximum number of fully hydrated results returned.
	DisplayCap int `yaml:"display_cap" json:"display_cap"`

	// SampleSize is how many top-funded results get contact enrichment.
	SampleSize int `yaml:"sample_size" json:"sample_size"`

	// HydrateBatch is the record-store batch size during hydration.
	HydrateBatch int `yaml:"hydrate_batch" json:"hydrate_batch"`

	// TextBackend selects the keyword index backend.
	// Options: "sqlite" (default, concurrent access) or "bleve" (single-process)
	TextBackend string `yaml:"text_backend" json:"text_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai", "static", or empty for
	// auto-detection (openai when the API key env var is set, else static).
	Provider string `yaml:"provider" json:"provider"`

	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in config files.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// CacheSize is the LRU entry count for the query-embedding cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms"`
}

// IngestConfig configures corpus loading.
type IngestConfig struct {
	// Workers is the embedding worker pool size. 0 means NumCPU.
	Workers int `yaml:"workers" json:"workers"`
	// BatchSize is records per store transaction.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// ResultCacheSize is the LRU entry count for cached result sets
	// (the working sets that refilter operates on).
	ResultCacheSize int `yaml:"result_cache_size" json:"result_cache_size"`

	// IncludeContacts grants contact-detail enrichment on sample results.
	// Off by default.
	IncludeContacts bool `yaml:"include_contacts" json:"include_contacts"`
}

// LoggingConfig configures the rotating JSON log.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".grantscout",
		},
		Search: SearchConfig{
			// RRF constant k=60 is industry standard (Azure AI Search, OpenSearch)
			RRFConstant:       60,
			SemanticThreshold: 0.35,
			SemanticLimit:     1000,
			ScanLimit:         1000,
			VariantPageSize:   1000,
			VariantCap:        15000,
			MaxSubqueries:     64,
			Fanout:            8,
			SubqueryTimeoutMS: 3000,
			TermsTimeoutMS:    1200,
			DisplayCap:        100,
			SampleSize:        10,
			HydrateBatch:      500,
			// TextBackend: SQLite FTS5 is default for concurrent multi-process access
			TextBackend: "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: openai when key present, else static
			BaseURL:    "https://api.openai.com/v1",
			APIKeyEnv:  "OPENAI_API_KEY",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			CacheSize:  2048,
			BatchSize:  64,
			TimeoutMS:  30000,
		},
		Ingest: IngestConfig{
			Workers:   4,
			BatchSize: 500,
		},
		Server: ServerConfig{
			ResultCacheSize: 32,
			IncludeContacts: false, // Opt-in: contact details stay null without the grant
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// SubqueryTimeout returns the per-sub-query deadline as a duration.
func (s SearchConfig) SubqueryTimeout() time.Duration {
	return time.Duration(s.SubqueryTimeoutMS) * time.Millisecond
}

// TermsTimeout returns the structured-terms probe deadline as a duration.
func (s SearchConfig) TermsTimeout() time.Duration {
	return time.Duration(s.TermsTimeoutMS) * time.Millisecond
}

// Timeout returns the embedding request deadline as a duration.
func (e EmbeddingsConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// APIKey resolves the API key from the configured environment variable.
func (e EmbeddingsConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/grantscout/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/grantscout/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "grantscout", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "grantscout", "config.yaml")
	}
	return filepath.Join(home, ".config", "grantscout", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/grantscout/config.yaml)
//  3. Project config (.grantscout.yaml in project root)
//  4. Environment variables (GRANTSCOUT_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .grantscout.yaml or .grantscout.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".grantscout.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".grantscout.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}

	// Search tunables
	// Note: 0 is not a practical value for any of these, so we only merge non-zero values
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.SemanticThreshold != 0 {
		c.Search.SemanticThreshold = other.Search.SemanticThreshold
	}
	if other.Search.SemanticLimit != 0 {
		c.Search.SemanticLimit = other.Search.SemanticLimit
	}
	if other.Search.ScanLimit != 0 {
		c.Search.ScanLimit = other.Search.ScanLimit
	}
	if other.Search.VariantPageSize != 0 {
		c.Search.VariantPageSize = other.Search.VariantPageSize
	}
	if other.Search.VariantCap != 0 {
		c.Search.VariantCap = other.Search.VariantCap
	}
	if other.Search.MaxSubqueries != 0 {
		c.Search.MaxSubqueries = other.Search.MaxSubqueries
	}
	if other.Search.Fanout != 0 {
		c.Search.Fanout = other.Search.Fanout
	}
	if other.Search.SubqueryTimeoutMS != 0 {
		c.Search.SubqueryTimeoutMS = other.Search.SubqueryTimeoutMS
	}
	if other.Search.TermsTimeoutMS != 0 {
		c.Search.TermsTimeoutMS = other.Search.TermsTimeoutMS
	}
	if other.Search.DisplayCap != 0 {
		c.Search.DisplayCap = other.Search.DisplayCap
	}
	if other.Search.SampleSize != 0 {
		c.Search.SampleSize = other.Search.SampleSize
	}
	if other.Search.HydrateBatch != 0 {
		c.Search.HydrateBatch = other.Search.HydrateBatch
	}
	if other.Search.TextBackend != "" {
		c.Search.TextBackend = other.Search.TextBackend
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.APIKeyEnv != "" {
		c.Embeddings.APIKeyEnv = other.Embeddings.APIKeyEnv
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.TimeoutMS != 0 {
		c.Embeddings.TimeoutMS = other.Embeddings.TimeoutMS
	}

	// Ingest
	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.BatchSize != 0 {
		c.Ingest.BatchSize = other.Ingest.BatchSize
	}

	// Server
	if other.Server.ResultCacheSize != 0 {
		c.Server.ResultCacheSize = other.Server.ResultCacheSize
	}
	// IncludeContacts defaults to false, so only true can override here.
	// Explicit false comes via the GRANTSCOUT_INCLUDE_CONTACTS env var.
	if other.Server.IncludeContacts {
		c.Server.IncludeContacts = true
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies GRANTSCOUT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRANTSCOUT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}

	if v := os.Getenv("GRANTSCOUT_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("GRANTSCOUT_SEMANTIC_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Search.SemanticThreshold = t
		}
	}
	if v := os.Getenv("GRANTSCOUT_TEXT_BACKEND"); v != "" {
		c.Search.TextBackend = v
	}

	if v := os.Getenv("GRANTSCOUT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// GRANTSCOUT_EMBEDDER is an alias for GRANTSCOUT_EMBEDDINGS_PROVIDER
	if v := os.Getenv("GRANTSCOUT_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GRANTSCOUT_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("GRANTSCOUT_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}

	// Contacts grant supports explicit true and false via env
	if v := os.Getenv("GRANTSCOUT_INCLUDE_CONTACTS"); v != "" {
		c.Server.IncludeContacts = strings.ToLower(v) == "true" || v == "1"
	}

	if v := os.Getenv("GRANTSCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .grantscout.yaml/.yml file by walking up
// the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".grantscout.yaml")) ||
			fileExists(filepath.Join(currentDir, ".grantscout.yml")) {
			return currentDir, nil
		}

		// An existing index marks a root too
		if dirExists(filepath.Join(currentDir, ".grantscout")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DataDir returns the absolute index directory for a project root.
func (c *Config) DataDir(root string) string {
	if filepath.IsAbs(c.Paths.DataDir) {
		return c.Paths.DataDir
	}
	return filepath.Join(root, c.Paths.DataDir)
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.SemanticThreshold < 0 || c.Search.SemanticThreshold > 1 {
		return fmt.Errorf("semantic_threshold must be between 0 and 1, got %f", c.Search.SemanticThreshold)
	}
	if c.Search.SemanticLimit <= 0 {
		return fmt.Errorf("semantic_limit must be positive, got %d", c.Search.SemanticLimit)
	}
	if c.Search.VariantPageSize <= 0 {
		return fmt.Errorf("variant_page_size must be positive, got %d", c.Search.VariantPageSize)
	}
	if c.Search.VariantCap <= 0 {
		return fmt.Errorf("variant_cap must be positive, got %d", c.Search.VariantCap)
	}
	if c.Search.MaxSubqueries <= 0 {
		return fmt.Errorf("max_subqueries must be positive, got %d", c.Search.MaxSubqueries)
	}
	if c.Search.Fanout <= 0 {
		return fmt.Errorf("fanout must be positive, got %d", c.Search.Fanout)
	}
	if c.Search.DisplayCap <= 0 {
		return fmt.Errorf("display_cap must be positive, got %d", c.Search.DisplayCap)
	}
	if c.Search.SampleSize <= 0 || c.Search.SampleSize > c.Search.DisplayCap {
		return fmt.Errorf("sample_size must be in 1..display_cap, got %d", c.Search.SampleSize)
	}
	if c.Search.HydrateBatch <= 0 {
		return fmt.Errorf("hydrate_batch must be positive, got %d", c.Search.HydrateBatch)
	}

	// Validate keyword backend
	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Search.TextBackend)] {
		return fmt.Errorf("search.text_backend must be 'sqlite' or 'bleve', got %s", c.Search.TextBackend)
	}

	// Validate provider (empty string allowed for auto-detection)
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"openai": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'openai', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}

	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must be non-negative, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}

	if c.Server.ResultCacheSize <= 0 {
		return fmt.Errorf("server.result_cache_size must be positive, got %d", c.Server.ResultCacheSize)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Paths.DataDir == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
		added = append(added, "paths.data_dir")
	}

	// Search - fusion and fan-out tunables
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = defaults.Search.RRFConstant
		added = append(added, "search.rrf_constant")
	}
	if c.Search.SemanticThreshold == 0 {
		c.Search.SemanticThreshold = defaults.Search.SemanticThreshold
		added = append(added, "search.semantic_threshold")
	}
	if c.Search.VariantCap == 0 {
		c.Search.VariantCap = defaults.Search.VariantCap
		added = append(added, "search.variant_cap")
	}
	if c.Search.HydrateBatch == 0 {
		c.Search.HydrateBatch = defaults.Search.HydrateBatch
		added = append(added, "search.hydrate_batch")
	}

	// Embeddings - cache added alongside the openai provider
	if c.Embeddings.CacheSize == 0 {
		c.Embeddings.CacheSize = defaults.Embeddings.CacheSize
		added = append(added, "embeddings.cache_size")
	}
	if c.Embeddings.APIKeyEnv == "" {
		c.Embeddings.APIKeyEnv = defaults.Embeddings.APIKeyEnv
		added = append(added, "embeddings.api_key_env")
	}

	// Server - result-set cache backing refilter
	if c.Server.ResultCacheSize == 0 {
		c.Server.ResultCacheSize = defaults.Server.ResultCacheSize
		added = append(added, "server.result_cache_size")
	}

	// Logging
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
		added = append(added, "logging.max_size_mb")
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = defaults.Logging.MaxFiles
		added = append(added, "logging.max_files")
	}

	return added
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AC01: Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)

	// Search defaults
	assert.Equal(t, 60, cfg.Search.RRFConstant) // Industry standard k=60
	assert.Equal(t, 0.35, cfg.Search.SemanticThreshold)
	assert.Equal(t, 1000, cfg.Search.SemanticLimit)
	assert.Equal(t, 1000, cfg.Search.ScanLimit)
	assert.Equal(t, 1000, cfg.Search.VariantPageSize)
	assert.Equal(t, 15000, cfg.Search.VariantCap)
	assert.Equal(t, 64, cfg.Search.MaxSubqueries)
	assert.Equal(t, 8, cfg.Search.Fanout)
	assert.Equal(t, 100, cfg.Search.DisplayCap)
	assert.Equal(t, 10, cfg.Search.SampleSize)
	assert.Equal(t, 500, cfg.Search.HydrateBatch)
	assert.Equal(t, "sqlite", cfg.Search.TextBackend)

	// Embeddings defaults (auto-detection: openai when key present, else static)
	assert.Equal(t, "", cfg.Embeddings.Provider) // Empty triggers auto-detection
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 1536, cfg.Embeddings.Dimensions)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embeddings.APIKeyEnv)
	assert.Equal(t, 64, cfg.Embeddings.BatchSize)
	assert.Equal(t, 2048, cfg.Embeddings.CacheSize)

	// Ingest defaults
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)

	// Server defaults
	assert.Equal(t, 32, cfg.Server.ResultCacheSize)
	assert.False(t, cfg.Server.IncludeContacts) // Contact enrichment is opt-in

	// Paths defaults
	assert.Equal(t, ".grantscout", cfg.Paths.DataDir)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 3, cfg.Logging.MaxFiles)
}

func TestConfig_VersionDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
}

func TestConfig_TimeoutHelpers(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 3*time.Second, cfg.Search.SubqueryTimeout())
	assert.Equal(t, 1200*time.Millisecond, cfg.Search.TermsTimeout())
	assert.Equal(t, 30*time.Second, cfg.Embeddings.Timeout())
}

// =============================================================================
// AC02: Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a directory with no .grantscout.yaml
	tmpDir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: defaults are returned without error
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	// Given: a directory with .grantscout.yaml
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  rrf_constant: 100
  semantic_threshold: 0.5
  variant_cap: 5000
  display_cap: 50
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: all overrides are applied
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Search.RRFConstant)
	assert.Equal(t, 0.5, cfg.Search.SemanticThreshold)
	assert.Equal(t, 5000, cfg.Search.VariantCap)
	assert.Equal(t, 50, cfg.Search.DisplayCap)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	// Given: a directory with .grantscout.yml (alternative extension)
	tmpDir := t.TempDir()
	configContent := `
version: 1
embeddings:
  provider: static
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: .yml file is recognized
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	// Given: both .yaml and .yml exist
	tmpDir := t.TempDir()
	yamlContent := `
version: 1
embeddings:
  provider: openai
`
	ymlContent := `
version: 1
embeddings:
  provider: static
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(yamlContent), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, ".grantscout.yml"), []byte(ymlContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: .yaml takes precedence
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	// Given: invalid YAML syntax
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
search:
  rrf_constant: [invalid yaml syntax
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: error is returned with clear message
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	// Given: wrong type for a YAML-accessible field
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
search:
  variant_cap: "not-a-number"
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: error is returned
	require.Error(t, err)
	assert.Nil(t, cfg)
}

// =============================================================================
// AC03: Project Root Detection Tests
// =============================================================================

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	// Given: a nested directory in a git repo
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	nestedDir := filepath.Join(tmpDir, "data", "raw")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	// When: finding project root from nested directory
	root, err := FindProjectRoot(nestedDir)

	// Then: git root is returned
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	// Given: a directory with .grantscout.yaml (no git)
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "data", "raw")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte("version: 1"), 0o644)
	require.NoError(t, err)

	// When: finding project root from nested directory
	root, err := FindProjectRoot(nestedDir)

	// Then: config file location is returned
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_IndexDir_ReturnsIndexLocation(t *testing.T) {
	// Given: a directory with an existing .grantscout index (no git, no config)
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "notes")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, ".grantscout"), 0o755))

	// When: finding project root from nested directory
	root, err := FindProjectRoot(nestedDir)

	// Then: the directory holding the index is returned
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	// Given: a directory with no markers
	tmpDir := t.TempDir()

	// When: finding project root
	root, err := FindProjectRoot(tmpDir)

	// Then: current directory is returned
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestDataDir_RelativeJoinsRoot(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/proj", ".grantscout"), cfg.DataDir("/proj"))
}

func TestDataDir_AbsolutePathKept(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.DataDir = "/var/lib/grantscout"
	assert.Equal(t, "/var/lib/grantscout", cfg.DataDir("/proj"))
}

// =============================================================================
// AC05: Environment Variable Override Tests
// =============================================================================

func TestLoad_EnvVarOverridesProvider(t *testing.T) {
	// Given: a config file with openai and env var with static
	tmpDir := t.TempDir()
	configContent := `
version: 1
embeddings:
  provider: openai
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("GRANTSCOUT_EMBEDDINGS_PROVIDER", "static")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var takes precedence
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesModel(t *testing.T) {
	// Given: env var for model
	tmpDir := t.TempDir()
	t.Setenv("GRANTSCOUT_EMBEDDINGS_MODEL", "text-embedding-3-large")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var is applied
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", cfg.Embeddings.Model)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	// Given: env var for log level
	tmpDir := t.TempDir()
	t.Setenv("GRANTSCOUT_LOG_LEVEL", "debug")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var is applied
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvVarOverridesRRFConstant(t *testing.T) {
	// Given: YAML config with RRF constant and env var override
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  rrf_constant: 100
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("GRANTSCOUT_RRF_CONSTANT", "80")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var takes precedence over YAML
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Search.RRFConstant)
}

func TestLoad_EnvVarOverridesSemanticThreshold(t *testing.T) {
	// Given: YAML config with threshold and env var override
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  semantic_threshold: 0.6
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("GRANTSCOUT_SEMANTIC_THRESHOLD", "0.25")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var takes precedence over YAML
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Search.SemanticThreshold)
}

func TestLoad_EnvVarDisablesContactsGrant(t *testing.T) {
	// Given: YAML config granting contacts and env var revoking it
	tmpDir := t.TempDir()
	configContent := `
version: 1
server:
  include_contacts: true
`
	err := os.WriteFile(filepath.Join(tmpDir, ".grantscout.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("GRANTSCOUT_INCLUDE_CONTACTS", "false")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: env var wins, contacts stay off
	require.NoError(t, err)
	assert.False(t, cfg.Server.IncludeContacts)
}

func TestLoad_EnvVarGrantsContacts(t *testing.T) {
	// Given: env var granting contacts
	tmpDir := t.TempDir()
	t.Setenv("GRANTSCOUT_INCLUDE_CONTACTS", "1")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: grant is applied
	require.NoError(t, err)
	assert.True(t, cfg.Server.IncludeContacts)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	// Given: empty env var
	tmpDir := t.TempDir()
	t.Setenv("GRANTSCOUT_EMBEDDINGS_PROVIDER", "")

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: default is kept (empty string = auto-detect)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Embeddings.Provider)
}

// =============================================================================
// AC06: User/Global Configuration Tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	// Given: no XDG_CONFIG_HOME set
	t.Setenv("XDG_CONFIG_HOME", "")

	// When: getting user config path
	path := GetUserConfigPath()

	// Then: defaults to ~/.config/grantscout/config.yaml
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "grantscout", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	// Given: XDG_CONFIG_HOME is set
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	// When: getting user config path
	path := GetUserConfigPath()

	// Then: uses XDG_CONFIG_HOME
	expected := filepath.Join(customConfig, "grantscout", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	// When: getting user config directory
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	// Then: directory is parent of config file
	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	// Given: XDG_CONFIG_HOME points to empty directory
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	// When: checking if user config exists
	exists := UserConfigExists()

	// Then: returns false
	assert.False(t, exists)
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	// Given: user config file exists
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	scoutDir := filepath.Join(configDir, "grantscout")
	require.NoError(t, os.MkdirAll(scoutDir, 0o755))
	configPath := filepath.Join(scoutDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o644))

	// When: checking if user config exists
	exists := UserConfigExists()

	// Then: returns true
	assert.True(t, exists)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	// Given: user config with a custom endpoint
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	scoutDir := filepath.Join(configDir, "grantscout")
	require.NoError(t, os.MkdirAll(scoutDir, 0o755))
	userConfig := `
version: 1
embeddings:
  base_url: http://localhost:8080/v1
`
	require.NoError(t, os.WriteFile(filepath.Join(scoutDir, "config.yaml"), []byte(userConfig), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: user config values are applied
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Embeddings.BaseURL)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: both user and project configs exist
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	// User config
	scoutDir := filepath.Join(configDir, "grantscout")
	require.NoError(t, os.MkdirAll(scoutDir, 0o755))
	userConfig := `
version: 1
embeddings:
  provider: openai
  model: user-model
`
	require.NoError(t, os.WriteFile(filepath.Join(scoutDir, "config.yaml"), []byte(userConfig), 0o644))

	// Project config (overrides user)
	projectConfig := `
version: 1
embeddings:
  model: project-model
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".grantscout.yaml"), []byte(projectConfig), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: project config takes precedence
	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Embeddings.Model)
	// And: user config's provider is still used (not overridden by project)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	// Given: all three config sources exist
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("GRANTSCOUT_EMBEDDINGS_MODEL", "env-model")

	// User config
	scoutDir := filepath.Join(configDir, "grantscout")
	require.NoError(t, os.MkdirAll(scoutDir, 0o755))
	userConfig := `
version: 1
embeddings:
  model: user-model
`
	require.NoError(t, os.WriteFile(filepath.Join(scoutDir, "config.yaml"), []byte(userConfig), 0o644))

	// Project config
	projectConfig := `
version: 1
embeddings:
  model: project-model
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".grantscout.yaml"), []byte(projectConfig), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: env var has highest precedence
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embeddings.Model)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	// Given: invalid user config
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	scoutDir := filepath.Join(configDir, "grantscout")
	require.NoError(t, os.MkdirAll(scoutDir, 0o755))
	invalidConfig := `
version: 1
embeddings:
  model: [invalid yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(scoutDir, "config.yaml"), []byte(invalidConfig), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: error is returned
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}

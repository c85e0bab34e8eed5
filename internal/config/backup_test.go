package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupUserConfig(t *testing.T) {
	// Create temp directory for test
	tmpDir := t.TempDir()

	// Override config path for testing
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configDir := filepath.Join(tmpDir, "grantscout")
	configPath := filepath.Join(configDir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for non-existent config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		// Create config directory and file
		if err := os.MkdirAll(configDir, 0755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		testContent := "version: 1\nembeddings:\n  provider: static\n"
		if err := os.WriteFile(configPath, []byte(testContent), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath == "" {
			t.Fatal("expected non-empty backup path")
		}

		// Verify backup exists and has correct content
		backupContent, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(backupContent) != testContent {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", backupContent, testContent)
		}

		// Verify backup filename format
		if !filepath.IsAbs(backupPath) {
			t.Errorf("backup path should be absolute: %s", backupPath)
		}
	})
}

func TestListUserConfigBackups(t *testing.T) {
	tmpDir := t.TempDir()

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configDir := filepath.Join(tmpDir, "grantscout")
	configPath := filepath.Join(configDir, "config.yaml")

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	t.Run("no backups exist", func(t *testing.T) {
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 0 {
			t.Errorf("expected 0 backups, got %d", len(backups))
		}
	})

	t.Run("list multiple backups", func(t *testing.T) {
		// Create some backup files with different timestamps
		timestamps := []string{"20260101-100000", "20260101-110000", "20260101-120000"}
		for _, ts := range timestamps {
			backupName := filepath.Join(configDir, "config.yaml.bak."+ts)
			if err := os.WriteFile(backupName, []byte("test"), 0644); err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
		}

		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 3 {
			t.Errorf("expected 3 backups, got %d", len(backups))
		}

		// Verify sorted by timestamp suffix (newest first)
		for i := 1; i < len(backups); i++ {
			if backups[i-1] < backups[i] {
				t.Errorf("backups not sorted correctly: %s before %s", backups[i-1], backups[i])
			}
		}
	})

	t.Run("cleanup old backups", func(t *testing.T) {
		// Create config file
		if err := os.WriteFile(configPath, []byte("test config"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		// Create 4 more backups (should trigger cleanup)
		for i := 0; i < 4; i++ {
			_, err := BackupUserConfig()
			if err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			// Distinct timestamps so backup names don't collide
			time.Sleep(1100 * time.Millisecond)
		}

		// Should have at most MaxBackups
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) > MaxBackups {
			t.Errorf("expected at most %d backups, got %d", MaxBackups, len(backups))
		}
	})
}

func TestMergeNewDefaults(t *testing.T) {
	t.Run("adds missing retrieval fields", func(t *testing.T) {
		// Simulates upgrade from a config written before the semantic stage
		cfg := &Config{
			Version: 1,
			Search: SearchConfig{
				RRFConstant: 60,
				DisplayCap:  100,
				// SemanticThreshold, VariantCap, HydrateBatch are 0 (not set)
			},
		}

		added := cfg.MergeNewDefaults()

		// Should add retrieval fields with defaults
		if cfg.Search.SemanticThreshold != 0.35 {
			t.Errorf("SemanticThreshold should be 0.35, got %f", cfg.Search.SemanticThreshold)
		}
		if cfg.Search.VariantCap != 15000 {
			t.Errorf("VariantCap should be 15000, got %d", cfg.Search.VariantCap)
		}
		if cfg.Search.HydrateBatch != 500 {
			t.Errorf("HydrateBatch should be 500, got %d", cfg.Search.HydrateBatch)
		}

		// Should report the fields
		hasThreshold := false
		hasCap := false
		hasBatch := false
		for _, field := range added {
			if field == "search.semantic_threshold" {
				hasThreshold = true
			}
			if field == "search.variant_cap" {
				hasCap = true
			}
			if field == "search.hydrate_batch" {
				hasBatch = true
			}
		}
		if !hasThreshold {
			t.Error("should report semantic_threshold as added")
		}
		if !hasCap {
			t.Error("should report variant_cap as added")
		}
		if !hasBatch {
			t.Error("should report hydrate_batch as added")
		}
	})

	t.Run("adds missing cache fields", func(t *testing.T) {
		cfg := &Config{
			Version: 1,
			Embeddings: EmbeddingsConfig{
				Provider: "static",
				Model:    "test-model",
				// CacheSize and APIKeyEnv are unset
			},
		}

		added := cfg.MergeNewDefaults()

		// Should add cache fields
		if cfg.Embeddings.CacheSize == 0 {
			t.Error("CacheSize should be set to default")
		}
		if cfg.Embeddings.APIKeyEnv == "" {
			t.Error("APIKeyEnv should be set to default")
		}

		// Should report the fields
		hasCache := false
		hasKeyEnv := false
		for _, field := range added {
			if field == "embeddings.cache_size" {
				hasCache = true
			}
			if field == "embeddings.api_key_env" {
				hasKeyEnv = true
			}
		}
		if !hasCache {
			t.Error("should report cache_size as added")
		}
		if !hasKeyEnv {
			t.Error("should report api_key_env as added")
		}
	})

	t.Run("preserves existing values", func(t *testing.T) {
		cfg := &Config{
			Version: 1,
			Search: SearchConfig{
				RRFConstant:       80,   // Custom value
				SemanticThreshold: 0.5,  // Custom value
				VariantCap:        5000, // Custom value
			},
			Embeddings: EmbeddingsConfig{
				Provider:  "static",
				Model:     "custom-model",
				CacheSize: 4096, // Custom value
			},
			Server: ServerConfig{
				ResultCacheSize: 64, // Custom value
			},
		}

		added := cfg.MergeNewDefaults()

		// Should NOT change existing search values
		if cfg.Search.RRFConstant != 80 {
			t.Errorf("RRFConstant changed from 80 to %d", cfg.Search.RRFConstant)
		}
		if cfg.Search.SemanticThreshold != 0.5 {
			t.Errorf("SemanticThreshold changed from 0.5 to %f", cfg.Search.SemanticThreshold)
		}
		if cfg.Search.VariantCap != 5000 {
			t.Errorf("VariantCap changed from 5000 to %d", cfg.Search.VariantCap)
		}
		// Should NOT change existing embeddings and server values
		if cfg.Embeddings.CacheSize != 4096 {
			t.Errorf("CacheSize changed from 4096 to %d", cfg.Embeddings.CacheSize)
		}
		if cfg.Server.ResultCacheSize != 64 {
			t.Errorf("ResultCacheSize changed from 64 to %d", cfg.Server.ResultCacheSize)
		}

		// Should NOT report them as added
		for _, field := range added {
			if field == "search.rrf_constant" ||
				field == "search.semantic_threshold" ||
				field == "search.variant_cap" ||
				field == "embeddings.cache_size" ||
				field == "server.result_cache_size" {
				t.Errorf("should not report %s as added (was already set)", field)
			}
		}
	})

	t.Run("returns empty for complete config", func(t *testing.T) {
		// Create a complete config
		cfg := NewConfig()

		added := cfg.MergeNewDefaults()

		if len(added) != 0 {
			t.Errorf("expected 0 added fields for complete config, got %v", added)
		}
	})
}

func TestWriteYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := &Config{
		Version: 1,
		Embeddings: EmbeddingsConfig{
			Provider: "static",
			Model:    "test-model",
		},
	}

	if err := cfg.WriteYAML(configPath); err != nil {
		t.Fatalf("failed to write YAML: %v", err)
	}

	// Verify file exists and is readable
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if len(data) == 0 {
		t.Error("written file is empty")
	}

	// Verify it contains expected content
	content := string(data)
	if !contains(content, "provider: static") {
		t.Error("written file should contain provider: static")
	}
	if !contains(content, "model: test-model") {
		t.Error("written file should contain model: test-model")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsHelper(s, substr))
}

func containsHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

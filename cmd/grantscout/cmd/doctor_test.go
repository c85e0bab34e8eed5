package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantscout/grantscout/internal/preflight"
	"github.com/grantscout/grantscout/internal/store"
)

func TestDoctorCmd_Flags(t *testing.T) {
	cmd := newDoctorCmd()

	for _, name := range []string{"verbose", "json", "offline"} {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "Should have --%s flag", name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestDoctorCmd_TextOutput_NoIndex(t *testing.T) {
	// Given: a directory with no index and a static embedder resolution
	t.Setenv("GRANTSCOUT_EMBEDDER", "static")
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running doctor offline
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"doctor", "--offline"})

	err := rootCmd.Execute()

	// Then: checks render, warnings noted, exit is clean
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "GrantScout System Check")
	assert.Contains(t, output, "disk_space")
	assert.Contains(t, output, "grant_index")
	assert.Contains(t, output, "no grant index found")
	assert.Contains(t, output, "Status: READY_WITH_WARNINGS")
}

func TestDoctorCmd_JSONOutput_WithIndex(t *testing.T) {
	// Given: a seeded index
	t.Setenv("GRANTSCOUT_EMBEDDER", "static")
	tmpDir := t.TempDir()
	seedIndex(t, tmpDir, []*store.Record{
		grantRecord("AWD-7001", "Gene drive biosafety", "Containment strategies for engineered gene drives."),
	})

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running doctor --json --offline
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"doctor", "--json", "--offline"})

	err := rootCmd.Execute()

	// Then: the report decodes with the index counted
	require.NoError(t, err)

	var report doctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report), "Output should be valid JSON")
	assert.NotEmpty(t, report.Status)
	assert.NotEmpty(t, report.Checks)

	byName := make(map[string]doctorCheckResult)
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "disk_space")
	require.Contains(t, byName, "grant_index")
	assert.Equal(t, "pass", byName["grant_index"].Status)
	assert.Contains(t, byName["grant_index"].Message, "1 records indexed")
}

func TestDoctorCmd_ShowsMarkerAge(t *testing.T) {
	// Given: a data directory whose checks already passed once
	t.Setenv("GRANTSCOUT_EMBEDDER", "static")
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".grantscout")
	require.NoError(t, preflight.MarkPassed(dataDir))

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running doctor offline
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"doctor", "--offline"})

	err := rootCmd.Execute()

	// Then: the marker age line renders
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Last successful check: less than 1 hour ago")
}

package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_DevOrSemver(t *testing.T) {
	require.NotEmpty(t, Version)

	if Version == "dev" {
		// Unstamped development build.
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.True(t, semver.MatchString(Version),
		"stamped version %q should be semver", Version)
}

func TestString_OneLineWithFingerprint(t *testing.T) {
	s := String()

	assert.True(t, strings.HasPrefix(s, "grantscout "), "should lead with the program name")
	assert.NotContains(t, s, "\n", "must stay on one line for CLI output")
	for _, part := range []string{Version, Commit, Date, GoVersion, "commit"} {
		assert.Contains(t, s, part)
	}
}

func TestShort_BareVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_MatchesPackageState(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, Date, info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestBuildInfo_JSONKeys(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var keys map[string]string
	require.NoError(t, json.Unmarshal(data, &keys))

	// The JSON shape is consumed by scripts; keys are stable.
	for _, k := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, keys, k)
	}
}

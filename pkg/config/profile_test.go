package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticpayload/oracle.omen/pkg/config"
)

func writeProfile(t *testing.T, dir, code, body string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+code+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadProfile_DecodesFields(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "sandboxed", `
name: Sandboxed
capabilities:
  - fs:read:/tmp
max_concurrent: 2
tool_timeout_ms: 1000
`)

	p, err := config.LoadProfile(dir, "sandboxed")
	require.NoError(t, err)
	assert.Equal(t, "Sandboxed", p.Name)
	assert.Equal(t, "sandboxed", p.Code)
	assert.Equal(t, 2, p.MaxConcurrent)
	assert.True(t, p.HasCapability("fs:read:/tmp"))
	assert.False(t, p.HasCapability("net:connect:*"))
}

func TestLoadProfile_MissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := config.LoadProfile(dir, "missing")
	assert.Error(t, err)
}

func TestLoadAllProfiles_ReadsEveryMatchingFile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "sandboxed", `name: Sandboxed`)
	writeProfile(t, dir, "trusted", `name: Trusted`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.yaml"), []byte("not a profile"), 0o644))

	profiles, err := config.LoadAllProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Trusted", profiles["trusted"].Name)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadFile_FullConfig(t *testing.T) {
	path := writeConfig(t, `
interval = 60

[repository]
uri = "git@example.com:org/repo.git"
checkout_path = "/tmp/repo"
fetch_refspecs = ["+refs/heads/*:refs/remotes/origin/*"]
username = "git"
key = "/home/user/.ssh/id_rsa"
`)

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "git@example.com:org/repo.git", cfg.Repository.URI)
	assert.Equal(t, "/tmp/repo", cfg.Repository.CheckoutPath)
	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/origin/*"}, cfg.Repository.FetchRefspecs)
	require.NotNil(t, cfg.Interval)
	assert.Equal(t, 60, *cfg.Interval)
}

func TestReadFile_OverrideFields(t *testing.T) {
	path := writeConfig(t, `
[repository]
uri = "git@example.com:org/repo.git"
checkout_path = "/tmp/repo"
remote = "upstream"
notes_namespace = "custom-ns"
target_ref = "refs/heads/develop"
`)

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "upstream", cfg.Repository.Remote)
	assert.Equal(t, "custom-ns", cfg.Repository.NotesNamespace)
	assert.Equal(t, "refs/heads/develop", cfg.Repository.TargetRef)
}

func TestReadFile_DefaultInterval(t *testing.T) {
	path := writeConfig(t, `
[repository]
uri = "git@example.com:org/repo.git"
checkout_path = "/tmp/repo"
`)

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Interval)
	assert.Equal(t, DefaultInterval, int(cfg.IntervalDuration().Seconds()))
}

func TestReadFile_MissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestReadFile_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "this is not valid toml [[[")
	_, err := ReadFile(path)
	assert.Error(t, err)
}

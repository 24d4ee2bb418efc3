package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := runCommand(t, "version")
	assert.Contains(t, out, "xraydraft v")
	assert.Contains(t, out, modulePath)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	dataDir := filepath.Join(dir, "data")

	out := runCommand(t, "init", "--config-dir", configDir, "--data-dir", dataDir)
	assert.Contains(t, out, "initialized successfully")

	assert.FileExists(t, filepath.Join(configDir, "config.yaml"))
	assert.DirExists(t, filepath.Join(dataDir, "testCases"))

	t.Run("init is idempotent", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("listen_addr: 127.0.0.1:9999\n"), 0o644))
		runCommand(t, "init", "--config-dir", configDir, "--data-dir", dataDir)

		data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "9999", "existing config.yaml is not overwritten")
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		v, err := loadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, defaultListenAddr, v.GetString(cfgKeyListenAddr))
		assert.Empty(t, v.GetString(cfgKeyDataDir))
	})

	t.Run("file values win", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
			[]byte("data_dir: /srv/drafts\nlisten_addr: 0.0.0.0:80\n"), 0o644))
		v, err := loadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "/srv/drafts", v.GetString(cfgKeyDataDir))
		assert.Equal(t, "0.0.0.0:80", v.GetString(cfgKeyListenAddr))
	})
}

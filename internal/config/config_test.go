package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "2025-04-01-preview", cfg.Azure.APIVersion)
	assert.True(t, cfg.Azure.ChatOnly)
	assert.True(t, cfg.Azure.Interactive)
	assert.True(t, cfg.Foundry.Enabled)
	assert.True(t, cfg.Foundry.AutoStart)
	assert.Equal(t, 600, cfg.Foundry.LoadTTL)
	assert.Equal(t, 0, cfg.Cache.TTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model: azure/gpt-4o
azure:
  endpoint: https://x.services.ai.azure.com/api/projects/p
  chat_only: false
foundry:
  enabled: false
`), 0644))
	t.Setenv("LLMFOUNDRY_FOUNDRY_LOAD_TTL", "60")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "azure/gpt-4o", cfg.DefaultModel)
	assert.Equal(t, "https://x.services.ai.azure.com/api/projects/p", cfg.Azure.Endpoint)
	assert.False(t, cfg.Azure.ChatOnly)
	assert.False(t, cfg.Foundry.Enabled)
	assert.Equal(t, 60, cfg.Foundry.LoadTTL)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("azure: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	got, err := Init(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Foundry.Enabled)

	_, err = Init(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestSetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, Set(path, "azure.endpoint", "https://x.services.ai.azure.com/api/projects/p"))
	require.NoError(t, Set(path, "foundry.load_ttl", "120"))
	require.NoError(t, Set(path, "foundry.auto_start", "false"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://x.services.ai.azure.com/api/projects/p", cfg.Azure.Endpoint)
	assert.Equal(t, 120, cfg.Foundry.LoadTTL)
	assert.False(t, cfg.Foundry.AutoStart)
	assert.True(t, cfg.Azure.ChatOnly)

	cfg.DefaultModel = "foundry/phi-4-mini"
	require.NoError(t, Save(cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "foundry/phi-4-mini", reloaded.DefaultModel)
	assert.Equal(t, 120, reloaded.Foundry.LoadTTL)
}

func TestSetUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := Set(path, "azure.bogus", "x")
	assert.EqualError(t, err, `unknown config key "azure.bogus"`)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetSystemPrompt(t *testing.T) {
	cfg := &Config{SystemPrompt: "be terse"}
	assert.Equal(t, "be terse", cfg.GetSystemPrompt())
}

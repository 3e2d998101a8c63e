package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"llmfoundry/internal/prompt"
)

const (
	appName   = "llmfoundry"
	envPrefix = "LLMFOUNDRY"
)

type AzureConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	APIVersion  string `mapstructure:"api_version"`
	ChatOnly    bool   `mapstructure:"chat_only"`
	Interactive bool   `mapstructure:"interactive"`
}

type FoundryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AutoStart bool   `mapstructure:"auto_start"`
	// LoadTTL is how long, in seconds, the service keeps a loaded model.
	LoadTTL int `mapstructure:"load_ttl"`
}

type CacheConfig struct {
	// TTL in seconds for persisted discovery results; 0 disables the disk cache.
	TTL int `mapstructure:"ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	DefaultModel          string        `mapstructure:"default_model"`
	DefaultEmbeddingModel string        `mapstructure:"default_embedding_model"`
	SystemPrompt          string        `mapstructure:"system_prompt"`
	Azure                 AzureConfig   `mapstructure:"azure"`
	Foundry               FoundryConfig `mapstructure:"foundry"`
	Cache                 CacheConfig   `mapstructure:"cache"`
	Log                   LogConfig     `mapstructure:"log"`

	path string
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "")
	v.SetDefault("default_embedding_model", "")
	v.SetDefault("system_prompt", "")
	v.SetDefault("azure.endpoint", "")
	v.SetDefault("azure.api_version", "2025-04-01-preview")
	v.SetDefault("azure.chat_only", true)
	v.SetDefault("azure.interactive", true)
	v.SetDefault("foundry.enabled", true)
	v.SetDefault("foundry.endpoint", "")
	v.SetDefault("foundry.auto_start", true)
	v.SetDefault("foundry.load_ttl", 600)
	v.SetDefault("cache.ttl", 0)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetCacheDir returns the directory persisted discovery results live in.
func GetCacheDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cache"), nil
}

func resolvePath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return GetConfigPath()
}

// Load reads the config file. A missing file is not an error: defaults and
// LLMFOUNDRY_* environment variables still apply.
func Load(configPath string) (*Config, error) {
	configPath, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.path = configPath

	return &cfg, nil
}

func Init(configPath string) (string, error) {
	configPath, err := resolvePath(configPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists at %s", configPath)
	}

	defaultConfig := `# llmfoundry configuration
# Run 'llmfoundry' to configure via TUI

default_model: ""
system_prompt: ""

azure:
  # e.g. https://<xxx>.services.ai.azure.com/api/projects/<project-name>
  endpoint: ""
  api_version: "2025-04-01-preview"
  chat_only: true
  interactive: true

foundry:
  enabled: true
  endpoint: ""
  auto_start: true
  load_ttl: 600

cache:
  ttl: 0

log:
  level: warn
  file: ""
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

func (c *Config) GetSystemPrompt() string {
	if c.SystemPrompt == "" {
		return prompt.GetDefaultSystemPrompt()
	}
	return c.SystemPrompt
}

func Save(cfg *Config) error {
	configPath, err := resolvePath(cfg.path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("default_model", cfg.DefaultModel)
	v.Set("default_embedding_model", cfg.DefaultEmbeddingModel)
	v.Set("system_prompt", cfg.SystemPrompt)
	v.Set("azure.endpoint", cfg.Azure.Endpoint)
	v.Set("azure.api_version", cfg.Azure.APIVersion)
	v.Set("azure.chat_only", cfg.Azure.ChatOnly)
	v.Set("azure.interactive", cfg.Azure.Interactive)
	v.Set("foundry.enabled", cfg.Foundry.Enabled)
	v.Set("foundry.endpoint", cfg.Foundry.Endpoint)
	v.Set("foundry.auto_start", cfg.Foundry.AutoStart)
	v.Set("foundry.load_ttl", cfg.Foundry.LoadTTL)
	v.Set("cache.ttl", cfg.Cache.TTL)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.SetConfigType("yaml")

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	cfg.path = configPath

	return nil
}

func Show(configPath string) (*Config, string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(cfg.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	return cfg, string(data), nil
}

// Set updates a single key in the config file, creating the file if needed.
func Set(configPath, key, value string) error {
	configPath, err := resolvePath(configPath)
	if err != nil {
		return err
	}
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	v := newViper(configPath)
	if !isKnownKey(v, key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	v.Set(key, value)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	cfg.path = configPath

	return Save(cfg)
}

func isKnownKey(v *viper.Viper, key string) bool {
	key = strings.ToLower(key)
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

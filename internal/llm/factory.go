package llm

import (
	"fmt"
	"sort"
	"sync"

	"llmfoundry/internal/config"
)

// PluginFactory is a function that creates a Plugin from configuration.
// It returns nil, nil when the source is disabled.
type PluginFactory func(cfg *config.Config) (Plugin, error)

var (
	factoriesMu sync.RWMutex
	// factories maps plugin names to their factory functions
	factories = map[string]PluginFactory{}
)

// RegisterPlugin registers a plugin factory. Source packages call it from init.
func RegisterPlugin(name string, factory PluginFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("llm: RegisterPlugin factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("llm: RegisterPlugin called twice for " + name)
	}
	factories[name] = factory
}

// PluginNames returns the registered plugin names, sorted.
func PluginNames() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreatePlugin creates a single plugin instance by name.
func CreatePlugin(name string, cfg *config.Config) (Plugin, error) {
	factoriesMu.RLock()
	factory, exists := factories[name]
	factoriesMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported plugin: %s", name)
	}
	return factory(cfg)
}

// CreatePlugins creates every enabled plugin, in name order.
func CreatePlugins(cfg *config.Config) ([]Plugin, error) {
	var plugins []Plugin
	for _, name := range PluginNames() {
		p, err := CreatePlugin(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create plugin %s: %w", name, err)
		}
		if p != nil {
			plugins = append(plugins, p)
		}
	}
	return plugins, nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// RegisterFunc is handed to plugins to register chat models.
type RegisterFunc func(m Model, aliases ...string) error

// EmbeddingRegisterFunc is handed to plugins to register embedding models.
type EmbeddingRegisterFunc func(m EmbeddingModel, aliases ...string) error

// Plugin is a model source. The host calls RegisterModels once per invocation.
type Plugin interface {
	Name() string
	RegisterModels(ctx context.Context, register RegisterFunc) error
}

// EmbeddingPlugin is a Plugin that also provides embedding models.
type EmbeddingPlugin interface {
	Plugin
	RegisterEmbeddingModels(ctx context.Context, register EmbeddingRegisterFunc) error
}

// Registry holds every model registered during this invocation.
type Registry struct {
	mu         sync.RWMutex
	models     []Model
	byName     map[string]Model
	embeddings []EmbeddingModel
	embByName  map[string]EmbeddingModel
	aliases    map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]Model),
		embByName: make(map[string]EmbeddingModel),
		aliases:   make(map[string][]string),
	}
}

// Register adds a chat model under its ID and the given aliases.
func (r *Registry) Register(m Model, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{m.ModelID()}, aliases...)
	for _, name := range names {
		if _, exists := r.byName[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, name)
		}
	}
	for _, name := range names {
		r.byName[name] = m
	}
	r.models = append(r.models, m)
	if len(aliases) > 0 {
		r.aliases[m.ModelID()] = append(r.aliases[m.ModelID()], aliases...)
	}
	return nil
}

// RegisterEmbedding adds an embedding model under its ID and the given aliases.
func (r *Registry) RegisterEmbedding(m EmbeddingModel, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{m.ModelID()}, aliases...)
	for _, name := range names {
		if _, exists := r.embByName[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, name)
		}
	}
	for _, name := range names {
		r.embByName[name] = m
	}
	r.embeddings = append(r.embeddings, m)
	if len(aliases) > 0 {
		r.aliases[m.ModelID()] = append(r.aliases[m.ModelID()], aliases...)
	}
	return nil
}

// Get returns the chat model registered under an ID or alias.
func (r *Registry) Get(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// GetEmbedding returns the embedding model registered under an ID or alias.
func (r *Registry) GetEmbedding(name string) (EmbeddingModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.embByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// Models returns chat models in registration order.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Model(nil), r.models...)
}

// EmbeddingModels returns embedding models in registration order.
func (r *Registry) EmbeddingModels() []EmbeddingModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EmbeddingModel(nil), r.embeddings...)
}

// Aliases returns the aliases registered for a model ID.
func (r *Registry) Aliases(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.aliases[id]...)
}

// Load runs every plugin's registration hooks. A failing plugin does not stop
// the others; all errors are returned joined.
func (r *Registry) Load(ctx context.Context, plugins ...Plugin) error {
	var errs []error
	for _, p := range plugins {
		log.WithField("plugin", p.Name()).Debug("registering models")
		if err := p.RegisterModels(ctx, r.Register); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		ep, ok := p.(EmbeddingPlugin)
		if !ok {
			continue
		}
		if err := ep.RegisterEmbeddingModels(ctx, r.RegisterEmbedding); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

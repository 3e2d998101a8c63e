package foundry

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"llmfoundry/internal/llm"
)

// State is where a local model sits in its lifecycle. It only moves forward.
type State int

const (
	StateAvailable State = iota
	StateCached
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateCached:
		return "cached"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// InitialState derives a model's state from the service's cached and loaded sets.
func InitialState(id string, cached, loaded map[string]bool) State {
	switch {
	case loaded[id]:
		return StateLoaded
	case cached[id]:
		return StateCached
	default:
		return StateAvailable
	}
}

// Lifecycle is the part of the manager that moves a model between states.
type Lifecycle interface {
	Download(ctx context.Context, model CatalogModel) error
	Load(ctx context.Context, id string, ttl time.Duration) error
}

type lifecycle struct {
	mu    sync.Mutex
	state State
	entry CatalogModel
	mgr   Lifecycle
	ttl   time.Duration
}

func (l *lifecycle) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.String()
}

func (l *lifecycle) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ensureLoaded downloads and loads the model as needed. A failed step leaves
// the state where it was.
func (l *lifecycle) ensureLoaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateAvailable {
		if err := l.mgr.Download(ctx, l.entry); err != nil {
			return err
		}
		l.state = StateCached
		log.WithField("model", l.entry.Name).Debug("model cached")
	}
	if l.state == StateCached {
		if err := l.mgr.Load(ctx, l.entry.Name, l.ttl); err != nil {
			return fmt.Errorf("failed to load %s: %w", l.entry.Name, err)
		}
		l.state = StateLoaded
		log.WithField("model", l.entry.Name).Debug("model loaded")
	}
	return nil
}

// LocalModel is a Foundry Local chat model that downloads and loads itself
// on first use.
type LocalModel struct {
	*llm.Chat
	*lifecycle
}

func newLocalModel(id string, entry CatalogModel, state State, mgr Lifecycle, ttl time.Duration, client *llm.Client) *LocalModel {
	caps := llm.Capabilities{
		Schema:    true,
		Streaming: true,
		Tools:     entry.SupportsToolCalling,
	}
	return &LocalModel{
		Chat:      llm.NewChat(id, entry.Name, displayName, client, caps),
		lifecycle: &lifecycle{state: state, entry: entry, mgr: mgr, ttl: ttl},
	}
}

func (m *LocalModel) Prompt(ctx context.Context, p *llm.Prompt) (*llm.Response, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return m.Chat.Prompt(ctx, p)
}

// LocalEmbedding is a Foundry Local embedding model with the same lifecycle.
type LocalEmbedding struct {
	*llm.Embedding
	*lifecycle
}

func newLocalEmbedding(id string, entry CatalogModel, state State, mgr Lifecycle, ttl time.Duration, client *llm.Client) *LocalEmbedding {
	return &LocalEmbedding{
		Embedding: llm.NewEmbedding(id, entry.Name, displayName, client),
		lifecycle: &lifecycle{state: state, entry: entry, mgr: mgr, ttl: ttl},
	}
}

func (m *LocalEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return m.Embedding.Embed(ctx, texts)
}

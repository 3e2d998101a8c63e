package foundry

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"llmfoundry/internal/config"
	"llmfoundry/internal/discovery"
	"llmfoundry/internal/llm"
)

const (
	// ModelPrefix namespaces Foundry Local model IDs.
	ModelPrefix = "foundry/"
	displayName = "Foundry Local"

	// apiKey is sent to the local OpenAI endpoint, which does not check it.
	apiKey = "not-required"
)

func init() {
	llm.RegisterPlugin(llm.PluginFoundry, func(cfg *config.Config) (llm.Plugin, error) {
		if !cfg.Foundry.Enabled {
			return nil, nil
		}
		return NewPlugin(cfg.Foundry), nil
	})
}

// Inventory is one snapshot of what the service knows about.
type Inventory struct {
	Catalog []CatalogModel
	Cached  map[string]bool
	Loaded  map[string]bool
}

// Lookup resolves a model ID or alias, matching exactly like the registry.
// An alias resolves to its first catalog entry, in catalog order.
func (inv *Inventory) Lookup(idOrAlias string) (CatalogModel, bool) {
	name := strings.TrimPrefix(idOrAlias, ModelPrefix)
	for _, m := range inv.Catalog {
		if m.Name == name {
			return m, true
		}
	}
	for _, m := range inv.Catalog {
		if m.Alias != "" && m.Alias == name {
			return m, true
		}
	}
	return CatalogModel{}, false
}

// State returns the current lifecycle state of a model ID.
func (inv *Inventory) State(id string) State {
	return InitialState(id, inv.Cached, inv.Loaded)
}

// Plugin registers Foundry Local models.
type Plugin struct {
	cfg        config.FoundryConfig
	run        CommandRunner
	httpClient *http.Client

	manager   *discovery.Memo[*Manager]
	inventory *discovery.Memo[*Inventory]
}

type Option func(*Plugin)

// WithCommandRunner replaces how the foundry CLI is invoked.
func WithCommandRunner(run CommandRunner) Option {
	return func(p *Plugin) { p.run = run }
}

// WithHTTPClient sets the client used for the service and inference.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Plugin) { p.httpClient = c }
}

func NewPlugin(cfg config.FoundryConfig, opts ...Option) *Plugin {
	p := &Plugin{cfg: cfg, run: execRunner}
	for _, opt := range opts {
		opt(p)
	}
	p.manager = discovery.NewMemo(p.newManager)
	p.inventory = discovery.NewMemo(p.loadInventory)
	return p
}

func (p *Plugin) Name() string {
	return llm.PluginFoundry
}

func (p *Plugin) newManager(ctx context.Context) (*Manager, error) {
	endpoint, err := ResolveEndpoint(ctx, p.cfg.Endpoint, p.cfg.AutoStart, p.run)
	if err != nil {
		return nil, err
	}
	return NewManager(endpoint, p.httpClient), nil
}

// Manager returns the service client, resolving the endpoint once.
func (p *Plugin) Manager(ctx context.Context) (*Manager, error) {
	return p.manager.Get(ctx)
}

func (p *Plugin) loadInventory(ctx context.Context) (*Inventory, error) {
	mgr, err := p.Manager(ctx)
	if err != nil {
		return nil, err
	}

	var (
		catalog        []CatalogModel
		cached, loaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if catalog, err = mgr.ListCatalog(gctx); err != nil {
			return fmt.Errorf("failed to list catalog: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if cached, err = mgr.ListCached(gctx); err != nil {
			return fmt.Errorf("failed to list cached models: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if loaded, err = mgr.ListLoaded(gctx); err != nil {
			return fmt.Errorf("failed to list loaded models: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithField("catalog", len(catalog)).
		WithField("cached", len(cached)).
		WithField("loaded", len(loaded)).
		Debug("foundry inventory")

	return &Inventory{
		Catalog: catalog,
		Cached:  toSet(cached),
		Loaded:  toSet(loaded),
	}, nil
}

// Inventory returns the catalog/cached/loaded snapshot, fetched once per process.
func (p *Plugin) Inventory(ctx context.Context) (*Inventory, error) {
	return p.inventory.Get(ctx)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (p *Plugin) loadTTL() time.Duration {
	return time.Duration(p.cfg.LoadTTL) * time.Second
}

// entries returns the catalog plus cached or loaded IDs missing from it, and
// the alias each entry should be registered under. An alias that collides
// with any registered ID is dropped.
func (inv *Inventory) entries() ([]CatalogModel, map[string]string) {
	entries := append([]CatalogModel(nil), inv.Catalog...)
	seen := make(map[string]bool, len(entries))
	for _, m := range inv.Catalog {
		seen[m.Name] = true
	}

	var extra []string
	for id := range inv.Cached {
		extra = append(extra, id)
	}
	for id := range inv.Loaded {
		if !inv.Cached[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		if seen[id] {
			continue
		}
		seen[id] = true
		entries = append(entries, CatalogModel{Name: id})
	}

	aliasOf := make(map[string]string)
	for _, m := range inv.Catalog {
		if m.Alias == "" || seen[m.Alias] {
			continue
		}
		if _, taken := aliasOf[m.Alias]; !taken {
			aliasOf[m.Alias] = m.Name
		}
	}

	aliases := make(map[string]string, len(aliasOf))
	for alias, name := range aliasOf {
		aliases[name] = alias
	}
	return entries, aliases
}

func (p *Plugin) clientFor(mgr *Manager) *llm.Client {
	client := llm.NewClient(mgr.OpenAIBaseURL(), apiKey)
	if p.httpClient != nil {
		client.HTTPClient = p.httpClient
	}
	return client
}

// RegisterModels registers every catalog model with a chat task, plus cached
// or loaded models the catalog does not list.
func (p *Plugin) RegisterModels(ctx context.Context, register llm.RegisterFunc) error {
	inv, err := p.Inventory(ctx)
	if err != nil {
		return err
	}
	mgr, err := p.Manager(ctx)
	if err != nil {
		return err
	}

	client := p.clientFor(mgr)
	entries, aliases := inv.entries()
	for _, entry := range entries {
		if !entry.IsChat() {
			log.WithField("model", entry.Name).WithField("task", entry.Task).Debug("skipping non-chat model")
			continue
		}
		model := newLocalModel(ModelPrefix+entry.Name, entry, inv.State(entry.Name), mgr, p.loadTTL(), client)
		var names []string
		if alias, ok := aliases[entry.Name]; ok {
			names = append(names, ModelPrefix+alias)
		}
		if err := register(model, names...); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEmbeddingModels registers catalog models with an embedding task.
func (p *Plugin) RegisterEmbeddingModels(ctx context.Context, register llm.EmbeddingRegisterFunc) error {
	inv, err := p.Inventory(ctx)
	if err != nil {
		return err
	}
	mgr, err := p.Manager(ctx)
	if err != nil {
		return err
	}

	client := p.clientFor(mgr)
	entries, aliases := inv.entries()
	for _, entry := range entries {
		if !entry.IsEmbedding() {
			continue
		}
		model := newLocalEmbedding(ModelPrefix+entry.Name, entry, inv.State(entry.Name), mgr, p.loadTTL(), client)
		var names []string
		if alias, ok := aliases[entry.Name]; ok {
			names = append(names, ModelPrefix+alias)
		}
		if err := register(model, names...); err != nil {
			return err
		}
	}
	return nil
}

package azure

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	log "github.com/sirupsen/logrus"

	"llmfoundry/internal/config"
	"llmfoundry/internal/discovery"
	"llmfoundry/internal/llm"
)

const (
	// ModelPrefix namespaces Azure model IDs.
	ModelPrefix = "azure/"
	displayName = "Azure AI Foundry"

	endpointHint = "Configure the azure.endpoint to the URL of your project endpoint, e.g. " +
		"https://<xxx>.services.ai.azure.com/api/projects/<project-name> " +
		"(llmfoundry config set azure.endpoint <url>)"
)

func init() {
	llm.RegisterPlugin(llm.PluginAzure, func(cfg *config.Config) (llm.Plugin, error) {
		var opts []Option
		if cfg.Cache.TTL > 0 {
			dir, err := config.GetCacheDir()
			if err != nil {
				return nil, err
			}
			cache, err := discovery.NewCache(dir)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithCache(cache, time.Duration(cfg.Cache.TTL)*time.Second))
		}
		return NewPlugin(cfg.Azure, opts...), nil
	})
}

// Plugin registers the deployments of an AI Foundry project.
type Plugin struct {
	cfg       config.AzureConfig
	cred      azcore.TokenCredential
	transport http.RoundTripper
	cache     *discovery.Cache
	cacheTTL  time.Duration

	project     *discovery.Memo[*ProjectClient]
	deployments *discovery.Memo[[]Deployment]
}

type Option func(*Plugin)

// WithCredential overrides the default Azure credential chain.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(p *Plugin) { p.cred = cred }
}

// WithTransport sets the HTTP transport used under token injection.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Plugin) { p.transport = rt }
}

// WithCache persists deployment listings across invocations.
func WithCache(cache *discovery.Cache, ttl time.Duration) Option {
	return func(p *Plugin) {
		p.cache = cache
		p.cacheTTL = ttl
	}
}

func NewPlugin(cfg config.AzureConfig, opts ...Option) *Plugin {
	p := &Plugin{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	p.project = discovery.NewMemo(p.newProject)
	p.deployments = discovery.NewMemo(p.listDeployments)
	return p
}

func (p *Plugin) Name() string {
	return llm.PluginAzure
}

func (p *Plugin) cacheKey() string {
	return "azure-" + p.cfg.Endpoint
}

func (p *Plugin) newProject(ctx context.Context) (*ProjectClient, error) {
	if p.cfg.Endpoint == "" {
		return nil, &llm.NeedsKeyError{Key: "azure.endpoint", Message: endpointHint}
	}
	cred := p.cred
	if cred == nil {
		var err error
		cred, err = NewCredential(p.cfg.Interactive)
		if err != nil {
			return nil, err
		}
	}
	return NewProjectClient(p.cfg.Endpoint, cred, p.transport)
}

func (p *Plugin) listDeployments(ctx context.Context) ([]Deployment, error) {
	if p.cache != nil {
		var cached []Deployment
		if p.cache.Get(p.cacheKey(), &cached) {
			log.WithField("count", len(cached)).Debug("using cached azure deployments")
			return cached, nil
		}
	}

	project, err := p.project.Get(ctx)
	if err != nil {
		return nil, err
	}
	deployments, err := project.ListDeployments(ctx)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(p.cacheKey(), deployments, p.cacheTTL); err != nil {
			log.Warnf("failed to cache azure deployments: %v", err)
		}
	}
	return deployments, nil
}

// Deployments returns the project's deployments, listed once per process.
func (p *Plugin) Deployments(ctx context.Context) ([]Deployment, error) {
	return p.deployments.Get(ctx)
}

// RegisterModels registers a chat model per deployment. With chat_only set,
// deployments without the chat_completion capability are skipped.
func (p *Plugin) RegisterModels(ctx context.Context, register llm.RegisterFunc) error {
	deployments, err := p.Deployments(ctx)
	if err != nil {
		return err
	}
	project, err := p.project.Get(ctx)
	if err != nil {
		return err
	}

	client := project.OpenAIClient(p.cfg.APIVersion)
	for _, d := range deployments {
		if p.cfg.ChatOnly && !d.HasCapability(CapabilityChatCompletion) {
			log.WithField("deployment", d.Name).Debug("skipping deployment without chat completion")
			continue
		}
		model := llm.NewChat(ModelPrefix+d.Name, d.Name, displayName, client, llm.AllCapabilities())
		if err := register(model); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEmbeddingModels registers deployments with the embeddings capability.
func (p *Plugin) RegisterEmbeddingModels(ctx context.Context, register llm.EmbeddingRegisterFunc) error {
	deployments, err := p.Deployments(ctx)
	if err != nil {
		return err
	}
	project, err := p.project.Get(ctx)
	if err != nil {
		return err
	}

	client := project.OpenAIClient(p.cfg.APIVersion)
	for _, d := range deployments {
		if !d.HasCapability(CapabilityEmbeddings) {
			continue
		}
		if err := register(llm.NewEmbedding(ModelPrefix+d.Name, d.Name, displayName, client)); err != nil {
			return err
		}
	}
	return nil
}

package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmfoundry/internal/config"
	"llmfoundry/internal/llm"
)

const testCatalog = `[
	{"name":"Phi-4-mini-instruct-generic-gpu","alias":"phi-4-mini","task":"chat-completion","uri":"azureml://phi-gpu","providerType":"AzureFoundry","supportsToolCalling":true},
	{"name":"Phi-4-mini-instruct-generic-cpu","alias":"phi-4-mini","task":"chat-completion","uri":"azureml://phi-cpu","providerType":"AzureFoundry"},
	{"name":"qwen2.5-0.5b-instruct-generic-cpu","alias":"qwen2.5-0.5b","task":"chat-completion"},
	{"name":"nomic-embed-text-generic-cpu","alias":"nomic-embed","task":"embeddings"},
	{"name":"openai-whisper-tiny-generic-cpu","alias":"whisper-tiny","task":"automatic-speech-recognition"}
]`

// fakeService mimics the Foundry Local REST API.
type fakeService struct {
	srv *httptest.Server

	mu        sync.Mutex
	requests  []string
	cached    string
	loaded    string
	chatModel string
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{
		cached: `["qwen2.5-0.5b-instruct-generic-cpu","custom-model"]`,
		loaded: `[]`,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch r.URL.Path {
	case "/foundry/list":
		fmt.Fprint(w, testCatalog)
	case "/openai/models":
		fmt.Fprint(w, f.cached)
	case "/openai/loadedmodels":
		fmt.Fprint(w, f.loaded)
	case "/openai/download":
		fmt.Fprint(w, `Total 100.00% Downloading`+"\n"+`{"success":true,"errorMessage":null}`)
	case "/v1/chat/completions":
		var req llm.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.chatModel = req.Model
		f.mu.Unlock()
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"local reply"}}]}`)
	case "/v1/embeddings":
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,2,3]}]}`)
	default:
		if strings.HasPrefix(r.URL.Path, "/openai/load/") {
			return
		}
		http.NotFound(w, r)
	}
}

func (f *fakeService) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestPlugin(f *fakeService) *Plugin {
	return NewPlugin(config.FoundryConfig{Enabled: true, Endpoint: f.srv.URL, LoadTTL: 600})
}

type registered struct {
	model   llm.Model
	aliases []string
}

func registerAll(t *testing.T, p *Plugin) map[string]registered {
	t.Helper()
	out := map[string]registered{}
	err := p.RegisterModels(context.Background(), func(m llm.Model, aliases ...string) error {
		out[m.ModelID()] = registered{model: m, aliases: aliases}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRegisterModels(t *testing.T) {
	f := newFakeService(t)
	models := registerAll(t, newTestPlugin(f))

	require.Len(t, models, 4)
	assert.Equal(t, []string{"foundry/phi-4-mini"}, models["foundry/Phi-4-mini-instruct-generic-gpu"].aliases)
	assert.Empty(t, models["foundry/Phi-4-mini-instruct-generic-cpu"].aliases)
	assert.Equal(t, []string{"foundry/qwen2.5-0.5b"}, models["foundry/qwen2.5-0.5b-instruct-generic-cpu"].aliases)
	assert.Contains(t, models, "foundry/custom-model")
	assert.NotContains(t, models, "foundry/nomic-embed-text-generic-cpu")
	assert.NotContains(t, models, "foundry/openai-whisper-tiny-generic-cpu")

	state := func(id string) string {
		return models[id].model.(llm.Stater).State()
	}
	assert.Equal(t, "available", state("foundry/Phi-4-mini-instruct-generic-gpu"))
	assert.Equal(t, "cached", state("foundry/qwen2.5-0.5b-instruct-generic-cpu"))
	assert.Equal(t, "cached", state("foundry/custom-model"))

	assert.True(t, models["foundry/Phi-4-mini-instruct-generic-gpu"].model.Capabilities().Tools)
	assert.False(t, models["foundry/Phi-4-mini-instruct-generic-cpu"].model.Capabilities().Tools)
}

func TestPromptDownloadsAndLoads(t *testing.T) {
	f := newFakeService(t)
	models := registerAll(t, newTestPlugin(f))
	m := models["foundry/Phi-4-mini-instruct-generic-gpu"].model

	resp, err := m.Prompt(context.Background(), &llm.Prompt{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "local reply", resp.Text)
	assert.Equal(t, "loaded", m.(llm.Stater).State())

	seen := f.seen()
	assert.Equal(t, []string{
		"POST /openai/download",
		"GET /openai/load/Phi-4-mini-instruct-generic-gpu",
		"POST /v1/chat/completions",
	}, seen[len(seen)-3:])

	f.mu.Lock()
	assert.Equal(t, "Phi-4-mini-instruct-generic-gpu", f.chatModel)
	f.mu.Unlock()

	// already loaded, so the next prompt goes straight to the model
	_, err = m.Prompt(context.Background(), &llm.Prompt{Text: "again"})
	require.NoError(t, err)
	assert.Len(t, f.seen(), len(seen)+1)
}

func TestInventoryMemoized(t *testing.T) {
	f := newFakeService(t)
	p := newTestPlugin(f)

	registerAll(t, p)
	require.NoError(t, p.RegisterEmbeddingModels(context.Background(), func(m llm.EmbeddingModel, aliases ...string) error {
		return nil
	}))
	_, err := p.Inventory(context.Background())
	require.NoError(t, err)

	count := 0
	for _, r := range f.seen() {
		if r == "GET /foundry/list" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRegisterEmbeddingModels(t *testing.T) {
	f := newFakeService(t)
	p := newTestPlugin(f)

	var embeddings []llm.EmbeddingModel
	var aliases []string
	err := p.RegisterEmbeddingModels(context.Background(), func(m llm.EmbeddingModel, a ...string) error {
		embeddings = append(embeddings, m)
		aliases = append(aliases, a...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, "foundry/nomic-embed-text-generic-cpu", embeddings[0].ModelID())
	assert.Equal(t, []string{"foundry/nomic-embed"}, aliases)

	vectors, err := embeddings[0].Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vectors)
	assert.Contains(t, f.seen(), "POST /openai/download")
}

func TestInventoryLookup(t *testing.T) {
	inv := &Inventory{Catalog: []CatalogModel{
		{Name: "Phi-4-mini-instruct-generic-gpu", Alias: "phi-4-mini"},
		{Name: "Phi-4-mini-instruct-generic-cpu", Alias: "phi-4-mini"},
	}}

	m, ok := inv.Lookup("foundry/phi-4-mini")
	require.True(t, ok)
	assert.Equal(t, "Phi-4-mini-instruct-generic-gpu", m.Name)

	m, ok = inv.Lookup("Phi-4-mini-instruct-generic-cpu")
	require.True(t, ok)
	assert.Equal(t, "Phi-4-mini-instruct-generic-cpu", m.Name)

	_, ok = inv.Lookup("phi-4-mini-instruct-generic-cpu")
	assert.False(t, ok, "IDs match case-sensitively")

	_, ok = inv.Lookup("PHI-4-MINI")
	assert.False(t, ok, "aliases match case-sensitively")

	_, ok = inv.Lookup("llama")
	assert.False(t, ok)
}

func TestEntriesDropAliasMatchingCachedID(t *testing.T) {
	inv := &Inventory{
		Catalog: []CatalogModel{
			{Name: "mistral-7b-generic-gpu", Alias: "mistral-7b", Task: "chat-completion"},
			{Name: "phi-3-mini-generic-cpu", Alias: "phi-3-mini", Task: "chat-completion"},
		},
		Cached: map[string]bool{"mistral-7b": true},
		Loaded: map[string]bool{"phi-3-mini": true},
	}

	entries, aliases := inv.entries()
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"mistral-7b-generic-gpu", "phi-3-mini-generic-cpu", "mistral-7b", "phi-3-mini"}, names)
	assert.Empty(t, aliases)
}

func TestRegisterModelsAliasMatchingCachedID(t *testing.T) {
	f := newFakeService(t)
	f.cached = `["qwen2.5-0.5b"]`
	models := registerAll(t, newTestPlugin(f))

	assert.Contains(t, models, "foundry/qwen2.5-0.5b")
	assert.Empty(t, models["foundry/qwen2.5-0.5b-instruct-generic-cpu"].aliases)
	assert.Equal(t, "cached", models["foundry/qwen2.5-0.5b"].model.(llm.Stater).State())
}

func TestPluginServiceUnavailable(t *testing.T) {
	p := NewPlugin(config.FoundryConfig{Enabled: true}, WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Model management service is not running!"), nil
	}))

	err := p.RegisterModels(context.Background(), func(m llm.Model, aliases ...string) error { return nil })
	assert.ErrorContains(t, err, "foundry service is not running")
}

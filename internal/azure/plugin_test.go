package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmfoundry/internal/config"
	"llmfoundry/internal/discovery"
	"llmfoundry/internal/llm"
)

type fakeCredential struct {
	scopes []string
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = append(f.scopes, opts.Scopes...)
	return azcore.AccessToken{Token: "token-" + opts.Scopes[0], ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// fakeProject serves two pages of deployments and a chat completion endpoint.
type fakeProject struct {
	srv       *httptest.Server
	listCalls atomic.Int32

	mu       sync.Mutex
	lastAuth string
	lastPath string
}

func (f *fakeProject) lastRequest() (path, auth string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastAuth
}

func newFakeProject(t *testing.T) *fakeProject {
	f := &fakeProject{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/p/deployments", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		assert.Equal(t, "Bearer token-"+ProjectScope, r.Header.Get("Authorization"))
		assert.Equal(t, llm.DefaultProjectsAPIVersion, r.URL.Query().Get("api-version"))
		assert.NotEmpty(t, r.Header.Get("x-ms-client-request-id"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value":[
				{"type":"ModelDeployment","name":"text-embedding-3-small","modelName":"text-embedding-3-small","capabilities":{"embeddings":"true"}},
				{"type":"ModelDeployment","name":"phi-odd","modelName":"Phi-4","capabilities":{"chat_completion":"yes"}}
			]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[
			{"type":"ModelDeployment","name":"gpt-4o","modelName":"gpt-4o","modelVersion":"2024-11-20","modelPublisher":"OpenAI","capabilities":{"chat_completion":"true"},"sku":{"name":"GlobalStandard","capacity":50}}
		],"nextLink":"%s/api/projects/p/deployments?api-version=v1&page=2"}`, f.srv.URL)
	})
	mux.HandleFunc("/openai/deployments/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastPath = r.URL.Path
		f.mu.Unlock()
		fmt.Fprint(w, `{"id":"x","choices":[{"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProject) endpoint() string {
	return f.srv.URL + "/api/projects/p"
}

func collectModels(t *testing.T, p *Plugin) []llm.Model {
	t.Helper()
	var models []llm.Model
	err := p.RegisterModels(context.Background(), func(m llm.Model, aliases ...string) error {
		models = append(models, m)
		return nil
	})
	require.NoError(t, err)
	return models
}

func TestDeploymentHasCapability(t *testing.T) {
	d := Deployment{Capabilities: map[string]string{
		"chat_completion": "true",
		"embeddings":      "False",
		"vision":          "yes",
	}}
	assert.True(t, d.HasCapability(CapabilityChatCompletion))
	assert.False(t, d.HasCapability(CapabilityEmbeddings))
	assert.False(t, d.HasCapability("vision"))
	assert.False(t, d.HasCapability("missing"))
}

func TestListDeploymentsFollowsNextLink(t *testing.T) {
	f := newFakeProject(t)
	client, err := NewProjectClient(f.endpoint(), &fakeCredential{}, nil)
	require.NoError(t, err)

	deployments, err := client.ListDeployments(context.Background())
	require.NoError(t, err)
	require.Len(t, deployments, 3)
	assert.Equal(t, "gpt-4o", deployments[0].Name)
	assert.Equal(t, "OpenAI", deployments[0].ModelPublisher)
	require.NotNil(t, deployments[0].Sku)
	assert.Equal(t, 50, deployments[0].Sku.Capacity)
	assert.Equal(t, "text-embedding-3-small", deployments[1].Name)
}

func TestListDeploymentsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"PermissionDenied","message":"principal lacks access"}}`)
	}))
	defer srv.Close()

	client, err := NewProjectClient(srv.URL+"/api/projects/p", &fakeCredential{}, nil)
	require.NoError(t, err)

	_, err = client.ListDeployments(context.Background())
	assert.EqualError(t, err, "list deployments failed with status 403: principal lacks access")
}

func TestNewProjectClientRejectsBadEndpoint(t *testing.T) {
	_, err := NewProjectClient("not a url", &fakeCredential{}, nil)
	assert.Error(t, err)
}

func TestRegisterModelsChatOnly(t *testing.T) {
	f := newFakeProject(t)
	cred := &fakeCredential{}
	p := NewPlugin(config.AzureConfig{Endpoint: f.endpoint(), ChatOnly: true}, WithCredential(cred))

	models := collectModels(t, p)
	require.Len(t, models, 1)
	assert.Equal(t, "azure/gpt-4o", models[0].ModelID())
	assert.Equal(t, "Azure AI Foundry: azure/gpt-4o", models[0].String())
	assert.Equal(t, llm.AllCapabilities(), models[0].Capabilities())

	resp, err := models[0].Prompt(context.Background(), &llm.Prompt{Text: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text)
	path, auth := f.lastRequest()
	assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", path)
	assert.Equal(t, "Bearer token-"+InferenceScope, auth)
}

func TestRegisterModelsAllDeployments(t *testing.T) {
	f := newFakeProject(t)
	p := NewPlugin(config.AzureConfig{Endpoint: f.endpoint()}, WithCredential(&fakeCredential{}))

	var ids []string
	for _, m := range collectModels(t, p) {
		ids = append(ids, m.ModelID())
	}
	assert.Equal(t, []string{"azure/gpt-4o", "azure/text-embedding-3-small", "azure/phi-odd"}, ids)
}

func TestRegisterEmbeddingModels(t *testing.T) {
	f := newFakeProject(t)
	p := NewPlugin(config.AzureConfig{Endpoint: f.endpoint(), ChatOnly: true}, WithCredential(&fakeCredential{}))

	_ = collectModels(t, p)

	var ids []string
	err := p.RegisterEmbeddingModels(context.Background(), func(m llm.EmbeddingModel, aliases ...string) error {
		ids = append(ids, m.ModelID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"azure/text-embedding-3-small"}, ids)

	// both hooks share one listing (two pages)
	assert.Equal(t, int32(2), f.listCalls.Load())
}

func TestRegisterModelsNeedsEndpoint(t *testing.T) {
	p := NewPlugin(config.AzureConfig{}, WithCredential(&fakeCredential{}))

	err := p.RegisterModels(context.Background(), func(m llm.Model, aliases ...string) error {
		t.Fatal("nothing should register")
		return nil
	})

	var nk *llm.NeedsKeyError
	require.ErrorAs(t, err, &nk)
	assert.Equal(t, "azure.endpoint", nk.Key)
	assert.Contains(t, err.Error(), "https://<xxx>.services.ai.azure.com/api/projects/<project-name>")
}

func TestDeploymentsUseDiskCache(t *testing.T) {
	f := newFakeProject(t)
	cache, err := discovery.NewCache(t.TempDir())
	require.NoError(t, err)

	first := NewPlugin(config.AzureConfig{Endpoint: f.endpoint()}, WithCredential(&fakeCredential{}), WithCache(cache, time.Hour))
	_, err = first.Deployments(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.listCalls.Load())

	second := NewPlugin(config.AzureConfig{Endpoint: f.endpoint()}, WithCredential(&fakeCredential{}), WithCache(cache, time.Hour))
	deployments, err := second.Deployments(context.Background())
	require.NoError(t, err)
	assert.Len(t, deployments, 3)
	assert.Equal(t, int32(2), f.listCalls.Load())
}

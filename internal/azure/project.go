package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"llmfoundry/internal/llm"
)

// Capability keys reported by the deployments API.
const (
	CapabilityChatCompletion = "chat_completion"
	CapabilityEmbeddings     = "embeddings"
)

type Sku struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Deployment is one model deployment in an AI Foundry project.
type Deployment struct {
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	ModelName      string            `json:"modelName"`
	ModelVersion   string            `json:"modelVersion"`
	ModelPublisher string            `json:"modelPublisher"`
	Capabilities   map[string]string `json:"capabilities"`
	Sku            *Sku              `json:"sku,omitempty"`
	ConnectionName string            `json:"connectionName,omitempty"`
}

// HasCapability reports whether a capability is present and true.
// Values arrive as strings ("true"/"false"); anything ParseBool rejects is false.
func (d Deployment) HasCapability(name string) bool {
	v, ok := d.Capabilities[name]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

type deploymentList struct {
	Value    []Deployment `json:"value"`
	NextLink string       `json:"nextLink"`
}

// ProjectClient talks to an AI Foundry project endpoint, e.g.
// https://<xxx>.services.ai.azure.com/api/projects/<project-name>.
type ProjectClient struct {
	endpoint   string
	cred       azcore.TokenCredential
	httpClient *http.Client
	transport  http.RoundTripper
}

// NewProjectClient creates a client. transport may be nil.
func NewProjectClient(endpoint string, cred azcore.TokenCredential, transport http.RoundTripper) (*ProjectClient, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid project endpoint %q", endpoint)
	}
	return &ProjectClient{
		endpoint:   strings.TrimRight(u.String(), "/"),
		cred:       cred,
		httpClient: NewHTTPClient(cred, ProjectScope, transport, 30*time.Second),
		transport:  transport,
	}, nil
}

func (p *ProjectClient) Endpoint() string {
	return p.endpoint
}

// ListDeployments returns every deployment in the project, following nextLink.
func (p *ProjectClient) ListDeployments(ctx context.Context) ([]Deployment, error) {
	next := fmt.Sprintf("%s/deployments?api-version=%s", p.endpoint, llm.DefaultProjectsAPIVersion)

	var all []Deployment
	for next != "" {
		page, err := p.getPage(ctx, next)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		next = page.NextLink
	}

	log.WithField("count", len(all)).Debug("listed azure deployments")
	return all, nil
}

func (p *ProjectClient) getPage(ctx context.Context, target string) (*deploymentList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ms-client-request-id", requestID)

	log.WithField("request_id", requestID).Debugf("request URL: %s", target)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if m := gjson.GetBytes(body, "error.message"); m.Exists() {
			msg = m.String()
		}
		return nil, fmt.Errorf("list deployments failed with status %d: %s", resp.StatusCode, msg)
	}

	var page deploymentList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployments: %w", err)
	}
	return &page, nil
}

// OpenAIClient returns an OpenAI-compatible client for the project's
// resource, routing requests by deployment name.
func (p *ProjectClient) OpenAIClient(apiVersion string) *llm.Client {
	u, _ := url.Parse(p.endpoint)
	base := fmt.Sprintf("%s://%s/openai", u.Scheme, u.Host)
	if apiVersion == "" {
		apiVersion = llm.DefaultAzureAPIVersion
	}
	return &llm.Client{
		BaseURL:           base,
		APIVersion:        apiVersion,
		DeploymentRouting: true,
		HTTPClient:        NewHTTPClient(p.cred, InferenceScope, p.transport, 5*time.Minute),
	}
}

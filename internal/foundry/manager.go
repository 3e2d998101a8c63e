package foundry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type Runtime struct {
	DeviceType        string `json:"deviceType"`
	ExecutionProvider string `json:"executionProvider"`
}

// CatalogModel is one entry of the Foundry Local catalog.
type CatalogModel struct {
	Name                string          `json:"name"`
	DisplayName         string          `json:"displayName"`
	Alias               string          `json:"alias"`
	ProviderType        string          `json:"providerType"`
	URI                 string          `json:"uri"`
	Version             string          `json:"version"`
	ModelType           string          `json:"modelType"`
	Publisher           string          `json:"publisher"`
	Task                string          `json:"task"`
	License             string          `json:"license"`
	FileSizeMB          int64           `json:"fileSizeMb"`
	SupportsToolCalling bool            `json:"supportsToolCalling"`
	MaxOutputTokens     int             `json:"maxOutputTokens"`
	Runtime             Runtime         `json:"runtime"`
	PromptTemplate      json.RawMessage `json:"promptTemplate,omitempty"`
}

// IsEmbedding reports whether the catalog task is an embedding task.
func (m CatalogModel) IsEmbedding() bool {
	return strings.Contains(strings.ToLower(m.Task), "embed")
}

// IsChat reports whether the catalog task is a chat task. Uncatalogued
// cached or loaded models carry no task and are treated as chat models.
func (m CatalogModel) IsChat() bool {
	task := strings.ToLower(m.Task)
	return task == "" || strings.Contains(task, "chat")
}

// DownloadError carries the service's reason for a failed download.
type DownloadError struct {
	Model   string
	Message string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %s", e.Model, e.Message)
}

// Manager talks to the Foundry Local service REST API.
type Manager struct {
	baseURL string
	client  *http.Client
}

func NewManager(baseURL string, client *http.Client) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (m *Manager) BaseURL() string {
	return m.baseURL
}

// OpenAIBaseURL is where the service serves the OpenAI-compatible API.
func (m *Manager) OpenAIBaseURL() string {
	return m.baseURL + "/v1"
}

func (m *Manager) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	target := m.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("foundry request: %s %s", method, target)
	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("foundry service not reachable at %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()
	log.Debugf("foundry request took %v", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("foundry %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (m *Manager) getList(ctx context.Context, path string, v any) error {
	data, err := m.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ListCatalog returns every model the service can download.
func (m *Manager) ListCatalog(ctx context.Context) ([]CatalogModel, error) {
	var models []CatalogModel
	if err := m.getList(ctx, "/foundry/list", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ListCached returns the IDs of models downloaded to the local cache.
func (m *Manager) ListCached(ctx context.Context) ([]string, error) {
	var ids []string
	if err := m.getList(ctx, "/openai/models", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLoaded returns the IDs of models loaded into memory.
func (m *Manager) ListLoaded(ctx context.Context) ([]string, error) {
	var ids []string
	if err := m.getList(ctx, "/openai/loadedmodels", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

type downloadModel struct {
	URI            string          `json:"Uri"`
	Name           string          `json:"Name"`
	ProviderType   string          `json:"ProviderType"`
	PromptTemplate json.RawMessage `json:"PromptTemplate,omitempty"`
}

type downloadRequest struct {
	Model            downloadModel `json:"model"`
	Token            string        `json:"token"`
	IgnorePipeReport bool          `json:"IgnorePipeReport"`
}

// Download fetches a catalog model into the local cache. The service streams
// progress text and finishes with a JSON object carrying success/errorMessage.
func (m *Manager) Download(ctx context.Context, model CatalogModel) error {
	providerType := model.ProviderType
	if providerType == "" {
		providerType = "AzureFoundry"
	}
	req := downloadRequest{
		Model: downloadModel{
			URI:            model.URI,
			Name:           model.Name,
			ProviderType:   providerType + "Local",
			PromptTemplate: model.PromptTemplate,
		},
		IgnorePipeReport: true,
	}

	log.WithField("model", model.Name).Info("downloading model")
	data, err := m.do(ctx, http.MethodPost, "/openai/download", nil, req)
	if err != nil {
		return err
	}
	return parseDownloadResult(model.Name, data)
}

func parseDownloadResult(name string, data []byte) error {
	idx := bytes.IndexByte(data, '{')
	if idx < 0 {
		return &DownloadError{Model: name, Message: "no result in download response"}
	}
	result := data[idx:]
	if !gjson.ValidBytes(result) {
		return &DownloadError{Model: name, Message: "malformed download result: " + strings.TrimSpace(string(result))}
	}
	if !gjson.GetBytes(result, "success").Bool() {
		msg := gjson.GetBytes(result, "errorMessage").String()
		if msg == "" {
			msg = "unknown error"
		}
		return &DownloadError{Model: name, Message: msg}
	}
	return nil
}

// Load loads a cached model into memory for ttl.
func (m *Manager) Load(ctx context.Context, id string, ttl time.Duration) error {
	query := url.Values{}
	if ttl > 0 {
		query.Set("ttl", strconv.Itoa(int(ttl/time.Second)))
	}
	log.WithField("model", id).Info("loading model")
	_, err := m.do(ctx, http.MethodGet, "/openai/load/"+url.PathEscape(id), query, nil)
	return err
}

// Unload removes a model from memory.
func (m *Manager) Unload(ctx context.Context, id string, force bool) error {
	query := url.Values{}
	query.Set("force", strconv.FormatBool(force))
	_, err := m.do(ctx, http.MethodGet, "/openai/unload/"+url.PathEscape(id), query, nil)
	return err
}

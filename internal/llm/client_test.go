package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDeploymentRouting(t *testing.T) {
	var gotPath, gotVersion, gotAuth string
	var gotReq ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		fmt.Fprint(w, `{"id":"cmpl-1","model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL + "/openai", APIVersion: DefaultAzureAPIVersion, DeploymentRouting: true}
	chat := NewChat("azure/gpt-4o", "gpt-4o", "Azure AI Foundry", client, AllCapabilities())

	resp, err := chat.Prompt(context.Background(), &Prompt{Text: "hello", System: "be brief"})
	require.NoError(t, err)

	assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", gotPath)
	assert.Equal(t, DefaultAzureAPIVersion, gotVersion)
	assert.Empty(t, gotAuth)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "hello", gotReq.Messages[1].Content)
	assert.Nil(t, gotReq.Temperature)

	assert.Equal(t, "hi", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, Usage{Input: 3, Output: 1, Total: 4}, resp.Usage)
	assert.Equal(t, "Azure AI Foundry: azure/gpt-4o", chat.String())
}

func TestClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"s1\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":2,\"completion_tokens\":2,\"total_tokens\":4}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chat := NewChat("foundry/m", "m", "", NewClient(srv.URL+"/v1", "key"), Capabilities{Streaming: true})

	var chunks []string
	resp, err := chat.Prompt(context.Background(), &Prompt{
		Text:   "hi",
		Stream: true,
		OnChunk: func(s string) error {
			chunks = append(chunks, s)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", resp.Text)
	assert.Equal(t, "s1", resp.ID)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 4, resp.Usage.Total)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"DeploymentNotFound","message":"The API deployment for this resource does not exist."}}`)
	}))
	defer srv.Close()

	chat := NewChat("azure/x", "x", "", NewClient(srv.URL, ""), AllCapabilities())
	_, err := chat.Prompt(context.Background(), &Prompt{Text: "hi"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "The API deployment for this resource does not exist.", apiErr.Message)
}

func TestBuildChatRequestSchema(t *testing.T) {
	temp := 0.2
	req := BuildChatRequest("gpt-4o", &Prompt{
		Text:        "list dogs",
		Schema:      json.RawMessage(`{"type":"object"}`),
		Temperature: &temp,
		Stream:      true,
	})

	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	assert.JSONEq(t, `{"type":"object"}`, string(req.ResponseFormat.JSONSchema.Schema))
	assert.Equal(t, 0.2, *req.Temperature)
	// streaming needs a chunk callback
	assert.False(t, req.Stream)
	assert.Len(t, req.Messages, 1)
}

func TestChatRejectsSchemaWithoutSupport(t *testing.T) {
	chat := NewChat("foundry/m", "m", "", NewClient("http://unused", ""), Capabilities{})
	_, err := chat.Prompt(context.Background(), &Prompt{Text: "x", Schema: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "does not support schemas")

	_, err = chat.Prompt(context.Background(), &Prompt{Text: "  "})
	assert.ErrorContains(t, err, "prompt is empty")
}

func TestEmbeddingOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req EmbeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0.2]},{"index":0,"embedding":[0.1]}]}`)
	}))
	defer srv.Close()

	emb := NewEmbedding("azure/e", "e", "", NewClient(srv.URL, ""))
	vectors, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.2}}, vectors)
}

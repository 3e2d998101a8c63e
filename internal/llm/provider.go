package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Capabilities advertises what a model accepts. Deployments that do not
// actually support a feature report it through an API error.
type Capabilities struct {
	Vision    bool `json:"vision"`
	Reasoning bool `json:"reasoning"`
	Schema    bool `json:"schema"`
	Tools     bool `json:"tools"`
	Streaming bool `json:"streaming"`
}

// AllCapabilities turns every feature on.
func AllCapabilities() Capabilities {
	return Capabilities{Vision: true, Reasoning: true, Schema: true, Tools: true, Streaming: true}
}

// Model is the interface every registered chat model satisfies.
type Model interface {
	ModelID() string
	ModelName() string
	String() string
	Capabilities() Capabilities
	Prompt(ctx context.Context, p *Prompt) (*Response, error)
}

// EmbeddingModel is the interface every registered embedding model satisfies.
type EmbeddingModel interface {
	ModelID() string
	String() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Stater is implemented by models that carry a lifecycle state.
type Stater interface {
	State() string
}

type Prompt struct {
	Text        string
	System      string
	Schema      json.RawMessage
	Temperature *float64
	MaxTokens   int
	Stream      bool
	// OnChunk receives streamed content deltas. Returning an error aborts the stream.
	OnChunk func(chunk string) error
}

type Usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

type Response struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Chat is a chat model served by an OpenAI-compatible client.
type Chat struct {
	id      string
	name    string
	display string
	caps    Capabilities
	client  *Client
}

// NewChat creates a chat model. name is the model (or deployment) name sent
// to the API; display prefixes String().
func NewChat(id, name, display string, client *Client, caps Capabilities) *Chat {
	return &Chat{
		id:      id,
		name:    name,
		display: display,
		caps:    caps,
		client:  client,
	}
}

func (c *Chat) ModelID() string            { return c.id }
func (c *Chat) ModelName() string          { return c.name }
func (c *Chat) Capabilities() Capabilities { return c.caps }

func (c *Chat) String() string {
	if c.display == "" {
		return c.id
	}
	return fmt.Sprintf("%s: %s", c.display, c.id)
}

// Prompt sends the prompt as a chat completion, streaming when requested and
// supported.
func (c *Chat) Prompt(ctx context.Context, p *Prompt) (*Response, error) {
	if p == nil || strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}
	if len(p.Schema) > 0 && !c.caps.Schema {
		return nil, fmt.Errorf("model %s does not support schemas", c.id)
	}

	req := BuildChatRequest(c.name, p)
	log.Debugf("prompting %s (stream=%v)", c.id, req.Stream)

	var (
		chatResp *ChatResponse
		err      error
	)
	if req.Stream {
		chatResp, err = c.client.ChatCompletionStream(ctx, req, p.OnChunk)
	} else {
		chatResp, err = c.client.ChatCompletion(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	resp, err := ExtractResponse(chatResp)
	if err != nil {
		return nil, err
	}
	if !req.Stream && p.OnChunk != nil {
		if err := p.OnChunk(resp.Text); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// BuildChatRequest maps a Prompt to the chat completions wire request.
func BuildChatRequest(model string, p *Prompt) ChatRequest {
	var messages []Message
	if p.System != "" {
		messages = append(messages, Message{Role: "system", Content: p.System})
	}
	messages = append(messages, Message{Role: "user", Content: p.Text})

	req := ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Stream:      p.Stream && p.OnChunk != nil,
	}
	if len(p.Schema) > 0 {
		req.ResponseFormat = &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "output",
				Schema: p.Schema,
			},
		}
	}
	if req.Stream {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	return req
}

// ExtractResponse pulls the first choice out of a chat completion.
func ExtractResponse(chatResp *ChatResponse) (*Response, error) {
	if chatResp == nil || len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM (empty choices)")
	}

	choice := chatResp.Choices[0]
	resp := &Response{
		ID:           chatResp.ID,
		Model:        chatResp.Model,
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	if chatResp.Usage != nil {
		resp.Usage = Usage{
			Input:  chatResp.Usage.PromptTokens,
			Output: chatResp.Usage.CompletionTokens,
			Total:  chatResp.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// Embedding is an embedding model served by an OpenAI-compatible client.
type Embedding struct {
	id      string
	name    string
	display string
	client  *Client
}

func NewEmbedding(id, name, display string, client *Client) *Embedding {
	return &Embedding{id: id, name: name, display: display, client: client}
}

func (e *Embedding) ModelID() string { return e.id }

func (e *Embedding) String() string {
	if e.display == "" {
		return e.id
	}
	return fmt.Sprintf("%s: %s", e.display, e.id)
}

// Embed returns one vector per input, in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings(ctx, EmbeddingRequest{Model: e.name, Input: texts})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

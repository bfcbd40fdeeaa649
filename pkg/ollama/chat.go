package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-200 response from the Ollama API. Callers distinguish
// quota/overload conditions from hard failures via Temporary.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure is a quota or server-side condition
// that may clear on its own. Callers surface these distinctly; they are
// never retried automatically.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ChatClient is a non-streaming chat completion client. It is the opaque
// judgment-engine capability: generate(prompt) -> text.
type ChatClient struct {
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
}

// NewChatClient creates an Ollama chat client for the given model.
func NewChatClient(baseURL, model string, temperature float32) *ChatClient {
	return &ChatClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		// Generation is the one long-latency step per request; the per-call
		// deadline comes from ctx, this is the hard outer bound.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Generate runs one chat completion and returns the full response text.
func (c *ChatClient) Generate(ctx context.Context, system, user string) (string, error) {
	body, _ := json.Marshal(chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Options: map[string]any{"temperature": c.temperature},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result chatResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w", err)
	}
	return result.Message.Content, nil
}

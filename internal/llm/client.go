package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ianbrucey/war-room-sub000/internal/fault"
)

// Client calls an OpenAI-compatible completion and embedding endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string

	HTTPClient *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a system and user message and returns the model's reply.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if c.BaseURL == "" || c.ChatModel == "" {
		return "", fmt.Errorf("llm: base URL and model required")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:    c.ChatModel,
		Messages: []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}

	var payload chatResponse
	if err := c.post(ctx, c.BaseURL+"/chat/completions", reqBody, &payload); err != nil {
		return "", err
	}
	if payload.Error != nil {
		return "", fmt.Errorf("llm error: %s", payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}

	return payload.Choices[0].Message.Content, nil
}

// Embed returns one vector per input string.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.BaseURL == "" || c.EmbedModel == "" {
		return nil, fmt.Errorf("llm: base URL and embed model required")
	}

	reqBody, err := json.Marshal(embedRequest{Model: c.EmbedModel, Input: inputs})
	if err != nil {
		return nil, err
	}

	var payload embedResponse
	if err := c.post(ctx, c.BaseURL+"/embeddings", reqBody, &payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error: %s", payload.Error.Message)
	}
	if len(payload.Data) != len(inputs) {
		return nil, fmt.Errorf("llm: expected %d embeddings, got %d", len(inputs), len(payload.Data))
	}

	vectors := make([][]float32, len(payload.Data))
	for i, d := range payload.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fault.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fault.Transient(fmt.Errorf("llm: server error %d", resp.StatusCode))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 90 * time.Second}
}

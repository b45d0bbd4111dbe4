package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Model returns the raw JSON guess for a receipt image encoded as a data URI.
type Model interface {
	Extract(ctx context.Context, dataURI string) ([]byte, error)
}

// ModelConfig configures an OpenAI compatible chat completions endpoint.
type ModelConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// OpenAIModel calls a chat completions endpoint with the receipt attached as an image.
type OpenAIModel struct {
	cfg        ModelConfig
	httpClient *http.Client
}

const systemPrompt = `You extract expense data from receipt photos. Reply with a single JSON object:
{"vendor_name": string, "items": [{"name": string, "quantity": number, "net_price": number}],
"category": one of food|travel|supplies|entertainment|other,
"payment_method": one of card|cash|online|other, "expense_date": "YYYY-MM-DD"}.
net_price is the final amount paid for the line after discounts.`

// NewOpenAIModel validates cfg and returns a model client.
func NewOpenAIModel(cfg ModelConfig) (*OpenAIModel, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("extraction: model endpoint is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("extraction: model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &OpenAIModel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// Extract sends one request; failures are returned as is without retrying.
func (m *OpenAIModel) Extract(ctx context.Context, dataURI string) ([]byte, error) {
	body, err := json.Marshal(chatRequest{
		Model:     m.cfg.Model,
		MaxTokens: m.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Extract the expense from this receipt."},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			}},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model request failed: %s: %s", resp.Status, gjson.GetBytes(respBody, "error.message").String())
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return nil, fmt.Errorf("model response has no content")
	}
	return []byte(stripCodeFence(content.String())), nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

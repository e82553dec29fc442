package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charlabot/charla/provider"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// client implements provider.Provider using OpenAI's chat completions API
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new OpenAI client. baseURL may be empty.
func NewClient(apiKey, baseURL string, timeout time.Duration) provider.Provider {
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// wireMessage carries either a plain string content or a parts array when an
// image rides along.
type wireMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func toWire(messages []provider.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		if m.ImageDataURL == "" {
			out = append(out, wireMessage{Role: m.Role, Content: m.Content})
			continue
		}
		out = append(out, wireMessage{Role: m.Role, Content: []contentPart{
			{Type: "text", Text: m.Content},
			{Type: "image_url", ImageURL: &imageURL{URL: m.ImageDataURL}},
		}})
	}
	return out
}

// Generate sends the ordered messages to the completion endpoint. Every
// failure path wraps provider.ErrModelUnavailable.
func (c *client) Generate(ctx context.Context, model string, messages []provider.Message, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(request{
		Model:       model,
		Messages:    toWire(messages),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", provider.ErrModelUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", provider.ErrModelUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: API returned status %d: %s", provider.ErrModelUnavailable, resp.StatusCode, snippet)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", provider.ErrModelUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", provider.ErrModelUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

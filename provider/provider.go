package provider

import (
	"context"
	"errors"
)

// ErrModelUnavailable wraps every failure of the completion backend. Callers
// surface it to the user; nothing in this service retries automatically.
var ErrModelUnavailable = errors.New("model unavailable")

// Message is one entry of the ordered prompt. ImageDataURL, when set, is an
// inline data: URL attached alongside the text content.
type Message struct {
	Role         string
	Content      string
	ImageDataURL string
}

// Provider is the opaque completion capability.
type Provider interface {
	Generate(ctx context.Context, model string, messages []Message, maxTokens int, temperature float64) (string, error)
}

// Package llm is the transport to hosted text-generation models.
package llm

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a single non-streaming completion. A negative Temperature leaves
// the provider default in place.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client completes a prompt. Implementations perform exactly one upstream
// call per Complete and never retry.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrNotConfigured is returned by UnavailableClient.
var ErrNotConfigured = errors.New("llm: no text-generation model configured")

// UnavailableClient fails every request. It stands in when no provider is
// configured so intake still saves transcripts.
type UnavailableClient struct{}

func (UnavailableClient) Complete(ctx context.Context, req Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

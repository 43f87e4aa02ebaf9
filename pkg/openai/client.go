// Package openai wraps the OpenAI chat completions API.
package openai

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when a request leaves Model empty.
const DefaultModel = "gpt-4o-mini-2024-07-18"

// Client defines the chat completion call used by the merge stage.
type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single-turn chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// ChatResponse holds the first choice of a completion.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// Option configures the client.
type Option func(*sdk.ClientConfig)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *sdk.ClientConfig) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

type sdkClient struct {
	client *sdk.Client
}

// NewClient creates a Client backed by go-openai.
func NewClient(apiKey string, opts ...Option) Client {
	cfg := sdk.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &sdkClient{client: sdk.NewClientWithConfig(cfg)}
}

func (c *sdkClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	var msgs []sdk.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: req.User})

	temp := req.Temperature
	if temp == 0 {
		// zero is dropped by omitempty, which would leave the server default of 1
		temp = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: create chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

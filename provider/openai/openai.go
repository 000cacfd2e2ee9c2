// Package openai adapts the OpenAI Chat Completions API to
// runtime.ExternalCaller.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tailored-agentic-units/agentbus/orchestrate/runtime"
)

var ErrNoChoices = errors.New("no choices returned")

// Options configures the caller. Request fields override Model and
// MaxCompletionTokens per call.
type Options struct {
	Model               string
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	MaxRetries          int
}

type Caller struct {
	client *openai.Client
	opts   Options
}

var _ runtime.ExternalCaller = (*Caller)(nil)

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 1024,
		MaxRetries:          2,
	}
}

// New creates a caller with its own client. Without an APIKey the SDK reads
// OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Caller {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Caller{client: &client, opts: opts}
}

func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Caller {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Caller{client: client, opts: opts}
}

func (c *Caller) Call(ctx context.Context, req runtime.ExternalRequest) (*runtime.ExternalResponse, error) {
	model := c.opts.Model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := c.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	return &runtime.ExternalResponse{
		Text:        resp.Choices[0].Message.Content,
		Model:       resp.Model,
		InputUnits:  resp.Usage.PromptTokens,
		OutputUnits: resp.Usage.CompletionTokens,
	}, nil
}

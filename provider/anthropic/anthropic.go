// Package anthropic adapts the Anthropic Messages API to
// runtime.ExternalCaller.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tailored-agentic-units/agentbus/orchestrate/runtime"
)

// Options configures the caller. Request fields override Model and
// MaxTokens per call.
type Options struct {
	Model      string
	MaxTokens  int64
	APIKey     string
	BaseURL    string
	MaxRetries int
}

type Caller struct {
	client *anthropic.Client
	opts   Options
}

var _ runtime.ExternalCaller = (*Caller)(nil)

func defaultOptions() Options {
	return Options{
		Model:      "claude-3-5-haiku-20241022",
		MaxTokens:  1024,
		MaxRetries: 2,
	}
}

// New creates a caller with its own client. Without an APIKey the SDK reads
// ANTHROPIC_API_KEY from the environment.
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

	client := anthropic.NewClient(clientOpts...)
	return &Caller{client: &client, opts: opts}
}

func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Caller {
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
	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return &runtime.ExternalResponse{
		Text:        text.String(),
		Model:       string(resp.Model),
		InputUnits:  resp.Usage.InputTokens,
		OutputUnits: resp.Usage.OutputTokens,
	}, nil
}

package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// LLM issues a single completion from one system instruction and one user
// message. There is no conversation state and no tool use.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Claude is the production LLM backed by the Anthropic API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude creates a Claude completion client.
func NewClaude(apiKey, model string) *Claude {
	return &Claude{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 16384,
	}
}

// Complete sends one message and returns the concatenated text blocks.
func (c *Claude) Complete(ctx context.Context, system, user string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

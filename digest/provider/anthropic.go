package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

func newAnthropicClient(apiKey, baseURL string) *anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &client
}

// AnthropicGenerator forces a single tool call whose input schema is the response schema, and
// returns the tool input as the JSON result.
type AnthropicGenerator struct {
	client  *anthropic.Client
	model   string
	limiter *rate.Limiter
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", errors.New("AnthropicGenerator: client is nil")
	}
	if err := waitLimiter(ctx, g.limiter); err != nil {
		return "", err
	}

	toolName := req.SchemaName
	if toolName == "" {
		toolName = "create_summary"
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System:      []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        toolName,
				Description: anthropic.String("Provide summaries focusing on key details."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: Properties(req.Schema),
					Required:   RequiredFields(req.Schema),
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: toolName},
		},
	}

	message, err := withRetry(ctx, func(ctx context.Context) (*anthropic.Message, error) {
		return g.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	for _, block := range message.Content {
		if block.Type == "tool_use" && block.Name == toolName {
			return string(block.Input), nil
		}
	}
	// Fall back to any text the model produced; the caller tolerates non-JSON output.
	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}

// AnthropicTranslator translates with a plain Messages call.
type AnthropicTranslator struct {
	client  *anthropic.Client
	model   string
	limiter *rate.Limiter
}

func (t *AnthropicTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if err := waitLimiter(ctx, t.limiter); err != nil {
		return "", err
	}
	message, err := withRetry(ctx, func(ctx context.Context) (*anthropic.Message, error) {
		return t.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(t.model),
			MaxTokens:   4096,
			Temperature: anthropic.Float(0),
			System:      []anthropic.TextBlockParam{{Text: translationInstructions(source, target)}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("translation API error: %w", err)
	}
	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return "", errors.New("no response from API")
	}
	return strings.TrimSpace(content.String()), nil
}

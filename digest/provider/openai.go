package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"golang.org/x/time/rate"
)

const maxRetries = 3

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

// withRetry retries fn on rate-limit and server errors with fixed waits. Any other error, or
// cancellation of ctx while waiting, is returned immediately.
func withRetry[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxRetries; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		var wait time.Duration
		switch {
		case isRateLimitError(err) && attempt < maxRetries-1:
			wait = rateLimitWaitTimes[attempt]
		case isServerError(err) && attempt < maxRetries-1:
			wait = serverErrorWaitTimes[attempt]
		default:
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, fmt.Errorf("failed after %d attempts due to provider API issues", maxRetries)
}

// CallWithRetry creates a response, retrying rate-limit and server errors.
func CallWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	return withRetry(ctx, func(ctx context.Context) (*responses.Response, error) {
		return client.Responses.New(ctx, params)
	})
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error") ||
		strings.Contains(errStr, "overloaded")
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

// OpenAIGenerator produces structured output through the Responses API with a strict JSON schema.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	serviceTier string
	limiter     *rate.Limiter
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", errors.New("OpenAIGenerator: client is nil")
	}
	if g.model == "" {
		return "", errors.New("OpenAIGenerator: model is empty")
	}
	if err := waitLimiter(ctx, g.limiter); err != nil {
		return "", err
	}

	name := req.SchemaName
	if name == "" {
		name = "create_summary"
	}
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        name,
			Schema:      req.Schema,
			Strict:      openai.Bool(true),
			Description: openai.String("Provide summaries focusing on key details."),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(int64(req.MaxTokens)),
		Instructions:    openai.String(req.System),
		Temperature:     openai.Float(req.Temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}
	if g.serviceTier != "" {
		params.ServiceTier = responses.ResponseNewParamsServiceTier(g.serviceTier)
	}

	resp, err := CallWithRetry(ctx, g.client, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

// OpenAITranslator translates with a plain chat completion.
type OpenAITranslator struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if err := waitLimiter(ctx, t.limiter); err != nil {
		return "", err
	}
	resp, err := withRetry(ctx, func(ctx context.Context) (*openai.ChatCompletion, error) {
		return t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(t.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(translationInstructions(source, target)),
				openai.UserMessage(text),
			},
			Temperature: openai.Float(0),
		})
	})
	if err != nil {
		return "", fmt.Errorf("translation API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from API")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

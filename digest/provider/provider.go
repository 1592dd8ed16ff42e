// Package provider adapts hosted model APIs to the structured generation and translation calls the
// summarizer makes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one structured-output call: instructions, the user prompt, and the JSON schema the
// response must follow.
type Request struct {
	System      string
	User        string
	SchemaName  string
	Schema      map[string]interface{}
	MaxTokens   int
	Temperature float64
}

// Generator returns the raw JSON text the model produced for req.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Translator translates text between two ISO 639-1 language codes. source may be "unknown".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	TranslateModel    string
	ServiceTier       string
	RequestsPerMinute int
}

func (o Options) translateModel() string {
	if o.TranslateModel != "" {
		return o.TranslateModel
	}
	return o.Model
}

// New builds the generator and translator for o.Provider. Both share one rate limiter so pacing
// covers every request made with the key.
func New(o Options) (Generator, Translator, error) {
	if o.APIKey == "" {
		return nil, nil, fmt.Errorf("%s API key not provided", o.Provider)
	}
	if o.Model == "" {
		return nil, nil, errors.New("missing model")
	}
	limiter := NewLimiter(o.RequestsPerMinute)

	switch strings.ToLower(o.Provider) {
	case "", "openai":
		client := newOpenAIClient(o.APIKey, o.BaseURL)
		gen := &OpenAIGenerator{client: client, model: o.Model, serviceTier: o.ServiceTier, limiter: limiter}
		tr := &OpenAITranslator{client: client, model: o.translateModel(), limiter: limiter}
		return gen, tr, nil
	case "anthropic":
		client := newAnthropicClient(o.APIKey, o.BaseURL)
		gen := &AnthropicGenerator{client: client, model: o.Model, limiter: limiter}
		tr := &AnthropicTranslator{client: client, model: o.translateModel(), limiter: limiter}
		return gen, tr, nil
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", o.Provider)
	}
}

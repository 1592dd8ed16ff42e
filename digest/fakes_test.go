package digest

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
)

// wordCounter counts whitespace-separated words, a stand-in for a real tokenizer.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

func shapeOf(req provider.Request) Shape {
	keys := provider.RequiredFields(req.Schema)
	hasSections := slices.Contains(keys, "sections")
	hasFinal := slices.Contains(keys, "full_summary")
	switch {
	case hasSections && hasFinal:
		return ShapeFull
	case hasSections:
		return ShapeSection
	default:
		return ShapeFinal
	}
}

// fakeGenerator answers every shape with a small, valid response derived from the first word of
// the prompt, so tests can trace which input produced which section.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []provider.Request
	respond func(ctx context.Context, req provider.Request) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req provider.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.respond != nil {
		return g.respond(ctx, req)
	}
	return defaultResponse(req), nil
}

func (g *fakeGenerator) callsByShape() map[Shape]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[Shape]int{}
	for _, c := range g.calls {
		out[shapeOf(c)]++
	}
	return out
}

func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func defaultResponse(req provider.Request) string {
	tag := firstWord(req.User)
	sections := []map[string]any{
		{"title": tag, "summary": []string{"first point", "second point"}},
		{"title": tag + "-b", "summary": []string{"third point"}},
	}
	keywords := []map[string]any{
		{"term": tag, "count": 1},
		{"term": "shared", "count": 2},
	}
	var v map[string]any
	switch shapeOf(req) {
	case ShapeSection:
		v = map[string]any{"sections": sections, "keywords": keywords}
	case ShapeFinal:
		v = map[string]any{"full_summary": []string{"overall one", "overall two"}, "one_sentence_summary": "everything in one line"}
	default:
		v = map[string]any{
			"sections":             sections,
			"keywords":             keywords,
			"full_summary":         []string{"overall one", "overall two"},
			"one_sentence_summary": "everything in one line",
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// upperTranslator "translates" by upper-casing and records every call.
type upperTranslator struct {
	mu     sync.Mutex
	pieces []string
	failOn string
}

func (t *upperTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pieces = append(t.pieces, text)
	if t.failOn != "" && strings.Contains(text, t.failOn) {
		return "", errors.New("translator unavailable")
	}
	return strings.ToUpper(text), nil
}

type fixedDetector string

func (d fixedDetector) DetectLanguage(string) string { return string(d) }

// stalledTranslator never answers and returns only once its context is done.
type stalledTranslator struct{}

func (stalledTranslator) Translate(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

package digest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/digest-o-bot/digest/fileutils"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
)

// Generator performs one structured-output call and returns the raw model text.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (string, error)
}

// LevelSummarizer summarizes one unit of text (a chunk, a chapter digest or a whole document)
// into a typed Summary. It never fails on bad model output; only budget errors and cancellation
// of the parent context are returned.
type LevelSummarizer struct {
	gen     Generator
	counter TokenCounter
	cfg     Config
	logger  *zap.Logger
}

func NewLevelSummarizer(gen Generator, counter TokenCounter, cfg Config, logger *zap.Logger) *LevelSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = CharCounter{}
	}
	return &LevelSummarizer{gen: gen, counter: counter, cfg: cfg, logger: logger}
}

// ResponseReservation returns the tokens left for the response once the system prompt, schema
// and prompt are accounted for, clamped to MaxResponseTokens when that is set.
func (l *LevelSummarizer) ResponseReservation(system, schema, prompt string) (int, error) {
	sys := l.counter.CountTokens(system)
	sch := l.counter.CountTokens(schema)
	pr := l.counter.CountTokens(prompt)
	reserve := l.cfg.MaxContextTokens - sys - sch - pr
	if reserve <= 0 {
		return 0, fmt.Errorf("%w: response reservation %d (max=%d system=%d schema=%d prompt=%d)",
			ErrConfiguration, reserve, l.cfg.MaxContextTokens, sys, sch, pr)
	}
	if l.cfg.MaxResponseTokens > 0 && reserve > l.cfg.MaxResponseTokens {
		reserve = l.cfg.MaxResponseTokens
	}
	return reserve, nil
}

// SummarizeUnit runs one level call for text with the given response shape.
func (l *LevelSummarizer) SummarizeUnit(ctx context.Context, text string, shape Shape) (Summary, error) {
	schema, err := shape.Schema()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	schemaText, err := shape.SchemaText()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	system := SystemPrompt(l.cfg, shape)
	reserve, err := l.ResponseReservation(system, schemaText, text)
	if err != nil {
		return Summary{}, err
	}

	callCtx := ctx
	if l.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.cfg.CallTimeout)
		defer cancel()
	}

	raw, err := l.gen.Generate(callCtx, provider.Request{
		System:      system,
		User:        text,
		SchemaName:  "create_summary",
		Schema:      schema,
		MaxTokens:   reserve,
		Temperature: l.cfg.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Summary{}, ctx.Err()
		}
		l.logger.Warn("level call failed, using empty result",
			zap.String("shape", string(shape)),
			zap.Int("max_tokens", reserve),
			zap.Error(fmt.Errorf("%w: %w", ErrGeneration, err)))
		return EmptySummary(), nil
	}

	sum, err := ParseResponse(raw, shape)
	if err != nil {
		l.logger.Warn("unusable model output, using empty result",
			zap.String("shape", string(shape)),
			zap.String("model_output_prefix", fileutils.Truncate(raw, 200)),
			zap.Error(err))
	}
	return sum, nil
}

// EmptySummary is the structurally valid result used in place of a failed call.
func EmptySummary() Summary {
	return Summary{Sections: []Section{}, Keywords: []Keyword{}, FullSummary: []string{}}
}

// ParseResponse maps raw model output into a Summary. Whitespace is collapsed first. Output that
// is not a JSON object yields EmptySummary along with an ErrParse error. Missing keys read as
// empty lists and scalars where a list is expected are wrapped.
func ParseResponse(raw string, shape Shape) (Summary, error) {
	collapsed := strings.Join(strings.Fields(raw), " ")

	var decoded any
	if err := fileutils.DecodeModelJSON(collapsed, &decoded); err != nil {
		return EmptySummary(), fmt.Errorf("%w: %w", ErrParse, err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return EmptySummary(), fmt.Errorf("%w: top-level %T, want object", ErrParse, decoded)
	}

	keys := shape.Keys()
	if len(keys) == 0 {
		return EmptySummary(), fmt.Errorf("%w: unknown response shape %q", ErrParse, shape)
	}
	for _, key := range keys {
		obj[key] = asList(obj[key])
	}

	out := EmptySummary()
	for _, item := range asList(obj["sections"]) {
		if s, ok := sectionFrom(item); ok {
			out.Sections = append(out.Sections, s)
		}
	}
	for _, item := range asList(obj["keywords"]) {
		if k, ok := keywordFrom(item); ok {
			out.Keywords = append(out.Keywords, k)
		}
	}
	out.FullSummary = stringsFrom(obj["full_summary"])
	out.OneSentenceSummary = strings.Join(stringsFrom(obj["one_sentence_summary"]), "")
	return out, nil
}

// asList returns v unchanged when it already is a list, nil as an empty list, and wraps any other
// non-empty value into a one-element list.
func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return []any{}
	case string:
		if t == "" {
			return []any{}
		}
	case bool:
		if !t {
			return []any{}
		}
	case float64:
		if t == 0 {
			return []any{}
		}
	case map[string]any:
		if len(t) == 0 {
			return []any{}
		}
	}
	return []any{v}
}

func sectionFrom(v any) (Section, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Section{}, false
	}
	return Section{
		Title:   scalarString(m["title"]),
		Bullets: stringsFrom(m["summary"]),
	}, true
}

func keywordFrom(v any) (Keyword, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return Keyword{}, false
		}
		return Keyword{Term: t}, true
	case map[string]any:
		term := scalarString(t["term"])
		if term == "" {
			return Keyword{}, false
		}
		return Keyword{Term: term, Count: scalarInt(t["count"])}, true
	}
	return Keyword{}, false
}

func stringsFrom(v any) []string {
	list := asList(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		return strings.Join(stringsFrom(t), " ")
	}
	return ""
}

func scalarInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil {
			return n
		}
	}
	return 0
}

// IsFatal reports whether err must abort the whole pipeline.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

package digest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
)

// sentences returns n ten-word sentences whose first words are s1..sn.
func sentences(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "s%d alpha beta gamma delta epsilon zeta eta theta iota.", i)
	}
	return b.String()
}

// newBudgetPipeline builds a pipeline whose chunk budget is exactly budget words.
func newBudgetPipeline(t *testing.T, gen Generator, budget int, mutate func(*Config), deps Deps) *Pipeline {
	t.Helper()

	cfg := DefaultConfig()
	cfg.CallTimeout = 0
	if mutate != nil {
		mutate(&cfg)
	}
	deps.Generator = gen
	deps.Counter = wordCounter{}

	sizer, err := NewPipeline(cfg, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	b0, err := sizer.ChunkBudget()
	if err != nil {
		t.Fatalf("ChunkBudget: %v", err)
	}
	cfg.MaxContextTokens = cfg.MaxContextTokens - b0 + budget

	p, err := NewPipeline(cfg, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if got, _ := p.ChunkBudget(); got != budget {
		t.Fatalf("ChunkBudget=%d, want %d", got, budget)
	}
	return p
}

func sectionTitles(secs []Section) []string {
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Title
	}
	return out
}

func wantLeafTitles(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("s%d", i), fmt.Sprintf("s%d-b", i))
	}
	return out
}

func TestSummarize_DirectPath(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	var stages []string
	p, err := NewPipeline(DefaultConfig(), Deps{
		Generator: gen,
		Counter:   wordCounter{},
		Progress:  func(stage string, done, total int) { stages = append(stages, fmt.Sprintf("%s %d/%d", stage, done, total)) },
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	res, err := p.Summarize(context.Background(), sentences(20), "Cooking")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Path != PathDirect {
		t.Fatalf("Path=%q, want %q", res.Path, PathDirect)
	}
	if len(res.Sections) != 2 {
		t.Fatalf("sections=%d, want 2", len(res.Sections))
	}
	if res.OneSentenceSummary == "" {
		t.Fatalf("missing one sentence summary")
	}
	if res.FullSummary != "-overall one\n-overall two" {
		t.Fatalf("FullSummary=%q", res.FullSummary)
	}
	if len(res.Keywords) != 2 || res.Keywords[0].Term != "shared" {
		t.Fatalf("keywords=%+v", res.Keywords)
	}
	if res.Chapters != nil {
		t.Fatalf("direct path should have no chapters: %+v", res.Chapters)
	}
	if res.SourceText != "" {
		t.Fatalf("full text included by default")
	}
	if got := gen.callsByShape(); got[ShapeFull] != 1 || len(gen.calls) != 1 {
		t.Fatalf("calls=%v", got)
	}
	if !strings.HasPrefix(gen.calls[0].User, "Title: Cooking/ s1 ") {
		t.Fatalf("prompt=%q", gen.calls[0].User)
	}
	if len(stages) != 1 || stages[0] != "direct 1/1" {
		t.Fatalf("stages=%v", stages)
	}
}

func TestSummarize_SectionedPath(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := newBudgetPipeline(t, gen, 15, nil, Deps{})

	res, err := p.Summarize(context.Background(), sentences(4), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Path != PathSectioned {
		t.Fatalf("Path=%q", res.Path)
	}
	if got, want := strings.Join(sectionTitles(res.Sections), ","), strings.Join(wantLeafTitles(1, 4), ","); got != want {
		t.Fatalf("titles=%s, want %s", got, want)
	}
	if res.Chapters != nil {
		t.Fatalf("unexpected chapters")
	}
	if got := gen.callsByShape(); got[ShapeSection] != 4 || got[ShapeFinal] != 1 || got[ShapeFull] != 0 {
		t.Fatalf("calls=%v", got)
	}
	if res.FullSummary == "" || res.OneSentenceSummary == "" {
		t.Fatalf("missing final fields: %+v", res)
	}
}

func TestSummarize_ChapteredPath(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p := newBudgetPipeline(t, gen, 15, nil, Deps{})

	res, err := p.Summarize(context.Background(), sentences(30), "Long talk")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Path != PathChaptered {
		t.Fatalf("Path=%q", res.Path)
	}
	if len(res.Chapters) != 5 {
		t.Fatalf("chapters=%d, want 5", len(res.Chapters))
	}
	if got := gen.callsByShape(); got[ShapeSection] != 35 || got[ShapeFinal] != 1 || got[ShapeFull] != 0 {
		t.Fatalf("calls=%v", got)
	}

	next := 0
	for i, ch := range res.Chapters {
		if ch.Number != i+1 || ch.Title != fmt.Sprintf("Chapter %d", i+1) {
			t.Fatalf("chapter %d header=%d %q", i, ch.Number, ch.Title)
		}
		if ch.SectionRange.Start != next || ch.SectionRange.Len() != len(ch.Sections) || len(ch.Sections) != 12 {
			t.Fatalf("chapter %d range=%+v sections=%d", i, ch.SectionRange, len(ch.Sections))
		}
		want := wantLeafTitles(6*i+1, 6*i+6)
		if got := sectionTitles(ch.Sections); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("chapter %d titles=%v", i, got)
		}
		for j, sec := range ch.Sections {
			if res.Sections[ch.SectionRange.Start+j].Title != sec.Title {
				t.Fatalf("chapter %d section %d does not match global sequence", i, j)
			}
		}
		next = ch.SectionRange.End
	}
	if next != len(res.Sections) || len(res.Sections) != 60 {
		t.Fatalf("sections=%d, ranges end at %d", len(res.Sections), next)
	}
	if len(res.Keywords) != 10 || res.Keywords[0].Term != "shared" {
		t.Fatalf("keywords=%+v", res.Keywords)
	}
}

func TestSummarize_ChaptersDisabledInOutput(t *testing.T) {
	t.Parallel()

	p := newBudgetPipeline(t, &fakeGenerator{}, 15, func(c *Config) { c.EnableChapters = false }, Deps{})

	res, err := p.Summarize(context.Background(), sentences(30), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Chapters != nil || len(res.Sections) != 60 {
		t.Fatalf("chapters=%v sections=%d", res.Chapters, len(res.Sections))
	}
}

func TestSummarize_OrderSurvivesConcurrency(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(ctx context.Context, req provider.Request) (string, error) {
			if shapeOf(req) == ShapeSection {
				time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
			}
			return defaultResponse(req), nil
		},
	}
	p := newBudgetPipeline(t, gen, 15, func(c *Config) {
		c.Concurrency = 8
		c.MaxChunksPerChapter = 0
	}, Deps{})

	res, err := p.Summarize(context.Background(), sentences(24), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Path != PathSectioned {
		t.Fatalf("Path=%q", res.Path)
	}
	if got, want := strings.Join(sectionTitles(res.Sections), ","), strings.Join(wantLeafTitles(1, 24), ","); got != want {
		t.Fatalf("titles=%s\nwant   %s", got, want)
	}
}

func TestSummarize_FailedCallDegrades(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(ctx context.Context, req provider.Request) (string, error) {
			if firstWord(req.User) == "s2" {
				return "", errors.New("upstream 500")
			}
			if firstWord(req.User) == "s3" {
				return "sorry, no JSON today", nil
			}
			return defaultResponse(req), nil
		},
	}
	p := newBudgetPipeline(t, gen, 15, nil, Deps{})

	res, err := p.Summarize(context.Background(), sentences(4), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := append(wantLeafTitles(1, 1), wantLeafTitles(4, 4)...)
	if got := sectionTitles(res.Sections); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("titles=%v, want %v", got, want)
	}
}

func TestSummarize_AllLeavesEmptySkipsRootCall(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(ctx context.Context, req provider.Request) (string, error) {
			return "", errors.New("down")
		},
	}
	p := newBudgetPipeline(t, gen, 15, nil, Deps{})

	res, err := p.Summarize(context.Background(), sentences(3), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(res.Sections) != 0 || res.FullSummary != "" || res.OneSentenceSummary != "" {
		t.Fatalf("res=%+v", res)
	}
	if got := gen.callsByShape(); got[ShapeFinal] != 0 {
		t.Fatalf("root call made on empty digest: %v", got)
	}
}

func TestSummarize_CancellationStopsAtChapter(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	gen := &fakeGenerator{
		respond: func(callCtx context.Context, req provider.Request) (string, error) {
			w := firstWord(req.User)
			mu.Lock()
			seen = append(seen, w)
			mu.Unlock()
			if w == "s7" {
				cancel()
			}
			if err := callCtx.Err(); err != nil {
				return "", err
			}
			return defaultResponse(req), nil
		},
	}
	p := newBudgetPipeline(t, gen, 15, nil, Deps{})

	res, err := p.Summarize(ctx, sentences(30), "T")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("expected nil result")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, w := range seen {
		var n int
		if _, err := fmt.Sscanf(w, "s%d", &n); err == nil && n > 12 {
			t.Fatalf("chunk %s called after cancellation", w)
		}
	}
}

func TestNewPipeline_BudgetTooSmall(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxContextTokens = 50
	_, err := NewPipeline(cfg, Deps{Generator: &fakeGenerator{}, Counter: wordCounter{}})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err=%v, want ErrConfiguration", err)
	}
}

func TestNewPipeline_RequiresGenerator(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(DefaultConfig(), Deps{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	p, err := NewPipeline(DefaultConfig(), Deps{Generator: gen, Counter: wordCounter{}})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	res, err := p.Summarize(context.Background(), " \n\t ", "T")
	if !errors.Is(err, ErrEmptyInput) || res != nil {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("calls=%d", len(gen.calls))
	}
}

func TestSummarize_TranslatesToOutputLanguage(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{}
	cfg := DefaultConfig()
	cfg.IncludeFullText = true
	p, err := NewPipeline(cfg, Deps{
		Generator:  &fakeGenerator{},
		Counter:    wordCounter{},
		Detector:   fixedDetector("EN"),
		Translator: tr,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	text := sentences(3)
	res, err := p.Summarize(context.Background(), text, "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.SourceLanguage != "en" {
		t.Fatalf("SourceLanguage=%q", res.SourceLanguage)
	}
	if res.OneSentenceSummary != "EVERYTHING IN ONE LINE" {
		t.Fatalf("OneSentenceSummary=%q", res.OneSentenceSummary)
	}
	if res.Sections[0].Bullets[0] != "FIRST POINT" {
		t.Fatalf("sections=%+v", res.Sections)
	}
	if res.Keywords[0].Term != "SHARED" || res.KeywordsOriginal[0] != "shared" {
		t.Fatalf("keywords=%+v original=%v", res.Keywords, res.KeywordsOriginal)
	}
	if res.SourceText != text {
		t.Fatalf("SourceText should be the untranslated input")
	}
}

func TestSummarize_SameLanguageSkipsTranslation(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{}
	cfg := DefaultConfig()
	cfg.OutputLanguage = "en"
	p, err := NewPipeline(cfg, Deps{
		Generator:  &fakeGenerator{},
		Counter:    wordCounter{},
		Detector:   fixedDetector("en"),
		Translator: tr,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Summarize(context.Background(), sentences(3), "T"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(tr.pieces) != 0 {
		t.Fatalf("translator called %d times", len(tr.pieces))
	}
}

func TestSummarize_TranslationFailureKeepsSummary(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{failOn: "overall"}
	p, err := NewPipeline(DefaultConfig(), Deps{
		Generator:  &fakeGenerator{},
		Counter:    wordCounter{},
		Detector:   fixedDetector("en"),
		Translator: tr,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	res, err := p.Summarize(context.Background(), sentences(3), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.OneSentenceSummary != "everything in one line" || res.Sections[0].Bullets[0] != "first point" {
		t.Fatalf("summary was partially translated: %+v", res)
	}
}

func TestSummarize_StalledTranslatorTimesOut(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CallTimeout = 50 * time.Millisecond
	p, err := NewPipeline(cfg, Deps{
		Generator:  &fakeGenerator{},
		Counter:    wordCounter{},
		Detector:   fixedDetector("en"),
		Translator: stalledTranslator{},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	res, err := p.Summarize(ctx, sentences(3), "T")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Summarize took %v, want the translate call bounded by CallTimeout", elapsed)
	}
	if res.OneSentenceSummary != "everything in one line" {
		t.Fatalf("OneSentenceSummary=%q, want untranslated text", res.OneSentenceSummary)
	}
}

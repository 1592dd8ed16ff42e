package digest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
)

// Deps are the collaborators a Pipeline calls out to. Only Generator is required.
type Deps struct {
	Generator  Generator
	Counter    TokenCounter
	Detector   Detector
	Translator Translator
	Logger     *zap.Logger

	// Progress, when set, is called after every level call with a short stage label.
	Progress func(stage string, done, total int)
}

// Pipeline reduces one document at a time into a FinalSummary. It holds no per-document state and
// is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	counter    TokenCounter
	level      *LevelSummarizer
	normalizer *Normalizer
	translate  bool
	logger     *zap.Logger
	progress   func(stage string, done, total int)

	Preprocess PreprocessOptions
}

func NewPipeline(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Generator == nil {
		return nil, errors.New("NewPipeline: generator is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := deps.Counter
	if counter == nil {
		counter = CharCounter{}
	}
	p := &Pipeline{
		cfg:        cfg,
		counter:    counter,
		level:      NewLevelSummarizer(deps.Generator, counter, cfg, logger),
		normalizer: NewNormalizer(deps.Detector, deps.Translator, cfg.MaxTranslateLength, cfg.CallTimeout),
		translate:  deps.Translator != nil,
		logger:     logger,
		progress:   deps.Progress,
	}
	if _, err := p.ChunkBudget(); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// ChunkBudget is the largest chunk, in tokens, that fits any level call alongside its system
// prompt, schema and reserved response.
func (p *Pipeline) ChunkBudget() (int, error) {
	system, schema := 0, 0
	for _, shape := range []Shape{ShapeSection, ShapeFinal, ShapeFull} {
		system = max(system, p.counter.CountTokens(SystemPrompt(p.cfg, shape)))
		text, err := shape.SchemaText()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		schema = max(schema, p.counter.CountTokens(text))
	}
	return PromptBudget(p.cfg.MaxContextTokens, system, schema, p.cfg.ReservedResponseTokens)
}

// Chunk preprocesses text and splits it into budget-sized chunks.
func (p *Pipeline) Chunk(text string) (string, []Chunk, error) {
	processed := Preprocess(text, p.Preprocess)
	if processed == "" {
		return "", nil, ErrEmptyInput
	}
	budget, err := p.ChunkBudget()
	if err != nil {
		return "", nil, err
	}
	return processed, Chunks(processed, budget, p.cfg.ChunkUnit, p.counter), nil
}

// Summarize runs the whole reduction for one document. A nil result comes with the error that
// stopped it: a budget misconfiguration, cancellation, empty input, or an unexpected panic.
// Failures of individual calls degrade to empty fields instead.
func (p *Pipeline) Summarize(ctx context.Context, text, title string) (res *FinalSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("summarize panicked", zap.Any("panic", r))
			res, err = nil, fmt.Errorf("summarize: panic: %v", r)
		}
	}()

	processed, chunks, err := p.Chunk(text)
	if err != nil {
		return nil, err
	}
	source := p.normalizer.Detect(processed)
	p.logger.Info("chunked document",
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.String("source_language", source))

	doc, err := p.Reduce(ctx, chunks, title)
	if err != nil {
		return nil, err
	}

	if ShouldTranslate(source, p.cfg.OutputLanguage) {
		if !p.translate {
			p.logger.Debug("no translator configured, keeping model language",
				zap.String("source_language", source),
				zap.String("output_language", p.cfg.OutputLanguage))
		} else if err := p.normalizer.Normalize(ctx, &doc, source, p.cfg.OutputLanguage); err != nil {
			if IsFatal(err) {
				return nil, err
			}
			p.logger.Warn("translation failed, keeping untranslated summary", zap.Error(err))
		}
	}

	out := Format(doc, processed, p.cfg)
	out.SourceLanguage = source
	return &out, nil
}

// Reduce picks the reduction path for chunks: one combined call for a single chunk, a single
// section level when the chunks fit in one chapter, and chapters otherwise.
func (p *Pipeline) Reduce(ctx context.Context, chunks []Chunk, title string) (Document, error) {
	switch {
	case len(chunks) == 0:
		return Document{}, ErrEmptyInput
	case len(chunks) == 1:
		sum, err := p.level.SummarizeUnit(ctx, TitledPrompt(title, chunks[0].Text), ShapeFull)
		if err != nil {
			return Document{}, err
		}
		p.report("direct", 1, 1)
		sum.Keywords = DedupKeywords(sum.Keywords)
		return Document{Summary: sum, Path: PathDirect}, nil
	}

	groups := Partition(chunks, p.cfg.MaxChunksPerChapter)
	if len(groups) == 1 {
		root, _, err := reduceTree(ctx, p.level, p.chunkStep("sections", groups[0], ShapeFinal, func(digest string) string {
			return TitledPrompt(title, digest)
		}))
		if err != nil {
			return Document{}, err
		}
		return Document{Summary: root, Path: PathSectioned}, nil
	}
	return p.reduceChapters(ctx, groups, title)
}

func (p *Pipeline) reduceChapters(ctx context.Context, groups [][]Chunk, title string) (Document, error) {
	p.logger.Info("reducing by chapter", zap.Int("chapters", len(groups)))

	// Chapters run one after another so that a fatal error stops the run at a chapter boundary.
	root, chapterSums, err := reduceTree(ctx, p.level, reduceStep[[]Chunk]{
		leaves:      groups,
		concurrency: 1,
		leaf: func(ctx context.Context, i int, group []Chunk) (Summary, error) {
			stage := "chapter " + strconv.Itoa(i+1)
			sum, _, err := reduceTree(ctx, p.level, p.chunkStep(stage, group, ShapeSection, func(digest string) string {
				return digest
			}))
			return sum, err
		},
		rootShape: ShapeFinal,
		rootPrompt: func(digest string) string {
			return TitledPrompt(title, digest)
		},
	})
	if err != nil {
		return Document{}, err
	}

	counts := make([]int, len(chapterSums))
	for i, s := range chapterSums {
		counts[i] = len(s.Sections)
	}
	chapters := make([]Chapter, len(chapterSums))
	for i, r := range ChapterRanges(counts) {
		s := chapterSums[i]
		chapters[i] = Chapter{
			Number:             i + 1,
			Title:              "Chapter " + strconv.Itoa(i+1),
			SectionRange:       r,
			Sections:           s.Sections,
			Keywords:           s.Keywords,
			Summary:            s.FullSummary,
			OneSentenceSummary: s.OneSentenceSummary,
		}
	}
	return Document{Summary: root, Chapters: chapters, Path: PathChaptered}, nil
}

// chunkStep is the reduce level whose leaves are chunk texts summarized in parallel.
func (p *Pipeline) chunkStep(stage string, chunks []Chunk, rootShape Shape, rootPrompt func(string) string) reduceStep[Chunk] {
	var done atomic.Int64
	return reduceStep[Chunk]{
		leaves:      chunks,
		concurrency: p.cfg.Concurrency,
		leaf: func(ctx context.Context, _ int, c Chunk) (Summary, error) {
			sum, err := p.level.SummarizeUnit(ctx, c.Text, ShapeSection)
			if err == nil {
				p.report(stage, int(done.Add(1)), len(chunks))
			}
			return sum, err
		},
		rootShape:  rootShape,
		rootPrompt: rootPrompt,
	}
}

func (p *Pipeline) report(stage string, done, total int) {
	if p.progress != nil {
		p.progress(stage, done, total)
	}
}

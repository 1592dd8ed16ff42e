package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/theimaginaryfoundation/digest-o-bot/digest"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/fileutils"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/langdetect"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnv(cfg.Provider))
	}
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "missing %s (or pass -api-key)\n", apiKeyEnv(cfg.Provider))
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.OutPath != "" && !cfg.Overwrite && fileutils.FileExists(cfg.OutPath) {
		fmt.Fprintf(os.Stderr, "output already exists: %s (pass -overwrite to replace it)\n", cfg.OutPath)
		os.Exit(2)
	}

	text, err := readInput(cfg.InPath, cfg.CleanSubtitleTags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	gen, tr, err := provider.New(provider.Options{
		Provider:          cfg.Provider,
		APIKey:            apiKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Digest.Model,
		TranslateModel:    cfg.TranslateModel,
		ServiceTier:       cfg.ServiceTier,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	deps := digest.Deps{
		Generator: gen,
		Counter:   newCounter(cfg.Digest.Model, logger),
		Logger:    logger,
		Progress:  progressPrinter(os.Stderr, time.Now()),
	}
	if !cfg.NoTranslate {
		deps.Translator = tr
	}
	detector, err := langdetect.New(languageCodes(cfg.DetectLanguages)...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	deps.Detector = detector

	pipeline, err := digest.NewPipeline(cfg.Digest, deps)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	title := cfg.Title
	if title == "" {
		title = titleFromPath(cfg.InPath)
	}
	res, err := pipeline.Summarize(ctx, text, title)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := writeResult(cfg.OutPath, res, cfg.Pretty, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	// The result itself goes to stdout when -out is empty, so the run line moves to stderr.
	report := os.Stdout
	if cfg.OutPath == "" {
		report = os.Stderr
	}
	fmt.Fprintln(report, resultLine(res, gen.Name(), cfg.OutPath, time.Since(started)))
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", "", "Path to a text file or a JSON subtitle array (- reads stdin)")
	fs.StringVar(&cfg.OutPath, "out", "", "Output path; .yaml/.yml writes YAML, anything else JSON (default: stdout JSON)")
	fs.StringVar(&cfg.Title, "title", "", "Document title passed to the model (default: input file name)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML config file; flags given explicitly override it")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print JSON output")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Replace -out if it already exists")

	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Model provider: openai or anthropic")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Optional API base URL override")
	fs.StringVar(&cfg.TranslateModel, "translate-model", "", "Model used for translation (default: -model)")
	fs.StringVar(&cfg.ServiceTier, "service-tier", "", "Optional OpenAI service tier (e.g. flex)")
	fs.IntVar(&cfg.RequestsPerMinute, "rpm", 0, "Max requests per minute across summarize and translate calls (0 = unlimited)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.DetectLanguages, "detect-languages", "", "Comma-separated ISO 639-1 codes the detector chooses from (default: all)")
	fs.BoolVar(&cfg.NoTranslate, "no-translate", false, "Keep the model's output language instead of translating")
	fs.BoolVar(&cfg.CleanSubtitleTags, "clean-subtitle-tags", cfg.CleanSubtitleTags, "Drop [..] and (..) tags from subtitle input")

	d := &cfg.Digest
	fs.StringVar(&d.Model, "model", d.Model, "Model used for summarization")
	fs.IntVar(&d.MaxContextTokens, "max-context-tokens", d.MaxContextTokens, "Context window of the model in tokens")
	fs.IntVar(&d.ReservedResponseTokens, "reserved-response-tokens", d.ReservedResponseTokens, "Tokens held back for the response when sizing chunks")
	fs.IntVar(&d.MaxResponseTokens, "max-response-tokens", d.MaxResponseTokens, "Cap on response tokens per call (0 = whatever fits)")
	fs.Float64Var(&d.Temperature, "temperature", d.Temperature, "Sampling temperature")
	fs.StringVar(&d.OutputLanguage, "output-language", d.OutputLanguage, "ISO 639-1 code of the summary language")
	fs.StringVar(&d.ContentType, "content-type", d.ContentType, "Optional content hint: youtube or article")
	fs.Var(unitFlag{&d.ChunkUnit}, "chunk-unit", "Chunk size unit: token or character")
	fs.IntVar(&d.MaxChunksPerChapter, "max-chunks-per-chapter", d.MaxChunksPerChapter, "Chunks per chapter (0 disables chapters)")
	fs.BoolVar(&d.IncludeKeywords, "include-keywords", d.IncludeKeywords, "Include keywords in the result")
	fs.BoolVar(&d.IncludeFullText, "include-full-text", d.IncludeFullText, "Include the preprocessed source text in the result")
	fs.BoolVar(&d.EnableChapters, "enable-chapters", d.EnableChapters, "Include chapters in the result")
	fs.IntVar(&d.TopKeywords, "top-keywords", d.TopKeywords, "Keywords kept in the result (0 = all)")
	fs.IntVar(&d.MaxTranslateLength, "max-translate-length", d.MaxTranslateLength, "Max characters per translation request")
	fs.IntVar(&d.Concurrency, "concurrency", d.Concurrency, "Max concurrent chunk summaries")
	fs.DurationVar(&d.CallTimeout, "call-timeout", d.CallTimeout, "Timeout per model call (0 disables)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ConfigPath != "" {
		cfg.ConfigPath = filepath.Clean(cfg.ConfigPath)
		fromFile, err := digest.LoadConfigFile(cfg.ConfigPath, digest.DefaultConfig())
		if err != nil {
			return Config{}, err
		}
		// Replay the flags given on the command line on top of the file.
		explicit := map[string]string{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
		cfg.Digest = fromFile
		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return Config{}, fmt.Errorf("reapply -%s: %w", name, err)
			}
		}
	}

	if cfg.InPath != "" && cfg.InPath != "-" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	if cfg.OutPath != "" {
		cfg.OutPath = filepath.Clean(cfg.OutPath)
	}
	return cfg, nil
}

type unitFlag struct{ u *digest.Unit }

func (f unitFlag) String() string {
	if f.u == nil {
		return ""
	}
	return string(*f.u)
}

func (f unitFlag) Set(s string) error {
	*f.u = digest.Unit(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid -log-level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func newCounter(model string, logger *zap.Logger) digest.TokenCounter {
	counter, err := digest.NewTiktokenCounter(model)
	if err != nil {
		logger.Warn("tiktoken unavailable, counting characters instead", zap.String("model", model), zap.Error(err))
		return digest.CharCounter{}
	}
	return counter
}

// progressPrinter returns a Progress callback that prints one line per finished call.
func progressPrinter(w io.Writer, started time.Time) func(stage string, done, total int) {
	var mu sync.Mutex
	return func(stage string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "progress summarize: %s %d/%d (elapsed=%s)\n", stage, done, total, time.Since(started).Truncate(time.Second))
	}
}

// readInput loads path as plain text, or as prose joined from a JSON subtitle array.
func readInput(path string, cleanTags bool) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return inputText(b, cleanTags)
}

func inputText(b []byte, cleanTags bool) (string, error) {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return "", errors.New("input is empty")
	}
	if strings.HasPrefix(trimmed, "[") {
		var segs []digest.SubtitleSegment
		if err := json.Unmarshal([]byte(trimmed), &segs); err == nil {
			return digest.JoinSubtitles(segs, cleanTags), nil
		}
	}
	return string(b), nil
}

func titleFromPath(path string) string {
	if path == "" || path == "-" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeResult(path string, res *digest.FinalSummary, pretty bool, stdout io.Writer) error {
	if path == "" {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(res)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return fileutils.WriteYAMLFileAtomic(path, res)
	default:
		return fileutils.WriteJSONFileAtomic(path, res, pretty)
	}
}

func resultLine(res *digest.FinalSummary, providerName, out string, elapsed time.Duration) string {
	if out == "" {
		out = "-"
	}
	return fmt.Sprintf("path=%s provider=%s chapters=%d sections=%d keywords=%d source_language=%s out=%s elapsed=%s",
		res.Path, providerName, len(res.Chapters), len(res.Sections), len(res.Keywords), res.SourceLanguage, out, elapsed.Truncate(time.Millisecond))
}

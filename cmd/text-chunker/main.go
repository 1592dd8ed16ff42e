package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/digest-o-bot/digest"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/fileutils"
	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
)

// text-chunker shows how a document would be cut into chunks and chapters without calling a model.
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

	b, err := os.ReadFile(cfg.InPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("read input: %w", err).Error())
		os.Exit(2)
	}

	plan, err := buildPlan(string(b), cfg, counterFor(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := writePlan(os.Stdout, plan, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", "", "Path to the text file to chunk")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model whose tokenizer sizes the chunks")
	fs.StringVar(&cfg.Unit, "unit", cfg.Unit, "Chunk size unit: token or character")
	fs.IntVar(&cfg.MaxUnits, "max-units", 0, "Chunk size limit (0 = the budget summarize would use)")
	fs.IntVar(&cfg.MaxContextTokens, "max-context-tokens", cfg.MaxContextTokens, "Context window used to derive the budget when -max-units is 0")
	fs.IntVar(&cfg.MaxChunksPerChapter, "max-chunks-per-chapter", cfg.MaxChunksPerChapter, "Chunks per chapter (0 disables chapters)")
	fs.IntVar(&cfg.PreviewChars, "preview-chars", cfg.PreviewChars, "Characters of each chunk to print (0 prints all)")
	fs.BoolVar(&cfg.JSON, "json", false, "Print the plan as JSON instead of lines")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.InPath = filepath.Clean(cfg.InPath)
	if cfg.InPath == "." {
		cfg.InPath = ""
	}
	return cfg, nil
}

func counterFor(cfg Config) digest.TokenCounter {
	if cfg.Unit == string(digest.UnitCharacter) {
		return digest.CharCounter{}
	}
	counter, err := digest.NewTiktokenCounter(cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tiktoken unavailable (%v), counting characters instead\n", err)
		return digest.CharCounter{}
	}
	return counter
}

type plannedChunk struct {
	Index   int    `json:"index"`
	Chapter int    `json:"chapter"`
	Units   int    `json:"units"`
	Preview string `json:"preview"`
}

type plan struct {
	Unit     string         `json:"unit"`
	MaxUnits int            `json:"max_units"`
	Chapters []int          `json:"chapter_sizes"`
	Chunks   []plannedChunk `json:"chunks"`
}

// offlineGenerator lets a Pipeline compute budgets and chunks; it is never asked to generate.
type offlineGenerator struct{}

func (offlineGenerator) Generate(context.Context, provider.Request) (string, error) {
	return "", errors.New("text-chunker makes no model calls")
}

func buildPlan(text string, cfg Config, counter digest.TokenCounter) (plan, error) {
	var (
		processed string
		chunks    []digest.Chunk
		maxUnits  = cfg.MaxUnits
	)
	if maxUnits > 0 {
		processed = digest.Preprocess(text, digest.PreprocessOptions{})
		if processed == "" {
			return plan{}, digest.ErrEmptyInput
		}
		chunks = digest.Chunks(processed, maxUnits, digest.Unit(cfg.Unit), counter)
	} else {
		dcfg := digest.DefaultConfig()
		dcfg.Model = cfg.Model
		dcfg.ChunkUnit = digest.Unit(cfg.Unit)
		dcfg.MaxContextTokens = cfg.MaxContextTokens
		dcfg.MaxChunksPerChapter = cfg.MaxChunksPerChapter
		p, err := digest.NewPipeline(dcfg, digest.Deps{Generator: offlineGenerator{}, Counter: counter})
		if err != nil {
			return plan{}, err
		}
		if maxUnits, err = p.ChunkBudget(); err != nil {
			return plan{}, err
		}
		if _, chunks, err = p.Chunk(text); err != nil {
			return plan{}, err
		}
	}

	out := plan{Unit: cfg.Unit, MaxUnits: maxUnits, Chunks: make([]plannedChunk, 0, len(chunks))}
	for ci, group := range digest.Partition(chunks, cfg.MaxChunksPerChapter) {
		out.Chapters = append(out.Chapters, len(group))
		for _, c := range group {
			units := c.TokenCount
			if cfg.Unit == string(digest.UnitCharacter) {
				units = digest.CharCounter{}.CountTokens(c.Text)
			}
			out.Chunks = append(out.Chunks, plannedChunk{
				Index:   c.Index,
				Chapter: ci + 1,
				Units:   units,
				Preview: fileutils.Truncate(fileutils.SanitizeNewlines(c.Text), cfg.PreviewChars),
			})
		}
	}
	return out, nil
}

func writePlan(w io.Writer, p plan, cfg Config) error {
	if cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	for _, c := range p.Chunks {
		if _, err := fmt.Fprintf(w, "chunk=%d chapter=%d units=%d text=%q\n", c.Index, c.Chapter, c.Units, c.Preview); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "chunks=%d chapters=%d unit=%s max_units=%d chapter_sizes=%v\n",
		len(p.Chunks), len(p.Chapters), p.Unit, p.MaxUnits, p.Chapters)
	return err
}

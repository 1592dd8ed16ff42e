package digest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable configuration threaded through every component of one run.
type Config struct {
	Model string `yaml:"model"`

	MaxContextTokens       int     `yaml:"max_context_tokens"`
	ReservedResponseTokens int     `yaml:"reserved_response_tokens"`
	MaxResponseTokens      int     `yaml:"max_response_tokens"`
	Temperature            float64 `yaml:"temperature"`

	OutputLanguage string `yaml:"output_language"`
	ContentType    string `yaml:"content_type"`

	ChunkUnit           Unit `yaml:"chunk_unit"`
	MaxChunksPerChapter int  `yaml:"max_chunks_per_chapter"`

	IncludeKeywords bool `yaml:"include_keywords"`
	IncludeFullText bool `yaml:"include_full_text"`
	EnableChapters  bool `yaml:"enable_chapters"`
	TopKeywords     int  `yaml:"top_keywords"`

	MaxTranslateLength int `yaml:"max_translate_length"`

	Concurrency int           `yaml:"concurrency"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultConfig returns the settings the summarizer was tuned with.
func DefaultConfig() Config {
	return Config{
		Model:                  "gpt-4o-mini",
		MaxContextTokens:       4096,
		ReservedResponseTokens: 600,
		Temperature:            0.2,
		OutputLanguage:         "ko",
		ChunkUnit:              UnitToken,
		MaxChunksPerChapter:    6,
		IncludeKeywords:        true,
		IncludeFullText:        false,
		EnableChapters:         true,
		TopKeywords:            10,
		MaxTranslateLength:     4500,
		Concurrency:            4,
		CallTimeout:            2 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("missing model")
	}
	if c.MaxContextTokens <= 0 {
		return errors.New("max-context-tokens must be > 0")
	}
	if c.ReservedResponseTokens < 0 || c.MaxResponseTokens < 0 {
		return errors.New("response token limits must be >= 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be within [0, 2]")
	}
	if c.OutputLanguage == "" {
		return errors.New("missing output-language")
	}
	if c.ChunkUnit != UnitToken && c.ChunkUnit != UnitCharacter {
		return fmt.Errorf("chunk-unit must be %q or %q", UnitToken, UnitCharacter)
	}
	if c.MaxChunksPerChapter < 0 {
		return errors.New("max-chunks-per-chapter must be >= 0")
	}
	if c.TopKeywords < 0 {
		return errors.New("top-keywords must be >= 0")
	}
	if c.MaxTranslateLength <= 0 {
		return errors.New("max-translate-length must be > 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.CallTimeout < 0 {
		return errors.New("call-timeout must be >= 0")
	}
	return nil
}

// LoadConfigFile overlays the YAML file at path onto base. Keys missing from the file keep base's value.
func LoadConfigFile(path string, base Config) (Config, error) {
	if path == "" {
		return Config{}, errors.New("LoadConfigFile: path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("LoadConfigFile: read file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("LoadConfigFile: unmarshal: %w", err)
	}
	return cfg, nil
}

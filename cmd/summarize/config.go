package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/digest-o-bot/digest"
)

type Config struct {
	InPath     string
	OutPath    string
	Title      string
	ConfigPath string
	Pretty     bool
	Overwrite  bool

	Provider          string
	APIKey            string
	BaseURL           string
	TranslateModel    string
	ServiceTier       string
	RequestsPerMinute int

	LogLevel          string
	DetectLanguages   string
	NoTranslate       bool
	CleanSubtitleTags bool

	Digest digest.Config
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	switch strings.ToLower(c.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported -provider %q (want openai or anthropic)", c.Provider)
	}
	if c.RequestsPerMinute < 0 {
		return errors.New("rpm must be >= 0")
	}
	return c.Digest.Validate()
}

func defaultConfig() Config {
	return Config{
		Provider:          "openai",
		LogLevel:          "info",
		CleanSubtitleTags: true,
		Digest:            digest.DefaultConfig(),
	}
}

// apiKeyEnv names the environment variable holding the key for provider.
func apiKeyEnv(provider string) string {
	if strings.EqualFold(provider, "anthropic") {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// languageCodes splits a comma-separated -detect-languages value.
func languageCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

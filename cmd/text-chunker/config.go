package main

import (
	"errors"

	"github.com/theimaginaryfoundation/digest-o-bot/digest"
)

type Config struct {
	InPath       string
	Model        string
	Unit         string
	MaxUnits     int
	PreviewChars int
	JSON         bool

	MaxContextTokens    int
	MaxChunksPerChapter int
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.Unit != string(digest.UnitToken) && c.Unit != string(digest.UnitCharacter) {
		return errors.New("unit must be token or character")
	}
	if c.MaxUnits < 0 {
		return errors.New("max-units must be >= 0")
	}
	if c.MaxUnits == 0 && c.Model == "" {
		return errors.New("missing -model (needed to size chunks when -max-units is 0)")
	}
	if c.PreviewChars < 0 {
		return errors.New("preview-chars must be >= 0")
	}
	if c.MaxChunksPerChapter < 0 {
		return errors.New("max-chunks-per-chapter must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	d := digest.DefaultConfig()
	return Config{
		Model:               d.Model,
		Unit:                string(d.ChunkUnit),
		PreviewChars:        80,
		MaxContextTokens:    d.MaxContextTokens,
		MaxChunksPerChapter: d.MaxChunksPerChapter,
	}
}

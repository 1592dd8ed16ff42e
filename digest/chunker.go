package digest

import (
	"regexp"
	"strings"
)

// Unit selects how chunk size is measured.
type Unit string

const (
	UnitToken     Unit = "token"
	UnitCharacter Unit = "character"
)

// boundary is one layer of the split strategy. keep is the number of bytes at the start of each
// match that stay with the left segment (the punctuation mark), the rest of the match is dropped.
type boundary struct {
	re   *regexp.Regexp
	keep int
}

var (
	sentenceBoundary = boundary{re: regexp.MustCompile(`[.!?]\s+`), keep: 1}

	fallbackBoundaries = []boundary{
		{re: regexp.MustCompile(`\n{2,}`)},
		{re: regexp.MustCompile(`[;:]\s+`), keep: 1},
		{re: regexp.MustCompile(`\s{2,}`)},
		{re: regexp.MustCompile(`,\s+`), keep: 1},
	}
)

func (b boundary) split(text string) []string {
	var out []string
	prev := 0
	for _, m := range b.re.FindAllStringIndex(text, -1) {
		out = appendTrimmed(out, text[prev:m[0]+b.keep])
		prev = m[1]
	}
	return appendTrimmed(out, text[prev:])
}

func appendTrimmed(out []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	return append(out, s)
}

// Segments breaks text into the pieces the chunker assembles: sentences first, then coarser or
// finer boundaries until more than one piece results, and finally fixed-width slices.
func Segments(text string, maxUnits int) []string {
	segs := sentenceBoundary.split(text)
	if len(segs) > 1 {
		return segs
	}
	trimmed := strings.TrimSpace(text)
	for _, b := range fallbackBoundaries {
		segs = b.split(trimmed)
		if len(segs) > 1 {
			return segs
		}
	}
	return fixedWidth(text, maxUnits)
}

func fixedWidth(text string, width int) []string {
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return appendTrimmed(nil, text)
	}
	out := make([]string, 0, (len(runes)+width-1)/width)
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		out = appendTrimmed(out, string(runes[start:end]))
	}
	return out
}

// Split returns the chunk texts for text, each as close to maxUnits as the segment boundaries allow.
// A chunk only exceeds maxUnits when a single segment does on its own.
func Split(text string, maxUnits int, unit Unit, counter TokenCounter) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	if unit != UnitToken || counter == nil {
		counter = CharCounter{}
	}

	chunks := []string{}
	cur := ""
	for _, seg := range Segments(text, maxUnits) {
		potential := seg
		if cur != "" {
			potential = cur + " " + seg
		}
		if cur != "" && counter.CountTokens(potential) >= maxUnits {
			chunks = append(chunks, cur)
			cur = seg
			continue
		}
		cur = potential
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// Chunks splits text and attaches indices and token counts.
func Chunks(text string, maxUnits int, unit Unit, counter TokenCounter) []Chunk {
	texts := Split(text, maxUnits, unit, counter)
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		c := Chunk{Index: i, Text: t}
		if counter != nil {
			c.TokenCount = counter.CountTokens(t)
		}
		out[i] = c
	}
	return out
}

// Package langdetect detects the language of source text with lingua.
package langdetect

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

const unknown = "unknown"

// Detector wraps a lingua detector and reports ISO 639-1 codes in lower case.
type Detector struct {
	detector lingua.LanguageDetector

	// SampleChars bounds how much of the text is inspected. 0 inspects everything.
	SampleChars int
}

// New builds a detector restricted to the given ISO 639-1 codes, or over every language lingua
// knows when codes is empty. Low accuracy mode trades short-text precision for memory, which is
// fine for document-length input.
func New(codes ...string) (*Detector, error) {
	var builder lingua.LanguageDetectorBuilder
	if len(codes) == 0 {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		langs := make([]lingua.Language, 0, len(codes))
		for _, code := range codes {
			iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(strings.TrimSpace(code)))
			if iso == lingua.UnknownIsoCode639_1 {
				return nil, fmt.Errorf("langdetect: unknown language code %q", code)
			}
			langs = append(langs, lingua.GetLanguageFromIsoCode639_1(iso))
		}
		if len(langs) < 2 {
			return nil, fmt.Errorf("langdetect: need at least 2 languages, got %d", len(langs))
		}
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	}
	return &Detector{
		detector:    builder.WithLowAccuracyMode().Build(),
		SampleChars: 2000,
	}, nil
}

// DetectLanguage returns the lower-case ISO 639-1 code of text, or "unknown".
func (d *Detector) DetectLanguage(text string) string {
	if d == nil || d.detector == nil {
		return unknown
	}
	text = strings.TrimSpace(text)
	if d.SampleChars > 0 {
		if r := []rune(text); len(r) > d.SampleChars {
			text = string(r[:d.SampleChars])
		}
	}
	if text == "" {
		return unknown
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return unknown
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

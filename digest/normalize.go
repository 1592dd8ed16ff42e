package digest

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UnknownLanguage is returned by a Detector that cannot tell the language.
const UnknownLanguage = "unknown"

// Detector guesses the ISO 639-1 code of text, or UnknownLanguage.
type Detector interface {
	DetectLanguage(text string) string
}

// Translator translates one piece of text. Implementations may limit the length they accept.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Normalizer rewrites every textual field of a document into the output language.
type Normalizer struct {
	detector   Detector
	translator Translator
	maxLen     int
	timeout    time.Duration
}

// NewNormalizer bounds each Translate call by callTimeout when it is positive.
func NewNormalizer(detector Detector, translator Translator, maxTranslateLength int, callTimeout time.Duration) *Normalizer {
	if maxTranslateLength <= 0 {
		maxTranslateLength = DefaultConfig().MaxTranslateLength
	}
	return &Normalizer{
		detector:   detector,
		translator: translator,
		maxLen:     maxTranslateLength,
		timeout:    callTimeout,
	}
}

// Detect returns the language of text, UnknownLanguage when no detector is set or it is unsure.
func (n *Normalizer) Detect(text string) string {
	if n == nil || n.detector == nil {
		return UnknownLanguage
	}
	code := strings.ToLower(strings.TrimSpace(n.detector.DetectLanguage(text)))
	if code == "" {
		return UnknownLanguage
	}
	return code
}

// ShouldTranslate reports whether a summary written from source needs translating to output.
func ShouldTranslate(source, output string) bool {
	return source != output || source == UnknownLanguage
}

// Normalize translates doc from source to output in place. On any failure doc is left exactly as
// it was and the error is returned.
func (n *Normalizer) Normalize(ctx context.Context, doc *Document, source, output string) error {
	if doc == nil {
		return nil
	}
	if n == nil || n.translator == nil {
		return fmt.Errorf("%w: no translator configured", ErrTranslation)
	}

	out := cloneDocument(*doc)
	tr := fieldTranslator{n: n, ctx: ctx, source: source, target: output}

	tr.sections(out.Sections)
	tr.list(out.FullSummary)
	tr.keywords(out.Keywords)
	out.OneSentenceSummary = tr.text(out.OneSentenceSummary)
	for i := range out.Chapters {
		ch := &out.Chapters[i]
		ch.Title = tr.text(ch.Title)
		tr.sections(ch.Sections)
		tr.keywords(ch.Keywords)
		tr.list(ch.Summary)
		ch.OneSentenceSummary = tr.text(ch.OneSentenceSummary)
	}
	if tr.err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrTranslation, tr.err)
	}
	*doc = out
	return nil
}

// fieldTranslator translates fields one by one and stops calling out after the first error.
type fieldTranslator struct {
	n              *Normalizer
	ctx            context.Context
	source, target string
	err            error
}

func (t *fieldTranslator) text(s string) string {
	if t.err != nil || strings.TrimSpace(s) == "" {
		return s
	}
	var b strings.Builder
	for _, piece := range sliceRunes(s, t.n.maxLen) {
		translated, err := t.translate(piece)
		if err != nil {
			t.err = err
			return s
		}
		b.WriteString(translated)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// translate runs one call under the per-call timeout. An expired call timeout is reported
// without context.DeadlineExceeded in its chain so callers keep the untranslated text.
func (t *fieldTranslator) translate(piece string) (string, error) {
	callCtx := t.ctx
	if t.n.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(t.ctx, t.n.timeout)
		defer cancel()
	}
	out, err := t.n.translator.Translate(callCtx, piece, t.source, t.target)
	if err != nil && t.ctx.Err() == nil && callCtx.Err() != nil {
		return "", fmt.Errorf("translate call timed out after %s", t.n.timeout)
	}
	return out, err
}

func (t *fieldTranslator) list(items []string) {
	for i := range items {
		items[i] = t.text(items[i])
	}
}

func (t *fieldTranslator) sections(secs []Section) {
	for i := range secs {
		secs[i].Title = t.text(secs[i].Title)
		t.list(secs[i].Bullets)
	}
}

func (t *fieldTranslator) keywords(kws []Keyword) {
	for i := range kws {
		kws[i].original = kws[i].Original()
		kws[i].Term = t.text(kws[i].Term)
	}
}

func cloneDocument(d Document) Document {
	out := d
	out.Summary = cloneSummary(d.Summary)
	if d.Chapters != nil {
		out.Chapters = make([]Chapter, len(d.Chapters))
		for i, ch := range d.Chapters {
			c := ch
			c.Sections = cloneSections(ch.Sections)
			c.Keywords = append([]Keyword(nil), ch.Keywords...)
			c.Summary = append([]string(nil), ch.Summary...)
			out.Chapters[i] = c
		}
	}
	return out
}

func cloneSummary(s Summary) Summary {
	return Summary{
		Sections:           cloneSections(s.Sections),
		Keywords:           append([]Keyword{}, s.Keywords...),
		FullSummary:        append([]string{}, s.FullSummary...),
		OneSentenceSummary: s.OneSentenceSummary,
	}
}

func cloneSections(in []Section) []Section {
	out := make([]Section, len(in))
	for i, s := range in {
		out[i] = Section{Title: s.Title, Bullets: append([]string{}, s.Bullets...)}
	}
	return out
}

// sliceRunes cuts s into consecutive pieces of at most n runes without trimming them.
func sliceRunes(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	out := make([]string, 0, (len(r)+n-1)/n)
	for start := 0; start < len(r); start += n {
		out = append(out, string(r[start:min(start+n, len(r))]))
	}
	return out
}

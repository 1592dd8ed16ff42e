package digest

import (
	"sort"
	"strings"
)

// Format assembles the externally visible summary from a reduced document. It never panics; an
// internal failure yields a FinalSummary with empty fields.
func Format(doc Document, sourceText string, cfg Config) (out FinalSummary) {
	defer func() {
		if r := recover(); r != nil {
			out = minimalFinalSummary(sourceText, cfg)
		}
	}()

	out = FinalSummary{
		Sections:           nonNilSections(doc.Sections),
		FullSummary:        BulletText(doc.FullSummary),
		OneSentenceSummary: strings.TrimSpace(doc.OneSentenceSummary),
		Path:               doc.Path,
	}
	if cfg.IncludeKeywords {
		top := TopKeywords(doc.Keywords, cfg.TopKeywords)
		out.Keywords = top
		out.KeywordsOriginal = make([]string, len(top))
		for i, k := range top {
			out.KeywordsOriginal[i] = k.Original()
		}
	}
	if cfg.EnableChapters {
		out.Chapters = doc.Chapters
	}
	if cfg.IncludeFullText {
		out.SourceText = sourceText
	}
	return out
}

// BulletText renders lines as a hyphen-bulleted block.
func BulletText(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "-" + strings.Join(lines, "\n-")
}

// TopKeywords returns up to n keywords ordered by count, highest first. Ties keep input order.
// n <= 0 keeps every keyword.
func TopKeywords(in []Keyword, n int) []Keyword {
	out := append([]Keyword{}, in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func minimalFinalSummary(sourceText string, cfg Config) FinalSummary {
	out := FinalSummary{Sections: []Section{}}
	if cfg.IncludeFullText {
		out.SourceText = sourceText
	}
	return out
}

func nonNilSections(in []Section) []Section {
	if in == nil {
		return []Section{}
	}
	return in
}

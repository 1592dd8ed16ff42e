package digest

// Chunk is one budget-bounded slice of the normalized source text.
type Chunk struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Keyword is a term extracted by the model. Identity is Term, compared case-sensitively.
type Keyword struct {
	Term  string `json:"term" yaml:"term"`
	Count int    `json:"count" yaml:"count"`

	// original is the term before language normalization rewrote it.
	original string
}

// Original returns the term as extracted, before any translation.
func (k Keyword) Original() string {
	if k.original != "" {
		return k.original
	}
	return k.Term
}

// Section is a titled bullet list, the atomic unit of the structured output.
type Section struct {
	Title string `json:"title" yaml:"title"`

	// Bullets are short statements; the model-facing key is "summary".
	Bullets []string `json:"summary" yaml:"summary"`
}

// SectionRange is a half-open [Start, End) interval into the global section sequence.
type SectionRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of sections covered by the range.
func (r SectionRange) Len() int { return r.End - r.Start }

// Chapter groups the sections produced from a contiguous run of chunks.
type Chapter struct {
	Number       int          `json:"chapter_number" yaml:"chapter_number"`
	Title        string       `json:"chapter_title" yaml:"chapter_title"`
	SectionRange SectionRange `json:"section_indices" yaml:"section_indices"`
	Sections     []Section    `json:"sections" yaml:"sections"`
	Keywords     []Keyword    `json:"keywords" yaml:"keywords"`

	// Summary and OneSentenceSummary hold whatever the chapter digest call produced beyond
	// sections and keywords. Usually empty for the section shape.
	Summary            []string `json:"summary,omitempty" yaml:"summary,omitempty"`
	OneSentenceSummary string   `json:"one_sentence_summary,omitempty" yaml:"one_sentence_summary,omitempty"`
}

// Summary is the typed result of one level call.
type Summary struct {
	Sections           []Section `json:"sections"`
	Keywords           []Keyword `json:"keywords"`
	FullSummary        []string  `json:"full_summary"`
	OneSentenceSummary string    `json:"one_sentence_summary"`
}

// Document is the fully reduced summary of one input, before formatting.
type Document struct {
	Summary
	Chapters []Chapter
	Path     Path
}

// Path records which reduction branch produced a Document.
type Path string

const (
	PathDirect    Path = "direct"
	PathSectioned Path = "sectioned"
	PathChaptered Path = "chaptered"
)

// FinalSummary is the externally visible result.
type FinalSummary struct {
	Sections           []Section `json:"sections" yaml:"sections"`
	FullSummary        string    `json:"full_summary" yaml:"full_summary"`
	OneSentenceSummary string    `json:"one_sentence_summary" yaml:"one_sentence_summary"`
	Keywords           []Keyword `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	KeywordsOriginal   []string  `json:"keywords_original,omitempty" yaml:"keywords_original,omitempty"`
	Chapters           []Chapter `json:"chapters,omitempty" yaml:"chapters,omitempty"`
	SourceText         string    `json:"text,omitempty" yaml:"text,omitempty"`
	SourceLanguage     string    `json:"source_language,omitempty" yaml:"source_language,omitempty"`
	Path               Path      `json:"path,omitempty" yaml:"path,omitempty"`
}

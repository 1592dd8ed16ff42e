package digest

import (
	"fmt"
	"strings"
)

const baseSystemPrompt = "You are a helpful assistant that creates summaries in JSON format. " +
	"Follow these rules strictly: Use clear language. Avoid redundancy while keeping key details. " +
	"Ensure each section summary is self-contained and informative. "

var shapeGuidance = map[Shape]string{
	ShapeSection: "Split the text into 2-3 sections by meaning. Give each section a title of 5-10 characters " +
		"and 2-3 bullet points of its core content.",
	ShapeFinal: "Write 3-5 sentences covering the core of the whole text, organized around the main themes, " +
		"and keep the summary flowing logically.",
	ShapeFull: "Include both the per-section summaries and the overall summary. Keep the connections between " +
		"sections and the overall context, and balance detail with the big picture.",
}

var contentTypeGuidance = map[string]string{
	"youtube": "This is a video transcript: leave out on-screen descriptions, rewrite spoken style as written " +
		"style, and drop greetings and subscription requests.",
	"article": "This is an article: distinguish objective facts from opinions, keep quotes and statistics " +
		"accurate, and reflect the article's stance.",
}

var languageNames = map[string]string{
	"ko": "Korean",
	"en": "English",
	"ja": "Japanese",
	"zh": "Chinese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
}

// LanguageName returns the English name for an ISO 639-1 code. Unknown codes read as English.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return "English"
}

// SystemPrompt is the instruction text for one level call.
func SystemPrompt(cfg Config, shape Shape) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	if g, ok := shapeGuidance[shape]; ok {
		b.WriteString(g)
		b.WriteString(" ")
	}
	if g, ok := contentTypeGuidance[strings.ToLower(cfg.ContentType)]; ok {
		b.WriteString(g)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "Respond in %s, maintain consistency in formatting throughout the response.", LanguageName(cfg.OutputLanguage))
	return b.String()
}

// TitledPrompt prefixes text with the document title, the form used for document-level calls.
func TitledPrompt(title, text string) string {
	return fmt.Sprintf("Title: %s/ %s", title, text)
}

package digest

import (
	"regexp"
	"strings"
)

// SubtitleSegment is one caption entry of a transcript.
type SubtitleSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// PreprocessOptions toggles the optional cleanups. Whitespace is always collapsed.
type PreprocessOptions struct {
	RemoveSpecialChars bool
	ToLowercase        bool
	RemoveNumbers      bool
}

var (
	bracketTag     = regexp.MustCompile(`\[.*?\]`)
	parenTag       = regexp.MustCompile(`\(.*?\)`)
	specialChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	decimalNumbers = regexp.MustCompile(`\p{Nd}+`)
)

// Preprocess normalizes text before chunking.
func Preprocess(text string, opt PreprocessOptions) string {
	text = strings.Join(strings.Fields(text), " ")
	if opt.RemoveSpecialChars {
		text = specialChars.ReplaceAllString(text, "")
	}
	if opt.ToLowercase {
		text = strings.ToLower(text)
	}
	if opt.RemoveNumbers {
		text = decimalNumbers.ReplaceAllString(text, "")
	}
	return text
}

// JoinSubtitles flattens caption segments into prose. Tags such as [Music] or (applause) are
// dropped when cleanTags is set, and every segment is terminated so the chunker can find sentence
// boundaries.
func JoinSubtitles(segs []SubtitleSegment, cleanTags bool) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		t := strings.TrimSpace(seg.Text)
		if cleanTags {
			t = bracketTag.ReplaceAllString(t, "")
			t = parenTag.ReplaceAllString(t, "")
			t = strings.TrimSpace(t)
		}
		if t == "" {
			continue
		}
		if !strings.ContainsAny(t[len(t)-1:], ".!?") {
			t += "."
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

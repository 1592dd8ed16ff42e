package digest

import (
	"strconv"
	"strings"
)

// Merge concatenates the sections of summaries in order, dedupes their keywords, and renders the
// digest text fed to the next reduction level. Section numbers in the digest restart at 1 for each
// input summary.
func Merge(summaries []Summary) (string, Summary) {
	merged := EmptySummary()
	var digest strings.Builder
	var keywords []Keyword

	for _, s := range summaries {
		for i, sec := range s.Sections {
			digest.WriteString(strconv.Itoa(i + 1))
			digest.WriteString(". ")
			digest.WriteString(sec.Title)
			digest.WriteString(": ")
			digest.WriteString(strings.Join(sec.Bullets, " "))
			digest.WriteString(" ")
			merged.Sections = append(merged.Sections, sec)
		}
		keywords = append(keywords, s.Keywords...)
	}
	merged.Keywords = DedupKeywords(keywords)
	return digest.String(), merged
}

// DedupKeywords keeps one keyword per term. A later keyword replaces an earlier one with the same
// term but takes the earlier one's position.
func DedupKeywords(in []Keyword) []Keyword {
	out := make([]Keyword, 0, len(in))
	pos := make(map[string]int, len(in))
	for _, k := range in {
		if i, ok := pos[k.Term]; ok {
			out[i] = k
			continue
		}
		pos[k.Term] = len(out)
		out = append(out, k)
	}
	return out
}

// ChapterRanges assigns each chapter a contiguous [start, end) range over the global section
// sequence, given how many sections each chapter contributed.
func ChapterRanges(sectionCounts []int) []SectionRange {
	out := make([]SectionRange, len(sectionCounts))
	total := 0
	for i, n := range sectionCounts {
		out[i] = SectionRange{Start: total, End: total + n}
		total += n
	}
	return out
}

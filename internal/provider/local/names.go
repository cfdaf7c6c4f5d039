package local

import (
	"strings"
	"unicode"
)

const trimSeparators = ".-_ "

var separatorReplacer = strings.NewReplacer(".", " ", "-", " ", "_", " ")

// splitTitleYear turns a release style name into a readable title and the
// first year it carries. Everything from the year on is dropped, as are
// encoding tags.
func splitTitleYear(raw string) (string, string) {
	title, year := raw, ""
	if m := yearRangeRe.FindStringSubmatch(raw); len(m) > 1 {
		year = m[1]
		if i := strings.Index(raw, year); i >= 0 {
			title = strings.TrimRight(raw[:i], " ([{-_")
		}
	}
	title = encodingTagsRe.ReplaceAllString(separatorReplacer.Replace(title), "")
	return strings.Join(strings.Fields(title), " "), year
}

// titleBeforeMarker reads a series title from the part of name in front of
// its season or episode marker. Season folders without a leading title give
// nothing back so callers keep climbing the tree.
func titleBeforeMarker(name string) (string, string) {
	if i := FindSeasonEpisodeIndex(name); i > 0 {
		if title, year := splitTitleYear(strings.TrimRight(name[:i], trimSeparators)); title != "" {
			return title, year
		}
	}
	if _, ok := ExtractSeasonNumber(name); ok {
		if i := seasonWordIndex(name); i > 0 {
			if title, year := splitTitleYear(strings.TrimRight(name[:i], trimSeparators)); title != "" {
				return title, year
			}
		}
		return "", ""
	}
	return splitTitleYear(name)
}

// seasonWordIndex returns where a "Season" or "S" marker followed by a digit
// or a space starts, or -1. Markers glued to a preceding letter do not count.
func seasonWordIndex(s string) int {
	best := -1
	for _, word := range []string{"Season", "season", "SEASON", "S", "s"} {
		i := strings.Index(s, word)
		if i <= 0 || (best != -1 && i >= best) || unicode.IsLetter(rune(s[i-1])) {
			continue
		}
		rest := s[i+len(word):]
		if rest != "" && (unicode.IsDigit(rune(rest[0])) || unicode.IsSpace(rune(rest[0]))) {
			best = i
		}
	}
	return best
}

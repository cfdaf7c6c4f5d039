package organize

import (
	"strings"
	"unicode"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// comparableName reduces a title to lower case words without diacritics or
// punctuation so "Marvel's Agents of S.H.I.E.L.D." and
// "marvels agents of s h i e l d" compare equal.
func comparableName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	stripped = cases.Fold().String(stripped)
	stripped = strings.ReplaceAll(stripped, "&", " and ")
	stripped = strings.ReplaceAll(stripped, "'", "")
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// matchScore rates how well series matches name and year. Zero means no
// match. A matching name scores 1, a matching year adds 1, and a year that
// differs rules the series out.
func matchScore(name string, year int, series catalog.Series) int {
	seriesName, seriesYear := series.Name, series.Year
	if stripped, embedded := local.ParseName(seriesName); stripped != "" && embedded > 0 {
		seriesName = stripped
		if seriesYear == 0 {
			seriesYear = embedded
		}
	}

	if comparableName(seriesName) != comparableName(name) {
		return 0
	}

	score := 1
	if year > 0 && seriesYear > 0 {
		if year != seriesYear {
			return 0
		}
		score++
	}
	return score
}

package organize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrEmptyPattern is returned when the configured episode pattern is blank.
var ErrEmptyPattern = errors.New("Configured episode name pattern is empty")

// rule replaces every occurrence of token with value. Rules are applied in
// list order, so a longer token must come before any shorter token it
// contains.
type rule struct {
	token string
	value string
}

func applyRules(s string, rules []rule) string {
	for _, r := range rules {
		s = strings.ReplaceAll(s, r.token, r.value)
	}
	return s
}

// Title placeholders stand in for the episode title until every structural
// token is expanded, so titles containing "%s" or "%e" stay literal.
const (
	titlePlaceholder            = "%#1"
	dottedTitlePlaceholder      = "%#2"
	underscoredTitlePlaceholder = "%#3"
)

// Renderer expands naming patterns. Sanitize cleans a single path element;
// it returns "" when nothing usable remains.
type Renderer struct {
	Sanitize func(name string) string
}

// SeriesFolderValues are the inputs of a series folder pattern.
type SeriesFolderValues struct {
	Name string
	Year int
}

// EpisodeFileValues are the inputs of an episode file name pattern.
type EpisodeFileValues struct {
	SourcePath    string
	SeriesName    string
	Season        int
	Episode       int
	EndingEpisode *int
	Title         string
}

func (r Renderer) clean(name string) string {
	if r.Sanitize == nil {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(r.Sanitize(name))
}

// cleanPath sanitizes each element of a rendered pattern, keeping the
// separators the pattern itself introduced.
func (r Renderer) cleanPath(rendered string) string {
	parts := strings.Split(filepath.ToSlash(rendered), "/")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if c := r.clean(part); c != "" {
			kept = append(kept, c)
		}
	}
	return filepath.Join(kept...)
}

// SeriesFolder renders the folder name of a new series. %sn, %s.n and %s_n
// are the name as is, dotted and underscored; %sy is the year and %fn is
// "Name (Year)".
func (r Renderer) SeriesFolder(pattern string, v SeriesFolderValues) string {
	name := r.clean(v.Name)
	year := ""
	fullName := name
	if v.Year > 0 {
		year = strconv.Itoa(v.Year)
		fullName = fmt.Sprintf("%s (%d)", name, v.Year)
	}

	return r.clean(applyRules(pattern, []rule{
		{"%sn", name},
		{"%s.n", strings.ReplaceAll(name, " ", ".")},
		{"%s_n", strings.ReplaceAll(name, " ", "_")},
		{"%sy", year},
		{"%fn", fullName},
	}))
}

// SeasonFolder renders a season folder name from %s, %0s and %00s.
func (r Renderer) SeasonFolder(pattern string, season int) string {
	return r.clean(applyRules(pattern, seasonRules(season)))
}

func seasonRules(season int) []rule {
	return []rule{
		{"%s", strconv.Itoa(season)},
		{"%0s", fmt.Sprintf("%02d", season)},
		{"%00s", fmt.Sprintf("%03d", season)},
	}
}

// EpisodeFile renders an episode file name. The multi-episode pattern is
// used when an ending episode is present. The result may contain path
// separators when the pattern does.
func (r Renderer) EpisodeFile(singlePattern, multiPattern string, v EpisodeFileValues) (string, error) {
	pattern := singlePattern
	if v.EndingEpisode != nil {
		pattern = multiPattern
	}
	if strings.TrimSpace(pattern) == "" {
		return "", ErrEmptyPattern
	}

	seriesName := r.clean(v.SeriesName)
	title := ""
	if strings.TrimSpace(v.Title) != "" {
		title = r.clean(v.Title)
	}
	base := filepath.Base(v.SourcePath)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	baseName := strings.TrimSuffix(base, filepath.Ext(base))

	rules := []rule{
		{"%sn", seriesName},
		{"%s.n", strings.ReplaceAll(seriesName, " ", ".")},
		{"%s_n", strings.ReplaceAll(seriesName, " ", "_")},
	}
	rules = append(rules, seasonRules(v.Season)...)
	rules = append(rules,
		rule{"%ext", ext},
		rule{"%en", titlePlaceholder},
		rule{"%e.n", dottedTitlePlaceholder},
		rule{"%e_n", underscoredTitlePlaceholder},
		rule{"%fn", baseName},
	)
	if v.EndingEpisode != nil {
		end := *v.EndingEpisode
		rules = append(rules,
			rule{"%ed", strconv.Itoa(end)},
			rule{"%0ed", fmt.Sprintf("%02d", end)},
			rule{"%00ed", fmt.Sprintf("%03d", end)},
		)
	}
	rules = append(rules,
		rule{"%e", strconv.Itoa(v.Episode)},
		rule{"%0e", fmt.Sprintf("%02d", v.Episode)},
		rule{"%00e", fmt.Sprintf("%03d", v.Episode)},
		rule{titlePlaceholder, title},
		rule{dottedTitlePlaceholder, strings.ReplaceAll(title, " ", ".")},
		rule{underscoredTitlePlaceholder, strings.ReplaceAll(title, " ", "_")},
	)

	return r.cleanPath(applyRules(pattern, rules)), nil
}

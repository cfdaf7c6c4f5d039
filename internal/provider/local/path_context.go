package local

import (
	"strconv"
	"strings"

	"github.com/Digital-Shane/treeview"
)

// pathContext is an episode file name together with the folders above it,
// nearest first.
type pathContext struct {
	name    string
	stem    string
	folders []string
}

func contextFromNode(node *treeview.Node[treeview.FileInfo]) pathContext {
	name := node.Name()
	pc := pathContext{name: name, stem: strings.TrimSuffix(name, ExtractExtension(name))}
	for p := node.Parent(); p != nil && len(pc.folders) < parentDepth; p = p.Parent() {
		pc.folders = append(pc.folders, p.Name())
	}
	return pc
}

// seriesTitle uses the file name when a title precedes its season/episode
// marker and otherwise the nearest folder that names a series.
func (pc pathContext) seriesTitle() (string, string) {
	if FindSeasonEpisodeIndex(pc.stem) > 0 {
		if title, year := titleBeforeMarker(pc.stem); title != "" {
			return title, year
		}
	}
	return pc.titleFromFolders()
}

func (pc pathContext) titleFromFolders() (string, string) {
	for _, folder := range pc.folders {
		if title, year := titleBeforeMarker(folder); title != "" {
			return title, year
		}
	}
	return "", ""
}

// seasonEpisode extracts season and episode numbers. A bare episode number
// takes its season from a season folder; without one the season is -1 and
// only names that clearly announce an episode are accepted.
func (pc pathContext) seasonEpisode() (int, int, bool) {
	candidates := []string{pc.stem}
	if pc.name != pc.stem {
		candidates = append(candidates, pc.name)
	}

	for _, s := range candidates {
		if season, episode, ok := seasonEpisodeFromString(s); ok {
			return season, episode, true
		}
	}

	episode, ok := 0, false
	for _, s := range candidates {
		if episode, ok = firstIntFromRegexps(s, episodeNumberRe); ok {
			break
		}
	}
	if !ok {
		return 0, 0, false
	}

	for _, folder := range pc.folders {
		if season, found := ExtractSeasonNumber(folder); found {
			return season, episode, true
		}
	}

	lower := strings.ToLower(pc.stem)
	if episode > 0 && (strings.HasPrefix(lower, "e") || strings.Contains(lower, "episode")) {
		return -1, episode, true
	}
	return 0, 0, false
}

// seasonEpisodeFromString matches S01E02 and 1x02 forms first. 1.04 style
// numbers are only read when no explicit marker is present, so audio tags
// like 5.1 never win.
func seasonEpisodeFromString(input string) (int, int, bool) {
	if m := seasonEpisodeRe.FindStringSubmatch(input); len(m) >= 3 {
		season, err1 := strconv.Atoi(m[1])
		episode, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return season, episode, true
		}
	}
	if m := dottedSeasonEpisodeRe.FindStringSubmatch(input); len(m) >= 3 {
		season, err1 := strconv.Atoi(m[1])
		episode, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil && season > 0 && season <= 100 && episode > 0 && episode <= 300 {
			return season, episode, true
		}
	}
	return 0, 0, false
}

// multiEpisodeFromString extracts season, first and last episode from names
// such as S01E01E02, S01E01-E02, S01E01-02 and 1x01-02.
func multiEpisodeFromString(input string) (season, episode, ending int, ok bool) {
	for _, re := range multiEpisodePatterns {
		m := re.FindStringSubmatch(input)
		if len(m) < 4 {
			continue
		}
		s, err1 := strconv.Atoi(m[1])
		e, err2 := strconv.Atoi(m[2])
		end, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil || end <= e {
			continue
		}
		return s, e, end, true
	}
	return 0, 0, 0, false
}

package local

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/treeview"
)

// parentDepth is how many ancestor folders take part in parsing.
const parentDepth = 3

// EpisodePathInfo is the identity extracted from an episode file path.
// Season, Episode and EndingEpisode are nil when the name does not carry
// them. Date based names set IsByDate and the Year/Month/Day air date.
type EpisodePathInfo struct {
	SeriesName    string
	Season        *int
	Episode       *int
	EndingEpisode *int
	IsByDate      bool
	Year          int
	Month         int
	Day           int
}

// AirDate returns the parsed air date for date based names.
func (i EpisodePathInfo) AirDate() *time.Time {
	if !i.IsByDate {
		return nil
	}
	t := time.Date(i.Year, time.Month(i.Month), i.Day, 0, 0, 0, 0, time.UTC)
	return &t
}

// HasEpisode reports whether the name identifies an episode either by
// number or by air date.
func (i EpisodePathInfo) HasEpisode() bool {
	return i.IsByDate || (i.Season != nil && i.Episode != nil)
}

// ParseEpisodePath extracts series name, season, episode(s) and air date from
// a file path. Up to three parent folders are consulted for the series name
// and season when the file name lacks them. When the series name carries a
// year it is kept in the form "Name (Year)".
func ParseEpisodePath(path string) EpisodePathInfo {
	pc := contextFromNode(pathNode(path))
	stem := pc.stem

	var info EpisodePathInfo

	if m := airDateRe.FindStringSubmatchIndex(stem); m != nil {
		year, _ := strconv.Atoi(stem[m[2]:m[3]])
		month, _ := strconv.Atoi(stem[m[4]:m[5]])
		day, _ := strconv.Atoi(stem[m[6]:m[7]])
		if validDate(year, month, day) {
			info.IsByDate = true
			info.Year, info.Month, info.Day = year, month, day
			name, nameYear := splitTitleYear(strings.TrimRight(stem[:m[2]], trimSeparators))
			if name == "" {
				name, nameYear = pc.titleFromFolders()
			}
			info.SeriesName = withYear(name, nameYear)
			return info
		}
	}

	if season, episode, ending, ok := multiEpisodeFromString(stem); ok {
		info.Season, info.Episode, info.EndingEpisode = &season, &episode, &ending
	} else if season, episode, ok := pc.seasonEpisode(); ok {
		info.Episode = &episode
		if season >= 0 {
			info.Season = &season
		}
	}

	info.SeriesName = withYear(pc.seriesTitle())
	return info
}

// ParseName splits a series name into its title and an embedded year. The
// year is 0 when none is present.
func ParseName(name string) (string, int) {
	title, year := splitTitleYear(name)
	y, err := strconv.Atoi(year)
	if err != nil {
		return title, 0
	}
	return title, y
}

func withYear(name, year string) string {
	if name == "" || year == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, year)
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day
}

// pathNode builds a treeview chain for the file and its closest parents.
func pathNode(path string) *treeview.Node[treeview.FileInfo] {
	clean := filepath.Clean(path)
	file := newPathNode(filepath.Base(clean), clean, false)

	child := file
	dir := filepath.Dir(clean)
	for depth := 0; depth < parentDepth; depth++ {
		name := filepath.Base(dir)
		if name == "" || name == "." || name == string(filepath.Separator) || dir == filepath.Dir(dir) {
			break
		}
		parent := newPathNode(name, dir, true)
		parent.AddChild(child)
		child = parent
		dir = filepath.Dir(dir)
	}
	return file
}

func newPathNode(name, path string, isDir bool) *treeview.Node[treeview.FileInfo] {
	return treeview.NewNodeSimple(name, treeview.FileInfo{
		FileInfo: pathInfo{name: name, dir: isDir},
		Path:     path,
	})
}

// pathInfo is the fs.FileInfo of a path that is parsed without touching disk.
type pathInfo struct {
	name string
	dir  bool
}

func (p pathInfo) Name() string { return p.name }
func (p pathInfo) Size() int64  { return 0 }
func (p pathInfo) Mode() fs.FileMode {
	if p.dir {
		return fs.ModeDir
	}
	return 0
}
func (p pathInfo) ModTime() time.Time { return time.Time{} }
func (p pathInfo) IsDir() bool        { return p.dir }
func (p pathInfo) Sys() any           { return nil }

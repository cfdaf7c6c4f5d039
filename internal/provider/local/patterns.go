package local

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Season folders and markers.
	seasonRe    = regexp.MustCompile(`(?i)\b(?:s|season)\.? *(\d+)\b`)
	seasonAltRe = regexp.MustCompile(`(?i)(?:^|[\s\.\-_])(?:s|season)[\s\.\-_]+(\d+)`)

	// S01E02, 1x02 and 1.02 forms plus bare episode numbers.
	seasonEpisodeRe       = regexp.MustCompile(`(?i)[sx]?(\d+)[ex](\d+)`)
	dottedSeasonEpisodeRe = regexp.MustCompile(`(?i)(?:^|[\s_\-\.])([0-9]{1,2})[\. _-]([0-9]{1,2})(?:[^0-9]|$)`)
	episodeNumberRe       = regexp.MustCompile(`(?:^|[\s\.\-_]|[Ee])(\d+)(?:[\s\.\-_]|$)`)

	videoRe    = regexp.MustCompile(`(?i)\.(mp4|mkv|avi|mov|wmv|flv|webm|mpeg|mpg|m4v|3gp|vob|ts|mts|m2ts|rmvb|divx)$`)
	subtitleRe = regexp.MustCompile(`(?i)\.(srt|sub|idx|ass|ssa|smi|vtt|sbv|sami|usf|stl|dks|pjs|jss|psb|rt|scc|cap|sup|dfxp|ttml)$`)

	// Language code in front of a subtitle extension, as in .en.srt.
	langPattern = regexp.MustCompile(`(\.[a-zA-Z]{2,3}(?:[-_][a-zA-Z]{2,4})?)$`)

	// A year, optionally followed by an end year.
	yearRangeRe = regexp.MustCompile(`(?:^|[^\d])((19|20)\d{2})(?:[\s\-–—]+(?:19|20)\d{2})?(?:[^\d]|$)`)

	encodingTagsRe = regexp.MustCompile(`(?i)\b(?:HD|HDR|DV|x265|x264|H\.?264|H\.?265|HEVC|AVC|AAC|AC3|DD|DTS|FLAC|MP3|WEB-?DL|BluRay|BDRip|DVDRip|HDTV|720p|1080p|2160p|4K|UHD|SDR|10bit|8bit|PROPER|REPACK|iNTERNAL|LiMiTED|UNRATED|EXTENDED|DiRECTORS?\.?CUT|THEATRICAL|COMPLETE|SEASON|SERIES|MULTI|DUAL|DUBBED|SUBBED|SUB|RETAIL|WS|FS|NTSC|PAL|R[1-6]|UNCUT|UNCENSORED)\b`)

	// Multi-episode patterns. Go keeps the last iteration of a repeated group,
	// so the final capture is the ending episode.
	multiEpisodeRe  = regexp.MustCompile(`(?i)s(\d{1,3})[ ._]?e(\d{1,4})(?:[ ._]?-?[ ._]?e(\d{1,4}))+`)
	rangeEpisodeRe  = regexp.MustCompile(`(?i)s(\d{1,3})[ ._]?e(\d{1,4})-(\d{1,4})(?:[^\da-z]|$)`)
	xMultiEpisodeRe = regexp.MustCompile(`(?i)(?:^|[^\d])(\d{1,2})x(\d{2,3})(?:-x?(\d{2,3}))+(?:[^\d]|$)`)

	// Air date: 2019.05.21, 2019-05-21, 2019_05_21, 2019 05 21
	airDateRe = regexp.MustCompile(`(?:^|[^\d])((?:19|20)\d{2})[\. _-](\d{2})[\. _-](\d{2})(?:[^\d]|$)`)

	// A folder named by its season number alone.
	simpleNumberRe = regexp.MustCompile(`^(\d+)|[\s\.\-_](\d+)(?:[\s\.\-_]|$)`)

	multiEpisodePatterns = []*regexp.Regexp{multiEpisodeRe, rangeEpisodeRe, xMultiEpisodeRe}

	// Where the season/episode part of a name starts.
	seasonEpisodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[sx]?\d+[ex]\d+`),                // S01E01, 1x01, s1e1
		regexp.MustCompile(`(?i)[\s._-](?:s|season)[\s._-]*\d+`), // _Season_02, .Season.02
		regexp.MustCompile(`(?i)^(?:s|season)[\s._-]*\d+`),       // Season at start
		regexp.MustCompile(`\b\d{1,2}[\. _-]\d{1,2}\b`),          // Dotted format: 1.04
		regexp.MustCompile(`(?i)^[eE]\d+`),                       // Episode at start: E01
		regexp.MustCompile(`(?i)^Episode[\s._-]*\d+`),            // Episode at start
	}
)

// IsVideo reports whether filename has a video extension.
func IsVideo(filename string) bool {
	return videoRe.MatchString(filename)
}

// IsSubtitle reports whether filename has a subtitle extension.
func IsSubtitle(filename string) bool {
	return subtitleRe.MatchString(filename)
}

// IsSample reports whether a name marks a release sample.
func IsSample(name string) bool {
	return strings.Contains(strings.ToLower(name), "sample")
}

// ExtractExtension returns the extension of filename. Subtitles keep their
// language code, so "Show.S01E01.en.srt" yields ".en.srt".
func ExtractExtension(filename string) string {
	if loc := subtitleRe.FindStringIndex(filename); loc != nil {
		return langPattern.FindString(filename[:loc[0]]) + filename[loc[0]:]
	}
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}

// ExtractSeasonNumber reads a season number from a folder or file name.
// Season 0 holds specials. A bare number only counts when it is the whole
// name and does not look like a year.
func ExtractSeasonNumber(input string) (int, bool) {
	if num, ok := firstIntFromRegexps(input, seasonRe, seasonAltRe); ok && num >= 0 {
		return num, true
	}

	m := simpleNumberRe.FindStringSubmatch(input)
	trimmed := strings.TrimSpace(input)
	for _, group := range m[min(1, len(m)):] {
		if group == "" || group != trimmed {
			continue
		}
		num, err := strconv.Atoi(group)
		if err != nil || (num >= 1900 && num <= 2100) {
			continue
		}
		if num <= 100 {
			return num, true
		}
	}
	return 0, false
}

// FindSeasonEpisodeIndex returns where the season or episode part of a name
// starts, or -1.
func FindSeasonEpisodeIndex(filename string) int {
	best := -1
	for _, re := range seasonEpisodePatterns {
		if loc := re.FindStringIndex(filename); loc != nil && (best == -1 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

// firstIntFromRegexps returns the first numeric capture of the first
// matching expression.
func firstIntFromRegexps(input string, regexps ...*regexp.Regexp) (int, bool) {
	for _, re := range regexps {
		m := re.FindStringSubmatch(input)
		for _, group := range m[min(1, len(m)):] {
			if group == "" {
				continue
			}
			if n, err := strconv.Atoi(group); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

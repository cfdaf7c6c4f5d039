package organize

import (
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/rs/zerolog"
)

// DuplicateLocator finds other files that already hold an episode.
type DuplicateLocator struct {
	catalog Catalog
	fs      FileSystem
	log     zerolog.Logger
}

// NewDuplicateLocator returns a locator.
func NewDuplicateLocator(cat Catalog, fs FileSystem, log zerolog.Logger) *DuplicateLocator {
	return &DuplicateLocator{catalog: cat, fs: fs, log: log.With().Str("component", "duplicates").Logger()}
}

// Find returns the on-disk episodes of series with the same season, episode
// and ending episode, plus videos in the target folder sharing the target's
// base name. The target itself is never included and paths are unique
// ignoring case. Date based episodes (no season or episode) have none.
func (d *DuplicateLocator) Find(targetPath string, series catalog.Series, season, episode, ending *int) []string {
	if season == nil || episode == nil {
		return []string{}
	}

	var paths []string
	for _, ep := range d.catalog.EpisodesOf(series.ID) {
		if ep.Location != catalog.LocationFileSystem {
			continue
		}
		if ep.Season == nil || *ep.Season != *season || ep.Index == nil || *ep.Index != *episode {
			continue
		}
		if ending != nil || ep.IndexEnd != nil {
			if ending == nil || ep.IndexEnd == nil || *ending != *ep.IndexEnd {
				continue
			}
		}
		paths = append(paths, ep.Path)
	}

	folder := filepath.Dir(targetPath)
	targetBase := baseName(targetPath)
	files, err := d.fs.ListFiles(folder)
	if err != nil {
		d.log.Debug().Err(err).Str("folder", folder).Msg("target folder not readable")
	}
	for _, file := range files {
		if local.IsVideo(file) && strings.EqualFold(baseName(file), targetBase) {
			paths = append(paths, file)
		}
	}

	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if strings.EqualFold(path, targetPath) {
			continue
		}
		key := strings.ToLower(path)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}
	return out
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

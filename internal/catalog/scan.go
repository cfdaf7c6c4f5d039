package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/Digital-Shane/treeview"
)

const traversalCap = 2000000

type treeBuilderFunc func(context.Context, string, bool, ...treeview.Option[treeview.FileInfo]) (*treeview.Tree[treeview.FileInfo], error)

var buildTree treeBuilderFunc = treeview.NewTreeFromFileSystem

// mediaFilter keeps directories and video files, skipping samples and macOS
// artifacts.
func mediaFilter(fi treeview.FileInfo) bool {
	name := fi.Name()
	if name == ".DS_Store" || strings.HasPrefix(name, "._") {
		return false
	}
	if fi.IsDir() {
		return true
	}
	return local.IsVideo(name) && !local.IsSample(name)
}

// seriesContents accumulates what a scan finds inside one series folder.
type seriesContents struct {
	seasons  map[int]Season
	episodes []Episode
}

func newSeriesContents() *seriesContents {
	return &seriesContents{seasons: make(map[int]Season)}
}

// add records node, found depth levels below the series folder.
func (sc *seriesContents) add(seriesID string, node *treeview.Node[treeview.FileInfo], depth int) {
	data := node.Data()
	if data.IsDir() {
		if depth != 0 {
			return
		}
		if index, ok := local.ExtractSeasonNumber(node.Name()); ok {
			sc.seasons[index] = Season{SeriesID: seriesID, Index: index, Path: data.Path, Location: LocationFileSystem}
		}
		return
	}

	info := local.ParseEpisodePath(data.Path)
	ep := Episode{
		SeriesID: seriesID,
		Path:     data.Path,
		Season:   info.Season,
		Index:    info.Episode,
		IndexEnd: info.EndingEpisode,
		Location: LocationFileSystem,
	}
	sc.episodes = append(sc.episodes, ep)

	if ep.Season != nil {
		if _, ok := sc.seasons[*ep.Season]; !ok {
			sc.seasons[*ep.Season] = Season{SeriesID: seriesID, Index: *ep.Season, Location: LocationVirtual}
		}
	}
}

func (sc *seriesContents) sortedSeasons() []Season {
	out := make([]Season, 0, len(sc.seasons))
	for _, s := range sc.seasons {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (sc *seriesContents) sortedEpisodes() []Episode {
	out := append([]Episode(nil), sc.episodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Scan rebuilds the catalog from the library roots. Roots that do not exist
// are skipped with a warning.
func (c *Catalog) Scan(ctx context.Context) error {
	known, err := c.persisted(ctx)
	if err != nil {
		return err
	}

	found := make(map[string]Series)
	contents := make(map[string]*seriesContents)

	for _, root := range c.roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			c.log.Warn().Str("root", root).Msg("library root is not a directory, skipping")
			continue
		}

		tree, err := c.tree(ctx, root, c.maxDepth)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", root, err)
		}

		// The root sits at depth 0, series folders at 1 and their contents below.
		for ni := range tree.BreadthFirst(ctx) {
			switch {
			case ni.Depth == 0:
				continue
			case ni.Depth == 1:
				if !ni.Node.Data().IsDir() {
					continue
				}
				s := seriesFromFolder(ni.Node.Data().Path, known)
				found[s.ID] = s
				contents[s.ID] = newSeriesContents()
				continue
			}
			id := SeriesID(seriesAncestor(ni.Node).Data().Path)
			sc, ok := contents[id]
			if !ok {
				continue
			}
			sc.add(id, ni.Node, ni.Depth-2)
		}
	}

	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	var stale []string
	c.series.Range(func(id string, _ Series) bool {
		if _, ok := found[id]; !ok {
			stale = append(stale, id)
		}
		return false
	})
	for _, id := range stale {
		c.series.Delete(id)
		c.seasons.Delete(id)
		c.episodes.Delete(id)
	}

	episodeCount := 0
	for id, s := range found {
		c.series.Store(id, s)
		c.seasons.Store(id, contents[id].sortedSeasons())
		c.episodes.Store(id, contents[id].sortedEpisodes())
		episodeCount += len(contents[id].episodes)
	}

	c.log.Info().Int("series", len(found)).Int("episodes", episodeCount).Msg("library scan complete")
	return nil
}

// RefreshMetadata rescans the folder of series and replaces its seasons and
// episodes.
func (c *Catalog) RefreshMetadata(ctx context.Context, series Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(series.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("series folder %s is not available", series.Path)
	}

	id := SeriesID(series.Path)
	sc := newSeriesContents()
	if c.maxDepth > 1 {
		tree, err := c.tree(ctx, series.Path, c.maxDepth-1)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", series.Path, err)
		}
		for ni := range tree.BreadthFirst(ctx) {
			if ni.Depth == 0 {
				continue
			}
			sc.add(id, ni.Node, ni.Depth-1)
		}
	}

	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if _, ok := c.series.Load(id); !ok {
		series.ID = id
		c.series.Store(id, cloneSeries(series))
	}
	c.seasons.Store(id, sc.sortedSeasons())
	c.episodes.Store(id, sc.sortedEpisodes())

	c.log.Debug().Str("series", series.Name).Int("episodes", len(sc.episodes)).Msg("series refreshed")
	return nil
}

// RefreshPath rescans the series that contains path. Paths outside every
// known series are ignored.
func (c *Catalog) RefreshPath(ctx context.Context, path string) {
	clean := filepath.Clean(path)
	var match Series
	c.series.Range(func(_ string, s Series) bool {
		if clean == s.Path || isUnder(clean, s.Path) {
			if len(s.Path) > len(match.Path) {
				match = s
			}
		}
		return false
	})
	if match.ID == "" {
		return
	}
	if err := c.RefreshMetadata(ctx, match); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("failed to refresh series after change")
	}
}

func (c *Catalog) tree(ctx context.Context, path string, depth int) (*treeview.Tree[treeview.FileInfo], error) {
	return buildTree(ctx, path, false,
		treeview.WithMaxDepth[treeview.FileInfo](depth),
		treeview.WithTraversalCap[treeview.FileInfo](traversalCap),
		treeview.WithFilterFunc(mediaFilter),
	)
}

// persisted indexes stored series by path.
func (c *Catalog) persisted(ctx context.Context) (map[string]Series, error) {
	known := make(map[string]Series)
	if c.repo == nil {
		return known, nil
	}
	stored, err := c.repo.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored series: %w", err)
	}
	for _, s := range stored {
		known[filepath.Clean(s.Path)] = s
	}
	return known, nil
}

// seriesFromFolder names a series after its folder unless the store already
// knows it.
func seriesFromFolder(path string, known map[string]Series) Series {
	path = filepath.Clean(path)
	if s, ok := known[path]; ok {
		s.ID = SeriesID(path)
		s.Path = path
		return cloneSeries(s)
	}
	name, year := local.ParseName(filepath.Base(path))
	if name == "" {
		name = filepath.Base(path)
	}
	return Series{
		ID:          SeriesID(path),
		Name:        name,
		Year:        year,
		Path:        path,
		ProviderIDs: map[string]string{},
	}
}

// seriesAncestor returns the ancestor of node directly below the scanned root.
func seriesAncestor(node *treeview.Node[treeview.FileInfo]) *treeview.Node[treeview.FileInfo] {
	for node.Parent() != nil && node.Parent().Parent() != nil {
		node = node.Parent()
	}
	return node
}

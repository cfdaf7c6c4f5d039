// Package catalog keeps the in-memory view of the TV library: every series
// folder found under the configured library roots together with its seasons
// and episode files.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"github.com/rs/zerolog"
)

// LocationType tells where an item lives.
type LocationType string

const (
	LocationFileSystem LocationType = "FileSystem"
	LocationVirtual    LocationType = "Virtual"
	LocationRemote     LocationType = "Remote"
)

// Series is a series folder in the library.
type Series struct {
	ID          string
	Name        string
	Year        int
	Path        string
	ProviderIDs map[string]string
}

// Season is a season of a series. Path is empty for seasons that only exist
// through episode numbering.
type Season struct {
	SeriesID string
	Index    int
	Path     string
	Location LocationType
}

// Episode is a single episode file.
type Episode struct {
	SeriesID string
	Path     string
	Season   *int
	Index    *int
	IndexEnd *int
	Location LocationType
}

// Filter narrows ListSeries. Empty fields match everything.
type Filter struct {
	Name        string
	LibraryPath string
}

// SeriesRepository persists series created or enriched by the organizer so
// provider ids survive rescans.
type SeriesRepository interface {
	SaveSeries(ctx context.Context, series Series) error
	ListSeries(ctx context.Context) ([]Series, error)
}

// Options configures a Catalog.
type Options struct {
	Roots    []string
	Repo     SeriesRepository
	Logger   zerolog.Logger
	MaxDepth int
}

// Catalog is safe for concurrent use.
type Catalog struct {
	roots    []string
	repo     SeriesRepository
	log      zerolog.Logger
	maxDepth int

	series   *csmap.CsMap[string, Series]
	seasons  *csmap.CsMap[string, []Season]
	episodes *csmap.CsMap[string, []Episode]

	// scanMu serializes writers of the per-series season and episode lists.
	scanMu sync.Mutex
}

// New returns an empty catalog over the given roots. Call Scan to fill it.
func New(opts Options) *Catalog {
	roots := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, filepath.Clean(r))
		}
	}
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = 4
	}
	return &Catalog{
		roots:    roots,
		repo:     opts.Repo,
		log:      opts.Logger.With().Str("component", "catalog").Logger(),
		maxDepth: depth,
		series:   csmap.Create[string, Series](),
		seasons:  csmap.Create[string, []Season](),
		episodes: csmap.Create[string, []Episode](),
	}
}

// SeriesID derives the stable identifier of the series folder at path.
func SeriesID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("series:"+filepath.Clean(path))).String()
}

// Roots returns the library roots.
func (c *Catalog) Roots() []string {
	return append([]string(nil), c.roots...)
}

// ListSeries returns the series matching filter ordered by name then path.
func (c *Catalog) ListSeries(filter Filter) []Series {
	var out []Series
	c.series.Range(func(_ string, s Series) bool {
		if filter.Name != "" && !strings.EqualFold(s.Name, filter.Name) {
			return false
		}
		if filter.LibraryPath != "" && !isUnder(s.Path, filter.LibraryPath) {
			return false
		}
		out = append(out, cloneSeries(s))
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// GetByID returns the series with id.
func (c *Catalog) GetByID(id string) (Series, bool) {
	s, ok := c.series.Load(id)
	if !ok {
		return Series{}, false
	}
	return cloneSeries(s), true
}

// FindByPath returns the series stored at path.
func (c *Catalog) FindByPath(path string) (Series, bool) {
	return c.GetByID(SeriesID(path))
}

// SeasonsOf returns the seasons of a series ordered by index.
func (c *Catalog) SeasonsOf(seriesID string) []Season {
	seasons, _ := c.seasons.Load(seriesID)
	return append([]Season(nil), seasons...)
}

// EpisodesOf returns the episodes of a series ordered by path.
func (c *Catalog) EpisodesOf(seriesID string) []Episode {
	episodes, _ := c.episodes.Load(seriesID)
	return append([]Episode(nil), episodes...)
}

// AddChild registers a newly created series folder under the library root
// that contains it and persists it through the repository.
func (c *Catalog) AddChild(ctx context.Context, series Series) (Series, error) {
	if series.Path == "" {
		return Series{}, fmt.Errorf("series %q has no path", series.Name)
	}
	series.Path = filepath.Clean(series.Path)
	if len(c.roots) > 0 && c.rootOf(series.Path) == "" {
		return Series{}, fmt.Errorf("series path %s is outside the library roots", series.Path)
	}
	series.ID = SeriesID(series.Path)
	if series.ProviderIDs == nil {
		series.ProviderIDs = map[string]string{}
	}

	if c.repo != nil {
		if err := c.repo.SaveSeries(ctx, series); err != nil {
			return Series{}, fmt.Errorf("failed to persist series %s: %w", series.Name, err)
		}
	}
	c.series.Store(series.ID, cloneSeries(series))
	c.log.Info().Str("series", series.Name).Str("path", series.Path).Msg("series added to library")
	return cloneSeries(series), nil
}

// UpdateProviderIDs merges ids into a known series and persists the result.
func (c *Catalog) UpdateProviderIDs(ctx context.Context, seriesID string, ids map[string]string) error {
	s, ok := c.series.Load(seriesID)
	if !ok {
		return fmt.Errorf("series %s not found", seriesID)
	}
	s = cloneSeries(s)
	for k, v := range ids {
		if v != "" {
			s.ProviderIDs[k] = v
		}
	}
	if c.repo != nil {
		if err := c.repo.SaveSeries(ctx, s); err != nil {
			return err
		}
	}
	c.series.Store(s.ID, s)
	return nil
}

func (c *Catalog) rootOf(path string) string {
	for _, root := range c.roots {
		if isUnder(path, root) {
			return root
		}
	}
	return ""
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func cloneSeries(s Series) Series {
	ids := make(map[string]string, len(s.ProviderIDs))
	for k, v := range s.ProviderIDs {
		ids[k] = v
	}
	s.ProviderIDs = ids
	return s
}

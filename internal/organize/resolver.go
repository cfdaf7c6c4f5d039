package organize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/rs/zerolog"
)

// creationMu serializes the check-then-create step of series creation across
// every resolver in the process.
var creationMu sync.Mutex

// NewSeries describes a series to create in the library.
type NewSeries struct {
	Name         string
	Year         int
	ProviderIDs  map[string]string
	TargetFolder string
}

// Resolver maps extracted series names to catalog series.
type Resolver struct {
	catalog  Catalog
	searcher provider.Searcher
	matches  SmartMatchStore
	fs       FileSystem
	renderer Renderer
	tv       config.TVOptions
	log      zerolog.Logger

	refreshes sync.WaitGroup
}

// ResolverConfig configures a Resolver. Searcher may be nil when remote
// auto-detection is not available.
type ResolverConfig struct {
	Catalog  Catalog
	Searcher provider.Searcher
	Matches  SmartMatchStore
	FS       FileSystem
	TV       config.TVOptions
	Logger   zerolog.Logger
}

// NewResolver returns a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		catalog:  cfg.Catalog,
		searcher: cfg.Searcher,
		matches:  cfg.Matches,
		fs:       cfg.FS,
		renderer: Renderer{Sanitize: cfg.FS.SanitizeFilename},
		tv:       cfg.TV,
		log:      cfg.Logger.With().Str("component", "resolver").Logger(),
	}
}

// parseSeriesName strips an embedded year. The raw name is kept when nothing
// else remains.
func parseSeriesName(raw string) (string, int) {
	name, year := local.ParseName(raw)
	if strings.TrimSpace(name) == "" {
		return raw, year
	}
	return name, year
}

// Resolve finds the catalog series for extractedName, auto-detecting and
// creating it when enabled. The stripped name and year are recorded on result
// when it is not nil.
func (r *Resolver) Resolve(ctx context.Context, extractedName string, result *Result) (catalog.Series, error) {
	name, year := parseSeriesName(extractedName)
	if result != nil {
		result.ExtractedName = name
		result.ExtractedYear = nil
		if year > 0 {
			result.ExtractedYear = intPtr(year)
		}
	}

	if series, ok := r.match(name, year); ok {
		r.log.Debug().Str("name", name).Str("series", series.Name).Msg("matched library series")
		return series, nil
	}

	if r.tv.AutoDetectSeries {
		series, ok, err := r.autoDetect(ctx, name, year)
		if err != nil {
			return catalog.Series{}, err
		}
		if ok {
			return series, nil
		}
	}

	msg := fmt.Sprintf("Unable to find series in library matching name %s", extractedName)
	r.log.Warn().Str("name", extractedName).Msg("no matching series")
	return catalog.Series{}, newError(ErrResolution, msg, nil)
}

// match scores every catalog series and falls back to the smart-match table.
func (r *Resolver) match(name string, year int) (catalog.Series, bool) {
	var (
		best      catalog.Series
		bestScore int
	)
	for _, series := range r.catalog.ListSeries(catalog.Filter{}) {
		if score := matchScore(name, year, series); score > bestScore {
			best, bestScore = series, score
		}
	}
	if bestScore > 0 {
		return best, true
	}

	if r.matches == nil {
		return catalog.Series{}, false
	}
	for _, info := range r.matches.SmartMatchTable() {
		if !containsFold(info.MatchStrings, name) {
			continue
		}
		found := r.catalog.ListSeries(catalog.Filter{Name: info.ItemName})
		if len(found) == 0 {
			return catalog.Series{}, false
		}
		return found[0], true
	}
	return catalog.Series{}, false
}

// CreateSeries returns the library series for req, creating its folder and
// catalog entry when no existing series matches. The metadata refresh runs
// in the background after the creation lock is released.
func (r *Resolver) CreateSeries(ctx context.Context, req NewSeries) (catalog.Series, error) {
	series, err := r.createLocked(ctx, req)
	if err != nil {
		return catalog.Series{}, err
	}
	r.refreshAsync(ctx, series)
	return series, nil
}

func (r *Resolver) createLocked(ctx context.Context, req NewSeries) (catalog.Series, error) {
	creationMu.Lock()
	defer creationMu.Unlock()

	name, year := parseSeriesName(req.Name)
	if req.Year > 0 {
		year = req.Year
	}
	if existing, ok := r.match(name, year); ok {
		return existing, nil
	}

	if req.TargetFolder == "" {
		return catalog.Series{}, newError(ErrResolution, fmt.Sprintf("No library folder configured for new series %s", req.Name), nil)
	}
	folder := r.renderer.SeriesFolder(r.tv.SeriesFolderPattern, SeriesFolderValues{Name: req.Name, Year: req.Year})
	if folder == "" {
		return catalog.Series{}, newError(ErrResolution, fmt.Sprintf("Unable to build a folder name for series %s", req.Name), nil)
	}
	path := filepath.Join(req.TargetFolder, folder)

	if err := ctx.Err(); err != nil {
		return catalog.Series{}, err
	}
	if err := r.fs.CreateDirectory(path); err != nil {
		return catalog.Series{}, newError(ErrFilesystem, fmt.Sprintf("Failed to create series folder %s: %v", path, err), err)
	}

	ids := make(map[string]string, len(req.ProviderIDs))
	for k, v := range req.ProviderIDs {
		ids[k] = v
	}
	series, err := r.catalog.AddChild(ctx, catalog.Series{
		Name:        req.Name,
		Year:        req.Year,
		Path:        path,
		ProviderIDs: ids,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return catalog.Series{}, err
		}
		return catalog.Series{}, newError(ErrResolution, fmt.Sprintf("Failed to add series %s to the library: %v", req.Name, err), err)
	}

	r.log.Info().Str("series", series.Name).Str("path", series.Path).Msg("created series")
	return series, nil
}

func (r *Resolver) refreshAsync(ctx context.Context, series catalog.Series) {
	ctx = context.WithoutCancel(ctx)
	r.refreshes.Add(1)
	go func() {
		defer r.refreshes.Done()
		if err := r.catalog.RefreshMetadata(ctx, series); err != nil {
			r.log.Warn().Err(err).Str("series", series.Name).Msg("series refresh failed")
		}
	}()
}

// Wait blocks until background refreshes started by CreateSeries finish.
func (r *Resolver) Wait() {
	r.refreshes.Wait()
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

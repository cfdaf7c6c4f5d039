package organize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/rs/zerolog"
)

// PlanRequest identifies the episode a source file should become.
type PlanRequest struct {
	SourcePath    string
	Series        catalog.Series
	Season        *int
	Episode       *int
	EndingEpisode *int
	PremiereDate  *time.Time
}

// Planner computes destination paths inside a series folder.
type Planner struct {
	searcher provider.Searcher
	catalog  Catalog
	renderer Renderer
	tv       config.TVOptions
	log      zerolog.Logger
}

// NewPlanner returns a planner.
func NewPlanner(searcher provider.Searcher, cat Catalog, fs FileSystem, tv config.TVOptions, log zerolog.Logger) *Planner {
	return &Planner{
		searcher: searcher,
		catalog:  cat,
		renderer: Renderer{Sanitize: fs.SanitizeFilename},
		tv:       tv,
		log:      log.With().Str("component", "planner").Logger(),
	}
}

// Plan looks the episode up remotely and renders its destination path. An
// empty path with a nil error means the file name rendered to nothing.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.searcher == nil {
		return "", newError(ErrMetadata, p.notFoundMessage(req), nil)
	}

	episodes, err := p.searcher.SearchEpisode(ctx, provider.EpisodeQuery{
		SeriesName:        req.Series.Name,
		SeriesProviderIDs: p.providerIDs(ctx, req.Series),
		Season:            req.Season,
		Episode:           req.Episode,
		EndingEpisode:     req.EndingEpisode,
		PremiereDate:      req.PremiereDate,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		p.log.Warn().Err(err).Str("series", req.Series.Name).Msg("episode lookup failed")
		return "", newError(ErrMetadata, p.notFoundMessage(req), err)
	}
	if len(episodes) == 0 {
		msg := p.notFoundMessage(req)
		p.log.Warn().Msg(msg)
		return "", newError(ErrMetadata, msg, nil)
	}
	meta := episodes[0]

	season := meta.Season
	if req.Season != nil {
		season = *req.Season
	}
	episode := meta.Episode
	if req.Episode != nil {
		episode = *req.Episode
	}

	fileName, err := p.renderer.EpisodeFile(p.tv.EpisodeNamePattern, p.tv.MultiEpisodeNamePattern, EpisodeFileValues{
		SourcePath:    req.SourcePath,
		SeriesName:    req.Series.Name,
		Season:        season,
		Episode:       episode,
		EndingEpisode: req.EndingEpisode,
		Title:         meta.Name,
	})
	if err != nil {
		return "", newError(ErrPlanning, err.Error(), err)
	}
	if fileName == "" {
		return "", nil
	}

	return filepath.Join(p.seasonFolder(req.Series, season), fileName), nil
}

// providerIDs returns the series ids, looking the series up by name when a
// library scan left it without any. Ids found for an unambiguous match are
// stored so later lookups skip the search.
func (p *Planner) providerIDs(ctx context.Context, series catalog.Series) map[string]string {
	if len(series.ProviderIDs) > 0 {
		return series.ProviderIDs
	}

	name, year := series.Name, series.Year
	if stripped, embedded := local.ParseName(name); stripped != "" && embedded > 0 {
		name = stripped
		if year == 0 {
			year = embedded
		}
	}
	candidates, err := p.searcher.SearchSeries(ctx, provider.SeriesQuery{Name: name, Year: year})
	if err != nil {
		p.log.Debug().Err(err).Str("series", series.Name).Msg("series id lookup failed")
		return series.ProviderIDs
	}

	var best provider.SeriesCandidate
	bestScore, tied := 0, false
	for _, c := range candidates {
		score := matchScore(c.Name, c.Year, series)
		switch {
		case score > bestScore:
			best, bestScore, tied = c, score, false
		case score > 0 && score == bestScore:
			tied = true
		}
	}
	if bestScore == 0 || tied || len(best.ProviderIDs) == 0 {
		return series.ProviderIDs
	}

	if err := p.catalog.UpdateProviderIDs(ctx, series.ID, best.ProviderIDs); err != nil {
		p.log.Warn().Err(err).Str("series", series.Name).Msg("failed to store series ids")
	}
	return best.ProviderIDs
}

// seasonFolder prefers an existing season folder, then the series root when
// episodes already sit there loose, then a rendered folder name.
func (p *Planner) seasonFolder(series catalog.Series, season int) string {
	for _, s := range p.catalog.SeasonsOf(series.ID) {
		if s.Location == catalog.LocationFileSystem && s.Index == season && s.Path != "" {
			return s.Path
		}
	}

	if p.hasLooseEpisodes(series) {
		return series.Path
	}

	if season == 0 {
		return filepath.Join(series.Path, p.renderer.clean(p.tv.SeasonZeroFolderName))
	}
	return filepath.Join(series.Path, p.renderer.SeasonFolder(p.tv.SeasonFolderPattern, season))
}

func (p *Planner) hasLooseEpisodes(series catalog.Series) bool {
	root := filepath.Clean(series.Path)
	for _, ep := range p.catalog.EpisodesOf(series.ID) {
		if filepath.Dir(ep.Path) == root {
			return true
		}
	}
	return false
}

func (p *Planner) notFoundMessage(req PlanRequest) string {
	return fmt.Sprintf("No provider metadata found for %s season %s episode %s",
		req.Series.Name, optionalNumber(req.Season), optionalNumber(req.Episode))
}

func optionalNumber(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}

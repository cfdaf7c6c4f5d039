package organize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/rs/zerolog"
)

const (
	lockedMessage = "Path is locked by other processes. Please try again later."

	// minRememberLength is the shortest extracted name worth remembering.
	minRememberLength = 3
)

// Options wires an Engine to its collaborators. Searcher and Matches may be
// nil; Now defaults to time.Now.
type Options struct {
	Catalog  Catalog
	Searcher provider.Searcher
	Results  ResultRepository
	Registry InProgressRegistry
	Matches  SmartMatchStore
	FS       FileSystem
	Monitor  ChangeMonitor
	TV       config.TVOptions
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Engine organizes episode files into the library.
type Engine struct {
	resolver *Resolver
	planner  *Planner
	locator  *DuplicateLocator
	executor *Executor

	catalog Catalog
	results ResultRepository
	matches SmartMatchStore
	fs      FileSystem
	monitor ChangeMonitor
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine returns an engine built from opts.
func NewEngine(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		resolver: NewResolver(ResolverConfig{
			Catalog:  opts.Catalog,
			Searcher: opts.Searcher,
			Matches:  opts.Matches,
			FS:       opts.FS,
			TV:       opts.TV,
			Logger:   opts.Logger,
		}),
		planner:  NewPlanner(opts.Searcher, opts.Catalog, opts.FS, opts.TV, opts.Logger),
		locator:  NewDuplicateLocator(opts.Catalog, opts.FS, opts.Logger),
		executor: NewExecutor(opts.FS, opts.Monitor, opts.Registry, opts.TV.CopyOriginalFile, opts.Logger),
		catalog:  opts.Catalog,
		results:  opts.Results,
		matches:  opts.Matches,
		fs:       opts.FS,
		monitor:  opts.Monitor,
		now:      now,
		log:      opts.Logger.With().Str("component", "engine").Logger(),
	}
}

// OrganizeFile sorts the episode at path into the library. The returned
// result is the persisted record, which is the previous one when the attempt
// repeated an earlier non-successful outcome. The error reports why a result
// is not a success; results of Busy and PathLocked attempts are not stored.
func (e *Engine) OrganizeFile(ctx context.Context, path string, overwrite bool) (*Result, error) {
	path = filepath.Clean(path)

	prev, err := e.results.GetBySourcePath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load previous result for %s: %w", path, err)
	}

	result := e.newResult(path, prev)

	if e.monitor.IsLocked(path) {
		e.log.Info().Str("path", path).Msg("path is locked, skipping")
		result.fail(lockedMessage)
		return result, newError(ErrPathLocked, lockedMessage, nil)
	}

	size, err := e.fs.FileSize(path)
	if err != nil {
		msg := fmt.Sprintf("Unable to read file %s: %v", path, err)
		result.fail(msg)
		return e.finish(ctx, prev, result, newError(ErrFilesystem, msg, err))
	}
	result.FileSize = size

	info := local.ParseEpisodePath(path)
	result.ExtractedName = info.SeriesName
	result.ExtractedSeason = cloneInt(info.Season)
	result.ExtractedEpisode = cloneInt(info.Episode)
	result.ExtractedEndingEpisode = cloneInt(info.EndingEpisode)

	if strings.TrimSpace(info.SeriesName) == "" {
		msg := fmt.Sprintf("Unable to determine series name from %s", path)
		result.fail(msg)
		return e.finish(ctx, prev, result, newError(ErrExtraction, msg, nil))
	}
	if !info.HasEpisode() {
		msg := fmt.Sprintf("Unable to determine episode number from %s", path)
		result.fail(msg)
		return e.finish(ctx, prev, result, newError(ErrExtraction, msg, nil))
	}

	err = e.executor.Guard(ctx, result, func(ctx context.Context) error {
		series, err := e.resolver.Resolve(ctx, info.SeriesName, result)
		if err != nil {
			return err
		}
		return e.sortInto(ctx, result, series, overwrite)
	})
	if errors.Is(err, ErrBusy) {
		result.fail(messageOf(err))
		return result, err
	}
	return e.finish(ctx, prev, result, err)
}

// CorrectionRequest re-sorts a stored result into an explicitly chosen
// series. A request with NewSeriesProviderIDs creates the series named
// NewSeriesName under TargetFolder (the default series library when empty);
// otherwise SeriesID selects an existing catalog series. Season, Episode and
// EndingEpisode replace the extracted numbers when set.
type CorrectionRequest struct {
	ResultID             string
	SeriesID             string
	NewSeriesName        string
	NewSeriesYear        int
	NewSeriesProviderIDs map[string]string
	TargetFolder         string
	Season               *int
	Episode              *int
	EndingEpisode        *int
	RememberCorrection   bool
}

func (r CorrectionRequest) createsSeries() bool {
	return len(r.NewSeriesProviderIDs) > 0
}

// OrganizeWithCorrection sorts the source file of a stored result using the
// series and numbers chosen by the user, overwriting existing episodes.
func (e *Engine) OrganizeWithCorrection(ctx context.Context, req CorrectionRequest) (*Result, error) {
	if req.ResultID == "" {
		return nil, newError(ErrInvalidInput, "A result id is required", nil)
	}
	if !req.createsSeries() && req.SeriesID == "" {
		return nil, newError(ErrInvalidInput, "Either an existing series id or a new series with provider ids is required", nil)
	}
	if req.createsSeries() && strings.TrimSpace(req.NewSeriesName) == "" {
		return nil, newError(ErrInvalidInput, "A name is required for a new series", nil)
	}

	prev, err := e.results.GetByID(ctx, req.ResultID)
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", req.ResultID, err)
	}
	if prev == nil {
		return nil, newError(ErrNotFound, fmt.Sprintf("Unable to find result %s", req.ResultID), nil)
	}

	result := prev.Clone()
	result.DuplicatePaths = nil
	if req.Season != nil {
		result.ExtractedSeason = cloneInt(req.Season)
	}
	if req.Episode != nil {
		result.ExtractedEpisode = cloneInt(req.Episode)
	}
	if req.EndingEpisode != nil {
		result.ExtractedEndingEpisode = cloneInt(req.EndingEpisode)
	}

	var series catalog.Series
	err = e.executor.Guard(ctx, result, func(ctx context.Context) error {
		var err error
		series, err = e.correctionSeries(ctx, req)
		if err != nil {
			return err
		}
		return e.sortInto(ctx, result, series, true)
	})
	if errors.Is(err, ErrBusy) {
		return prev, err
	}

	if err == nil && result.Status == StatusSuccess && req.RememberCorrection {
		e.remember(series.Name, result.ExtractedName)
	}
	return e.finish(ctx, prev, result, err)
}

func (e *Engine) correctionSeries(ctx context.Context, req CorrectionRequest) (catalog.Series, error) {
	if req.createsSeries() {
		folder := req.TargetFolder
		if folder == "" {
			folder = e.resolver.tv.DefaultSeriesLibraryPath
		}
		return e.resolver.CreateSeries(ctx, NewSeries{
			Name:         req.NewSeriesName,
			Year:         req.NewSeriesYear,
			ProviderIDs:  req.NewSeriesProviderIDs,
			TargetFolder: folder,
		})
	}

	series, ok := e.catalog.GetByID(req.SeriesID)
	if !ok {
		return catalog.Series{}, newError(ErrResolution, fmt.Sprintf("Unable to find series %s in library", req.SeriesID), nil)
	}
	return series, nil
}

// sortInto plans the destination inside series and runs the executor.
func (e *Engine) sortInto(ctx context.Context, result *Result, series catalog.Series, overwrite bool) error {
	if result.ID == "" {
		if err := e.results.Save(ctx, result); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
	}

	req := PlanRequest{
		SourcePath:    result.OriginalPath,
		Series:        series,
		Season:        result.ExtractedSeason,
		Episode:       result.ExtractedEpisode,
		EndingEpisode: result.ExtractedEndingEpisode,
	}
	if req.Season == nil || req.Episode == nil {
		req.PremiereDate = local.ParseEpisodePath(result.OriginalPath).AirDate()
	}

	target, err := e.planner.Plan(ctx, req)
	if err != nil {
		return err
	}
	if target == "" {
		msg := fmt.Sprintf("Unable to sort %s because target path could not be determined.", result.OriginalPath)
		e.log.Warn().Msg(msg)
		return newError(ErrPlanning, msg, nil)
	}
	result.TargetPath = target

	duplicates := e.locator.Find(target, series, result.ExtractedSeason, result.ExtractedEpisode, result.ExtractedEndingEpisode)
	return e.executor.Sort(ctx, result, duplicates, overwrite)
}

// finish persists result unless prev already records the same outcome.
// Persistence ignores cancellation of ctx.
func (e *Engine) finish(ctx context.Context, prev, result *Result, cause error) (*Result, error) {
	if suppresses(prev, result) {
		e.log.Debug().
			Str("path", result.OriginalPath).
			Str("status", string(result.Status)).
			Msg("outcome unchanged, keeping previous result")
		return prev, cause
	}

	if err := e.results.Save(context.WithoutCancel(ctx), result); err != nil {
		e.log.Error().Err(err).Str("path", result.OriginalPath).Msg("failed to save result")
		return result, errors.Join(cause, fmt.Errorf("save result: %w", err))
	}
	return result, cause
}

func (e *Engine) remember(seriesName, extracted string) {
	if e.matches == nil || len(strings.TrimSpace(extracted)) < minRememberLength {
		return
	}
	added, err := e.matches.RememberMatch(seriesName, extracted)
	if err != nil {
		e.log.Warn().Err(err).Str("series", seriesName).Msg("failed to remember correction")
		return
	}
	if added {
		e.log.Info().Str("series", seriesName).Str("match", extracted).Msg("remembered correction")
	}
}

func (e *Engine) newResult(path string, prev *Result) *Result {
	result := &Result{
		Date:             e.now().UTC(),
		OriginalPath:     path,
		OriginalFileName: filepath.Base(path),
		Kind:             KindEpisode,
	}
	if prev != nil {
		result.ID = prev.ID
	}
	return result
}

// Wait blocks until background series refreshes finish.
func (e *Engine) Wait() {
	e.resolver.Wait()
}

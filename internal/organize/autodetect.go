package organize

import (
	"context"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"golang.org/x/sync/errgroup"
)

// autoDetect asks the remote provider for the series and creates it when the
// two searches agree.
func (r *Resolver) autoDetect(ctx context.Context, name string, year int) (catalog.Series, bool, error) {
	if r.searcher == nil {
		return catalog.Series{}, false, nil
	}

	candidate, ok, err := r.detect(ctx, name, year)
	if err != nil || !ok {
		return catalog.Series{}, false, err
	}

	r.log.Info().
		Str("name", name).
		Str("candidate", candidate.Name).
		Int("year", candidate.Year).
		Msg("auto-detected series")

	series, err := r.CreateSeries(ctx, NewSeries{
		Name:         candidate.Name,
		Year:         candidate.Year,
		ProviderIDs:  candidate.ProviderIDs,
		TargetFolder: r.tv.DefaultSeriesLibraryPath,
	})
	if err != nil {
		return catalog.Series{}, false, err
	}
	return series, true, nil
}

// detect runs the plain and the dot-to-underscore searches concurrently and
// applies consensus once both have answered.
func (r *Resolver) detect(ctx context.Context, name string, year int) (provider.SeriesCandidate, bool, error) {
	if err := ctx.Err(); err != nil {
		return provider.SeriesCandidate{}, false, err
	}

	var first, second []provider.SeriesCandidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		first = r.search(gctx, provider.SeriesQuery{Name: name, Year: year})
		return nil
	})
	g.Go(func() error {
		second = r.search(gctx, provider.SeriesQuery{Name: strings.ReplaceAll(name, ".", "_"), Year: year})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return provider.SeriesCandidate{}, false, err
	}

	candidate, ok := consensus(first, second)
	if !ok {
		r.log.Debug().
			Str("name", name).
			Int("first", len(first)).
			Int("second", len(second)).
			Msg("auto-detect found no unambiguous series")
	}
	return candidate, ok, nil
}

// search treats provider errors as an empty answer.
func (r *Resolver) search(ctx context.Context, query provider.SeriesQuery) []provider.SeriesCandidate {
	results, err := r.searcher.SearchSeries(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Str("query", query.Name).Msg("series search failed")
		return nil
	}
	return results
}

// consensus accepts a candidate only when neither search is ambiguous and
// either both found the same series (sharing a provider id) or exactly one
// search found anything. The first search wins when both agree.
func consensus(first, second []provider.SeriesCandidate) (provider.SeriesCandidate, bool) {
	if len(first) > 1 || len(second) > 1 {
		return provider.SeriesCandidate{}, false
	}

	switch {
	case len(first) == 1 && len(second) == 1:
		for key, value := range first[0].ProviderIDs {
			if other, ok := second[0].ProviderIDs[key]; ok && other == value {
				return first[0], true
			}
		}
		return provider.SeriesCandidate{}, false
	case len(first) == 1:
		return first[0], true
	case len(second) == 1:
		return second[0], true
	}
	return provider.SeriesCandidate{}, false
}

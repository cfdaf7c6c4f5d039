package omdb

import (
	"context"
	"strconv"
	"strings"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
)

// SearchSeries looks a series up by title. OMDb answers title queries with a
// single best match, so at most one candidate is returned.
func (p *Provider) SearchSeries(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}
	title := strings.TrimSpace(query.Name)
	if title == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "series search requires a title",
		}
	}

	q := omdb.QueryData{
		Title:      title,
		SearchType: "series",
	}
	if query.Year > 0 {
		q.Year = strconv.Itoa(query.Year)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := p.client.SearchByTitle(q)
	if err != nil {
		mapped := p.mapError(err)
		if provider.IsNotFound(mapped) {
			return []provider.SeriesCandidate{}, nil
		}
		return nil, mapped
	}

	switch series := result.(type) {
	case omdb.SeriesResult:
		return []provider.SeriesCandidate{seriesCandidate(series)}, nil
	case *omdb.SeriesResult:
		return []provider.SeriesCandidate{seriesCandidate(*series)}, nil
	default:
		return []provider.SeriesCandidate{}, nil
	}
}

// SearchEpisode fetches one episode of a series identified by its IMDb id.
func (p *Provider) SearchEpisode(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}

	imdbID := strings.TrimSpace(query.SeriesProviderIDs[provider.IDKeyIMDB])
	if imdbID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode lookup requires an IMDb series id",
		}
	}
	if query.Season == nil || query.Episode == nil {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode lookup requires season and episode numbers",
		}
	}

	q := omdb.QueryData{
		ImdbID:  imdbID,
		Season:  strconv.Itoa(*query.Season),
		Episode: strconv.Itoa(*query.Episode),
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := p.client.SearchByImdbID(q)
	if err != nil {
		mapped := p.mapError(err)
		if provider.IsNotFound(mapped) {
			return []provider.EpisodeCandidate{}, nil
		}
		return nil, mapped
	}

	var episode *omdb.EpisodeResult
	switch r := result.(type) {
	case omdb.EpisodeResult:
		episode = &r
	case *omdb.EpisodeResult:
		episode = r
	}
	if episode == nil || strings.TrimSpace(episode.Title) == "" {
		return []provider.EpisodeCandidate{}, nil
	}

	return []provider.EpisodeCandidate{{
		Name:    strings.TrimSpace(episode.Title),
		Season:  *query.Season,
		Episode: *query.Episode,
		AirDate: episode.Released,
	}}, nil
}

func seriesCandidate(result omdb.SeriesResult) provider.SeriesCandidate {
	year, _ := strconv.Atoi(omdb.FirstYear(result.Year))
	ids := map[string]string{}
	if result.ImdbID != "" {
		ids[provider.IDKeyIMDB] = result.ImdbID
	}
	return provider.SeriesCandidate{
		Name:        strings.TrimSpace(result.Title),
		Year:        year,
		Overview:    result.Plot,
		ProviderIDs: ids,
	}
}

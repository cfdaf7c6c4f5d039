package tmdb

import (
	"context"
	"strconv"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/ryanbradynd05/go-tmdb"
)

// maxDateScanSeasons bounds the seasons scanned for an air date lookup.
const maxDateScanSeasons = 40

// SearchSeries searches TMDB for TV series matching the query
func (p *Provider) SearchSeries(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}
	name := strings.TrimSpace(query.Name)
	if name == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "series search requires a name",
		}
	}

	options := map[string]string{
		"language": p.language,
	}
	if query.Year > 0 {
		options["first_air_date_year"] = strconv.Itoa(query.Year)
	}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}
	results, err := p.client.SearchTv(name, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if results == nil {
		return []provider.SeriesCandidate{}, nil
	}

	candidates := make([]provider.SeriesCandidate, 0, len(results.Results))
	for _, show := range results.Results {
		candidates = append(candidates, provider.SeriesCandidate{
			Name: show.Name,
			Year: yearOf(show.FirstAirDate),
			ProviderIDs: map[string]string{
				provider.IDKeyTMDB: strconv.Itoa(show.ID),
			},
		})
	}
	return candidates, nil
}

// SearchEpisode looks up a single episode of a TMDB series
func (p *Provider) SearchEpisode(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}

	showID, err := strconv.Atoi(strings.TrimSpace(query.SeriesProviderIDs[provider.IDKeyTMDB]))
	if err != nil || showID <= 0 {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode lookup requires a TMDB series id",
		}
	}

	options := map[string]string{
		"language": p.language,
	}

	switch {
	case query.Season != nil && query.Episode != nil:
		if err := p.rateLimiter.wait(ctx); err != nil {
			return nil, err
		}
		episode, err := p.client.GetTvEpisodeInfo(showID, *query.Season, *query.Episode, options)
		if err != nil {
			mapped := p.mapError(err)
			if provider.IsNotFound(mapped) {
				return []provider.EpisodeCandidate{}, nil
			}
			return nil, mapped
		}
		if episode == nil {
			return []provider.EpisodeCandidate{}, nil
		}
		return []provider.EpisodeCandidate{episodeCandidate(episode)}, nil

	case query.PremiereDate != nil:
		return p.searchByAirDate(ctx, showID, query.PremiereDate.Format("2006-01-02"), options)

	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode lookup requires season and episode numbers or an air date",
		}
	}
}

// searchByAirDate scans the seasons of a show, newest first, for an episode
// that aired on date.
func (p *Provider) searchByAirDate(ctx context.Context, showID int, date string, options map[string]string) ([]provider.EpisodeCandidate, error) {
	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}
	show, err := p.client.GetTvInfo(showID, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if show == nil {
		return []provider.EpisodeCandidate{}, nil
	}

	seasons := show.NumberOfSeasons
	if seasons > maxDateScanSeasons {
		seasons = maxDateScanSeasons
	}
	for s := seasons; s >= 0; s-- {
		if err := p.rateLimiter.wait(ctx); err != nil {
			return nil, err
		}
		season, err := p.client.GetTvSeasonInfo(showID, s, options)
		if err != nil || season == nil {
			continue
		}
		for i := range season.Episodes {
			if season.Episodes[i].AirDate == date {
				return []provider.EpisodeCandidate{episodeCandidate(&season.Episodes[i])}, nil
			}
		}
	}
	return []provider.EpisodeCandidate{}, nil
}

func episodeCandidate(episode *tmdb.TvEpisode) provider.EpisodeCandidate {
	return provider.EpisodeCandidate{
		Name:    episode.Name,
		Season:  episode.SeasonNumber,
		Episode: episode.EpisodeNumber,
		AirDate: episode.AirDate,
	}
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

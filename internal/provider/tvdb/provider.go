package tvdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
	"golang.org/x/time/rate"
)

const providerName = "tvdb"

// maxEnriched caps the search hits that get an extra lookup for their IMDb id.
const maxEnriched = 3

// TVDBClient captures the dashotv client methods used by this provider.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
	GetSeriesEpisodes(request operations.GetSeriesEpisodesRequest) (*tvdbapi.GetSeriesEpisodesResponse, error)
}

// Provider implements the provider.Provider interface for TVDB.
type Provider struct {
	client  TVDBClient
	apiKey  string
	config  map[string]interface{}
	limiter *rate.Limiter
}

// New creates a new TVDB provider instance.
func New() *Provider {
	return &Provider{
		config:  make(map[string]interface{}),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// SetRateLimit replaces the request rate, in requests per second.
func (p *Provider) SetRateLimit(perSecond int) {
	if perSecond <= 0 {
		return
	}
	p.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "TheTVDB (TVDB) provided metadata"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes: []provider.MediaType{
			provider.MediaTypeShow,
			provider.MediaTypeEpisode,
		},
		RequiresAuth: true,
		Priority:     95,
		IDKeys:       []string{provider.IDKeyTVDB},
	}
}

// ConfigSchema returns the configuration schema for this provider.
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TVDB API key. Generate one from your thetvdb.com account dashboard",
				Sensitive:   true,
			},
		},
	}
}

// Configure applies configuration to the provider.
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKeyRaw, ok := config["api_key"].(string)
	if !ok {
		return fmt.Errorf("api_key is required")
	}

	apiKey := strings.TrimSpace(apiKeyRaw)
	if apiKey == "" {
		return fmt.Errorf("api_key is required")
	}

	client, err := tvdbapi.Login(apiKey)
	if err != nil {
		return p.mapError(err)
	}

	p.apiKey = apiKey
	p.config = config
	p.client = client

	return nil
}

// SearchSeries searches TVDB for series matching the query.
func (p *Provider) SearchSeries(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}
	name := strings.TrimSpace(query.Name)
	if name == "" {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "series search requires a name"}
	}

	req := operations.GetSearchResultsRequest{Query: &name}
	typeSeries := "series"
	req.Type = &typeSeries
	if query.Year > 0 {
		yf := float64(query.Year)
		req.Year = &yf
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := p.client.GetSearchResults(req)
	if err != nil {
		mapped := p.mapError(err)
		if provider.IsNotFound(mapped) {
			return []provider.SeriesCandidate{}, nil
		}
		return nil, mapped
	}
	if resp == nil {
		return []provider.SeriesCandidate{}, nil
	}

	candidates := make([]provider.SeriesCandidate, 0, len(resp.Data))
	for _, result := range resp.Data {
		if t := pointerToString(result.Type); t != "" && !strings.EqualFold(t, "series") {
			continue
		}
		record := toSearchRecord(result)
		if record.ID == 0 || record.Name == "" {
			continue
		}
		year, _ := strconv.Atoi(record.Year)
		ids := map[string]string{
			provider.IDKeyTVDB: strconv.FormatInt(record.ID, 10),
		}
		if len(candidates) < maxEnriched {
			if imdbID, err := p.lookupIMDBID(ctx, record.ID); err == nil && imdbID != "" {
				ids[provider.IDKeyIMDB] = imdbID
			}
		}
		candidates = append(candidates, provider.SeriesCandidate{
			Name:        record.Name,
			Year:        year,
			ProviderIDs: ids,
		})
	}
	return candidates, nil
}

// SearchEpisode looks up an episode of a TVDB series by season and number.
// TVDB exposes no air date filter so date based queries are rejected.
func (p *Provider) SearchEpisode(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	if p.client == nil {
		return nil, provider.ErrNotConfigured
	}

	seriesID := parseInt64(query.SeriesProviderIDs[provider.IDKeyTVDB])
	if seriesID <= 0 {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "episode lookup requires a TVDB series id"}
	}
	if query.Season == nil || query.Episode == nil {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "episode lookup requires season and episode numbers"}
	}

	seasonNum := int64(*query.Season)
	episodeNum := int64(*query.Episode)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	episodes, err := p.client.GetSeriesEpisodes(operations.GetSeriesEpisodesRequest{
		ID:            float64(seriesID),
		SeasonType:    "official",
		Season:        &seasonNum,
		EpisodeNumber: &episodeNum,
		Page:          0,
	})
	if err != nil {
		mapped := p.mapError(err)
		if provider.IsNotFound(mapped) {
			return []provider.EpisodeCandidate{}, nil
		}
		return nil, mapped
	}
	if episodes == nil || episodes.Data == nil {
		return []provider.EpisodeCandidate{}, nil
	}

	var episode *shared.EpisodeBaseRecord
	for i := range episodes.Data.Episodes {
		e := &episodes.Data.Episodes[i]
		if e.Number != nil && int(*e.Number) == *query.Episode {
			episode = e
			break
		}
	}
	if episode == nil {
		return []provider.EpisodeCandidate{}, nil
	}

	return []provider.EpisodeCandidate{{
		Name:    pointerToString(episode.Name),
		Season:  *query.Season,
		Episode: *query.Episode,
	}}, nil
}

// lookupIMDBID returns the IMDb id TVDB records for a series.
func (p *Provider) lookupIMDBID(ctx context.Context, id int64) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.GetSeriesExtended(float64(id), nil, nil)
	if err != nil {
		return "", p.mapError(err)
	}
	if resp == nil || resp.Data == nil {
		return "", nil
	}
	return findRemoteID(resp.Data.RemoteIds, "imdb"), nil
}

type searchRecord struct {
	ID   int64
	Name string
	Year string
}

func toSearchRecord(result shared.SearchResult) *searchRecord {
	id := parseInt64(pointerToString(result.TvdbID))
	if id == 0 {
		id = parseInt64(strings.TrimPrefix(pointerToString(result.ID), "series-"))
	}

	name := firstNonEmptyString(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title))
	year := pointerToString(result.Year)

	return &searchRecord{ID: id, Name: name, Year: year}
}

func findRemoteID(ids []shared.RemoteID, source string) string {
	needle := strings.ToLower(strings.TrimSpace(source))
	for _, remote := range ids {
		sourceName := strings.ToLower(strings.TrimSpace(pointerToString(remote.SourceName)))
		if strings.Contains(sourceName, needle) {
			return strings.TrimSpace(pointerToString(remote.ID))
		}
	}
	return ""
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func parseInt64(value string) int64 {
	parsed, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return parsed
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeAuthFailed, Message: "TVDB authentication failed: " + msg}
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeRateLimited, Message: msg, Retry: true, RetryAfter: 5}
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: msg}
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30}
	default:
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg}
	}
}

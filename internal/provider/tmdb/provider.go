package tmdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/ryanbradynd05/go-tmdb"
)

const (
	providerName = "tmdb"
)

// Provider implements the provider.Provider interface for TMDB
type Provider struct {
	client      TMDBClient
	language    string
	apiKey      string
	rateLimiter *rateLimiter
	config      map[string]interface{}
}

// TMDBClient interface for testing (matches *tmdb.TMDb)
type TMDBClient interface {
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
	GetTvSeasonInfo(showID, seasonID int, options map[string]string) (*tmdb.TvSeason, error)
	GetTvEpisodeInfo(showID, seasonNum, episodeNum int, options map[string]string) (*tmdb.TvEpisode, error)
}

// New creates a new TMDB provider instance
func New() *Provider {
	return &Provider{
		language:    "en-US",
		config:      make(map[string]interface{}),
		rateLimiter: newRateLimiter(38, 10*time.Second), // 38 requests per 10 seconds
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "The Movie Database (TMDB) provided metadata"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes: []provider.MediaType{
			provider.MediaTypeShow,
			provider.MediaTypeEpisode,
		},
		RequiresAuth: true,
		Priority:     100,
		IDKeys:       []string{provider.IDKeyTMDB},
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TMDB API key (not the Read Access Token). Get it from themoviedb.org/settings/api",
				Sensitive:   true,
			},
			{
				Name:        "language",
				DisplayName: "Language",
				Type:        provider.ConfigFieldTypeString,
				Default:     "en-US",
				Description: "Preferred language for metadata",
			},
		},
	}
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKey, ok := config["api_key"].(string)
	if !ok || strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	p.apiKey = strings.TrimSpace(apiKey)
	p.config = config

	if language, ok := config["language"].(string); ok && language != "" {
		p.language = language
	} else {
		p.language = "en-US"
	}

	p.client = tmdb.Init(tmdb.Config{
		APIKey:   p.apiKey,
		Proxies:  nil,
		UseProxy: false,
	})
	return nil
}

// mapError maps TMDB errors to provider errors
func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "404") || strings.Contains(errStr, "could not be found") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "TMDB resource not found",
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	}
	if strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  "TMDB error: " + err.Error(),
		Retry:    false,
	}
}

package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"golang.org/x/time/rate"
)

const providerName = "omdb"

// Provider implements the provider.Provider interface for OMDb.
type Provider struct {
	client     *omdb.Client
	httpClient *http.Client
	apiKey     string
	config     map[string]interface{}
	limiter    *rate.Limiter
}

// New creates a new OMDb provider instance.
func New() *Provider {
	return &Provider{
		config:  make(map[string]interface{}),
		limiter: rate.NewLimiter(rate.Limit(4), 4),
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
	return "Open Movie Database (OMDB) provided metadata"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes: []provider.MediaType{
			provider.MediaTypeShow,
			provider.MediaTypeEpisode,
		},
		RequiresAuth: true,
		Priority:     90,
		IDKeys:       []string{provider.IDKeyIMDB},
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
				Description: "OMDb API key. Request one from https://www.omdbapi.com/apikey.aspx",
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

	// Allow overriding the HTTP client before configuration (useful for tests).
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	p.apiKey = apiKey
	p.config = config
	p.client = omdb.NewClient(p.apiKey, p.httpClient)

	return nil
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
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
		}
	case strings.Contains(lower, "not found"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  msg,
		}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
		}
	}
}

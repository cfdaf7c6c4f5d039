// Package setup builds the provider registry from configuration. It lives
// apart from the provider package to avoid import cycles.
package setup

import (
	"fmt"

	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/Digital-Shane/tidy-sort/internal/provider/omdb"
	"github.com/Digital-Shane/tidy-sort/internal/provider/tmdb"
	"github.com/Digital-Shane/tidy-sort/internal/provider/tvdb"
	"github.com/rs/zerolog"
)

// Options controls LoadProviders. The provider fields replace the built-in
// implementations when set.
type Options struct {
	Settings config.ProviderSettings
	Logger   zerolog.Logger

	TMDB provider.Provider
	TVDB provider.Provider
	OMDB provider.Provider
}

type rateLimited interface {
	SetRateLimit(perSecond int)
}

// LoadProviders registers every built-in provider and enables the ones
// switched on in configuration that carry an API key. A provider that fails
// to configure is logged and left disabled.
func LoadProviders(opts Options) (*provider.Registry, error) {
	log := opts.Logger.With().Str("component", "providers").Logger()
	s := opts.Settings
	registry := provider.NewRegistry()

	entries := []struct {
		name    string
		enabled bool
		apiKey  string
		prov    provider.Provider
		fresh   func() provider.Provider
	}{
		{name: "tmdb", enabled: s.EnableTMDB, apiKey: s.TMDBAPIKey, prov: opts.TMDB, fresh: func() provider.Provider { return tmdb.New() }},
		{name: "tvdb", enabled: s.EnableTVDB, apiKey: s.TVDBAPIKey, prov: opts.TVDB, fresh: func() provider.Provider { return tvdb.New() }},
		{name: "omdb", enabled: s.EnableOMDB, apiKey: s.OMDBAPIKey, prov: opts.OMDB, fresh: func() provider.Provider { return omdb.New() }},
	}

	for _, entry := range entries {
		prov := entry.prov
		if prov == nil {
			prov = entry.fresh()
		}
		if rl, ok := prov.(rateLimited); ok && s.RateLimitPS > 0 {
			rl.SetRateLimit(s.RateLimitPS)
		}

		if err := registry.Register(entry.name, prov, prov.Capabilities().Priority); err != nil {
			return nil, fmt.Errorf("failed to register %s provider: %w", entry.name, err)
		}
		if !entry.enabled {
			continue
		}
		if entry.apiKey == "" {
			log.Warn().Str("provider", entry.name).Msg("provider enabled without an API key, skipping")
			continue
		}

		conf := map[string]interface{}{"api_key": entry.apiKey}
		if entry.name == "tmdb" && s.Language != "" {
			conf["language"] = s.Language
		}
		if err := registry.Configure(entry.name, conf); err != nil {
			log.Warn().Err(err).Str("provider", entry.name).Msg("provider configuration failed")
			continue
		}
		if err := registry.Enable(entry.name); err != nil {
			log.Warn().Err(err).Str("provider", entry.name).Msg("provider could not be enabled")
			continue
		}
		log.Debug().Str("provider", entry.name).Msg("provider enabled")
	}

	return registry, nil
}

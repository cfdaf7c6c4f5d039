package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoProviders is returned when no enabled provider can serve a search.
var ErrNoProviders = errors.New("no enabled metadata provider")

// Registry manages all available providers
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	priorities    map[string]int
	enabledStatus map[string]bool
	configs       map[string]map[string]interface{}
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		priorities:    make(map[string]int),
		enabledStatus: make(map[string]bool),
		configs:       make(map[string]map[string]interface{}),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	if err := ValidateCapabilities(provider.Capabilities()); err != nil {
		return fmt.Errorf("invalid provider capabilities for %s: %w", name, err)
	}

	r.providers[name] = provider
	r.priorities[name] = priority
	r.enabledStatus[name] = false // Disabled by default

	return nil
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	return provider, exists
}

// List returns all registered providers, highest priority first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(false)
}

// Enabled returns the enabled providers, highest priority first
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(true)
}

func (r *Registry) sortedLocked(enabledOnly bool) []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		if enabledOnly && !r.enabledStatus[name] {
			continue
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if r.priorities[names[i]] != r.priorities[names[j]] {
			return r.priorities[names[i]] > r.priorities[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// IsEnabled reports whether the named provider is enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledStatus[name]
}

// Enable enables a provider
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	if provider.Capabilities().RequiresAuth {
		if config, hasConfig := r.configs[name]; !hasConfig || len(config) == 0 {
			return fmt.Errorf("provider %s requires configuration", name)
		}
	}

	r.enabledStatus[name] = true
	return nil
}

// Configure sets configuration for a provider
func (r *Registry) Configure(name string, config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	if err := provider.Configure(config); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", name, err)
	}

	r.configs[name] = config
	return nil
}

func (r *Registry) enabledProviders(mediaType MediaType) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedLocked(true)
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		p := r.providers[name]
		if p.Capabilities().supports(mediaType) {
			out = append(out, p)
		}
	}
	return out
}

// SearchSeries asks the highest priority enabled provider for series
// candidates.
func (r *Registry) SearchSeries(ctx context.Context, query SeriesQuery) ([]SeriesCandidate, error) {
	providers := r.enabledProviders(MediaTypeShow)
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := providers[0].SearchSeries(ctx, query)
	if IsNotFound(err) {
		return []SeriesCandidate{}, nil
	}
	return results, err
}

// SearchEpisode walks enabled providers by priority and returns the first
// non-empty answer from a provider that understands one of the series ids.
func (r *Registry) SearchEpisode(ctx context.Context, query EpisodeQuery) ([]EpisodeCandidate, error) {
	providers := r.enabledProviders(MediaTypeEpisode)
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, p := range providers {
		if !p.Capabilities().understands(query.SeriesProviderIDs) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results, err := p.SearchEpisode(ctx, query)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !IsNotFound(err) {
				lastErr = err
			}
			continue
		}
		if len(results) > 0 {
			return results, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return []EpisodeCandidate{}, nil
}

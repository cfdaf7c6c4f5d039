package provider

import (
	"context"
	"errors"
	"time"
)

// MediaType represents the type of media content
type MediaType string

const (
	MediaTypeShow    MediaType = "show"
	MediaTypeEpisode MediaType = "episode"
)

// Provider id keys shared by every source. A series carries at most one value
// per key.
const (
	IDKeyTMDB = "tmdb"
	IDKeyTVDB = "tvdb"
	IDKeyIMDB = "imdb"
)

// Provider is the main interface that all metadata providers must implement
type Provider interface {
	// Identification
	Name() string
	Description() string

	// Capability discovery
	Capabilities() ProviderCapabilities

	// Configuration
	Configure(config map[string]interface{}) error
	ConfigSchema() ConfigSchema

	Searcher
}

// Searcher answers remote series and episode lookups.
type Searcher interface {
	SearchSeries(ctx context.Context, query SeriesQuery) ([]SeriesCandidate, error)
	SearchEpisode(ctx context.Context, query EpisodeQuery) ([]EpisodeCandidate, error)
}

// ProviderCapabilities describes what a provider can do
type ProviderCapabilities struct {
	MediaTypes   []MediaType // What media types are supported
	RequiresAuth bool        // Whether authentication is required
	Priority     int         // Default priority for this provider (higher = preferred)
	IDKeys       []string    // Provider id keys usable for episode lookups
}

// ConfigSchema describes the configuration requirements for a provider
type ConfigSchema struct {
	Fields []ConfigField
}

// ConfigField describes a single configuration field
type ConfigField struct {
	Name        string          // Field name
	DisplayName string          // Human-readable name
	Type        ConfigFieldType // Field type
	Required    bool            // Whether this field is required
	Default     interface{}     // Default value
	Description string          // Help text
	Sensitive   bool            // Whether this contains sensitive data (for masking)
}

// ConfigFieldType represents the type of a configuration field
type ConfigFieldType string

const (
	ConfigFieldTypeInt      ConfigFieldType = "int"
	ConfigFieldTypeString   ConfigFieldType = "string"
	ConfigFieldTypePassword ConfigFieldType = "password"
)

// SeriesQuery asks for series matching a free-text name.
type SeriesQuery struct {
	Name string
	Year int
}

// SeriesCandidate is one remote series search hit.
type SeriesCandidate struct {
	Name        string
	Year        int
	Overview    string
	ProviderIDs map[string]string
}

// EpisodeQuery identifies an episode of a known series either by number or by
// premiere date.
type EpisodeQuery struct {
	SeriesName        string
	SeriesProviderIDs map[string]string
	Season            *int
	Episode           *int
	EndingEpisode     *int
	PremiereDate      *time.Time
}

// EpisodeCandidate is one remote episode lookup hit.
type EpisodeCandidate struct {
	Name    string
	Season  int
	Episode int
	AirDate string
}

// Error codes carried by ProviderError.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeAuthFailed     = "AUTH_FAILED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// ErrNotConfigured is returned by providers used before Configure.
var ErrNotConfigured = errors.New("provider not configured")

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a provider NOT_FOUND error.
func IsNotFound(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Code == CodeNotFound
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

// OrganizerKindEpisode is the only organizer kind the engine handles.
const OrganizerKindEpisode = "episode"

// SmartMatchInfo is a learned alias set for one catalog series.
type SmartMatchInfo struct {
	ItemName      string   `json:"item_name"`
	OrganizerKind string   `json:"organizer_kind"`
	DisplayName   string   `json:"display_name"`
	MatchStrings  []string `json:"match_strings"`
}

// TVOptions holds the settings that drive episode organization.
type TVOptions struct {
	LibraryPaths              []string `json:"library_paths"`
	DefaultSeriesLibraryPath  string   `json:"default_series_library_path"`
	AutoDetectSeries          bool     `json:"auto_detect_series"`
	CopyOriginalFile          bool     `json:"copy_original_file"`
	OverwriteExistingEpisodes bool     `json:"overwrite_existing_episodes"`
	MinFileSizeMB             int      `json:"min_file_size_mb"`
	SeriesFolderPattern       string   `json:"series_folder_pattern"`
	SeasonFolderPattern       string   `json:"season_folder_pattern"`
	SeasonZeroFolderName      string   `json:"season_zero_folder_name"`
	EpisodeNamePattern        string   `json:"episode_name_pattern"`
	MultiEpisodeNamePattern   string   `json:"multi_episode_name_pattern"`
}

// ProviderSettings configures the remote metadata sources.
type ProviderSettings struct {
	TMDBAPIKey  string `json:"tmdb_api_key"`
	EnableTMDB  bool   `json:"enable_tmdb"`
	TVDBAPIKey  string `json:"tvdb_api_key"`
	EnableTVDB  bool   `json:"enable_tvdb"`
	OMDBAPIKey  string `json:"omdb_api_key"`
	EnableOMDB  bool   `json:"enable_omdb"`
	Language    string `json:"language"`
	CacheHours  int    `json:"cache_hours"`
	RateLimitPS int    `json:"rate_limit_per_second"`
}

// LoggingSettings configures the process log and the operation journal.
type LoggingSettings struct {
	Level          string `json:"level"`
	File           string `json:"file"`
	EnableJournal  bool   `json:"enable_journal"`
	RetentionDays  int    `json:"retention_days"`
	ConsoleNoColor bool   `json:"console_no_color"`
}

// StoreSettings locates the result database.
type StoreSettings struct {
	DatabasePath string `json:"database_path"`
}

// Config is the persisted application configuration.
type Config struct {
	TV           TVOptions        `json:"tv"`
	SmartMatches []SmartMatchInfo `json:"smart_matches"`
	Providers    ProviderSettings `json:"providers"`
	Logging      LoggingSettings  `json:"logging"`
	Store        StoreSettings    `json:"store"`
	Workers      int              `json:"workers"`

	path string
	mu   sync.Mutex
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TV: TVOptions{
			LibraryPaths:            []string{},
			AutoDetectSeries:        true,
			MinFileSizeMB:           50,
			SeriesFolderPattern:     "%fn",
			SeasonFolderPattern:     "Season %s",
			SeasonZeroFolderName:    "Season 0",
			EpisodeNamePattern:      "%sn - %sx%0e - %en.%ext",
			MultiEpisodeNamePattern: "%sn - %sx%0e-x%0ed - %en.%ext",
		},
		SmartMatches: []SmartMatchInfo{},
		Providers: ProviderSettings{
			EnableTMDB:  true,
			Language:    "en-US",
			CacheHours:  24,
			RateLimitPS: 4,
		},
		Logging: LoggingSettings{
			Level:         "info",
			EnableJournal: true,
			RetentionDays: 30,
		},
		Workers: 4,
	}
}

// Dir returns the application state directory.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tidy-sort"), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from path. An empty path means ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.path = path
	cfg.fillDefaults()
	return &cfg, nil
}

func (cfg *Config) fillDefaults() {
	defaults := DefaultConfig()

	if cfg.TV.LibraryPaths == nil {
		cfg.TV.LibraryPaths = []string{}
	}
	if cfg.TV.SeriesFolderPattern == "" {
		cfg.TV.SeriesFolderPattern = defaults.TV.SeriesFolderPattern
	}
	if cfg.TV.SeasonFolderPattern == "" {
		cfg.TV.SeasonFolderPattern = defaults.TV.SeasonFolderPattern
	}
	if cfg.TV.SeasonZeroFolderName == "" {
		cfg.TV.SeasonZeroFolderName = defaults.TV.SeasonZeroFolderName
	}
	if cfg.TV.EpisodeNamePattern == "" {
		cfg.TV.EpisodeNamePattern = defaults.TV.EpisodeNamePattern
	}
	if cfg.TV.MultiEpisodeNamePattern == "" {
		cfg.TV.MultiEpisodeNamePattern = defaults.TV.MultiEpisodeNamePattern
	}
	if cfg.SmartMatches == nil {
		cfg.SmartMatches = []SmartMatchInfo{}
	}
	if cfg.Providers.Language == "" {
		cfg.Providers.Language = defaults.Providers.Language
	}
	if cfg.Providers.CacheHours == 0 {
		cfg.Providers.CacheHours = defaults.Providers.CacheHours
	}
	if cfg.Providers.RateLimitPS == 0 {
		cfg.Providers.RateLimitPS = defaults.Providers.RateLimitPS
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.RetentionDays == 0 {
		cfg.Logging.RetentionDays = defaults.Logging.RetentionDays
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
}

// Path returns the file the configuration was loaded from.
func (cfg *Config) Path() string {
	return cfg.path
}

// SetPath changes where Save writes.
func (cfg *Config) SetPath(path string) {
	cfg.path = path
}

// Save writes the configuration to disk. Writers in other processes are
// excluded by an advisory lock next to the file.
func (cfg *Config) Save() error {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	return cfg.saveLocked()
}

func (cfg *Config) saveLocked() error {
	path := cfg.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
		cfg.path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SmartMatchTable returns a copy of the learned alias table.
func (cfg *Config) SmartMatchTable() []SmartMatchInfo {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	out := make([]SmartMatchInfo, len(cfg.SmartMatches))
	for i, info := range cfg.SmartMatches {
		info.MatchStrings = append([]string(nil), info.MatchStrings...)
		out[i] = info
	}
	return out
}

// RememberMatch records match as an alias of seriesName and saves the
// configuration. It reports whether the table changed. Strings shorter than
// three characters are ignored.
func (cfg *Config) RememberMatch(seriesName, match string) (bool, error) {
	match = strings.TrimSpace(match)
	if len(match) < 3 || seriesName == "" {
		return false, nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	idx := -1
	for i := range cfg.SmartMatches {
		if strings.EqualFold(cfg.SmartMatches[i].ItemName, seriesName) {
			idx = i
			break
		}
	}
	if idx == -1 {
		cfg.SmartMatches = append(cfg.SmartMatches, SmartMatchInfo{
			ItemName:      seriesName,
			DisplayName:   seriesName,
			OrganizerKind: OrganizerKindEpisode,
		})
		idx = len(cfg.SmartMatches) - 1
	}

	info := &cfg.SmartMatches[idx]
	for _, existing := range info.MatchStrings {
		if strings.EqualFold(existing, match) {
			return false, nil
		}
	}
	info.MatchStrings = append(info.MatchStrings, match)

	if err := cfg.saveLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// DatabasePath returns the configured result database, defaulting to the
// state directory.
func (cfg *Config) DatabasePath() (string, error) {
	if cfg.Store.DatabasePath != "" {
		return cfg.Store.DatabasePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tidy-sort.db"), nil
}

// LogFilePath returns the process log file location.
func (cfg *Config) LogFilePath() (string, error) {
	if cfg.Logging.File != "" {
		return cfg.Logging.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "tidy-sort.log"), nil
}

// CachePath returns the provider response cache file.
func (cfg *Config) CachePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache", "remote.gob"), nil
}

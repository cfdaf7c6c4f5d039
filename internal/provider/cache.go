package provider

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

func init() {
	gob.Register([]SeriesCandidate{})
	gob.Register([]EpisodeCandidate{})
}

// Cache is a Searcher that remembers non-empty answers of another Searcher.
// The entries can be persisted to a gob file between runs.
type Cache struct {
	next  Searcher
	cache *cache.Cache
	file  string
}

// NewCache wraps next. Entries expire after ttl. When file is non-empty the
// cache is loaded from it and SaveCache writes it back.
func NewCache(next Searcher, ttl time.Duration, file string) *Cache {
	c := &Cache{
		next:  next,
		cache: cache.New(ttl, 10*time.Minute),
		file:  file,
	}
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			_ = c.cache.LoadFile(file)
		}
	}
	return c
}

// SearchSeries implements Searcher.
func (c *Cache) SearchSeries(ctx context.Context, query SeriesQuery) ([]SeriesCandidate, error) {
	key := seriesCacheKey(query)
	if cached, found := c.cache.Get(key); found {
		if results, ok := cached.([]SeriesCandidate); ok {
			return results, nil
		}
	}

	results, err := c.next.SearchSeries(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		c.cache.Set(key, results, cache.DefaultExpiration)
	}
	return results, nil
}

// SearchEpisode implements Searcher.
func (c *Cache) SearchEpisode(ctx context.Context, query EpisodeQuery) ([]EpisodeCandidate, error) {
	key := episodeCacheKey(query)
	if cached, found := c.cache.Get(key); found {
		if results, ok := cached.([]EpisodeCandidate); ok {
			return results, nil
		}
	}

	results, err := c.next.SearchEpisode(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		c.cache.Set(key, results, cache.DefaultExpiration)
	}
	return results, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.cache.Flush()
}

// SaveCache persists the cache to disk
func (c *Cache) SaveCache() error {
	if c.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return c.cache.SaveFile(c.file)
}

func seriesCacheKey(query SeriesQuery) string {
	return fmt.Sprintf("series:%s:%d", strings.ToLower(strings.TrimSpace(query.Name)), query.Year)
}

func episodeCacheKey(query EpisodeQuery) string {
	keys := make([]string, 0, len(query.SeriesProviderIDs))
	for k, v := range query.SeriesProviderIDs {
		if v != "" {
			keys = append(keys, k+"="+v)
		}
	}
	sort.Strings(keys)

	parts := []string{
		"episode",
		strings.Join(keys, ","),
		optionalInt(query.Season),
		optionalInt(query.Episode),
		optionalInt(query.EndingEpisode),
	}
	if query.PremiereDate != nil {
		parts = append(parts, query.PremiereDate.Format("2006-01-02"))
	}
	return strings.Join(parts, ":")
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

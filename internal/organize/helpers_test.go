package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/fsutil"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/rs/zerolog"
)

type mockSearcher struct {
	searchSeriesFunc  func(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error)
	searchEpisodeFunc func(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error)
}

func (m *mockSearcher) SearchSeries(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	if m.searchSeriesFunc != nil {
		return m.searchSeriesFunc(ctx, query)
	}
	return nil, nil
}

func (m *mockSearcher) SearchEpisode(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	if m.searchEpisodeFunc != nil {
		return m.searchEpisodeFunc(ctx, query)
	}
	return echoEpisode("Pilot")(ctx, query)
}

// echoEpisode answers every numbered lookup with the queried numbers.
func echoEpisode(title string) func(context.Context, provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	return func(_ context.Context, q provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
		if q.Season == nil || q.Episode == nil {
			return nil, nil
		}
		return []provider.EpisodeCandidate{{Name: title, Season: *q.Season, Episode: *q.Episode}}, nil
	}
}

type memResults struct {
	mu    sync.Mutex
	byID  map[string]*Result
	saves int
	next  int
}

func newMemResults() *memResults {
	return &memResults{byID: make(map[string]*Result)}
}

func (m *memResults) GetBySourcePath(_ context.Context, path string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.OriginalPath == path {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memResults) GetByID(_ context.Context, id string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

func (m *memResults) Save(_ context.Context, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result.ID == "" {
		m.next++
		result.ID = fmt.Sprintf("result-%d", m.next)
	}
	m.saves++
	m.byID[result.ID] = result.Clone()
	return nil
}

func (m *memResults) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type memRegistry struct {
	mu     sync.Mutex
	active map[string]bool
}

func newMemRegistry() *memRegistry {
	return &memRegistry{active: make(map[string]bool)}
}

func (r *memRegistry) TryBegin(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[path] {
		return false
	}
	r.active[path] = true
	return true
}

func (r *memRegistry) End(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, path)
}

type mockMatches struct {
	mu         sync.Mutex
	table      []config.SmartMatchInfo
	remembered [][2]string
}

func (m *mockMatches) SmartMatchTable() []config.SmartMatchInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]config.SmartMatchInfo(nil), m.table...)
}

func (m *mockMatches) RememberMatch(seriesName, match string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered = append(m.remembered, [2]string{seriesName, match})
	return true, nil
}

// recordingMonitor counts change notifications per path.
type recordingMonitor struct {
	mu        sync.Mutex
	begun     map[string]int
	completed map[string]int
	locked    map[string]bool
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{
		begun:     make(map[string]int),
		completed: make(map[string]int),
		locked:    make(map[string]bool),
	}
}

func (m *recordingMonitor) BeginChange(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begun[path]++
}

func (m *recordingMonitor) CompleteChange(path string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[path]++
}

func (m *recordingMonitor) IsLocked(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[path]
}

func (m *recordingMonitor) balanced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.begun) != len(m.completed) {
		return false
	}
	for path, n := range m.begun {
		if m.completed[path] != n {
			return false
		}
	}
	return true
}

func testTV(libraryRoot string) config.TVOptions {
	return config.TVOptions{
		LibraryPaths:             []string{libraryRoot},
		DefaultSeriesLibraryPath: libraryRoot,
		SeriesFolderPattern:      "%fn",
		SeasonFolderPattern:      "Season %0s",
		SeasonZeroFolderName:     "Specials",
		EpisodeNamePattern:       "%sn S%0sE%0e.%ext",
		MultiEpisodeNamePattern:  "%sn S%0sE%0e-E%0ed.%ext",
	}
}

// writeFile creates path with content, making parent folders.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newLibrary creates entries under a fresh library root and scans it.
// Entries ending in "/" are folders, everything else is a file.
func newLibrary(t *testing.T, entries ...string) (string, *catalog.Catalog) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "library")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", root, err)
	}
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if strings.HasSuffix(entry, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatalf("MkdirAll(%s): %v", path, err)
			}
			continue
		}
		writeFile(t, path, "video:"+entry)
	}

	cat := catalog.New(catalog.Options{Roots: []string{root}, Logger: zerolog.Nop()})
	if err := cat.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return root, cat
}

func seriesNamed(t *testing.T, cat *catalog.Catalog, name string) catalog.Series {
	t.Helper()
	found := cat.ListSeries(catalog.Filter{Name: name})
	if len(found) != 1 {
		t.Fatalf("ListSeries(%q) returned %d series, want 1", name, len(found))
	}
	return found[0]
}

func testFS() *fsutil.OS {
	return fsutil.NewOS(nil)
}

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/rs/zerolog"
)

type fakeSearcher struct {
	searchSeriesFunc  func(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error)
	searchEpisodeFunc func(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error)
	saved             int
}

func (f *fakeSearcher) SearchSeries(ctx context.Context, query provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	if f.searchSeriesFunc == nil {
		return nil, nil
	}
	return f.searchSeriesFunc(ctx, query)
}

func (f *fakeSearcher) SearchEpisode(ctx context.Context, query provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	if f.searchEpisodeFunc != nil {
		return f.searchEpisodeFunc(ctx, query)
	}
	if query.Season == nil || query.Episode == nil {
		return nil, nil
	}
	return []provider.EpisodeCandidate{{Name: "Pilot", Season: *query.Season, Episode: *query.Episode}}, nil
}

func (f *fakeSearcher) SaveCache() error {
	f.saved++
	return nil
}

type cliEnv struct {
	home       string
	library    string
	downloads  string
	configPath string
	searcher   *fakeSearcher
}

// setupCLI points HOME at a temporary directory and writes a configuration
// with one library folder and short naming patterns.
func setupCLI(t *testing.T, libraryEntries ...string) *cliEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	env := &cliEnv{
		home:       home,
		library:    filepath.Join(home, "library"),
		downloads:  filepath.Join(home, "downloads"),
		configPath: filepath.Join(home, "config.json"),
		searcher:   &fakeSearcher{},
	}
	for _, dir := range []string{env.library, env.downloads} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, entry := range libraryEntries {
		writeEntry(t, env.library, entry)
	}

	cfg := config.DefaultConfig()
	cfg.TV.LibraryPaths = []string{env.library}
	cfg.TV.DefaultSeriesLibraryPath = env.library
	cfg.TV.MinFileSizeMB = 0
	cfg.TV.SeasonFolderPattern = "Season %0s"
	cfg.TV.EpisodeNamePattern = "%sn S%0sE%0e.%ext"
	cfg.TV.MultiEpisodeNamePattern = "%sn S%0sE%0e-E%0ed.%ext"
	cfg.Logging.Level = "error"
	cfg.Logging.ConsoleNoColor = true
	cfg.SetPath(env.configPath)
	if err := cfg.Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return env
}

// writeEntry creates a directory for entries ending in "/" and a small file
// otherwise.
func writeEntry(t *testing.T, root, entry string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(entry))
	if strings.HasSuffix(entry, "/") {
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatal(err)
		}
		return path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video:"+entry), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (env *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cc := newCommandContext()
	cc.newSearcher = func(*config.Config, zerolog.Logger) (remoteSearcher, error) {
		return env.searcher, nil
	}
	cmd := newRootCommand(cc)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliEnv) loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireExists(t *testing.T, path string, want bool) {
	t.Helper()
	_, err := os.Stat(path)
	if got := err == nil; got != want {
		t.Fatalf("exists(%s) = %v, want %v", path, got, want)
	}
}

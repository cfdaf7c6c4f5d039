package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/store"
	"github.com/google/go-cmp/cmp"
)

func TestOrganizeCommand(t *testing.T) {
	env := setupCLI(t, "Show/Season 01/")
	src := writeEntry(t, env.downloads, "Show.S01E02.720p.mkv")
	writeEntry(t, env.downloads, "notes.txt")

	stdout, _, err := env.run(t, "organize", env.downloads)
	if err != nil {
		t.Fatalf("organize: %v\n%s", err, stdout)
	}
	requireContains(t, stdout, "1 files: 1 sorted, 0 skipped, 0 failed")

	target := filepath.Join(env.library, "Show", "Season 01", "Show S01E02.mkv")
	requireContains(t, stdout, target)
	requireExists(t, target, true)
	requireExists(t, src, false)
	if env.searcher.saved == 0 {
		t.Error("provider cache was not saved")
	}

	stdout, _, err = env.run(t, "results")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	requireContains(t, stdout, "Show.S01E02.720p.mkv")
	requireContains(t, stdout, "Success")

	stdout, _, err = env.run(t, "journal")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	requireContains(t, stdout, "tidy-sort organize")
}

func TestOrganizeCommandNothingFound(t *testing.T) {
	env := setupCLI(t, "Show/")
	writeEntry(t, env.downloads, "readme.nfo")

	stdout, _, err := env.run(t, "organize", env.downloads)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	requireContains(t, stdout, "No episode files found.")
}

func TestOrganizeCommandMissingPath(t *testing.T) {
	env := setupCLI(t)
	if _, _, err := env.run(t, "organize", filepath.Join(env.home, "missing")); err == nil {
		t.Fatal("organize of a missing path succeeded")
	}
}

func TestCorrectCommand(t *testing.T) {
	env := setupCLI(t, "Show/")
	src := writeEntry(t, env.downloads, "Unknwn.S01E03.mkv")

	stdout, _, err := env.run(t, "organize", src)
	if err == nil {
		t.Fatalf("organize of an unknown series succeeded:\n%s", stdout)
	}
	requireContains(t, stdout, "Unable to find series in library matching name Unknwn")
	requireExists(t, src, true)

	resultID := store.ResultID(src)
	seriesID := catalog.SeriesID(filepath.Join(env.library, "Show"))

	stdout, _, err = env.run(t, "correct", resultID, "--series-id", seriesID, "--remember")
	if err != nil {
		t.Fatalf("correct: %v\n%s", err, stdout)
	}
	target := filepath.Join(env.library, "Show", "Season 01", "Show S01E03.mkv")
	requireContains(t, stdout, "Success")
	requireExists(t, target, true)
	requireExists(t, src, false)

	cfg := env.loadConfig(t)
	var aliases []string
	for _, m := range cfg.SmartMatches {
		if m.ItemName == "Show" {
			aliases = m.MatchStrings
		}
	}
	if diff := cmp.Diff([]string{"Unknwn"}, aliases); diff != "" {
		t.Errorf("remembered aliases mismatch (-want +got):\n%s", diff)
	}

	next := writeEntry(t, env.downloads, "Unknwn.S01E04.mkv")
	if stdout, _, err := env.run(t, "organize", next); err != nil {
		t.Fatalf("organize with remembered alias: %v\n%s", err, stdout)
	}
	requireExists(t, filepath.Join(env.library, "Show", "Season 01", "Show S01E04.mkv"), true)
}

func TestCorrectCommandNewSeries(t *testing.T) {
	env := setupCLI(t)
	src := writeEntry(t, env.downloads, "Brand.New.Show.S02E01.mkv")

	if _, _, err := env.run(t, "organize", src); err == nil {
		t.Fatal("organize without a library series succeeded")
	}

	stdout, _, err := env.run(t, "correct", store.ResultID(src),
		"--new-series", "Brand New Show", "--year", "2021", "--provider-id", "tmdb=42")
	if err != nil {
		t.Fatalf("correct: %v\n%s", err, stdout)
	}
	requireExists(t, filepath.Join(env.library, "Brand New Show (2021)", "Season 02", "Brand New Show S02E01.mkv"), true)

	stdout, _, err = env.run(t, "library")
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	requireContains(t, stdout, "Brand New Show")
	requireContains(t, stdout, "tmdb=42")
}

func TestCorrectCommandInvalid(t *testing.T) {
	env := setupCLI(t, "Show/")

	tests := []struct {
		name string
		args []string
	}{
		{name: "NoSeries", args: []string{"correct", "some-id"}},
		{name: "BadProviderID", args: []string{"correct", "some-id", "--new-series", "X", "--provider-id", "tmdb"}},
		{name: "UnknownResult", args: []string{"correct", "some-id", "--series-id", "abc"}},
		{name: "BothSeriesFlags", args: []string{"correct", "some-id", "--series-id", "abc", "--new-series", "X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := env.run(t, tt.args...); err == nil {
				t.Errorf("%v succeeded, want error", tt.args)
			}
		})
	}
}

func TestCollectSources(t *testing.T) {
	root := t.TempDir()
	library := filepath.Join(root, "library")
	write := func(rel string, size int) string {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	big := write("in/Show.S01E01.mkv", 64)
	nested := write("in/pack/Show.S01E02.mp4", 64)
	write("in/small/Show.S01E03.mkv", 4)
	write("in/Show.S01E01.sample.mkv", 64)
	write("in/._Show.S01E04.mkv", 64)
	write("in/Show.S01E01.srt", 64)
	write("library/Show/Show.S01E05.mkv", 64)
	single := write("other/Show.S01E06.avi", 64)

	got, err := collectSources(context.Background(),
		[]string{filepath.Join(root, "in"), single, big, filepath.Join(root, "library")},
		16, []string{library})
	if err != nil {
		t.Fatalf("collectSources: %v", err)
	}
	want := []string{big, nested, single}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collectSources() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProviderIDs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "Empty", pairs: nil, want: nil},
		{name: "Pairs", pairs: []string{"TMDB=2316", " tvdb = 73244 "}, want: map[string]string{"tmdb": "2316", "tvdb": "73244"}},
		{name: "MissingValue", pairs: []string{"tmdb="}, wantErr: true},
		{name: "NoSeparator", pairs: []string{"2316"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProviderIDs(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProviderIDs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseProviderIDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

package organize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
)

type engineFixture struct {
	root     string
	inbox    string
	catalog  *catalog.Catalog
	results  *memResults
	registry *memRegistry
	monitor  *recordingMonitor
	matches  *mockMatches
	searcher *mockSearcher
	engine   *Engine
}

// stepClock returns a clock advancing one minute per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newEngineFixture(t *testing.T, adjust func(tv *config.TVOptions), entries ...string) *engineFixture {
	t.Helper()
	root, cat := newLibrary(t, entries...)
	inbox := filepath.Join(filepath.Dir(root), "in")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", inbox, err)
	}

	tv := testTV(root)
	if adjust != nil {
		adjust(&tv)
	}

	f := &engineFixture{
		root:     root,
		inbox:    inbox,
		catalog:  cat,
		results:  newMemResults(),
		registry: newMemRegistry(),
		monitor:  newRecordingMonitor(),
		matches:  &mockMatches{},
		searcher: &mockSearcher{},
	}
	f.engine = NewEngine(Options{
		Catalog:  cat,
		Searcher: f.searcher,
		Results:  f.results,
		Registry: f.registry,
		Matches:  f.matches,
		FS:       testFS(),
		Monitor:  f.monitor,
		TV:       tv,
		Logger:   zerolog.Nop(),
		Now:      stepClock(),
	})
	t.Cleanup(f.engine.Wait)
	return f
}

func (f *engineFixture) source(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.inbox, name)
	writeFile(t, path, body)
	return path
}

func (f *engineFixture) stored(t *testing.T, path string) *Result {
	t.Helper()
	r, err := f.results.GetBySourcePath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetBySourcePath(%s) error = %v", path, err)
	}
	return r
}

var ignoreIdentity = cmpopts.IgnoreFields(Result{}, "ID", "Date")

func TestOrganizeFile(t *testing.T) {
	f := newEngineFixture(t, nil, "Show Name/Season 01/Show Name S01E01.mkv")
	src := f.source(t, "Show.Name.S01E02.mkv", "episode two")

	got, err := f.engine.OrganizeFile(context.Background(), src, false)
	if err != nil {
		t.Fatalf("OrganizeFile() error = %v", err)
	}

	target := filepath.Join(f.root, "Show Name", "Season 01", "Show Name S01E02.mkv")
	want := &Result{
		OriginalPath:     src,
		OriginalFileName: "Show.Name.S01E02.mkv",
		FileSize:         int64(len("episode two")),
		Kind:             KindEpisode,
		ExtractedName:    "Show Name",
		ExtractedSeason:  intPtr(1),
		ExtractedEpisode: intPtr(2),
		TargetPath:       target,
		Status:           StatusSuccess,
	}
	if diff := cmp.Diff(want, got, ignoreIdentity); diff != "" {
		t.Errorf("OrganizeFile() mismatch (-want +got):\n%s", diff)
	}
	if got.ID == "" {
		t.Error("result has no id")
	}
	if diff := cmp.Diff(got, f.stored(t, src)); diff != "" {
		t.Errorf("stored result mismatch (-want +got):\n%s", diff)
	}
	if exists(src) {
		t.Error("source still present after move")
	}
	if body := readFile(t, target); body != "episode two" {
		t.Errorf("target content = %q", body)
	}
	if !f.monitor.balanced() {
		t.Errorf("monitor changes unbalanced: begun %v completed %v", f.monitor.begun, f.monitor.completed)
	}
}

func TestOrganizeFileMultiEpisode(t *testing.T) {
	f := newEngineFixture(t, nil, "Show/")
	src := f.source(t, "Show.S02E03-E05.HDTV.mkv", "triple")

	got, err := f.engine.OrganizeFile(context.Background(), src, false)
	if err != nil {
		t.Fatalf("OrganizeFile() error = %v", err)
	}
	want := filepath.Join(f.root, "Show", "Season 02", "Show S02E03-E05.mkv")
	if diff := cmp.Diff(want, got.TargetPath); diff != "" {
		t.Errorf("TargetPath mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(intPtr(5), got.ExtractedEndingEpisode); diff != "" {
		t.Errorf("ExtractedEndingEpisode mismatch (-want +got):\n%s", diff)
	}
}

func TestOrganizeFileIdempotent(t *testing.T) {
	f := newEngineFixture(t, func(tv *config.TVOptions) { tv.CopyOriginalFile = true }, "Show Name/")
	src := f.source(t, "Show.Name.S01E02.mkv", "episode two")
	target := filepath.Join(f.root, "Show Name", "Season 01", "Show Name S01E02.mkv")

	first, err := f.engine.OrganizeFile(context.Background(), src, false)
	if err != nil || first.Status != StatusSuccess {
		t.Fatalf("first OrganizeFile() = %v, %v; want success", first, err)
	}

	second, err := f.engine.OrganizeFile(context.Background(), src, false)
	if err != nil {
		t.Fatalf("second OrganizeFile() error = %v", err)
	}
	if second.Status != StatusSkippedExisting {
		t.Errorf("second Status = %q, want %q", second.Status, StatusSkippedExisting)
	}
	wantMsg := "File '" + src + "' already copied to new path '" + target + "', stopping organization"
	if diff := cmp.Diff(wantMsg, second.StatusMessage); diff != "" {
		t.Errorf("second StatusMessage mismatch (-want +got):\n%s", diff)
	}
	if second.ID != first.ID {
		t.Errorf("second ID = %s, want %s", second.ID, first.ID)
	}
	saves := f.results.saveCount()

	third, err := f.engine.OrganizeFile(context.Background(), src, false)
	if err != nil {
		t.Fatalf("third OrganizeFile() error = %v", err)
	}
	if diff := cmp.Diff(second, third); diff != "" {
		t.Errorf("repeated outcome replaced the stored result (-want +got):\n%s", diff)
	}
	if got := f.results.saveCount(); got != saves {
		t.Errorf("saves = %d, want %d", got, saves)
	}
}

func TestOrganizeFileFailures(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantKind error
		wantMsg  func(src string) string
	}{
		{
			name:     "NoEpisodeNumber",
			file:     "Episode 7.mp4",
			wantKind: ErrExtraction,
			wantMsg:  func(src string) string { return "Unable to determine episode number from " + src },
		},
		{
			name:     "UnknownSeries",
			file:     "Unknown.Show.S01E01.mkv",
			wantKind: ErrResolution,
			wantMsg:  func(string) string { return "Unable to find series in library matching name Unknown Show" },
		},
		{
			name:     "NoMetadata",
			file:     "Show.Name.S01E99.mkv",
			wantKind: ErrMetadata,
			wantMsg:  func(string) string { return "No provider metadata found for Show Name season 1 episode 99" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, nil, "Show Name/")
			f.searcher.searchEpisodeFunc = func(ctx context.Context, q provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
				if q.Episode != nil && *q.Episode == 99 {
					return nil, nil
				}
				return echoEpisode("Pilot")(ctx, q)
			}
			src := f.source(t, tt.file, "body")

			got, err := f.engine.OrganizeFile(context.Background(), src, false)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("OrganizeFile() error = %v, want %v", err, tt.wantKind)
			}
			if got.Status != StatusFailure {
				t.Errorf("Status = %q, want %q", got.Status, StatusFailure)
			}
			if diff := cmp.Diff(tt.wantMsg(src), got.StatusMessage); diff != "" {
				t.Errorf("StatusMessage mismatch (-want +got):\n%s", diff)
			}
			stored := f.stored(t, src)
			if stored == nil || stored.StatusMessage != got.StatusMessage {
				t.Errorf("stored result = %+v, want the failure", stored)
			}
			if !exists(src) {
				t.Error("source moved on failure")
			}
		})
	}
}

func TestOrganizeFileSuppressesRepeatedFailure(t *testing.T) {
	f := newEngineFixture(t, nil, "Show Name/")
	src := f.source(t, "Unknown.Show.S01E01.mkv", "body")

	first, err := f.engine.OrganizeFile(context.Background(), src, false)
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("first OrganizeFile() error = %v, want ErrResolution", err)
	}
	second, err := f.engine.OrganizeFile(context.Background(), src, false)
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("second OrganizeFile() error = %v, want ErrResolution", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated failure replaced the stored result (-want +got):\n%s", diff)
	}
	if got := f.results.saveCount(); got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}
}

func TestOrganizeFileGuards(t *testing.T) {
	t.Run("Locked", func(t *testing.T) {
		f := newEngineFixture(t, nil, "Show Name/")
		src := f.source(t, "Show.Name.S01E02.mkv", "body")
		f.monitor.locked[src] = true

		got, err := f.engine.OrganizeFile(context.Background(), src, false)
		if !errors.Is(err, ErrPathLocked) {
			t.Fatalf("OrganizeFile() error = %v, want ErrPathLocked", err)
		}
		if diff := cmp.Diff(lockedMessage, got.StatusMessage); diff != "" {
			t.Errorf("StatusMessage mismatch (-want +got):\n%s", diff)
		}
		if n := f.results.saveCount(); n != 0 {
			t.Errorf("saves = %d, want 0", n)
		}
		if !exists(src) {
			t.Error("locked source moved")
		}
	})

	t.Run("Busy", func(t *testing.T) {
		f := newEngineFixture(t, nil, "Show Name/")
		src := f.source(t, "Show.Name.S01E02.mkv", "body")
		f.registry.TryBegin(src)

		got, err := f.engine.OrganizeFile(context.Background(), src, false)
		if !errors.Is(err, ErrBusy) {
			t.Fatalf("OrganizeFile() error = %v, want ErrBusy", err)
		}
		if diff := cmp.Diff(busyMessage, got.StatusMessage); diff != "" {
			t.Errorf("StatusMessage mismatch (-want +got):\n%s", diff)
		}
		if n := f.results.saveCount(); n != 0 {
			t.Errorf("saves = %d, want 0", n)
		}
		if !exists(src) {
			t.Error("busy source moved")
		}
	})

	t.Run("CanceledStillPersists", func(t *testing.T) {
		f := newEngineFixture(t, nil, "Show Name/")
		src := f.source(t, "Show.Name.S01E02.mkv", "body")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.engine.OrganizeFile(ctx, src, false)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("OrganizeFile() error = %v, want context.Canceled", err)
		}
		stored := f.stored(t, src)
		if stored == nil || stored.Status != StatusFailure {
			t.Errorf("stored result = %+v, want a failure", stored)
		}
		if !exists(src) {
			t.Error("source moved after cancellation")
		}
	})
}

func TestOrganizeWithCorrection(t *testing.T) {
	t.Run("ExistingSeries", func(t *testing.T) {
		f := newEngineFixture(t, nil, "Show Name/Season 01/")
		src := f.source(t, "Wrong.Name.S01E02.mkv", "body")

		failed, err := f.engine.OrganizeFile(context.Background(), src, false)
		if !errors.Is(err, ErrResolution) {
			t.Fatalf("OrganizeFile() error = %v, want ErrResolution", err)
		}

		series := seriesNamed(t, f.catalog, "Show Name")
		got, err := f.engine.OrganizeWithCorrection(context.Background(), CorrectionRequest{
			ResultID:           failed.ID,
			SeriesID:           series.ID,
			RememberCorrection: true,
		})
		if err != nil {
			t.Fatalf("OrganizeWithCorrection() error = %v", err)
		}

		target := filepath.Join(f.root, "Show Name", "Season 01", "Show Name S01E02.mkv")
		if got.ID != failed.ID {
			t.Errorf("ID = %s, want %s", got.ID, failed.ID)
		}
		if got.Status != StatusSuccess || got.TargetPath != target {
			t.Errorf("result = %q %q, want success at %s", got.Status, got.TargetPath, target)
		}
		if !exists(target) {
			t.Errorf("target %s missing", target)
		}
		if diff := cmp.Diff([][2]string{{"Show Name", "Wrong Name"}}, f.matches.remembered); diff != "" {
			t.Errorf("remembered mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("NewSeriesWithNumbers", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		src := f.source(t, "Wrong.Name.S01E02.mkv", "body")
		failed, _ := f.engine.OrganizeFile(context.Background(), src, false)

		got, err := f.engine.OrganizeWithCorrection(context.Background(), CorrectionRequest{
			ResultID:             failed.ID,
			NewSeriesName:        "Brand New",
			NewSeriesYear:        2024,
			NewSeriesProviderIDs: map[string]string{"tmdb": "42"},
			Season:               intPtr(3),
			Episode:              intPtr(4),
		})
		if err != nil {
			t.Fatalf("OrganizeWithCorrection() error = %v", err)
		}
		f.engine.Wait()

		seriesPath := filepath.Join(f.root, "Brand New (2024)")
		target := filepath.Join(seriesPath, "Season 03", "Brand New S03E04.mkv")
		if diff := cmp.Diff(target, got.TargetPath); diff != "" {
			t.Errorf("TargetPath mismatch (-want +got):\n%s", diff)
		}
		if !exists(target) {
			t.Errorf("target %s missing", target)
		}
		series, ok := f.catalog.FindByPath(seriesPath)
		if !ok {
			t.Fatalf("catalog has no series at %s", seriesPath)
		}
		if diff := cmp.Diff(map[string]string{"tmdb": "42"}, series.ProviderIDs); diff != "" {
			t.Errorf("ProviderIDs mismatch (-want +got):\n%s", diff)
		}
		if len(f.matches.remembered) != 0 {
			t.Errorf("remembered %v without being asked", f.matches.remembered)
		}
	})

	t.Run("OverwritesExistingAndDuplicates", func(t *testing.T) {
		f := newEngineFixture(t, nil,
			"Show Name/Season 01/Show Name S01E02.mkv",
			"Show Name/Season 01/Show.Name.S01E02.720p.mkv",
		)
		src := f.source(t, "Show.Name.S01E02.mkv", "better copy")
		target := filepath.Join(f.root, "Show Name", "Season 01", "Show Name S01E02.mkv")
		dup := filepath.Join(f.root, "Show Name", "Season 01", "Show.Name.S01E02.720p.mkv")

		skipped, err := f.engine.OrganizeFile(context.Background(), src, false)
		if err != nil {
			t.Fatalf("OrganizeFile() error = %v", err)
		}
		if skipped.Status != StatusSkippedExisting {
			t.Fatalf("Status = %q, want %q", skipped.Status, StatusSkippedExisting)
		}

		got, err := f.engine.OrganizeWithCorrection(context.Background(), CorrectionRequest{
			ResultID: skipped.ID,
			SeriesID: seriesNamed(t, f.catalog, "Show Name").ID,
		})
		if err != nil {
			t.Fatalf("OrganizeWithCorrection() error = %v", err)
		}
		if got.Status != StatusSuccess {
			t.Errorf("Status = %q (%s), want %q", got.Status, got.StatusMessage, StatusSuccess)
		}
		if body := readFile(t, target); body != "better copy" {
			t.Errorf("target content = %q, want %q", body, "better copy")
		}
		if exists(dup) {
			t.Errorf("duplicate %s not removed", dup)
		}
		if exists(src) {
			t.Error("source kept after copying over the existing episode")
		}
	})

	t.Run("InvalidRequests", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		tests := []struct {
			name string
			req  CorrectionRequest
			want error
		}{
			{name: "MissingResult", req: CorrectionRequest{ResultID: "nope", SeriesID: "x"}, want: ErrNotFound},
			{name: "NoSeries", req: CorrectionRequest{ResultID: "nope"}, want: ErrInvalidInput},
			{name: "NoResultID", req: CorrectionRequest{SeriesID: "x"}, want: ErrInvalidInput},
			{name: "NewSeriesWithoutName", req: CorrectionRequest{ResultID: "nope", NewSeriesProviderIDs: map[string]string{"tmdb": "1"}}, want: ErrInvalidInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.engine.OrganizeWithCorrection(context.Background(), tt.req)
				if !errors.Is(err, tt.want) {
					t.Errorf("OrganizeWithCorrection() error = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("UnknownSeriesID", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		src := f.source(t, "Wrong.Name.S01E02.mkv", "body")
		failed, _ := f.engine.OrganizeFile(context.Background(), src, false)

		got, err := f.engine.OrganizeWithCorrection(context.Background(), CorrectionRequest{ResultID: failed.ID, SeriesID: "missing"})
		if !errors.Is(err, ErrResolution) {
			t.Fatalf("OrganizeWithCorrection() error = %v, want ErrResolution", err)
		}
		if got.Status != StatusFailure {
			t.Errorf("Status = %q, want %q", got.Status, StatusFailure)
		}
	})
}

// remoteShows is a provider that answers episode lookups by tmdb id only.
type remoteShows struct {
	mu       sync.Mutex
	shows    []provider.SeriesCandidate
	episodes []provider.EpisodeQuery
}

func (r *remoteShows) Name() string        { return "tmdb" }
func (r *remoteShows) Description() string { return "remote shows" }
func (r *remoteShows) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes: []provider.MediaType{provider.MediaTypeShow, provider.MediaTypeEpisode},
		IDKeys:     []string{provider.IDKeyTMDB},
	}
}
func (r *remoteShows) Configure(map[string]interface{}) error { return nil }
func (r *remoteShows) ConfigSchema() provider.ConfigSchema    { return provider.ConfigSchema{} }

func (r *remoteShows) SearchSeries(_ context.Context, q provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
	var out []provider.SeriesCandidate
	for _, s := range r.shows {
		if comparableName(s.Name) == comparableName(q.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *remoteShows) SearchEpisode(_ context.Context, q provider.EpisodeQuery) ([]provider.EpisodeCandidate, error) {
	r.mu.Lock()
	r.episodes = append(r.episodes, q)
	r.mu.Unlock()
	if q.SeriesProviderIDs[provider.IDKeyTMDB] == "" || q.Season == nil || q.Episode == nil {
		return nil, nil
	}
	return []provider.EpisodeCandidate{{Name: "Remote", Season: *q.Season, Episode: *q.Episode}}, nil
}

func (r *remoteShows) episodeLookups() []provider.EpisodeQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provider.EpisodeQuery(nil), r.episodes...)
}

func TestOrganizeFileFindsIDsForScannedSeries(t *testing.T) {
	tests := []struct {
		name       string
		shows      []provider.SeriesCandidate
		wantStatus Status
		wantErr    error
		wantIDs    map[string]string
	}{
		{
			name:       "UniqueMatch",
			shows:      []provider.SeriesCandidate{{Name: "Show Name", Year: 2019, ProviderIDs: map[string]string{"tmdb": "81"}}},
			wantStatus: StatusSuccess,
			wantIDs:    map[string]string{"tmdb": "81"},
		},
		{
			name: "AmbiguousMatch",
			shows: []provider.SeriesCandidate{
				{Name: "Show Name", Year: 2001, ProviderIDs: map[string]string{"tmdb": "1"}},
				{Name: "Show Name", Year: 2005, ProviderIDs: map[string]string{"tmdb": "2"}},
			},
			wantStatus: StatusFailure,
			wantErr:    ErrMetadata,
			wantIDs:    map[string]string{},
		},
		{
			name:       "NoMatch",
			wantStatus: StatusFailure,
			wantErr:    ErrMetadata,
			wantIDs:    map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, nil, "Show Name/Season 01/Show Name S01E01.mkv")
			remote := &remoteShows{shows: tt.shows}
			reg := provider.NewRegistry()
			if err := reg.Register("tmdb", remote, 100); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if err := reg.Enable("tmdb"); err != nil {
				t.Fatalf("Enable() error = %v", err)
			}
			f.engine = NewEngine(Options{
				Catalog:  f.catalog,
				Searcher: reg,
				Results:  f.results,
				Registry: f.registry,
				Matches:  f.matches,
				FS:       testFS(),
				Monitor:  f.monitor,
				TV:       testTV(f.root),
				Logger:   zerolog.Nop(),
				Now:      stepClock(),
			})
			t.Cleanup(f.engine.Wait)

			src := f.source(t, "Show.Name.S01E02.mkv", "episode two")
			got, err := f.engine.OrganizeFile(context.Background(), src, false)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("OrganizeFile() error = %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OrganizeFile() error = %v, want %v", err, tt.wantErr)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.wantStatus, got.StatusMessage)
			}
			if diff := cmp.Diff(tt.wantIDs, seriesNamed(t, f.catalog, "Show Name").ProviderIDs); diff != "" {
				t.Errorf("ProviderIDs mismatch (-want +got):\n%s", diff)
			}
			if tt.wantStatus == StatusSuccess && len(remote.episodeLookups()) != 1 {
				t.Errorf("episode lookups = %d, want 1", len(remote.episodeLookups()))
			}
		})
	}
}

package organize

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
	"github.com/Digital-Shane/tidy-sort/internal/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func newTestResolver(cat *catalog.Catalog, searcher provider.Searcher, matches SmartMatchStore, tv config.TVOptions) *Resolver {
	return NewResolver(ResolverConfig{
		Catalog:  cat,
		Searcher: searcher,
		Matches:  matches,
		FS:       testFS(),
		TV:       tv,
		Logger:   zerolog.Nop(),
	})
}

func TestResolveLibrary(t *testing.T) {
	root, cat := newLibrary(t,
		"Breaking Bad (2008)/Season 01/Breaking.Bad.S01E01.mkv",
		"Doctor Who (1963)/",
		"Doctor Who (2005)/",
		"Archer/",
	)
	matches := &mockMatches{table: []config.SmartMatchInfo{
		{ItemName: "Archer", MatchStrings: []string{"Archer Vice"}},
		{ItemName: "Gone Series", MatchStrings: []string{"Gone"}},
	}}
	resolver := newTestResolver(cat, nil, matches, testTV(root))

	tests := []struct {
		name     string
		query    string
		wantPath string
		wantYear *int
	}{
		{name: "ExactName", query: "Breaking Bad", wantPath: "Breaking Bad (2008)"},
		{name: "NameWithYear", query: "Breaking Bad (2008)", wantPath: "Breaking Bad (2008)", wantYear: intPtr(2008)},
		{name: "YearPicksSeries", query: "Doctor Who (2005)", wantPath: "Doctor Who (2005)", wantYear: intPtr(2005)},
		{name: "CaseAndPunctuation", query: "breaking.bad", wantPath: "Breaking Bad (2008)"},
		{name: "SmartMatch", query: "archer vice", wantPath: "Archer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &Result{}
			series, err := resolver.Resolve(context.Background(), tt.query, result)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.query, err)
			}
			if diff := cmp.Diff(filepath.Join(root, tt.wantPath), series.Path); diff != "" {
				t.Errorf("series path mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantYear, result.ExtractedYear); diff != "" {
				t.Errorf("extracted year mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	root, cat := newLibrary(t, "Breaking Bad (2008)/")
	matches := &mockMatches{table: []config.SmartMatchInfo{
		{ItemName: "Gone Series", MatchStrings: []string{"Gone"}},
	}}
	resolver := newTestResolver(cat, nil, matches, testTV(root))

	tests := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{name: "YearMismatch", query: "Breaking Bad (2010)", wantMsg: "Unable to find series in library matching name Breaking Bad (2010)"},
		{name: "Unknown", query: "Unknown Show", wantMsg: "Unable to find series in library matching name Unknown Show"},
		{name: "SmartMatchWithoutSeries", query: "gone", wantMsg: "Unable to find series in library matching name gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tt.query, &Result{})
			if !errors.Is(err, ErrResolution) {
				t.Fatalf("Resolve(%q) error = %v, want ErrResolution", tt.query, err)
			}
			if diff := cmp.Diff(tt.wantMsg, messageOf(err)); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveAutoDetect(t *testing.T) {
	expanse := provider.SeriesCandidate{Name: "The Expanse", Year: 2015, ProviderIDs: map[string]string{"tmdb": "63639"}}

	tests := []struct {
		name       string
		answers    func(call int32) ([]provider.SeriesCandidate, error)
		wantCreate bool
	}{
		{
			name: "BothAgree",
			answers: func(int32) ([]provider.SeriesCandidate, error) {
				return []provider.SeriesCandidate{expanse}, nil
			},
			wantCreate: true,
		},
		{
			name: "DisjointIDs",
			answers: func(call int32) ([]provider.SeriesCandidate, error) {
				if call == 1 {
					return []provider.SeriesCandidate{expanse}, nil
				}
				return []provider.SeriesCandidate{{Name: "The Expanse", Year: 2015, ProviderIDs: map[string]string{"tmdb": "1"}}}, nil
			},
		},
		{
			name: "ErrorCountsAsEmpty",
			answers: func(call int32) ([]provider.SeriesCandidate, error) {
				if call == 1 {
					return nil, errors.New("service unavailable")
				}
				return []provider.SeriesCandidate{expanse}, nil
			},
			wantCreate: true,
		},
		{
			name: "Ambiguous",
			answers: func(int32) ([]provider.SeriesCandidate, error) {
				return []provider.SeriesCandidate{expanse, {Name: "Expanse", ProviderIDs: map[string]string{"tmdb": "2"}}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, cat := newLibrary(t)
			tv := testTV(root)
			tv.AutoDetectSeries = true

			var calls atomic.Int32
			searcher := &mockSearcher{
				searchSeriesFunc: func(_ context.Context, q provider.SeriesQuery) ([]provider.SeriesCandidate, error) {
					return tt.answers(calls.Add(1))
				},
			}
			resolver := newTestResolver(cat, searcher, nil, tv)

			series, err := resolver.Resolve(context.Background(), "The Expanse", &Result{})
			resolver.Wait()

			if got := calls.Load(); got != 2 {
				t.Errorf("SearchSeries calls = %d, want 2", got)
			}
			wantPath := filepath.Join(root, "The Expanse (2015)")
			if !tt.wantCreate {
				if !errors.Is(err, ErrResolution) {
					t.Errorf("Resolve() error = %v, want ErrResolution", err)
				}
				if exists(wantPath) {
					t.Errorf("series folder %s created, want none", wantPath)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			want := catalog.Series{
				ID:          catalog.SeriesID(wantPath),
				Name:        "The Expanse",
				Year:        2015,
				Path:        wantPath,
				ProviderIDs: map[string]string{"tmdb": "63639"},
			}
			if diff := cmp.Diff(want, series); diff != "" {
				t.Errorf("series mismatch (-want +got):\n%s", diff)
			}
			if !exists(wantPath) {
				t.Errorf("series folder %s missing", wantPath)
			}
			if _, ok := cat.GetByID(want.ID); !ok {
				t.Errorf("catalog has no series %s", want.ID)
			}
		})
	}
}

func TestCreateSeriesConcurrent(t *testing.T) {
	root, cat := newLibrary(t)
	resolver := newTestResolver(cat, nil, nil, testTV(root))

	req := NewSeries{
		Name:         "Severance",
		Year:         2022,
		ProviderIDs:  map[string]string{"tvdb": "371980"},
		TargetFolder: root,
	}

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := resolver.CreateSeries(context.Background(), req)
			ids[i], errs[i] = series.ID, err
		}()
	}
	wg.Wait()
	resolver.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("CreateSeries() call %d error = %v", i, err)
		}
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("call %d returned series %s, want %s", i, id, ids[0])
		}
	}
	if got := len(cat.ListSeries(catalog.Filter{Name: "Severance"})); got != 1 {
		t.Errorf("catalog holds %d Severance series, want 1", got)
	}
}

func TestCreateSeriesWithoutFolder(t *testing.T) {
	root, cat := newLibrary(t)
	resolver := newTestResolver(cat, nil, nil, testTV(root))

	_, err := resolver.CreateSeries(context.Background(), NewSeries{Name: "Severance"})
	if !errors.Is(err, ErrResolution) {
		t.Errorf("CreateSeries() error = %v, want ErrResolution", err)
	}
}

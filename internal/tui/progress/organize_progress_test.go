package progress

import (
	"context"
	"strings"
	"testing"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type stubOrganizer struct {
	organizeFileFunc func(ctx context.Context, path string, overwrite bool) (*organize.Result, error)
}

func (s *stubOrganizer) OrganizeFile(ctx context.Context, path string, overwrite bool) (*organize.Result, error) {
	return s.organizeFileFunc(ctx, path, overwrite)
}

func newTestModel(paths []string, fn func(ctx context.Context, path string, overwrite bool) (*organize.Result, error)) *OrganizeProgressModel {
	batch := organize.NewBatch(organize.BatchConfig{Organizer: &stubOrganizer{organizeFileFunc: fn}, WorkerCount: 2})
	return NewOrganizeProgressModel(context.Background(), batch, paths, theme.New(theme.WithIconSet(theme.IconSet{})))
}

func TestOrganizeProgressRecordsFailures(t *testing.T) {
	m := newTestModel([]string{"/in/a.mkv", "/in/b.mkv", "/in/c.mkv"}, nil)

	events := []organize.BatchEvent{
		{
			Summary: organize.BatchSummary{Total: 3, Processed: 1, Succeeded: 1, ActiveWorkers: 2, WorkerLimit: 2, LastItem: "a.mkv"},
			Path:    "/in/a.mkv",
			Result:  &organize.Result{Status: organize.StatusSuccess},
		},
		{
			Summary: organize.BatchSummary{Total: 3, Processed: 2, Succeeded: 1, Failed: 1, ActiveWorkers: 2, WorkerLimit: 2, LastItem: "b.mkv"},
			Path:    "/in/b.mkv",
			Result:  &organize.Result{Status: organize.StatusFailure, StatusMessage: "Unable to find series"},
		},
		{
			Summary: organize.BatchSummary{Total: 3, Processed: 3, Succeeded: 1, Failed: 1, ActiveWorkers: 2, WorkerLimit: 2, LastItem: "c.mkv"},
			Path:    "/in/c.mkv",
			Err:     context.Canceled,
		},
	}
	for _, ev := range events {
		m.Update(batchEventMsg{event: ev})
	}

	want := []failure{{name: "b.mkv", message: "Unable to find series"}}
	if diff := cmp.Diff(want, m.failures, cmp.AllowUnexported(failure{})); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}

	view := m.View()
	for _, s := range []string{"Organizing Episodes", "Files: 3/3 (100%)", "Failures: 1", "b.mkv: Unable to find series", "Active Workers: 2 of 2"} {
		if !strings.Contains(view, s) {
			t.Errorf("View() missing %q:\n%s", s, view)
		}
	}
}

func TestOrganizeProgressFailureListIsBounded(t *testing.T) {
	m := newTestModel([]string{"/in/a.mkv"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: failureBaseLines + 2})
	for i := 0; i < 5; i++ {
		m.failures = append(m.failures, failure{name: "x.mkv", message: "boom"})
	}

	block := m.renderFailures()
	if !strings.Contains(block, "... and 3 more") {
		t.Errorf("renderFailures() = %q, want a hidden count", block)
	}
}

func TestOrganizeProgressQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		t.Run(key.String(), func(t *testing.T) {
			m := newTestModel([]string{"/in/a.mkv"}, nil)
			_, cmd := m.Update(tea.KeyMsg{Type: key})
			if !m.Canceled() {
				t.Error("Canceled() = false after quit key")
			}
			if cmd == nil {
				t.Fatal("quit key returned no command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("quit key did not quit the program")
			}
		})
	}
}

func TestOrganizeProgressWindowResize(t *testing.T) {
	m := newTestModel([]string{"/in/a.mkv"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", m.width, m.height)
	}
	if m.progress.Width != 116 {
		t.Errorf("progress width = %d, want 116", m.progress.Width)
	}
}

func TestOrganizeProgressEmpty(t *testing.T) {
	m := newTestModel(nil, nil)
	if got := m.View(); !strings.Contains(got, "No episode files") {
		t.Errorf("View() = %q, want empty notice", got)
	}
}

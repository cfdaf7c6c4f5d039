package progress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/tui/theme"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// failureBaseLines is the height taken by everything but the failure list.
const failureBaseLines = 9

type batchEventMsg struct {
	event organize.BatchEvent
	done  bool
}

// failure is one file the batch could not sort.
type failure struct {
	name    string
	message string
}

// OrganizeProgressModel runs an organize batch and shows its progress.
type OrganizeProgressModel struct {
	batch  *organize.Batch
	paths  []string
	events <-chan organize.BatchEvent

	summary  organize.BatchSummary
	failures []failure

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	parent context.Context
	cancel context.CancelFunc

	done     bool
	canceled bool
}

// NewOrganizeProgressModel returns a model that organizes paths with batch
// once the program starts. Canceling ctx or pressing ctrl+c stops the batch.
func NewOrganizeProgressModel(ctx context.Context, batch *organize.Batch, paths []string, th theme.Theme) *OrganizeProgressModel {
	gradient := th.ProgressGradient()
	prog := progress.New(progress.WithGradient(gradient[0], gradient[1]))
	prog.Width = 50

	return &OrganizeProgressModel{
		batch:    batch,
		paths:    paths,
		summary:  organize.BatchSummary{Total: len(paths)},
		width:    80,
		height:   16,
		progress: prog,
		theme:    th,
		parent:   ctx,
	}
}

// Init starts the batch.
func (m *OrganizeProgressModel) Init() tea.Cmd {
	parent := m.parent
	if parent == nil {
		parent = context.Background()
	}
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(parent)
	m.events = m.batch.Start(ctx, m.paths)
	return m.waitForEvent()
}

func (m *OrganizeProgressModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return batchEventMsg{done: true}
		}
		return batchEventMsg{event: ev}
	}
}

// Update processes Bubble Tea messages.
func (m *OrganizeProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case batchEventMsg:
		return m.handleEvent(msg)
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *OrganizeProgressModel) handleEvent(msg batchEventMsg) (tea.Model, tea.Cmd) {
	if msg.done {
		m.finish()
		return m, tea.Quit
	}

	ev := msg.event
	m.summary = ev.Summary
	if ev.Path != "" {
		m.recordFailure(ev)
	}

	ratio := 0.0
	if m.summary.Total > 0 {
		ratio = float64(m.summary.Processed) / float64(m.summary.Total)
	}
	cmd := m.progress.SetPercent(ratio)

	if m.summary.Done || m.summary.Canceled {
		m.finish()
		return m, tea.Batch(cmd, tea.Quit)
	}
	return m, tea.Batch(cmd, m.waitForEvent())
}

func (m *OrganizeProgressModel) finish() {
	m.summary = m.batch.SummarySnapshot()
	m.canceled = m.canceled || m.summary.Canceled
	m.done = m.summary.Done
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *OrganizeProgressModel) recordFailure(ev organize.BatchEvent) {
	if errors.Is(ev.Err, context.Canceled) {
		return
	}
	r := ev.Result
	if r != nil && (r.Status == organize.StatusSuccess || r.Status == organize.StatusSkippedExisting) {
		return
	}
	message := "unknown error"
	switch {
	case r != nil && r.StatusMessage != "":
		message = r.StatusMessage
	case ev.Err != nil:
		message = ev.Err.Error()
	}
	m.failures = append(m.failures, failure{name: filepath.Base(ev.Path), message: message})
}

// View renders the progress UI.
func (m *OrganizeProgressModel) View() string {
	if m.summary.Total == 0 {
		return "No episode files to organize.\n"
	}

	percent := 100 * m.summary.Processed / m.summary.Total
	colors := m.theme.Colors()

	workers := lipgloss.NewStyle().
		Foreground(colors.Accent).
		Bold(true).
		Render(fmt.Sprintf("%s Active Workers: %d of %d", m.theme.Icon("workers"), m.summary.ActiveWorkers, m.summary.WorkerLimit))

	stats := []string{
		fmt.Sprintf("%s Files: %d/%d (%d%%)", m.theme.Icon("episode"), m.summary.Processed, m.summary.Total, percent),
		strings.Join([]string{
			m.theme.BadgeStyle(theme.BadgeSuccess).Render(fmt.Sprintf("Sorted %d", m.summary.Succeeded)),
			m.theme.BadgeStyle(theme.BadgeWarning).Render(fmt.Sprintf("Skipped %d", m.summary.Skipped)),
			m.theme.BadgeStyle(theme.BadgeError).Render(fmt.Sprintf("Failed %d", m.summary.Failed)),
		}, " "),
	}
	if block := m.renderFailures(); block != "" {
		stats = append(stats, block)
	}

	panel := m.theme.PanelStyle()
	panelWidth := max(m.width-panel.GetHorizontalFrameSize(), 0)

	statusText := "Organizing episodes... please wait"
	switch {
	case m.canceled:
		statusText = m.theme.Icon("canceled") + " Canceled"
	case m.done:
		statusText = m.theme.Icon("sorted") + " Done"
	case m.summary.LastItem != "":
		statusText = m.summary.LastItem
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.HeaderStyle().Width(m.width).Render("Organizing Episodes"),
		workers,
		m.progress.View(),
		panel.Width(panelWidth).Render(strings.Join(stats, "\n")),
		m.theme.StatusBarStyle().Width(m.width).Render(statusText),
	)
}

// renderFailures lists the most recent failures that fit the window.
func (m *OrganizeProgressModel) renderFailures() string {
	if len(m.failures) == 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(m.theme.Colors().Error)

	maxLines := max(m.height-failureBaseLines, 1)
	show := min(len(m.failures), maxLines)
	width := max(m.width-6, 10)

	lines := make([]string, 0, show+2)
	lines = append(lines, fmt.Sprintf("%s Failures: %d", m.theme.Icon("failed"), len(m.failures)))
	for _, f := range m.failures[len(m.failures)-show:] {
		line := fmt.Sprintf("• %s: %s", f.name, f.message)
		if len(line) > width {
			line = line[:width-3] + "..."
		}
		lines = append(lines, line)
	}
	if hidden := len(m.failures) - show; hidden > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more", hidden))
	}
	return style.Render(strings.Join(lines, "\n"))
}

// Summary returns the latest batch summary.
func (m *OrganizeProgressModel) Summary() organize.BatchSummary {
	return m.summary
}

// Canceled reports whether the user or the parent context stopped the batch.
func (m *OrganizeProgressModel) Canceled() bool {
	return m.canceled
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	"github.com/Digital-Shane/tidy-sort/internal/provider/local"
	"github.com/Digital-Shane/tidy-sort/internal/tui/progress"
	"github.com/Digital-Shane/tidy-sort/internal/tui/theme"
	"github.com/Digital-Shane/treeview"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	sourceDepth   = 8
	sourceScanCap = 500000
	bytesPerMB    = 1024 * 1024
)

type organizeOptions struct {
	overwrite bool
	workers   int
	progress  bool
}

func newOrganizeCommand(cc *commandContext) *cobra.Command {
	opts := &organizeOptions{}
	cmd := &cobra.Command{
		Use:   "organize <path>...",
		Short: "Sort episode files into the library",
		Long: `Sort every video file found under the given files or folders into the TV
library. Files smaller than the configured minimum size, samples and files
already inside a library folder are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrganize(cmd, cc, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing episodes and delete duplicate copies")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of files organized in parallel (default from config)")
	cmd.Flags().BoolVarP(&opts.progress, "progress", "p", false, "Show an interactive progress view")
	return cmd
}

func runOrganize(cmd *cobra.Command, cc *commandContext, opts *organizeOptions, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, err := cc.openServices(ctx, cmd, args, serviceNeeds{engine: true})
	if err != nil {
		return err
	}
	defer closeServices(cmd, svc)

	minBytes := int64(svc.cfg.TV.MinFileSizeMB) * bytesPerMB
	paths, err := collectSources(ctx, args, minBytes, svc.cfg.TV.LibraryPaths)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "No episode files found.")
		return nil
	}

	workers := opts.workers
	if workers <= 0 {
		workers = svc.cfg.Workers
	}
	batch := organize.NewBatch(organize.BatchConfig{
		Organizer:   svc.engine,
		WorkerCount: workers,
		Overwrite:   opts.overwrite || svc.cfg.TV.OverwriteExistingEpisodes,
	})

	svc.log.Info().Int("files", len(paths)).Int("workers", workers).Msg("organizing")
	if opts.progress {
		if err := runProgress(ctx, batch, paths); err != nil {
			return err
		}
	} else {
		for ev := range batch.Start(ctx, paths) {
			if ev.Path == "" {
				continue
			}
			svc.log.Debug().
				Str("path", ev.Path).
				Int("processed", ev.Summary.Processed).
				Int("total", ev.Summary.Total).
				Msg("file handled")
		}
	}

	fmt.Fprintln(out, renderBatch(batch.Results()))
	summary := batch.SummarySnapshot()
	fmt.Fprintf(out, "%d files: %d sorted, %d skipped, %d failed\n",
		summary.Total, summary.Succeeded, summary.Skipped, summary.Failed)

	if summary.Canceled {
		return context.Canceled
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be sorted", summary.Failed, summary.Total)
	}
	return nil
}

// runProgress drives batch through the full screen progress view and waits
// for the workers to stop.
func runProgress(ctx context.Context, batch *organize.Batch, paths []string) error {
	model := progress.NewOrganizeProgressModel(ctx, batch, paths, theme.Default())
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("progress view failed: %w", err)
	}
	if m, ok := final.(*progress.OrganizeProgressModel); ok && m.Canceled() {
		return context.Canceled
	}
	return nil
}

func renderBatch(items map[string]organize.BatchItem) string {
	paths := make([]string, 0, len(items))
	for path := range items {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	rows := make([][]string, 0, len(paths))
	for _, path := range paths {
		item := items[path]
		status, detail := "Failure", ""
		if item.Err != nil {
			detail = item.Err.Error()
		}
		if r := item.Result; r != nil {
			status = displayStatus(r.Status)
			switch {
			case r.Status == organize.StatusSuccess:
				detail = r.TargetPath
			case r.StatusMessage != "":
				detail = r.StatusMessage
			}
		}
		if errors.Is(item.Err, context.Canceled) {
			status = "Canceled"
		}
		rows = append(rows, []string{filepath.Base(path), status, detail})
	}
	return renderTable([]string{"File", "Status", "Detail"}, rows, nil)
}

func displayStatus(s organize.Status) string {
	if s == organize.StatusPending {
		return "Pending"
	}
	return string(s)
}

// collectSources expands args into the video files to organize, sorted and
// without duplicates.
func collectSources(ctx context.Context, args []string, minBytes int64, libraries []string) ([]string, error) {
	filter := func(fi treeview.FileInfo) bool {
		name := fi.Name()
		if name == ".DS_Store" || strings.HasPrefix(name, "._") {
			return false
		}
		if fi.IsDir() {
			return true
		}
		return isSource(name, fi.Size(), minBytes)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		path = filepath.Clean(path)
		if seen[path] || insideLibrary(path, libraries) {
			return
		}
		seen[path] = true
		out = append(out, path)
	}

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", arg, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			if isSource(info.Name(), info.Size(), minBytes) {
				add(path)
			}
			continue
		}

		tree, err := treeview.NewTreeFromFileSystem(ctx, path, false,
			treeview.WithMaxDepth[treeview.FileInfo](sourceDepth),
			treeview.WithTraversalCap[treeview.FileInfo](sourceScanCap),
			treeview.WithFilterFunc(filter),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		for ni := range tree.BreadthFirst(ctx) {
			if data := ni.Node.Data(); !data.IsDir() {
				add(data.Path)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

func isSource(name string, size, minBytes int64) bool {
	return local.IsVideo(name) && !local.IsSample(name) && size >= minBytes
}

func insideLibrary(path string, libraries []string) bool {
	for _, lib := range libraries {
		lib = strings.TrimSpace(lib)
		if lib == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(lib), path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func closeServices(cmd *cobra.Command, svc *services) {
	if err := svc.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
}

package organize

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/mhmtszr/concurrent-swiss-map"
	"golang.org/x/sync/errgroup"
)

// Organizer is the single-file operation a Batch fans out.
type Organizer interface {
	OrganizeFile(ctx context.Context, path string, overwrite bool) (*Result, error)
}

// BatchConfig configures a Batch.
type BatchConfig struct {
	Organizer   Organizer
	WorkerCount int
	Overwrite   bool
}

// BatchSummary captures the state of a batch at a point in time.
type BatchSummary struct {
	Total         int
	Processed     int
	Succeeded     int
	Skipped       int
	Failed        int
	ActiveWorkers int
	WorkerLimit   int
	LastItem      string
	Done          bool
	Canceled      bool
}

// BatchEvent is a progress update emitted by a running batch.
type BatchEvent struct {
	Summary BatchSummary
	Path    string
	Result  *Result
	Err     error
}

// BatchItem is the outcome for one path.
type BatchItem struct {
	Result *Result
	Err    error
}

// Batch organizes many files on a bounded worker pool.
type Batch struct {
	organizer   Organizer
	workerCount int
	overwrite   bool

	results *csmap.CsMap[string, BatchItem]

	summaryMu sync.RWMutex
	summary   BatchSummary
}

type batchOutcome struct {
	path   string
	result *Result
	err    error
}

// NewBatch returns a batch with defaults applied.
func NewBatch(cfg BatchConfig) *Batch {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	return &Batch{
		organizer:   cfg.Organizer,
		workerCount: workers,
		overwrite:   cfg.Overwrite,
		results:     csmap.Create[string, BatchItem](),
		summary:     BatchSummary{WorkerLimit: workers},
	}
}

// Start organizes paths and returns a stream of progress events. The channel
// closes once every path was handled or ctx was canceled.
func (b *Batch) Start(ctx context.Context, paths []string) <-chan BatchEvent {
	events := make(chan BatchEvent, 128)
	go b.run(ctx, events, paths)
	return events
}

// Results returns the outcome per path. It is complete once the event stream
// has closed.
func (b *Batch) Results() map[string]BatchItem {
	out := make(map[string]BatchItem, b.results.Count())
	b.results.Range(func(key string, value BatchItem) bool {
		out[key] = value
		return false
	})
	return out
}

// SummarySnapshot returns the latest progress summary.
func (b *Batch) SummarySnapshot() BatchSummary {
	b.summaryMu.RLock()
	defer b.summaryMu.RUnlock()
	return b.summary
}

func (b *Batch) run(ctx context.Context, events chan<- BatchEvent, paths []string) {
	defer close(events)

	workerCount := min(b.workerCount, len(paths))

	b.summaryMu.Lock()
	b.summary.Total = len(paths)
	b.summary.ActiveWorkers = workerCount
	b.summaryMu.Unlock()
	b.emit(ctx, events, BatchEvent{})

	if len(paths) == 0 {
		b.finish(ctx, events)
		return
	}

	workCh := make(chan string)
	outCh := make(chan batchOutcome)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for path := range workCh {
				if gctx.Err() != nil {
					return nil
				}
				result, err := b.organizer.OrganizeFile(gctx, path, b.overwrite)
				select {
				case outCh <- batchOutcome{path: path, result: result, err: err}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		defer close(workCh)
		for _, path := range paths {
			select {
			case workCh <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = g.Wait()
		close(outCh)
	}()

	for {
		select {
		case <-ctx.Done():
			b.cancel(ctx, events)
			return
		case out, ok := <-outCh:
			if !ok {
				if ctx.Err() != nil {
					b.cancel(ctx, events)
					return
				}
				b.finish(ctx, events)
				return
			}
			b.record(out)
			b.emit(ctx, events, BatchEvent{Path: out.path, Result: out.result, Err: out.err})
		}
	}
}

func (b *Batch) record(out batchOutcome) {
	b.results.Store(out.path, BatchItem{Result: out.result, Err: out.err})

	b.summaryMu.Lock()
	defer b.summaryMu.Unlock()
	b.summary.Processed++
	b.summary.LastItem = filepath.Base(out.path)
	switch {
	case out.result != nil && out.result.Status == StatusSuccess:
		b.summary.Succeeded++
	case out.result != nil && out.result.Status == StatusSkippedExisting:
		b.summary.Skipped++
	case errors.Is(out.err, context.Canceled):
	default:
		b.summary.Failed++
	}
}

func (b *Batch) cancel(ctx context.Context, events chan<- BatchEvent) {
	b.summaryMu.Lock()
	b.summary.Canceled = true
	b.summary.ActiveWorkers = 0
	b.summaryMu.Unlock()
	b.emit(ctx, events, BatchEvent{Err: ctx.Err()})
}

func (b *Batch) finish(ctx context.Context, events chan<- BatchEvent) {
	b.summaryMu.Lock()
	b.summary.ActiveWorkers = 0
	b.summary.Done = true
	b.summaryMu.Unlock()
	b.emit(ctx, events, BatchEvent{})
}

func (b *Batch) emit(ctx context.Context, events chan<- BatchEvent, ev BatchEvent) {
	ev.Summary = b.SummarySnapshot()
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

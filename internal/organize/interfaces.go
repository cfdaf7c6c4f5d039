package organize

import (
	"context"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	"github.com/Digital-Shane/tidy-sort/internal/config"
)

// Catalog is the library index the engine resolves series against.
type Catalog interface {
	ListSeries(filter catalog.Filter) []catalog.Series
	GetByID(id string) (catalog.Series, bool)
	SeasonsOf(seriesID string) []catalog.Season
	EpisodesOf(seriesID string) []catalog.Episode
	AddChild(ctx context.Context, series catalog.Series) (catalog.Series, error)
	RefreshMetadata(ctx context.Context, series catalog.Series) error
	UpdateProviderIDs(ctx context.Context, seriesID string, ids map[string]string) error
}

// FileSystem is the set of filesystem operations the engine performs.
type FileSystem interface {
	Exists(path string) bool
	FileSize(path string) (int64, error)
	ListFiles(dir string) ([]string, error)
	CreateDirectory(path string) error
	Delete(path string) error
	Rename(src, dst string) error
	Copy(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error
	SanitizeFilename(name string) string
}

// ChangeMonitor is told about writes the engine makes inside the library.
type ChangeMonitor interface {
	BeginChange(path string)
	CompleteChange(path string, refresh bool)
	IsLocked(path string) bool
}

// ResultRepository persists organization results. Lookups return nil, nil
// when nothing is stored.
type ResultRepository interface {
	GetBySourcePath(ctx context.Context, path string) (*Result, error)
	GetByID(ctx context.Context, id string) (*Result, error)
	Save(ctx context.Context, result *Result) error
}

// InProgressRegistry admits at most one in-flight attempt per source path.
type InProgressRegistry interface {
	TryBegin(path string) bool
	End(path string)
}

// SmartMatchStore holds the learned alias table.
type SmartMatchStore interface {
	SmartMatchTable() []config.SmartMatchInfo
	RememberMatch(seriesName, match string) (bool, error)
}

package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/Digital-Shane/tidy-sort/internal/oplog"
)

// Recorder receives every filesystem mutation performed through OS.
type Recorder interface {
	Record(op oplog.OperationType, src, dst string, err error)
}

type nopRecorder struct{}

func (nopRecorder) Record(oplog.OperationType, string, string, error) {}

// OS is the local filesystem.
type OS struct {
	journal Recorder
}

// NewOS returns a filesystem recording mutations into journal, which may be nil.
func NewOS(journal Recorder) *OS {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &OS{journal: journal}
}

// Exists reports whether path names an existing file or directory.
func (f *OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSize returns the size of the file at path.
func (f *OS) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// ListFiles returns the regular files directly inside dir, sorted.
func (f *OS) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// CreateDirectory creates path and any missing parents.
func (f *OS) CreateDirectory(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil
	}
	err := os.MkdirAll(path, 0755)
	f.journal.Record(oplog.OpCreateDir, "", path, err)
	return err
}

// Delete removes a single file.
func (f *OS) Delete(path string) error {
	err := os.Remove(path)
	f.journal.Record(oplog.OpDelete, path, "", err)
	return err
}

// Rename renames src to dst on the same filesystem.
func (f *OS) Rename(src, dst string) error {
	err := os.Rename(src, dst)
	f.journal.Record(oplog.OpRename, src, dst, err)
	return err
}

// Copy copies src over dst. The data lands in a temporary file next to dst
// which replaces dst only once its size matches the source.
func (f *OS) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := copyFile(ctx, src, dst)
	f.journal.Record(oplog.OpCopy, src, dst, err)
	return err
}

// Move moves src to dst, falling back to copy and delete across devices.
func (f *OS) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := moveFile(ctx, src, dst)
	f.journal.Record(oplog.OpMove, src, dst, err)
	return err
}

func moveFile(ctx context.Context, src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(renameErr, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return renameErr
	}
	if err := copyFile(ctx, src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyFile(ctx context.Context, src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmp := out.Name()
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}()

	written, err := io.Copy(out, &contextReader{ctx: ctx, r: in})
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if err := os.Chmod(tmp, srcInfo.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// SanitizeFilename strips characters that are invalid in file names. It
// returns an empty string when nothing usable remains.
func (f *OS) SanitizeFilename(name string) string {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return ""
	}
	return clean
}

package organize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const busyMessage = "File is currently processed otherwise. Please try again later."

// Executor moves files into the library. It owns the in-progress registry
// that keeps two attempts off the same source file.
type Executor struct {
	fs           FileSystem
	monitor      ChangeMonitor
	registry     InProgressRegistry
	copyOriginal bool
	log          zerolog.Logger
}

// NewExecutor returns an executor. copyOriginal keeps source files in place.
func NewExecutor(fs FileSystem, monitor ChangeMonitor, registry InProgressRegistry, copyOriginal bool, log zerolog.Logger) *Executor {
	return &Executor{
		fs:           fs,
		monitor:      monitor,
		registry:     registry,
		copyOriginal: copyOriginal,
		log:          log.With().Str("component", "executor").Logger(),
	}
}

// Guard claims the source path of result, runs fn and releases the claim.
// When the path is already claimed fn does not run, result is left alone and
// a Busy error is returned. An error from fn marks result failed.
func (x *Executor) Guard(ctx context.Context, result *Result, fn func(ctx context.Context) error) error {
	if !x.registry.TryBegin(result.OriginalPath) {
		return newError(ErrBusy, busyMessage, nil)
	}
	defer x.registry.End(result.OriginalPath)

	if err := fn(ctx); err != nil {
		result.fail(messageOf(err))
		return err
	}
	return nil
}

// Sort applies the overwrite policy to result.TargetPath and transfers the
// source file when allowed. duplicates are the other paths holding the same
// episode; they are removed after a successful transfer when overwriting.
func (x *Executor) Sort(ctx context.Context, result *Result, duplicates []string, overwrite bool) error {
	src, target := result.OriginalPath, result.TargetPath

	if strings.EqualFold(filepath.Clean(src), filepath.Clean(target)) {
		result.succeed()
		return nil
	}

	exists := x.fs.Exists(target)
	if !overwrite {
		if x.copyOriginal && exists && x.sameEpisode(src, target) {
			msg := fmt.Sprintf("File '%s' already copied to new path '%s', stopping organization", src, target)
			x.log.Info().Msg(msg)
			result.skip(msg)
			return nil
		}
		if exists {
			msg := fmt.Sprintf("File '%s' already exists as '%s', stopping organization", src, target)
			x.log.Info().Msg(msg)
			result.skip(msg)
			return nil
		}
		if len(duplicates) > 0 {
			msg := fmt.Sprintf("File '%s' already exists as these:'%s'. Stopping organization", src, strings.Join(duplicates, "', '"))
			x.log.Info().Msg(msg)
			result.skip(msg)
			result.DuplicatePaths = append([]string(nil), duplicates...)
			return nil
		}
	}

	if err := x.transfer(ctx, result, exists); err != nil {
		return err
	}

	if overwrite {
		x.removeDuplicates(ctx, target, duplicates)
	}
	return nil
}

func (x *Executor) transfer(ctx context.Context, result *Result, targetExists bool) error {
	src, target := result.OriginalPath, result.TargetPath
	if err := ctx.Err(); err != nil {
		return err
	}

	x.monitor.BeginChange(target)
	err := func() error {
		if err := x.fs.CreateDirectory(filepath.Dir(target)); err != nil {
			return err
		}
		if targetExists || x.copyOriginal {
			return x.fs.Copy(ctx, src, target)
		}
		return x.fs.Move(ctx, src, target)
	}()
	x.monitor.CompleteChange(target, true)

	if err != nil {
		msg := fmt.Sprintf("Failed to move file from %s to %s: %v", src, target, err)
		x.log.Error().Err(err).Str("source", src).Str("target", target).Msg("transfer failed")
		result.fail(msg)
		return newError(ErrFilesystem, msg, err)
	}

	result.succeed()
	x.log.Info().Str("source", src).Str("target", target).Msg("file sorted")

	if targetExists && !x.copyOriginal {
		if err := x.fs.Delete(src); err != nil {
			x.log.Error().Err(err).Str("path", src).Msg("failed to delete original after copy")
		}
	}
	return nil
}

// removeDuplicates deletes every duplicate. The first one that shares the
// target's folder has its sidecar files renamed to the target's base name.
func (x *Executor) removeDuplicates(ctx context.Context, target string, duplicates []string) {
	renamed := false
	for _, dup := range duplicates {
		if err := ctx.Err(); err != nil {
			x.log.Warn().Err(err).Msg("duplicate cleanup interrupted")
			return
		}

		x.log.Debug().Str("path", dup).Msg("removing duplicate episode")
		renameSidecars := !renamed && strings.EqualFold(filepath.Dir(dup), filepath.Dir(target))
		if renameSidecars {
			renamed = true
		}

		x.monitor.BeginChange(dup)
		if err := x.deleteLibraryFile(dup, renameSidecars, target); err != nil {
			x.log.Error().Err(err).Str("path", dup).Msg("failed to remove duplicate episode")
		}
		x.monitor.CompleteChange(dup, true)
	}
}

// deleteLibraryFile removes path. With renameSidecars, files next to it whose
// name starts with its base name are first renamed to start with the base
// name of target instead.
func (x *Executor) deleteLibraryFile(path string, renameSidecars bool, target string) error {
	if renameSidecars {
		x.renameSidecars(path, target)
	}
	return x.fs.Delete(path)
}

func (x *Executor) renameSidecars(path, target string) {
	oldBase := baseName(path)
	newBase := baseName(target)
	if oldBase == "" || newBase == "" {
		return
	}

	dir := filepath.Dir(path)
	files, err := x.fs.ListFiles(dir)
	if err != nil {
		x.log.Warn().Err(err).Str("folder", dir).Msg("failed to list sidecar files")
		return
	}

	for _, file := range files {
		if file == path || file == target {
			continue
		}
		name := filepath.Base(file)
		if len(name) < len(oldBase) || !strings.EqualFold(name[:len(oldBase)], oldBase) {
			continue
		}
		dst := filepath.Join(dir, newBase+name[len(oldBase):])
		if dst == file {
			continue
		}
		if err := x.fs.Rename(file, dst); err != nil {
			x.log.Error().Err(err).Str("path", file).Msg("failed to rename sidecar file")
		}
	}
}

// sameEpisode reports whether the two files have the same length.
func (x *Executor) sameEpisode(a, b string) bool {
	sizeA, err := x.fs.FileSize(a)
	if err != nil {
		return false
	}
	sizeB, err := x.fs.FileSize(b)
	if err != nil {
		return false
	}
	return sizeA == sizeB
}

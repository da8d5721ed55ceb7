package scanner

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"

	"imagededup/logging"
)

// FileSource enumerates image files under Root. Each call to Paths walks the
// tree again, so a source can be consumed more than once.
type FileSource struct {
	Root      string
	Recursive bool
}

// NewFileSource returns a source for root
func NewFileSource(root string, recursive bool) *FileSource {
	return &FileSource{Root: root, Recursive: recursive}
}

// Paths lazily yields the supported image files under the root in lexical
// order. Entries that cannot be read are logged and skipped. The walk stops
// when ctx is cancelled or the consumer stops iterating.
func (s *FileSource) Paths(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				logging.DebugLog("Skipping inaccessible path %s: %v", path, err)
				if d != nil && d.IsDir() && path != s.Root {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != s.Root && !s.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !IsImageFile(path) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// StaticSource yields an explicit list of files, keeping only supported
// image extensions
type StaticSource []string

// Paths yields the listed image files in order
func (s StaticSource) Paths(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, path := range s {
			if ctx.Err() != nil {
				return
			}
			if !IsImageFile(path) {
				logging.DebugLog("Skipping unsupported file: %s", path)
				continue
			}
			if !yield(path) {
				return
			}
		}
	}
}

// CountFiles walks a source once and classifies the files it yields
func CountFiles(ctx context.Context, src Source) FileStats {
	stats := FileStats{ByFormat: make(map[string]int)}
	for path := range src.Paths(ctx) {
		stats.TotalFiles++
		stats.ByFormat[GetFileFormat(path)]++
		if IsTiffFormat(path) {
			stats.TifFiles++
		}
	}
	return stats
}

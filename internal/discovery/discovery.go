// Package discovery enumerates source images under a directory tree using
// doublestar glob patterns, pruning excluded subtrees such as the output
// directory so generated renditions are never picked up as new sources.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"imgbatch/internal/fileutil"
)

// Find walks root and returns the files whose slash-separated path relative
// to root matches pattern. Directories at or beneath any exclude path are
// skipped entirely. Hidden entries (leading dot) are ignored. A missing root
// yields no files. A symlinked root is followed; returned paths keep the
// caller's root as their prefix. Results are absolute when root is absolute
// and sorted lexicographically for deterministic processing order.
func Find(root, pattern string, exclude ...string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	root = filepath.Clean(root)
	walkRoot := fileutil.Resolve(root)
	resolvedExclude := make([]string, 0, len(exclude))
	for _, dir := range exclude {
		if dir != "" {
			resolvedExclude = append(resolvedExclude, fileutil.Resolve(dir))
		}
	}

	var files []string
	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if path != walkRoot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if isExcluded(path, resolvedExclude) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if ok && !isExcluded(path, resolvedExclude) {
			files = append(files, filepath.Join(root, rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func isExcluded(path string, exclude []string) bool {
	for _, dir := range exclude {
		if fileutil.Within(path, dir) {
			return true
		}
	}
	return false
}

package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EmptyDir ensures dir exists and contains no entries. A missing directory is
// created; an existing one has every child removed while the directory itself
// (and its permissions) is kept.
func EmptyDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stat %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("%s exists and is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		target := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove %s: %w", target, err)
		}
	}
	return nil
}

// WriteFile creates path with the given mode and streams content produced by
// write through a buffered writer. The file is removed when write or the
// final flush/close fails so no truncated output is left behind. It returns
// the number of bytes written.
func WriteFile(path string, mode os.FileMode, write func(io.Writer) error) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	counter := &countingWriter{w: out}
	buf := bufio.NewWriter(counter)
	if err := write(buf); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := buf.Flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return counter.n, nil
}

// Within reports whether child equals parent or sits beneath it. Both paths
// are compared after filepath.Clean; callers pass absolute paths.
func Within(child, parent string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Resolve returns path with symlinks evaluated. Components that do not exist
// yet are appended unchanged to the resolved form of the nearest existing
// ancestor, so an output directory that has not been created still compares
// correctly against a resolved source tree.
func Resolve(path string) string {
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(Resolve(parent), filepath.Base(path))
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"imgbatch/internal/codec"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSourceReadable verifies the source directory can be listed. A missing
// source directory passes because a run over it simply finds no images.
func CheckSourceReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (missing, nothing to process)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckWritableTarget verifies a directory imgbatch creates on demand. When
// the directory is absent its nearest existing ancestor must be writable.
func CheckWritableTarget(name, path string) Result {
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}

	parent := filepath.Dir(filepath.Clean(path))
	for {
		info, err := os.Stat(parent)
		if err == nil {
			if !info.IsDir() {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, parent)}
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat %s: %v)", path, parent, err)}
		}
		next := filepath.Dir(parent)
		if next == parent {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", path)}
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckEncoders encodes a one-pixel image in every output format.
func CheckEncoders(ctx context.Context, webpQuality, pngLevel int) []Result {
	sample := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	var results []Result
	for _, format := range codec.Formats(webpQuality, pngLevel) {
		name := fmt.Sprintf("%s encoder", format.Name())
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		if err := format.Encode(io.Discard, sample); err != nil {
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("encode failed: %v", err)})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: "ok"})
	}
	return results
}

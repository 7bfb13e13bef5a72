package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestEmptyDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := EmptyDir(dir); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
}

func TestEmptyDirRemovesExistingEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stale.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "nested", "deeper")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "old.webp"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EmptyDir(dir); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestEmptyDirIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 2; i++ {
		if err := EmptyDir(dir); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

func TestEmptyDirRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EmptyDir(path); err == nil {
		t.Fatal("expected error for regular file")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("file was modified: %q", got)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	n, err := WriteFile(path, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello world")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("hello world")) {
		t.Fatalf("byte count: got %d", n)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestWriteFileRemovesPartialOutputOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.bin")
	boom := errors.New("encode failed")

	_, err := WriteFile(path, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial file removed, stat err=%v", err)
	}
}

func TestWithin(t *testing.T) {
	root := string(filepath.Separator) + filepath.Join("srv", "assets")
	cases := []struct {
		name   string
		child  string
		parent string
		want   bool
	}{
		{"same", root, root, true},
		{"nested", filepath.Join(root, "img", "processed"), root, true},
		{"sibling prefix", root + "-other", root, false},
		{"parent", filepath.Dir(root), root, false},
		{"dotdot name", filepath.Join(root, "..x"), root, true},
		{"unclean", filepath.Join(root, "img") + string(filepath.Separator), root, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Within(tc.child, tc.parent); got != tc.want {
				t.Fatalf("Within(%q, %q) = %v, want %v", tc.child, tc.parent, got, tc.want)
			}
		})
	}
}

func TestResolveFollowsSymlinkedAncestor(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	want, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatal(err)
	}

	if got := Resolve(link); got != want {
		t.Fatalf("Resolve(link) = %q, want %q", got, want)
	}
	missing := filepath.Join(link, "out", "processed")
	if got := Resolve(missing); got != filepath.Join(want, "out", "processed") {
		t.Fatalf("Resolve(missing) = %q", got)
	}
}

package main

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	out := renderTable(artifactColumns, [][]string{
		{"logo-16w.png", "16", "png", "1.2 kB"},
		{"logo-1200w.webp", "1200", "webp", "48 kB"},
	})

	for _, title := range []string{"Artifact", "Width", "Format", "Size"} {
		if !strings.Contains(out, title) {
			t.Fatalf("missing header %q in:\n%s", title, out)
		}
	}
	var line string
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "logo-16w.png") {
			line = l
		}
	}
	if !strings.Contains(line, "   16 │") {
		t.Fatalf("expected width right-aligned, got %q", line)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(checkColumns, [][]string{{"source_dir", "yes"}})
	if strings.Contains(out, "<nil>") {
		t.Fatalf("short row rendered nil cell:\n%s", out)
	}
	if !strings.Contains(out, "source_dir") {
		t.Fatalf("missing row:\n%s", out)
	}
}

func TestRenderTableWithoutColumns(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

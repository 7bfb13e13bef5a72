package history

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusEmpty     Status = "empty"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one recorded batch invocation.
type Run struct {
	ID           string     `json:"id" yaml:"id"`
	Status       Status     `json:"status" yaml:"status"`
	SourceDir    string     `json:"source_dir" yaml:"source_dir"`
	OutputDir    string     `json:"output_dir" yaml:"output_dir"`
	Pattern      string     `json:"pattern" yaml:"pattern"`
	Widths       []int      `json:"widths" yaml:"widths"`
	Sources      int        `json:"sources" yaml:"sources"`
	ArtifactN    int        `json:"artifacts" yaml:"artifacts"`
	TotalBytes   int64      `json:"total_bytes" yaml:"total_bytes"`
	ErrorMessage string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Artifacts    []Artifact `json:"artifact_files,omitempty" yaml:"artifact_files,omitempty"`
}

// Duration reports how long a finished run took.
func (r *Run) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Artifact is one file written during a run.
type Artifact struct {
	Source string `json:"source" yaml:"source"`
	Width  int    `json:"width" yaml:"width"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
	Bytes  int64  `json:"bytes" yaml:"bytes"`
}

func encodeWidths(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ",")
}

func decodeWidths(raw string) []int {
	if raw == "" {
		return nil
	}
	var widths []int
	for _, part := range strings.Split(raw, ",") {
		if w, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			widths = append(widths, w)
		}
	}
	return widths
}

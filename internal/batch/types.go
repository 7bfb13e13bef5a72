package batch

import (
	"errors"
	"fmt"
	"time"

	"imgbatch/internal/config"
)

// ErrNoWidths is returned when Settings carries no target widths.
var ErrNoWidths = errors.New("at least one target width is required")

// ErrNameCollision is returned when two sources would produce the same artifact names.
var ErrNameCollision = errors.New("sources share a base name")

// Settings is the explicit configuration a run operates on.
type Settings struct {
	SourceDir           string
	OutputDir           string
	Pattern             string
	Widths              []int
	WebPQuality         int
	PNGCompressionLevel int
	// Concurrency limits files processed at once; zero means unbounded.
	Concurrency int
}

// SettingsFromConfig builds Settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SourceDir:           cfg.Paths.SourceDir,
		OutputDir:           cfg.Paths.OutputDir,
		Pattern:             cfg.Images.Pattern,
		Widths:              append([]int(nil), cfg.Images.Widths...),
		WebPQuality:         cfg.Images.WebPQuality,
		PNGCompressionLevel: cfg.Images.PNGCompressionLevel,
		Concurrency:         cfg.Images.Concurrency,
	}
}

func (s Settings) validate() error {
	if s.SourceDir == "" {
		return errors.New("source directory is required")
	}
	if s.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if len(s.Widths) == 0 {
		return ErrNoWidths
	}
	for _, w := range s.Widths {
		if w <= 0 {
			return fmt.Errorf("invalid width %d", w)
		}
	}
	return nil
}

// Artifact describes one generated output file.
type Artifact struct {
	Source string
	Width  int
	Format string
	Path   string
	Bytes  int64
}

// FileResult collects the artifacts produced for one source.
type FileResult struct {
	Source    string
	Artifacts []Artifact
	Duration  time.Duration
}

// Summary reports the outcome of a run. On failure it still lists the files
// that completed before the error surfaced.
type Summary struct {
	RunID    string
	Sources  int
	Files    []FileResult
	Duration time.Duration
}

// ArtifactCount returns the number of artifacts written.
func (s Summary) ArtifactCount() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Artifacts)
	}
	return n
}

// TotalBytes returns the combined size of all artifacts written.
func (s Summary) TotalBytes() int64 {
	var total int64
	for _, f := range s.Files {
		for _, a := range f.Artifacts {
			total += a.Bytes
		}
	}
	return total
}

// FileError attributes a processing failure to its source image.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("process %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

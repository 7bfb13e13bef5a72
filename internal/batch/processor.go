package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imgbatch/internal/codec"
	"imgbatch/internal/discovery"
	"imgbatch/internal/fileutil"
	"imgbatch/internal/logging"
)

// Processor runs the reset, discover, fan-out, join pipeline.
type Processor struct {
	settings Settings
	formats  []codec.Format
	logger   *slog.Logger

	progressMu sync.Mutex
	onFile     func(FileResult)
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for progress and summary lines.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logging.NewComponentLogger(logger, "batch")
	}
}

// WithProgress registers a callback invoked after each source file completes.
// Calls are serialized.
func WithProgress(fn func(FileResult)) Option {
	return func(p *Processor) {
		p.onFile = fn
	}
}

// New validates settings and constructs a Processor.
func New(settings Settings, opts ...Option) (*Processor, error) {
	if settings.Pattern == "" {
		settings.Pattern = "**/*.png"
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("batch settings: %w", err)
	}
	p := &Processor{
		settings: settings,
		formats:  codec.Formats(settings.WebPQuality, settings.PNGCompressionLevel),
		logger:   logging.NewComponentLogger(nil, "batch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Reset recreates the output directory as empty.
func (p *Processor) Reset() error {
	if err := fileutil.EmptyDir(p.settings.OutputDir); err != nil {
		return fmt.Errorf("reset output directory: %w", err)
	}
	return nil
}

// Discover lists source images, never descending into the output directory.
func (p *Processor) Discover() ([]string, error) {
	return discovery.Find(p.settings.SourceDir, p.settings.Pattern, p.settings.OutputDir)
}

// Run executes one full batch. A run with no sources succeeds with an empty
// summary. On error the summary lists the files that finished first.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}
	if id, ok := logging.RunIDFromContext(ctx); ok {
		summary.RunID = id
	}
	logger := logging.WithContext(ctx, p.logger)

	logger.Info("starting image processing",
		logging.String("source_dir", p.settings.SourceDir),
		logging.String("output_dir", p.settings.OutputDir),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if err := p.Reset(); err != nil {
		return summary, err
	}

	sources, err := p.Discover()
	if err != nil {
		return summary, err
	}
	summary.Sources = len(sources)
	if len(sources) == 0 {
		summary.Duration = time.Since(start)
		logger.Info("no images to process")
		return summary, nil
	}
	if err := checkNameCollisions(logger, sources); err != nil {
		return summary, err
	}

	logger.Info("found images to process", logging.Int("count", len(sources)))

	files, err := p.processAll(ctx, logger, sources)
	summary.Files = files
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}

	logger.Info("image processing complete",
		logging.Int("files", len(files)),
		logging.Int("artifacts", summary.ArtifactCount()),
		logging.Int64("bytes", summary.TotalBytes()),
		logging.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}

func (p *Processor) processAll(ctx context.Context, logger *slog.Logger, sources []string) ([]FileResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	if p.settings.Concurrency > 0 {
		g.SetLimit(p.settings.Concurrency)
	}

	results := make([]FileResult, len(sources))
	done := make([]bool, len(sources))
	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.ProcessFile(gctx, source)
			if err != nil {
				return err
			}
			results[i] = res
			done[i] = true
			logger.Info("processed image",
				logging.String(logging.FieldSource, BaseName(source)),
				logging.Int("artifacts", len(res.Artifacts)),
				logging.Duration("elapsed", res.Duration),
			)
			p.reportProgress(res)
			return nil
		})
	}
	err := g.Wait()

	completed := make([]FileResult, 0, len(sources))
	for i := range results {
		if done[i] {
			completed = append(completed, results[i])
		}
	}
	return completed, err
}

// ProcessFile decodes source once and writes every width/format artifact.
// Variants are written sequentially; the context is checked between widths.
func (p *Processor) ProcessFile(ctx context.Context, source string) (FileResult, error) {
	start := time.Now()
	result := FileResult{Source: source}

	img, err := codec.Decode(source)
	if err != nil {
		return result, &FileError{Path: source, Err: err}
	}

	for _, width := range p.settings.Widths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		resized := codec.ResizeToWidth(img, width)
		for _, format := range p.formats {
			name := ArtifactName(source, width, format.Ext())
			path := filepath.Join(p.settings.OutputDir, name)
			n, err := fileutil.WriteFile(path, 0o644, func(w io.Writer) error {
				return format.Encode(w, resized)
			})
			if err != nil {
				return result, &FileError{Path: source, Err: fmt.Errorf("write %s: %w", name, err)}
			}
			result.Artifacts = append(result.Artifacts, Artifact{
				Source: source,
				Width:  width,
				Format: format.Name(),
				Path:   path,
				Bytes:  n,
			})
			p.logger.Debug("artifact written",
				logging.String("artifact", name),
				logging.Int64("bytes", n),
			)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (p *Processor) reportProgress(res FileResult) {
	if p.onFile == nil {
		return
	}
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.onFile(res)
}

// checkNameCollisions rejects source sets where two files in different
// directories share a base name, since their artifacts would overwrite each
// other. Names that differ only in Unicode normalization are distinct files
// here and only produce a warning.
func checkNameCollisions(logger *slog.Logger, sources []string) error {
	seen := make(map[string]string, len(sources))
	lookAlikes := make(map[string]string, len(sources))
	var clashes []string
	for _, source := range sources {
		base := BaseName(source)
		if first, ok := seen[base]; ok {
			clashes = append(clashes, fmt.Sprintf("%s and %s", first, source))
			continue
		}
		seen[base] = source

		key := lookAlikeKey(base)
		if first, ok := lookAlikes[key]; ok {
			logging.WarnWithContext(logger, "source names differ only in unicode normalization", "lookalike_names",
				logging.String(logging.FieldSource, source),
				logging.String("other", first),
				logging.String(logging.FieldErrorHint, "rename one file; normalizing filesystems treat them as the same name"),
				logging.String(logging.FieldImpact, "artifacts are written under both names"),
			)
			continue
		}
		lookAlikes[key] = source
	}
	if len(clashes) == 0 {
		return nil
	}
	sort.Strings(clashes)
	return fmt.Errorf("%w: %s", ErrNameCollision, strings.Join(clashes, "; "))
}

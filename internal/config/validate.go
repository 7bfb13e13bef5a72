package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"imgbatch/internal/fileutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceDir == "" {
		return errors.New("paths.source_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	// The output directory is emptied on every run; it must never contain the sources.
	if fileutil.Within(c.Paths.SourceDir, c.Paths.OutputDir) {
		return fmt.Errorf("paths.output_dir %q must not be the source directory or one of its parents", c.Paths.OutputDir)
	}
	if fileutil.Within(c.Paths.StateDir, c.Paths.OutputDir) {
		return fmt.Errorf("paths.state_dir %q must not be inside paths.output_dir", c.Paths.StateDir)
	}
	return nil
}

func (c *Config) validateImages() error {
	if !doublestar.ValidatePattern(c.Images.Pattern) {
		return fmt.Errorf("images.pattern %q is not a valid glob", c.Images.Pattern)
	}
	if len(c.Images.Widths) == 0 {
		return errors.New("images.widths must include at least one width")
	}
	for _, w := range c.Images.Widths {
		if w <= 0 {
			return fmt.Errorf("images.widths must be positive (got %d)", w)
		}
	}
	if c.Images.WebPQuality < 0 || c.Images.WebPQuality > 100 {
		return errors.New("images.webp_quality must be between 0 and 100")
	}
	if c.Images.PNGCompressionLevel < 0 || c.Images.PNGCompressionLevel > 9 {
		return errors.New("images.png_compression_level must be between 0 and 9")
	}
	if c.Images.Concurrency < 0 {
		return errors.New("images.concurrency must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

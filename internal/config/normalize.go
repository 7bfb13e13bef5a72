package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImages()
	c.normalizeWatch()
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		c.Paths.SourceDir = defaultSourceDir
	}
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImages() {
	c.Images.Pattern = strings.TrimSpace(c.Images.Pattern)
	if c.Images.Pattern == "" {
		c.Images.Pattern = defaultPattern
	}
	// Widths form an ordered set: keep first occurrence order, drop repeats.
	widths := make([]int, 0, len(c.Images.Widths))
	seen := make(map[int]struct{}, len(c.Images.Widths))
	for _, w := range c.Images.Widths {
		if _, exists := seen[w]; exists {
			continue
		}
		seen[w] = struct{}{}
		widths = append(widths, w)
	}
	c.Images.Widths = widths
}

func (c *Config) normalizeWatch() {
	if c.Watch.DebounceMillis <= 0 {
		c.Watch.DebounceMillis = defaultWatchDebounceMillis
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = expanded
	}
	return nil
}

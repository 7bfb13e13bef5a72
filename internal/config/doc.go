// Package config loads, normalizes, and validates imgbatch configuration data.
//
// It supplies repository defaults that mirror the historical constants of the
// image pipeline (assets/img, three widths, WebP quality 80, PNG level 8),
// expands user paths (including tilde shortcuts), and reads TOML files. The
// Config type centralizes every knob the CLI, batch processor, watcher, and
// history store need.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, a de-duplicated width list, and clear validation errors.
package config

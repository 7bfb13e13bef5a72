// Package batch turns every source image into a fixed matrix of resized,
// re-encoded artifacts.
//
// A run resets the output directory, discovers sources, fans out one task per
// file with errgroup, and joins. Each task decodes its source once and writes
// one artifact per (width, format) pair named <basename>-<width>w.<ext>.
// Artifact names are unique per task, so concurrent writers never collide and
// no shared state needs locking.
//
// The first failing file cancels the remaining work; artifacts already
// written by other files stay on disk.
package batch

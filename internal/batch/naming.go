package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BaseName returns the source file name without directory or extension. The
// bytes are kept as stored on disk.
func BaseName(source string) string {
	name := filepath.Base(source)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ArtifactName returns <basename>-<width>w.<ext>.
func ArtifactName(source string, width int, ext string) string {
	return fmt.Sprintf("%s-%dw.%s", BaseName(source), width, ext)
}

// lookAlikeKey folds a base name to Unicode NFC. Distinct names sharing a key
// render identically and collide on normalizing filesystems.
func lookAlikeKey(base string) string {
	return norm.NFC.String(base)
}

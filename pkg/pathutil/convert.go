// Package pathutil provides utilities for converting between absolute and relative paths
// and for normalizing the resource paths developers write inside extension source.
//
// Architecture Pattern:
// Build sessions use absolute file paths internally for consistency and to avoid ambiguity.
// User-facing output (CLI reports, JSON) uses paths relative to the project root.
// This package provides the conversion layer between internal (absolute) and external (relative) representations.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/extpath/internal/types"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/ext/src/background.ts", "/home/user/ext") → "src/background.ts"
//   - ToRelative("/other/location/file.js", "/home/user/ext") → "/other/location/file.js" (outside root)
//   - ToRelative("src/background.ts", "/home/user/ext") → "src/background.ts" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// A relative path starting with ".." is outside the root; the absolute path is clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return filepath.ToSlash(relPath)
}

// ToRelativeReferences converts File in each reference from absolute to relative.
// Creates a new slice without modifying the original references.
func ToRelativeReferences(refs []types.ResourceReference, rootDir string) []types.ResourceReference {
	if len(refs) == 0 {
		return refs
	}

	converted := make([]types.ResourceReference, len(refs))
	copy(converted, refs)
	for i := range converted {
		converted[i].File = ToRelative(converted[i].File, rootDir)
	}
	return converted
}

// ToRelativeDiagnostics converts File in each diagnostic from absolute to relative.
// Creates a new slice without modifying the original diagnostics.
func ToRelativeDiagnostics(diags []types.Diagnostic, rootDir string) []types.Diagnostic {
	if len(diags) == 0 {
		return diags
	}

	converted := make([]types.Diagnostic, len(diags))
	copy(converted, diags)
	for i := range converted {
		converted[i].File = ToRelative(converted[i].File, rootDir)
	}
	return converted
}

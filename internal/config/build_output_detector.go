// Build output detection from JavaScript tooling configuration files
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// BuildOutputDetector finds bundler and compiler output directories
type BuildOutputDetector struct {
	projectRoot string
}

// NewBuildOutputDetector creates a new build output detector
func NewBuildOutputDetector(projectRoot string) *BuildOutputDetector {
	return &BuildOutputDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns exclusion globs such as "**/lib/**" for each output
// directory named by package.json or tsconfig.json
func (d *BuildOutputDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, d.detectPackageJSON()...)
	patterns = append(patterns, d.detectTSConfig()...)
	return DeduplicatePatterns(patterns)
}

func (d *BuildOutputDetector) detectPackageJSON() []string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
		Build   struct {
			OutDir string `json:"outDir"`
		} `json:"build"`
	}
	if !d.readJSON("package.json", &pkg) {
		return nil
	}

	var patterns []string
	for _, script := range pkg.Scripts {
		parts := strings.Fields(script)
		for i, part := range parts {
			if (part == "--outDir" || part == "-outDir" || part == "--out-dir") && i+1 < len(parts) {
				patterns = appendOutDir(patterns, strings.Trim(parts[i+1], "\"'"))
			}
		}
	}
	return appendOutDir(patterns, pkg.Build.OutDir)
}

func (d *BuildOutputDetector) detectTSConfig() []string {
	var tsconfig struct {
		CompilerOptions struct {
			OutDir         string `json:"outDir"`
			DeclarationDir string `json:"declarationDir"`
		} `json:"compilerOptions"`
	}
	if !d.readJSON("tsconfig.json", &tsconfig) {
		return nil
	}
	patterns := appendOutDir(nil, tsconfig.CompilerOptions.OutDir)
	return appendOutDir(patterns, tsconfig.CompilerOptions.DeclarationDir)
}

func (d *BuildOutputDetector) readJSON(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func appendOutDir(patterns []string, dir string) []string {
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	if dir == "" || dir == "." || strings.HasPrefix(dir, "..") {
		return patterns
	}
	dir = strings.TrimPrefix(dir, "./")
	return append(patterns, "**/"+dir+"/**")
}

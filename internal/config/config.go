package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/standardbeagle/extpath/internal/types"
)

// ConfigFileName is the per-project (and optional per-user) configuration file
const ConfigFileName = ".extpath.kdl"

// Build modes accepted in configuration
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
	ModeNone        = "none"
)

type Config struct {
	Version     int
	Project     Project
	Manifest    string // Path of manifest.json, relative to the project root
	Mode        string
	Browser     string
	PublicRoot  string // Source folder copied verbatim to the output root
	OutDir      string // Where resolve writes rewritten files
	Plan        string // Optional externally computed output plan (TOML or JSON)
	MaxFileSize int64  // Source files above this size are skipped, 0 = unlimited
	Performance Performance
	Include     []string // Source files to resolve
	Exclude     []string
	Pages       []string // Extra HTML entries not named by the manifest
	Scripts     []string // Extra script entries not named by the manifest

	RespectGitignore bool
}

type Project struct {
	Root string
	Name string
}

type Performance struct {
	Workers    int // Parallel file workers, 0 = auto-detect
	DebounceMs int // Debounce time in milliseconds for file change events
}

// DefaultMaxFileSize keeps prebuilt vendor bundles out of the parser
const DefaultMaxFileSize = 4 * 1024 * 1024

// DefaultInclude matches every source dialect the parser understands
var DefaultInclude = []string{
	"**/*.js", "**/*.jsx", "**/*.mjs", "**/*.cjs",
	"**/*.ts", "**/*.tsx", "**/*.mts", "**/*.cts",
}

// Default returns the configuration used when no config file exists
func Default(root string) *Config {
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		} else {
			root = "."
		}
	}
	return &Config{
		Version:     1,
		Project:     Project{Root: root, Name: filepath.Base(root)},
		Manifest:    "manifest.json",
		Mode:        ModeDevelopment,
		Browser:     types.DefaultBrowser,
		PublicRoot:  types.DefaultPublicRoot,
		OutDir:      "dist",
		MaxFileSize: DefaultMaxFileSize,
		Performance: Performance{
			Workers:    runtime.NumCPU(),
			DebounceMs: 150,
		},
		Include:          append([]string(nil), DefaultInclude...),
		Exclude:          getDefaultExclusions(),
		RespectGitignore: true,
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads ~/.extpath.kdl as a base and the project's .extpath.kdl on top.
// With neither present the defaults are returned. An explicit path names the project
// config file directly.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	var err error
	if path != "" {
		projectConfig, err = LoadKDLFile(path)
	} else {
		projectConfig, err = LoadKDL(searchDir)
	}
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		baseConfig.Project.Root = absOr(searchDir)
		cfg = baseConfig
	default:
		cfg = Default(absOr(searchDir))
	}

	if cfg.RespectGitignore {
		gp := NewGitignoreParser()
		if err := gp.LoadGitignore(cfg.Project.Root); err == nil {
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, gp.GetExclusionPatterns()...))
		}
	}
	cfg.EnrichExclusionsWithBuildOutputs()
	return cfg, nil
}

// mergeConfigs lets the project override the base while keeping the base exclusions
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	return &merged
}

// EnrichExclusionsWithBuildOutputs keeps build output directories out of the source scan
// so rewritten files are never rewritten again as inputs
func (c *Config) EnrichExclusionsWithBuildOutputs() {
	if c.Project.Root == "" {
		return
	}
	patterns := NewBuildOutputDetector(c.Project.Root).DetectOutputDirectories()
	if c.OutDir != "" {
		patterns = append(patterns, filepath.ToSlash(filepath.Clean(c.OutDir))+"/**")
	}
	if len(patterns) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, patterns...))
	}
}

// ManifestPath returns the manifest location resolved against the project root
func (c *Config) ManifestPath() string {
	return c.resolve(c.Manifest)
}

// PublicDir returns the public root directory, next to the manifest
func (c *Config) PublicDir() string {
	return filepath.Join(filepath.Dir(c.ManifestPath()), c.PublicRoot)
}

// OutPath returns the output directory resolved against the project root
func (c *Config) OutPath() string {
	return c.resolve(c.OutDir)
}

// PlanPath returns the plan file location, or "" when none is configured
func (c *Config) PlanPath() string {
	if c.Plan == "" {
		return ""
	}
	return c.resolve(c.Plan)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrences in order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func absOr(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func getDefaultExclusions() []string {
	return []string{
		// Hidden directories
		"**/.*/**",

		// Package managers & dependencies
		"**/node_modules/**",
		"**/bower_components/**",
		"**/jspm_packages/**",

		// Build artifacts & output
		"**/dist/**",
		"**/build/**",
		"**/.output/**",
		"**/*.min.js",
		"**/*.bundle.js",
		"**/*.chunk.js",

		// Type declarations carry no runtime calls
		"**/*.d.ts",

		// Cache directories
		"**/.cache/**",
		"**/.parcel-cache/**",
		"**/.turbo/**",
		"**/.vite/**",

		// Coverage & test artifacts
		"**/coverage/**",
		"**/.nyc_output/**",
	}
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	extpatherrors "github.com/standardbeagle/extpath/internal/errors"
	"github.com/standardbeagle/extpath/internal/manifest"
	"github.com/standardbeagle/extpath/internal/types"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg == nil {
		return extpatherrors.NewConfigError("config", "", errors.New("configuration is nil"))
	}
	if cfg.Project.Root == "" {
		return extpatherrors.NewConfigError("project.root", "", errors.New("project root cannot be empty"))
	}
	if cfg.Manifest == "" {
		return extpatherrors.NewConfigError("manifest", "", errors.New("manifest path cannot be empty"))
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModeDevelopment
	case ModeDevelopment, ModeProduction, ModeNone:
	default:
		return extpatherrors.NewConfigError("mode", cfg.Mode,
			fmt.Errorf("expected one of %s, %s, %s", ModeDevelopment, ModeProduction, ModeNone))
	}

	if cfg.Browser == "" {
		cfg.Browser = types.DefaultBrowser
	}
	cfg.Browser = strings.ToLower(cfg.Browser)
	if !manifest.KnownBrowser(cfg.Browser) {
		return extpatherrors.NewConfigError("browser", cfg.Browser, errors.New("unknown browser target"))
	}

	if err := validateRelative("public_root", cfg.PublicRoot); err != nil {
		return err
	}

	if err := v.validatePatterns("include", cfg.Include); err != nil {
		return err
	}
	if err := v.validatePatterns("exclude", cfg.Exclude); err != nil {
		return err
	}

	if cfg.MaxFileSize < 0 {
		return extpatherrors.NewConfigError("max_file_size", fmt.Sprint(cfg.MaxFileSize),
			errors.New("size cannot be negative"))
	}
	if cfg.Performance.Workers < 0 {
		return extpatherrors.NewConfigError("performance.workers", fmt.Sprint(cfg.Performance.Workers),
			errors.New("workers cannot be negative"))
	}
	if cfg.Performance.DebounceMs < 0 {
		return extpatherrors.NewConfigError("performance.debounce_ms", fmt.Sprint(cfg.Performance.DebounceMs),
			errors.New("debounce cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return extpatherrors.NewConfigError(field, p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func validateRelative(field, p string) error {
	if p == "" {
		return nil
	}
	if filepath.IsAbs(p) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(p)), "../") {
		return extpatherrors.NewConfigError(field, p, errors.New("must be a path inside the source tree"))
	}
	return nil
}

// setSmartDefaults applies defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// cores-1 leaves headroom for the bundler process, minimum of 1
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Performance.DebounceMs == 0 {
		cfg.Performance.DebounceMs = 150
	}
	if cfg.PublicRoot == "" {
		cfg.PublicRoot = types.DefaultPublicRoot
	}
	if len(cfg.Include) == 0 {
		cfg.Include = append([]string(nil), DefaultInclude...)
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// ValidateConfig is a convenience function to validate a configuration
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}

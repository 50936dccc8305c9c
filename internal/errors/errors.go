package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the extension path resolver
type ErrorType string

const (
	// Resolver errors
	ErrorTypeParse            ErrorType = "parse"
	ErrorTypeUnresolvedPath   ErrorType = "unresolved_path"
	ErrorTypeAmbiguousBinding ErrorType = "ambiguous_binding"

	// Input errors
	ErrorTypeManifest ErrorType = "manifest"
	ErrorTypeFile     ErrorType = "file"
	ErrorTypeConfig   ErrorType = "config"
)

// ErrSyntax is the underlying cause when the front-end reports syntax errors in the tree
var ErrSyntax = errors.New("syntax outside the supported grammar")

// ErrNoOutput is the underlying cause when the output table has no entry for a path
var ErrNoOutput = errors.New("no emitted output for path")

// ParseFailure reports a file the front-end could not parse.
// The file is passed through unchanged.
type ParseFailure struct {
	Type       ErrorType
	FilePath   string
	Dialect    string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseFailure creates a new parse failure
func NewParseFailure(path, dialect string, line, column int, err error) *ParseFailure {
	return &ParseFailure{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Dialect:    dialect,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseFailure) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse failed for %s (%s) at %d:%d: %v", e.FilePath, e.Dialect, e.Line, e.Column, e.Underlying)
	}
	return fmt.Sprintf("parse failed for %s (%s): %v", e.FilePath, e.Dialect, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseFailure) Unwrap() error {
	return e.Underlying
}

// IsRecoverable reports whether the build can continue; parse failures always can
func (e *ParseFailure) IsRecoverable() bool {
	return true
}

// UnresolvedPath reports a normalized path with no entry in the output table
type UnresolvedPath struct {
	Type           ErrorType
	FilePath       string
	Category       string
	DeclaredPath   string
	NormalizedPath string
	Underlying     error
	Timestamp      time.Time
}

// NewUnresolvedPath creates a new unresolved path error
func NewUnresolvedPath(file, category, declared, normalized string) *UnresolvedPath {
	return &UnresolvedPath{
		Type:           ErrorTypeUnresolvedPath,
		FilePath:       file,
		Category:       category,
		DeclaredPath:   declared,
		NormalizedPath: normalized,
		Underlying:     ErrNoOutput,
		Timestamp:      time.Now(),
	}
}

// Error implements the error interface
func (e *UnresolvedPath) Error() string {
	return fmt.Sprintf("%s path %q in %s: %v", e.Category, e.NormalizedPath, e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *UnresolvedPath) Unwrap() error {
	return e.Underlying
}

// AmbiguousBinding reports an identifier whose value cannot be classified statically
type AmbiguousBinding struct {
	Type       ErrorType
	FilePath   string
	Identifier string
	Reason     string
	Timestamp  time.Time
}

// NewAmbiguousBinding creates a new ambiguous binding error
func NewAmbiguousBinding(file, identifier, reason string) *AmbiguousBinding {
	return &AmbiguousBinding{
		Type:       ErrorTypeAmbiguousBinding,
		FilePath:   file,
		Identifier: identifier,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *AmbiguousBinding) Error() string {
	return fmt.Sprintf("cannot resolve %q in %s: %s", e.Identifier, e.FilePath, e.Reason)
}

// ManifestError represents a manifest that could not be loaded
type ManifestError struct {
	Type       ErrorType
	Path       string
	Field      string
	Underlying error
	Timestamp  time.Time
}

// NewManifestError creates a new manifest error
func NewManifestError(path, field string, err error) *ManifestError {
	return &ManifestError{
		Type:       ErrorTypeManifest,
		Path:       path,
		Field:      field,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ManifestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest %s: field %s: %v", e.Path, e.Field, e.Underlying)
	}
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ManifestError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeFile,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrOrNil returns nil when the multi-error holds nothing
func (e *MultiError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

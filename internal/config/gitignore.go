package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser reads a project's .gitignore and converts it to doublestar exclusions
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

// NewGitignoreParser creates a new gitignore parser
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	return gp.scan(file)
}

func (gp *GitignoreParser) scan(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return scanner.Err()
}

// AddPattern adds a single gitignore line
func (gp *GitignoreParser) AddPattern(line string) {
	var p GitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}
	p.Pattern = line
	gp.patterns = append(gp.patterns, p)
}

// GetExclusionPatterns returns the non-negated patterns as doublestar globs
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, p := range gp.patterns {
		if p.Negate || p.Pattern == "" {
			continue
		}
		if glob := toGlob(p); doublestar.ValidatePattern(glob) {
			exclusions = append(exclusions, glob)
		}
	}
	return exclusions
}

// ShouldIgnore reports whether the slash-separated relative path is ignored.
// Later negations re-include earlier matches, as git does.
func (gp *GitignoreParser) ShouldIgnore(rel string) bool {
	rel = filepath.ToSlash(rel)
	ignored := false
	for _, p := range gp.patterns {
		glob := toGlob(p)
		matched, _ := doublestar.Match(glob, rel)
		if !matched && !p.Directory {
			// A bare name also ignores everything beneath a directory of that name
			matched, _ = doublestar.Match(glob+"/**", rel)
		}
		if matched {
			ignored = !p.Negate
		}
	}
	return ignored
}

func toGlob(p GitignorePattern) string {
	// Patterns containing a slash are anchored to the root
	anchored := p.Absolute || strings.Contains(p.Pattern, "/")
	glob := p.Pattern
	if !anchored {
		glob = "**/" + glob
	}
	if p.Directory {
		glob += "/**"
	}
	return glob
}

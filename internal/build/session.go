// Package build drives the resolver over a whole extension source tree: it loads the
// manifest and output table, fans files out over a bounded worker pool, caches results
// by content hash and manifest generation, and writes rewritten files to the output
// directory.
package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/extpath/internal/config"
	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/errors"
	"github.com/standardbeagle/extpath/internal/manifest"
	"github.com/standardbeagle/extpath/internal/outputs"
	"github.com/standardbeagle/extpath/internal/resolver"
	"github.com/standardbeagle/extpath/internal/security"
	"github.com/standardbeagle/extpath/pkg/pathutil"
)

// FileResult is the outcome for one source file. Path is absolute.
type FileResult struct {
	Path   string
	Result resolver.Result
	Cached bool
}

// Stats summarizes one Run
type Stats struct {
	Files       int
	Changed     int
	Cached      int
	Skipped     int // Files refused by the source validator
	Diagnostics int
	Duration    time.Duration
}

type cacheEntry struct {
	hash       uint64
	generation uint64
	result     resolver.Result
}

// snapshot pairs a resolver with the manifest generation it was built from, so a cached
// result is never filed under a generation its resolver did not see
type snapshot struct {
	resolver   *resolver.Resolver
	generation uint64
}

// Session owns the state of one build: the manifest snapshot, the resolver built from
// it, and the per-file result cache. It is safe for concurrent use.
type Session struct {
	cfg       *config.Config
	store     *manifest.Store
	validator *security.FileValidator

	// current is swapped whole on manifest reload; reloadMu orders the swaps
	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSession loads the manifest and output table named by cfg
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("build session requires a configuration")
	}
	s := &Session{
		cfg:       cfg,
		store:     manifest.NewStore(nil),
		validator: security.NewFileValidator(cfg.MaxFileSize),
		cache:     make(map[string]cacheEntry),
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the session configuration
func (s *Session) Config() *config.Config { return s.cfg }

// Resolver returns the resolver for the current manifest generation
func (s *Session) Resolver() *resolver.Resolver { return s.current.Load().resolver }

// Generation returns the current manifest generation
func (s *Session) Generation() uint64 { return s.current.Load().generation }

// Reload re-reads the manifest, rebuilds the output table, and installs a fresh resolver
// with its own log-once scope. Cached results from older generations become stale.
func (s *Session) Reload() (uint64, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	d, err := manifest.LoadFile(s.cfg.ManifestPath(), s.cfg.Browser)
	if err != nil {
		return s.store.Generation(), err
	}

	table, err := s.loadTable(d)
	if err != nil {
		return s.store.Generation(), err
	}

	opts := resolver.Options{
		ManifestPath:     s.cfg.ManifestPath(),
		BuildMode:        s.cfg.Mode,
		PublicRootMarker: s.cfg.PublicRoot,
		Browser:          s.cfg.Browser,
	}
	r := resolver.New(opts, table, d, debug.NewOnce())
	gen := s.store.Replace(d)
	s.current.Store(&snapshot{resolver: r, generation: gen})
	debug.LogBuild("manifest %s loaded (generation %d, %d outputs)\n", d.Path(), gen, table.Len())
	return gen, nil
}

// loadTable prefers an explicit plan file and otherwise plans from the manifest
func (s *Session) loadTable(d *manifest.Descriptor) (*outputs.MapTable, error) {
	if planPath := s.cfg.PlanPath(); planPath != "" {
		return outputs.LoadPlanFile(planPath)
	}

	sourceDir := filepath.Dir(s.cfg.ManifestPath())
	planner := outputs.NewPlanner()
	planner.PublicRoot = s.cfg.PublicRoot

	assets, err := outputs.ScanPublic(os.DirFS(s.cfg.PublicDir()))
	if err != nil {
		return nil, err
	}
	planner.PublicAssets = assets

	sourceFS := os.DirFS(sourceDir)
	if planner.ExtraPages, err = outputs.ScanEntries(sourceFS, s.cfg.Pages, nil); err != nil {
		return nil, errors.NewConfigError("pages", fmt.Sprint(s.cfg.Pages), err)
	}
	if planner.ExtraScripts, err = outputs.ScanEntries(sourceFS, s.cfg.Scripts, nil); err != nil {
		return nil, errors.NewConfigError("scripts", fmt.Sprint(s.cfg.Scripts), err)
	}
	return planner.Plan(d), nil
}

// Files lists the source files selected by the include and exclude patterns, as
// absolute paths
func (s *Session) Files() ([]string, error) {
	rels, err := outputs.ScanEntries(os.DirFS(s.cfg.Project.Root), s.cfg.Include, s.cfg.Exclude)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(rels))
	for i, rel := range rels {
		files[i] = filepath.Join(s.cfg.Project.Root, filepath.FromSlash(rel))
	}
	return files, nil
}

// ResolveText runs the pass over text, reusing a cached result when neither the text
// nor the manifest generation changed
func (s *Session) ResolveText(path, text string) FileResult {
	hash := xxhash.Sum64String(text)
	snap := s.current.Load()

	s.cacheMu.Lock()
	entry, ok := s.cache[path]
	s.cacheMu.Unlock()
	if ok && entry.hash == hash && entry.generation == snap.generation {
		s.hits.Add(1)
		return FileResult{Path: path, Result: entry.result, Cached: true}
	}

	s.misses.Add(1)
	result := snap.resolver.Resolve(path, text)

	s.cacheMu.Lock()
	s.cache[path] = cacheEntry{hash: hash, generation: snap.generation, result: result}
	s.cacheMu.Unlock()
	return FileResult{Path: path, Result: result}
}

// ResolveFile validates, reads and resolves path. Oversized or binary files are
// refused with an error wrapping security.ErrTooLarge or security.ErrBinary.
func (s *Session) ResolveFile(path string) (FileResult, error) {
	if err := s.validator.Validate(path); err != nil {
		return FileResult{}, errors.NewFileError("validate", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, errors.NewFileError("read", path, err)
	}
	return s.ResolveText(path, string(data)), nil
}

// Forget drops the cached result for a removed file
func (s *Session) Forget(path string) {
	s.cacheMu.Lock()
	delete(s.cache, path)
	s.cacheMu.Unlock()
}

// CacheStats returns the number of cache hits and misses so far
func (s *Session) CacheStats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Run resolves files on a bounded worker pool and hands each result to emit in input
// order. Unreadable files are collected and reported together; cancellation stops the
// run between files.
func (s *Session) Run(ctx context.Context, files []string, emit func(FileResult) error) (Stats, error) {
	start := time.Now()
	results := make([]FileResult, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Performance.Workers))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = s.ResolveFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{}
	var failed []error
	for i := range files {
		if err := errs[i]; err != nil {
			if skipped(err) {
				debug.LogBuild("skipping %s: %v\n", files[i], err)
				stats.Skipped++
				continue
			}
			failed = append(failed, err)
			continue
		}
		res := results[i]
		stats.Files++
		stats.Diagnostics += len(res.Result.Diagnostics)
		if res.Result.Changed {
			stats.Changed++
		}
		if res.Cached {
			stats.Cached++
		}
		if emit != nil {
			if err := emit(res); err != nil {
				return stats, err
			}
		}
	}
	stats.Duration = time.Since(start)
	debug.LogBuild("resolved %d files (%d changed, %d cached) in %v\n", stats.Files, stats.Changed, stats.Cached, stats.Duration)
	return stats, errors.NewMultiError(failed).ErrOrNil()
}

func skipped(err error) bool {
	return stderrors.Is(err, security.ErrTooLarge) || stderrors.Is(err, security.ErrBinary)
}

// OutputPath returns where the rewritten form of source is written
func (s *Session) OutputPath(source string) string {
	rel := pathutil.ToRelative(source, s.cfg.Project.Root)
	return filepath.Join(s.cfg.OutPath(), filepath.FromSlash(rel))
}

// Write stores the rewritten code of res under the output directory
func (s *Session) Write(res FileResult) error {
	out := s.OutputPath(res.Path)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errors.NewFileError("mkdir", filepath.Dir(out), err)
	}
	if err := os.WriteFile(out, []byte(res.Result.Code), 0o644); err != nil {
		return errors.NewFileError("write", out, err)
	}
	return nil
}

// Remove deletes the output of a removed source file
func (s *Session) Remove(source string) error {
	s.Forget(source)
	out := s.OutputPath(source)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return errors.NewFileError("remove", out, err)
	}
	return nil
}

package build

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/extpath/internal/debug"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreate:
		return "create"
	case FileEventWrite:
		return "write"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Batch is one debounced group of changes
type Batch struct {
	Changed         []string // Source files created or written, sorted
	Removed         []string // Source files removed or renamed away, sorted
	ManifestChanged bool
}

// Watcher monitors the project tree and re-runs the session over changed sources.
// A manifest change reloads the session and re-resolves every source file.
type Watcher struct {
	session  *Session
	watcher  *fsnotify.Watcher
	debounce time.Duration
	emit     func(FileResult) error

	// onBatch observes every processed batch; it runs on the watcher goroutine
	onBatch func(Batch, Stats, error)

	pending map[string]FileEventType
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for session. emit receives every resolved file, typically
// Session.Write.
func NewWatcher(session *Session, emit func(FileResult) error) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		session:  session,
		watcher:  fsw,
		debounce: time.Duration(session.cfg.Performance.DebounceMs) * time.Millisecond,
		emit:     emit,
		pending:  make(map[string]FileEventType),
	}, nil
}

// OnBatch sets the batch observer. Call before Start.
func (w *Watcher) OnBatch(fn func(Batch, Stats, error)) {
	w.onBatch = fn
}

// Start adds watches below the project root and the manifest directory and begins
// processing events until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	root := w.session.cfg.Project.Root
	debug.LogWatch("starting watcher for %s\n", root)

	if err := w.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}
	manifestDir := filepath.Dir(w.session.cfg.ManifestPath())
	if err := w.watcher.Add(manifestDir); err != nil {
		log.Printf("Warning: failed to watch manifest directory %s: %v", manifestDir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Pending events are
// dropped.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	debug.LogWatch("watcher stopped\n")
	return err
}

// addWatches recursively adds watches to every directory that is not excluded
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}

		// Symlink cycles would otherwise walk forever
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true

		if path != root && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.session.cfg.Project.Root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignoredDir reports whether an exclude pattern covers everything below dir
func (w *Watcher) ignoredDir(dir string) bool {
	rel, ok := w.relative(dir)
	if !ok {
		return false
	}
	inside := rel + "/_/_"
	for _, pattern := range w.session.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, inside); matched {
			return true
		}
	}
	return false
}

// isSource reports whether path is selected by the include and exclude patterns
func (w *Watcher) isSource(path string) bool {
	rel, ok := w.relative(path)
	if !ok {
		return false
	}
	for _, pattern := range w.session.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}
	for _, pattern := range w.session.cfg.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) isManifest(path string) bool {
	return filepath.Clean(path) == filepath.Clean(w.session.cfg.ManifestPath())
}

// processEvents owns the pending set and the debounce timer, so batches never overlap
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	// fire is nil while nothing is pending
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handleEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-fire:
			fire = nil
			w.flush(ctx)
		}
	}
}

// handleEvent records a relevant event and reports whether the debounce should restart
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name
	debug.LogWatch("received %v for %s\n", event.Op, path)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.ignoredDir(path) {
				if err := w.addWatches(path); err != nil {
					log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
				}
			}
			return false
		}
	}

	if !w.isManifest(path) && !w.isSource(path) {
		return false
	}

	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = FileEventCreate
	case event.Op&fsnotify.Write != 0:
		eventType = FileEventWrite
	case event.Op&fsnotify.Remove != 0:
		eventType = FileEventRemove
	case event.Op&fsnotify.Rename != 0:
		eventType = FileEventRename
	default:
		return false
	}
	w.pending[path] = eventType
	return true
}

// flush turns the pending events into a batch and processes it
func (w *Watcher) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	events := w.pending
	w.pending = make(map[string]FileEventType)
	log.Printf("Processing %d debounced file events", len(events))

	var batch Batch
	for path, eventType := range events {
		switch {
		case w.isManifest(path):
			batch.ManifestChanged = true
		case eventType == FileEventRemove || eventType == FileEventRename:
			if _, err := os.Stat(path); err != nil {
				batch.Removed = append(batch.Removed, path)
				continue
			}
			batch.Changed = append(batch.Changed, path)
		default:
			batch.Changed = append(batch.Changed, path)
		}
	}
	sort.Strings(batch.Changed)
	sort.Strings(batch.Removed)

	stats, err := w.process(ctx, batch)
	if err != nil {
		log.Printf("Watch batch failed: %v", err)
	}
	if w.onBatch != nil {
		w.onBatch(batch, stats, err)
	}
}

func (w *Watcher) process(ctx context.Context, batch Batch) (Stats, error) {
	for _, path := range batch.Removed {
		if err := w.session.Remove(path); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	files := batch.Changed
	if batch.ManifestChanged {
		gen, err := w.session.Reload()
		if err != nil {
			// Keep serving the previous snapshot until the manifest parses again
			return Stats{}, err
		}
		debug.LogWatch("manifest reloaded, generation %d\n", gen)
		if files, err = w.session.Files(); err != nil {
			return Stats{}, err
		}
	}
	if len(files) == 0 {
		return Stats{}, nil
	}
	return w.session.Run(ctx, files, w.emit)
}

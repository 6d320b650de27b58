// Package watcher keeps the store fed from directories on disk. New or
// rewritten files are ingested after a short debounce; removals are only
// logged because the store never forgets a chunk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
)

const defaultDebounce = 400 * time.Millisecond

// FileIndexer ingests one file. *indexer.Indexer satisfies it.
type FileIndexer interface {
	IndexFile(ctx context.Context, path string) (*indexer.Result, error)
}

// Watcher watches directory roots and ingests matching files as they change.
type Watcher struct {
	ix          FileIndexer
	roots       []string
	extensions  []string
	recursive   bool
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	rootPaths   map[string][]string
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over cfg.Directories. An empty extension list
// means every extension the extractor supports.
func NewWatcher(ix FileIndexer, cfg config.WatchConfig, opts ...WatcherOption) *Watcher {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = extract.SupportedExtensions()
	}
	w := &Watcher{
		ix:          ix,
		roots:       append([]string(nil), cfg.Directories...),
		extensions:  exts,
		recursive:   cfg.RecursiveOrDefault(),
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Info("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			abs = root
		}
		if err := w.addRootLocked(abs); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
		w.roots[i] = filepath.Clean(abs)
	}
	events, errs := fw.Events, fw.Errors
	w.mu.Unlock()
	go w.run(ctx, events, errs)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.matchExtension(path) && !hidden(path) {
			w.debounceIndex(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if w.matchExtension(path) {
			w.logger.Info("file removed; indexed chunks are kept", zap.String("path", path))
		}
	}
}

func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	recursive := w.recursive
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	if recursive {
		_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := fw.Add(path); err != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fw.Add(dirPath); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
	}

	w.syncDirectory(dirPath)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	return indexer.ExtensionAllowed(filepath.Ext(path), extensions)
}

func (w *Watcher) debounceIndex(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) ingest(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx.Err() != nil || w.ix == nil {
		return
	}
	res, err := w.ix.IndexFile(ctx, path)
	switch {
	case errors.Is(err, extract.ErrUnsupported), errors.Is(err, indexer.ErrEmptyDocument), errors.Is(err, extract.ErrNoText):
		w.logger.Debug("watcher skipped file", zap.String("path", path), zap.Error(err))
	case err != nil:
		w.logger.Warn("watcher failed to ingest file", zap.String("path", path), zap.Error(err))
	case res.Skipped:
		w.logger.Debug("watcher file unchanged", zap.String("path", path))
	default:
		w.logger.Info("watcher ingested file",
			zap.String("path", path),
			zap.String("document_id", res.DocumentID),
			zap.Int("chunks", res.Chunks))
	}
}

// AddDirectory adds a root to watch and optionally ingests the files already in it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.logger.Info("watch directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && hidden(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	exts := append([]string(nil), w.extensions...)
	recursive := w.recursive
	w.mu.Unlock()
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && (hidden(path) || !recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden(path) && matchExtension(path, exts) {
			w.ingest(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Chunks already ingested stay in the store.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Info("watch directory removed", zap.String("path", abs))
	return nil
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles ingests the matching files already present under every root.
// Unchanged files are skipped by the indexer.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

package attestation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher hot-reloads custom YAML control catalogs from a
// directory into a Registry. Events are debounced so an editor writing
// a file in several syscalls triggers one reload.
type CatalogWatcher struct {
	dir      string
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewCatalogWatcher creates a watcher over dir. Catalogs present at
// startup are loaded immediately.
func NewCatalogWatcher(dir string, registry *Registry) (*CatalogWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	cw := &CatalogWatcher{
		dir:      dir,
		registry: registry,
		watcher:  w,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default().With("component", "attestation.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := cw.loadAll(); err != nil {
		w.Close()
		return nil, err
	}
	return cw, nil
}

// Watch blocks processing catalog changes until the context is
// cancelled or Stop is called.
func (cw *CatalogWatcher) Watch(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return fmt.Errorf("catalog watcher already running")
	}
	cw.running = true
	cw.mu.Unlock()

	defer func() {
		cw.mu.Lock()
		cw.running = false
		cw.mu.Unlock()
		close(cw.doneCh)
	}()

	if err := cw.watcher.Add(cw.dir); err != nil {
		return fmt.Errorf("failed to watch catalog directory %q: %w", cw.dir, err)
	}
	cw.logger.Info("catalog watcher started", "dir", cw.dir)

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cw.stopCh:
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !isCatalogFile(event.Name) || event.Op&fsnotify.Chmod != 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := cw.loadAll(); err != nil {
				cw.logger.Error("catalog reload failed", "error", err)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			cw.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (cw *CatalogWatcher) Stop() error {
	cw.mu.Lock()
	running := cw.running
	cw.mu.Unlock()

	if running {
		close(cw.stopCh)
		<-cw.doneCh
	}
	return cw.watcher.Close()
}

// loadAll parses every catalog file in the directory and registers the
// valid ones. A malformed file is logged and skipped; it never clears
// a previously registered catalog.
func (cw *CatalogWatcher) loadAll() error {
	entries, err := os.ReadDir(cw.dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}
		path := filepath.Join(cw.dir, entry.Name())
		catalog, err := LoadCatalogFile(path)
		if err != nil {
			cw.logger.Warn("skipping invalid catalog file", "path", path, "error", err)
			continue
		}
		if err := cw.registry.Register(catalog); err != nil {
			cw.logger.Warn("skipping catalog", "path", path, "error", err)
			continue
		}
		cw.logger.Info("catalog loaded",
			"path", path,
			"framework", catalog.Framework,
			"controls", len(catalog.Controls))
	}
	return nil
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

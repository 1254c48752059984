// Package watch feeds pack export files dropped into a directory to
// the pack importer.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robdennis/trappist/internal/pack"
)

const pollInterval = 2 * time.Second

// Watcher monitors a directory for pack export files and imports each
// one once. Name collisions resolve to import-as-copy since there is
// no one to ask.
type Watcher struct {
	engine *pack.Engine
	dir    string
	logger *log.Logger

	processed map[string]time.Time
}

// NewWatcher creates a watcher over dir.
func NewWatcher(engine *pack.Engine, dir string, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		engine:    engine,
		dir:       dir,
		logger:    logger,
		processed: make(map[string]time.Time),
	}
}

// Run watches until the context is cancelled. Files already present
// when it starts are imported first.
func (w *Watcher) Run(ctx context.Context) (err error) {
	if err := w.scan(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	// Backup polling in case file events are delayed or missed.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if err := w.scan(ctx); err != nil {
					w.logger.Printf("watch: import failed: %v", err)
				}
			}
		case watchErr := <-watcher.Errors:
			w.logger.Printf("watch: watcher error: %v", watchErr)
		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				w.logger.Printf("watch: import failed: %v", err)
			}
		}
	}
}

// scan imports every unprocessed export file in the directory. A file
// is reprocessed when its modification time changes.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read watch directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if seen, ok := w.processed[path]; ok && !info.ModTime().After(seen) {
			continue
		}

		// Writers may still be flushing; a short settle window skips
		// half-written files until the next pass.
		if time.Since(info.ModTime()) < 500*time.Millisecond {
			continue
		}

		if err := w.importFile(ctx, path); err != nil {
			w.logger.Printf("watch: skipping %s: %v", entry.Name(), err)
		}
		w.processed[path] = info.ModTime()
	}
	return nil
}

func (w *Watcher) importFile(ctx context.Context, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	results, err := w.engine.Import(ctx, payload, func(string) pack.CollisionChoice {
		return pack.ImportAsCopy
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		w.logger.Printf("watch: imported pack %q from %s", result.Name, filepath.Base(path))
	}
	return nil
}

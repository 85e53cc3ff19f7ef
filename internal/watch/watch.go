// Package watch re-ingests the data directory when its files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// DefaultDebounce is how long the watcher waits after the last change
// before re-ingesting.
const DefaultDebounce = 2 * time.Second

// Ingester re-ingests the data directory. *server.Server satisfies it.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Report, error)
}

// Watcher watches a directory tree and triggers one ingest per burst of
// changes.
type Watcher struct {
	root     string
	debounce time.Duration
	ing      Ingester
	log      zerolog.Logger
	fw       *fsnotify.Watcher

	// OnIngest, when set, is called after every triggered ingest.
	OnIngest func(*ingest.Report, error)
}

// New starts watching root and every directory below it, skipping the
// loader's excluded directories. A debounce of zero uses DefaultDebounce.
func New(root string, ing Ingester, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		ing:      ing,
		log:      log.With().Str("component", "watch").Logger(),
		fw:       fw,
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and its subdirectories to the watch list.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (loader.IsExcludedDir(d.Name()) || hidden(path)) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	w.log.Info().Str("root", w.root).Dur("debounce", w.debounce).Msg("watching data directory")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev) {
				continue
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change detected")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-fire:
			fire = nil
			w.reingest(ctx)
		}
	}
}

// Close stops watching without waiting for Run.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// handle updates the watch list for new directories and reports whether ev
// should trigger an ingest.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if hidden(ev.Name) || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if loader.IsExcludedDir(info.Name()) {
				return false
			}
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn().Err(err).Msg("watching new directory")
			}
			return true
		}
	}

	// Removed paths cannot be stat'ed; a name without an extension may have
	// been a directory.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return loader.Supported(ev.Name) || filepath.Ext(ev.Name) == ""
	}
	return loader.Supported(ev.Name)
}

func (w *Watcher) reingest(ctx context.Context) {
	report, err := w.ing.Ingest(ctx)
	switch {
	case errors.Is(err, ingest.ErrNoDocuments):
		w.log.Warn().Msg("data directory is empty, nothing re-ingested")
	case err != nil:
		w.log.Error().Err(err).Msg("re-ingest failed")
	default:
		w.log.Info().Int("documents", report.Documents).Dur("duration", report.Duration).Msg("re-ingested data directory")
	}
	if w.OnIngest != nil {
		w.OnIngest(report, err)
	}
}

// hidden reports whether the base name starts with a dot, as editors' swap
// and temp files do.
func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

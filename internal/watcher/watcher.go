// Package watcher observes a presentation library on disk and reports
// debounced, classified changes.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/deckhand/internal/checksum"
	"github.com/starford/deckhand/internal/models"
)

// DefaultDebounce is the quiet period after the last event before a burst
// is classified.
const DefaultDebounce = 200 * time.Millisecond

// Callback receives each classified change. It runs on the watcher
// goroutine.
type Callback func(models.Change)

// Watcher tracks the library root. It keeps a checksum per known file so
// that a write which leaves a file byte-identical is not reported, and so
// that a replace-by-rename of an existing file is reported as a content
// change rather than as a removal followed by an addition.
type Watcher struct {
	root         string
	manifestName string
	debounce     time.Duration
	log          *slog.Logger
	cb           Callback

	dirs map[string]struct{}
	sums map[string]string
}

// New creates a Watcher. A non-positive debounce uses DefaultDebounce.
func New(root, manifestName string, debounce time.Duration, logger *slog.Logger, cb Callback) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:         root,
		manifestName: manifestName,
		debounce:     debounce,
		log:          logger,
		cb:           cb,
		dirs:         make(map[string]struct{}),
		sums:         make(map[string]string),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.track(fw, w.root); err != nil {
		return err
	}
	w.log.Info("watcher: started", slog.String("root", w.root), slog.Duration("debounce", w.debounce))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.log.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.flush(fw, pending)
			pending = make(map[string]struct{})
			timer, timerCh = nil, nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			rel, ok := w.rel(ev.Name)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// flush classifies every pending path and emits at most one structure
// change per presentation plus one content change per modified file.
func (w *Watcher) flush(fw *fsnotify.Watcher, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	structural := make(map[string]string)
	var order []string
	var content []models.Change
	for _, rel := range paths {
		kind, ok := w.classify(fw, rel)
		if !ok {
			continue
		}
		pres, file := split(rel)
		if kind == models.ChangeStructure {
			if _, seen := structural[pres]; !seen {
				structural[pres] = file
				order = append(order, pres)
			}
			continue
		}
		content = append(content, models.Change{Kind: kind, Presentation: pres, File: file})
	}

	for _, pres := range order {
		w.emit(models.Change{Kind: models.ChangeStructure, Presentation: pres, File: structural[pres]})
	}
	for _, c := range content {
		if _, covered := structural[c.Presentation]; covered {
			continue
		}
		w.emit(c)
	}
}

func (w *Watcher) emit(c models.Change) {
	w.log.Debug("watcher: change",
		slog.String("kind", c.Kind), slog.String("presentation", c.Presentation), slog.String("file", c.File))
	if w.cb != nil {
		w.cb(c)
	}
}

// classify compares the current disk state of rel with what was known.
func (w *Watcher) classify(fw *fsnotify.Watcher, rel string) (string, bool) {
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	info, statErr := os.Stat(abs)
	exists := statErr == nil

	if exists && info.IsDir() {
		if _, known := w.dirs[rel]; known {
			return "", false
		}
		if err := w.track(fw, abs); err != nil {
			w.log.Warn("watcher: add new dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return models.ChangeStructure, true
	}
	if _, wasDir := w.dirs[rel]; wasDir {
		w.forget(rel)
		return models.ChangeStructure, true
	}
	if !strings.Contains(rel, "/") {
		return "", false
	}

	old, known := w.sums[rel]
	if !exists {
		if !known {
			return "", false
		}
		delete(w.sums, rel)
		return models.ChangeStructure, true
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		w.log.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}
	sum := checksum.Sum(data)
	w.sums[rel] = sum
	switch {
	case !known:
		return models.ChangeStructure, true
	case sum == old:
		return "", false
	case w.isManifest(rel):
		return models.ChangeStructure, true
	}
	return models.ChangeContent, true
}

func (w *Watcher) isManifest(rel string) bool {
	_, file := split(rel)
	return file == w.manifestName
}

// track adds dir and its non-hidden subdirectories to fw and records the
// checksums of the files found.
func (w *Watcher) track(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != w.root && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := w.rel(p)
		if d.IsDir() {
			if p != w.root {
				w.dirs[rel] = struct{}{}
			}
			return fw.Add(p)
		}
		if !strings.Contains(rel, "/") {
			return nil
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		w.sums[rel] = checksum.Sum(data)
		return nil
	})
}

// forget drops everything known under a removed directory.
func (w *Watcher) forget(rel string) {
	prefix := rel + "/"
	delete(w.dirs, rel)
	for d := range w.dirs {
		if strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	for f := range w.sums {
		if strings.HasPrefix(f, prefix) {
			delete(w.sums, f)
		}
	}
}

// rel converts an absolute event path to a slash path under root. Paths
// with a hidden component are rejected.
func (w *Watcher) rel(abs string) (string, bool) {
	r, err := filepath.Rel(w.root, abs)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	r = filepath.ToSlash(r)
	for _, part := range strings.Split(r, "/") {
		if hidden(part) {
			return "", false
		}
	}
	return r, true
}

// split separates the presentation id from the file path inside it.
func split(rel string) (pres, file string) {
	pres, file, _ = strings.Cut(rel, "/")
	return pres, path.Clean("/" + file)[1:]
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

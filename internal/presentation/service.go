// Package presentation discovers presentations in the library and applies
// organizational writes to their manifests.
package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/entrypoint"
	"github.com/starford/deckhand/internal/hierarchy"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/parser"
	"github.com/starford/deckhand/internal/reconcile"
	"github.com/starford/deckhand/internal/storage"
)

// Service coordinates storage, manifest and reconciliation.
//
// Loaded presentations are cached until a change for them is reported.
// Concurrent loads of one presentation share a single scan, and a scan that
// was overtaken by an invalidation is returned to its callers but never
// cached.
type Service struct {
	fs     storage.Provider
	store  *manifest.Store
	log    *slog.Logger
	flight singleflight.Group

	mu    sync.Mutex
	cache map[string]*models.Presentation
	gen   map[string]uint64

	// writeMu serializes manifest mutations made through this process.
	writeMu sync.Mutex

	noCache bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithoutCache makes every Get rescan the folder and re-read the manifest.
// Use it when no watcher reports changes made by other writers.
func WithoutCache() ServiceOption {
	return func(s *Service) { s.noCache = true }
}

// NewService creates a presentation service.
func NewService(fs storage.Provider, store *manifest.Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		fs:    fs,
		store: store,
		log:   logger,
		cache: make(map[string]*models.Presentation),
		gen:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every valid presentation in the library, sorted by id.
// Folders that match no entry convention are skipped.
func (s *Service) List(ctx context.Context) ([]models.Summary, error) {
	dirs, err := s.fs.ListDirs("")
	if err != nil {
		return nil, fmt.Errorf("service: list library: %w", err)
	}
	out := make([]models.Summary, 0, len(dirs))
	for _, id := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("service: skip presentation", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		out = append(out, models.Summary{
			ID:         p.ID,
			Name:       p.Name,
			EntryFile:  p.EntryFile,
			AssetCount: len(p.Assets),
			TabCount:   len(p.Tabs),
		})
	}
	return out, nil
}

// Get returns the effective state of a presentation.
func (s *Service) Get(_ context.Context, id string) (*models.Presentation, error) {
	if !validID(id) {
		return nil, apperr.NotFound("presentation", id)
	}
	if s.noCache {
		return s.load(id)
	}
	s.mu.Lock()
	if p, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return p, nil
	}
	gen := s.gen[id]
	s.mu.Unlock()

	v, err, _ := s.flight.Do(id, func() (any, error) {
		p, err := s.load(id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.gen[id] == gen {
			s.cache[id] = p
		} else {
			s.log.Debug("service: discard stale load", slog.String("id", id))
		}
		s.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Presentation), nil
}

// Invalidate drops cached state for the presentation a change concerns.
func (s *Service) Invalidate(c models.Change) {
	s.invalidate(c.Presentation)
}

func (s *Service) invalidate(id string) {
	s.mu.Lock()
	s.gen[id]++
	delete(s.cache, id)
	s.mu.Unlock()
	s.flight.Forget(id)
}

// load scans the folder and derives the effective presentation.
func (s *Service) load(id string) (*models.Presentation, error) {
	files, err := s.fs.ListFiles(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("presentation", id)
		}
		return nil, fmt.Errorf("service: list %s: %w", id, err)
	}

	var warnings []apperr.Warning
	m, cs, err := s.store.Read(id)
	if err != nil {
		var verr *apperr.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		s.log.Warn("service: malformed manifest", slog.String("id", id), slog.String("error", err.Error()))
		warnings = append(warnings, apperr.Warning{Kind: apperr.WarnBadManifest, Ref: s.store.Name(), Message: err.Error()})
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	entry := entrypoint.Resolve(names, m)
	if !entry.Valid {
		return nil, apperr.NotFound("presentation", id)
	}

	var docs []models.FileInfo
	for _, f := range files {
		if isHTML(f.Name) && !entry.TabFiles[f.Name] {
			docs = append(docs, f)
		}
	}
	in := reconcile.Input{Manifest: m, Files: docs}
	if entry.IsPrimary() {
		in.Entry = entry.Entry
	}
	rec := reconcile.Reconcile(in)
	warnings = append(warnings, rec.Warnings...)

	for i := range rec.Assets {
		if rec.Assets[i].Title == "" {
			rec.Assets[i].Title = s.documentTitle(id, rec.Assets[i].File)
		}
	}

	tabs, tabWarnings := s.tabs(id, m, entry)
	warnings = append(warnings, tabWarnings...)
	groups, groupWarnings := groupsOf(m, tabs)
	warnings = append(warnings, groupWarnings...)

	root, err := s.fs.Abs(id)
	if err != nil {
		return nil, err
	}
	p := &models.Presentation{
		ID:        id,
		Name:      m.Meta.Name,
		Root:      root,
		EntryFile: entry.Entry,
		Assets:    rec.Assets,
		Groups:    groups,
		Tabs:      tabs,
		Meta:      m.Meta,
		Checksum:  cs,
		Warnings:  warnings,
	}
	if p.Assets == nil {
		p.Assets = []models.Asset{}
	}
	if p.Name == "" {
		p.Name = s.documentTitle(id, entry.Entry)
	}
	if p.Name == "" {
		p.Name = id
	}
	s.log.Debug("service: loaded", slog.String("id", id),
		slog.Int("assets", len(p.Assets)), slog.Int("warnings", len(warnings)))
	return p, nil
}

// tabs merges declared tab metadata with the entry documents found on disk.
// Declared tabs whose document is missing are kept and flagged broken.
func (s *Service) tabs(id string, m *manifest.Manifest, entry entrypoint.Result) ([]models.Tab, []apperr.Warning) {
	out := make([]models.Tab, 0, len(entry.Tabs)+len(entry.Broken))
	next := 0
	for _, def := range m.Tabs {
		if def.Order >= next {
			next = def.Order + 1
		}
	}
	for _, t := range entry.Tabs {
		tab := models.Tab{ID: t.ID, File: t.File, Order: t.Order}
		if def, _, ok := m.Tab(t.ID); ok && t.Declared {
			tab.Label, tab.Subtitle = def.Label, def.Subtitle
		} else {
			tab.Order = next
			next++
			tab.Label = s.documentTitle(id, t.File)
			if tab.Label == "" {
				tab.Label = hierarchy.DeriveLabel(t.ID)
			}
		}
		out = append(out, tab)
	}

	var warnings []apperr.Warning
	for _, tid := range entry.Broken {
		def, _, _ := m.Tab(tid)
		out = append(out, models.Tab{ID: def.ID, Label: def.Label, Subtitle: def.Subtitle, File: def.File, Order: def.Order, Broken: true})
		warnings = append(warnings, apperr.Warning{
			Kind:    apperr.WarnBrokenTab,
			Ref:     tid,
			Message: fmt.Sprintf("tab %q entry document %q is missing", tid, def.File),
		})
	}
	return hierarchy.SortedTabs(out), warnings
}

// groupsOf lists group definitions. A tab reference that names no known tab
// is dropped.
func groupsOf(m *manifest.Manifest, tabs []models.Tab) ([]models.Group, []apperr.Warning) {
	known := make(map[string]bool, len(tabs))
	for _, t := range tabs {
		known[t.ID] = true
	}
	var warnings []apperr.Warning
	out := make([]models.Group, 0, len(m.Groups))
	for gid, def := range m.Groups {
		g := models.Group{ID: gid, Label: def.Label, Order: def.Order, TabID: def.TabID}
		if g.TabID != "" && !known[g.TabID] {
			warnings = append(warnings, apperr.Warning{
				Kind:    apperr.WarnUnknownTab,
				Ref:     gid,
				Message: fmt.Sprintf("group %q references unknown tab %q", gid, g.TabID),
			})
			g.TabID = ""
		}
		out = append(out, g)
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Ref < warnings[j].Ref })
	return hierarchy.SortedGroups(out), warnings
}

func (s *Service) documentTitle(id, file string) string {
	if file == "" {
		return ""
	}
	data, err := s.fs.Read(path.Join(id, file))
	if err != nil {
		return ""
	}
	return parser.Title(data)
}

// FilePath resolves a file inside a presentation to an absolute path for
// serving. Nested paths are allowed; escaping the presentation is not.
func (s *Service) FilePath(ctx context.Context, id, file string) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	clean := path.Clean("/" + strings.ReplaceAll(file, "\\", "/"))[1:]
	if clean == "" || hiddenPath(clean) {
		return "", apperr.NotFound("file", file)
	}
	rel := path.Join(id, clean)
	if !s.fs.Exists(rel) {
		return "", apperr.NotFound("file", file)
	}
	abs, err := s.fs.Abs(rel)
	if err != nil {
		return "", apperr.NotFound("file", file)
	}
	return abs, nil
}

// Input builds the hierarchy input for p.
func Input(p *models.Presentation, activeTab string) hierarchy.Input {
	tabs := make([]models.Tab, 0, len(p.Tabs))
	for _, t := range p.Tabs {
		if !t.Broken {
			tabs = append(tabs, t)
		}
	}
	return hierarchy.Input{Assets: p.Assets, Groups: p.Groups, Tabs: tabs, ActiveTab: activeTab}
}

// View resolves the visible hierarchy for p. mode, when valid, overrides
// the detected display mode.
func View(p *models.Presentation, activeTab, mode string) hierarchy.View {
	v := hierarchy.Resolve(Input(p, activeTab))
	v.Mode = hierarchy.EffectiveMode(mode, v.Mode)
	return v
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}

func hiddenPath(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

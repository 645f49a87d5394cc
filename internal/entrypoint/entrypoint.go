// Package entrypoint decides whether a folder is a presentation and which
// document is its default entry.
package entrypoint

import (
	"regexp"
	"sort"

	"github.com/starford/deckhand/internal/manifest"
)

// File name conventions, checked in this priority order.
const (
	PrimaryName       = "index.html"
	LegacyPrimaryName = "presentation.html"
)

var (
	tabPattern       = regexp.MustCompile(`^tab-([A-Za-z0-9][A-Za-z0-9_-]*)\.html?$`)
	legacyTabPattern = regexp.MustCompile(`^index-([A-Za-z0-9][A-Za-z0-9_-]*)\.html?$`)
)

// undeclaredOrder sorts pattern-discovered tabs after every declared tab.
const undeclaredOrder = 1 << 30

// Kind names the convention that produced the entry document.
type Kind string

const (
	KindNone          Kind = ""
	KindPrimary       Kind = "primary"
	KindLegacyPrimary Kind = "legacy-primary"
	KindTab           Kind = "tab"
	KindLegacyTab     Kind = "legacy-tab"
)

// TabEntry is a tab entry document found in the folder.
type TabEntry struct {
	ID       string
	File     string
	Order    int
	Declared bool
	Kind     Kind
}

// Result describes the entry point of a folder.
type Result struct {
	// Valid is false when no convention matched; such folders are not presentations.
	Valid bool
	Entry string
	Kind  Kind
	// Tabs holds every tab entry whose document exists, sorted by order then id.
	Tabs []TabEntry
	// Broken lists declared tabs whose entry document is missing.
	Broken []string
	// TabFiles holds every file that serves as a tab entry document.
	TabFiles map[string]bool
}

// Resolve inspects a folder's file names and optional manifest.
func Resolve(files []string, m *manifest.Manifest) Result {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	res := Result{TabFiles: map[string]bool{}}

	seen := map[string]bool{}
	if m != nil {
		for _, t := range m.Tabs {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			file := t.File
			if !present[file] {
				// A declared tab whose file is gone falls back to the
				// conventional document for its id.
				file = conventionalFile(t.ID, present)
				if file == "" {
					res.Broken = append(res.Broken, t.ID)
					continue
				}
			}
			kind := KindTab
			if legacyTabPattern.MatchString(file) {
				kind = KindLegacyTab
			}
			res.Tabs = append(res.Tabs, TabEntry{ID: t.ID, File: file, Order: t.Order, Declared: true, Kind: kind})
			res.TabFiles[file] = true
		}
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, kind := range []Kind{KindTab, KindLegacyTab} {
		re := tabPattern
		if kind == KindLegacyTab {
			re = legacyTabPattern
		}
		for _, f := range sorted {
			sub := re.FindStringSubmatch(f)
			if sub == nil || res.TabFiles[f] {
				continue
			}
			res.TabFiles[f] = true
			if seen[sub[1]] {
				continue
			}
			seen[sub[1]] = true
			res.Tabs = append(res.Tabs, TabEntry{ID: sub[1], File: f, Order: undeclaredOrder, Kind: kind})
		}
	}
	sort.SliceStable(res.Tabs, func(i, j int) bool {
		if res.Tabs[i].Order != res.Tabs[j].Order {
			return res.Tabs[i].Order < res.Tabs[j].Order
		}
		return res.Tabs[i].ID < res.Tabs[j].ID
	})

	switch {
	case present[PrimaryName]:
		res.Valid, res.Entry, res.Kind = true, PrimaryName, KindPrimary
	case present[LegacyPrimaryName]:
		res.Valid, res.Entry, res.Kind = true, LegacyPrimaryName, KindLegacyPrimary
	default:
		if t, ok := firstTab(res.Tabs, KindTab); ok {
			res.Valid, res.Entry, res.Kind = true, t.File, KindTab
		} else if t, ok := firstTab(res.Tabs, KindLegacyTab); ok {
			res.Valid, res.Entry, res.Kind = true, t.File, KindLegacyTab
		}
	}
	return res
}

// conventionalFile returns the tab-<id> or index-<id> document present for
// id, or "".
func conventionalFile(id string, present map[string]bool) string {
	for _, f := range []string{"tab-" + id + ".html", "tab-" + id + ".htm", "index-" + id + ".html", "index-" + id + ".htm"} {
		if present[f] {
			return f
		}
	}
	return ""
}

// firstTab returns the lowest-ordered tab of kind; tabs are already sorted.
func firstTab(tabs []TabEntry, kind Kind) (TabEntry, bool) {
	for _, t := range tabs {
		if t.Kind == kind {
			return t, true
		}
	}
	return TabEntry{}, false
}

// IsPrimary reports whether file is the primary entry of its kind.
func (r Result) IsPrimary() bool {
	return r.Kind == KindPrimary || r.Kind == KindLegacyPrimary
}

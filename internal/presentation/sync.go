package presentation

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/parser"
)

// SyncStrategy decides how entry documents combine with existing groups.
type SyncStrategy string

const (
	// Merge keeps existing groups and slide order; sections found in entry
	// documents create or update groups and move their cards into them.
	Merge SyncStrategy = "merge"
	// Replace discards all groups and rebuilds them from the entry
	// documents. Slides are reordered to follow the cards.
	Replace SyncStrategy = "replace"
)

// ParseSyncStrategy validates a strategy name. Empty selects Merge.
func ParseSyncStrategy(s string) (SyncStrategy, error) {
	switch SyncStrategy(s) {
	case "", Merge:
		return Merge, nil
	case Replace:
		return Replace, nil
	}
	return "", apperr.Invalid("strategy", "must be one of merge, replace")
}

// SyncReport summarizes a sync.
type SyncReport struct {
	Strategy       SyncStrategy     `json:"strategy"`
	GroupsCreated  []string         `json:"groups_created"`
	GroupsUpdated  []string         `json:"groups_updated"`
	TabsDeclared   []string         `json:"tabs_declared"`
	SlidesAssigned int              `json:"slides_assigned"`
	Warnings       []apperr.Warning `json:"warnings"`
}

// entryDoc is one document to scan and the tab its sections belong to.
type entryDoc struct {
	tab  string
	file string
}

// SyncFromEntryDocuments reads the tab entry documents (and the primary
// entry document, whose sections become shared groups) for card elements
// that link to slides, and records the sections they sit in as groups.
func (s *Service) SyncFromEntryDocuments(ctx context.Context, id string, strategy SyncStrategy) (*SyncReport, error) {
	report := &SyncReport{
		Strategy:      strategy,
		GroupsCreated: []string{},
		GroupsUpdated: []string{},
		TabsDeclared:  []string{},
		Warnings:      []apperr.Warning{},
	}
	_, err := s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		docs := make([]entryDoc, 0, len(p.Tabs)+1)
		if a, ok := p.Asset(p.EntryFile); ok && a.Index {
			docs = append(docs, entryDoc{file: p.EntryFile})
		}
		for _, t := range p.Tabs {
			if t.Broken {
				continue
			}
			docs = append(docs, entryDoc{tab: t.ID, file: t.File})
			if _, _, declared := m.Tab(t.ID); !declared {
				m.Tabs = append(m.Tabs, manifest.TabDef{ID: t.ID, Label: t.Label, File: t.File, Order: t.Order})
				report.TabsDeclared = append(report.TabsDeclared, t.ID)
			}
		}

		if strategy == Replace {
			m.Groups = map[string]manifest.GroupDef{}
			for i := range m.Slides {
				m.Slides[i].Group = ""
			}
		}
		materialize(m, p)

		assigned := make(map[string]string)
		var cardOrder []string
		order := nextGroupOrder(m)
		if strategy == Replace {
			order = 0
		}
		owner := make(map[string]string)
		for gid, g := range m.Groups {
			owner[gid] = g.TabID
		}

		for _, d := range docs {
			data, err := s.fs.Read(path.Join(id, d.file))
			if err != nil {
				return fmt.Errorf("service: read %s: %w", d.file, err)
			}
			doc, err := parser.Parse(data)
			if err != nil {
				report.Warnings = append(report.Warnings, apperr.Warning{
					Kind: apperr.WarnBrokenTab, Ref: d.tab, Message: fmt.Sprintf("cannot parse %q: %v", d.file, err),
				})
				continue
			}
			for _, sec := range doc.Sections {
				gid := ""
				if sec.ID != "" {
					gid = sec.ID
					if tab, exists := owner[gid]; exists && tab != d.tab {
						gid = d.tab + "-" + sec.ID
						if d.tab == "" {
							gid = "shared-" + sec.ID
						}
					}
					def, exists := m.Groups[gid]
					if exists {
						if def.Label != sec.Label || def.TabID != d.tab {
							report.GroupsUpdated = appendOnce(report.GroupsUpdated, gid)
						}
						def.Label, def.TabID = sec.Label, d.tab
					} else {
						def = manifest.GroupDef{Label: sec.Label, Order: order, TabID: d.tab}
						order++
						report.GroupsCreated = append(report.GroupsCreated, gid)
					}
					m.Groups[gid] = def
					owner[gid] = d.tab
				}
				for _, c := range sec.Cards {
					if _, ok := p.Asset(c.File); !ok {
						report.Warnings = append(report.Warnings, apperr.Warning{
							Kind:    apperr.WarnUnknownCard,
							Ref:     c.File,
							Message: fmt.Sprintf("%s links to %q, which is not a slide", d.file, c.File),
						})
						continue
					}
					if _, done := assigned[c.File]; done {
						continue
					}
					assigned[c.File] = gid
					cardOrder = append(cardOrder, c.File)
				}
			}
		}

		for i := range m.Slides {
			gid, ok := assigned[m.Slides[i].File]
			if !ok || gid == "" {
				continue
			}
			m.Slides[i].Group = gid
			report.SlidesAssigned++
		}
		if strategy == Replace {
			m.Slides = followCards(m.Slides, cardOrder)
		}
		sort.Strings(report.GroupsUpdated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("service: synced from entry documents", slog.String("id", id),
		slog.String("strategy", string(strategy)),
		slog.Int("groups_created", len(report.GroupsCreated)),
		slog.Int("slides_assigned", report.SlidesAssigned))
	return report, nil
}

// followCards puts the slides named by cards first, in card order, followed
// by the rest in their existing order.
func followCards(slides []manifest.Slide, cards []string) []manifest.Slide {
	byFile := make(map[string]manifest.Slide, len(slides))
	for _, sl := range slides {
		byFile[sl.File] = sl
	}
	out := make([]manifest.Slide, 0, len(slides))
	placed := make(map[string]bool, len(cards))
	for _, f := range cards {
		out = append(out, byFile[f])
		placed[f] = true
	}
	for _, sl := range slides {
		if !placed[sl.File] {
			out = append(out, sl)
		}
	}
	return out
}

func appendOnce(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

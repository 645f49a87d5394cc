package presentation

import (
	"context"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
)

// DeleteStrategy decides what happens to the groups of a deleted tab.
type DeleteStrategy string

const (
	// Orphan keeps the groups and makes them shared.
	Orphan DeleteStrategy = "orphan"
	// Cascade deletes the groups; their assets become ungrouped.
	Cascade DeleteStrategy = "cascade"
	// Reparent moves the groups to another tab.
	Reparent DeleteStrategy = "reparent"
)

// ParseDeleteStrategy validates a strategy name. Empty selects Orphan.
func ParseDeleteStrategy(s string) (DeleteStrategy, error) {
	switch DeleteStrategy(s) {
	case "", Orphan:
		return Orphan, nil
	case Cascade, Reparent:
		return DeleteStrategy(s), nil
	}
	return "", apperr.Invalid("strategy", "must be one of orphan, cascade, reparent")
}

// TabInput describes a tab to create.
type TabInput struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Subtitle string `json:"subtitle,omitempty"`
	// File defaults to "tab-<id>.html".
	File   string `json:"file,omitempty"`
	Order  *int   `json:"order,omitempty"`
	Rename bool   `json:"rename,omitempty"`
}

// TabPatch holds the fields to change on a tab. Nil fields are kept.
type TabPatch struct {
	Label    *string `json:"label,omitempty"`
	Subtitle *string `json:"subtitle,omitempty"`
	File     *string `json:"file,omitempty"`
	Order    *int    `json:"order,omitempty"`
}

// CreateTab declares a tab. The entry document does not have to exist yet;
// until it does the tab is reported as broken.
func (s *Service) CreateTab(ctx context.Context, id string, in TabInput) (*models.Presentation, string, error) {
	var created string
	p, err := s.mutate(ctx, id, func(m *manifest.Manifest, _ *models.Presentation) error {
		tid := in.ID
		if _, _, taken := m.Tab(tid); taken {
			if !in.Rename {
				return apperr.Conflict("tab", tid)
			}
			tid = freeID(tid, func(c string) bool { _, _, ok := m.Tab(c); return ok })
		}
		file := in.File
		if file == "" {
			file = "tab-" + tid + ".html"
		}
		order := nextTabOrder(m)
		if in.Order != nil {
			order = *in.Order
		}
		m.Tabs = append(m.Tabs, manifest.TabDef{ID: tid, Label: in.Label, Subtitle: in.Subtitle, File: file, Order: order})
		created = tid
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return p, created, nil
}

// UpdateTab changes a tab. A tab discovered only from its file name is
// declared by its first update.
func (s *Service) UpdateTab(ctx context.Context, id, tabID string, patch TabPatch) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		def, i, ok := m.Tab(tabID)
		if !ok {
			found, known := p.Tab(tabID)
			if !known {
				return apperr.NotFound("tab", tabID)
			}
			def = manifest.TabDef{ID: found.ID, Label: found.Label, Subtitle: found.Subtitle, File: found.File, Order: found.Order}
			m.Tabs = append(m.Tabs, def)
			i = len(m.Tabs) - 1
		}
		if patch.Label != nil {
			def.Label = *patch.Label
		}
		if patch.Subtitle != nil {
			def.Subtitle = *patch.Subtitle
		}
		if patch.File != nil {
			def.File = *patch.File
		}
		if patch.Order != nil {
			def.Order = *patch.Order
		}
		m.Tabs[i] = def
		return nil
	})
}

// DeleteTab removes a tab declaration and applies strategy to its groups.
// The entry document itself is left on disk, so a tab found by file name
// stays discoverable. For Reparent, target names the receiving tab.
func (s *Service) DeleteTab(ctx context.Context, id, tabID string, strategy DeleteStrategy, target string) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		_, i, declared := m.Tab(tabID)
		if _, found := p.Tab(tabID); !declared && !found {
			return apperr.NotFound("tab", tabID)
		}
		if strategy == Reparent {
			if target == "" || target == tabID {
				return apperr.Invalid("target", "reparent needs a different target tab")
			}
			if _, ok := p.Tab(target); !ok {
				return apperr.NotFound("tab", target)
			}
		}
		if declared {
			m.Tabs = append(m.Tabs[:i], m.Tabs[i+1:]...)
		}

		for gid, g := range m.Groups {
			if g.TabID != tabID {
				continue
			}
			switch strategy {
			case Cascade:
				delete(m.Groups, gid)
				for j := range m.Slides {
					if m.Slides[j].Group == gid {
						m.Slides[j].Group = ""
					}
				}
			case Reparent:
				g.TabID = target
				m.Groups[gid] = g
			default:
				g.TabID = ""
				m.Groups[gid] = g
			}
		}
		return nil
	})
}

func nextTabOrder(m *manifest.Manifest) int {
	next := 0
	for _, t := range m.Tabs {
		if t.Order >= next {
			next = t.Order + 1
		}
	}
	return next
}

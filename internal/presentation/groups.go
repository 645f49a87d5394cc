package presentation

import (
	"context"
	"fmt"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
)

// GroupInput describes a group to create.
type GroupInput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Order defaults to one past the highest existing order.
	Order *int   `json:"order,omitempty"`
	TabID string `json:"tabId,omitempty"`
	// Rename picks a free id ("notes-2", "notes-3", ...) instead of failing
	// when ID is taken.
	Rename bool `json:"rename,omitempty"`
}

// GroupPatch holds the fields to change on a group. Nil fields are kept;
// an empty TabID clears the tab reference.
type GroupPatch struct {
	Label *string `json:"label,omitempty"`
	Order *int    `json:"order,omitempty"`
	TabID *string `json:"tabId,omitempty"`
}

// CreateGroup adds a group definition.
func (s *Service) CreateGroup(ctx context.Context, id string, in GroupInput) (*models.Presentation, string, error) {
	var created string
	p, err := s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		gid := in.ID
		if _, taken := m.Groups[gid]; taken {
			if !in.Rename {
				return apperr.Conflict("group", gid)
			}
			gid = freeID(gid, func(c string) bool { _, ok := m.Groups[c]; return ok })
		}
		if in.TabID != "" {
			if _, ok := p.Tab(in.TabID); !ok {
				return apperr.NotFound("tab", in.TabID)
			}
		}
		order := nextGroupOrder(m)
		if in.Order != nil {
			order = *in.Order
		}
		m.Groups[gid] = manifest.GroupDef{Label: in.Label, Order: order, TabID: in.TabID}
		created = gid
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return p, created, nil
}

// UpdateGroup changes a group definition.
func (s *Service) UpdateGroup(ctx context.Context, id, groupID string, patch GroupPatch) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, p *models.Presentation) error {
		def, ok := m.Groups[groupID]
		if !ok {
			return apperr.NotFound("group", groupID)
		}
		if patch.Label != nil {
			def.Label = *patch.Label
		}
		if patch.Order != nil {
			def.Order = *patch.Order
		}
		if patch.TabID != nil {
			if *patch.TabID != "" {
				if _, ok := p.Tab(*patch.TabID); !ok {
					return apperr.NotFound("tab", *patch.TabID)
				}
			}
			def.TabID = *patch.TabID
		}
		m.Groups[groupID] = def
		return nil
	})
}

// DeleteGroup removes a group definition. Its assets become ungrouped.
func (s *Service) DeleteGroup(ctx context.Context, id, groupID string) (*models.Presentation, error) {
	return s.mutate(ctx, id, func(m *manifest.Manifest, _ *models.Presentation) error {
		if _, ok := m.Groups[groupID]; !ok {
			return apperr.NotFound("group", groupID)
		}
		delete(m.Groups, groupID)
		for i := range m.Slides {
			if m.Slides[i].Group == groupID {
				m.Slides[i].Group = ""
			}
		}
		return nil
	})
}

// SetGroupParentTab scopes a group to a tab, or makes it shared when tabID
// is empty.
func (s *Service) SetGroupParentTab(ctx context.Context, id, groupID, tabID string) (*models.Presentation, error) {
	return s.UpdateGroup(ctx, id, groupID, GroupPatch{TabID: &tabID})
}

func nextGroupOrder(m *manifest.Manifest) int {
	next := 0
	for _, g := range m.Groups {
		if g.Order >= next {
			next = g.Order + 1
		}
	}
	return next
}

// freeID returns the first "<base>-<n>" (n >= 2) for which taken is false.
func freeID(base string, taken func(string) bool) string {
	for n := 2; ; n++ {
		c := fmt.Sprintf("%s-%d", base, n)
		if !taken(c) {
			return c
		}
	}
}

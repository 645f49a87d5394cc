// Package hierarchy computes the tab-filtered, grouped view of a
// presentation's effective assets. Everything here is pure and performs no
// I/O, so it is safe to call on every keystroke.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/starford/deckhand/internal/models"
)

// Input is the already-reconciled state of a presentation.
type Input struct {
	Assets    []models.Asset
	Groups    []models.Group
	Tabs      []models.Tab
	ActiveTab string
}

// GroupView is a visible group and its members in effective order.
type GroupView struct {
	Group  models.Group   `json:"group"`
	Assets []models.Asset `json:"assets"`
	// Derived is set when the group had no definition and its label was
	// synthesized from the id.
	Derived bool `json:"derived,omitempty"`
}

// View is what a sidebar renders.
type View struct {
	ActiveTab string         `json:"activeTab,omitempty"`
	Tabs      []models.Tab   `json:"tabs"`
	Index     *models.Asset  `json:"index,omitempty"`
	Root      []models.Asset `json:"root"`
	Groups    []GroupView    `json:"groups"`
	Mode      Mode           `json:"mode"`
}

// SortedTabs returns tabs ordered by Order, ties broken by id.
func SortedTabs(tabs []models.Tab) []models.Tab {
	out := append([]models.Tab(nil), tabs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedGroups returns groups ordered by Order, ties broken by id.
func SortedGroups(groups []models.Group) []models.Group {
	out := append([]models.Group(nil), groups...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolveActiveTab returns id when it names an existing tab. An empty id
// means no tab. A dangling id falls back to the first tab by order, or to
// no tab when there are none.
func ResolveActiveTab(tabs []models.Tab, id string) string {
	if id == "" {
		return ""
	}
	for _, t := range tabs {
		if t.ID == id {
			return id
		}
	}
	if sorted := SortedTabs(tabs); len(sorted) > 0 {
		return sorted[0].ID
	}
	return ""
}

// Resolve builds the visible view for in.ActiveTab.
//
// Assets without a group are always visible, whatever tab is active: tab
// membership is derived through groups, so an ungrouped asset cannot be
// scoped to a tab. A group is visible when no tab is active, when it has
// no tab, or when its tab is the active one. A group tab reference that
// names no existing tab is treated as unset.
func Resolve(in Input) View {
	tabIDs := make(map[string]bool, len(in.Tabs))
	for _, t := range in.Tabs {
		tabIDs[t.ID] = true
	}
	active := ResolveActiveTab(in.Tabs, in.ActiveTab)

	defs := make(map[string]models.Group, len(in.Groups))
	for _, g := range in.Groups {
		if g.TabID != "" && !tabIDs[g.TabID] {
			g.TabID = ""
		}
		defs[g.ID] = g
	}
	visible := func(g models.Group) bool {
		return active == "" || g.TabID == "" || g.TabID == active
	}

	view := View{ActiveTab: active, Tabs: SortedTabs(in.Tabs), Root: []models.Asset{}, Groups: []GroupView{}}

	members := map[string][]models.Asset{}
	for _, a := range in.Assets {
		if a.Index && view.Index == nil {
			idx := a
			view.Index = &idx
			continue
		}
		if a.Group == "" {
			view.Root = append(view.Root, a)
			continue
		}
		members[a.Group] = append(members[a.Group], a)
	}

	// Hidden groups must leave members entirely before the undefined-group
	// fallback below runs; otherwise they resurface under a derived label.
	for id := range members {
		if g, ok := defs[id]; ok && !visible(g) {
			delete(members, id)
		}
	}

	for _, g := range SortedGroups(in.Groups) {
		g = defs[g.ID]
		assets := members[g.ID]
		delete(members, g.ID)
		if len(assets) == 0 || !visible(g) {
			continue
		}
		view.Groups = append(view.Groups, GroupView{Group: g, Assets: assets})
	}

	if len(members) > 0 {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			view.Groups = append(view.Groups, GroupView{
				Group:   models.Group{ID: id, Label: DeriveLabel(id), Order: 1 << 30},
				Assets:  members[id],
				Derived: true,
			})
		}
	}

	view.Mode = DetectMode(len(in.Assets), len(in.Groups))
	return view
}

// DeriveLabel turns a group id such as "user-stories" into "User Stories".
func DeriveLabel(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Item is one navigable position in the flattened view.
type Item struct {
	File  string `json:"file"`
	Group string `json:"group,omitempty"`
}

// Flatten returns the navigation order: the index entry, then root assets,
// then each visible group's assets in group order.
func (v View) Flatten() []Item {
	var out []Item
	if v.Index != nil {
		out = append(out, Item{File: v.Index.File})
	}
	for _, a := range v.Root {
		out = append(out, Item{File: a.File})
	}
	for _, g := range v.Groups {
		for _, a := range g.Assets {
			out = append(out, Item{File: a.File, Group: g.Group.ID})
		}
	}
	return out
}

// GroupOf returns the id of the visible group holding file.
func (v View) GroupOf(file string) (string, bool) {
	for _, g := range v.Groups {
		for _, a := range g.Assets {
			if a.File == file {
				return g.Group.ID, true
			}
		}
	}
	return "", false
}

// Package navigation tracks which asset or tab entry document a viewer is
// looking at and turns navigation requests into positions in the visible
// hierarchy.
//
// A Machine is owned by exactly one client and is not safe for concurrent
// use. It performs no I/O.
package navigation

import (
	"errors"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/hierarchy"
	"github.com/starford/deckhand/internal/models"
)

// State is the cursor state.
type State string

const (
	NoSelection      State = "none"
	AssetSelected    State = "asset"
	TabIndexSelected State = "tab_index"
)

// Direction is a navigate request.
type Direction string

const (
	Next  Direction = "next"
	Prev  Direction = "prev"
	First Direction = "first"
	Last  Direction = "last"
)

// ParseDirection validates a direction received from a client.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case Next, Prev, First, Last:
		return d, true
	}
	return "", false
}

// Cursor is the per-client selection.
type Cursor struct {
	State State  `json:"state"`
	TabID string `json:"tabId,omitempty"`
	File  string `json:"file,omitempty"`
}

// Snapshot is everything a client needs to render its sidebar and content.
type Snapshot struct {
	Cursor     Cursor         `json:"cursor"`
	View       hierarchy.View `json:"view"`
	Mode       hierarchy.Mode `json:"mode"`
	Collapsed  []string       `json:"collapsed"`
	Presenting bool           `json:"presenting"`
	Display    Display        `json:"display"`
}

// Machine is the navigation state machine for one client.
type Machine struct {
	log *slog.Logger

	input  hierarchy.Input
	view   hierarchy.View
	items  []hierarchy.Item
	cursor Cursor
	target RenderTarget

	collapsed    map[string]bool
	modeOverride string
	presenting   bool
}

// New creates a Machine over in. in.ActiveTab seeds the tab filter.
func New(in hierarchy.Input, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		log:       logger,
		collapsed: make(map[string]bool),
		cursor:    Cursor{State: NoSelection},
	}
	m.setInput(in)
	return m
}

func (m *Machine) setInput(in hierarchy.Input) {
	m.input = in
	m.view = hierarchy.Resolve(in)
	m.input.ActiveTab = m.view.ActiveTab
	m.items = m.view.Flatten()
}

func (m *Machine) setActiveTab(id string) {
	in := m.input
	in.ActiveTab = id
	m.setInput(in)
}

// Cursor returns the current selection.
func (m *Machine) Cursor() Cursor { return m.cursor }

// View returns the current visible hierarchy.
func (m *Machine) View() hierarchy.View { return m.view }

// Items returns the flattened visible order navigation walks over.
func (m *Machine) Items() []hierarchy.Item {
	return append([]hierarchy.Item(nil), m.items...)
}

// ActiveTab returns the tab used for sidebar filtering.
func (m *Machine) ActiveTab() string { return m.view.ActiveTab }

// SelectAsset selects file. If the asset's group belongs to a tab, that tab
// becomes active; otherwise the current tab context is kept. A collapsed
// owning group is expanded.
func (m *Machine) SelectAsset(file string) (Cursor, error) {
	a, ok := m.findAsset(file)
	if !ok {
		return m.cursor, apperr.NotFound("asset", file)
	}
	if a.Group != "" {
		if tab := m.groupTab(a.Group); tab != "" && tab != m.view.ActiveTab {
			m.setActiveTab(tab)
		}
	}
	m.selectVisible(a.File)
	return m.cursor, nil
}

func (m *Machine) selectVisible(file string) {
	if g, ok := m.view.GroupOf(file); ok {
		delete(m.collapsed, g)
	}
	m.cursor = Cursor{State: AssetSelected, TabID: m.view.ActiveTab, File: file}
	m.target.ShowInline(file)
}

// SelectTab shows tab's entry document and makes it the active filter. The
// previous asset selection is cleared.
func (m *Machine) SelectTab(tabID string) (Cursor, error) {
	tab, ok := m.findTab(tabID)
	if !ok {
		return m.cursor, apperr.NotFound("tab", tabID)
	}
	m.setActiveTab(tab.ID)
	m.cursor = Cursor{State: TabIndexSelected, TabID: tab.ID}
	m.target.ShowRef(tab.File)
	return m.cursor, nil
}

// ClearTab removes the tab filter. An asset selection survives; a tab index
// selection does not.
func (m *Machine) ClearTab() Cursor {
	m.setActiveTab("")
	switch m.cursor.State {
	case TabIndexSelected:
		m.cursor = Cursor{State: NoSelection}
		m.target.Clear()
	case AssetSelected:
		m.cursor.TabID = ""
	}
	return m.cursor
}

// Navigate moves over the flattened visible order, wrapping at both ends.
// From a tab index document or from no selection, next and first land on
// the first item while prev and last land on the last one.
func (m *Machine) Navigate(dir Direction) (Cursor, error) {
	n := len(m.items)
	if n == 0 {
		return m.cursor, apperr.NotFound("asset", string(dir))
	}

	cur := -1
	if m.cursor.State == AssetSelected {
		cur = m.indexOf(m.cursor.File)
	}

	var i int
	switch dir {
	case First:
		i = 0
	case Last:
		i = n - 1
	case Next:
		if cur < 0 {
			i = 0
		} else {
			i = (cur + 1) % n
		}
	case Prev:
		if cur < 0 {
			i = n - 1
		} else {
			i = (cur - 1 + n) % n
		}
	default:
		return m.cursor, apperr.Invalid("direction", "must be one of next, prev, first, last")
	}

	m.selectVisible(m.items[i].File)
	return m.cursor, nil
}

// ReportBoundaryNavigation records that the content boundary moved to
// filename on its own. The name is matched against visible assets and then
// against tab entry documents. Unknown names leave the state untouched and
// report false.
func (m *Machine) ReportBoundaryNavigation(filename string) (Cursor, bool) {
	name := normalizeFile(filename)
	if name == "" {
		return m.cursor, false
	}
	if _, ok := m.findAsset(name); ok {
		c, err := m.SelectAsset(name)
		return c, err == nil
	}
	for _, t := range m.input.Tabs {
		if t.File == name {
			c, err := m.SelectTab(t.ID)
			return c, err == nil
		}
	}
	m.log.Debug("navigation: boundary reported unknown document", slog.String("file", filename))
	return m.cursor, false
}

// Refresh swaps in re-derived presentation state. The tab filter and the
// selection are kept when they still exist; otherwise the tab falls back to
// the first tab by order (or none) and the asset to the first visible item.
func (m *Machine) Refresh(in hierarchy.Input) Cursor {
	in.ActiveTab = m.view.ActiveTab
	m.setInput(in)

	for g := range m.collapsed {
		if !m.groupExists(g) {
			delete(m.collapsed, g)
		}
	}

	switch m.cursor.State {
	case TabIndexSelected:
		if tab, ok := m.findTab(m.cursor.TabID); ok {
			m.target.ShowRef(tab.File)
			break
		}
		if t := m.view.ActiveTab; t != "" {
			tab, _ := m.findTab(t)
			m.cursor = Cursor{State: TabIndexSelected, TabID: t}
			m.target.ShowRef(tab.File)
		} else {
			m.fallbackToFirst()
		}
	case AssetSelected:
		if m.indexOf(m.cursor.File) >= 0 {
			m.cursor.TabID = m.view.ActiveTab
			break
		}
		m.fallbackToFirst()
	}
	return m.cursor
}

func (m *Machine) fallbackToFirst() {
	if len(m.items) == 0 {
		m.cursor = Cursor{State: NoSelection}
		m.target.Clear()
		return
	}
	m.selectVisible(m.items[0].File)
}

// ToggleGroup flips the collapsed state of a group and reports the new state.
func (m *Machine) ToggleGroup(id string) (bool, error) {
	if !m.groupExists(id) {
		return false, apperr.NotFound("group", id)
	}
	if m.collapsed[id] {
		delete(m.collapsed, id)
		return false, nil
	}
	m.collapsed[id] = true
	return true, nil
}

// SetCollapsed replaces the collapsed set, ignoring unknown groups.
func (m *Machine) SetCollapsed(ids []string) {
	m.collapsed = make(map[string]bool, len(ids))
	for _, id := range ids {
		if m.groupExists(id) {
			m.collapsed[id] = true
		}
	}
}

// Collapsed returns the collapsed group ids, sorted.
func (m *Machine) Collapsed() []string {
	out := make([]string, 0, len(m.collapsed))
	for id := range m.collapsed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetModeOverride stores a display-mode override. An empty value clears it;
// invalid values are rejected.
func (m *Machine) SetModeOverride(mode string) error {
	if mode == "" {
		m.modeOverride = ""
		return nil
	}
	if _, ok := hierarchy.ParseMode(mode); !ok {
		return apperr.Invalid("mode", "unsupported display mode")
	}
	m.modeOverride = mode
	return nil
}

// ModeOverride returns the stored override, or "" when none is set.
func (m *Machine) ModeOverride() string { return m.modeOverride }

// Mode returns the override when set, else the detected mode.
func (m *Machine) Mode() hierarchy.Mode {
	return hierarchy.EffectiveMode(m.modeOverride, m.view.Mode)
}

// TogglePresenting flips presentation mode.
func (m *Machine) TogglePresenting() bool {
	m.presenting = !m.presenting
	return m.presenting
}

// Display resolves the render target. A mixed target is rendered inline and
// logged.
func (m *Machine) Display() Display {
	d, err := m.target.Resolve()
	if errors.Is(err, apperr.ErrAmbiguousRenderState) {
		m.log.Error("navigation: render target has both inline and ref set",
			slog.String("inline", m.target.Inline), slog.String("ref", m.target.Ref))
	}
	return d
}

// Snapshot captures the state for a client.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Cursor:     m.cursor,
		View:       m.view,
		Mode:       m.Mode(),
		Collapsed:  m.Collapsed(),
		Presenting: m.presenting,
		Display:    m.Display(),
	}
}

func (m *Machine) findAsset(file string) (models.Asset, bool) {
	for _, a := range m.input.Assets {
		if a.File == file {
			return a, true
		}
	}
	return models.Asset{}, false
}

func (m *Machine) findTab(id string) (models.Tab, bool) {
	for _, t := range m.input.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return models.Tab{}, false
}

// groupTab returns the tab owning group id, or "" when the group is shared
// or its tab no longer exists.
func (m *Machine) groupTab(id string) string {
	for _, g := range m.input.Groups {
		if g.ID == id {
			if _, ok := m.findTab(g.TabID); ok {
				return g.TabID
			}
			return ""
		}
	}
	return ""
}

func (m *Machine) groupExists(id string) bool {
	for _, g := range m.input.Groups {
		if g.ID == id {
			return true
		}
	}
	for _, g := range m.view.Groups {
		if g.Group.ID == id {
			return true
		}
	}
	return false
}

func (m *Machine) indexOf(file string) int {
	for i, it := range m.items {
		if it.File == file {
			return i
		}
	}
	return -1
}

// normalizeFile reduces a reported location to a bare, unescaped file
// name. Locations with a scheme or host, or that climb out of the folder
// with "..", name nothing in this presentation and yield "".
func normalizeFile(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == ".." {
			return ""
		}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

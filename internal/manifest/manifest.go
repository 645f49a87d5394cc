// Package manifest reads, validates and persists the per-presentation
// manifest document that records user-authored organization.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/deckhand/internal/models"
)

// Manifest is the declared state of a presentation.
type Manifest struct {
	Meta   models.Meta         `json:"meta"`
	Groups map[string]GroupDef `json:"groups"`
	Tabs   []TabDef            `json:"tabs"`
	Slides []Slide             `json:"slides"`

	// unordered lists the groups ("groups.<id>") and tabs ("tabs[i]") that
	// were decoded without an order key.
	unordered map[string]bool
}

// GroupDef is a group definition keyed by id in Manifest.Groups.
type GroupDef struct {
	Label string `json:"label"`
	Order int    `json:"order"`
	TabID string `json:"tabId,omitempty"`
}

// TabDef is a tab definition.
type TabDef struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Subtitle string `json:"subtitle,omitempty"`
	File     string `json:"file"`
	Order    int    `json:"order"`
}

// Slide is a declared asset with optional per-asset overrides.
type Slide struct {
	File        string   `json:"file"`
	Title       string   `json:"title,omitempty"`
	Group       string   `json:"group,omitempty"`
	Description string   `json:"description,omitempty"`
	Recommended bool     `json:"recommended,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UnmarshalJSON accepts either a bare filename or a slide object.
func (s *Slide) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var file string
		if err := json.Unmarshal(data, &file); err != nil {
			return err
		}
		*s = Slide{File: file}
		return nil
	}
	type plain Slide
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Slide(p)
	return nil
}

// Default returns an empty manifest.
func Default() *Manifest {
	return &Manifest{
		Groups: map[string]GroupDef{},
		Tabs:   []TabDef{},
		Slides: []Slide{},
	}
}

// wire is the on-disk shape, including the legacy flat form.
type wire struct {
	Meta   models.Meta         `json:"meta"`
	Groups map[string]GroupDef `json:"groups"`
	Tabs   []TabDef            `json:"tabs"`
	Slides []Slide             `json:"slides"`
	Assets *struct {
		Order []string `json:"order"`
	} `json:"assets,omitempty"`
}

// Decode parses a manifest document. The legacy form
// {"assets":{"order":[...]}} is read as a slide list with no metadata.
func Decode(data []byte) (*Manifest, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	m := &Manifest{Meta: w.Meta, Groups: w.Groups, Tabs: w.Tabs, Slides: w.Slides}
	m.unordered = unordered(data)
	if len(m.Slides) == 0 && w.Assets != nil {
		for _, f := range w.Assets.Order {
			m.Slides = append(m.Slides, Slide{File: f})
		}
	}
	m.normalize()
	return m, nil
}

// unordered finds groups and tabs in data that lack an order key. The
// typed decode reads a missing order as 0, which is a valid order.
func unordered(data []byte) map[string]bool {
	var shape struct {
		Groups map[string]map[string]json.RawMessage `json:"groups"`
		Tabs   []map[string]json.RawMessage          `json:"tabs"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil
	}
	var out map[string]bool
	mark := func(field string) {
		if out == nil {
			out = make(map[string]bool)
		}
		out[field] = true
	}
	for id, g := range shape.Groups {
		if _, ok := g["order"]; !ok {
			mark("groups." + id)
		}
	}
	for i, t := range shape.Tabs {
		if _, ok := t["order"]; !ok {
			mark(fmt.Sprintf("tabs[%d]", i))
		}
	}
	return out
}

// Encode renders the manifest in its canonical indented form.
func Encode(m *Manifest) ([]byte, error) {
	c := m.Clone()
	c.normalize()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	return append(data, '\n'), nil
}

func (m *Manifest) normalize() {
	if m.Groups == nil {
		m.Groups = map[string]GroupDef{}
	}
	if m.Tabs == nil {
		m.Tabs = []TabDef{}
	}
	if m.Slides == nil {
		m.Slides = []Slide{}
	}
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := &Manifest{
		Meta:   m.Meta,
		Groups: make(map[string]GroupDef, len(m.Groups)),
		Tabs:   append([]TabDef(nil), m.Tabs...),
		Slides: make([]Slide, len(m.Slides)),
	}
	if m.Meta.Created != nil {
		t := *m.Meta.Created
		c.Meta.Created = &t
	}
	if m.Meta.Updated != nil {
		t := *m.Meta.Updated
		c.Meta.Updated = &t
	}
	for k, v := range m.Groups {
		c.Groups[k] = v
	}
	for i, s := range m.Slides {
		s.Tags = append([]string(nil), s.Tags...)
		c.Slides[i] = s
	}
	c.normalize()
	return c
}

// Tab returns the tab definition with the given id.
func (m *Manifest) Tab(id string) (TabDef, int, bool) {
	for i, t := range m.Tabs {
		if t.ID == id {
			return t, i, true
		}
	}
	return TabDef{}, -1, false
}

// Slide returns the declared slide for file.
func (m *Manifest) Slide(file string) (Slide, int, bool) {
	for i, s := range m.Slides {
		if s.File == file {
			return s, i, true
		}
	}
	return Slide{}, -1, false
}

// Package models defines the domain types for deckhand.
package models

import (
	"time"

	"github.com/starford/deckhand/internal/apperr"
)

// FileInfo is a lightweight description of a file inside a presentation folder.
type FileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Asset is one HTML slide in a presentation. File is the only stable join key
// with the filesystem.
type Asset struct {
	File        string    `json:"file"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Group       string    `json:"group,omitempty"`
	Recommended bool      `json:"recommended,omitempty"`
	Index       bool      `json:"index,omitempty"`
	Declared    bool      `json:"declared"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Group is a named, ordered bucket of assets, optionally scoped to a tab.
type Group struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
	TabID string `json:"tabId,omitempty"`
}

// Tab is a top-level section with its own entry document.
type Tab struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Subtitle string `json:"subtitle,omitempty"`
	File     string `json:"file"`
	Order    int    `json:"order"`
	Broken   bool   `json:"broken,omitempty"`
}

// Meta holds optional presentation metadata.
type Meta struct {
	Name    string     `json:"name,omitempty"`
	Created *time.Time `json:"created,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`
}

// Presentation is the effective, reconciled state of one presentation folder.
type Presentation struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Root      string           `json:"root"`
	EntryFile string           `json:"entry_file,omitempty"`
	Assets    []Asset          `json:"assets"`
	Groups    []Group          `json:"groups"`
	Tabs      []Tab            `json:"tabs"`
	Meta      Meta             `json:"meta"`
	Checksum  string           `json:"checksum,omitempty"`
	Warnings  []apperr.Warning `json:"warnings,omitempty"`
}

// Asset returns the asset with the given file name.
func (p *Presentation) Asset(file string) (Asset, bool) {
	for _, a := range p.Assets {
		if a.File == file {
			return a, true
		}
	}
	return Asset{}, false
}

// Tab returns the tab with the given id.
func (p *Presentation) Tab(id string) (Tab, bool) {
	for _, t := range p.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}

// Summary is a presentation entry in a library listing.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntryFile  string `json:"entry_file,omitempty"`
	AssetCount int    `json:"asset_count"`
	TabCount   int    `json:"tab_count"`
}

// Change kinds emitted by the watcher.
const (
	ChangeContent   = "content"
	ChangeStructure = "structure"
)

// Change is a classified filesystem change. File is empty for changes that
// concern the presentation folder itself.
type Change struct {
	Kind         string `json:"kind"`
	Presentation string `json:"presentation"`
	File         string `json:"file,omitempty"`
}

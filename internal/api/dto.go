package api

import (
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/presentation"
)

// PresentationListResponse wraps the library listing.
type PresentationListResponse struct {
	Presentations []models.Summary `json:"presentations" validate:"required"`
}

// ReorderRequest lists asset files in their new order. Files left out keep
// their relative order after the listed ones.
type ReorderRequest struct {
	Files []string `json:"files" example:"intro.html,agenda.html" validate:"required"`
}

// AssignGroupRequest moves an asset into a group. An empty group ungroups it.
type AssignGroupRequest struct {
	Group string `json:"group" example:"research"`
}

// SetTabRequest sets the parent tab of a group. An empty tab makes the group
// shared.
type SetTabRequest struct {
	TabID string `json:"tabId" example:"mary"`
}

// CreatedResponse is returned by create operations. ID is the id actually
// used, which differs from the requested one after a rename on conflict.
type CreatedResponse struct {
	ID           string               `json:"id" validate:"required"`
	Presentation *models.Presentation `json:"presentation" validate:"required"`
}

// ManifestResponse carries a manifest write result.
type ManifestResponse struct {
	Checksum string `json:"checksum" validate:"required"`
}

// SyncResponse wraps a sync report.
type SyncResponse = presentation.SyncReport

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/hierarchy"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/presentation"
)

// Handler holds API route handlers.
type Handler struct {
	svc *presentation.Service
	log *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *presentation.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, log: logger}
}

// param returns a decoded URL parameter. Encoded names such as
// "q%203.html" arrive escaped.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPresentations handles GET /api/presentations.
//
//	@Summary		List presentations in the library
//	@Tags			presentations
//	@Produce		json
//	@Success		200	{object}	PresentationListResponse
//	@Router			/presentations [get]
func (h *Handler) ListPresentations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PresentationListResponse{Presentations: list})
}

// GetPresentation handles GET /api/presentations/{id}.
//
//	@Summary		Get the effective state of a presentation
//	@Tags			presentations
//	@Produce		json
//	@Param			id	path		string	true	"Presentation id"
//	@Success		200	{object}	models.Presentation
//	@Failure		404	{object}	errResponse
//	@Router			/presentations/{id} [get]
func (h *Handler) GetPresentation(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), param(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// View handles GET /api/presentations/{id}/view?tab=&mode=.
//
//	@Summary		Resolve the visible hierarchy for a tab
//	@Tags			presentations
//	@Produce		json
//	@Param			id		path		string	true	"Presentation id"
//	@Param			tab		query		string	false	"Active tab"
//	@Param			mode	query		string	false	"Display mode override"	Enums(flat, grouped)
//	@Success		200		{object}	hierarchy.View
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/presentations/{id}/view [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	if mode != "" {
		if _, ok := hierarchy.ParseMode(mode); !ok {
			h.writeError(w, r, apperr.Invalid("mode", "unsupported display mode"))
			return
		}
	}
	p, err := h.svc.Get(r.Context(), param(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation.View(p, q.Get("tab"), mode))
}

// GetManifest handles GET /api/presentations/{id}/manifest. The checksum
// is returned as the ETag.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, sum, err := h.svc.Manifest(r.Context(), param(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, sum)
	writeJSON(w, http.StatusOK, m)
}

// ReplaceManifest handles PUT /api/presentations/{id}/manifest.
//
//	@Summary		Replace the manifest after validation
//	@Tags			manifest
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Presentation id"
//	@Param			If-Match	header		string	false	"Checksum of the manifest being replaced"
//	@Success		200			{object}	ManifestResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Router			/presentations/{id}/manifest [put]
func (h *Handler) ReplaceManifest(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	doc, err := manifest.Decode(raw)
	if err != nil {
		h.writeError(w, r, apperr.Invalid("document", err.Error()))
		return
	}
	sum, err := h.svc.ReplaceManifest(r.Context(), param(r, "id"), doc, ifMatch(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, sum)
	writeJSON(w, http.StatusOK, ManifestResponse{Checksum: sum})
}

// PatchManifest handles PATCH /api/presentations/{id}/manifest. The body
// is deep-merged into the stored manifest.
func (h *Handler) PatchManifest(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if !decodeBody(w, r, &partial) {
		return
	}
	m, sum, err := h.svc.PatchManifest(r.Context(), param(r, "id"), partial, ifMatch(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, sum)
	writeJSON(w, http.StatusOK, m)
}

// Reorder handles PUT /api/presentations/{id}/order.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.svc.ReorderAssets(r.Context(), param(r, "id"), req.Files)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AssignGroup handles PUT /api/presentations/{id}/assets/{file}/group.
func (h *Handler) AssignGroup(w http.ResponseWriter, r *http.Request) {
	var req AssignGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.svc.AssignAssetGroup(r.Context(), param(r, "id"), param(r, "file"), req.Group)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateGroup handles POST /api/presentations/{id}/groups.
//
//	@Summary		Create a group
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Presentation id"
//	@Param			body	body		presentation.GroupInput	true	"Group to create"
//	@Success		201		{object}	CreatedResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/presentations/{id}/groups [post]
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var in presentation.GroupInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, id, err := h.svc.CreateGroup(r.Context(), param(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id, Presentation: p})
}

// UpdateGroup handles PATCH /api/presentations/{id}/groups/{groupID}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var patch presentation.GroupPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	p, err := h.svc.UpdateGroup(r.Context(), param(r, "id"), param(r, "groupID"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteGroup handles DELETE /api/presentations/{id}/groups/{groupID}.
// Member slides become ungrouped.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.DeleteGroup(r.Context(), param(r, "id"), param(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetGroupTab handles PUT /api/presentations/{id}/groups/{groupID}/tab.
func (h *Handler) SetGroupTab(w http.ResponseWriter, r *http.Request) {
	var req SetTabRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.svc.SetGroupParentTab(r.Context(), param(r, "id"), param(r, "groupID"), req.TabID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateTab handles POST /api/presentations/{id}/tabs.
func (h *Handler) CreateTab(w http.ResponseWriter, r *http.Request) {
	var in presentation.TabInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, id, err := h.svc.CreateTab(r.Context(), param(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id, Presentation: p})
}

// UpdateTab handles PATCH /api/presentations/{id}/tabs/{tabID}.
func (h *Handler) UpdateTab(w http.ResponseWriter, r *http.Request) {
	var patch presentation.TabPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	p, err := h.svc.UpdateTab(r.Context(), param(r, "id"), param(r, "tabID"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteTab handles DELETE /api/presentations/{id}/tabs/{tabID}.
//
//	@Summary		Delete a tab
//	@Tags			tabs
//	@Produce		json
//	@Param			id			path		string	true	"Presentation id"
//	@Param			tabID		path		string	true	"Tab id"
//	@Param			strategy	query		string	false	"What happens to the tab's groups"	Enums(orphan, cascade, reparent)
//	@Param			target		query		string	false	"Tab receiving the groups when reparenting"
//	@Success		200			{object}	models.Presentation
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Router			/presentations/{id}/tabs/{tabID} [delete]
func (h *Handler) DeleteTab(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategy, err := presentation.ParseDeleteStrategy(q.Get("strategy"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.svc.DeleteTab(r.Context(), param(r, "id"), param(r, "tabID"), strategy, q.Get("target"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Sync handles POST /api/presentations/{id}/sync?strategy=merge|replace.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	strategy, err := presentation.ParseSyncStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.svc.SyncFromEntryDocuments(r.Context(), param(r, "id"), strategy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ServeFile handles GET /api/presentations/{id}/files/{file}. It serves the
// raw document so a boundary can render it by reference.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.FilePath(r.Context(), param(r, "id"), param(r, "file"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// http.ServeFile would redirect ".../index.html" to its directory.
	f, err := os.Open(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/deckhand/internal/presentation"
)

// LiveHandler serves the live navigation session of one presentation.
type LiveHandler interface {
	ServeSession(w http.ResponseWriter, r *http.Request, presentationID string)
}

// Deps are the collaborators of the API router. Only Service is required.
type Deps struct {
	Service *presentation.Service
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
	// Live, if non-nil, is mounted at GET /presentations/{id}/live.
	Live LiveHandler
	// Limiter, if non-nil, guards every write route.
	Limiter *RateLimiter
	Logger  *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Service, d.Logger)

	r := chi.NewRouter()

	r.Get("/presentations", h.ListPresentations)
	r.Route("/presentations/{id}", func(r chi.Router) {
		r.Get("/", h.GetPresentation)
		r.Get("/view", h.View)
		r.Get("/manifest", h.GetManifest)
		r.Get("/files/{file}", h.ServeFile)
		if d.Live != nil {
			r.Get("/live", func(w http.ResponseWriter, req *http.Request) {
				d.Live.ServeSession(w, req, chi.URLParam(req, "id"))
			})
		}

		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Put("/manifest", h.ReplaceManifest)
			r.Patch("/manifest", h.PatchManifest)
			r.Put("/order", h.Reorder)
			r.Put("/assets/{file}/group", h.AssignGroup)

			r.Post("/groups", h.CreateGroup)
			r.Patch("/groups/{groupID}", h.UpdateGroup)
			r.Delete("/groups/{groupID}", h.DeleteGroup)
			r.Put("/groups/{groupID}/tab", h.SetGroupTab)

			r.Post("/tabs", h.CreateTab)
			r.Patch("/tabs/{tabID}", h.UpdateTab)
			r.Delete("/tabs/{tabID}", h.DeleteTab)

			r.Post("/sync", h.Sync)
		})
	})

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}

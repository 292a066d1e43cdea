package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	Views       ViewService
	Search      Searcher
	AuthEnabled bool
	AuthToken   string
	DefaultUser int64
	// Events, if non-nil, is mounted at GET /events behind auth.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Views, cfg.Search)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.AuthToken))
	r.Use(UserMiddleware(cfg.DefaultUser))

	r.Post("/workspaces", h.CreateWorkspace)
	r.Get("/workspaces/{id}/views", h.WorkspaceViews)

	r.Post("/views", h.CreateView)
	r.Route("/views/{id}", func(r chi.Router) {
		r.Get("/", h.GetView)
		r.Delete("/", h.DeleteView)
		r.Get("/children", h.ListChildren)
		r.Post("/open", h.OpenView)
		r.Post("/close", h.CloseView)
		r.Put("/content", h.UpdateContent)
		r.Post("/duplicate", h.DuplicateView)
		r.Post("/import", h.ImportView)
		r.Get("/publish", h.PublishView)
	})

	r.Get("/search", h.Search)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}
	return r
}

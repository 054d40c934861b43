// internal/app/features/projects/routes.go
package projects

import (
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /projects.
func Routes(h *Handler, id *auth.Identity) chi.Router {
	r := chi.NewRouter()

	// Visible to anyone the project's access mode admits.
	r.Get("/{id}", h.ServeProject)
	r.Get("/{id}/forms", h.ServeForms)

	r.Group(func(pr chi.Router) {
		pr.Use(id.RequireCaller)

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
		pr.Get("/stats", h.ServeStats)

		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
		pr.Post("/{id}/active", h.HandleSetActive)
		pr.Post("/{id}/clone", h.HandleClone)
		pr.Post("/{id}/forms", h.HandleCreateForm)
	})

	return r
}

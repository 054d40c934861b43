// internal/app/features/forms/routes.go
package forms

import (
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /forms. Record submission and
// reading stay open to anonymous callers so public forms work; the policy
// in formsvc decides. Form management needs a signed-in caller.
func Routes(h *Handler, id *auth.Identity) chi.Router {
	r := chi.NewRouter()

	r.Post("/compile", h.HandleCompile)

	r.Route("/{id}", func(fr chi.Router) {
		fr.Get("/", h.ServeForm)

		// RECORDS
		fr.With(h.limitSubmissions).Post("/records", h.HandleCreateRecord)
		fr.Get("/records/{recordID}", h.ServeRecord)
		fr.Put("/records/{recordID}", h.HandleUpdateRecord)
		fr.Delete("/records/{recordID}", h.HandleDeleteRecord)

		fr.Group(func(pr chi.Router) {
			pr.Use(id.RequireCaller)

			pr.Put("/", h.HandleUpdateForm)
			pr.Delete("/", h.HandleDeleteForm)

			// VERSIONS
			pr.Get("/versions", h.ServeVersions)
			pr.Post("/versions", h.HandleCreateVersion)
			pr.Delete("/versions/{version}", h.HandleReleaseVersion)
			pr.Post("/release", h.HandleRelease)

			// OWNER-ONLY READS
			pr.Get("/records", h.ServeRecords)
			pr.Get("/export", h.ServeExport)
		})
	})

	return r
}

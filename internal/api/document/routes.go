package document

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers document registry routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/status", h.Status)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.ListDocuments)
		r.Post("/", h.IndexDocument)

		r.Route("/{document_id}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Put("/", h.ReindexDocument)
			r.Delete("/", h.RemoveDocument)
			r.Post("/reindex", h.ReindexFromStore)
			r.Post("/deactivate", h.DeactivateDocument)
		})
	})
}

package message

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the channel gateway route
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/messages", h.HandleMessage)
}

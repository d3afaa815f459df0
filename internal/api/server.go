package api

import (
	"net/http"
	"time"

	documentapi "github.com/futig/safeguard-backend/internal/api/document"
	"github.com/futig/safeguard-backend/internal/api/docs"
	messageapi "github.com/futig/safeguard-backend/internal/api/message"
	"github.com/futig/safeguard-backend/internal/api/middleware"
	"github.com/futig/safeguard-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(documentHandler *documentapi.Handler, messageHandler *messageapi.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(r.Context(), w, map[string]string{"status": "healthy"})
	})

	docs.RegisterRoutes(r)

	documentapi.RegisterRoutes(r, documentHandler)
	messageapi.RegisterRoutes(r, messageHandler)

	return r
}

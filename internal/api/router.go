package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/sse"
	"github.com/starford/tessera/internal/storage"
	"github.com/starford/tessera/internal/style"
)

// RouterConfig carries the dependencies of the API router.
type RouterConfig struct {
	Service     *canvasstore.Service
	Store       storage.Provider
	Broker      *sse.Broker // optional; enables /events and /canvases/{id}/live
	Style       *style.Registry
	AuthEnabled bool
	Token       string
}

// NewRouter creates a chi router with all API routes mounted. It is meant to
// be mounted under /api.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service, cfg.Style)
	ah := NewAttachmentHandler(cfg.Store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Route("/canvases", func(r chi.Router) {
		r.Get("/", h.ListCanvases)
		r.Post("/", h.CreateCanvas)

		r.Route("/{canvasID}", func(r chi.Router) {
			r.Get("/", h.GetCanvas)
			r.Patch("/", h.UpdateCanvas)
			r.Delete("/", h.DeleteCanvas)
			r.Put("/viewport", h.UpdateViewport)
			r.Get("/export.png", h.ExportPNG)

			r.Post("/cards", h.CreateCard)
			r.Patch("/cards/{cardID}", h.UpdateCard)
			r.Delete("/cards/{cardID}", h.DeleteCard)
			r.Get("/cards/{cardID}/neighbors", h.Neighbors)

			r.Post("/connections", h.CreateConnection)
			r.Patch("/connections/{connID}", h.UpdateConnection)
			r.Delete("/connections/{connID}", h.DeleteConnection)

			if cfg.Broker != nil {
				r.Get("/live", NewLiveHandler(cfg.Broker).ServeHTTP)
			}
		})
	})

	r.Get("/search", h.Search)

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if cfg.Broker != nil {
		r.Get("/events", cfg.Broker.ServeHTTP)
	}

	return r
}

// AttachmentRoutes returns the unauthenticated file server for uploads,
// meant to be mounted at /attachments.
func AttachmentRoutes(store storage.Provider) http.Handler {
	r := chi.NewRouter()
	r.Get("/{filename}", NewAttachmentHandler(store).ServeFile)
	return r
}

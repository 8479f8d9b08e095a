package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tesselcraft/tessera/internal/feed"
	"github.com/tesselcraft/tessera/internal/schemaservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *schemaservice.Service, hub *feed.Hub, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, hub)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Get("/search", h.Search)

	// Schema CRUD.
	r.Get("/schemas", h.ListSchemas)
	r.Post("/schemas", h.CreateSchema)
	r.Get("/schemas/{key}", h.GetSchema)
	r.Put("/schemas/{key}", h.UpdateSchema)
	r.Delete("/schemas/{key}", h.DeleteSchema)

	// Composition surface.
	r.Get("/schemas/{key}/resolved", h.ResolveSchema)
	r.Get("/schemas/{key}/channels", h.SchemaChannels)
	r.Get("/schemas/{key}/context", h.SchemaContext)
	r.Get("/schemas/{key}/preview", h.SchemaPreview)

	// Import/export.
	r.Get("/schemas/{key}/export", h.ExportSchema)
	r.Post("/import", h.ImportSchemas)

	// Live channels.
	r.Get("/channels", h.ListChannels)
	r.Get("/channels/{key}", h.GetChannel)
	r.Put("/channels/{key}", h.PutChannel)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

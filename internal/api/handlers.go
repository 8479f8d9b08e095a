package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/feed"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/schemaservice"
	"github.com/tesselcraft/tessera/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *schemaservice.Service
	hub *feed.Hub
}

// NewHandler creates a new Handler.
func NewHandler(svc *schemaservice.Service, hub *feed.Hub) *Handler {
	return &Handler{svc: svc, hub: hub}
}

func keyParam(r *http.Request) string {
	return chi.URLParam(r, "key")
}

// Search handles GET /api/search.
//
//	@Summary		Search schemas by name and description
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		respondError(w, "search schemas", err)
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListSchemas handles GET /api/schemas.
//
//	@Summary		List schemas with optional pagination and type filter
//	@Tags			schemas
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			type	query		string	false	"Filter by schema type"	Enums(static, dynamic)
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, name, widget_key)
//	@Success		200		{object}	SchemaListResponse
//	@Security		BearerAuth
//	@Router			/schemas [get]
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("type"), q.Get("sort"))
	if err != nil {
		respondError(w, "list schemas", err)
		return
	}
	if items == nil {
		items = []*models.SchemaProject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schemas": items,
		"total":   total,
	})
}

// CreateSchema handles POST /api/schemas.
//
//	@Summary		Create a new schema
//	@Tags			schemas
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SchemaRequest	true	"Schema to create"
//	@Success		201		{object}	SchemaResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas [post]
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.Create(r.Context(), req.toModel())
	if err != nil {
		respondError(w, "create schema", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetSchema handles GET /api/schemas/{key}.
//
//	@Summary		Get a schema by widget key
//	@Tags			schemas
//	@Produce		json
//	@Param			key	path		string	true	"Widget key"
//	@Success		200	{object}	SchemaResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key} [get]
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.Get(r.Context(), keyParam(r))
	if err != nil {
		respondError(w, "get schema", err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// UpdateSchema handles PUT /api/schemas/{key}.
//
//	@Summary		Replace a schema document
//	@Tags			schemas
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"Widget key"
//	@Param			body	body		SchemaRequest	true	"Replacement document"
//	@Success		200		{object}	SchemaResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key} [put]
func (h *Handler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	updated, err := h.svc.Update(r.Context(), keyParam(r), req.toModel())
	if err != nil {
		respondError(w, "update schema", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSchema handles DELETE /api/schemas/{key}.
//
//	@Summary		Delete a schema
//	@Tags			schemas
//	@Param			key	path	string	true	"Widget key"
//	@Success		204	"Schema deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key} [delete]
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), keyParam(r)); err != nil {
		respondError(w, "delete schema", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveSchema handles GET /api/schemas/{key}/resolved.
//
// A degraded resolution still answers 200: the snapshot carries the failed
// state and the unresolved tree, which a client can render as-is.
//
//	@Summary		Get the resolved composition for a schema
//	@Tags			composition
//	@Produce		json
//	@Param			key	path		string	true	"Widget key"
//	@Success		200	{object}	ResolvedResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key}/resolved [get]
func (h *Handler) ResolveSchema(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	snap, err := h.svc.Resolve(r.Context(), key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Warn("resolution degraded", slog.String("widgetKey", key), slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, snap)
}

// SchemaChannels handles GET /api/schemas/{key}/channels.
//
//	@Summary		List the live channels the composed schema requires
//	@Tags			composition
//	@Produce		json
//	@Param			key	path		string	true	"Widget key"
//	@Success		200	{object}	RequiredChannelsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key}/channels [get]
func (h *Handler) SchemaChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.svc.RequiredChannels(r.Context(), keyParam(r))
	if err != nil {
		respondError(w, "collect channels", err)
		return
	}
	if channels == nil {
		channels = []models.ChannelBinding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// SchemaContext handles GET /api/schemas/{key}/context.
//
//	@Summary		Get the merged render context for a schema
//	@Tags			composition
//	@Produce		json
//	@Param			key	path		string	true	"Widget key"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key}/context [get]
func (h *Handler) SchemaContext(w http.ResponseWriter, r *http.Request) {
	rctx, err := h.svc.RenderContext(r.Context(), keyParam(r))
	if err != nil {
		respondError(w, "render context", err)
		return
	}
	writeJSON(w, http.StatusOK, rctx)
}

// SchemaPreview handles GET /api/schemas/{key}/preview.
//
//	@Summary		Get the resolved tree with live values interpolated
//	@Tags			composition
//	@Produce		json
//	@Param			key	path		string	true	"Widget key"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key}/preview [get]
func (h *Handler) SchemaPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.Preview(r.Context(), keyParam(r))
	if err != nil {
		respondError(w, "preview schema", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ExportSchema handles GET /api/schemas/{key}/export.
//
//	@Summary		Export a schema as a single document or a bundle
//	@Tags			bundles
//	@Produce		json
//	@Param			key		path		string	true	"Widget key"
//	@Param			bundle	query		bool	false	"Export the transitive bundle instead of the bare document"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{key}/export [get]
func (h *Handler) ExportSchema(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	if v := r.URL.Query().Get("bundle"); v != "" && v != "0" && v != "false" {
		b, err := h.svc.ExportBundle(r.Context(), key)
		if err != nil {
			respondError(w, "export bundle", err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}
	schema, err := h.svc.Get(r.Context(), key)
	if err != nil {
		respondError(w, "export schema", err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// ImportSchemas handles POST /api/import.
//
//	@Summary		Import a schema document or bundle
//	@Tags			bundles
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) ImportSchemas(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res, err := h.svc.ImportBundle(r.Context(), data)
	if err != nil {
		respondError(w, "import schemas", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListChannels handles GET /api/channels.
//
//	@Summary		List live channels the hub has seen
//	@Tags			channels
//	@Produce		json
//	@Success		200	{object}	ChannelListResponse
//	@Security		BearerAuth
//	@Router			/channels [get]
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.hub.Channels()
	if channels == nil {
		channels = []feed.ChannelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// GetChannel handles GET /api/channels/{key}.
//
//	@Summary		Get the latest payload on a channel
//	@Tags			channels
//	@Produce		json
//	@Param			key	path		string	true	"Channel key"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/channels/{key} [get]
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.hub.Latest(keyParam(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("channel not populated"))
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// PutChannel handles PUT /api/channels/{key}: external data push without a
// feed connection.
//
//	@Summary		Publish a payload to a channel
//	@Tags			channels
//	@Accept			json
//	@Param			key	path	string	true	"Channel key"
//	@Success		204	"Payload accepted"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/channels/{key} [put]
func (h *Handler) PutChannel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.hub.Publish(keyParam(r), data); err != nil {
		respondError(w, "publish channel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/checksum"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/style"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *canvasstore.Service
	style *style.Registry
}

// NewHandler creates a new Handler. A nil registry uses the built-in kinds.
func NewHandler(svc *canvasstore.Service, reg *style.Registry) *Handler {
	if reg == nil {
		reg = style.Default()
	}
	return &Handler{svc: svc, style: reg}
}

func canvasID(r *http.Request) string {
	return chi.URLParam(r, "canvasID")
}

// ListCanvases handles GET /api/canvases.
//
//	@Summary		List canvases
//	@Tags			canvases
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, name)
//	@Success		200		{object}	CanvasListResponse
//	@Security		BearerAuth
//	@Router			/canvases [get]
func (h *Handler) ListCanvases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListCanvases(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, err, "list canvases")
		return
	}
	if items == nil {
		items = []models.CanvasSummary{}
	}
	writeJSON(w, http.StatusOK, CanvasListResponse{Canvases: items, Total: total})
}

// CreateCanvas handles POST /api/canvases.
//
//	@Summary		Create a canvas
//	@Tags			canvases
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCanvasRequest	true	"Canvas to create"
//	@Success		201		{object}	models.Canvas
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases [post]
func (h *Handler) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	var req CreateCanvasRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCanvas(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err, "create canvas")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCanvas handles GET /api/canvases/{canvasID}. The ETag carries the
// document checksum for use with If-Match on PATCH.
//
//	@Summary		Get a canvas with its cards, connections and viewport
//	@Tags			canvases
//	@Produce		json
//	@Param			canvasID	path		string	true	"Canvas id"
//	@Success		200			{object}	models.Canvas
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID} [get]
func (h *Handler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	c, sum, err := h.svc.Document(r.Context(), canvasID(r))
	if err != nil {
		writeError(w, err, "get canvas")
		return
	}
	w.Header().Set("ETag", checksum.ETag(sum))
	writeJSON(w, http.StatusOK, c)
}

// UpdateCanvas handles PATCH /api/canvases/{canvasID}.
//
//	@Summary		Rename or describe a canvas
//	@Tags			canvases
//	@Accept			json
//	@Produce		json
//	@Param			canvasID	path		string				true	"Canvas id"
//	@Param			If-Match	header		string				false	"Checksum for optimistic concurrency"
//	@Param			body		body		models.CanvasPatch	true	"Fields to change"
//	@Success		200			{object}	models.Canvas
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID} [patch]
func (h *Handler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	var p models.CanvasPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	c, err := h.svc.UpdateCanvas(r.Context(), canvasID(r), p, checksum.ParseETag(r.Header.Get("If-Match")))
	if err != nil {
		writeError(w, err, "update canvas")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCanvas handles DELETE /api/canvases/{canvasID}.
//
//	@Summary		Move a canvas to the trash
//	@Tags			canvases
//	@Param			canvasID	path	string	true	"Canvas id"
//	@Success		204			"Canvas deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID} [delete]
func (h *Handler) DeleteCanvas(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCanvas(r.Context(), canvasID(r)); err != nil {
		writeError(w, err, "delete canvas")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCard handles POST /api/canvases/{canvasID}/cards.
//
//	@Summary		Create a card; type, width and height default to note, 240, 180
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			canvasID	path		string			true	"Canvas id"
//	@Param			body		body		models.NewCard	true	"Card"
//	@Success		201			{object}	models.Card
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var in models.NewCard
	if !decodeJSON(w, r, &in) {
		return
	}
	card, err := h.svc.CreateCard(r.Context(), canvasID(r), in)
	if err != nil {
		writeError(w, err, "create card")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// UpdateCard handles PATCH /api/canvases/{canvasID}/cards/{cardID}.
//
//	@Summary		Partially update a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			canvasID	path		string				true	"Canvas id"
//	@Param			cardID		path		string				true	"Card id"
//	@Param			body		body		models.CardPatch	true	"Fields to change"
//	@Success		200			{object}	models.Card
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/cards/{cardID} [patch]
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var p models.CardPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	card, err := h.svc.UpdateCard(r.Context(), canvasID(r), chi.URLParam(r, "cardID"), p)
	if err != nil {
		writeError(w, err, "update card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// DeleteCard handles DELETE /api/canvases/{canvasID}/cards/{cardID}.
//
//	@Summary		Delete a card and its connections
//	@Tags			cards
//	@Param			canvasID	path	string	true	"Canvas id"
//	@Param			cardID		path	string	true	"Card id"
//	@Success		204			"Card deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/cards/{cardID} [delete]
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCard(r.Context(), canvasID(r), chi.URLParam(r, "cardID")); err != nil {
		writeError(w, err, "delete card")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Neighbors handles GET /api/canvases/{canvasID}/cards/{cardID}/neighbors.
//
//	@Summary		Cards connected to a card
//	@Tags			cards
//	@Produce		json
//	@Param			canvasID	path		string	true	"Canvas id"
//	@Param			cardID		path		string	true	"Card id"
//	@Success		200			{object}	NeighborsResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/cards/{cardID}/neighbors [get]
func (h *Handler) Neighbors(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Neighbors(r.Context(), canvasID(r), chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, err, "neighbors")
		return
	}
	writeJSON(w, http.StatusOK, NeighborsResponse{Cards: cards})
}

// CreateConnection handles POST /api/canvases/{canvasID}/connections.
//
//	@Summary		Connect two cards
//	@Tags			connections
//	@Accept			json
//	@Produce		json
//	@Param			canvasID	path		string					true	"Canvas id"
//	@Param			body		body		models.NewConnection	true	"Connection"
//	@Success		201			{object}	models.Connection
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse	"self-loop, duplicate pair or missing endpoint"
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/connections [post]
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var in models.NewConnection
	if !decodeJSON(w, r, &in) {
		return
	}
	conn, err := h.svc.CreateConnection(r.Context(), canvasID(r), in)
	if err != nil {
		writeError(w, err, "create connection")
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// UpdateConnection handles PATCH /api/canvases/{canvasID}/connections/{connID}.
//
//	@Summary		Change a connection's type or label
//	@Tags			connections
//	@Accept			json
//	@Produce		json
//	@Param			canvasID	path		string					true	"Canvas id"
//	@Param			connID		path		string					true	"Connection id"
//	@Param			body		body		models.ConnectionPatch	true	"Fields to change"
//	@Success		200			{object}	models.Connection
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/connections/{connID} [patch]
func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var p models.ConnectionPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	conn, err := h.svc.UpdateConnection(r.Context(), canvasID(r), chi.URLParam(r, "connID"), p)
	if err != nil {
		writeError(w, err, "update connection")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// DeleteConnection handles DELETE /api/canvases/{canvasID}/connections/{connID}.
//
//	@Summary		Delete a connection
//	@Tags			connections
//	@Param			canvasID	path	string	true	"Canvas id"
//	@Param			connID		path	string	true	"Connection id"
//	@Success		204			"Connection deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/connections/{connID} [delete]
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteConnection(r.Context(), canvasID(r), chi.URLParam(r, "connID")); err != nil {
		writeError(w, err, "delete connection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateViewport handles PUT /api/canvases/{canvasID}/viewport.
//
//	@Summary		Store the pan/zoom state; zoom is clamped to [0.25, 3]
//	@Tags			canvases
//	@Accept			json
//	@Param			canvasID	path	string			true	"Canvas id"
//	@Param			body		body	models.Viewport	true	"Viewport"
//	@Success		204			"Viewport stored"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/viewport [put]
func (h *Handler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	var vp models.Viewport
	if !decodeJSON(w, r, &vp) {
		return
	}
	if err := h.svc.UpdateViewport(r.Context(), canvasID(r), vp); err != nil {
		writeError(w, err, "update viewport")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across card titles and content
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
		writeError(w, err, "search")
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

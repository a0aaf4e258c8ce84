package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/starford/tessera/internal/render"
)

// ExportPNG handles GET /api/canvases/{canvasID}/export.png.
//
//	@Summary		Render a canvas to PNG
//	@Tags			canvases
//	@Produce		png
//	@Param			canvasID	path	string	true	"Canvas id"
//	@Param			scale		query	number	false	"Pixels per canvas unit"
//	@Param			grid		query	bool	false	"Draw the snap grid"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/{canvasID}/export.png [get]
func (h *Handler) ExportPNG(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCanvas(r.Context(), canvasID(r))
	if err != nil {
		writeError(w, err, "export canvas")
		return
	}

	opts := render.Options{Style: h.style}
	if s, err := strconv.ParseFloat(r.URL.Query().Get("scale"), 64); err == nil && s > 0 && s <= 4 {
		opts.Scale = s
	}
	opts.Grid, _ = strconv.ParseBool(r.URL.Query().Get("grid"))

	var buf bytes.Buffer
	if err := render.PNG(&buf, c, opts); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

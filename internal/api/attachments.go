package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tessera/internal/storage"
)

const (
	attachDir      = "attachments"
	maxUploadBytes = 20 << 20 // 20 MB
)

// AttachmentHandler stores and serves the images shown on image cards.
type AttachmentHandler struct {
	store storage.Provider
}

// NewAttachmentHandler creates a handler writing under the workspace's
// attachments directory.
func NewAttachmentHandler(store storage.Provider) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// safeName validates that name is a plain, visible file name and returns its
// workspace-relative path.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return path.Join(attachDir, cleaned), nil
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel, err := safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := h.store.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, path.Base(rel), time.Time{}, bytes.NewReader(data))
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
// Only image content is accepted.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	rel, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("only images can be attached, got "+ct))
		return
	}

	if err := h.store.Write(rel, data); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	name := path.Base(rel)
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename: name,
		Size:     int64(len(data)),
		URL:      "/attachments/" + name,
	})
}

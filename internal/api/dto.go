package api

import (
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
)

// CreateCanvasRequest is the request body for creating a canvas.
type CreateCanvasRequest struct {
	Name        string `json:"name" example:"Roadmap" validate:"required"`
	Description string `json:"description,omitempty" example:"Q3 planning"`
}

// CanvasListResponse wraps paginated canvas listings.
type CanvasListResponse struct {
	Canvases []models.CanvasSummary `json:"canvases" validate:"required"`
	Total    int                    `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// NeighborsResponse lists the cards connected to a card.
type NeighborsResponse struct {
	Cards []models.Card `json:"cards" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"diagram.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/diagram.png" validate:"required"`
}

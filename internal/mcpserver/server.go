// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tessera canvas tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

const contractURI = "tessera://canvas-format"

// Server wraps the MCP server with Tessera tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *canvasstore.Service
	store storage.Provider
}

// New creates a new MCP server with all Tessera tools registered.
func New(svc *canvasstore.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Tessera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_canvases",
		mcp.WithDescription("List canvases with their card and connection counts."),
		mcp.WithString("sort", mcp.Description("Sort order: updated_at (default) or name")),
	), s.listCanvases)

	s.mcp.AddTool(mcp.NewTool("read_canvas",
		mcp.WithDescription("Read a whole canvas document: cards, connections and viewport."),
		mcp.WithString("canvas_id", mcp.Required(), mcp.Description("Canvas id")),
	), s.readCanvas)

	s.mcp.AddTool(mcp.NewTool("create_canvas",
		mcp.WithDescription("Create an empty canvas."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Canvas name")),
		mcp.WithString("description", mcp.Description("Optional description")),
	), s.createCanvas)

	s.mcp.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Add a card to a canvas. Read the contract first via the "+
			"get_canvas_contract tool or the "+contractURI+" resource."),
		mcp.WithString("canvas_id", mcp.Required(), mcp.Description("Canvas id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Card title")),
		mcp.WithString("content", mcp.Description("Card body (Markdown subset)")),
		mcp.WithString("type", mcp.Description("note (default), task, link or image")),
		mcp.WithString("color", mcp.Description("Palette colour name")),
		mcp.WithNumber("x", mcp.Description("Left edge in canvas units")),
		mcp.WithNumber("y", mcp.Description("Top edge in canvas units")),
		mcp.WithNumber("width", mcp.Description("Width, at least 150")),
		mcp.WithNumber("height", mcp.Description("Height, at least 100")),
	), s.createCard)

	s.mcp.AddTool(mcp.NewTool("connect_cards",
		mcp.WithDescription("Connect two cards of the same canvas. Self-connections and "+
			"duplicate pairs (in either direction) are rejected."),
		mcp.WithString("canvas_id", mcp.Required(), mcp.Description("Canvas id")),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source card id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target card id")),
		mcp.WithString("type", mcp.Description("simple (default), directional or bidirectional")),
		mcp.WithString("label", mcp.Description("Optional label")),
	), s.connectCards)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search through card titles and content across canvases."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("card_neighbors",
		mcp.WithDescription("List the cards connected to a card, in either direction."),
		mcp.WithString("canvas_id", mcp.Required(), mcp.Description("Canvas id")),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Card id")),
	), s.cardNeighbors)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image (http/https URL or base64 data URI), store it "+
			"under /attachments and place an image card showing it."),
		mcp.WithString("canvas_id", mcp.Required(), mcp.Description("Canvas id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		mcp.WithString("title", mcp.Description("Card title; defaults to the file name")),
		mcp.WithNumber("x", mcp.Description("Left edge in canvas units")),
		mcp.WithNumber("y", mcp.Description("Top edge in canvas units")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_canvas_contract",
		mcp.WithDescription("Returns the canvas document contract. "+
			"Call this before creating cards or connections."),
	), s.getCanvasContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Canvas Format Contract",
			mcp.WithResourceDescription("Structure and invariants of Tessera canvas documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCanvases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListCanvases(ctx, 1000, 0, req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) readCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("canvas_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.GetCanvas(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func (s *Server) createCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.CreateCanvas(ctx, name, req.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func (s *Server) createCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasID, err := req.RequireString("canvas_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	card, err := s.svc.CreateCard(ctx, canvasID, models.NewCard{
		Type:    models.CardType(req.GetString("type", "")),
		Title:   title,
		Content: req.GetString("content", ""),
		Color:   req.GetString("color", ""),
		X:       req.GetFloat("x", 0),
		Y:       req.GetFloat("y", 0),
		Width:   req.GetFloat("width", 0),
		Height:  req.GetFloat("height", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(card)
}

func (s *Server) connectCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasID, err := req.RequireString("canvas_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conn, err := s.svc.CreateConnection(ctx, canvasID, models.NewConnection{
		FromID: from,
		ToID:   to,
		Type:   models.ConnectionType(req.GetString("type", "")),
		Label:  req.GetString("label", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(conn)
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no cards found"), nil
	}
	return jsonResult(results)
}

func (s *Server) cardNeighbors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canvasID, err := req.RequireString("canvas_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cardID, err := req.RequireString("card_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cards, err := s.svc.Neighbors(ctx, canvasID, cardID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cards) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("card %s has no connections", cardID)), nil
	}
	return jsonResult(cards)
}

func (s *Server) getCanvasContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CanvasFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     CanvasFormatContract,
		},
	}, nil
}

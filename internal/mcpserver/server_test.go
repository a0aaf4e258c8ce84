package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
	"github.com/starford/tessera/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	svc, store := testutil.TestService(t)
	return New(svc, store), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_canvases":       srv.listCanvases,
		"read_canvas":         srv.readCanvas,
		"create_canvas":       srv.createCanvas,
		"create_card":         srv.createCard,
		"connect_cards":       srv.connectCards,
		"search_cards":        srv.searchCards,
		"card_neighbors":      srv.cardNeighbors,
		"attach_image":        srv.attachImage,
		"get_canvas_contract": srv.getCanvasContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	var v T
	if r.IsError {
		t.Fatalf("tool failed: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func newCanvas(t *testing.T, srv *Server) string {
	t.Helper()
	c := decodeResult[models.Canvas](t, callTool(t, srv, "create_canvas", map[string]any{"name": "Roadmap"}))
	return c.ID
}

func newCard(t *testing.T, srv *Server, canvasID, title string) models.Card {
	t.Helper()
	return decodeResult[models.Card](t, callTool(t, srv, "create_card", map[string]any{
		"canvas_id": canvasID,
		"title":     title,
		"x":         float64(40),
		"y":         float64(60),
	}))
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCreateCardAndReadCanvas(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	card := newCard(t, srv, id, "Launch plan")
	if card.ID == "" || card.Width != models.DefaultCardWidth || card.X != 40 {
		t.Errorf("card = %+v", card)
	}

	c := decodeResult[models.Canvas](t, callTool(t, srv, "read_canvas", map[string]any{"canvas_id": id}))
	if c.Name != "Roadmap" || len(c.Cards) != 1 || c.Cards[0].Title != "Launch plan" {
		t.Errorf("canvas = %+v", c)
	}
}

func TestReadCanvasMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_canvas", map[string]any{"canvas_id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing canvas")
	}
}

func TestCreateCardValidation(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	r := callTool(t, srv, "create_card", map[string]any{"canvas_id": id, "title": "x", "color": "chartreuse"})
	if !r.IsError {
		t.Error("expected error for colour outside the palette")
	}
	r = callTool(t, srv, "create_card", map[string]any{"canvas_id": id})
	if !r.IsError {
		t.Error("expected error for missing title")
	}
}

func TestListCanvases(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	newCard(t, srv, id, "One")

	items := decodeResult[[]models.CanvasSummary](t, callTool(t, srv, "list_canvases", map[string]any{}))
	if len(items) != 1 || items[0].ID != id || items[0].CardCount != 1 {
		t.Errorf("summaries = %+v", items)
	}
}

func TestConnectCards(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	a, b := newCard(t, srv, id, "A"), newCard(t, srv, id, "B")

	conn := decodeResult[models.Connection](t, callTool(t, srv, "connect_cards", map[string]any{
		"canvas_id": id, "from_id": a.ID, "to_id": b.ID, "type": "directional", "label": "then",
	}))
	if conn.FromID != a.ID || conn.ToID != b.ID || conn.Type != models.ConnectionDirectional {
		t.Errorf("connection = %+v", conn)
	}

	tests := []struct {
		name     string
		from, to string
	}{
		{"self", a.ID, a.ID},
		{"reverse duplicate", b.ID, a.ID},
		{"missing endpoint", a.ID, "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := callTool(t, srv, "connect_cards", map[string]any{"canvas_id": id, "from_id": tt.from, "to_id": tt.to})
			if !r.IsError {
				t.Errorf("expected rejection, got %s", resultText(r))
			}
		})
	}
}

func TestCardNeighbors(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	a, b, c := newCard(t, srv, id, "A"), newCard(t, srv, id, "B"), newCard(t, srv, id, "C")
	callTool(t, srv, "connect_cards", map[string]any{"canvas_id": id, "from_id": b.ID, "to_id": a.ID})

	cards := decodeResult[[]models.Card](t, callTool(t, srv, "card_neighbors", map[string]any{"canvas_id": id, "card_id": a.ID}))
	if len(cards) != 1 || cards[0].ID != b.ID {
		t.Errorf("neighbors = %+v", cards)
	}

	r := callTool(t, srv, "card_neighbors", map[string]any{"canvas_id": id, "card_id": c.ID})
	if !strings.Contains(resultText(r), "no connections") {
		t.Errorf("isolated card: %s", resultText(r))
	}
}

func TestSearchCards(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	newCard(t, srv, id, "Quarterly budget")

	r := callTool(t, srv, "search_cards", map[string]any{"query": "budget"})
	if !strings.Contains(resultText(r), "Quarterly budget") {
		t.Errorf("search = %s", resultText(r))
	}
	r = callTool(t, srv, "search_cards", map[string]any{"query": "zebra"})
	if resultText(r) != "no cards found" {
		t.Errorf("empty search = %s", resultText(r))
	}
}

func TestCanvasContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_canvas_contract", map[string]any{}))
	if !strings.Contains(text, "unordered pair") {
		t.Error("contract does not describe the connection rule")
	}
}

func TestAttachImageFromDataURI(t *testing.T) {
	srv, store := testServer(t)
	id := newCanvas(t, srv)

	res := decodeResult[attachResult](t, callTool(t, srv, "attach_image", map[string]any{
		"canvas_id": id,
		"url":       pngDataURI(t),
		"filename":  "dot.png",
		"x":         float64(200),
	}))
	if res.URL != "/attachments/dot.png" {
		t.Errorf("url = %q", res.URL)
	}
	if res.Card == nil || res.Card.Type != models.CardImage || res.Card.X != 200 ||
		!strings.Contains(res.Card.Content, "/attachments/dot.png") {
		t.Errorf("card = %+v", res.Card)
	}
	if _, err := store.Read("attachments/dot.png"); err != nil {
		t.Errorf("attachment not stored: %v", err)
	}

	r := callTool(t, srv, "attach_image", map[string]any{"canvas_id": id, "url": pngDataURI(t), "filename": "dot.png"})
	if !r.IsError {
		t.Error("expected error for existing file")
	}
}

func TestAttachImageRejects(t *testing.T) {
	srv, _ := testServer(t)
	id := newCanvas(t, srv)
	text := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name string
		args map[string]any
	}{
		{"non-image mime", map[string]any{"canvas_id": id, "url": text}},
		{"mismatched content", map[string]any{"canvas_id": id, "url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a....")), "filename": "x.png"}},
		{"loopback", map[string]any{"canvas_id": id, "url": "http://127.0.0.1/x.png"}},
		{"bad scheme", map[string]any{"canvas_id": id, "url": "file:///etc/passwd"}},
		{"missing canvas", map[string]any{"canvas_id": "nope", "url": pngDataURI(t)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, "attach_image", tt.args); !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.png":        "photo.png",
		"../../etc/passwd": "passwd",
		"my photo (1).jpg": "my_photo__1_.jpg",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sanitizeFilename(".hidden.png"); strings.HasPrefix(got, ".") {
		t.Errorf("hidden name kept: %q", got)
	}
}

// Package client implements the canvas document store contract over the
// Tessera REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
)

const maxResponseBytes = 8 << 20

// ErrTransport marks failures that never produced a usable API answer:
// network errors, timeouts, and unexpected statuses.
var ErrTransport = errors.New("transport failure")

// Client talks to the REST API mounted at BaseURL (e.g. http://host/api).
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a Bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetCanvas fetches the whole canvas document.
func (c *Client) GetCanvas(ctx context.Context, id string) (*models.Canvas, error) {
	var out models.Canvas
	if err := c.do(ctx, http.MethodGet, "/canvases/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCanvases returns the canvas summaries of the workspace.
func (c *Client) ListCanvases(ctx context.Context) ([]models.CanvasSummary, error) {
	var out struct {
		Canvases []models.CanvasSummary `json:"canvases"`
	}
	if err := c.do(ctx, http.MethodGet, "/canvases?limit=1000", nil, &out); err != nil {
		return nil, err
	}
	return out.Canvases, nil
}

// CreateCanvas creates an empty canvas.
func (c *Client) CreateCanvas(ctx context.Context, name, description string) (*models.Canvas, error) {
	body := map[string]string{"name": name, "description": description}
	var out models.Canvas
	if err := c.do(ctx, http.MethodPost, "/canvases", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCard creates a card; the server assigns the id and defaults.
func (c *Client) CreateCard(ctx context.Context, canvasID string, in models.NewCard) (*models.Card, error) {
	var out models.Card
	if err := c.do(ctx, http.MethodPost, c.canvasPath(canvasID, "cards"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCard applies patch to a card.
func (c *Client) UpdateCard(ctx context.Context, canvasID, cardID string, patch models.CardPatch) (*models.Card, error) {
	var out models.Card
	if err := c.do(ctx, http.MethodPatch, c.canvasPath(canvasID, "cards", cardID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCard removes a card and its connections.
func (c *Client) DeleteCard(ctx context.Context, canvasID, cardID string) error {
	return c.do(ctx, http.MethodDelete, c.canvasPath(canvasID, "cards", cardID), nil, nil)
}

// CreateConnection links two cards. Invariant violations come back as
// apperr.ErrInvariant.
func (c *Client) CreateConnection(ctx context.Context, canvasID string, in models.NewConnection) (*models.Connection, error) {
	var out models.Connection
	if err := c.do(ctx, http.MethodPost, c.canvasPath(canvasID, "connections"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConnection applies patch to a connection.
func (c *Client) UpdateConnection(ctx context.Context, canvasID, connID string, patch models.ConnectionPatch) (*models.Connection, error) {
	var out models.Connection
	if err := c.do(ctx, http.MethodPatch, c.canvasPath(canvasID, "connections", connID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection removes a connection.
func (c *Client) DeleteConnection(ctx context.Context, canvasID, connID string) error {
	return c.do(ctx, http.MethodDelete, c.canvasPath(canvasID, "connections", connID), nil, nil)
}

// UpdateViewport stores the canvas pan/zoom.
func (c *Client) UpdateViewport(ctx context.Context, canvasID string, vp models.Viewport) error {
	return c.do(ctx, http.MethodPut, c.canvasPath(canvasID, "viewport"), vp, nil)
}

func (c *Client) canvasPath(canvasID string, parts ...string) string {
	p := "/canvases/" + url.PathEscape(canvasID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w: %w", method, path, ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("client: read %s %s: %w: %w", method, path, ErrTransport, err)
	}

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w: %w", method, path, ErrTransport, err)
	}
	return nil
}

// statusError maps an API error status onto the shared error taxonomy.
func statusError(method, path string, status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	var kind error
	switch status {
	case http.StatusNotFound:
		kind = apperr.ErrNotFound
	case http.StatusUnprocessableEntity:
		kind = apperr.ErrInvariant
	case http.StatusConflict:
		kind = apperr.ErrConflict
	case http.StatusBadRequest:
		kind = apperr.ErrInvalidInput
	default:
		kind = ErrTransport
	}
	return fmt.Errorf("client: %s %s: %s: %w", method, path, msg, kind)
}

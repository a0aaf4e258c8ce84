// Package canvasstore implements the canvas document store over flat JSON
// files and the SQLite index.
package canvasstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/checksum"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

// Event kinds passed to EventFunc.
const (
	EventCanvasCreated = "canvas.created"
	EventCanvasUpdated = "canvas.updated"
	EventCanvasDeleted = "canvas.deleted"
)

// TrashDir receives deleted canvas documents.
const TrashDir = ".trash"

// EventFunc is notified after every successful mutation.
type EventFunc func(kind, canvasID string)

// Option configures a Service.
type Option func(*Service)

// WithMinCardSize overrides the card size floor.
func WithMinCardSize(w, h float64) Option {
	return func(s *Service) {
		if w > 0 {
			s.minW = w
		}
		if h > 0 {
			s.minH = h
		}
	}
}

// WithEventFunc registers a mutation listener.
func WithEventFunc(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates storage and index operations for canvases.
type Service struct {
	store   storage.Provider
	db      *index.DB
	minW    float64
	minH    float64
	onEvent EventFunc
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new canvas service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{
		store: store,
		db:    db,
		minW:  models.MinCardWidth,
		minH:  models.MinCardHeight,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListCanvases returns a page of canvas summaries from the index.
func (s *Service) ListCanvases(_ context.Context, limit, offset int, sort string) ([]models.CanvasSummary, int, error) {
	rows, total, err := s.db.ListCanvases(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.CanvasSummary, len(rows))
	for i, r := range rows {
		items[i] = models.CanvasSummary{
			ID:              r.ID,
			Name:            r.Name,
			Description:     r.Description,
			CardCount:       r.CardCount,
			ConnectionCount: r.ConnectionCount,
			UpdatedAt:       r.UpdatedAt,
		}
	}
	return items, total, nil
}

// CreateCanvas writes an empty canvas and indexes it.
func (s *Service) CreateCanvas(_ context.Context, name, description string) (*models.Canvas, error) {
	if err := validateCanvasMeta(name, description); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &models.Canvas{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Viewport:    models.DefaultViewport(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.store.Read(storage.DocumentPath(c.ID)); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.save(c); err != nil {
		return nil, err
	}
	s.emit(EventCanvasCreated, c.ID)
	return c, nil
}

// GetCanvas reads a canvas document.
func (s *Service) GetCanvas(ctx context.Context, id string) (*models.Canvas, error) {
	c, _, err := s.Document(ctx, id)
	return c, err
}

// Document reads a canvas together with the checksum of its stored bytes.
func (s *Service) Document(_ context.Context, id string) (*models.Canvas, string, error) {
	data, err := s.store.Read(storage.DocumentPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("canvasstore: canvas %s: %w", id, apperr.ErrNotFound)
		}
		return nil, "", err
	}
	c, err := decode(id, data)
	if err != nil {
		return nil, "", err
	}
	return c, checksum.Sum(data), nil
}

// UpdateCanvas applies a metadata patch. A non-empty ifMatch must equal the
// current document checksum.
func (s *Service) UpdateCanvas(ctx context.Context, id string, p models.CanvasPatch, ifMatch string) (*models.Canvas, error) {
	if err := validateCanvasPatch(p); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, ifMatch, func(c *models.Canvas) error {
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Description != nil {
			c.Description = *p.Description
		}
		return nil
	})
}

// DeleteCanvas moves the document into the trash and drops it from the index.
func (s *Service) DeleteCanvas(_ context.Context, id string) error {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()

	src := storage.DocumentPath(id)
	if _, err := s.store.Read(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("canvasstore: canvas %s: %w", id, apperr.ErrNotFound)
		}
		return err
	}
	dst := path.Join(TrashDir, id+"-"+strconv.FormatInt(s.now().Unix(), 10)+storage.DocumentExt)
	if err := s.store.Move(src, dst); err != nil {
		return err
	}
	if err := s.db.DeleteCanvas(id); err != nil {
		return err
	}
	s.emit(EventCanvasDeleted, id)
	return nil
}

// CreateCard adds a card with a store-assigned id. Missing type and size take
// defaults; size is raised to the configured minimum.
func (s *Service) CreateCard(ctx context.Context, canvasID string, in models.NewCard) (*models.Card, error) {
	if err := validateNewCard(in); err != nil {
		return nil, err
	}
	card := in.Build(uuid.NewString(), s.minW, s.minH)
	if _, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		c.Cards = append(c.Cards, card)
		return nil
	}); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard applies a partial update to a card.
func (s *Service) UpdateCard(ctx context.Context, canvasID, cardID string, p models.CardPatch) (*models.Card, error) {
	if err := validateCardPatch(p); err != nil {
		return nil, err
	}
	var out models.Card
	_, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		card := c.Card(cardID)
		if card == nil {
			return fmt.Errorf("canvasstore: card %s: %w", cardID, apperr.ErrNotFound)
		}
		p.Apply(card)
		card.ClampSize(s.minW, s.minH)
		out = *card
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCard removes a card and every connection touching it.
func (s *Service) DeleteCard(ctx context.Context, canvasID, cardID string) error {
	_, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		if _, _, ok := c.RemoveCard(cardID); !ok {
			return fmt.Errorf("canvasstore: card %s: %w", cardID, apperr.ErrNotFound)
		}
		return nil
	})
	return err
}

// CreateConnection links two distinct cards. Self-loops, unknown endpoints
// and duplicate pairs fail with apperr.ErrInvariant.
func (s *Service) CreateConnection(ctx context.Context, canvasID string, in models.NewConnection) (*models.Connection, error) {
	if err := validateNewConnection(in); err != nil {
		return nil, err
	}
	conn := in.Build(uuid.NewString())
	if _, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		return c.AddConnection(conn)
	}); err != nil {
		return nil, err
	}
	return &conn, nil
}

// UpdateConnection changes a connection's type or label.
func (s *Service) UpdateConnection(ctx context.Context, canvasID, connID string, p models.ConnectionPatch) (*models.Connection, error) {
	if err := validateConnectionPatch(p); err != nil {
		return nil, err
	}
	var out models.Connection
	_, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		conn := c.Connection(connID)
		if conn == nil {
			return fmt.Errorf("canvasstore: connection %s: %w", connID, apperr.ErrNotFound)
		}
		p.Apply(conn)
		out = *conn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection removes a connection.
func (s *Service) DeleteConnection(ctx context.Context, canvasID, connID string) error {
	_, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		if _, ok := c.RemoveConnection(connID); !ok {
			return fmt.Errorf("canvasstore: connection %s: %w", connID, apperr.ErrNotFound)
		}
		return nil
	})
	return err
}

// UpdateViewport stores the pan/zoom state with the zoom clamped.
func (s *Service) UpdateViewport(ctx context.Context, canvasID string, vp models.Viewport) error {
	_, err := s.mutate(ctx, canvasID, "", func(c *models.Canvas) error {
		c.Viewport = vp.Normalize()
		return nil
	})
	return err
}

// Search delegates full-text card search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Neighbors returns the cards connected to cardID.
func (s *Service) Neighbors(ctx context.Context, canvasID, cardID string) ([]models.Card, error) {
	c, err := s.GetCanvas(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if c.Card(cardID) == nil {
		return nil, fmt.Errorf("canvasstore: card %s: %w", cardID, apperr.ErrNotFound)
	}
	ids, err := s.db.Neighbors(canvasID, cardID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		if card := c.Card(id); card != nil {
			out = append(out, *card)
		}
	}
	return out, nil
}

// mutate serialises a read-modify-write of one canvas document.
func (s *Service) mutate(ctx context.Context, id, ifMatch string, fn func(*models.Canvas) error) (*models.Canvas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()

	data, err := s.store.Read(storage.DocumentPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("canvasstore: canvas %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return nil, apperr.ErrConflict
	}
	c, err := decode(id, data)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.save(c); err != nil {
		return nil, err
	}
	s.emit(EventCanvasUpdated, id)
	return c, nil
}

// save encodes, writes and indexes c.
func (s *Service) save(c *models.Canvas) error {
	if c.Cards == nil {
		c.Cards = []models.Card{}
	}
	if c.Connections == nil {
		c.Connections = []models.Connection{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("canvasstore: encode %s: %w", c.ID, err)
	}
	data = append(data, '\n')
	if err := s.store.Write(storage.DocumentPath(c.ID), data); err != nil {
		return err
	}
	return index.IndexCanvas(s.db, c, checksum.Sum(data))
}

func (s *Service) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Service) emit(kind, id string) {
	if s.onEvent != nil {
		s.onEvent(kind, id)
	}
}

func decode(id string, data []byte) (*models.Canvas, error) {
	var c models.Canvas
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("canvasstore: decode %s: %w", id, err)
	}
	c.ID = id
	c.Viewport = c.Viewport.Normalize()
	return &c, nil
}

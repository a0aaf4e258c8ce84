package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/client"
	"github.com/starford/tessera/internal/editor"
	"github.com/starford/tessera/internal/mcpserver"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/notify"
	"github.com/starford/tessera/internal/render"
	"github.com/starford/tessera/internal/style"
	"github.com/starford/tessera/internal/tui"
)

// RunMCP serves the MCP tools over stdin/stdout against the local workspace.
// Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogger(stderrLogger(opts))}, opts...))
	if err != nil {
		return err
	}
	be, err := openBackend(app.config, app.logger)
	if err != nil {
		return err
	}
	defer be.Close()

	app.logger.Info("MCP server starting", slog.String("workspace_path", app.config.Workspace.Path))
	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.New(be.svc, be.store).ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// ExportOptions selects the canvas to render and how.
type ExportOptions struct {
	CanvasID string
	Out      string
	Scale    float64
	Grid     bool
}

// Export renders a canvas of the local workspace to a PNG file. An empty Out
// writes to the application's stdout.
func Export(ctx context.Context, eo ExportOptions, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogger(stderrLogger(opts))}, opts...))
	if err != nil {
		return err
	}
	be, err := openBackend(app.config, app.logger)
	if err != nil {
		return err
	}
	defer be.Close()

	c, err := be.svc.GetCanvas(ctx, eo.CanvasID)
	if err != nil {
		return err
	}

	w := app.stdout
	if eo.Out != "" {
		f, err := os.Create(eo.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := render.PNG(w, c, render.Options{
		Scale:    eo.Scale,
		Grid:     eo.Grid,
		GridSize: app.config.Editor.GridSize,
		Style:    style.Default(),
	}); err != nil {
		return fmt.Errorf("render %s: %w", c.ID, err)
	}
	app.logger.Info("Canvas exported",
		slog.String("canvas_id", c.ID),
		slog.Int("cards", len(c.Cards)),
		slog.String("out", eo.Out))
	return nil
}

// TUIOptions selects the canvas to edit and where it lives.
type TUIOptions struct {
	CanvasID string
	// Server is the base URL of a running API; empty edits the local workspace.
	Server  string
	Token   string
	LogFile string
}

// canvasSource is the part of a document store the terminal editor needs
// besides editor.Store itself.
type canvasSource interface {
	editor.Store
	recent(ctx context.Context) ([]models.CanvasSummary, error)
	create(ctx context.Context, name string) (*models.Canvas, error)
}

type localSource struct{ *canvasstore.Service }

func (s localSource) recent(ctx context.Context) ([]models.CanvasSummary, error) {
	items, _, err := s.ListCanvases(ctx, 1, 0, "")
	return items, err
}

func (s localSource) create(ctx context.Context, name string) (*models.Canvas, error) {
	return s.CreateCanvas(ctx, name, "")
}

type remoteSource struct{ *client.Client }

func (s remoteSource) recent(ctx context.Context) ([]models.CanvasSummary, error) {
	return s.ListCanvases(ctx)
}

func (s remoteSource) create(ctx context.Context, name string) (*models.Canvas, error) {
	return s.CreateCanvas(ctx, name, "")
}

// RunTUI opens the terminal canvas editor. Without a canvas id it edits the
// most recently updated canvas, creating one when the workspace is empty.
func RunTUI(ctx context.Context, to TUIOptions, opts ...Option) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if to.LogFile != "" {
		f, err := os.OpenFile(to.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewJSONHandler(f, nil))
	}
	app, err := newApplication(append([]Option{WithLogger(logger)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	var src canvasSource
	if to.Server != "" {
		token := to.Token
		if token == "" {
			token = cfg.Auth.Token
		}
		src = remoteSource{client.New(to.Server, client.WithToken(token))}
	} else {
		be, err := openBackend(cfg, app.logger)
		if err != nil {
			return err
		}
		defer be.Close()
		src = localSource{be.svc}
	}

	canvasID, err := pickCanvas(ctx, src, to.CanvasID)
	if err != nil {
		return err
	}

	center := notify.NewCenter()
	ed, err := editor.Open(ctx, src, canvasID,
		editor.WithSettings(cfg.Editor.Settings()),
		editor.WithPersistTimeout(cfg.Editor.PersistTimeout),
		editor.WithNotifier(center),
		editor.WithStyle(style.Default()),
		editor.WithLogger(app.logger),
	)
	if err != nil {
		return fmt.Errorf("open canvas %s: %w", canvasID, err)
	}
	defer ed.Close()

	app.logger.Info("Editor opened", slog.String("canvas_id", canvasID), slog.String("server", to.Server))
	runErr := tui.Run(ctx, ed, center)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ed.Flush(flushCtx); err != nil {
		app.logger.Warn("pending changes not saved", slog.String("error", err.Error()))
	}
	return runErr
}

func pickCanvas(ctx context.Context, src canvasSource, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	items, err := src.recent(ctx)
	if err != nil {
		return "", fmt.Errorf("list canvases: %w", err)
	}
	if len(items) > 0 {
		return items[0].ID, nil
	}
	c, err := src.create(ctx, "Untitled")
	if err != nil {
		return "", fmt.Errorf("create canvas: %w", err)
	}
	return c.ID, nil
}

func stderrLogger(opts []Option) *slog.Logger {
	probe := &application{}
	for _, opt := range opts {
		opt(probe)
	}
	level := slog.LevelInfo
	if probe.config != nil {
		level = probe.config.App.LogLevel
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

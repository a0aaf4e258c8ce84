package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tessera/internal"
	pkgconfig "github.com/starford/tessera/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Export(ctx, internal.ExportOptions{
		CanvasID: cmd.String("canvas"),
		Out:      cmd.String("out"),
		Scale:    cmd.Float("scale"),
		Grid:     cmd.Bool("grid"),
	}, internal.WithConfig(cfg))
}

func edit(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, internal.TUIOptions{
		CanvasID: cmd.String("canvas"),
		Server:   cmd.String("server"),
		Token:    cmd.String("token"),
		LogFile:  cmd.String("log-file"),
	}, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "tessera",
		Usage:  "Infinite canvas of cards and connections, stored as JSON documents",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, live events and the workspace watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve canvas tools to LLM clients over MCP stdio",
				Action: mcp,
			},
			{
				Name:   "export",
				Usage:  "Render a canvas to PNG",
				Action: export,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "canvas", Usage: "Canvas id", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; stdout when empty"},
					&cli.FloatFlag{Name: "scale", Usage: "Pixels per canvas unit", Value: 1},
					&cli.BoolFlag{Name: "grid", Usage: "Draw the snapping grid"},
				},
			},
			{
				Name:   "tui",
				Usage:  "Edit a canvas in the terminal",
				Action: edit,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "canvas", Usage: "Canvas id; the most recent canvas when empty"},
					&cli.StringFlag{Name: "server", Usage: "Base URL of a running API, e.g. http://localhost:8080/api", Sources: cli.EnvVars("TESSERA_SERVER")},
					&cli.StringFlag{Name: "token", Usage: "Bearer token for the API", Sources: cli.EnvVars("TESSERA_TOKEN")},
					&cli.StringFlag{Name: "log-file", Usage: "Write editor logs to this file"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/moewiki/internal"
	"github.com/starford/moewiki/internal/jobs"
	"github.com/starford/moewiki/internal/mcpserver"
	pkgconfig "github.com/starford/moewiki/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func reparse(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Reparse(ctx, cmd.String("area"), cmd.String("cursor"), int(cmd.Int("batch")),
		internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("reparse error: %w", err)
	}
	return nil
}

func importSeed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Import.Dir = dir
	}
	if err := internal.Import(ctx, cmd.String("area"), internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("import error: %w", err)
	}
	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Export(ctx, cmd.String("area"), cmd.String("dir"), internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("export error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	if err := internal.ServeMCP(ctx, cmd.String("editor"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func main() {
	areaFlag := &cli.StringFlag{
		Name:  "area",
		Usage: "Wiki area (default area when empty)",
	}

	cmd := &cli.Command{
		Name:   "moewiki",
		Usage:  "Hierarchical wiki with versioned pages, diffs, feeds and a pastebin",
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
				Usage:  "Run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:  "reparse",
				Usage: "Re-render page heads with the current renderer",
				Flags: []cli.Flag{
					areaFlag,
					&cli.StringFlag{Name: "cursor", Usage: "Resume after this cursor"},
					&cli.IntFlag{Name: "batch", Usage: "Pages per batch", Value: jobs.DefaultBatch},
				},
				Action: reparse,
			},
			{
				Name:  "import",
				Usage: "Import a directory of Markdown files once",
				Flags: []cli.Flag{
					areaFlag,
					&cli.StringFlag{Name: "dir", Usage: "Seed directory (import.dir when empty)"},
				},
				Action: importSeed,
			},
			{
				Name:  "export",
				Usage: "Write page heads to a directory of Markdown files",
				Flags: []cli.Flag{
					areaFlag,
					&cli.StringFlag{Name: "dir", Usage: "Target directory (import.dir when empty)"},
				},
				Action: export,
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools on stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "editor", Usage: "Editor key of MCP saves", Value: mcpserver.DefaultEditor},
				},
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

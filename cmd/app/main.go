package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	pkgconfig "github.com/starford/folio/pkg/config"
)

// loadConfig reads the .env files and then the YAML config over the
// defaults. A missing config file leaves the defaults in place.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	if err := pkgconfig.LoadDotEnv(cmd.StringSlice("env-file")...); err != nil {
		return nil, err
	}
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func importFiles(ctx context.Context, cmd *cli.Command) error {
	parentID, err := uuid.Parse(cmd.String("parent"))
	if err != nil {
		return fmt.Errorf("invalid --parent: %w", err)
	}
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("no files to import")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunImport(ctx, parentID, paths, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "folio",
		Usage:  "Workspace tree of typed views with document content, search and live updates",
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
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Env files loaded before the config file; missing files are skipped",
				Value: []string{".env"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live events",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "import",
				Usage:     "Import Markdown, text or other files under a view",
				ArgsUsage: "FILE...",
				Action:    importFiles,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "parent",
						Aliases:  []string{"p"},
						Usage:    "Workspace or view ID to import under",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

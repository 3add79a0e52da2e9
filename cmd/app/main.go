package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/docservice"
	pkgconfig "github.com/starford/ansuz/pkg/config"
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

// withService runs fn against an initialized service; logs go to stderr so
// stdout carries only command output.
func withService(fn func(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
		if err != nil {
			return err
		}
		defer svc.Close()
		return fn(ctx, cmd, svc)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indexCmd(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	path := cmd.Args().First()
	if path == "" {
		path = svc.Workspace()
	}
	rep, err := svc.Index(ctx, path)
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func categoriesCmd(ctx context.Context, _ *cli.Command, svc *docservice.Service) error {
	cats, err := svc.AllCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) > 0 {
		fmt.Println(strings.Join(cats, "\n"))
	}
	return nil
}

func findCmd(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	docs, err := svc.CategoryQuery(ctx, cmd.Args().Slice(), cmd.Bool("any"))
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.Title != "" {
			fmt.Printf("%s\t%s\n", d.Path, d.Title)
		} else {
			fmt.Println(d.Path)
		}
	}
	return nil
}

func queryCmd(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("query: SQL statement is required")
	}
	rows, err := svc.UserQuery(ctx, args[0], args[1:])
	if err != nil {
		return err
	}
	return printJSON(rows)
}

func main() {
	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Index tasks and metadata of a Norg workspace into SQLite",
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
				Usage:  "Index the workspace, watch it and serve the REST API",
				Action: serve,
			},
			{
				Name:      "index",
				Usage:     "Index a file or directory (the workspace when omitted)",
				ArgsUsage: "[path]",
				Action:    withService(indexCmd),
			},
			{
				Name:   "categories",
				Usage:  "List every category in the index",
				Action: withService(categoriesCmd),
			},
			{
				Name:      "find",
				Usage:     "List documents carrying all of the given categories",
				ArgsUsage: "<category>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "any",
						Usage: "Match documents carrying at least one category",
					},
				},
				Action: withService(findCmd),
			},
			{
				Name:      "query",
				Usage:     "Run a read-only SQL query against the index",
				ArgsUsage: "<sql> [param...]",
				Action:    withService(queryCmd),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

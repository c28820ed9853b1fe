// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/caseingest"
	"github.com/poiesic/caseingest/config"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/ingestion"
	"github.com/poiesic/caseingest/storage/badger"
	"github.com/urfave/cli/v2"
)

const (
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "caseingest",
		Usage: "Ingest legal opinions from CourtListener into a vector search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"CASEINGEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Fetch, chunk, embed and upload opinions for one court",
				Action: ingestCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "court",
						Usage:    "Court identifier (e.g., ca9, scotus, cadc)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "date",
						Usage:    "Only opinions filed on or after this date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-cases",
						Usage: "Maximum number of cases to ingest",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "setup-index",
						Usage: "Create or recreate the search index before ingestion",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Process data but do not upload to the index",
					},
				}, serviceFlags()...),
			},
			{
				Name:   "setup-index",
				Usage:  "Create the search index",
				Action: setupIndexCommand,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Delete the index first if it exists",
					},
				}, serviceFlags()...),
			},
			{
				Name:   "runs",
				Usage:  "List recorded ingestion runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show (0 shows all)",
						Value: 10,
					},
				},
			},
		},
	}
}

// serviceFlags override the configuration file for the external services.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "index-name",
			Usage: "Search index name",
		},
		&cli.StringFlag{
			Name:  "index-backend",
			Usage: "Search index backend (azure, local)",
		},
		&cli.StringFlag{
			Name:    "courtlistener-token",
			Usage:   "CourtListener API token",
			EnvVars: []string{"COURTLISTENER_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "search-endpoint",
			Usage:   "Azure AI Search endpoint",
			EnvVars: []string{"AZURE_SEARCH_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "search-api-key",
			Usage:   "Azure AI Search admin key",
			EnvVars: []string{"AZURE_SEARCH_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "openai-endpoint",
			Usage:   "Azure OpenAI endpoint or OpenAI-compatible host",
			EnvVars: []string{"AZURE_OPENAI_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "Azure OpenAI API key",
			EnvVars: []string{"AZURE_OPENAI_API_KEY"},
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	override := func(target *string, flag string) {
		if v := c.String(flag); v != "" {
			*target = v
		}
	}
	override(&cfg.Index.Name, "index-name")
	override(&cfg.Index.Backend, "index-backend")
	override(&cfg.CourtListener.Token, "courtlistener-token")
	override(&cfg.Index.Endpoint, "search-endpoint")
	override(&cfg.Index.APIKey, "search-api-key")
	override(&cfg.Embedding.Host, "openai-endpoint")
	override(&cfg.Embedding.APIKey, "openai-api-key")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func requireCredentials(cfg config.Config) error {
	missing := cfg.MissingCredentials()
	if len(missing) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("missing required environment variables:")
	for _, name := range missing {
		b.WriteString("\n  - " + name)
	}
	b.WriteString("\nset these in your environment or the configuration file")
	return cli.Exit(b.String(), exitFailure)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

// exitStatus maps a run outcome to the process exit status.
func exitStatus(report *core.RunReport, err error) int {
	switch {
	case errors.Is(err, ingestion.ErrInterrupted):
		return exitInterrupted
	case report == nil:
		return exitFailure
	default:
		return 0
	}
}

// setupIndexExit reports a failed index setup, distinguishing an interrupt.
func setupIndexExit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cli.Exit("index setup interrupted", exitInterrupted)
	}
	return cli.Exit(fmt.Sprintf("error setting up index: %v", err), exitFailure)
}

func openIngester(c *cli.Context, cfg config.Config) (*caseingest.Ingester, error) {
	ing, err := caseingest.Open(cfg,
		caseingest.WithLogger(slog.Default()),
		caseingest.WithEventSink(newProgressPrinter(c.App.Writer)),
	)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error initializing pipeline: %v", err), exitFailure)
	}
	return ing, nil
}

func ingestCommand(c *cli.Context) error {
	filedAfter, err := parseDate(c.String("date"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing, err := openIngester(c, cfg)
	if err != nil {
		return err
	}
	defer ing.Close()

	out := c.App.Writer
	if c.Bool("setup-index") {
		fmt.Fprintf(out, "Setting up index %s...\n", ing.IndexName())
		if err := ing.SetupIndex(ctx, true); err != nil {
			return setupIndexExit(ctx, err)
		}
		fmt.Fprintln(out, "Index ready")
		fmt.Fprintln(out)
	}

	req := ingestion.RunRequest{
		Court:      c.String("court"),
		FiledAfter: filedAfter,
		MaxCases:   c.Int("max-cases"),
		DryRun:     c.Bool("dry-run"),
	}
	printRunHeader(out, req)

	report, err := ing.Run(ctx, req)
	switch exitStatus(report, err) {
	case exitInterrupted:
		return cli.Exit("ingestion interrupted", exitInterrupted)
	case exitFailure:
		return cli.Exit(fmt.Sprintf("ingestion failed: %v", err), exitFailure)
	}
	fmt.Fprintln(out, "Ingestion completed")
	return nil
}

func setupIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing, err := openIngester(c, cfg)
	if err != nil {
		return err
	}
	defer ing.Close()

	if err := ing.SetupIndex(ctx, c.Bool("force")); err != nil {
		return setupIndexExit(ctx, err)
	}
	fmt.Fprintf(c.App.Writer, "Index %s ready\n", ing.IndexName())
	return nil
}

func runsCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if cfg.Storage.Path == "" {
		return cli.Exit(caseingest.ErrJournalDisabled.Error(), exitFailure)
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, false, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	runs, err := badger.NewRunRepository(backend).ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	printRuns(c.App.Writer, runs)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

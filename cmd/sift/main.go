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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/sift"
	"github.com/poiesic/sift/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sift",
		Usage: "Embedded prefix search over titled documents with categorical filters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a .toml or .yaml configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides the config file)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add new documents from a JSON Lines file",
				ArgsUsage: " ",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON Lines file of {id, title, desc, filters, payload} objects",
						Required: true,
					},
				},
			},
			{
				Name:      "update",
				Usage:     "Replace existing documents from a JSON Lines file",
				ArgsUsage: " ",
				Action:    updateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON Lines file of {id, title, desc, filters, payload} objects",
						Required: true,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove documents by ID",
				ArgsUsage: "ID...",
				Action:    deleteCommand,
			},
			{
				Name:      "search",
				Usage:     "Find documents matching word prefixes",
				ArgsUsage: "PREFIX...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Query algorithm (scan, indexed)",
						Value:   "scan",
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Filter value by position; repeat for each position, \"*\" matches anything",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (0 uses the configured default)",
					},
				},
			},
			{
				Name:      "filter",
				Usage:     "List the IDs of documents whose filters match; \"\" matches anything",
				ArgsUsage: "VALUE...",
				Action:    filterCommand,
			},
			{
				Name:   "seed",
				Usage:  "Fill the database with a synthetic corpus",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of synthetic documents",
						Value: 100_000,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Random seed for document descriptions (0 picks a random seed)",
						Value: 1,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild every derived index from the stored documents",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last saved checkpoint",
					},
				},
			},
		},
	}
}

// openEngine loads the configuration named by --config, applies --db and
// opens the engine.
func openEngine(c *cli.Context) (*sift.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dbPath := c.String("db"); dbPath != "" {
		cfg.DBPath = dbPath
		cfg.InMemory = false
	}

	engine, err := sift.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
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

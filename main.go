package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cywujeremy/ai-crawling-strategist/internal/analyze"
	"github.com/cywujeremy/ai-crawling-strategist/internal/runs"
)

func main() {
	app := &cli.App{
		Name:  "ai-crawling-strategist",
		Usage: "derive extraction selector schemas from web pages using LLM analysis",
		Commands: []*cli.Command{
			{
				Name:   "analyze",
				Usage:  "analyze an HTML document and print the extraction schema",
				Action: analyze.AnalyzeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "HTML file to analyze ('-' or empty reads stdin)",
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "natural language extraction intent",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "YAML config file with analysis tuning",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "target tokens per segment",
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "token overlap between segments",
					},
					&cli.Float64Flag{
						Name:  "confidence-threshold",
						Usage: "confidence floor for established patterns",
					},
					&cli.BoolFlag{
						Name:  "no-context",
						Usage: "skip ancestor context tracking during segmentation",
					},
					&cli.BoolFlag{
						Name:  "no-validate",
						Usage: "skip selector validation against the source markup",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "model name for the inference service",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "override the inference service endpoint",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "SQLite database path for recording the run",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "only log errors",
					},
				},
			},
			{
				Name:  "runs",
				Usage: "inspect recorded analysis runs",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list recent runs",
						Action: runs.ListAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "db", Usage: "SQLite database path"},
							&cli.IntFlag{Name: "limit", Value: 50, Usage: "maximum rows to show"},
						},
					},
					{
						Name:   "show",
						Usage:  "show one run's schema and oracle accounting",
						Action: runs.ShowAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "db", Usage: "SQLite database path"},
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
